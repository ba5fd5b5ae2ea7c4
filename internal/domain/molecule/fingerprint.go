package molecule

import (
	"encoding/binary"
	"sort"

	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash/v2"

	"github.com/turtacn/DrugEx/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fingerprint Structure
// ─────────────────────────────────────────────────────────────────────────────

const (
	// DefaultMorganRadius gives ECFP6-style environments.
	DefaultMorganRadius = 3
	// DefaultFingerprintBits is the folded fingerprint length.
	DefaultFingerprintBits = 2048
)

// Fingerprint is a folded bit vector.  It is immutable once built.
type Fingerprint struct {
	bits *bitset.BitSet
	n    uint
}

// NewFingerprint returns an empty fingerprint of n bits.
func NewFingerprint(n int) *Fingerprint {
	return &Fingerprint{bits: bitset.New(uint(n)), n: uint(n)}
}

// FingerprintFromBits builds a fingerprint of n bits with the given bits set.
func FingerprintFromBits(n int, on ...int) *Fingerprint {
	fp := NewFingerprint(n)
	for _, i := range on {
		fp.set(i)
	}
	return fp
}

func (fp *Fingerprint) set(i int) {
	if i >= 0 && uint(i) < fp.n {
		fp.bits.Set(uint(i))
	}
}

// Len returns the fingerprint length in bits.
func (fp *Fingerprint) Len() int { return int(fp.n) }

// Count returns the number of set bits.
func (fp *Fingerprint) Count() int { return int(fp.bits.Count()) }

// Test reports whether bit i is set.
func (fp *Fingerprint) Test(i int) bool {
	return i >= 0 && uint(i) < fp.n && fp.bits.Test(uint(i))
}

// OnBits returns the indices of all set bits in ascending order.
func (fp *Fingerprint) OnBits() []int {
	out := make([]int, 0, fp.bits.Count())
	for i, ok := fp.bits.NextSet(0); ok; i, ok = fp.bits.NextSet(i + 1) {
		out = append(out, int(i))
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Morgan (Circular) Fingerprint
// ─────────────────────────────────────────────────────────────────────────────

// CalculateMorganFingerprint parses smiles and returns its Morgan fingerprint.
func CalculateMorganFingerprint(smiles string, radius, nBits int) (*Fingerprint, error) {
	g, err := ParseSMILES(smiles)
	if err != nil {
		return nil, err
	}
	return MorganFingerprint(g, radius, nBits)
}

// MorganFingerprint hashes every atom environment up to radius bonds and folds
// the identifiers into nBits.  Iteration 0 hashes atom invariants; iteration r
// hashes the previous identifier with the sorted (bond, neighbour identifier)
// pairs.
func MorganFingerprint(g *Graph, radius, nBits int) (*Fingerprint, error) {
	if radius < 0 {
		return nil, errors.InvalidParam("radius must not be negative")
	}
	if nBits <= 0 {
		return nil, errors.InvalidParam("fingerprint length must be positive")
	}
	fp := NewFingerprint(nBits)

	ids := make([]uint64, len(g.Atoms))
	for i := range g.Atoms {
		ids[i] = atomInvariant(g, i)
		fp.set(int(ids[i] % uint64(nBits)))
	}

	next := make([]uint64, len(ids))
	for r := 1; r <= radius; r++ {
		for i := range g.Atoms {
			next[i] = environmentHash(g, i, r, ids)
			fp.set(int(next[i] % uint64(nBits)))
		}
		ids, next = next, ids
	}
	return fp, nil
}

func atomInvariant(g *Graph, i int) uint64 {
	a := g.Atoms[i]
	buf := make([]byte, 0, 48)
	buf = append(buf, a.Symbol...)
	buf = append(buf, 0)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(g.Degree(i)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(a.HCount))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(a.Charge)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(a.Isotope))
	if a.Aromatic {
		buf = append(buf, 1)
	}
	return xxhash.Sum64(buf)
}

type neighbourKey struct {
	bond uint64
	id   uint64
}

func environmentHash(g *Graph, i, r int, ids []uint64) uint64 {
	adj := g.Neighbors(i)
	keys := make([]neighbourKey, len(adj))
	for k, b := range adj {
		bond := g.Bonds[b]
		code := uint64(bond.Order)
		if bond.Aromatic {
			code = 4
		}
		keys[k] = neighbourKey{bond: code, id: ids[bond.Other(i)]}
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].bond != keys[b].bond {
			return keys[a].bond < keys[b].bond
		}
		return keys[a].id < keys[b].id
	})

	d := xxhash.New()
	var word [8]byte
	write := func(v uint64) {
		binary.LittleEndian.PutUint64(word[:], v)
		_, _ = d.Write(word[:])
	}
	write(uint64(r))
	write(ids[i])
	for _, k := range keys {
		write(k.bond)
		write(k.id)
	}
	return d.Sum64()
}

//Personal.AI order the ending
