// Package vocabulary maps SMILES tokens to integer ids and back.
//
// Id 0 is the terminator EOS and doubles as the padding id written after it.
// Id 1 is the start token GO, which is only ever fed to a generator as its
// first input.  Every other token follows in sorted order.
package vocabulary

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/turtacn/DrugEx/pkg/errors"
)

const (
	// EOS terminates a sequence; every position after it is padded with EOS.
	EOS = "EOS"
	// GO is the start-of-sequence input token.
	GO = "GO"

	EOSID = 0
	GOID  = 1

	// DefaultMaxLen is the fixed sequence length used by generators.
	DefaultMaxLen = 100
)

// Vocabulary is an immutable token table.  It is safe for concurrent use.
type Vocabulary struct {
	tokens []string
	index  map[string]int
	maxLen int
}

// New builds a Vocabulary from tokens.  EOS and GO are prepended and must not
// appear in tokens; duplicates are removed.  maxLen <= 0 selects DefaultMaxLen.
func New(tokens []string, maxLen int) (*Vocabulary, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" || t == EOS || t == GO {
			continue
		}
		set[t] = struct{}{}
	}
	if len(set) == 0 {
		return nil, errors.New(errors.ErrCodeVocabEmpty, "vocabulary has no tokens")
	}

	sorted := make([]string, 0, len(set))
	for t := range set {
		sorted = append(sorted, t)
	}
	sort.Strings(sorted)

	all := append([]string{EOS, GO}, sorted...)
	index := make(map[string]int, len(all))
	for i, t := range all {
		index[t] = i
	}
	return &Vocabulary{tokens: all, index: index, maxLen: maxLen}, nil
}

// Read parses one token per line.
func Read(r io.Reader, maxLen int) (*Vocabulary, error) {
	var tokens []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		tokens = append(tokens, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeVocabLoadFailed, "failed to read vocabulary")
	}
	return New(tokens, maxLen)
}

// Load reads a vocabulary file from disk.
func Load(path string, maxLen int) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeVocabLoadFailed, "failed to open vocabulary").WithDetail(path)
	}
	defer f.Close()
	return Read(f, maxLen)
}

// Build tokenizes every SMILES and collects the token set.
func Build(maxLen int, smiles ...string) (*Vocabulary, error) {
	var tokens []string
	for _, s := range smiles {
		tokens = append(tokens, Tokenize(s)...)
	}
	return New(tokens, maxLen)
}

// Write emits the tokens (without EOS and GO) one per line.
func (v *Vocabulary) Write(w io.Writer) error {
	_, err := io.WriteString(w, strings.Join(v.tokens[2:], "\n"))
	return err
}

// Save writes the vocabulary file to path.
func (v *Vocabulary) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeVocabLoadFailed, "failed to create vocabulary file").WithDetail(path)
	}
	if err := v.Write(f); err != nil {
		f.Close()
		return errors.Wrap(err, errors.ErrCodeVocabLoadFailed, "failed to write vocabulary file").WithDetail(path)
	}
	return f.Close()
}

// Size returns the number of ids, including EOS and GO.
func (v *Vocabulary) Size() int { return len(v.tokens) }

// MaxLen returns the fixed sequence length.
func (v *Vocabulary) MaxLen() int { return v.maxLen }

// Tokens returns a copy of the token table indexed by id.
func (v *Vocabulary) Tokens() []string {
	out := make([]string, len(v.tokens))
	copy(out, v.tokens)
	return out
}

// ID returns the id of tok.
func (v *Vocabulary) ID(tok string) (int, bool) {
	id, ok := v.index[tok]
	return id, ok
}

// Token returns the token for id, or "" when id is out of range.
func (v *Vocabulary) Token(id int) string {
	if id < 0 || id >= len(v.tokens) {
		return ""
	}
	return v.tokens[id]
}

// Encode maps tokens to ids.
func (v *Vocabulary) Encode(tokens []string) ([]int, error) {
	ids := make([]int, len(tokens))
	for i, t := range tokens {
		id, ok := v.index[t]
		if !ok {
			return nil, errors.New(errors.ErrCodeVocabUnknownToken, "token not in vocabulary").
				WithDetail(fmt.Sprintf("token=%q position=%d", t, i))
		}
		ids[i] = id
	}
	return ids, nil
}

// EncodeSMILES tokenizes smiles and returns a MaxLen row padded with EOS.
func (v *Vocabulary) EncodeSMILES(smiles string) ([]int, error) {
	tokens := Tokenize(smiles)
	if len(tokens) > v.maxLen {
		return nil, errors.New(errors.ErrCodeSequenceTooLong, "SMILES too long for vocabulary").
			WithDetail(fmt.Sprintf("tokens=%d max_len=%d", len(tokens), v.maxLen))
	}
	ids, err := v.Encode(tokens)
	if err != nil {
		return nil, err
	}
	row := make([]int, v.maxLen)
	copy(row, ids)
	return row, nil
}

// Decode rebuilds a SMILES string from ids, stopping at the first EOS.  GO ids
// and ids outside the table are skipped.  Decode is a pure function of ids.
func (v *Vocabulary) Decode(ids []int) string {
	var sb strings.Builder
	for _, id := range ids {
		if id == EOSID {
			break
		}
		if id == GOID || id < 0 || id >= len(v.tokens) {
			continue
		}
		sb.WriteString(v.tokens[id])
	}
	return restoreHalogens(sb.String())
}

// DecodeAll decodes every row.
func (v *Vocabulary) DecodeAll(seqs [][]int) []string {
	out := make([]string, len(seqs))
	for i, row := range seqs {
		out[i] = v.Decode(row)
	}
	return out
}

//Personal.AI order the ending
