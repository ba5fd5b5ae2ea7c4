// Package molecule parses SMILES into a molecular graph and derives circular
// fingerprints and fingerprint similarities from it.
package molecule

import (
	"fmt"
	"strings"

	"github.com/turtacn/DrugEx/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Graph
// ─────────────────────────────────────────────────────────────────────────────

// Atom is one node of a parsed molecule.
type Atom struct {
	Symbol   string // as written, lower case for aromatic atoms
	Aromatic bool
	Bracket  bool
	Charge   int
	HCount   int // explicit for bracket atoms, implicit otherwise
	Isotope  int
}

// Bond joins two atom indices.
type Bond struct {
	From, To int
	Order    int
	Aromatic bool
}

// Graph is the parsed molecule.
type Graph struct {
	Atoms []Atom
	Bonds []Bond

	adj [][]int // bond indices per atom
}

// Neighbors returns the indices of bonds touching atom i.
func (g *Graph) Neighbors(i int) []int { return g.adj[i] }

// Other returns the atom at the far end of bond b from atom i.
func (b Bond) Other(i int) int {
	if b.From == i {
		return b.To
	}
	return b.From
}

// Degree returns the number of explicit bonds on atom i.
func (g *Graph) Degree(i int) int { return len(g.adj[i]) }

// CarbonCount returns the number of carbon atoms.
func (g *Graph) CarbonCount() int {
	n := 0
	for _, a := range g.Atoms {
		if a.Symbol == "C" || a.Symbol == "c" {
			n++
		}
	}
	return n
}

// ─────────────────────────────────────────────────────────────────────────────
// Parser
// ─────────────────────────────────────────────────────────────────────────────

// organicValence is the maximum bond-order sum of organic-subset atoms written
// outside brackets.
var organicValence = map[string]int{
	"B": 3, "C": 4, "N": 3, "O": 2, "P": 5, "S": 6,
	"F": 1, "Cl": 1, "Br": 1, "I": 1,
	"b": 3, "c": 4, "n": 3, "o": 2, "p": 3, "s": 2,
}

// defaultValence is used to derive implicit hydrogens.
var defaultValence = map[string]int{
	"B": 3, "C": 4, "N": 3, "O": 2, "P": 3, "S": 2,
	"F": 1, "Cl": 1, "Br": 1, "I": 1,
	"b": 2, "c": 3, "n": 2, "o": 2, "p": 2, "s": 2,
}

// bracketElements lists element symbols allowed inside brackets.
var bracketElements = map[string]bool{
	"H": true, "B": true, "C": true, "N": true, "O": true, "F": true,
	"Na": true, "Mg": true, "Al": true, "Si": true, "P": true, "S": true,
	"Cl": true, "K": true, "Ca": true, "Fe": true, "Co": true, "Cu": true,
	"Zn": true, "Ge": true, "As": true, "Se": true, "Br": true, "Sn": true,
	"Te": true, "I": true, "Li": true, "Pt": true, "Pd": true, "Ag": true,
	"Au": true, "Hg": true, "Ti": true,
	"b": true, "c": true, "n": true, "o": true, "p": true, "s": true,
	"se": true, "te": true, "as": true,
}

var bondOrder = map[byte]int{
	'-': 1, '=': 2, '#': 3, '$': 4, ':': 1, '/': 1, '\\': 1,
}

type ringOpen struct {
	atom    int
	order   int
	written byte
}

type parser struct {
	s        string
	g        *Graph
	valence  []int
	prev     int
	pending  int
	written  byte
	branches []int
	rings    map[int]ringOpen
}

// ParseSMILES parses smiles into a Graph.  Syntax errors and over-valent
// organic-subset atoms are reported as ErrCodeSMILESInvalid; bracket atoms
// carry their own hydrogen count and charge and are not valence-checked.
func ParseSMILES(smiles string) (*Graph, error) {
	if strings.TrimSpace(smiles) == "" {
		return nil, invalidSMILES(smiles, "empty string")
	}
	p := &parser{s: smiles, g: &Graph{}, prev: -1, rings: make(map[int]ringOpen)}
	if reason := p.parse(); reason != "" {
		return nil, invalidSMILES(smiles, reason)
	}
	return p.g, nil
}

func invalidSMILES(smiles, reason string) error {
	return errors.New(errors.ErrCodeSMILESInvalid, reason).WithDetail(fmt.Sprintf("smiles=%q", smiles))
}

func (p *parser) parse() string {
	s := p.s
	for i := 0; i < len(s); {
		ch := s[i]
		switch {
		case ch == '(':
			if p.prev < 0 {
				return "branch without a preceding atom"
			}
			if i+1 < len(s) && s[i+1] == ')' {
				return "empty branch"
			}
			p.branches = append(p.branches, p.prev)
			i++

		case ch == ')':
			if len(p.branches) == 0 {
				return "unbalanced parentheses"
			}
			if p.pending != 0 {
				return "bond before closing parenthesis"
			}
			p.prev = p.branches[len(p.branches)-1]
			p.branches = p.branches[:len(p.branches)-1]
			i++

		case bondOrder[ch] != 0:
			if p.prev < 0 || p.pending != 0 {
				return "misplaced bond symbol"
			}
			p.pending = bondOrder[ch]
			p.written = ch
			i++

		case ch == '.':
			if p.prev < 0 || p.pending != 0 || len(p.branches) != 0 {
				return "misplaced fragment separator"
			}
			p.prev = -1
			i++

		case isDigit(ch) || ch == '%':
			n, width, ok := ringNumber(s[i:])
			if !ok {
				return "malformed ring closure"
			}
			if p.prev < 0 {
				return "ring closure without a preceding atom"
			}
			if reason := p.ring(n); reason != "" {
				return reason
			}
			i += width

		case ch == '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return "unbalanced brackets"
			}
			atom, ok := parseBracket(s[i+1 : i+end])
			if !ok {
				return "invalid bracket atom"
			}
			p.addAtom(atom)
			i += end + 1

		case ch == ']':
			return "unbalanced brackets"

		default:
			symbol := organicSymbol(s[i:])
			if symbol == "" {
				return fmt.Sprintf("invalid atom symbol at %d", i)
			}
			p.addAtom(Atom{Symbol: symbol, Aromatic: isAromatic(symbol)})
			i += len(symbol)
		}
	}

	switch {
	case len(p.g.Atoms) == 0:
		return "no atoms"
	case p.pending != 0:
		return "dangling bond"
	case len(p.branches) != 0:
		return "unbalanced parentheses"
	case len(p.rings) != 0:
		return "unmatched ring closure"
	case p.prev < 0:
		return "dangling fragment separator"
	}

	for i := range p.g.Atoms {
		a := &p.g.Atoms[i]
		if a.Bracket {
			continue
		}
		if p.valence[i] > organicValence[a.Symbol] {
			return fmt.Sprintf("valence exceeded on %s", a.Symbol)
		}
		if h := defaultValence[a.Symbol] - p.valence[i]; h > 0 {
			a.HCount = h
		}
	}
	return ""
}

func (p *parser) addAtom(a Atom) {
	idx := len(p.g.Atoms)
	p.g.Atoms = append(p.g.Atoms, a)
	p.g.adj = append(p.g.adj, nil)
	p.valence = append(p.valence, 0)
	if p.prev >= 0 {
		p.bond(p.prev, idx, p.pending, p.written)
	}
	p.pending = 0
	p.written = 0
	p.prev = idx
}

func (p *parser) bond(from, to, order int, written byte) {
	if order == 0 {
		order = 1
	}
	aromatic := written == ':' || (written == 0 && p.g.Atoms[from].Aromatic && p.g.Atoms[to].Aromatic)
	b := len(p.g.Bonds)
	p.g.Bonds = append(p.g.Bonds, Bond{From: from, To: to, Order: order, Aromatic: aromatic})
	p.g.adj[from] = append(p.g.adj[from], b)
	p.g.adj[to] = append(p.g.adj[to], b)
	p.valence[from] += order
	p.valence[to] += order
}

func (p *parser) ring(n int) string {
	open, ok := p.rings[n]
	if !ok {
		p.rings[n] = ringOpen{atom: p.prev, order: p.pending, written: p.written}
		p.pending = 0
		p.written = 0
		return ""
	}
	if open.atom == p.prev {
		return "ring closure on the same atom"
	}
	order, written := open.order, open.written
	if p.pending != 0 {
		if order != 0 && order != p.pending {
			return "conflicting ring closure bonds"
		}
		order, written = p.pending, p.written
	}
	p.bond(open.atom, p.prev, order, written)
	delete(p.rings, n)
	p.pending = 0
	p.written = 0
	return ""
}

// ringNumber parses "d" or "%dd" at the start of s.
func ringNumber(s string) (n, width int, ok bool) {
	if isDigit(s[0]) {
		return int(s[0] - '0'), 1, true
	}
	if len(s) >= 3 && s[0] == '%' && isDigit(s[1]) && isDigit(s[2]) {
		return int(s[1]-'0')*10 + int(s[2]-'0'), 3, true
	}
	return 0, 0, false
}

// organicSymbol returns the organic-subset atom at the start of s, or "".
func organicSymbol(s string) string {
	if len(s) >= 2 && (s[:2] == "Cl" || s[:2] == "Br") {
		return s[:2]
	}
	if _, ok := organicValence[s[:1]]; ok {
		return s[:1]
	}
	return ""
}

// parseBracket reads the inside of a bracket atom:
// isotope? symbol chirality? hcount? charge? class?
func parseBracket(inner string) (Atom, bool) {
	a := Atom{Bracket: true}
	i := 0
	for i < len(inner) && isDigit(inner[i]) {
		a.Isotope = a.Isotope*10 + int(inner[i]-'0')
		i++
	}
	if i >= len(inner) {
		return a, false
	}

	switch {
	case i+2 <= len(inner) && bracketElements[inner[i:i+2]]:
		a.Symbol = inner[i : i+2]
	case bracketElements[inner[i:i+1]]:
		a.Symbol = inner[i : i+1]
	default:
		return a, false
	}
	a.Aromatic = isAromatic(a.Symbol)
	i += len(a.Symbol)

	for i < len(inner) && inner[i] == '@' {
		i++
	}
	if i < len(inner) && inner[i] == 'H' {
		i++
		a.HCount = 1
		if i < len(inner) && isDigit(inner[i]) {
			a.HCount = 0
			for i < len(inner) && isDigit(inner[i]) {
				a.HCount = a.HCount*10 + int(inner[i]-'0')
				i++
			}
		}
	}
	if i < len(inner) && (inner[i] == '+' || inner[i] == '-') {
		sign := 1
		if inner[i] == '-' {
			sign = -1
		}
		mag := 0
		for i < len(inner) && (inner[i] == '+' || inner[i] == '-') {
			mag++
			i++
		}
		if i < len(inner) && isDigit(inner[i]) {
			mag = 0
			for i < len(inner) && isDigit(inner[i]) {
				mag = mag*10 + int(inner[i]-'0')
				i++
			}
		}
		a.Charge = sign * mag
	}
	if i < len(inner) && inner[i] == ':' {
		i++
		for i < len(inner) && isDigit(inner[i]) {
			i++
		}
	}
	return a, i == len(inner)
}

func isAromatic(symbol string) bool {
	return symbol[0] >= 'a' && symbol[0] <= 'z'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

//Personal.AI order the ending
