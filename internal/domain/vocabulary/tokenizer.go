package vocabulary

import (
	"regexp"
	"strings"
)

// bracketAtom matches bracket atoms with up to six inner characters, which
// are kept as single tokens.
var bracketAtom = regexp.MustCompile(`\[[^\[\]]{1,6}\]`)

var (
	halogenFolder   = strings.NewReplacer("Cl", "L", "Br", "R")
	halogenRestorer = strings.NewReplacer("L", "Cl", "R", "Br")
)

// Tokenize splits smiles into vocabulary tokens and appends EOS.  Cl and Br are
// folded to the single characters L and R so every other token outside
// brackets is one character long.
func Tokenize(smiles string) []string {
	folded := halogenFolder.Replace(smiles)
	tokens := make([]string, 0, len(folded)+1)

	last := 0
	for _, loc := range bracketAtom.FindAllStringIndex(folded, -1) {
		for _, ch := range folded[last:loc[0]] {
			tokens = append(tokens, string(ch))
		}
		tokens = append(tokens, folded[loc[0]:loc[1]])
		last = loc[1]
	}
	for _, ch := range folded[last:] {
		tokens = append(tokens, string(ch))
	}
	return append(tokens, EOS)
}

func restoreHalogens(s string) string {
	return halogenRestorer.Replace(s)
}

//Personal.AI order the ending
