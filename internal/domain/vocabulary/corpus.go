package vocabulary

import (
	"encoding/csv"
	"io"
	"regexp"
	"strings"

	"github.com/turtacn/DrugEx/pkg/errors"
)

// SMILESColumn is the column holding canonical SMILES in corpus tables.
const SMILESColumn = "CANONICAL_SMILES"

var (
	isotopeLabel = regexp.MustCompile(`\[\d+`)

	chargedNitrogen = strings.NewReplacer("[NH+]", "N", "[NH2+]", "N", "[NH3+]", "N")

	// rejectedAtoms are metals and metalloids excluded from the corpus.
	rejectedAtoms = []string{"[Au]", "[As]", "[Hg]", "[Se]", "[se]"}
)

// CurateSMILES normalises a raw SMILES for the pre-training corpus: isotope
// labels are dropped, protonated amines are neutralised and only the largest
// fragment is kept.  Molecules containing a rejected atom or fewer than two
// carbon atoms are rejected.
func CurateSMILES(smiles string) (string, bool) {
	s := isotopeLabel.ReplaceAllString(strings.TrimSpace(smiles), "[")
	s = chargedNitrogen.Replace(s)
	s = LargestFragment(s)
	for _, atom := range rejectedAtoms {
		if strings.Contains(s, atom) {
			return "", false
		}
	}
	folded := halogenFolder.Replace(s)
	if strings.Count(folded, "C")+strings.Count(folded, "c") < 2 {
		return "", false
	}
	return s, true
}

// LargestFragment returns the longest '.'-separated fragment of smiles.
func LargestFragment(smiles string) string {
	if !strings.Contains(smiles, ".") {
		return smiles
	}
	best := ""
	for _, frag := range strings.Split(smiles, ".") {
		if len(frag) > len(best) {
			best = frag
		}
	}
	return best
}

// CorpusStats summarises a BuildCorpus run.
type CorpusStats struct {
	Read       int
	Rejected   int
	Duplicates int
	TooLong    int
	Written    int
}

// BuildCorpus reads a tab-separated table with a CANONICAL_SMILES column,
// curates and deduplicates the molecules, and writes a
// CANONICAL_SMILES<TAB>SENT table where SENT is the space-joined token
// sentence.  It returns the vocabulary collected from the written molecules.
func BuildCorpus(r io.Reader, w io.Writer, maxLen int) (*Vocabulary, CorpusStats, error) {
	var stats CorpusStats
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}

	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, stats, errors.Wrap(err, errors.ErrCodeCorpusReadFailed, "failed to read corpus header")
	}
	col := -1
	for i, name := range header {
		if strings.TrimSpace(name) == SMILESColumn {
			col = i
		}
	}
	if col < 0 {
		return nil, stats, errors.New(errors.ErrCodeCorpusReadFailed, "corpus has no "+SMILESColumn+" column")
	}

	writer := csv.NewWriter(w)
	writer.Comma = '\t'
	if err := writer.Write([]string{SMILESColumn, "SENT"}); err != nil {
		return nil, stats, errors.Wrap(err, errors.ErrCodeCorpusReadFailed, "failed to write corpus header")
	}

	seen := make(map[string]struct{})
	var tokens []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, errors.Wrap(err, errors.ErrCodeCorpusReadFailed, "failed to read corpus row")
		}
		if col >= len(record) || strings.TrimSpace(record[col]) == "" {
			continue
		}
		stats.Read++

		smiles, ok := CurateSMILES(record[col])
		if !ok || !IsValid(smiles) {
			stats.Rejected++
			continue
		}
		if _, dup := seen[smiles]; dup {
			stats.Duplicates++
			continue
		}
		seen[smiles] = struct{}{}

		sentence := Tokenize(smiles)
		if len(sentence) > maxLen {
			stats.TooLong++
			continue
		}
		tokens = append(tokens, sentence...)
		if err := writer.Write([]string{smiles, strings.Join(sentence, " ")}); err != nil {
			return nil, stats, errors.Wrap(err, errors.ErrCodeCorpusReadFailed, "failed to write corpus row")
		}
		stats.Written++
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, stats, errors.Wrap(err, errors.ErrCodeCorpusReadFailed, "failed to flush corpus")
	}

	voc, err := New(tokens, maxLen)
	if err != nil {
		return nil, stats, err
	}
	return voc, stats, nil
}

// ReadSMILESColumn returns the non-empty CANONICAL_SMILES values of a
// tab-separated table, or of a headerless one-per-line file.
func ReadSMILESColumn(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCorpusReadFailed, "failed to read SMILES table")
	}
	if len(records) == 0 {
		return nil, nil
	}

	col, start := 0, 0
	for i, name := range records[0] {
		if strings.TrimSpace(name) == SMILESColumn {
			col, start = i, 1
		}
	}
	var out []string
	for _, rec := range records[start:] {
		if col < len(rec) && strings.TrimSpace(rec[col]) != "" {
			out = append(out, strings.TrimSpace(rec[col]))
		}
	}
	return out, nil
}

//Personal.AI order the ending
