package vocabulary

import "context"

// SequenceChecker decodes token rows and validates the resulting SMILES.  It
// is the validity check run before every environment scoring call.
type SequenceChecker struct {
	voc *Vocabulary
}

// NewSequenceChecker returns a checker bound to voc.
func NewSequenceChecker(voc *Vocabulary) *SequenceChecker {
	return &SequenceChecker{voc: voc}
}

// Check decodes every row and reports one validity flag per row.  An invalid
// molecule is not an error.
func (c *SequenceChecker) Check(ctx context.Context, seqs [][]int) ([]string, []bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	smiles := make([]string, len(seqs))
	valid := make([]bool, len(seqs))
	for i, row := range seqs {
		smiles[i] = c.voc.Decode(row)
		valid[i] = IsValid(smiles[i])
	}
	return smiles, valid, nil
}

//Personal.AI order the ending
