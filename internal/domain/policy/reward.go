package policy

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/turtacn/DrugEx/pkg/errors"
)

// shapeWholeSequence zeroes the raw score of every invalid molecule and then
// subtracts the baseline, so an invalid molecule trains with -baseline.
func shapeWholeSequence(scores []float64, valid []bool, baseline float64) []float64 {
	out := make([]float64, len(scores))
	copy(out, scores)
	for i, ok := range valid {
		if !ok {
			out[i] = 0
		}
	}
	floats.AddConst(-baseline, out)
	return out
}

// shapeRollout subtracts the baseline and then overwrites every invalid
// molecule with -baseline.
func shapeRollout(scores []float64, valid []bool, baseline float64) []float64 {
	out := make([]float64, len(scores))
	copy(out, scores)
	floats.AddConst(-baseline, out)
	for i, ok := range valid {
		if !ok {
			out[i] = -baseline
		}
	}
	return out
}

func validRate(valid []bool) float64 {
	if len(valid) == 0 {
		return 0
	}
	n := 0
	for _, ok := range valid {
		if ok {
			n++
		}
	}
	return float64(n) / float64(len(valid))
}

// evaluation is the checked and scored form of one batch.
type evaluation struct {
	smiles []string
	valid  []bool
	scores []float64
}

// evaluate runs the validity check and one environment call over seqs.  Any
// shape mismatch is fatal.
func evaluate(ctx context.Context, checker Checker, env Environment, seqs Sequences) (*evaluation, error) {
	smiles, valid, err := checker.Check(ctx, seqs)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePolicyCheckShape, "validity check failed")
	}
	if len(smiles) != len(seqs) || len(valid) != len(seqs) {
		return nil, errors.New(errors.ErrCodePolicyCheckShape, "checker returned wrong batch size").
			WithDetail(fmt.Sprintf("want=%d smiles=%d valid=%d", len(seqs), len(smiles), len(valid)))
	}

	scores, err := env.Score(ctx, smiles)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEnvScoringFailed, "environment scoring failed")
	}
	if len(scores) != len(smiles) {
		return nil, errors.New(errors.ErrCodePolicyRewardShape, "environment returned wrong number of rewards").
			WithDetail(fmt.Sprintf("want=%d got=%d", len(smiles), len(scores)))
	}
	return &evaluation{smiles: smiles, valid: valid, scores: scores}, nil
}

// checkBatch verifies the generator returned n rows of width cols.
func checkBatch(seqs Sequences, n, cols int) error {
	if len(seqs) != n {
		return errors.New(errors.ErrCodePolicyGeneratorCall, "generator returned wrong batch size").
			WithDetail(fmt.Sprintf("want=%d got=%d", n, len(seqs)))
	}
	for i, row := range seqs {
		if len(row) != cols {
			return errors.New(errors.ErrCodePolicyGeneratorCall, "generator returned wrong sequence length").
				WithDetail(fmt.Sprintf("row=%d want=%d got=%d", i, cols, len(row)))
		}
	}
	return nil
}

//Personal.AI order the ending
