package generator

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/turtacn/DrugEx/internal/domain/policy"
	"github.com/turtacn/DrugEx/internal/domain/vocabulary"
)

// Trace is the forward pass of a batch: per-token log-probabilities, the
// hidden state at every position and the cached output distributions used by
// back-propagation.
type Trace struct {
	model  *Model
	seqs   policy.Sequences
	scores *mat.Dense   // N×L
	hidden []*mat.Dense // L × (N×H)
	probs  []*mat.Dense // L × (N×V)
}

var _ policy.Likelihood = (*Trace)(nil)

// Scores implements policy.Likelihood.
func (t *Trace) Scores() *mat.Dense { return t.scores }

// Hidden implements policy.Likelihood.  The returned state is shared with the
// trace and must not be modified.
func (t *Trace) Hidden(pos int) policy.HiddenState { return t.hidden[pos] }

// Len implements policy.Likelihood.
func (t *Trace) Len() int { return len(t.hidden) }

// SequenceScores returns the log-likelihood of every row, summed up to and
// including its first EOS.
func (t *Trace) SequenceScores() []float64 {
	n, l := t.scores.Dims()
	out := make([]float64, n)
	for b := 0; b < n; b++ {
		for p := 0; p < l; p++ {
			out[b] += t.scores.At(b, p)
			if t.seqs[b][p] == vocabulary.EOSID {
				break
			}
		}
	}
	return out
}

// Likelihood implements policy.Generator.
func (m *Model) Likelihood(_ context.Context, seqs policy.Sequences) (policy.Likelihood, error) {
	return m.forward(seqs)
}

func (m *Model) forward(seqs policy.Sequences) (*Trace, error) {
	if err := m.checkTokens(seqs, m.maxLen); err != nil {
		return nil, err
	}
	n := len(seqs)
	tr := &Trace{
		model:  m,
		seqs:   seqs,
		scores: mat.NewDense(n, m.maxLen, nil),
		hidden: make([]*mat.Dense, m.maxLen),
		probs:  make([]*mat.Dense, m.maxLen),
	}

	cur := &cursor{m: m, h: mat.NewDense(n, m.cfg.EmbeddingDim, nil)}
	input := make([]int, n)
	for b := range input {
		input[b] = vocabulary.GOID
	}
	for t := 0; t < m.maxLen; t++ {
		p := cur.Next(input)
		tr.hidden[t] = mat.DenseCopyOf(cur.h)
		tr.probs[t] = p
		for b, row := range seqs {
			tr.scores.Set(b, t, safeLog(p.At(b, row[t])))
			input[b] = row[t]
		}
	}
	return tr, nil
}

// inputAt returns the token fed at position t of row b.
func (t *Trace) inputAt(b, pos int) int {
	if pos == 0 {
		return vocabulary.GOID
	}
	return t.seqs[b][pos-1]
}

//Personal.AI order the ending
