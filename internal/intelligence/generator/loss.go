package generator

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/turtacn/DrugEx/internal/domain/policy"
	"github.com/turtacn/DrugEx/internal/domain/vocabulary"
	"github.com/turtacn/DrugEx/pkg/errors"
)

const minProb = 1e-12

func safeLog(p float64) float64 {
	if p < minProb {
		p = minProb
	}
	return math.Log(p)
}

// pgLoss is -Σ coef[b,t]·logp[b,t] where coef folds the mask, the advantage
// and the 1/N batch mean.
type pgLoss struct {
	trace *Trace
	coef  *mat.Dense
	value float64
	done  bool
}

func (l *pgLoss) Value() float64 { return l.value }

// Backward accumulates the gradient of the loss into the model.  It may run
// once per loss.
func (l *pgLoss) Backward() error {
	if l.done {
		return errors.New(errors.ErrCodeOptimizerFailed, "backward called twice on the same loss")
	}
	l.done = true
	l.trace.model.backward(l.trace, l.coef)
	return nil
}

// PGLoss implements policy.Generator.  Positions holding EOS, and every
// position after it, are masked out.
func (m *Model) PGLoss(_ context.Context, lik policy.Likelihood, seqs policy.Sequences, adv *mat.Dense) (policy.Loss, error) {
	tr, ok := lik.(*Trace)
	if !ok || tr.model != m {
		return nil, errors.New(errors.ErrCodeGeneratorShape, "likelihood was not produced by this generator")
	}
	n := len(tr.seqs)
	if len(seqs) != n {
		return nil, errors.New(errors.ErrCodeGeneratorShape, "sequences do not match the likelihood batch")
	}
	if r, c := adv.Dims(); r != n || c != m.maxLen {
		return nil, errors.New(errors.ErrCodeGeneratorShape, "advantage matrix has wrong shape").
			WithDetail(fmt.Sprintf("want=%dx%d got=%dx%d", n, m.maxLen, r, c))
	}
	return m.newLoss(tr, adv, false), nil
}

// newLoss builds the masked loss.  withTerminator keeps the first EOS in the
// mask, which supervised training needs to learn where to stop.
func (m *Model) newLoss(tr *Trace, adv *mat.Dense, withTerminator bool) *pgLoss {
	n := len(tr.seqs)
	coef := mat.NewDense(n, m.maxLen, nil)
	var value float64
	for b, row := range tr.seqs {
		for t, tok := range row {
			if tok == vocabulary.EOSID && !withTerminator {
				break
			}
			c := adv.At(b, t) / float64(n)
			coef.Set(b, t, c)
			value -= c * tr.scores.At(b, t)
			if tok == vocabulary.EOSID {
				break
			}
		}
	}
	return &pgLoss{trace: tr, coef: coef, value: value}
}

// backward runs back-propagation through time for the loss -Σ coef·logp.
func (m *Model) backward(tr *Trace, coef *mat.Dense) {
	n := len(tr.seqs)
	h, v := m.cfg.EmbeddingDim, m.voc.Size()

	dlogit := mat.NewDense(n, v, nil)
	dh := mat.NewDense(n, h, nil)
	carry := mat.NewDense(n, h, nil)
	outGrad := mat.NewDense(v, h, nil)

	for t := m.maxLen - 1; t >= 0; t-- {
		dlogit.Copy(tr.probs[t])
		for b := 0; b < n; b++ {
			row := dlogit.RawRowView(b)
			row[tr.seqs[b][t]] -= 1
			floats.Scale(coef.At(b, t), row)
			floats.Add(m.gBias, row)
		}

		outGrad.Mul(dlogit.T(), tr.hidden[t])
		m.gOut.Add(m.gOut, outGrad)

		dh.Mul(dlogit, m.out)
		dh.Add(dh, carry)
		for b := 0; b < n; b++ {
			floats.Add(m.gEmb.RawRowView(tr.inputAt(b, t)), dh.RawRowView(b))
		}
		carry.Scale(m.cfg.Decay, dh)
	}
}

// ZeroGrad implements policy.Generator.
func (m *Model) ZeroGrad() {
	for _, g := range m.grads() {
		for i := range g {
			g[i] = 0
		}
	}
}

// Step implements policy.Generator.
func (m *Model) Step() error {
	return m.opt.step()
}

// PolicyUpdate implements policy.Generator.
func (m *Model) PolicyUpdate(ctx context.Context, seqs policy.Sequences, advantages []float64) (float64, error) {
	if len(advantages) != len(seqs) {
		return 0, errors.New(errors.ErrCodeGeneratorShape, "one advantage per sequence is required").
			WithDetail(fmt.Sprintf("sequences=%d advantages=%d", len(seqs), len(advantages)))
	}
	m.ZeroGrad()
	lik, err := m.forward(seqs)
	if err != nil {
		return 0, err
	}
	adv := mat.NewDense(len(seqs), m.maxLen, nil)
	for b, a := range advantages {
		for t := 0; t < m.maxLen; t++ {
			adv.Set(b, t, a)
		}
	}
	loss := m.newLoss(lik, adv, false)
	if err := loss.Backward(); err != nil {
		return 0, err
	}
	if err := m.Step(); err != nil {
		return 0, err
	}
	return loss.Value(), nil
}

// Fit takes one supervised step maximising the likelihood of seqs, feeding
// the reference tokens as inputs, and returns the mean negative log-likelihood per sequence.
func (m *Model) Fit(ctx context.Context, seqs policy.Sequences) (float64, error) {
	if len(seqs) == 0 {
		return 0, errors.New(errors.ErrCodeGeneratorShape, "empty training batch")
	}
	m.ZeroGrad()
	lik, err := m.forward(seqs)
	if err != nil {
		return 0, err
	}
	ones := mat.NewDense(len(seqs), m.maxLen, nil)
	for b := range seqs {
		for t := 0; t < m.maxLen; t++ {
			ones.Set(b, t, 1)
		}
	}
	loss := m.newLoss(lik, ones, true)
	if err := loss.Backward(); err != nil {
		return 0, err
	}
	if err := m.Step(); err != nil {
		return 0, err
	}
	return loss.Value(), nil
}

//Personal.AI order the ending
