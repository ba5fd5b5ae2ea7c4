package policy

import (
	"context"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// fakeGenerator replays scripted batches and records every call.
type fakeGenerator struct {
	maxLen int
	batch  Sequences
	// tail returns the continuation rows for one rollout call.
	tail func(call int, c *Continuation) Sequences

	sampleReqs   []SampleRequest
	continuation []int // Start of every continuation call
	updates      [][]float64
	advantages   *mat.Dense
	zeroGrads    int
	steps        int
	backwards    int
	sampleErr    error
}

func (g *fakeGenerator) MaxLen() int      { return g.maxLen }
func (g *fakeGenerator) Begin(int) Cursor { return nil }
func (g *fakeGenerator) ZeroGrad()        { g.zeroGrads++ }
func (g *fakeGenerator) Step() error      { g.steps++; return nil }

func (g *fakeGenerator) Sample(_ context.Context, req SampleRequest) (Sequences, error) {
	g.sampleReqs = append(g.sampleReqs, req)
	if g.sampleErr != nil {
		return nil, g.sampleErr
	}
	if c := req.Continuation; c != nil {
		g.continuation = append(g.continuation, c.Start)
		if g.tail != nil {
			return g.tail(len(g.continuation), c), nil
		}
		out := make(Sequences, req.N)
		for i := range out {
			out[i] = make([]int, g.maxLen-c.Start)
		}
		return out, nil
	}
	out := make(Sequences, len(g.batch))
	for i, row := range g.batch {
		out[i] = append([]int(nil), row...)
	}
	return out, nil
}

func (g *fakeGenerator) Likelihood(_ context.Context, seqs Sequences) (Likelihood, error) {
	return fakeLikelihood{n: len(seqs), l: g.maxLen}, nil
}

func (g *fakeGenerator) PolicyUpdate(_ context.Context, _ Sequences, adv []float64) (float64, error) {
	g.zeroGrads++
	g.updates = append(g.updates, append([]float64(nil), adv...))
	g.steps++
	return 0.5, nil
}

func (g *fakeGenerator) PGLoss(_ context.Context, _ Likelihood, _ Sequences, adv *mat.Dense) (Loss, error) {
	g.advantages = mat.DenseCopyOf(adv)
	return &fakeLoss{g: g}, nil
}

type fakeLikelihood struct{ n, l int }

func (f fakeLikelihood) Scores() *mat.Dense         { return mat.NewDense(f.n, f.l, nil) }
func (f fakeLikelihood) Hidden(pos int) HiddenState { return pos }
func (f fakeLikelihood) Len() int                   { return f.l }

type fakeLoss struct{ g *fakeGenerator }

func (l *fakeLoss) Value() float64 { return 1.25 }
func (l *fakeLoss) Backward() error {
	l.g.backwards++
	return nil
}

// rowString renders a row up to its first terminator, e.g. "3-4".
func rowString(row []int) string {
	parts := make([]string, 0, len(row))
	for _, tok := range row {
		if tok == EOS {
			break
		}
		parts = append(parts, fmt.Sprint(tok))
	}
	return strings.Join(parts, "-")
}

// fakeChecker renders rows with rowString and rejects rows whose first token
// is 9.
type fakeChecker struct{ calls int }

func (c *fakeChecker) Check(_ context.Context, seqs Sequences) ([]string, []bool, error) {
	c.calls++
	smiles := make([]string, len(seqs))
	valid := make([]bool, len(seqs))
	for i, row := range seqs {
		smiles[i] = rowString(row)
		valid[i] = len(row) > 0 && row[0] != 9 && row[0] != EOS
	}
	return smiles, valid, nil
}

// fakeEnv scores strings from a table, falling back to def.
type fakeEnv struct {
	table map[string]float64
	def   float64
	calls int
	short bool
}

func (e *fakeEnv) Score(_ context.Context, smiles []string) ([]float64, error) {
	e.calls++
	out := make([]float64, len(smiles))
	for i, s := range smiles {
		if v, ok := e.table[s]; ok {
			out[i] = v
		} else {
			out[i] = e.def
		}
	}
	if e.short {
		return out[:len(out)-1], nil
	}
	return out, nil
}

//Personal.AI order the ending
