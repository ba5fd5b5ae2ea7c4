package generator

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/turtacn/DrugEx/internal/domain/policy"
	"github.com/turtacn/DrugEx/internal/domain/vocabulary"
	"github.com/turtacn/DrugEx/pkg/errors"
)

// Sample implements policy.Generator.
//
// Without a continuation it returns N rows of MaxLen tokens.  With one, it
// feeds Prefix[:, Start-1] into the supplied state and returns positions
// Start..MaxLen-1 only.  Rows whose prefix already holds EOS, and rows that
// emit EOS, are padded with EOS.  GO is never emitted.
func (m *Model) Sample(ctx context.Context, req policy.SampleRequest) (policy.Sequences, error) {
	if req.N <= 0 {
		return nil, errors.New(errors.ErrCodeGeneratorShape, "sample size must be positive")
	}

	var (
		cur   *cursor
		input []int
		start int
		done  = make([]bool, req.N)
	)
	if c := req.Continuation; c != nil {
		var err error
		cur, input, err = m.continueFrom(c, req.N, done)
		if err != nil {
			return nil, err
		}
		start = c.Start
	} else {
		cur = &cursor{m: m, h: mat.NewDense(req.N, m.cfg.EmbeddingDim, nil)}
		input = make([]int, req.N)
		for b := range input {
			input[b] = vocabulary.GOID
		}
	}

	var explore policy.Cursor
	if req.Explore != nil && req.Epsilon > 0 && req.Continuation == nil {
		explore = req.Explore.Begin(req.N)
	}
	draws := req.Draws
	if draws < 1 {
		draws = 1
	}

	width := m.maxLen - start
	out := make(policy.Sequences, req.N)
	for b := range out {
		out[b] = make([]int, width)
	}

	for t := 0; t < width; t++ {
		probs := cur.Next(input)
		if explore != nil {
			ex := explore.Next(input)
			if _, v := ex.Dims(); v != m.voc.Size() {
				return nil, errors.New(errors.ErrCodeGeneratorShape, "exploration network has a different vocabulary").
					WithDetail(fmt.Sprintf("want=%d got=%d", m.voc.Size(), v))
			}
			m.blend(probs, ex, req.Epsilon, draws)
		}
		for b := 0; b < req.N; b++ {
			if done[b] {
				input[b] = vocabulary.EOSID
				continue
			}
			tok := m.draw(probs.RawRowView(b))
			out[b][t] = tok
			input[b] = tok
			if tok == vocabulary.EOSID {
				done[b] = true
			}
		}
	}
	return out, nil
}

func (m *Model) continueFrom(c *policy.Continuation, n int, done []bool) (*cursor, []int, error) {
	if c.Start < 1 || c.Start > m.maxLen {
		return nil, nil, errors.New(errors.ErrCodeGeneratorContinuation, "continuation start out of range").
			WithDetail(fmt.Sprintf("start=%d max_len=%d", c.Start, m.maxLen))
	}
	if len(c.Prefix) != n {
		return nil, nil, errors.New(errors.ErrCodeGeneratorContinuation, "continuation prefix has wrong batch size").
			WithDetail(fmt.Sprintf("want=%d got=%d", n, len(c.Prefix)))
	}
	if err := m.checkTokens(c.Prefix, c.Start); err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeGeneratorContinuation, "invalid continuation prefix")
	}
	h, ok := c.Hidden.(*mat.Dense)
	if !ok {
		return nil, nil, errors.New(errors.ErrCodeGeneratorContinuation, "continuation state was not produced by this generator")
	}
	if r, cols := h.Dims(); r != n || cols != m.cfg.EmbeddingDim {
		return nil, nil, errors.New(errors.ErrCodeGeneratorContinuation, "continuation state has wrong shape").
			WithDetail(fmt.Sprintf("rows=%d cols=%d", r, cols))
	}

	input := make([]int, n)
	for b, row := range c.Prefix {
		input[b] = row[c.Start-1]
		for _, tok := range row {
			if tok == vocabulary.EOSID {
				done[b] = true
				break
			}
		}
	}
	return m.resume(h), input, nil
}

// blend mixes the exploration distribution into probs.  Every row draws
// Bernoulli(epsilon) draws times and uses the success fraction as the weight
// of the exploration distribution.  With one draw a row samples either wholly
// from the agent or wholly from the exploration network.
func (m *Model) blend(probs, explore *mat.Dense, epsilon float64, draws int) {
	n, v := probs.Dims()
	for b := 0; b < n; b++ {
		hits := 0
		for d := 0; d < draws; d++ {
			if m.rng.Float64() < epsilon {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		w := float64(hits) / float64(draws)
		row, ex := probs.RawRowView(b), explore.RawRowView(b)
		for k := 0; k < v; k++ {
			row[k] = (1-w)*row[k] + w*ex[k]
		}
	}
}

// draw samples one token id from p, never GO.
func (m *Model) draw(p []float64) int {
	total := 0.0
	for k, v := range p {
		if k != vocabulary.GOID {
			total += v
		}
	}
	u := m.rng.Float64() * total
	last := vocabulary.EOSID
	for k, v := range p {
		if k == vocabulary.GOID || v == 0 {
			continue
		}
		last = k
		u -= v
		if u < 0 {
			return k
		}
	}
	return last
}

//Personal.AI order the ending
