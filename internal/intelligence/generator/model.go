// Package generator provides the reference token-sequence Generator used by
// the policy strategies: an embedding table, a leaky linear recurrence and a
// softmax output layer, trained with Adam.
//
//	h_t = decay·h_{t-1} + E[x_t]
//	p_t = softmax(W·h_t + b)
//
// x_0 is GO and x_t is the token sampled at t-1.  The recurrence is linear,
// so back-propagation through time is exact and cheap.  A Model is not safe
// for concurrent use.
package generator

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/turtacn/DrugEx/internal/domain/policy"
	"github.com/turtacn/DrugEx/internal/domain/vocabulary"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/pkg/errors"
)

// Config holds the model hyperparameters.
type Config struct {
	EmbeddingDim int     `json:"embedding_dim"`
	Decay        float64 `json:"decay"`
	LearningRate float64 `json:"learning_rate"`
	Beta1        float64 `json:"beta1"`
	Beta2        float64 `json:"beta2"`
	InitScale    float64 `json:"init_scale"`
}

// DefaultConfig returns the hyperparameters used when none are configured.
func DefaultConfig() Config {
	return Config{
		EmbeddingDim: 64,
		Decay:        0.5,
		LearningRate: 1e-3,
		Beta1:        0.9,
		Beta2:        0.999,
		InitScale:    0.1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.EmbeddingDim <= 0:
		return errors.New(errors.ErrCodeGeneratorShape, "embedding dimension must be positive")
	case c.Decay < 0 || c.Decay >= 1:
		return errors.New(errors.ErrCodeGeneratorShape, "decay must be in [0, 1)")
	case c.LearningRate <= 0:
		return errors.New(errors.ErrCodeOptimizerFailed, "learning rate must be positive")
	case c.Beta1 < 0 || c.Beta1 >= 1 || c.Beta2 < 0 || c.Beta2 >= 1:
		return errors.New(errors.ErrCodeOptimizerFailed, "adam betas must be in [0, 1)")
	}
	return nil
}

// Model is the reference Generator.
type Model struct {
	cfg    Config
	voc    *vocabulary.Vocabulary
	maxLen int

	emb  *mat.Dense // V×H
	out  *mat.Dense // V×H
	bias []float64  // V

	gEmb  *mat.Dense
	gOut  *mat.Dense
	gBias []float64
	opt   *adam

	rng    *rand.Rand
	logger logging.Logger
}

var _ policy.Generator = (*Model)(nil)

// New creates a randomly initialised model.  rng drives both initialisation
// and every later sampling call.
func New(voc *vocabulary.Vocabulary, cfg Config, rng *rand.Rand, logger logging.Logger) (*Model, error) {
	if voc == nil {
		return nil, errors.New(errors.ErrCodeGeneratorShape, "vocabulary is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, errors.New(errors.ErrCodeGeneratorShape, "random source is required")
	}
	m := newModel(voc, cfg, rng, logger)
	randomize(m.emb, rng, cfg.InitScale)
	randomize(m.out, rng, cfg.InitScale)
	return m, nil
}

func newModel(voc *vocabulary.Vocabulary, cfg Config, rng *rand.Rand, logger logging.Logger) *Model {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	v, h := voc.Size(), cfg.EmbeddingDim
	m := &Model{
		cfg:    cfg,
		voc:    voc,
		maxLen: voc.MaxLen(),
		emb:    mat.NewDense(v, h, nil),
		out:    mat.NewDense(v, h, nil),
		bias:   make([]float64, v),
		gEmb:   mat.NewDense(v, h, nil),
		gOut:   mat.NewDense(v, h, nil),
		gBias:  make([]float64, v),
		rng:    rng,
		logger: logger.Named("generator"),
	}
	m.opt = newAdam(cfg, m.params(), m.grads())
	return m
}

func randomize(d *mat.Dense, rng *rand.Rand, scale float64) {
	raw := d.RawMatrix().Data
	for i := range raw {
		raw[i] = rng.NormFloat64() * scale
	}
}

func (m *Model) params() [][]float64 {
	return [][]float64{m.emb.RawMatrix().Data, m.out.RawMatrix().Data, m.bias}
}

func (m *Model) grads() [][]float64 {
	return [][]float64{m.gEmb.RawMatrix().Data, m.gOut.RawMatrix().Data, m.gBias}
}

// Clone returns an independent copy of the parameters with fresh optimizer
// state, drawing randomness from rng.
func (m *Model) Clone(rng *rand.Rand) *Model {
	c := newModel(m.voc, m.cfg, rng, m.logger)
	c.emb.Copy(m.emb)
	c.out.Copy(m.out)
	copy(c.bias, m.bias)
	return c
}

// Config returns the hyperparameters.
func (m *Model) Config() Config { return m.cfg }

// Vocabulary returns the token table.
func (m *Model) Vocabulary() *vocabulary.Vocabulary { return m.voc }

// MaxLen implements policy.Generator.
func (m *Model) MaxLen() int { return m.maxLen }

// ─────────────────────────────────────────────────────────────────────────────
// Forward step
// ─────────────────────────────────────────────────────────────────────────────

// cursor holds the recurrent state of a batch.
type cursor struct {
	m *Model
	h *mat.Dense // N×H
}

// Begin implements policy.Generator.
func (m *Model) Begin(n int) policy.Cursor {
	return &cursor{m: m, h: mat.NewDense(n, m.cfg.EmbeddingDim, nil)}
}

func (m *Model) resume(h *mat.Dense) *cursor {
	return &cursor{m: m, h: mat.DenseCopyOf(h)}
}

// Next implements policy.Cursor.
func (c *cursor) Next(tokens []int) *mat.Dense {
	c.advance(tokens)
	return c.m.probabilities(c.h)
}

func (c *cursor) advance(tokens []int) {
	c.h.Scale(c.m.cfg.Decay, c.h)
	for b, tok := range tokens {
		floats.Add(c.h.RawRowView(b), c.m.emb.RawRowView(tok))
	}
}

// probabilities returns softmax(h·Wᵀ + b) row by row.
func (m *Model) probabilities(h *mat.Dense) *mat.Dense {
	n, _ := h.Dims()
	p := mat.NewDense(n, len(m.bias), nil)
	p.Mul(h, m.out.T())
	for b := 0; b < n; b++ {
		row := p.RawRowView(b)
		floats.Add(row, m.bias)
		softmax(row)
	}
	return p
}

func softmax(row []float64) {
	hi := floats.Max(row)
	var sum float64
	for i, v := range row {
		row[i] = math.Exp(v - hi)
		sum += row[i]
	}
	floats.Scale(1/sum, row)
}

func (m *Model) checkTokens(seqs policy.Sequences, width int) error {
	v := m.voc.Size()
	for b, row := range seqs {
		if len(row) != width {
			return errors.New(errors.ErrCodeGeneratorShape, "sequence has wrong length").
				WithDetail(fmt.Sprintf("row=%d want=%d got=%d", b, width, len(row)))
		}
		for t, tok := range row {
			if tok < 0 || tok >= v {
				return errors.New(errors.ErrCodeGeneratorShape, "token id out of range").
					WithDetail(fmt.Sprintf("row=%d position=%d id=%d", b, t, tok))
			}
		}
	}
	return nil
}

//Personal.AI order the ending
