package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Whole-sequence REINFORCE
// ─────────────────────────────────────────────────────────────────────────────

// PGConfig holds the hyperparameters of a PG step.
type PGConfig struct {
	BatchSize int
	// Epsilon is the per-step probability of drawing from the exploration
	// network.
	Epsilon float64
	// Draws is the sampling multiplicity: the number of exploration draws
	// averaged per sampled step.  It is unrelated to RolloutConfig.Repeats.
	Draws    int
	Baseline float64
}

// Validate checks the configuration.
func (c PGConfig) Validate() error {
	if c.BatchSize <= 0 {
		return errors.New(errors.ErrCodePolicyConfig, "batch size must be positive")
	}
	if c.Epsilon < 0 || c.Epsilon > 1 {
		return errors.New(errors.ErrCodePolicyConfig, "epsilon must be in [0, 1]").
			WithDetail(fmt.Sprintf("epsilon=%g", c.Epsilon))
	}
	if c.Draws < 0 {
		return errors.New(errors.ErrCodePolicyConfig, "draws must not be negative")
	}
	return nil
}

// PG trains on one scalar reward per sampled sequence.
type PG struct {
	cfg     PGConfig
	checker Checker
	logger  logging.Logger
}

// NewPG creates a PG strategy.
func NewPG(cfg PGConfig, checker Checker, logger logging.Logger) (*PG, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if checker == nil {
		return nil, errors.New(errors.ErrCodePolicyConfig, "checker is required")
	}
	if cfg.Draws == 0 {
		cfg.Draws = 1
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &PG{cfg: cfg, checker: checker, logger: logger.Named("pg")}, nil
}

// Name implements Strategy.
func (p *PG) Name() string { return "pg" }

// Config returns the strategy configuration.
func (p *PG) Config() PGConfig { return p.cfg }

// Step samples a batch, scores it with one environment call and applies one
// policy update per mini-batch of BatchSize rows.  Invalid molecules train
// with an advantage of -Baseline.
func (p *PG) Step(ctx context.Context, env Environment, agent, explore Generator) (*StepResult, error) {
	start := time.Now()

	seqs, err := agent.Sample(ctx, SampleRequest{
		N:       p.cfg.BatchSize,
		Explore: explore,
		Epsilon: p.cfg.Epsilon,
		Draws:   p.cfg.Draws,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePolicyGeneratorCall, "sampling failed")
	}
	if err := checkBatch(seqs, p.cfg.BatchSize, agent.MaxLen()); err != nil {
		return nil, err
	}

	ev, err := evaluate(ctx, p.checker, env, seqs)
	if err != nil {
		return nil, err
	}
	advantages := shapeWholeSequence(ev.scores, ev.valid, p.cfg.Baseline)

	var total float64
	batches := 0
	for lo := 0; lo < len(seqs); lo += p.cfg.BatchSize {
		hi := lo + p.cfg.BatchSize
		if hi > len(seqs) {
			hi = len(seqs)
		}
		loss, err := agent.PolicyUpdate(ctx, seqs[lo:hi], advantages[lo:hi])
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodePolicyGeneratorCall, "policy update failed")
		}
		total += loss
		batches++
	}

	res := &StepResult{
		Status:    StatusOK,
		Strategy:  p.Name(),
		Sequences: seqs,
		SMILES:    ev.smiles,
		Valid:     ev.valid,
		ValidRate: validRate(ev.valid),
		Scores:    ev.scores,
		Rewards:   advantages,
		Loss:      total / float64(batches),
	}
	p.logger.WithContext(ctx).Debug("pg step finished",
		logging.Float64("valid_rate", res.ValidRate),
		logging.Float64("loss", res.Loss),
		logging.Duration("duration", time.Since(start)),
	)
	return res, nil
}

//Personal.AI order the ending
