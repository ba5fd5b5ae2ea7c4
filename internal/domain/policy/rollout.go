package policy

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Monte-Carlo rollout
// ─────────────────────────────────────────────────────────────────────────────

// RolloutConfig holds the hyperparameters of a Rollout step.
type RolloutConfig struct {
	BatchSize int
	Epsilon   float64
	// Repeats is the number of independent rollout passes averaged into the
	// per-token reward.
	Repeats  int
	Baseline float64
}

// Validate checks the configuration.
func (c RolloutConfig) Validate() error {
	if c.BatchSize <= 0 {
		return errors.New(errors.ErrCodePolicyConfig, "batch size must be positive")
	}
	if c.Repeats <= 0 {
		return errors.New(errors.ErrCodePolicyConfig, "rollout repeats must be positive")
	}
	if c.Epsilon < 0 || c.Epsilon > 1 {
		return errors.New(errors.ErrCodePolicyConfig, "epsilon must be in [0, 1]").
			WithDetail(fmt.Sprintf("epsilon=%g", c.Epsilon))
	}
	return nil
}

// Decision is the per-position choice of a rollout pass.
type Decision int

const (
	// DecisionReuse reuses the full-sequence reward because every row has
	// already terminated.
	DecisionReuse Decision = iota
	// DecisionRollout completes every row from the next position and scores
	// the completions.
	DecisionRollout
)

func (d Decision) String() string {
	switch d {
	case DecisionRollout:
		return "ROLLOUT"
	case DecisionReuse:
		return "REUSE"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Decide returns DecisionRollout when any row holds a non-terminator token at
// column pos.
func Decide(seqs Sequences, pos int) Decision {
	for _, row := range seqs {
		if row[pos] != EOS {
			return DecisionRollout
		}
	}
	return DecisionReuse
}

// Rollout trains on a per-token reward estimated by completing every prefix
// with the agent.
type Rollout struct {
	cfg     RolloutConfig
	checker Checker
	logger  logging.Logger
}

// NewRollout creates a Rollout strategy.
func NewRollout(cfg RolloutConfig, checker Checker, logger logging.Logger) (*Rollout, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if checker == nil {
		return nil, errors.New(errors.ErrCodePolicyConfig, "checker is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Rollout{cfg: cfg, checker: checker, logger: logger.Named("rollout")}, nil
}

// Name implements Strategy.
func (r *Rollout) Name() string { return "rollout" }

// Config returns the strategy configuration.
func (r *Rollout) Config() RolloutConfig { return r.cfg }

// Step samples one batch and, for Repeats passes over every position i,
// either completes all rows from i+1 and scores the completions or, when all
// rows terminated before i, reuses the batch rewards.  The averaged N×L reward
// matrix drives one optimizer step.  Invalid molecules are rewarded
// -Baseline at every depth.
func (r *Rollout) Step(ctx context.Context, env Environment, agent, explore Generator) (*StepResult, error) {
	start := time.Now()
	agent.ZeroGrad()

	seqs, err := agent.Sample(ctx, SampleRequest{
		N:       r.cfg.BatchSize,
		Explore: explore,
		Epsilon: r.cfg.Epsilon,
		Draws:   1,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePolicyGeneratorCall, "sampling failed")
	}
	seqLen := agent.MaxLen()
	if err := checkBatch(seqs, r.cfg.BatchSize, seqLen); err != nil {
		return nil, err
	}
	n := len(seqs)

	ev, err := evaluate(ctx, r.checker, env, seqs)
	if err != nil {
		return nil, err
	}
	base := shapeRollout(ev.scores, ev.valid, r.cfg.Baseline)

	lik, err := agent.Likelihood(ctx, seqs)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePolicyGeneratorCall, "likelihood failed")
	}
	if lik.Len() != seqLen {
		return nil, errors.New(errors.ErrCodePolicyGeneratorCall, "likelihood trace has wrong length").
			WithDetail(fmt.Sprintf("want=%d got=%d", seqLen, lik.Len()))
	}

	rewards := mat.NewDense(n, seqLen, nil)
	calls := 0
	for rep := 0; rep < r.cfg.Repeats; rep++ {
		for i := 0; i < seqLen; i++ {
			var tail []float64
			switch Decide(seqs, i) {
			case DecisionRollout:
				tail, err = r.rollout(ctx, env, agent, seqs, lik, i)
				if err != nil {
					return nil, err
				}
				calls++
			case DecisionReuse:
				tail = base
			}
			for b, v := range tail {
				rewards.Set(b, i, rewards.At(b, i)+v)
			}
		}
	}
	rewards.Scale(1/float64(r.cfg.Repeats), rewards)

	loss, err := agent.PGLoss(ctx, lik, seqs, rewards)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePolicyGeneratorCall, "policy-gradient loss failed")
	}
	if err := loss.Backward(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePolicyGeneratorCall, "backward pass failed")
	}
	if err := agent.Step(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePolicyGeneratorCall, "optimizer step failed")
	}

	res := &StepResult{
		Status:       StatusOK,
		Strategy:     r.Name(),
		Sequences:    seqs,
		SMILES:       ev.smiles,
		Valid:        ev.valid,
		ValidRate:    validRate(ev.valid),
		Scores:       ev.scores,
		Rewards:      base,
		TokenRewards: rewards,
		RolloutCalls: calls,
		Loss:         loss.Value(),
	}
	r.logger.WithContext(ctx).Debug("rollout step finished",
		logging.Float64("valid_rate", res.ValidRate),
		logging.Int("rollout_calls", calls),
		logging.Float64("loss", res.Loss),
		logging.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// rollout completes every row from position pos+1, keeping positions 0..pos,
// and returns the shaped rewards of the completed rows.
func (r *Rollout) rollout(ctx context.Context, env Environment, agent Generator, seqs Sequences, lik Likelihood, pos int) ([]float64, error) {
	n, seqLen := len(seqs), agent.MaxLen()
	prefix := make(Sequences, n)
	for b, row := range seqs {
		prefix[b] = row[:pos+1]
	}

	tails, err := agent.Sample(ctx, SampleRequest{
		N: n,
		Continuation: &Continuation{
			Prefix: prefix,
			Hidden: lik.Hidden(pos),
			Start:  pos + 1,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePolicyGeneratorCall, "rollout sampling failed").
			WithDetail(fmt.Sprintf("position=%d", pos))
	}
	if err := checkBatch(tails, n, seqLen-pos-1); err != nil {
		return nil, err
	}

	full := make(Sequences, n)
	for b := range seqs {
		row := make([]int, 0, seqLen)
		row = append(row, prefix[b]...)
		full[b] = append(row, tails[b]...)
	}

	ev, err := evaluate(ctx, r.checker, env, full)
	if err != nil {
		return nil, err
	}
	return shapeRollout(ev.scores, ev.valid, r.cfg.Baseline), nil
}

//Personal.AI order the ending
