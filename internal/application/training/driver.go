// Package training drives reinforcement-learning runs: it repeats a policy
// strategy step for a number of epochs, reports every epoch to monitors and
// checkpoints the agent whenever the batch score improves.
package training

import (
	"context"
	"encoding"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/DrugEx/internal/domain/policy"
	"github.com/turtacn/DrugEx/internal/domain/run"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/internal/intelligence/environ"
	"github.com/turtacn/DrugEx/pkg/errors"
)

// Backend selects where the step math runs.  It reaches the environment
// through the driver only.
type Backend struct {
	Device  string
	Threads int
}

// Params are the hyperparameters a run is named and recorded by.
type Params struct {
	Strategy  string
	Epsilon   float64
	Baseline  float64
	BatchSize int
	MC        int
	Draws     int
	Seed      uint64
}

// RunName formats e_<epsilon>_<baseline>_<batch>x<mc>.
func RunName(p Params) string {
	return fmt.Sprintf("e_%.2f_%.1f_%dx%d", p.Epsilon, p.Baseline, p.BatchSize, p.MC)
}

// NewRunID makes a unique id that still sorts by run name.
func NewRunID(p Params) string {
	return RunName(p) + "-" + uuid.New().String()
}

// Locker is the exclusive lease a run holds on its agent.  The redis
// distributed lock satisfies it.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// Config holds the run settings that are not collaborators.
type Config struct {
	Params     Params
	Epochs     int
	Backend    Backend
	SampleTopK int
}

func (c Config) Validate() error {
	if c.Epochs < 1 {
		return errors.Newf(errors.ErrCodeConfigInvalid, "epochs must be >= 1, got %d", c.Epochs)
	}
	if c.Backend.Threads < 0 {
		return errors.Newf(errors.ErrCodeConfigInvalid, "backend threads must be >= 0, got %d", c.Backend.Threads)
	}
	if c.Params.BatchSize < 1 {
		return errors.Newf(errors.ErrCodeConfigInvalid, "batch size must be >= 1, got %d", c.Params.BatchSize)
	}
	return nil
}

// Option customises a Driver.
type Option func(*Driver)

func WithMonitors(monitors ...Monitor) Option {
	return func(d *Driver) { d.monitors = append(d.monitors, monitors...) }
}

func WithCheckpointStore(store CheckpointStore) Option {
	return func(d *Driver) { d.store = store }
}

func WithLock(lock Locker) Option {
	return func(d *Driver) { d.lock = lock }
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(d *Driver) { d.runID = id }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// Driver runs one training run.  A Driver is single-use at a time: Run
// rejects a second concurrent call because the agent is updated in place.
type Driver struct {
	strategy policy.Strategy
	env      policy.Environment
	agent    policy.Generator
	explore  policy.Generator
	cfg      Config

	monitors []Monitor
	store    CheckpointStore
	lock     Locker
	runID    string
	now      func() time.Time
	logger   logging.Logger
	running  atomic.Bool
}

// NewDriver wires a run.  explore may be nil, in which case sampling never
// blends.
func NewDriver(cfg Config, strategy policy.Strategy, env policy.Environment, agent, explore policy.Generator, logger logging.Logger, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strategy == nil || env == nil || agent == nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "strategy, environment and agent are required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	d := &Driver{
		strategy: strategy,
		env:      env,
		agent:    agent,
		explore:  explore,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger.Named("training"),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.store != nil {
		if _, ok := agent.(encoding.BinaryMarshaler); !ok {
			return nil, errors.New(errors.ErrCodeConfigInvalid, "checkpointing requires an agent that can be encoded")
		}
	}
	if d.runID == "" {
		d.runID = NewRunID(cfg.Params)
	}
	return d, nil
}

// RunID returns the id of the run this driver records.
func (d *Driver) RunID() string { return d.runID }

// Run trains for the configured number of epochs.  Cancelling ctx stops the
// run before the next step; a step in progress always completes so the agent
// is never left half-updated.  The returned run is non-nil whenever the lock
// was acquired, also on error.
func (d *Driver) Run(ctx context.Context) (*run.Run, error) {
	if !d.running.CompareAndSwap(false, true) {
		return nil, errors.New(errors.ErrCodeConflict, "driver is already running")
	}
	defer d.running.Store(false)

	p := d.cfg.Params
	r := &run.Run{
		ID:        d.runID,
		Name:      RunName(p),
		Strategy:  d.strategy.Name(),
		Epsilon:   p.Epsilon,
		Baseline:  p.Baseline,
		BatchSize: p.BatchSize,
		MC:        p.MC,
		Draws:     p.Draws,
		Epochs:    d.cfg.Epochs,
		Seed:      p.Seed,
		Status:    run.StatusRunning,
		StartedAt: d.now().UTC(),
	}

	ctx = logging.ContextWithFields(ctx,
		logging.String("run_id", r.ID),
		logging.String("strategy", r.Strategy),
	)
	log := d.logger.WithContext(ctx)

	if d.lock != nil {
		if err := d.lock.Lock(ctx); err != nil {
			if errors.IsCode(err, errors.ErrCodeRunLocked) {
				return nil, err
			}
			return nil, errors.Wrap(err, errors.ErrCodeRunLocked, "failed to acquire run lock").WithDetail(r.Name)
		}
		defer func() {
			unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := d.lock.Unlock(unlockCtx); err != nil {
				log.Warn("Failed to release run lock", logging.Err(err))
			}
		}()
	}

	if d.cfg.Backend.Threads > 0 {
		if environ.SetParallelism(d.env, d.cfg.Backend.Threads) {
			log.Debug("Environment parallelism set", logging.Int("threads", d.cfg.Backend.Threads))
		}
	}

	log.Info("Training run started",
		logging.String("name", r.Name),
		logging.Int("epochs", r.Epochs),
		logging.String("device", d.cfg.Backend.Device),
	)
	d.notify(log, "run_start", func(m Monitor) error { return m.OnRunStart(ctx, r) })

	runErr := d.loop(ctx, r, log)

	status := run.StatusCompleted
	switch {
	case runErr == nil:
	case errors.IsCode(runErr, errors.ErrCodeTrainingInterrupted):
		status = run.StatusInterrupted
	default:
		status = run.StatusFailed
	}
	r.Finish(status, d.now().UTC(), runErr)

	endCtx := context.WithoutCancel(ctx)
	d.notify(log, "run_end", func(m Monitor) error { return m.OnRunEnd(endCtx, r) })

	if runErr != nil {
		log.Warn("Training run stopped",
			logging.String("status", string(r.Status)),
			logging.Err(runErr),
		)
		return r, runErr
	}
	log.Info("Training run completed",
		logging.Float64("best_score", r.BestScore),
		logging.Int("best_epoch", r.BestEpoch),
	)
	return r, nil
}

func (d *Driver) loop(ctx context.Context, r *run.Run, log logging.Logger) error {
	stepCtx := context.WithoutCancel(ctx)
	best := 0.0

	for epoch := 1; epoch <= d.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrCodeTrainingInterrupted, "training interrupted").
				WithDetail(fmt.Sprintf("before epoch %d", epoch))
		}
		epochCtx := logging.ContextWithFields(stepCtx, logging.Int("epoch", epoch))

		start := d.now()
		res, err := d.strategy.Step(epochCtx, d.env, d.agent, d.explore)
		if err != nil {
			return err
		}
		elapsed := d.now().Sub(start)

		st := summarize(r.ID, epoch, res)
		rep := &EpochReport{
			Run:     r,
			Epoch:   newEpoch(r, epoch, res, st, elapsed, d.now().UTC()),
			Result:  res,
			Samples: topSamples(st.unique, d.cfg.SampleTopK),
		}

		if st.meanScore > best {
			best = st.meanScore
			r.BestScore = best
			r.BestEpoch = epoch
			if d.store != nil {
				rep.Checkpoint = d.checkpoint(epochCtx, r, epoch)
				rep.Epoch.Checkpointed = rep.Checkpoint.Err == nil
			}
		}

		d.notify(log, "epoch", func(m Monitor) error { return m.OnEpoch(epochCtx, rep) })
	}
	return nil
}

func (d *Driver) checkpoint(ctx context.Context, r *run.Run, epoch int) *CheckpointResult {
	res := &CheckpointResult{Store: d.store.Kind()}
	res.Location, res.Err = d.store.Save(ctx, r.Name, epoch, d.agent.(encoding.BinaryMarshaler))
	if res.Err != nil {
		d.logger.WithContext(ctx).Error("Checkpoint failed", logging.Err(res.Err))
	}
	return res
}

// notify calls fn for every monitor.  Monitor failures are logged only.
func (d *Driver) notify(log logging.Logger, hook string, fn func(Monitor) error) {
	for _, m := range d.monitors {
		if err := fn(m); err != nil {
			log.Warn("Monitor failed",
				logging.String("monitor", m.Name()),
				logging.String("hook", hook),
				logging.Err(err),
			)
		}
	}
}

//Personal.AI order the ending
