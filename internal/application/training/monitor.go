package training

import (
	"context"
	"sync"

	"github.com/turtacn/DrugEx/internal/domain/run"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/prometheus"
)

// Monitor observes a run.  Errors are logged by the driver and never stop
// training.
type Monitor interface {
	Name() string
	OnRunStart(ctx context.Context, r *run.Run) error
	OnEpoch(ctx context.Context, rep *EpochReport) error
	OnRunEnd(ctx context.Context, r *run.Run) error
}

// NopMonitor implements every hook as a no-op; embed it to implement only
// the hooks you need.
type NopMonitor struct{}

func (NopMonitor) OnRunStart(context.Context, *run.Run) error  { return nil }
func (NopMonitor) OnEpoch(context.Context, *EpochReport) error { return nil }
func (NopMonitor) OnRunEnd(context.Context, *run.Run) error    { return nil }

// ─────────────────────────────────────────────────────────────────────────────
// LogMonitor
// ─────────────────────────────────────────────────────────────────────────────

// LogMonitor writes one structured line per epoch.
type LogMonitor struct {
	NopMonitor
	logger logging.Logger
}

func NewLogMonitor(logger logging.Logger) *LogMonitor {
	return &LogMonitor{logger: logger}
}

func (m *LogMonitor) Name() string { return "log" }

func (m *LogMonitor) OnEpoch(ctx context.Context, rep *EpochReport) error {
	e := rep.Epoch
	fields := []logging.Field{
		logging.Int("epoch", e.Epoch),
		logging.Float64("valid_rate", e.ValidRate),
		logging.Float64("unique_rate", e.UniqueRate),
		logging.Float64("mean_score", e.MeanScore),
		logging.Float64("mean_reward", e.MeanReward),
		logging.Float64("loss", e.Loss),
		logging.Duration("duration", e.Duration),
	}
	if e.RolloutCalls > 0 {
		fields = append(fields, logging.Int("rollout_calls", e.RolloutCalls))
	}
	if c := rep.Checkpoint; c != nil && c.Err == nil {
		fields = append(fields, logging.String("checkpoint", c.Location))
	}
	m.logger.WithContext(ctx).Info("Epoch completed", fields...)
	return nil
}

func (m *LogMonitor) OnRunEnd(ctx context.Context, r *run.Run) error {
	m.logger.WithContext(ctx).Info("Run summary",
		logging.String("status", string(r.Status)),
		logging.Float64("best_score", r.BestScore),
		logging.Int("best_epoch", r.BestEpoch),
	)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// MetricsMonitor
// ─────────────────────────────────────────────────────────────────────────────

// MetricsMonitor feeds the prometheus training metrics.
type MetricsMonitor struct {
	metrics *prometheus.TrainingMetrics

	mu   sync.Mutex
	done map[string]func()
}

func NewMetricsMonitor(metrics *prometheus.TrainingMetrics) *MetricsMonitor {
	return &MetricsMonitor{metrics: metrics, done: make(map[string]func())}
}

func (m *MetricsMonitor) Name() string { return "metrics" }

func (m *MetricsMonitor) OnRunStart(_ context.Context, r *run.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.done[r.ID]; !ok {
		m.done[r.ID] = m.metrics.TrackRun()
	}
	return nil
}

func (m *MetricsMonitor) OnEpoch(_ context.Context, rep *EpochReport) error {
	e := rep.Epoch
	valid, invalid := 0, 0
	if rep.Result != nil {
		for _, ok := range rep.Result.Valid {
			if ok {
				valid++
			} else {
				invalid++
			}
		}
	}
	m.metrics.RecordStep(e.Strategy, e.Duration, e.ValidRate, e.MeanScore, e.MeanReward, e.Loss, valid, invalid, e.RolloutCalls)
	if c := rep.Checkpoint; c != nil {
		m.metrics.RecordCheckpoint(c.Store, c.Err)
	}
	return nil
}

func (m *MetricsMonitor) OnRunEnd(_ context.Context, r *run.Run) error {
	m.mu.Lock()
	done, ok := m.done[r.ID]
	delete(m.done, r.ID)
	m.mu.Unlock()
	if ok {
		done()
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// RecordMonitor
// ─────────────────────────────────────────────────────────────────────────────

// RecordMonitor writes the run and its epochs straight to the run
// repository.  It is used when no event bus sits between trainer and store.
type RecordMonitor struct {
	repo run.RunRepository
}

func NewRecordMonitor(repo run.RunRepository) *RecordMonitor {
	return &RecordMonitor{repo: repo}
}

func (m *RecordMonitor) Name() string { return "record" }

func (m *RecordMonitor) OnRunStart(ctx context.Context, r *run.Run) error {
	return m.repo.CreateRun(ctx, r)
}

func (m *RecordMonitor) OnEpoch(ctx context.Context, rep *EpochReport) error {
	e := rep.Epoch
	return m.repo.RecordEpoch(ctx, &e)
}

func (m *RecordMonitor) OnRunEnd(ctx context.Context, r *run.Run) error {
	return m.repo.FinishRun(ctx, r)
}

// ─────────────────────────────────────────────────────────────────────────────
// SampleMonitor
// ─────────────────────────────────────────────────────────────────────────────

// SampleMonitor stores the best molecules of every epoch.
type SampleMonitor struct {
	NopMonitor
	repo   run.SampleRepository
	logger logging.Logger
}

func NewSampleMonitor(repo run.SampleRepository, logger logging.Logger) *SampleMonitor {
	return &SampleMonitor{repo: repo, logger: logger}
}

func (m *SampleMonitor) Name() string { return "samples" }

func (m *SampleMonitor) OnEpoch(ctx context.Context, rep *EpochReport) error {
	if len(rep.Samples) == 0 {
		return nil
	}
	n, err := m.repo.SaveSamples(ctx, rep.Samples)
	if err != nil {
		return err
	}
	m.logger.WithContext(ctx).Debug("Epoch samples stored", logging.Int64("rows", n))
	return nil
}

//Personal.AI order the ending
