package prometheus

import (
	"time"
)

// TrainingMetrics holds the metrics of a reinforcement-learning run.  Every
// series carries the strategy name so pg and rollout runs can share one
// dashboard.
type TrainingMetrics struct {
	EpochsTotal        CounterVec
	StepDuration       HistogramVec
	ValidRate          GaugeVec
	MeanReward         GaugeVec
	MeanScore          GaugeVec
	Loss               GaugeVec
	RolloutCallsTotal  CounterVec
	SamplesTotal       CounterVec
	CheckpointsTotal   CounterVec
	EnvScoreDuration   HistogramVec
	EnvMoleculesTotal  CounterVec
	EnvErrorsTotal     CounterVec
	EventsPublished    CounterVec
	EventPublishErrors CounterVec
	ActiveRuns         GaugeVec
}

var (
	DefaultStepDurationBuckets  = []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}
	DefaultScoreDurationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
)

func NewTrainingMetrics(c MetricsCollector) *TrainingMetrics {
	return &TrainingMetrics{
		EpochsTotal:        c.RegisterCounter("epochs_total", "Completed training epochs", "strategy"),
		StepDuration:       c.RegisterHistogram("step_duration_seconds", "Wall time of one training step", DefaultStepDurationBuckets, "strategy"),
		ValidRate:          c.RegisterGauge("valid_rate", "Fraction of valid molecules in the last sampled batch", "strategy"),
		MeanReward:         c.RegisterGauge("mean_reward", "Mean shaped reward of the last sampled batch", "strategy"),
		MeanScore:          c.RegisterGauge("mean_score", "Mean environment score of the last sampled batch", "strategy"),
		Loss:               c.RegisterGauge("loss", "Policy-gradient loss of the last step", "strategy"),
		RolloutCallsTotal:  c.RegisterCounter("rollout_samples_total", "Continuation samples drawn by rollout steps", "strategy"),
		SamplesTotal:       c.RegisterCounter("sampled_molecules_total", "Molecules sampled by training steps", "strategy", "valid"),
		CheckpointsTotal:   c.RegisterCounter("checkpoints_total", "Agent checkpoints written", "store", "status"),
		EnvScoreDuration:   c.RegisterHistogram("env_score_duration_seconds", "Environment scoring latency per batch", DefaultScoreDurationBuckets, "status"),
		EnvMoleculesTotal:  c.RegisterCounter("env_molecules_total", "Molecules submitted to the environment", "status"),
		EnvErrorsTotal:     c.RegisterCounter("env_errors_total", "Failed environment scoring calls"),
		EventsPublished:    c.RegisterCounter("events_published_total", "Training events published", "topic"),
		EventPublishErrors: c.RegisterCounter("event_publish_errors_total", "Training events that failed to publish", "topic"),
		ActiveRuns:         c.RegisterGauge("active_runs", "Training runs in progress in this process"),
	}
}

// RecordStep records one finished training step.
func (m *TrainingMetrics) RecordStep(strategy string, elapsed time.Duration, validRate, meanScore, meanReward, loss float64, valid, invalid, rolloutCalls int) {
	m.EpochsTotal.WithLabelValues(strategy).Inc()
	m.StepDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	m.ValidRate.WithLabelValues(strategy).Set(validRate)
	m.MeanScore.WithLabelValues(strategy).Set(meanScore)
	m.MeanReward.WithLabelValues(strategy).Set(meanReward)
	m.Loss.WithLabelValues(strategy).Set(loss)
	m.SamplesTotal.WithLabelValues(strategy, "true").Add(float64(valid))
	m.SamplesTotal.WithLabelValues(strategy, "false").Add(float64(invalid))
	if rolloutCalls > 0 {
		m.RolloutCallsTotal.WithLabelValues(strategy).Add(float64(rolloutCalls))
	}
}

// RecordEnvScore records one environment call.  It satisfies the recorder of
// the instrumented environment.
func (m *TrainingMetrics) RecordEnvScore(molecules int, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		m.EnvErrorsTotal.WithLabelValues().Inc()
	}
	m.EnvScoreDuration.WithLabelValues(status).Observe(elapsed.Seconds())
	m.EnvMoleculesTotal.WithLabelValues(status).Add(float64(molecules))
}

func (m *TrainingMetrics) RecordCheckpoint(store string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.CheckpointsTotal.WithLabelValues(store, status).Inc()
}

func (m *TrainingMetrics) RecordEvent(topic string, err error) {
	if err != nil {
		m.EventPublishErrors.WithLabelValues(topic).Inc()
		return
	}
	m.EventsPublished.WithLabelValues(topic).Inc()
}

// TrackRun increments the active-run gauge and returns the matching
// decrement.
func (m *TrainingMetrics) TrackRun() func() {
	m.ActiveRuns.WithLabelValues().Inc()
	return func() { m.ActiveRuns.WithLabelValues().Dec() }
}

//Personal.AI order the ending
