package prometheus

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrainingMetrics_AllRegistered(t *testing.T) {
	c := newTestCollector(t)
	m := NewTrainingMetrics(c)
	require.NotNil(t, m)

	assert.NotNil(t, m.EpochsTotal)
	assert.NotNil(t, m.StepDuration)
	assert.NotNil(t, m.EnvScoreDuration)
	assert.NotNil(t, m.CheckpointsTotal)

	// Registering twice on one collector reuses the series.
	assert.NotPanics(t, func() { NewTrainingMetrics(c) })
}

func TestRecordStep(t *testing.T) {
	c := newTestCollector(t)
	m := NewTrainingMetrics(c)

	m.RecordStep("rollout", 2*time.Second, 0.75, 0.5, 0.4, -1.25, 6, 2, 30)
	m.RecordStep("rollout", time.Second, 0.5, 0.25, 0.15, -0.5, 4, 4, 20)

	out := scrapeMetrics(t, c)
	assertSample(t, out, `test_unit_epochs_total{strategy="rollout"}`, "2")
	assertSample(t, out, `test_unit_valid_rate{strategy="rollout"}`, "0.5")
	assertSample(t, out, `test_unit_mean_score{strategy="rollout"}`, "0.25")
	assertSample(t, out, `test_unit_mean_reward{strategy="rollout"}`, "0.15")
	assertSample(t, out, `test_unit_loss{strategy="rollout"}`, "-0.5")
	assertSample(t, out, `test_unit_sampled_molecules_total{strategy="rollout",valid="true"}`, "10")
	assertSample(t, out, `test_unit_sampled_molecules_total{strategy="rollout",valid="false"}`, "6")
	assertSample(t, out, `test_unit_rollout_samples_total{strategy="rollout"}`, "50")
	assertSample(t, out, `test_unit_step_duration_seconds_count{strategy="rollout"}`, "2")
	assertSample(t, out, `test_unit_step_duration_seconds_sum{strategy="rollout"}`, "3")
}

func TestRecordStep_PGHasNoRolloutSeries(t *testing.T) {
	c := newTestCollector(t)
	NewTrainingMetrics(c).RecordStep("pg", time.Second, 1, 1, 1, 0, 4, 0, 0)

	assert.NotContains(t, scrapeMetrics(t, c), `test_unit_rollout_samples_total{strategy="pg"}`)
}

func TestRecordEnvScore(t *testing.T) {
	c := newTestCollector(t)
	m := NewTrainingMetrics(c)

	m.RecordEnvScore(64, 250*time.Millisecond, nil)
	m.RecordEnvScore(8, time.Millisecond, stderrors.New("model missing"))

	out := scrapeMetrics(t, c)
	assertSample(t, out, `test_unit_env_molecules_total{status="success"}`, "64")
	assertSample(t, out, `test_unit_env_molecules_total{status="error"}`, "8")
	assertSample(t, out, "test_unit_env_errors_total", "1")
	assertSample(t, out, `test_unit_env_score_duration_seconds_count{status="success"}`, "1")
}

func TestRecordCheckpointAndEvent(t *testing.T) {
	c := newTestCollector(t)
	m := NewTrainingMetrics(c)

	m.RecordCheckpoint("minio", nil)
	m.RecordCheckpoint("file", stderrors.New("disk full"))
	m.RecordEvent("drugex.training.epoch", nil)
	m.RecordEvent("drugex.training.epoch", stderrors.New("broker down"))

	out := scrapeMetrics(t, c)
	assertSample(t, out, `test_unit_checkpoints_total{status="success",store="minio"}`, "1")
	assertSample(t, out, `test_unit_checkpoints_total{status="error",store="file"}`, "1")
	assertSample(t, out, `test_unit_events_published_total{topic="drugex.training.epoch"}`, "1")
	assertSample(t, out, `test_unit_event_publish_errors_total{topic="drugex.training.epoch"}`, "1")
}

func TestTrackRun(t *testing.T) {
	c := newTestCollector(t)
	m := NewTrainingMetrics(c)

	done := m.TrackRun()
	assertSample(t, scrapeMetrics(t, c), "test_unit_active_runs", "1")
	done()
	assertSample(t, scrapeMetrics(t, c), "test_unit_active_runs", "0")
}

//Personal.AI order the ending
