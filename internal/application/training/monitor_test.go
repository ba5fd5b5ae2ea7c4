package training

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DrugEx/internal/domain/run"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DrugEx/internal/testutil"
)

func sampleReport() *EpochReport {
	r := &run.Run{ID: "run-1", Name: "e_0.10_0.1_2x1", Strategy: "rollout", BatchSize: 2, Status: run.StatusRunning}
	res := result([]string{"CCO", "CCN", "XX"}, []float64{0.4, 0.6, 0}, 2)
	res.Strategy = "rollout"
	res.RolloutCalls = 12
	return &EpochReport{
		Run: r,
		Epoch: run.Epoch{
			RunID: r.ID, Epoch: 3, Strategy: "rollout", ValidRate: res.ValidRate,
			MeanScore: 0.5, MeanReward: 0.4, Loss: -0.25, RolloutCalls: 12, Duration: time.Second,
		},
		Result:     res,
		Samples:    []run.Sample{{RunID: r.ID, Epoch: 3, SMILES: "CCN", Score: 0.6, Valid: true}},
		Checkpoint: &CheckpointResult{Store: "file", Location: "/tmp/agent.json"},
	}
}

func TestLogMonitor(t *testing.T) {
	logger := testutil.NewMockLogger()
	m := NewLogMonitor(logger)
	ctx := logging.ContextWithFields(context.Background(), logging.String("run_id", "run-1"))

	require.NoError(t, m.OnRunStart(ctx, &run.Run{}))
	require.NoError(t, m.OnEpoch(ctx, sampleReport()))

	entry := logger.Find("info", "Epoch completed")
	require.NotNil(t, entry)
	assert.Equal(t, 3, entry.Field("epoch"))
	assert.Equal(t, 12, entry.Field("rollout_calls"))
	assert.Equal(t, "/tmp/agent.json", entry.Field("checkpoint"))
	assert.Equal(t, "run-1", entry.Field("run_id"))

	require.NoError(t, m.OnRunEnd(ctx, &run.Run{Status: run.StatusCompleted, BestEpoch: 3}))
	assert.True(t, logger.HasMessage("info", "Run summary"))
}

func TestMetricsMonitor(t *testing.T) {
	c, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "test", Subsystem: "train"}, logging.NewNopLogger())
	require.NoError(t, err)
	m := NewMetricsMonitor(prometheus.NewTrainingMetrics(c))
	rep := sampleReport()

	require.NoError(t, m.OnRunStart(context.Background(), rep.Run))
	require.NoError(t, m.OnRunStart(context.Background(), rep.Run), "a repeated start is tracked once")
	assert.Contains(t, scrape(t, c), "test_train_active_runs 1\n")

	require.NoError(t, m.OnEpoch(context.Background(), rep))
	out := scrape(t, c)
	assert.Contains(t, out, `test_train_epochs_total{strategy="rollout"} 1`)
	assert.Contains(t, out, `test_train_sampled_molecules_total{strategy="rollout",valid="true"} 2`)
	assert.Contains(t, out, `test_train_sampled_molecules_total{strategy="rollout",valid="false"} 1`)
	assert.Contains(t, out, `test_train_checkpoints_total{status="success",store="file"} 1`)

	require.NoError(t, m.OnRunEnd(context.Background(), rep.Run))
	require.NoError(t, m.OnRunEnd(context.Background(), rep.Run))
	assert.Contains(t, scrape(t, c), "test_train_active_runs 0\n")
}

func scrape(t *testing.T, c prometheus.MetricsCollector) string {
	t.Helper()
	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestRecordMonitor(t *testing.T) {
	repo := newMemRunRepo()
	m := NewRecordMonitor(repo)
	rep := sampleReport()
	ctx := context.Background()

	require.NoError(t, m.OnRunStart(ctx, rep.Run))
	require.NoError(t, m.OnEpoch(ctx, rep))
	rep.Run.Finish(run.StatusCompleted, time.Now(), nil)
	require.NoError(t, m.OnRunEnd(ctx, rep.Run))

	stored, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.StatusCompleted, stored.Status)
	epochs, _ := repo.ListEpochs(ctx, "run-1", 0, 0)
	require.Len(t, epochs, 1)
	assert.Equal(t, 3, epochs[0].Epoch)
}

func TestSampleMonitor(t *testing.T) {
	repo := &memSampleRepo{}
	m := NewSampleMonitor(repo, testutil.NewMockLogger())

	require.NoError(t, m.OnEpoch(context.Background(), sampleReport()))
	require.Len(t, repo.saved, 1)
	assert.Equal(t, "CCN", repo.saved[0].SMILES)

	require.NoError(t, m.OnEpoch(context.Background(), &EpochReport{}), "empty epochs write nothing")
	assert.Len(t, repo.saved, 1)

	repo.err = assert.AnError
	assert.ErrorIs(t, m.OnEpoch(context.Background(), sampleReport()), assert.AnError)
}

func TestMonitorNames(t *testing.T) {
	names := []string{}
	for _, m := range []Monitor{
		NewLogMonitor(logging.NewNopLogger()),
		NewMetricsMonitor(nil),
		NewRecordMonitor(nil),
		NewSampleMonitor(nil, nil),
		NewEventMonitor(nil, "", "", nil),
	} {
		names = append(names, m.Name())
	}
	assert.Equal(t, "log,metrics,record,samples,events", strings.Join(names, ","))
}

//Personal.AI order the ending
