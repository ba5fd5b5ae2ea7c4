package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/pkg/errors"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", Subsystem: "unit"}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func scrapeMetrics(t *testing.T, collector MetricsCollector) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

// assertSample checks that the exposition contains the exact sample line.
func assertSample(t *testing.T, output, series, value string) {
	t.Helper()
	for _, line := range strings.Split(output, "\n") {
		if line == series+" "+value {
			return
		}
	}
	t.Errorf("sample %q %s not found in:\n%s", series, value, output)
}

func TestNewMetricsCollector_EmptyNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{Subsystem: "unit"}, logging.NewNopLogger())
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfigInvalid))
}

func TestNewMetricsCollector_WithProcessMetrics(t *testing.T) {
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", EnableProcessMetrics: true, EnableGoMetrics: true}, nil)
	require.NoError(t, err)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, "go_goroutines")
}

func TestRegisterCounter_WithLabels(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("epochs", "Epochs", "strategy").WithLabelValues("pg").Add(5)

	assertSample(t, scrapeMetrics(t, c), `test_unit_epochs{strategy="pg"}`, "5")
}

func TestRegisterCounter_Duplicate(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("dup_counter", "help").WithLabelValues().Inc()
	c.RegisterCounter("dup_counter", "help").WithLabelValues().Inc()

	assertSample(t, scrapeMetrics(t, c), "test_unit_dup_counter", "2")
}

func TestRegisterCounterFunc(t *testing.T) {
	c := newTestCollector(t)
	var sent float64
	c.RegisterCounterFunc("messages_total", "Messages", "outcome", func() map[string]float64 {
		return map[string]float64{"sent": sent, "failed": 1}
	})

	sent = 3
	out := scrapeMetrics(t, c)
	assertSample(t, out, `test_unit_messages_total{outcome="sent"}`, "3")
	assertSample(t, out, `test_unit_messages_total{outcome="failed"}`, "1")

	sent = 4
	assertSample(t, scrapeMetrics(t, c), `test_unit_messages_total{outcome="sent"}`, "4")

	c.RegisterCounterFunc("messages_total", "Messages", "outcome", func() map[string]float64 {
		return map[string]float64{"sent": 100}
	})
	assertSample(t, scrapeMetrics(t, c), `test_unit_messages_total{outcome="sent"}`, "4")

	c.RegisterCounterFunc("bytes_total", "Bytes", "", func() map[string]float64 {
		return map[string]float64{"": 512}
	})
	assertSample(t, scrapeMetrics(t, c), "test_unit_bytes_total", "512")
}

func TestRegisterGauge(t *testing.T) {
	c := newTestCollector(t)
	g := c.RegisterGauge("active_runs", "Active runs")
	g.WithLabelValues().Inc()
	g.WithLabelValues().Inc()
	g.WithLabelValues().Dec()

	assertSample(t, scrapeMetrics(t, c), "test_unit_active_runs", "1")
}

func TestRegisterHistogram_DefaultBuckets(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterHistogram("latency", "Latency", nil).WithLabelValues().Observe(0.1)

	output := scrapeMetrics(t, c)
	assertSample(t, output, "test_unit_latency_count", "1")
	assert.Contains(t, output, `test_unit_latency_bucket{le="0.1"}`)
}

func TestTimer_MeasuresDuration(t *testing.T) {
	c := newTestCollector(t)
	timer := NewTimer(c.RegisterHistogram("timer_test", "Timer test", nil).WithLabelValues())
	time.Sleep(10 * time.Millisecond)

	assert.GreaterOrEqual(t, timer.ObserveDuration(), 10*time.Millisecond)
	assertSample(t, scrapeMetrics(t, c), "test_unit_timer_test_count", "1")

	assert.NotPanics(t, func() { NewTimer(nil).ObserveDuration() })
}

func TestConcurrentRegistration(t *testing.T) {
	c := newTestCollector(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RegisterCounter("concurrent_metric", "help", "id").WithLabelValues("1").Inc()
		}()
	}
	wg.Wait()

	assertSample(t, scrapeMetrics(t, c), `test_unit_concurrent_metric{id="1"}`, "50")
}

func TestTypeConflict_ReturnsNoop(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("conflict", "help").WithLabelValues().Inc()

	gauge := c.RegisterGauge("conflict", "help")
	assert.NotPanics(t, func() { gauge.WithLabelValues().Set(10) })

	hist := c.RegisterHistogram("conflict", "help", nil)
	assert.NotPanics(t, func() { hist.WithLabelValues().Observe(1) })

	assert.Contains(t, scrapeMetrics(t, c), "# TYPE test_unit_conflict counter")
}

func TestMustRegister_CustomCollector(t *testing.T) {
	c := newTestCollector(t)
	c.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "custom_collector"}))

	assert.Contains(t, scrapeMetrics(t, c), "custom_collector")
}

//Personal.AI order the ending
