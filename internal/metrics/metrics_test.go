package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	m := New()
	m.ObserveRun("succeeded", 3, 1)
	m.ObserveRun("failed", 0, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingestRuns.WithLabelValues("succeeded")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ingestPeriods.WithLabelValues("succeeded")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ingestPeriods.WithLabelValues("failed")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRun("succeeded", 1, 0)
	m.ObserveQuery("monthly", time.Millisecond)
	m.SetDataset(1, 1)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.SetDataset(12, 34)
	m.ObserveQuery("yearly", 5*time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "brandtrend_dataset_brands 12")
	assert.Contains(t, body, "brandtrend_dataset_columns 34")
	assert.Contains(t, body, `brandtrend_query_duration_seconds_count{granularity="yearly"} 1`)
}
