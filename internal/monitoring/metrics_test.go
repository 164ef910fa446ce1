package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCounters(t *testing.T) {
	ticks := testutil.ToFloat64(ticksTotal.WithLabelValues("equity"))
	RecordTicks("equity", 250)
	assert.Equal(t, ticks+250, testutil.ToFloat64(ticksTotal.WithLabelValues("equity")))

	trades := testutil.ToFloat64(tradesTotal.WithLabelValues("100"))
	RecordTrade(100)
	assert.Equal(t, trades+1, testutil.ToFloat64(tradesTotal.WithLabelValues("100")))

	skipped := testutil.ToFloat64(skippedBuysTotal)
	RecordSkippedBuys(3)
	assert.Equal(t, skipped+3, testutil.ToFloat64(skippedBuysTotal))

	errs := testutil.ToFloat64(errorsTotal.WithLabelValues("RULE_EVALUATION"))
	RecordErrors("RULE_EVALUATION", 2)
	assert.Equal(t, errs+2, testutil.ToFloat64(errorsTotal.WithLabelValues("RULE_EVALUATION")))

	runs := testutil.ToFloat64(runsTotal.WithLabelValues("success"))
	RecordRun("success", 150*time.Millisecond)
	assert.Equal(t, runs+1, testutil.ToFloat64(runsTotal.WithLabelValues("success")))

	InstrumentStarted()
	inFlight := testutil.ToFloat64(instrumentsInFlight)
	InstrumentFinished()
	assert.Equal(t, inFlight-1, testutil.ToFloat64(instrumentsInFlight))
}

func TestMetricsHandler(t *testing.T) {
	RecordTrade(1)

	rec := httptest.NewRecorder()
	NewMetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "backtest_trades_total")
}

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker()
	assert.Equal(t, "idle", h.Snapshot().Status)

	h.RunStarted("run-1", 3)
	h.InstrumentDone()
	snap := h.Snapshot()
	assert.Equal(t, "running", snap.Status)
	assert.Equal(t, 1, snap.Completed)
	assert.Equal(t, 3, snap.Total)

	h.RunFinished("success")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "idle", body.Status)
	assert.Equal(t, "success", body.LastStatus)
	assert.Equal(t, "run-1", body.RunID)

	for i := 0; i < 12; i++ {
		h.RecordError("boom")
	}
	assert.Len(t, h.Snapshot().Errors, 10)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
