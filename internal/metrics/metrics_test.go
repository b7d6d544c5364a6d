package metrics

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "optionlab/internal/errors"
)

func TestStatus(t *testing.T) {
	assert.Equal(t, "success", Status(nil))
	assert.Equal(t, "missing", Status(apperrors.MissingData("history", "AAPL", "none")))
	assert.Equal(t, "throttled", Status(fmt.Errorf("wait: %w", apperrors.ErrRateLimited)))
	assert.Equal(t, "error", Status(fmt.Errorf("boom")))
}

func TestRecordUpsert(t *testing.T) {
	before := testutil.ToFloat64(TradeUpserts.WithLabelValues("replaced"))
	RecordUpsert(true)
	assert.Equal(t, before+1, testutil.ToFloat64(TradeUpserts.WithLabelValues("replaced")))
}

func TestRecordSolve(t *testing.T) {
	before := testutil.ToFloat64(SolverRuns.WithLabelValues("not_converged"))
	RecordSolve(0, apperrors.Wrap(apperrors.ErrNotConverged, "budget"))
	assert.Equal(t, before+1, testutil.ToFloat64(SolverRuns.WithLabelValues("not_converged")))
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	Init()
	Init()

	RecordReconcile(10*time.Millisecond, nil)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "optionlab_reconcile_runs_total"))
}

func TestSetBreakerState(t *testing.T) {
	SetBreakerState("csv", "open")
	assert.Equal(t, 1.0, testutil.ToFloat64(ProviderBreaker.WithLabelValues("csv")))
	SetBreakerState("csv", "half_open")
	assert.Equal(t, 0.5, testutil.ToFloat64(ProviderBreaker.WithLabelValues("csv")))
	SetBreakerState("csv", "closed")
	assert.Equal(t, 0.0, testutil.ToFloat64(ProviderBreaker.WithLabelValues("csv")))
}
