package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersMove(t *testing.T) {
	before := testutil.ToFloat64(violationsCounter.WithLabelValues("DAILY_LOSS"))
	IncViolation("DAILY_LOSS")
	after := testutil.ToFloat64(violationsCounter.WithLabelValues("DAILY_LOSS"))
	if after-before != 1 {
		t.Fatalf("delta=%v want=1", after-before)
	}

	AddStaleMarks(0)
	s0 := testutil.ToFloat64(staleMarksCounter)
	AddStaleMarks(2)
	if got := testutil.ToFloat64(staleMarksCounter) - s0; got != 2 {
		t.Fatalf("stale delta=%v want=2", got)
	}

	ObserveSweep(7, 1, 1500*time.Millisecond)
	if got := testutil.ToFloat64(sweepAccountsGauge); got != 7 {
		t.Fatalf("sweep accounts=%v want=7", got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	IncEvaluation(OutcomeOK)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "propdesk_evaluations_total") {
		t.Fatalf("missing evaluations counter in output")
	}
}
