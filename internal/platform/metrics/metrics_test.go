package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTransitionCounter(t *testing.T) {
	c := New()
	c.Transition("final_approve", "ok")
	c.Transition("final_approve", "ok")
	c.Transition("reject", "validation")

	if got := testutil.ToFloat64(c.transitions.WithLabelValues("final_approve", "ok")); got != 2 {
		t.Fatalf("expected 2 final approvals, got %v", got)
	}
	if got := testutil.ToFloat64(c.transitions.WithLabelValues("reject", "validation")); got != 1 {
		t.Fatalf("expected 1 rejected validation, got %v", got)
	}
}

func TestHandlerExposesRecordedRequests(t *testing.T) {
	c := New()
	c.Record(http.MethodGet, "/api/v1/leave/requests/mine", http.StatusOK, 20*time.Millisecond)
	c.RoleResolved("position_title")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	if !strings.Contains(text, `http_requests_total{method="GET",route="/api/v1/leave/requests/mine",status="200"} 1`) {
		t.Fatalf("request counter missing from exposition:\n%s", text)
	}
	if !strings.Contains(text, `role_resolutions_total{source="position_title"} 1`) {
		t.Fatalf("resolution counter missing from exposition:\n%s", text)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.Transition("cancel", "ok")
	c.Record(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	c.InFlight(1)
	c.RoleResolved("none")
	c.AuditFailed()
}
