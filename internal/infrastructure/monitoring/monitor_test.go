package monitoring

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStatsReflectCounters(t *testing.T) {
	m := NewMonitor()
	m.IncReceived()
	m.IncReceived()
	m.IncDenied()
	m.IncDelivered()
	m.IncTaskSubmitted()
	m.IncTaskCompleted()
	m.RecordPipelineLatency(10 * time.Millisecond)

	stats := m.Stats()
	if stats["messages_received"].(uint64) != 2 {
		t.Fatalf("messages_received = %v", stats["messages_received"])
	}
	if stats["messages_denied"].(uint64) != 1 {
		t.Fatalf("messages_denied = %v", stats["messages_denied"])
	}
	if stats["avg_pipeline_ms"].(float64) < 9 {
		t.Fatalf("avg_pipeline_ms = %v", stats["avg_pipeline_ms"])
	}
}

func TestPrometheusHandlerExposition(t *testing.T) {
	m := NewMonitor()
	m.IncReceived()
	m.IncDegraded()
	m.RecordPipelineLatency(5 * time.Millisecond)

	rec := httptest.NewRecorder()
	m.PrometheusHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		"# TYPE chatwork_messages_received_total counter",
		"chatwork_messages_received_total 1",
		"chatwork_replies_degraded_total 1",
		"chatwork_pipeline_duration_seconds_count 1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("exposition missing %q\n%s", want, body)
		}
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("content type = %q", got)
	}
}
