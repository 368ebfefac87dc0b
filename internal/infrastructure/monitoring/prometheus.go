package monitoring

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// PrometheusHandler returns an http.Handler serving the counters in
// Prometheus text format. Hand-written exposition keeps the dependency
// surface down; mount it at "/metrics".
func (m *Monitor) PrometheusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(m.metrics.StartTime).Seconds()

		lines := []struct {
			name string
			help string
			typ  string
			val  interface{}
		}{
			{"chatwork_messages_received_total", "Inbound messages accepted into the pipeline", "counter", atomic.LoadUint64(&m.metrics.MessagesReceived)},
			{"chatwork_messages_denied_total", "Messages rejected by admission control", "counter", atomic.LoadUint64(&m.metrics.MessagesDenied)},
			{"chatwork_messages_rate_limited_total", "Messages rejected by the per-chat rate limiter", "counter", atomic.LoadUint64(&m.metrics.MessagesRateLimited)},
			{"chatwork_messages_silent_total", "Messages persisted without a reply", "counter", atomic.LoadUint64(&m.metrics.MessagesSilent)},

			{"chatwork_replies_delivered_total", "Replies delivered to the chat platform", "counter", atomic.LoadUint64(&m.metrics.RepliesDelivered)},
			{"chatwork_replies_degraded_total", "Degraded replies after agent timeout or failure", "counter", atomic.LoadUint64(&m.metrics.RepliesDegraded)},
			{"chatwork_replies_failed_total", "Replies that exhausted the delivery retry budget", "counter", atomic.LoadUint64(&m.metrics.RepliesFailed)},

			{"chatwork_tasks_submitted_total", "Background tasks accepted", "counter", atomic.LoadUint64(&m.metrics.TasksSubmitted)},
			{"chatwork_tasks_completed_total", "Background tasks completed", "counter", atomic.LoadUint64(&m.metrics.TasksCompleted)},
			{"chatwork_tasks_failed_total", "Background tasks failed", "counter", atomic.LoadUint64(&m.metrics.TasksFailed)},

			{"chatwork_uptime_seconds", "Process uptime in seconds", "gauge", uptime},
			{"chatwork_memory_alloc_bytes", "Current memory allocation in bytes", "gauge", memStats.Alloc},
			{"chatwork_goroutines", "Number of goroutines", "gauge", runtime.NumGoroutine()},
		}

		for _, l := range lines {
			fmt.Fprintf(w, "# HELP %s %s\n", l.name, l.help)
			fmt.Fprintf(w, "# TYPE %s %s\n", l.name, l.typ)
			switch v := l.val.(type) {
			case uint64:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			case int:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			case float64:
				fmt.Fprintf(w, "%s %f\n", l.name, v)
			}
			fmt.Fprintln(w)
		}

		count := atomic.LoadUint64(&m.metrics.PipelineLatencyCount)
		if count > 0 {
			sum := float64(atomic.LoadUint64(&m.metrics.PipelineLatencySum)) / 1e9
			fmt.Fprintf(w, "# HELP chatwork_pipeline_duration_seconds Message processing time through all stages\n")
			fmt.Fprintf(w, "# TYPE chatwork_pipeline_duration_seconds summary\n")
			fmt.Fprintf(w, "chatwork_pipeline_duration_seconds_sum %f\n", sum)
			fmt.Fprintf(w, "chatwork_pipeline_duration_seconds_count %d\n", count)
		}
	})
}
