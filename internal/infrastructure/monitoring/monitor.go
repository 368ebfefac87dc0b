package monitoring

import (
	"runtime"
	"sync/atomic"
	"time"
)

// metrics holds the pipeline counters. All fields are touched with
// atomics only.
type metrics struct {
	MessagesReceived    uint64
	MessagesDenied      uint64
	MessagesRateLimited uint64
	MessagesSilent      uint64

	RepliesDelivered uint64
	RepliesDegraded  uint64
	RepliesFailed    uint64

	TasksSubmitted uint64
	TasksCompleted uint64
	TasksFailed    uint64

	PipelineLatencySum   uint64
	PipelineLatencyCount uint64

	StartTime time.Time
}

// Monitor collects gateway throughput and outcome counters.
type Monitor struct {
	metrics *metrics
}

func NewMonitor() *Monitor {
	return &Monitor{metrics: &metrics{StartTime: time.Now()}}
}

func (m *Monitor) IncReceived()    { atomic.AddUint64(&m.metrics.MessagesReceived, 1) }
func (m *Monitor) IncDenied()      { atomic.AddUint64(&m.metrics.MessagesDenied, 1) }
func (m *Monitor) IncRateLimited() { atomic.AddUint64(&m.metrics.MessagesRateLimited, 1) }
func (m *Monitor) IncSilent()      { atomic.AddUint64(&m.metrics.MessagesSilent, 1) }

func (m *Monitor) IncDelivered() { atomic.AddUint64(&m.metrics.RepliesDelivered, 1) }
func (m *Monitor) IncDegraded()  { atomic.AddUint64(&m.metrics.RepliesDegraded, 1) }
func (m *Monitor) IncFailed()    { atomic.AddUint64(&m.metrics.RepliesFailed, 1) }

func (m *Monitor) IncTaskSubmitted() { atomic.AddUint64(&m.metrics.TasksSubmitted, 1) }
func (m *Monitor) IncTaskCompleted() { atomic.AddUint64(&m.metrics.TasksCompleted, 1) }
func (m *Monitor) IncTaskFailed()    { atomic.AddUint64(&m.metrics.TasksFailed, 1) }

func (m *Monitor) RecordPipelineLatency(d time.Duration) {
	atomic.AddUint64(&m.metrics.PipelineLatencySum, uint64(d.Nanoseconds()))
	atomic.AddUint64(&m.metrics.PipelineLatencyCount, 1)
}

// Stats returns the current counters for the status endpoint.
func (m *Monitor) Stats() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	uptime := time.Since(m.metrics.StartTime)

	avgLatency := float64(0)
	if count := atomic.LoadUint64(&m.metrics.PipelineLatencyCount); count > 0 {
		avgLatency = float64(atomic.LoadUint64(&m.metrics.PipelineLatencySum)) / float64(count) / 1e6 // ms
	}

	return map[string]interface{}{
		"uptime_seconds":        uptime.Seconds(),
		"messages_received":     atomic.LoadUint64(&m.metrics.MessagesReceived),
		"messages_denied":       atomic.LoadUint64(&m.metrics.MessagesDenied),
		"messages_rate_limited": atomic.LoadUint64(&m.metrics.MessagesRateLimited),
		"messages_silent":       atomic.LoadUint64(&m.metrics.MessagesSilent),
		"replies_delivered":     atomic.LoadUint64(&m.metrics.RepliesDelivered),
		"replies_degraded":      atomic.LoadUint64(&m.metrics.RepliesDegraded),
		"replies_failed":        atomic.LoadUint64(&m.metrics.RepliesFailed),
		"tasks_submitted":       atomic.LoadUint64(&m.metrics.TasksSubmitted),
		"tasks_completed":       atomic.LoadUint64(&m.metrics.TasksCompleted),
		"tasks_failed":          atomic.LoadUint64(&m.metrics.TasksFailed),
		"avg_pipeline_ms":       avgLatency,
		"memory_mb":             float64(memStats.Alloc) / 1024 / 1024,
		"goroutines":            runtime.NumGoroutine(),
	}
}
