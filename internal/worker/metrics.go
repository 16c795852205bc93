package worker

import (
	"sync"
	"time"
)

// Metrics is in-memory and reset on process start. averageResponseMs is
// updated under the same lock that increments tasksProcessed, keeping the
// two consistent.
type Metrics struct {
	mu               sync.Mutex
	startTime        time.Time
	tasksProcessed   int64
	totalExecutionMs int64
	errors           int64
}

// NewMetrics starts the clock at construction time.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now().UTC()}
}

// recordSuccess folds one successful task's execution time into the
// rolling totals.
func (m *Metrics) recordSuccess(executionMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasksProcessed++
	m.totalExecutionMs += executionMs
}

// recordError increments both tasksProcessed and errors for a task that
// cleared validation but failed afterward, keeping tasksProcessed - errors
// >= 0 (a validation failure is rejected earlier and never reaches here).
func (m *Metrics) recordError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasksProcessed++
	m.errors++
}

// Snapshot is a point-in-time, race-free read of Metrics.
type Snapshot struct {
	Uptime            time.Duration
	TasksProcessed    int64
	AverageResponseMs float64
	Errors            int64
	SuccessRate       float64
}

// Snapshot computes successRate = (tasksProcessed - errors) / tasksProcessed
// * 100, defined as 100 when tasksProcessed == 0.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var avg float64
	if m.tasksProcessed > 0 {
		avg = float64(m.totalExecutionMs) / float64(m.tasksProcessed)
	}

	successRate := 100.0
	if m.tasksProcessed > 0 {
		successRate = float64(m.tasksProcessed-m.errors) / float64(m.tasksProcessed) * 100
	}

	return Snapshot{
		Uptime:            time.Since(m.startTime),
		TasksProcessed:    m.tasksProcessed,
		AverageResponseMs: avg,
		Errors:            m.errors,
		SuccessRate:       successRate,
	}
}
