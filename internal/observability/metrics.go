package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides in-memory counters for requests and SLA sweeps.
type Metrics struct {
	mu             sync.Mutex
	requestCount   map[string]int64
	errorCount     map[string]int64
	sweepRuns      int64
	sweepEscalated int64
	sweepFailed    int64
	lastSweepAt    time.Time
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Requests       map[string]int64 `json:"requests"`
	Errors         map[string]int64 `json:"errors"`
	SweepRuns      int64            `json:"sweep_runs"`
	SweepEscalated int64            `json:"sweep_escalated"`
	SweepFailed    int64            `json:"sweep_failed"`
	LastSweepAt    *time.Time       `json:"last_sweep_at,omitempty"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, _ time.Duration) {
	if m == nil {
		return
	}
	key := method + " " + path + " " + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters by error code.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := method + " " + path + " " + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordSweep accumulates the outcome of one SLA sweep.
func (m *Metrics) RecordSweep(at time.Time, escalated, failed int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepRuns++
	m.sweepEscalated += int64(escalated)
	m.sweepFailed += int64(failed)
	m.lastSweepAt = at
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{Requests: map[string]int64{}, Errors: map[string]int64{}}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Requests:       make(map[string]int64, len(m.requestCount)),
		Errors:         make(map[string]int64, len(m.errorCount)),
		SweepRuns:      m.sweepRuns,
		SweepEscalated: m.sweepEscalated,
		SweepFailed:    m.sweepFailed,
	}
	for k, v := range m.requestCount {
		snap.Requests[k] = v
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	if !m.lastSweepAt.IsZero() {
		last := m.lastSweepAt
		snap.LastSweepAt = &last
	}
	return snap
}
