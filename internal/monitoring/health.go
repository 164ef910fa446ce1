package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker reports progress of the current run
type HealthChecker struct {
	mu          sync.RWMutex
	runID       string
	lastStatus  string
	running     bool
	completed   int
	total       int
	lastUpdated time.Time
	errors      []string
}

type HealthStatus struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	RunID       string    `json:"run_id,omitempty"`
	LastStatus  string    `json:"last_status,omitempty"`
	Completed   int       `json:"completed"`
	Total       int       `json:"total"`
	LastUpdated time.Time `json:"last_updated"`
	Uptime      string    `json:"uptime"`
	Errors      []string  `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		errors: make([]string, 0),
	}
}

// RunStarted resets progress for a new run
func (h *HealthChecker) RunStarted(runID string, instruments int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runID = runID
	h.running = true
	h.completed = 0
	h.total = instruments
	h.lastUpdated = time.Now()
}

// InstrumentDone advances progress by one instrument
func (h *HealthChecker) InstrumentDone() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completed++
	h.lastUpdated = time.Now()
}

// RunFinished records the final status of the current run
func (h *HealthChecker) RunFinished(status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.running = false
	h.lastStatus = status
	h.lastUpdated = time.Now()
}

// RecordError keeps a bounded list of recent failures
func (h *HealthChecker) RecordError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
	if len(h.errors) > 10 {
		h.errors = h.errors[len(h.errors)-10:]
	}
}

// Snapshot returns the current health status
func (h *HealthChecker) Snapshot() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "idle"
	if h.running {
		status = "running"
	}
	if len(h.errors) > 0 {
		status = "degraded"
	}

	return HealthStatus{
		Status:      status,
		Timestamp:   time.Now(),
		RunID:       h.runID,
		LastStatus:  h.lastStatus,
		Completed:   h.completed,
		Total:       h.total,
		LastUpdated: h.lastUpdated,
		Uptime:      time.Since(startTime).String(),
		Errors:      append([]string(nil), h.errors...),
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	if health.Status == "degraded" {
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(health)
}
