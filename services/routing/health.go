package routing

import (
	"sort"
	"sync"
	"time"
)

const (
	// HealthRetention is how long an untouched record survives before it is swept
	HealthRetention = 5 * time.Minute

	// FailureCooldown marks a model unhealthy for this long after any failure
	FailureCooldown = 2 * time.Minute

	// MaxConsecutiveFailures marks a model unhealthy until its next success
	MaxConsecutiveFailures = 3
)

// ModelHealth is the rolling outcome record of one model
type ModelHealth struct {
	ModelID             string     `json:"modelId"`
	SuccessCount        int        `json:"successCount"`
	FailureCount        int        `json:"failureCount"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	LastFailure         *time.Time `json:"lastFailure,omitempty"`
	LastUpdated         time.Time  `json:"lastUpdated"`
}

// HealthTable tracks per-model outcomes for the current process.
// Safe for concurrent use.
type HealthTable struct {
	mu      sync.RWMutex
	records map[string]*ModelHealth
	clock   Clock
}

// NewHealthTable creates an empty table
func NewHealthTable(clock Clock) *HealthTable {
	if clock == nil {
		clock = SystemClock
	}
	return &HealthTable{
		records: make(map[string]*ModelHealth),
		clock:   clock,
	}
}

// RecordOutcome updates the record for modelID and sweeps stale records
func (h *HealthTable) RecordOutcome(modelID string, success bool) {
	now := h.clock.Now()

	h.mu.Lock()
	defer h.mu.Unlock()

	rec, ok := h.records[modelID]
	if !ok {
		rec = &ModelHealth{ModelID: modelID}
		h.records[modelID] = rec
	}

	if success {
		rec.SuccessCount++
		rec.ConsecutiveFailures = 0
	} else {
		rec.FailureCount++
		rec.ConsecutiveFailures++
		failedAt := now
		rec.LastFailure = &failedAt
	}
	rec.LastUpdated = now

	for id, r := range h.records {
		if now.Sub(r.LastUpdated) > HealthRetention {
			delete(h.records, id)
		}
	}
}

// IsHealthy reports whether modelID may be tried ahead of unhealthy models.
// Unknown models are healthy.
func (h *HealthTable) IsHealthy(modelID string) bool {
	now := h.clock.Now()

	h.mu.RLock()
	defer h.mu.RUnlock()

	rec, ok := h.records[modelID]
	if !ok {
		return true
	}
	if rec.ConsecutiveFailures >= MaxConsecutiveFailures {
		return false
	}
	if rec.LastFailure != nil && now.Sub(*rec.LastFailure) < FailureCooldown {
		return false
	}
	return true
}

// Get returns a copy of the record for modelID
func (h *HealthTable) Get(modelID string) (ModelHealth, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rec, ok := h.records[modelID]
	if !ok {
		return ModelHealth{}, false
	}
	return copyHealth(rec), true
}

// Snapshot returns copies of all records ordered by model id
func (h *HealthTable) Snapshot() []ModelHealth {
	h.mu.RLock()
	out := make([]ModelHealth, 0, len(h.records))
	for _, rec := range h.records {
		out = append(out, copyHealth(rec))
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ModelID < out[j].ModelID })
	return out
}

func copyHealth(rec *ModelHealth) ModelHealth {
	c := *rec
	if rec.LastFailure != nil {
		t := *rec.LastFailure
		c.LastFailure = &t
	}
	return c
}
