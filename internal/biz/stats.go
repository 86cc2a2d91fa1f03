package biz

import (
	"sync"

	"AlertGate/internal/model"
)

// Stats is a snapshot of the alerting counters. Counters only ever grow
// during normal operation; Reset is an explicit operator action.
type Stats struct {
	Total       int64                    `json:"total"`
	Sent        int64                    `json:"sent"`
	Failed      int64                    `json:"failed"`
	RateLimited int64                    `json:"rate_limited"`
	Filtered    int64                    `json:"filtered"`
	ByCategory  map[model.Category]int64 `json:"by_category"`
	ByOutcome   map[model.Outcome]int64  `json:"by_outcome"`
}

// StatsRecorder aggregates outcome counters so operators can observe
// suppressed and failed volume without producers checking every call.
type StatsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

// NewStatsRecorder creates an empty recorder.
func NewStatsRecorder() *StatsRecorder {
	return &StatsRecorder{
		stats: Stats{
			ByCategory: make(map[model.Category]int64),
			ByOutcome:  make(map[model.Outcome]int64),
		},
	}
}

// Record counts one processed alert under its outcome.
func (r *StatsRecorder) Record(category model.Category, outcome model.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Total++
	r.stats.ByCategory[category]++
	r.stats.ByOutcome[outcome]++

	switch outcome {
	case model.OutcomeSent:
		r.stats.Sent++
	case model.OutcomeFailed:
		r.stats.Failed++
	case model.OutcomeRateLimited:
		r.stats.RateLimited++
	case model.OutcomeFilteredSeverity, model.OutcomeFilteredCategory:
		r.stats.Filtered++
	}
}

// Snapshot returns a copy of the counters. Reading is idempotent: two
// snapshots with no intervening alerts are identical.
func (r *StatsRecorder) Snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.stats
	out.ByCategory = make(map[model.Category]int64, len(r.stats.ByCategory))
	for k, v := range r.stats.ByCategory {
		out.ByCategory[k] = v
	}
	out.ByOutcome = make(map[model.Outcome]int64, len(r.stats.ByOutcome))
	for k, v := range r.stats.ByOutcome {
		out.ByOutcome[k] = v
	}
	return out
}

// Reset zeroes every counter. Not part of normal operation.
func (r *StatsRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = Stats{
		ByCategory: make(map[model.Category]int64),
		ByOutcome:  make(map[model.Outcome]int64),
	}
}
