package biz

import (
	"sync"
	"time"

	"AlertGate/internal/conf"
	"AlertGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// rateLimitWindow tracks one category's hourly and daily budgets. Window
// boundaries are wall-clock aligned: the hour starts at :00 and the day at
// local midnight. Rollover happens lazily on the next Allow call that
// observes a crossed boundary.
type rateLimitWindow struct {
	mu        sync.Mutex
	hourCount int
	hourStart time.Time
	dayCount  int
	dayStart  time.Time
}

// RateLimiterUseCase enforces per-category alert budgets. Each category has
// an independent mutex-guarded window, so bookkeeping for one category never
// blocks another.
type RateLimiterUseCase struct {
	enabled    bool
	maxPerHour int
	maxPerDay  int
	disabled   map[model.Category]bool
	windows    map[model.Category]*rateLimitWindow
	logger     *log.Helper

	// now is replaceable in tests.
	now func() time.Time
}

// NewRateLimiterUseCase creates a rate limiter from the alerting snapshot.
// Categories flagged disabled in the snapshot bypass rate limiting entirely.
func NewRateLimiterUseCase(cfg *conf.Alerting, logger log.Logger) *RateLimiterUseCase {
	rl := &RateLimiterUseCase{
		disabled: make(map[model.Category]bool),
		windows:  make(map[model.Category]*rateLimitWindow, len(model.Categories)),
		logger:   log.NewHelper(logger),
		now:      time.Now,
	}
	if cfg != nil && cfg.RateLimiting != nil && cfg.RateLimiting.Enabled {
		rl.enabled = true
		rl.maxPerHour = cfg.RateLimiting.MaxAlertsPerHour
		rl.maxPerDay = cfg.RateLimiting.MaxAlertsPerDay
	}
	for _, cat := range model.Categories {
		rl.windows[cat] = &rateLimitWindow{}
	}
	return rl
}

// Enabled reports whether rate limiting is active globally.
func (rl *RateLimiterUseCase) Enabled() bool {
	return rl.enabled
}

// Allow reports whether the category may attempt another alert and, if so,
// consumes one unit of both the hourly and daily budget. Rejected attempts
// leave the counters untouched, so a rejected alert does not shrink the
// budget for later ones.
func (rl *RateLimiterUseCase) Allow(category model.Category) bool {
	if !rl.enabled || rl.disabled[category] {
		return true
	}

	w, ok := rl.windows[category]
	if !ok {
		// Unknown categories are rejected upstream by validation; being
		// permissive here keeps the limiter off the producer's error path.
		return true
	}

	now := rl.now()
	// Boundaries follow the local wall clock, so the hour window starts at
	// :00 even in zones with a fractional UTC offset.
	hourStart := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	w.mu.Lock()
	defer w.mu.Unlock()

	// Lazy rollover: reset any window whose boundary has passed.
	if !w.hourStart.Equal(hourStart) {
		w.hourCount = 0
		w.hourStart = hourStart
	}
	if !w.dayStart.Equal(dayStart) {
		w.dayCount = 0
		w.dayStart = dayStart
	}

	if w.hourCount >= rl.maxPerHour || w.dayCount >= rl.maxPerDay {
		rl.logger.Warnw("msg", "alert rate limit reached",
			"category", string(category),
			"hour_count", w.hourCount,
			"day_count", w.dayCount,
			"max_per_hour", rl.maxPerHour,
			"max_per_day", rl.maxPerDay)
		return false
	}

	w.hourCount++
	w.dayCount++
	return true
}

// Usage returns the category's current window counters, applying the same
// lazy rollover Allow does so stale counts are never reported.
func (rl *RateLimiterUseCase) Usage(category model.Category) (hour, day int) {
	w, ok := rl.windows[category]
	if !ok {
		return 0, 0
	}

	now := rl.now()
	hourStart := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.hourStart.Equal(hourStart) {
		w.hourCount = 0
		w.hourStart = hourStart
	}
	if !w.dayStart.Equal(dayStart) {
		w.dayCount = 0
		w.dayStart = dayStart
	}
	return w.hourCount, w.dayCount
}

// SetCategoryDisabled exempts a category from rate limiting. Intended for
// wiring per-category overrides at construction time, before concurrent use.
func (rl *RateLimiterUseCase) SetCategoryDisabled(category model.Category, disabled bool) {
	rl.disabled[category] = disabled
}
