package main

import (
	"context"
	"time"

	"AlertGate/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

// startAlertCrons registers the scheduled jobs:
//   - hourly self-test that pushes a synthetic alert through the pipeline
//   - daily stats summary logged at midnight
func startAlertCrons(uc *biz.AlertManagerUseCase, logger log.Logger) *cron.Cron {
	helper := log.NewHelper(logger)

	c := cron.New(cron.WithSeconds())

	// Hourly self-test at minute 0. A failed self-test is a warning, not an
	// error: the outcome may be a policy decision (filtered, rate limited).
	_, err := c.AddFunc("0 0 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if uc.TestAlertSystem(ctx) {
			helper.Infow("msg", "alert system self-test delivered", "type", "scheduler")
		} else {
			helper.Warnw("msg", "alert system self-test did not deliver", "type", "scheduler")
		}
	})
	if err != nil {
		helper.Errorw("msg", "failed to register self-test cron job", "error", err)
	}

	// Daily stats summary at midnight.
	_, err = c.AddFunc("0 0 0 * * *", func() {
		stats := uc.GetStats()
		helper.Infow(
			"msg", "daily alert stats summary",
			"type", "scheduler",
			"total", stats.Total,
			"sent", stats.Sent,
			"failed", stats.Failed,
			"rate_limited", stats.RateLimited,
			"filtered", stats.Filtered,
		)
	})
	if err != nil {
		helper.Errorw("msg", "failed to register stats summary cron job", "error", err)
	}

	// A failed registration drops that one job; the scheduler still runs
	// whatever did register.
	c.Start()
	helper.Infow("msg", "alert cron jobs started", "type", "scheduler", "jobs", len(c.Entries()))

	return c
}
