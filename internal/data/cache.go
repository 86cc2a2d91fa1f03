package data

import (
	"context"
	"encoding/json"
	"sync"

	"AlertGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

const (
	// recentAlertsKey is the Redis list holding recent alert entries.
	recentAlertsKey = "alerts:recent"
	// recentAlertsMax bounds both the Redis list and the local LRU.
	recentAlertsMax = 100
)

// AlertCacheImpl implements biz.AlertCache with two tiers: an in-process LRU
// that is always available, and a Redis list giving cross-replica visibility.
// Redis failures degrade silently to the local tier; the cache is an
// operator convenience, never a correctness dependency.
type AlertCacheImpl struct {
	rdb    *redis.Client
	local  *lru.Cache[string, model.AlertRecord]
	mu     sync.Mutex
	order  []string // alert IDs, newest last, bounded by recentAlertsMax
	logger *log.Helper
}

// NewAlertCache creates the recent-alert cache. The Redis tier is optional.
func NewAlertCache(d *Data, logger log.Logger) (*AlertCacheImpl, error) {
	local, err := lru.New[string, model.AlertRecord](recentAlertsMax)
	if err != nil {
		return nil, err
	}
	return &AlertCacheImpl{
		rdb:    d.redisClient,
		local:  local,
		logger: log.NewHelper(logger),
	}, nil
}

// RecordOutcome remembers one processed alert and its outcome, best-effort.
func (c *AlertCacheImpl) RecordOutcome(ctx context.Context, alert *model.Alert, outcome model.Outcome) {
	entry := model.AlertRecord{Alert: alert, Outcome: outcome}

	c.mu.Lock()
	if !c.local.Contains(alert.ID) {
		c.order = append(c.order, alert.ID)
		if len(c.order) > recentAlertsMax {
			c.order = c.order[len(c.order)-recentAlertsMax:]
		}
	}
	c.local.Add(alert.ID, entry)
	c.mu.Unlock()

	if c.rdb == nil {
		return
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	pipe := c.rdb.Pipeline()
	pipe.LPush(ctx, recentAlertsKey, payload)
	pipe.LTrim(ctx, recentAlertsKey, 0, recentAlertsMax-1)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Debugw("msg", "recent-alert cache write skipped",
			"alert_id", alert.ID,
			"error", err)
	}
}

// Recent returns up to n recently recorded entries, newest first. Redis is
// preferred for its cross-replica view; on any Redis failure the local tier
// answers instead.
func (c *AlertCacheImpl) Recent(ctx context.Context, n int) []model.AlertRecord {
	if n <= 0 {
		return nil
	}
	if n > recentAlertsMax {
		n = recentAlertsMax
	}

	if c.rdb != nil {
		raw, err := c.rdb.LRange(ctx, recentAlertsKey, 0, int64(n-1)).Result()
		if err == nil {
			out := make([]model.AlertRecord, 0, len(raw))
			for _, item := range raw {
				var entry model.AlertRecord
				if err := json.Unmarshal([]byte(item), &entry); err != nil {
					continue
				}
				out = append(out, entry)
			}
			return out
		}
		c.logger.Debugw("msg", "recent-alert cache read failed, using local tier", "error", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.AlertRecord, 0, n)
	for i := len(c.order) - 1; i >= 0 && len(out) < n; i-- {
		if entry, ok := c.local.Get(c.order[i]); ok {
			out = append(out, entry)
		}
	}
	return out
}
