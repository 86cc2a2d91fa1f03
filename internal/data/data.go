// Package data provides data access layer implementations.
// It owns the outbound SMTP transport, the durable fallback record,
// the recent-alert cache, and the circuit breaker webhook notifier.
package data

import (
	"AlertGate/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewRedisClient,
	NewMySQLClient,
)

// Data contains all data layer dependencies.
type Data struct {
	// db backs the fallback record; nil when the store is unreachable.
	db *gorm.DB
	// redisClient backs the cross-replica recent-alert cache.
	redisClient *redis.Client
}

// NewData creates a new Data instance with all data layer dependencies.
// Neither store is required for startup: the alerting core degrades to
// process logging when they are unavailable.
func NewData(_ *conf.Data, logger log.Logger, db *gorm.DB, rdb *redis.Client) (*Data, func(), error) {
	helper := log.NewHelper(logger)

	if db == nil {
		helper.Warn("fallback store is unavailable, suppressed alerts will only reach process logs")
	}
	if rdb == nil {
		helper.Warn("Redis client is nil, recent-alert cache is process-local only")
	}

	d := &Data{
		db:          db,
		redisClient: rdb,
	}

	cleanup := func() {
		helper.Info("closing the data resources")
		// MySQL and Redis cleanups are owned by their provider cleanup
		// functions, which Wire invokes in order.
	}

	return d, cleanup, nil
}
