package data

import (
	"time"

	"AlertGate/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewMySQLClient creates the GORM MySQL client backing the fallback record.
// A missing or unreachable database does not prevent startup: the fallback
// sink degrades to process logging, keeping alerting off anyone's critical
// path. The returned error is nil in the degraded case.
func NewMySQLClient(c *conf.Data, l log.Logger) (*gorm.DB, func(), error) {
	helper := log.NewHelper(l)

	if c == nil || c.Database == nil || c.Database.Source == "" {
		helper.Warn("database source is empty, skipping fallback store initialization")
		return nil, func() {}, nil
	}

	gormLogger := logger.New(
		&gormLogAdapter{helper: helper},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond, // Slow SQL threshold
			LogLevel:                  logger.Warn,            // Log level: Warn only
			IgnoreRecordNotFoundError: true,                   // Ignore ErrRecordNotFound
			Colorful:                  false,                  // Disable color
		},
	)

	db, err := gorm.Open(mysql.Open(c.Database.Source), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true, // Single-row inserts, no transaction needed
		PrepareStmt:            true, // Prepare statement cache
	})
	if err != nil {
		helper.Warnf("failed to connect to MySQL: %v (fallback store disabled)", err)
		return nil, func() {}, nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		helper.Warnf("failed to get sql.DB: %v (fallback store disabled)", err)
		return nil, func() {}, nil
	}

	// Configure connection pool. The sink writes from a single drain
	// goroutine, so the pool stays small.
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		helper.Warnf("failed to ping MySQL: %v (fallback store disabled)", err)
		_ = sqlDB.Close()
		return nil, func() {}, nil
	}

	// Keep the fallback table in place without external migrations.
	if err := db.AutoMigrate(&FallbackRecord{}); err != nil {
		helper.Warnf("failed to migrate fallback table: %v", err)
	}

	helper.Info("MySQL connection established successfully")

	cleanup := func() {
		helper.Info("closing MySQL connection")
		if err := sqlDB.Close(); err != nil {
			helper.Errorf("failed to close MySQL: %v", err)
		}
	}

	return db, cleanup, nil
}

// gormLogAdapter adapts Kratos log.Helper to GORM logger interface.
type gormLogAdapter struct {
	helper *log.Helper
}

// Printf implements gorm/logger.Writer interface.
func (g *gormLogAdapter) Printf(format string, v ...interface{}) {
	g.helper.Infof(format, v...)
}
