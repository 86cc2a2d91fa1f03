package conf

import "google.golang.org/protobuf/types/known/durationpb"

// Bootstrap is the immutable configuration snapshot built once at startup.
// It is never mutated after NewBootstrap returns; reconfiguration means
// building a new snapshot and swapping the reference.
type Bootstrap struct {
	Server   *Server
	Data     *Data
	Alerting *Alerting
	Auth     *Auth
	Log      *Log
}

// Server holds transport server configuration.
type Server struct {
	HTTP *ServerHTTP
}

// ServerHTTP holds HTTP server configuration.
type ServerHTTP struct {
	Network string
	Addr    string
	Timeout *durationpb.Duration
}

// Data holds data layer configuration.
type Data struct {
	Database *Database
	Redis    *Redis
}

// Database holds the fallback-store database configuration.
type Database struct {
	Driver string
	Source string
}

// Redis holds the recent-alert cache configuration.
type Redis struct {
	Network      string
	Addr         string
	ReadTimeout  *durationpb.Duration
	WriteTimeout *durationpb.Duration
}

// Alerting holds the alerting policy configuration consumed by the core.
type Alerting struct {
	Enabled      bool
	MinSeverity  string
	RateLimiting *RateLimiting
	// Categories maps category name (e.g. TRADING_ERRORS) to its policy.
	// Categories absent from the map are treated as enabled.
	Categories map[string]*CategoryPolicy
	Email      *Email
	// WebhookURL receives circuit breaker open/recover notifications.
	// Empty disables webhook delivery.
	WebhookURL string
}

// RateLimiting holds per-category alert budget configuration.
type RateLimiting struct {
	Enabled          bool
	MaxAlertsPerHour int
	MaxAlertsPerDay  int
}

// CategoryPolicy is the per-category enable flag and severity floor.
type CategoryPolicy struct {
	Enabled     bool
	MinSeverity string
}

// Email holds SMTP transport configuration. Credentials are intentionally
// absent: the transport reads SMTP_USERNAME / SMTP_PASSWORD from the
// environment so secrets never travel inside the snapshot.
type Email struct {
	Enabled    bool
	SMTPServer string
	SMTPPort   int
	UseTLS     bool
	Timeout    *durationpb.Duration
	From       string
	To         string
}

// Auth holds API authentication configuration.
type Auth struct {
	APIKey string
}

// Log holds logging configuration.
type Log struct {
	Level      string
	Format     string
	Env        string
	OutputFile string
}
