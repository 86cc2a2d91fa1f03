// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment variables,
// with CLI flag overrides.
package conf

import (
	"fmt"
	"strings"
	"time"

	"AlertGate/internal/model"

	"github.com/spf13/viper"
	"google.golang.org/protobuf/types/known/durationpb"
)

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads configuration from the specified config file path, applies defaults,
// and allows overrides from environment variables prefixed with ALERTGATE_.
//
// Configuration priority: Environment variables > Config file > Defaults
//
// Environment variables bound directly (without prefix) for operational
// convenience:
//   - MYSQL_DSN: fallback-store connection string
//   - ALERTGATE_API_KEY: producer API key for the HTTP surface
//
// SMTP credentials are deliberately NOT part of the snapshot; the transport
// reads SMTP_USERNAME / SMTP_PASSWORD from the environment itself.
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Enable environment variable support with ALERTGATE_ prefix
	v.SetEnvPrefix("ALERTGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow direct environment variable names for operational fields
	_ = v.BindEnv("data.database.source", "MYSQL_DSN", "ALERTGATE_DATA_DATABASE_SOURCE")
	_ = v.BindEnv("data.redis.addr", "ALERTGATE_DATA_REDIS_ADDR")
	_ = v.BindEnv("auth.api_key", "ALERTGATE_API_KEY")
	_ = v.BindEnv("alerting.webhook_url", "ALERTGATE_WEBHOOK_URL")

	// Load configuration file
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// If config file is specified but not found, return error
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	// Parse configuration into Bootstrap structure
	bc := &Bootstrap{
		Server: &Server{
			HTTP: &ServerHTTP{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: durationpb.New(v.GetDuration("server.http.timeout")),
			},
		},
		Data: &Data{
			Database: &Database{
				Driver: v.GetString("data.database.driver"),
				Source: v.GetString("data.database.source"),
			},
			Redis: &Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				ReadTimeout:  durationpb.New(v.GetDuration("data.redis.read_timeout")),
				WriteTimeout: durationpb.New(v.GetDuration("data.redis.write_timeout")),
			},
		},
		Alerting: &Alerting{
			Enabled:     v.GetBool("alerting.enabled"),
			MinSeverity: v.GetString("alerting.min_severity"),
			RateLimiting: &RateLimiting{
				Enabled:          v.GetBool("alerting.rate_limiting.enabled"),
				MaxAlertsPerHour: v.GetInt("alerting.rate_limiting.max_alerts_per_hour"),
				MaxAlertsPerDay:  v.GetInt("alerting.rate_limiting.max_alerts_per_day"),
			},
			Categories: loadCategories(v),
			Email: &Email{
				Enabled:    v.GetBool("alerting.email.enabled"),
				SMTPServer: v.GetString("alerting.email.smtp_server"),
				SMTPPort:   v.GetInt("alerting.email.smtp_port"),
				UseTLS:     v.GetBool("alerting.email.use_tls"),
				Timeout:    durationpb.New(v.GetDuration("alerting.email.timeout")),
				From:       v.GetString("alerting.email.from"),
				To:         v.GetString("alerting.email.to"),
			},
			WebhookURL: v.GetString("alerting.webhook_url"),
		},
		Auth: &Auth{
			APIKey: v.GetString("auth.api_key"),
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
		},
	}

	// Validate required fields
	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// loadCategories reads per-category policies. Categories not mentioned in the
// configuration default to enabled with an INFO floor.
func loadCategories(v *viper.Viper) map[string]*CategoryPolicy {
	policies := make(map[string]*CategoryPolicy, len(model.Categories))
	for _, cat := range model.Categories {
		key := "alerting.categories." + strings.ToLower(string(cat))
		policy := &CategoryPolicy{
			Enabled:     true,
			MinSeverity: model.SeverityInfo.String(),
		}
		if v.IsSet(key + ".enabled") {
			policy.Enabled = v.GetBool(key + ".enabled")
		}
		if s := v.GetString(key + ".min_severity"); s != "" {
			policy.MinSeverity = s
		}
		policies[string(cat)] = policy
	}
	return policies
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", 30*time.Second)

	// Data defaults
	v.SetDefault("data.database.driver", "mysql")
	// Note: data.database.source (MYSQL_DSN) is required from environment

	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)

	// Alerting defaults
	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.min_severity", "MEDIUM")
	v.SetDefault("alerting.rate_limiting.enabled", true)
	v.SetDefault("alerting.rate_limiting.max_alerts_per_hour", 10)
	v.SetDefault("alerting.rate_limiting.max_alerts_per_day", 50)
	// Email stays off until an SMTP server is configured; enabling it
	// without one fails validation.
	v.SetDefault("alerting.email.enabled", false)
	v.SetDefault("alerting.email.smtp_port", 587)
	v.SetDefault("alerting.email.use_tls", true)
	v.SetDefault("alerting.email.timeout", 30*time.Second)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that all required configuration fields are present and valid.
// It returns an error listing all missing or invalid fields.
func Validate(bc *Bootstrap) error {
	var badFields []string

	if bc.Alerting == nil {
		return fmt.Errorf("missing alerting configuration")
	}

	if _, err := model.ParseSeverity(bc.Alerting.MinSeverity); err != nil {
		badFields = append(badFields, fmt.Sprintf("alerting.min_severity (%q)", bc.Alerting.MinSeverity))
	}

	for name, policy := range bc.Alerting.Categories {
		if _, err := model.ParseCategory(name); err != nil {
			badFields = append(badFields, fmt.Sprintf("alerting.categories.%s (unknown category)", name))
			continue
		}
		if policy.MinSeverity != "" {
			if _, err := model.ParseSeverity(policy.MinSeverity); err != nil {
				badFields = append(badFields, fmt.Sprintf("alerting.categories.%s.min_severity (%q)", name, policy.MinSeverity))
			}
		}
	}

	if bc.Alerting.Email != nil && bc.Alerting.Email.Enabled {
		if bc.Alerting.Email.SMTPServer == "" {
			badFields = append(badFields, "alerting.email.smtp_server")
		}
		if bc.Alerting.Email.To == "" {
			badFields = append(badFields, "alerting.email.to")
		}
	}

	if rl := bc.Alerting.RateLimiting; rl != nil && rl.Enabled {
		if rl.MaxAlertsPerHour <= 0 {
			badFields = append(badFields, "alerting.rate_limiting.max_alerts_per_hour")
		}
		if rl.MaxAlertsPerDay <= 0 {
			badFields = append(badFields, "alerting.rate_limiting.max_alerts_per_day")
		}
	}

	if len(badFields) > 0 {
		return fmt.Errorf("invalid or missing configuration fields: %s", strings.Join(badFields, ", "))
	}

	return nil
}
