// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected in production.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"EVENTBOARD_DB_PATH" envDefault:"./data/eventboard.db"`
	SessionSecret string `env:"EVENTBOARD_SESSION_SECRET,required"`
	ServerHost    string `env:"EVENTBOARD_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"EVENTBOARD_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"EVENTBOARD_ENV" envDefault:"development"`
	LogLevel      string `env:"EVENTBOARD_LOG_LEVEL" envDefault:"info"`
	BaseURL       string `env:"EVENTBOARD_BASE_URL" envDefault:"http://localhost:8080"` // Used in password reset links
	TrustProxy    bool   `env:"EVENTBOARD_TRUST_PROXY" envDefault:"false"`              // Honour X-Forwarded-For / X-Real-IP

	// Uploads
	UploadsDir   string `env:"EVENTBOARD_UPLOADS_DIR" envDefault:"./uploads"`
	MaxUploadMiB int64  `env:"EVENTBOARD_MAX_UPLOAD_MIB" envDefault:"5"`
	// Larger images are scaled down to fit a square of this size
	ImageMaxDimension int `env:"EVENTBOARD_IMAGE_MAX_DIMENSION" envDefault:"1600"`

	// Sessions
	SessionIdleTimeout time.Duration `env:"EVENTBOARD_SESSION_IDLE_TIMEOUT" envDefault:"30m"`

	// Rate limiting
	RedisURL      string  `env:"EVENTBOARD_REDIS_URL"`                                // Optional Redis URL for shared rate limit counters
	RedisPrefix   string  `env:"EVENTBOARD_REDIS_PREFIX" envDefault:"eventboard:rl:"` // Redis key prefix
	ThrottleRPS   float64 `env:"EVENTBOARD_THROTTLE_RPS" envDefault:"1"`              // Per-IP requests per second on auth routes
	ThrottleBurst int     `env:"EVENTBOARD_THROTTLE_BURST" envDefault:"10"`

	// Notifications
	NotifyWorkers   int `env:"EVENTBOARD_NOTIFY_WORKERS" envDefault:"3"`
	NotifyQueueSize int `env:"EVENTBOARD_NOTIFY_QUEUE_SIZE" envDefault:"256"`

	// Audit log
	AuditRetentionDays int    `env:"EVENTBOARD_AUDIT_RETENTION_DAYS" envDefault:"90"`
	GeoIPDBPath        string `env:"EVENTBOARD_GEOIP_DB_PATH"` // Path to GeoLite2-Country.mmdb file

	// Seeding configuration
	DoSeed        bool   `env:"EVENTBOARD_DO_SEED" envDefault:"false"` // Create the default admin on startup
	AdminEmail    string `env:"EVENTBOARD_ADMIN_EMAIL"`
	AdminName     string `env:"EVENTBOARD_ADMIN_NAME"`
	AdminPassword string `env:"EVENTBOARD_ADMIN_PASSWORD"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisLimiter returns true if rate limit counters live in Redis.
func (c Config) UseRedisLimiter() bool {
	return c.RedisURL != ""
}

// GeoIPEnabled returns true if a GeoIP database is configured.
func (c Config) GeoIPEnabled() bool {
	return c.GeoIPDBPath != ""
}

// MaxUploadBytes returns the image upload limit in bytes.
func (c Config) MaxUploadBytes() int64 {
	return c.MaxUploadMiB << 20
}

// AuditRetention returns how long audit entries are kept.
func (c Config) AuditRetention() time.Duration {
	return time.Duration(c.AuditRetentionDays) * 24 * time.Hour
}

// ResetBaseURL returns the base URL without a trailing slash.
func (c Config) ResetBaseURL() string {
	return strings.TrimRight(c.BaseURL, "/")
}

// MinSessionSecretLength is the minimum required length for the session secret.
// AES-256 requires 32 bytes minimum for secure encryption.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Validate session secret length
	if len(cfg.SessionSecret) < MinSessionSecretLength {
		return nil, fmt.Errorf("EVENTBOARD_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(cfg.SessionSecret))
	}

	// Reject known weak/default secrets
	for _, weak := range knownWeakSecrets {
		if cfg.SessionSecret == weak {
			return nil, fmt.Errorf("EVENTBOARD_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if cfg.MaxUploadMiB <= 0 {
		return nil, fmt.Errorf("EVENTBOARD_MAX_UPLOAD_MIB must be positive, got %d", cfg.MaxUploadMiB)
	}
	if cfg.ImageMaxDimension <= 0 {
		return nil, fmt.Errorf("EVENTBOARD_IMAGE_MAX_DIMENSION must be positive, got %d", cfg.ImageMaxDimension)
	}
	if cfg.SessionIdleTimeout <= 0 {
		return nil, fmt.Errorf("EVENTBOARD_SESSION_IDLE_TIMEOUT must be positive, got %s", cfg.SessionIdleTimeout)
	}
	if cfg.AuditRetentionDays <= 0 {
		return nil, fmt.Errorf("EVENTBOARD_AUDIT_RETENTION_DAYS must be positive, got %d", cfg.AuditRetentionDays)
	}
	if cfg.DoSeed && cfg.AdminPassword == "" {
		return nil, fmt.Errorf("EVENTBOARD_ADMIN_PASSWORD is required when EVENTBOARD_DO_SEED is enabled")
	}

	// Warn about low-entropy secrets
	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("EVENTBOARD_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	return cfg, nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
