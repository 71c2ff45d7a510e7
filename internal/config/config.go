package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port            int    `env:"PORT" envDefault:"8080"`
	DatabaseURL     string `env:"DATABASE_URL,required"`
	RedisURL        string `env:"REDIS_URL,required"`
	JWTAccessSecret string `env:"JWT_ACCESS_SECRET,required"`
	YTClientID      string `env:"YT_CLIENT_ID"`
	YTClientSecret  string `env:"YT_CLIENT_SECRET"`
	YTRefreshToken  string `env:"YT_REFRESH_TOKEN"`
	LeadTimeMinutes int    `env:"BROADCAST_LEAD_TIME_MINUTES" envDefault:"5"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`

	// Optional hex-encoded 32-byte key. When set, stream keys are encrypted
	// at rest.
	StreamKeyEncryptionKey string `env:"STREAM_KEY_ENCRYPTION_KEY"`
}

// BroadcastLeadTime is how far in the future new broadcasts are scheduled.
// The provider rejects scheduled start times in the past.
func (c *Config) BroadcastLeadTime() time.Duration {
	return time.Duration(c.LeadTimeMinutes) * time.Minute
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// BroadcastConfigured reports whether the provider credentials are present.
// Scheduling requires them; ending or cancelling a class does not.
func (c *Config) BroadcastConfigured() bool {
	return c.YTClientID != "" && c.YTClientSecret != "" && c.YTRefreshToken != ""
}

func (c *Config) Validate(isProduction bool) error {
	if isProduction {
		if err := validateSecret("JWT_ACCESS_SECRET", c.JWTAccessSecret); err != nil {
			return err
		}
		if !c.BroadcastConfigured() {
			log.Warn().Msg("YouTube OAuth credentials are not fully configured: scheduling live broadcasts will fail")
		}
	}
	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
