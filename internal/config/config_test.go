package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads with required env vars", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/liveclass")
		t.Setenv("REDIS_URL", "redis://localhost:6379")
		t.Setenv("JWT_ACCESS_SECRET", "test-secret")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, ":8080", cfg.Addr())
	})

	t.Run("fails without database url", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("REDIS_URL", "redis://localhost:6379")
		t.Setenv("JWT_ACCESS_SECRET", "test-secret")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("production rejects short jwt secret", func(t *testing.T) {
		cfg := &Config{JWTAccessSecret: "short"}
		err := cfg.Validate(true)
		assert.Error(t, err)
	})

	t.Run("production rejects known weak secret", func(t *testing.T) {
		cfg := &Config{JWTAccessSecret: "change-me"}
		err := cfg.Validate(true)
		assert.Error(t, err)
	})

	t.Run("development allows anything", func(t *testing.T) {
		cfg := &Config{JWTAccessSecret: "dev"}
		assert.NoError(t, cfg.Validate(false))
	})
}

func TestBroadcastConfigured(t *testing.T) {
	cfg := &Config{YTClientID: "id", YTClientSecret: "secret", YTRefreshToken: "token"}
	assert.True(t, cfg.BroadcastConfigured())

	cfg.YTRefreshToken = ""
	assert.False(t, cfg.BroadcastConfigured())
}
