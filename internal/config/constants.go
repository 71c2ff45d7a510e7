package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Websocket connection limits
const (
	WSWriteTimeout    = 10 * time.Second
	WSPongTimeout     = 60 * time.Second
	WSPingInterval    = 54 * time.Second
	WSMaxMessageBytes = 16 * 1024
	WSSendBufferSize  = 100
)

// Transcript replay window on join
const (
	HistoryDefaultLimit = 50
	HistoryMaxLimit     = 200
)

// Background provider status polling
const StatusPollInterval = 1 * time.Minute

// Default rate limiting
const DefaultRateLimitPerMin = 60
