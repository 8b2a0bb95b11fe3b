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

// How long a dispatch scan may take before its cross-node lock expires.
const DispatchLockTTL = 2 * time.Minute

// How long a worker blocks waiting for a queue message before re-checking
// for shutdown.
const QueueDequeueTimeout = 5 * time.Second

// Per-scan and per-stage operation deadlines.
const (
	DispatchScanTimeout = 30 * time.Second
	StageTimeout        = 30 * time.Minute
)
