/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Session store backend selection.
type SessionBackend string

const (
	SessionStoreFile  SessionBackend = "file"
	SessionStoreRedis SessionBackend = "redis"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int

	DBBackend DatabaseBackend
	DBDSN     string

	// Audio session persistence
	SessionBackend   SessionBackend
	SessionStatePath string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int

	// Event bridge
	NATSEnabled        bool
	NATSURL            string
	EventSubjectPrefix string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Playback start retry policy (not-ready players)
	MaxStartAttempts   int
	StartRetryInterval time.Duration

	// Autoplay decision tuning. These are product-tuned values, not derived
	// invariants, so every one of them is overridable.
	HoldThreshold       float64
	SwitchInThreshold   float64
	PauseThreshold      float64
	AudioPauseThreshold float64
	CenterBand          float64
	MinSwitchInterval   time.Duration
	ViewportHeight      float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("VERSEFEED_ENV", "development"),
		HTTPBind:    getEnv("VERSEFEED_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("VERSEFEED_HTTP_PORT", 8080),

		DBBackend: DatabaseBackend(getEnv("VERSEFEED_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:     getEnv("VERSEFEED_DB_DSN", "versefeed.db"),

		SessionBackend:   SessionBackend(getEnv("VERSEFEED_SESSION_BACKEND", string(SessionStoreFile))),
		SessionStatePath: getEnv("VERSEFEED_SESSION_STATE_PATH", "audio_session.json"),
		RedisAddr:        getEnv("VERSEFEED_REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("VERSEFEED_REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("VERSEFEED_REDIS_DB", 0),

		NATSEnabled:        getEnvBool("VERSEFEED_NATS_ENABLED", false),
		NATSURL:            getEnv("VERSEFEED_NATS_URL", "nats://localhost:4222"),
		EventSubjectPrefix: getEnv("VERSEFEED_EVENT_SUBJECT_PREFIX", "versefeed.events"),

		TracingEnabled:    getEnvBool("VERSEFEED_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("VERSEFEED_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("VERSEFEED_TRACING_SAMPLE_RATE", 1.0),

		MaxStartAttempts:   getEnvInt("VERSEFEED_MAX_START_ATTEMPTS", 40),
		StartRetryInterval: time.Duration(getEnvInt("VERSEFEED_START_RETRY_INTERVAL_MS", 250)) * time.Millisecond,

		HoldThreshold:       getEnvFloat("VERSEFEED_HOLD_THRESHOLD", 0.25),
		SwitchInThreshold:   getEnvFloat("VERSEFEED_SWITCH_IN_THRESHOLD", 0.70),
		PauseThreshold:      getEnvFloat("VERSEFEED_PAUSE_THRESHOLD", 0.12),
		AudioPauseThreshold: getEnvFloat("VERSEFEED_AUDIO_PAUSE_THRESHOLD", 0.30),
		CenterBand:          getEnvFloat("VERSEFEED_CENTER_BAND", 0.30),
		MinSwitchInterval:   time.Duration(getEnvInt("VERSEFEED_MIN_SWITCH_INTERVAL_MS", 900)) * time.Millisecond,
		ViewportHeight:      getEnvFloat("VERSEFEED_VIEWPORT_HEIGHT", 800),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.SessionBackend != SessionStoreFile && cfg.SessionBackend != SessionStoreRedis {
		return nil, fmt.Errorf("unsupported session backend %q", cfg.SessionBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("VERSEFEED_DB_DSN must be provided")
	}

	for name, v := range map[string]float64{
		"VERSEFEED_HOLD_THRESHOLD":        cfg.HoldThreshold,
		"VERSEFEED_SWITCH_IN_THRESHOLD":   cfg.SwitchInThreshold,
		"VERSEFEED_PAUSE_THRESHOLD":       cfg.PauseThreshold,
		"VERSEFEED_AUDIO_PAUSE_THRESHOLD": cfg.AudioPauseThreshold,
		"VERSEFEED_CENTER_BAND":           cfg.CenterBand,
	} {
		if v <= 0 || v > 1 {
			return nil, fmt.Errorf("%s must be in (0, 1], got %v", name, v)
		}
	}

	if cfg.PauseThreshold >= cfg.HoldThreshold {
		return nil, fmt.Errorf("VERSEFEED_PAUSE_THRESHOLD must be below VERSEFEED_HOLD_THRESHOLD")
	}

	if cfg.MaxStartAttempts < 1 {
		return nil, fmt.Errorf("VERSEFEED_MAX_START_ATTEMPTS must be at least 1")
	}

	if cfg.ViewportHeight <= 0 {
		return nil, fmt.Errorf("VERSEFEED_VIEWPORT_HEIGHT must be positive")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}
