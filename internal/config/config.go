// Package config centralises the runtime tunables for the session server:
// a handful of environment-overridable scalars plus the larger nested
// gameplay tables (shop, combat, intervention, resonance, phase, pool)
// that ship with sane defaults and are only ever overridden in tests.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAddr is the default TCP address the session server listens on.
	DefaultAddr = ":7777"
	// DefaultMaxClients bounds concurrent connections for one process.
	DefaultMaxClients = 8
	// DefaultMaxPayloadBytes limits inbound frame size per the wire contract.
	DefaultMaxPayloadBytes = 1 << 20
	// DefaultAckTimeout is how long the sender waits before retransmitting.
	DefaultAckTimeout = 2 * time.Second
	// DefaultAckMaxRetries bounds how many times a reliable message is resent.
	DefaultAckMaxRetries = 3
	// DefaultTickHz is the orchestrator's wall-clock tick rate.
	DefaultTickHz = 60.0

	// DefaultLogLevel controls verbosity for session logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath       = "session.log"
	DefaultLogMaxSizeMB  = 100
	DefaultLogMaxBackups = 10
	DefaultLogMaxAgeDays = 7
	DefaultLogCompress   = true

	// DefaultAdminAddr is the default TCP address the admin/ops HTTP surface
	// listens on, separate from the game frame server's own listener.
	DefaultAdminAddr = ":7778"
	// DefaultSessionID is the identifier this process's lone session is
	// addressable under at GET /sessions/{id}.
	DefaultSessionID = "match-1"
)

// Config captures the process-wide runtime tunables read from the environment.
type Config struct {
	Address         string
	MaxClients      int
	MaxPayloadBytes int64
	AckTimeout      time.Duration
	AckMaxRetries   int
	TickHz          float64
	AdminToken      string
	AdminAddr       string
	SessionID       string
	ReplayDir       string
	Logging         LoggingConfig
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads the server configuration from environment variables, applying
// sane defaults and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Address:         getString("ECHO_ADDR", DefaultAddr),
		MaxClients:      DefaultMaxClients,
		MaxPayloadBytes: DefaultMaxPayloadBytes,
		AckTimeout:      DefaultAckTimeout,
		AckMaxRetries:   DefaultAckMaxRetries,
		TickHz:          DefaultTickHz,
		AdminToken:      strings.TrimSpace(os.Getenv("ECHO_ADMIN_TOKEN")),
		AdminAddr:       getString("ECHO_ADMIN_ADDR", DefaultAdminAddr),
		SessionID:       getString("ECHO_SESSION_ID", DefaultSessionID),
		ReplayDir:       strings.TrimSpace(getString("ECHO_REPLAY_DIR", "replays")),
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("ECHO_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("ECHO_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("ECHO_MAX_CLIENTS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 1 {
			problems = append(problems, fmt.Sprintf("ECHO_MAX_CLIENTS must be an integer > 1, got %q", raw))
		} else {
			cfg.MaxClients = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ECHO_MAX_PAYLOAD_BYTES")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value <= 0 || value > (1<<20) {
			problems = append(problems, fmt.Sprintf("ECHO_MAX_PAYLOAD_BYTES must be in (0, 1048576], got %q", raw))
		} else {
			cfg.MaxPayloadBytes = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ECHO_ACK_TIMEOUT")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("ECHO_ACK_TIMEOUT must be a positive duration, got %q", raw))
		} else {
			cfg.AckTimeout = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ECHO_ACK_MAX_RETRIES")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("ECHO_ACK_MAX_RETRIES must be a non-negative integer, got %q", raw))
		} else {
			cfg.AckMaxRetries = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ECHO_TICK_HZ")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("ECHO_TICK_HZ must be a positive number, got %q", raw))
		} else {
			cfg.TickHz = value
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
