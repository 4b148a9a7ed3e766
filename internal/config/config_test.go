package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ECHO_ADDR", "")
	t.Setenv("ECHO_ADMIN_TOKEN", "")
	t.Setenv("ECHO_ADMIN_ADDR", "")
	t.Setenv("ECHO_SESSION_ID", "")
	t.Setenv("ECHO_REPLAY_DIR", "")
	t.Setenv("ECHO_LOG_LEVEL", "")
	t.Setenv("ECHO_LOG_PATH", "")
	t.Setenv("ECHO_MAX_CLIENTS", "")
	t.Setenv("ECHO_MAX_PAYLOAD_BYTES", "")
	t.Setenv("ECHO_ACK_TIMEOUT", "")
	t.Setenv("ECHO_ACK_MAX_RETRIES", "")
	t.Setenv("ECHO_TICK_HZ", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Address != DefaultAddr {
		t.Fatalf("expected default addr %q, got %q", DefaultAddr, cfg.Address)
	}
	if cfg.MaxClients != DefaultMaxClients {
		t.Fatalf("expected default max clients %d, got %d", DefaultMaxClients, cfg.MaxClients)
	}
	if cfg.MaxPayloadBytes != DefaultMaxPayloadBytes {
		t.Fatalf("expected default max payload %d, got %d", DefaultMaxPayloadBytes, cfg.MaxPayloadBytes)
	}
	if cfg.AckTimeout != DefaultAckTimeout {
		t.Fatalf("expected default ack timeout %v, got %v", DefaultAckTimeout, cfg.AckTimeout)
	}
	if cfg.AckMaxRetries != DefaultAckMaxRetries {
		t.Fatalf("expected default ack max retries %d, got %d", DefaultAckMaxRetries, cfg.AckMaxRetries)
	}
	if cfg.TickHz != DefaultTickHz {
		t.Fatalf("expected default tick hz %v, got %v", DefaultTickHz, cfg.TickHz)
	}
	if cfg.AdminToken != "" {
		t.Fatalf("expected admin token to be empty by default")
	}
	if cfg.ReplayDir != "replays" {
		t.Fatalf("expected default replay dir %q, got %q", "replays", cfg.ReplayDir)
	}
	if cfg.AdminAddr != DefaultAdminAddr {
		t.Fatalf("expected default admin addr %q, got %q", DefaultAdminAddr, cfg.AdminAddr)
	}
	if cfg.SessionID != DefaultSessionID {
		t.Fatalf("expected default session id %q, got %q", DefaultSessionID, cfg.SessionID)
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.Logging.Level)
	}
	if cfg.Logging.Path != DefaultLogPath {
		t.Fatalf("expected default log path %q, got %q", DefaultLogPath, cfg.Logging.Path)
	}
	if cfg.Logging.MaxSizeMB != DefaultLogMaxSizeMB {
		t.Fatalf("expected default log max size %d, got %d", DefaultLogMaxSizeMB, cfg.Logging.MaxSizeMB)
	}
	if cfg.Logging.Compress != DefaultLogCompress {
		t.Fatalf("expected default log compress %t, got %t", DefaultLogCompress, cfg.Logging.Compress)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ECHO_ADDR", "127.0.0.1:9000")
	t.Setenv("ECHO_MAX_CLIENTS", "12")
	t.Setenv("ECHO_MAX_PAYLOAD_BYTES", "2048")
	t.Setenv("ECHO_ACK_TIMEOUT", "5s")
	t.Setenv("ECHO_ACK_MAX_RETRIES", "7")
	t.Setenv("ECHO_TICK_HZ", "30")
	t.Setenv("ECHO_ADMIN_TOKEN", "s3cret")
	t.Setenv("ECHO_ADMIN_ADDR", "127.0.0.1:9100")
	t.Setenv("ECHO_SESSION_ID", "custom-match")
	t.Setenv("ECHO_REPLAY_DIR", "/var/run/replays")
	t.Setenv("ECHO_LOG_LEVEL", "debug")
	t.Setenv("ECHO_LOG_PATH", "/var/log/session.log")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Address != "127.0.0.1:9000" {
		t.Fatalf("unexpected address: %q", cfg.Address)
	}
	if cfg.MaxClients != 12 {
		t.Fatalf("expected max clients 12, got %d", cfg.MaxClients)
	}
	if cfg.MaxPayloadBytes != 2048 {
		t.Fatalf("expected overridden max payload, got %d", cfg.MaxPayloadBytes)
	}
	if cfg.AckTimeout != 5*time.Second {
		t.Fatalf("expected ack timeout 5s, got %v", cfg.AckTimeout)
	}
	if cfg.AckMaxRetries != 7 {
		t.Fatalf("expected ack max retries 7, got %d", cfg.AckMaxRetries)
	}
	if cfg.TickHz != 30 {
		t.Fatalf("expected tick hz 30, got %v", cfg.TickHz)
	}
	if cfg.AdminToken != "s3cret" {
		t.Fatalf("expected overridden admin token, got %q", cfg.AdminToken)
	}
	if cfg.ReplayDir != "/var/run/replays" {
		t.Fatalf("expected replay dir override, got %q", cfg.ReplayDir)
	}
	if cfg.AdminAddr != "127.0.0.1:9100" {
		t.Fatalf("expected admin addr override, got %q", cfg.AdminAddr)
	}
	if cfg.SessionID != "custom-match" {
		t.Fatalf("expected session id override, got %q", cfg.SessionID)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected overridden log level debug, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Path != "/var/log/session.log" {
		t.Fatalf("unexpected log path %q", cfg.Logging.Path)
	}
}

func TestLoadReturnsValidationErrors(t *testing.T) {
	t.Setenv("ECHO_MAX_PAYLOAD_BYTES", "-5")
	t.Setenv("ECHO_ACK_TIMEOUT", "abc")
	t.Setenv("ECHO_MAX_CLIENTS", "1")
	t.Setenv("ECHO_ACK_MAX_RETRIES", "-2")
	t.Setenv("ECHO_TICK_HZ", "-1")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error from invalid configuration, got nil")
	}

	for _, want := range []string{
		"ECHO_MAX_PAYLOAD_BYTES",
		"ECHO_ACK_TIMEOUT",
		"ECHO_MAX_CLIENTS",
		"ECHO_ACK_MAX_RETRIES",
		"ECHO_TICK_HZ",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %s, got %q", want, err.Error())
		}
	}
}

func TestLoadRejectsOversizedPayload(t *testing.T) {
	t.Setenv("ECHO_MAX_PAYLOAD_BYTES", "2097152")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "ECHO_MAX_PAYLOAD_BYTES") {
		t.Fatalf("expected oversized payload to be rejected, got err=%v", err)
	}
}

func TestDefaultGameRulesBundlesEverySetting(t *testing.T) {
	rules := DefaultGameRules()

	if rules.Player.BenchSize <= 0 {
		t.Fatalf("expected a positive bench size")
	}
	if rules.Shop.Size <= 0 {
		t.Fatalf("expected a positive shop size")
	}
	if len(rules.Combat.StarMultipliers) != 2 {
		t.Fatalf("expected two star multiplier entries, got %d", len(rules.Combat.StarMultipliers))
	}
	if len(rules.Intervention.Kinds) == 0 {
		t.Fatalf("expected at least one configured intervention kind")
	}
	if len(rules.Resonance.Bonuses) == 0 {
		t.Fatalf("expected at least one configured resonance")
	}
	if rules.Phase.RoundCap <= 0 {
		t.Fatalf("expected a positive round cap")
	}
	if rules.Pool.CopiesPerRarity[0] <= 0 {
		t.Fatalf("expected a positive common pool seed count")
	}
}

func TestShopSettingsBucketForLevelFallsBackToHighest(t *testing.T) {
	shop := DefaultShopSettings()

	bucket := shop.BucketForLevel(1)
	if bucket.Weights[0] != 100 {
		t.Fatalf("expected level 1 to roll 100%% common, got %v", bucket.Weights)
	}

	top := shop.BucketForLevel(999)
	last := shop.Buckets[len(shop.Buckets)-1]
	if top.Weights != last.Weights {
		t.Fatalf("expected an out-of-range level to fall back to the top bucket")
	}
}
