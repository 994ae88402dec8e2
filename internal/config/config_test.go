package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "version: 1\n"))
	if err != nil {
		t.Fatalf("expected load to succeed: %v", err)
	}

	if cfg.Solana.RPCURL != DefaultRPCURL {
		t.Fatalf("rpc_url default not applied, got %q", cfg.Solana.RPCURL)
	}
	if cfg.Solana.Mint != DefaultMint {
		t.Fatalf("mint default not applied, got %q", cfg.Solana.Mint)
	}
	if got := cfg.Solana.PollIntervalDuration(); got != 10*time.Second {
		t.Fatalf("poll interval default not applied, got %s", got)
	}
	if cfg.Solana.BatchLimit != DefaultBatchLimit || cfg.Solana.DedupeCapacity != DefaultDedupeCapacity {
		t.Fatalf("batch/capacity defaults not applied: %d / %d", cfg.Solana.BatchLimit, cfg.Solana.DedupeCapacity)
	}
	if got := cfg.Solana.Backoff.MaxDuration(); got != 30*time.Second {
		t.Fatalf("backoff cap default not applied, got %s", got)
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0].Type != "stdout" {
		t.Fatalf("empty sink list should get a stdout sink, got %+v", cfg.Sinks)
	}
	if cfg.Global.DBPath != DefaultDBPath {
		t.Fatalf("db_path default not applied, got %q", cfg.Global.DBPath)
	}
}

func TestLoadInterpolatesEnv(t *testing.T) {
	cfgYAML := `
version: 1
solana:
  rpc_url: ${RPC_URL}
sinks:
  - id: ops
    type: slack
    webhook_url: ${SLACK_HOOK}
`
	t.Setenv("RPC_URL", "http://example-rpc")
	t.Setenv("SLACK_HOOK", "https://hooks.slack.test")

	cfg, err := Load(writeConfig(t, cfgYAML))
	if err != nil {
		t.Fatalf("expected load to succeed: %v", err)
	}
	if got := cfg.Solana.RPCURL; got != "http://example-rpc" {
		t.Fatalf("rpc_url not interpolated, got %q", got)
	}
	if got := cfg.Sinks[0].WebhookURL; got != "https://hooks.slack.test" {
		t.Fatalf("webhook_url not interpolated, got %q", got)
	}
}

func TestLoadFailsOnMissingEnv(t *testing.T) {
	cfgYAML := `
version: 1
solana:
  rpc_url: ${UNSET_RPC_URL}
`
	if _, err := Load(writeConfig(t, cfgYAML)); err == nil {
		t.Fatalf("expected missing env to fail")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing version", "solana:\n  mint: " + DefaultMint + "\n"},
		{"bad mint", "version: 1\nsolana:\n  mint: not-a-key\n"},
		{"bad interval", "version: 1\nsolana:\n  poll_interval: soon\n"},
		{"batch too large", "version: 1\nsolana:\n  batch_limit: 5000\n"},
		{"negative capacity", "version: 1\nsolana:\n  dedupe_capacity: -1\n"},
		{"multiplier below one", "version: 1\nsolana:\n  backoff:\n    multiplier: 0.5\n"},
		{"max below initial", "version: 1\nsolana:\n  backoff:\n    initial: 10s\n    max: 1s\n"},
		{"unknown sink type", "version: 1\nsinks:\n  - id: s1\n    type: pager\n"},
		{"slack without webhook", "version: 1\nsinks:\n  - id: s1\n    type: slack\n"},
		{"webhook without url", "version: 1\nsinks:\n  - id: s1\n    type: webhook\n"},
		{"duplicate sink id", "version: 1\nsinks:\n  - id: s1\n    type: stdout\n  - id: s1\n    type: stdout\n"},
		{"negative rate limit", "version: 1\nsinks:\n  - id: s1\n    type: stdout\n    rate_per_minute: -5\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Fatalf("expected validation to fail")
			}
		})
	}
}

func TestWebhookMethodDefaultsToPost(t *testing.T) {
	cfgYAML := `
version: 1
sinks:
  - id: hook
    type: webhook
    url: https://example.test/burns
`
	cfg, err := Load(writeConfig(t, cfgYAML))
	if err != nil {
		t.Fatalf("expected load to succeed: %v", err)
	}
	if got := cfg.Sinks[0].Method; got != "POST" {
		t.Fatalf("method should default to POST, got %q", got)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	tmp := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmp, ".env"), []byte("DOTENV_RPC=http://dotenv-rpc\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	cfgPath := filepath.Join(tmp, "config.yaml")
	cfgYAML := "version: 1\nsolana:\n  rpc_url: ${DOTENV_RPC}\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("expected load to succeed: %v", err)
	}
	if got := cfg.Solana.RPCURL; got != "http://dotenv-rpc" {
		t.Fatalf("rpc_url not read from .env, got %q", got)
	}
	os.Unsetenv("DOTENV_RPC")
}
