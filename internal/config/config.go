package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults for the Solana section. The mint default is the canonical
// mainnet USDC mint.
const (
	DefaultRPCURL         = "https://api.mainnet-beta.solana.com"
	DefaultMint           = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	DefaultPollInterval   = "10s"
	DefaultBatchLimit     = 100
	DefaultDedupeCapacity = 10000
	DefaultBackoffInitial = "1s"
	DefaultBackoffMax     = "30s"
	DefaultBackoffFactor  = 2.0
	DefaultDBPath         = "burn-listener.db"
)

// Config holds the YAML configuration.
type Config struct {
	Version int          `yaml:"version"`
	Global  GlobalConfig `yaml:"global"`
	Solana  SolanaConfig `yaml:"solana"`
	Sinks   []Sink       `yaml:"sinks"`
}

type GlobalConfig struct {
	DBPath string `yaml:"db_path"`
}

// SolanaConfig describes the tracked mint and the polling policy.
type SolanaConfig struct {
	RPCURL         string        `yaml:"rpc_url"`
	Mint           string        `yaml:"mint"`
	PollInterval   string        `yaml:"poll_interval"`
	BatchLimit     int           `yaml:"batch_limit"`
	DedupeCapacity int           `yaml:"dedupe_capacity"`
	Backoff        BackoffConfig `yaml:"backoff"`
}

// BackoffConfig bounds the exponential retry delay around RPC calls.
type BackoffConfig struct {
	Initial    string  `yaml:"initial"`
	Max        string  `yaml:"max"`
	Multiplier float64 `yaml:"multiplier"`
}

type Sink struct {
	ID         string `yaml:"id"`
	Type       string `yaml:"type"`
	WebhookURL string `yaml:"webhook_url"`
	Template   string `yaml:"template"`
	URL        string `yaml:"url"`
	Method     string `yaml:"method"`
	// RatePerMinute caps outbound sends; 0 means unlimited.
	RatePerMinute int `yaml:"rate_per_minute"`
}

var envPattern = regexp.MustCompile(`\${([A-Za-z_][A-Za-z0-9_]*)}`)

// Load reads, interpolates env vars, parses YAML, applies defaults, and
// validates. Validation failures here are the only fatal error class: they
// surface to the operator before the poll loop starts.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}

	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	interpolated, err := interpolateEnv(string(raw))
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv(configPath string) error {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

func interpolateEnv(input string) (string, error) {
	missing := []string{}
	out := envPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		missing = append(missing, name)
		return match
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("missing environment variables: %s", strings.Join(dedup(missing), ", "))
	}
	return out, nil
}

// ApplyDefaults fills unset fields. An empty sink list gets a stdout sink so
// a minimal config still emits somewhere visible.
func (c *Config) ApplyDefaults() {
	if c.Global.DBPath == "" {
		c.Global.DBPath = DefaultDBPath
	}
	s := &c.Solana
	if s.RPCURL == "" {
		s.RPCURL = DefaultRPCURL
	}
	if s.Mint == "" {
		s.Mint = DefaultMint
	}
	if s.PollInterval == "" {
		s.PollInterval = DefaultPollInterval
	}
	if s.BatchLimit == 0 {
		s.BatchLimit = DefaultBatchLimit
	}
	if s.DedupeCapacity == 0 {
		s.DedupeCapacity = DefaultDedupeCapacity
	}
	if s.Backoff.Initial == "" {
		s.Backoff.Initial = DefaultBackoffInitial
	}
	if s.Backoff.Max == "" {
		s.Backoff.Max = DefaultBackoffMax
	}
	if s.Backoff.Multiplier == 0 {
		s.Backoff.Multiplier = DefaultBackoffFactor
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []Sink{{ID: "stdout", Type: "stdout"}}
	}
}

// Validate performs small, direct schema checks.
func (c *Config) Validate() error {
	if c.Version == 0 {
		return errors.New("version is required")
	}
	if err := c.Solana.Validate(); err != nil {
		return fmt.Errorf("solana: %w", err)
	}

	sinkIDs := map[string]struct{}{}
	for i := range c.Sinks {
		s := &c.Sinks[i]
		if _, exists := sinkIDs[s.ID]; exists {
			return fmt.Errorf("duplicate sink id: %s", s.ID)
		}
		sinkIDs[s.ID] = struct{}{}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("sink %s: %w", s.ID, err)
		}
	}
	return nil
}

func (s *SolanaConfig) Validate() error {
	if s.RPCURL == "" {
		return errors.New("rpc_url is required")
	}
	if _, err := solana.PublicKeyFromBase58(s.Mint); err != nil {
		return fmt.Errorf("invalid mint address %q: %w", s.Mint, err)
	}
	if _, err := time.ParseDuration(s.PollInterval); err != nil {
		return fmt.Errorf("invalid poll_interval %q: %w", s.PollInterval, err)
	}
	if s.BatchLimit < 1 || s.BatchLimit > 1000 {
		return fmt.Errorf("batch_limit must be in [1,1000], got %d", s.BatchLimit)
	}
	if s.DedupeCapacity < 1 {
		return fmt.Errorf("dedupe_capacity must be positive, got %d", s.DedupeCapacity)
	}
	return s.Backoff.Validate()
}

func (b *BackoffConfig) Validate() error {
	initial, err := time.ParseDuration(b.Initial)
	if err != nil {
		return fmt.Errorf("invalid backoff.initial %q: %w", b.Initial, err)
	}
	max, err := time.ParseDuration(b.Max)
	if err != nil {
		return fmt.Errorf("invalid backoff.max %q: %w", b.Max, err)
	}
	if initial <= 0 || max < initial {
		return fmt.Errorf("backoff must satisfy 0 < initial <= max, got %s / %s", b.Initial, b.Max)
	}
	if b.Multiplier < 1 {
		return fmt.Errorf("backoff.multiplier must be >= 1, got %v", b.Multiplier)
	}
	return nil
}

func (s *Sink) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.Type == "" {
		return errors.New("type is required")
	}
	if s.RatePerMinute < 0 {
		return fmt.Errorf("rate_per_minute must be non-negative, got %d", s.RatePerMinute)
	}

	switch strings.ToLower(s.Type) {
	case "stdout":
		// no options
	case "slack", "teams":
		if s.WebhookURL == "" {
			return errors.New("webhook_url is required for slack/teams sinks")
		}
	case "webhook":
		if s.URL == "" {
			return errors.New("url is required for webhook sink")
		}
		if s.Method == "" {
			s.Method = "POST"
		}
	default:
		return fmt.Errorf("unsupported sink type: %s", s.Type)
	}
	return nil
}

// MintKey returns the validated mint address as a public key.
func (s *SolanaConfig) MintKey() solana.PublicKey {
	return solana.MustPublicKeyFromBase58(s.Mint)
}

// PollIntervalDuration returns the parsed poll interval; call after Validate.
func (s *SolanaConfig) PollIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(s.PollInterval)
	return d
}

// InitialDuration returns the parsed initial delay; call after Validate.
func (b *BackoffConfig) InitialDuration() time.Duration {
	d, _ := time.ParseDuration(b.Initial)
	return d
}

// MaxDuration returns the parsed delay cap; call after Validate.
func (b *BackoffConfig) MaxDuration() time.Duration {
	d, _ := time.ParseDuration(b.Max)
	return d
}

func dedup(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
