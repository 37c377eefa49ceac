// Package config loads ClaimGuard configuration: built-in defaults, an
// optional YAML file and CLAIMGUARD_* environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/claimguard/internal/domain"
)

// Environment variables read by Load.
const (
	EnvConfig      = "CLAIMGUARD_CONFIG"
	EnvProfile     = "CLAIMGUARD_PROFILE"
	EnvDebug       = "CLAIMGUARD_DEBUG"
	EnvPort        = "CLAIMGUARD_PORT"
	EnvStorage     = "CLAIMGUARD_STORAGE"
	EnvRedisAddr   = "CLAIMGUARD_REDIS_ADDR"
	EnvBus         = "CLAIMGUARD_BUS"
	EnvNATSURL     = "CLAIMGUARD_NATS_URL"
	EnvAsyncWorker = "CLAIMGUARD_ASYNC_WORKER"
	EnvGeminiKey   = "GEMINI_API_KEY"
)

// Load builds the configuration. path may be empty, in which case
// CLAIMGUARD_CONFIG is consulted; with neither set only defaults and
// environment overrides apply.
func Load(path string) (*domain.Config, error) {
	cfg := domain.DefaultConfig()
	if strings.EqualFold(os.Getenv(EnvProfile), "shared") {
		cfg = domain.SharedConfig()
	}

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays a YAML file onto cfg. ${VAR} references are expanded first.
func loadFile(path string, cfg *domain.Config) error {
	// #nosec G304 -- path is operator-provided config path.
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(raw))
	expanded = strings.ReplaceAll(expanded, "\r\n", "\n")

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *domain.Config) error {
	if v, ok := lookup(EnvDebug); ok {
		if on, err := strconv.ParseBool(v); err == nil && on {
			cfg.Logging.Level = "debug"
		}
	}
	if v, ok := lookup(EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a port", domain.ErrInvalidInput, EnvPort, v)
		}
		cfg.Server.Port = port
	}
	if v, ok := lookup(EnvStorage); ok {
		cfg.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := lookup(EnvRedisAddr); ok {
		cfg.Cache.RedisAddr = v
		// A Redis address without a Redis cache would be ignored.
		if cfg.Cache.Type == "memory" {
			cfg.Cache.Type = "redis"
			cfg.Cache.EnableTwoPhase = true
		}
	}
	if v, ok := lookup(EnvBus); ok {
		cfg.EventBus.Type = strings.ToLower(v)
	}
	if v, ok := lookup(EnvNATSURL); ok {
		cfg.EventBus.NATSUrl = v
	}
	if v, ok := lookup(EnvAsyncWorker); ok {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a boolean", domain.ErrInvalidInput, EnvAsyncWorker, v)
		}
		cfg.Worker.Enabled = on
	}
	if v, ok := lookup(EnvGeminiKey); ok {
		cfg.AI.APIKey = v
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
