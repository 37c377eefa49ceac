package domain

import (
	"fmt"
	"time"
)

// Config holds the complete ClaimGuard configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server" yaml:"server"`

	// Component configurations
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	Cache    CacheConfig    `json:"cache" yaml:"cache"`
	EventBus EventBusConfig `json:"eventBus" yaml:"event_bus"`
	Worker   WorkerConfig   `json:"worker" yaml:"worker"`

	// Scoring rules
	Scoring ScoringConfig `json:"scoring" yaml:"scoring"`

	// AI collaborators
	AI AIConfig `json:"ai" yaml:"ai"`

	// Observability
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string   `json:"host" yaml:"host"`
	Port           int      `json:"port" yaml:"port"`
	ReadTimeout    int      `json:"readTimeout" yaml:"read_timeout"`   // seconds
	WriteTimeout   int      `json:"writeTimeout" yaml:"write_timeout"` // seconds
	MaxUploadMB    int      `json:"maxUploadMb" yaml:"max_upload_mb"`
	AllowedOrigins []string `json:"allowedOrigins" yaml:"allowed_origins"`
}

// AIConfig holds settings for the generative AI collaborators.
type AIConfig struct {
	// Provider selects the client implementation; only "gemini" is built in.
	Provider    string        `json:"provider" yaml:"provider"`
	APIKey      string        `json:"-" yaml:"api_key"`
	BaseURL     string        `json:"baseUrl" yaml:"base_url"`
	Model       string        `json:"model" yaml:"model"`
	VisionModel string        `json:"visionModel" yaml:"vision_model"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	// MaxRetries is the number of retries after the first failed call.
	MaxRetries  int           `json:"maxRetries" yaml:"max_retries"`

	// ExplanationTTL is how long generated explanations are cached. Zero disables caching.
	ExplanationTTL time.Duration `json:"explanationTtl" yaml:"explanation_ttl"`

	// Per-session limits on collaborator endpoints.
	RequestsPerMinute int `json:"requestsPerMinute" yaml:"requests_per_minute"`
	Burst             int `json:"burst" yaml:"burst"`
}

// WorkerConfig controls the asynchronous report worker.
type WorkerConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"serviceName" yaml:"service_name"`
}

// DefaultConfig returns a single-process configuration: in-memory session
// storage, channel bus, and the stock scoring rules.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30,
			WriteTimeout:   60,
			MaxUploadMB:    20,
			AllowedOrigins: []string{"*"},
		},
		Storage: StorageConfig{
			Driver:        "memory",
			SessionTTL:    24 * time.Hour,
			SQLitePath:    "./claimguard.db",
			PurgeInterval: 10 * time.Minute,
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Scoring: DefaultScoringConfig(),
		AI: AIConfig{
			Provider:          "gemini",
			BaseURL:           "https://generativelanguage.googleapis.com/v1beta",
			Model:             "gemini-2.0-flash",
			VisionModel:       "gemini-2.0-flash",
			Timeout:           45 * time.Second,
			MaxRetries:        3,
			ExplanationTTL:    time.Hour,
			RequestsPerMinute: 30,
			Burst:             10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "claimguard",
		},
	}
}

// SharedConfig returns a configuration for running several replicas:
// PostgreSQL storage, Redis two-phase cache and NATS.
func SharedConfig() *Config {
	cfg := DefaultConfig()
	cfg.Storage.Driver = "postgres"
	cfg.Storage.PostgresHost = "localhost"
	cfg.Storage.PostgresPort = 5432
	cfg.Storage.PostgresDB = "claimguard"
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
		NATSQueueGroup:    "claimguard-workers",
	}
	cfg.Worker.Enabled = true
	cfg.Tracing.Enabled = true
	return cfg
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d out of range", ErrInvalidInput, c.Server.Port)
	}
	switch c.Storage.Driver {
	case "memory", "redis", "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidInput, c.Storage.Driver)
	}
	if c.Storage.SessionTTL <= 0 {
		return fmt.Errorf("%w: storage session ttl must be positive", ErrInvalidInput)
	}
	if c.Storage.Driver == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("%w: redis storage requires cache.redis_addr", ErrInvalidInput)
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("%w: unknown cache type %q", ErrInvalidInput, c.Cache.Type)
	}
	switch c.EventBus.Type {
	case "channel", "nats":
	default:
		return fmt.Errorf("%w: unknown event bus type %q", ErrInvalidInput, c.EventBus.Type)
	}
	if c.AI.Provider != "" && c.AI.Provider != "gemini" {
		return fmt.Errorf("%w: unknown ai provider %q", ErrInvalidInput, c.AI.Provider)
	}
	return c.Scoring.Validate()
}
