package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Redis      RedisConfig      `koanf:"redis"`
	Scheduler  SchedulerConfig  `koanf:"scheduler"`
	Escalation EscalationConfig `koanf:"escalation"`
	Generation GenerationConfig `koanf:"generation"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	OTLPEndpoint string  `koanf:"otlp_endpoint"`
	SamplingRate float64 `koanf:"sampling_rate"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL      string        `koanf:"url"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	TTL      time.Duration `koanf:"ttl"`
}

// SchedulerConfig drives the inject poll loop.
type SchedulerConfig struct {
	// PollInterval is the gap between scheduler ticks. A trigger that
	// qualifies mid-interval fires on the next tick, so this bounds
	// publish latency.
	PollInterval time.Duration `koanf:"poll_interval"`
}

// EscalationConfig drives the periodic analysis pipeline.
type EscalationConfig struct {
	CycleInterval time.Duration `koanf:"cycle_interval"`
	// StageTimeout bounds each generation stage individually; one slow
	// stage halts the cycle rather than the whole loop.
	StageTimeout time.Duration `koanf:"stage_timeout"`
}

// GenerationConfig points at the content generation service.
type GenerationConfig struct {
	BaseURL           string        `koanf:"base_url"`
	APIKey            string        `koanf:"api_key"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
}

func Load() (*Config, error) {
	return LoadFromFile("configs/config.yaml")
}

// LoadFromFile layers defaults, an optional yaml file, and CRISIS_-prefixed
// environment variables, in increasing precedence.
func LoadFromFile(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			DB:  0,
			TTL: 30 * time.Second,
		},
		Scheduler: SchedulerConfig{
			PollInterval: 30 * time.Second,
		},
		Escalation: EscalationConfig{
			CycleInterval: 5 * time.Minute,
			StageTimeout:  60 * time.Second,
		},
		Generation: GenerationConfig{
			RequestTimeout:    90 * time.Second,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			SamplingRate: 0.1,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Config file is optional.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("CRISIS_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "CRISIS_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("scheduler poll interval must be positive")
	}
	if c.Escalation.CycleInterval <= 0 {
		return fmt.Errorf("escalation cycle interval must be positive")
	}
	if c.Escalation.StageTimeout <= 0 {
		return fmt.Errorf("escalation stage timeout must be positive")
	}
	if c.Generation.RequestsPerSecond <= 0 {
		return fmt.Errorf("generation rate limit must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
