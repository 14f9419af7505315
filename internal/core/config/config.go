package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fenceline-lab/fenceline/internal/rules"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level application config plus resolved rule settings.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Stores   StoresConfig   `koanf:"stores"`
	Consumer ConsumerConfig `koanf:"consumer"`
	Rules    RulesConfig    `koanf:"rules"`

	// RuleSettings is populated by Load after merging rule files over the
	// builtin defaults.
	RuleSettings map[string]rules.RuleSettings `koanf:"-"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

type DatabaseConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

// StoresConfig selects the backend for the user state and tripwire
// stores. "memory" serves tests and local development; "redis" is the
// production backend.
type StoresConfig struct {
	Type  string      `koanf:"type"` // memory | redis
	Redis RedisConfig `koanf:"redis"`
}

type RedisConfig struct {
	Addr       string `koanf:"addr"`
	Password   string `koanf:"password"`
	UserDB     int    `koanf:"user_db"`
	TripwireDB int    `koanf:"tripwire_db"`
	KeyPrefix  string `koanf:"key_prefix"`
}

type ConsumerConfig struct {
	PollInterval string `koanf:"poll_interval"`
	BatchSize    int    `koanf:"batch_size"`
	RetryBackoff string `koanf:"retry_backoff"`
	MaxBackoff   string `koanf:"max_backoff"`
}

type RulesConfig struct {
	ConfigDir string `koanf:"config_dir"`
}

func (c ConsumerConfig) durations() (poll, retry, max time.Duration, err error) {
	if poll, err = time.ParseDuration(c.PollInterval); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid consumer.poll_interval %q: %w", c.PollInterval, err)
	}
	if retry, err = time.ParseDuration(c.RetryBackoff); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid consumer.retry_backoff %q: %w", c.RetryBackoff, err)
	}
	if max, err = time.ParseDuration(c.MaxBackoff); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid consumer.max_backoff %q: %w", c.MaxBackoff, err)
	}
	return poll, retry, max, nil
}

// PollInterval returns the parsed duration. Call after Validate.
func (c ConsumerConfig) PollIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	return d
}

// RetryBackoffDuration returns the parsed duration. Call after Validate.
func (c ConsumerConfig) RetryBackoffDuration() time.Duration {
	d, _ := time.ParseDuration(c.RetryBackoff)
	return d
}

// MaxBackoffDuration returns the parsed duration. Call after Validate.
func (c ConsumerConfig) MaxBackoffDuration() time.Duration {
	d, _ := time.ParseDuration(c.MaxBackoff)
	return d
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}

	switch c.Stores.Type {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Stores.Redis.Addr) == "" {
			return fmt.Errorf("stores.redis.addr is required when stores.type is redis")
		}
		if c.Stores.Redis.UserDB < 0 || c.Stores.Redis.TripwireDB < 0 {
			return fmt.Errorf("stores.redis db numbers must be >= 0")
		}
	default:
		return fmt.Errorf("unsupported stores.type %q (must be memory or redis)", c.Stores.Type)
	}

	poll, retry, max, err := c.Consumer.durations()
	if err != nil {
		return err
	}
	if poll <= 0 {
		return fmt.Errorf("consumer.poll_interval must be > 0")
	}
	if c.Consumer.BatchSize <= 0 {
		return fmt.Errorf("consumer.batch_size must be > 0")
	}
	if retry <= 0 {
		return fmt.Errorf("consumer.retry_backoff must be > 0")
	}
	if max < retry {
		return fmt.Errorf("consumer.max_backoff must be >= consumer.retry_backoff")
	}

	return nil
}

// Load parses config from file + env, validates it, then loads and validates rule settings.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":              8080,
		"server.host":              "0.0.0.0",
		"server.max_body_size_mb":  1,
		"server.mode":              "release",
		"database.dsn":             "postgres://localhost:5432/fenceline?sslmode=disable",
		"database.max_open_conns":  25,
		"database.max_idle_conns":  25,
		"database.auto_migrate":    true,
		"stores.type":              "redis",
		"stores.redis.addr":        "localhost:6379",
		"stores.redis.password":    "",
		"stores.redis.user_db":     0,
		"stores.redis.tripwire_db": 1,
		"stores.redis.key_prefix":  "fenceline",
		"consumer.poll_interval":   "1s",
		"consumer.batch_size":      100,
		"consumer.retry_backoff":   "1s",
		"consumer.max_backoff":     "30s",
		"rules.config_dir":         "./config/rules",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("FENCELINE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "FENCELINE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	settings, err := rules.LoadSettings(cfg.Rules.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule settings: %w", err)
	}
	cfg.RuleSettings = settings

	return &cfg, nil
}
