package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "bessanalytics/backend/libs/config"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

const defaultPort = "8089"

// HTTPConfig configures the listener.
type HTTPConfig struct {
	Port string `yaml:"port" env:"BESS_HTTP_PORT"`
}

// DatabaseConfig selects and tunes the asset store.
type DatabaseConfig struct {
	Driver       string `yaml:"driver" env:"BESS_DB_DRIVER"`
	DSN          string `yaml:"dsn" env:"BESS_POSTGRES_DSN"`
	MaxOpenConns int    `yaml:"maxOpenConns" env:"BESS_DB_MAX_OPEN_CONNS"`
	Migrate      bool   `yaml:"migrate" env:"BESS_DB_MIGRATE"`
}

// RedisConfig configures the dashboard cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"BESS_REDIS_ADDR"`
	Password string        `yaml:"password" env:"BESS_REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"BESS_REDIS_DB"`
	TTL      time.Duration `yaml:"ttl" env:"BESS_DASHBOARD_TTL"`
}

// IngestionConfig configures seeding and merge policy.
type IngestionConfig struct {
	SeedFile    string `yaml:"seedFile" env:"BESS_SEED_FILE"`
	ScalarMerge string `yaml:"scalarMerge" env:"BESS_SCALAR_MERGE"`
}

// FeedConfig tunes the dashboard websocket feed.
type FeedConfig struct {
	PingInterval time.Duration `yaml:"pingInterval" env:"BESS_FEED_PING_INTERVAL"`
	WriteTimeout time.Duration `yaml:"writeTimeout" env:"BESS_FEED_WRITE_TIMEOUT"`
}

// Config defines bess service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Feed      FeedConfig      `yaml:"feed"`
}

func defaults() *Config {
	return &Config{
		HTTP:      HTTPConfig{Port: defaultPort},
		Database:  DatabaseConfig{Driver: DriverPostgres, Migrate: true},
		Redis:     RedisConfig{TTL: 30 * time.Second},
		Ingestion: IngestionConfig{ScalarMerge: "overwrite"},
		Feed: FeedConfig{
			PingInterval: 30 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Load configuration using shared helper (CONFIG_FILE, then environment).
func Load() (*Config, error) {
	return load(func(cfg *Config) error { return libconfig.LoadConfig(cfg) })
}

// LoadFile reads configuration from path instead of CONFIG_FILE. Environment still overrides it.
func LoadFile(path string) (*Config, error) {
	return load(func(cfg *Config) error { return libconfig.LoadConfigFile(path, cfg) })
}

func load(fill func(*Config) error) (*Config, error) {
	cfg := defaults()
	if err := fill(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "", DriverPostgres:
		c.Database.Driver = DriverPostgres
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("config: database dsn required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if c.Redis.DB < 0 {
		return errors.New("config: redis db must not be negative")
	}
	if c.Feed.PingInterval <= 0 || c.Feed.WriteTimeout <= 0 {
		return errors.New("config: feed intervals must be positive")
	}
	return nil
}

// CacheEnabled reports whether a redis address is configured.
func (c *Config) CacheEnabled() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = defaultPort
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
