// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"finledger/internal/core"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL" env-default:""`
	StoreDriver string `env:"STORE_DRIVER" env-default:"postgres"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" env-default:"false"`

	ServerPort     string `env:"SERVER_PORT" env-default:"8080"`
	MetricsPort    string `env:"METRICS_PORT" env-default:""`
	AllowedOrigins string `env:"ALLOWED_ORIGINS" env-default:"http://localhost:3000"`

	JWTSecret     string `env:"JWT_SECRET" env-default:""`
	AuthDisabled  bool   `env:"AUTH_DISABLED" env-default:"false"`
	DefaultTenant string `env:"DEFAULT_TENANT" env-default:"default"`

	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `env:"LOG_FORMAT" env-default:"json"`

	LeafOnlyPosting    bool   `env:"LEAF_ONLY_POSTING" env-default:"true"`
	AllowNegativeStock bool   `env:"ALLOW_NEGATIVE_STOCK" env-default:"false"`
	BaseCurrency       string `env:"BASE_CURRENCY" env-default:"USD"`
}

// Load reads .env files (when present) and then the environment. Variables already
// set in the environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks combinations cleanenv cannot express.
func (c *Config) Validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", DriverPostgres)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.StoreDriver)
	}
	c.BaseCurrency = strings.ToUpper(strings.TrimSpace(c.BaseCurrency))
	return nil
}

// ValidateServer adds the checks that only matter for the HTTP API process.
func (c *Config) ValidateServer() error {
	if !c.AuthDisabled && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required unless AUTH_DISABLED=true")
	}
	return nil
}

// Policy returns the posting rules configured for the process.
func (c *Config) Policy() core.Policy {
	return core.Policy{
		LeafOnlyPosting:    c.LeafOnlyPosting,
		AllowNegativeStock: c.AllowNegativeStock,
	}
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
