package platform

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the environment configuration used by the CLI.
type Config struct {
	Adapter string `env:"TESSERA_ADAPTER" envDefault:"sqlite"`
	DSN     string `env:"TESSERA_DSN"`
	Schema  string `env:"TESSERA_SCHEMA"`
	Format  string `env:"TESSERA_FORMAT" envDefault:"json"`
	Watch   bool   `env:"TESSERA_WATCH"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Options turns the configuration into factory options.
func (c Config) Options() []Option {
	return []Option{
		WithAdapter(c.Adapter),
		WithFormat(c.Format),
		WithWatch(c.Watch),
	}
}
