package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/vjranagit/embedded/pkg/provider"
)

// Config holds the application configuration
type Config struct {
	Storage StorageConfig
	Log     LogConfig
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Path             string `env:"EMBEDDED_DATA_PATH" envDefault:"./data" validate:"required_unless=InMemory true"`
	InMemory         bool   `env:"EMBEDDED_IN_MEMORY" envDefault:"false"`
	CompressionLevel int    `env:"EMBEDDED_COMPRESSION_LEVEL" envDefault:"3" validate:"min=1,max=4"`
	Workspace        string `env:"EMBEDDED_WORKSPACE" envDefault:"default" validate:"required"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `env:"EMBEDDED_LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error disabled"`
	Pretty bool   `env:"EMBEDDED_LOG_PRETTY" envDefault:"false"`
}

var validate = validator.New()

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:             "./data",
			CompressionLevel: 3,
			Workspace:        provider.DefaultWorkspace,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the environment after loading files as
// .env files. Files that do not exist are skipped. Variables already set
// in the environment take precedence over file values.
func Load(files ...string) (*Config, error) {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(&cfg.Storage); err != nil {
		return nil, fmt.Errorf("failed to parse storage config: %w", err)
	}
	if err := env.Parse(&cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to parse log config: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ToProviderOptions converts to provider.Options
func (c *Config) ToProviderOptions(log zerolog.Logger) provider.Options {
	return provider.Options{
		Path:             c.Storage.Path,
		InMemory:         c.Storage.InMemory,
		CompressionLevel: c.Storage.CompressionLevel,
		Workspace:        c.Storage.Workspace,
		Logger:           log,
	}
}
