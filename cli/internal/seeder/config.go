package seeder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config controls a seeding run.
type Config struct {
	Count   int   `mapstructure:"count" yaml:"count"`
	Workers int   `mapstructure:"workers" yaml:"workers"`
	Seed    int64 `mapstructure:"seed" yaml:"seed"`

	// MinBytes and MaxBytes bound the size of each fake media file.
	MinBytes int `mapstructure:"min_bytes" yaml:"min_bytes"`
	MaxBytes int `mapstructure:"max_bytes" yaml:"max_bytes"`

	// ViewsPerVideo plays each published video this many times so the
	// audit trails have content.
	ViewsPerVideo int `mapstructure:"views_per_video" yaml:"views_per_video"`
}

// LoadConfig resolves settings from, in order: explicit configPath or
// ./seeder.yaml then ~/.vidctl/seeder.yaml, VIDCTL_SEED_* environment
// variables, and built-in defaults. A missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("seeder")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("VIDCTL_SEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".vidctl"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("count", 25)
	v.SetDefault("workers", 4)
	v.SetDefault("seed", 0)
	v.SetDefault("min_bytes", 4<<10)
	v.SetDefault("max_bytes", 64<<10)
	v.SetDefault("views_per_video", 0)
}

func (c *Config) Validate() error {
	switch {
	case c.Count < 1:
		return fmt.Errorf("count must be positive, got %d", c.Count)
	case c.Workers < 1:
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	case c.MinBytes < 1:
		return fmt.Errorf("min_bytes must be positive, got %d", c.MinBytes)
	case c.MaxBytes < c.MinBytes:
		return fmt.Errorf("max_bytes (%d) is below min_bytes (%d)", c.MaxBytes, c.MinBytes)
	case c.ViewsPerVideo < 0:
		return fmt.Errorf("views_per_video cannot be negative")
	}
	return nil
}
