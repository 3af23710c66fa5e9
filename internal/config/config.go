// Package config loads repaso settings from defaults, a YAML file, a .env
// file, REPASO_* environment variables and command-line flags, in that order
// of precedence (flags win).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/repaso/internal/sm2"
)

const (
	// DefaultFile is read when no config path is given and it exists.
	DefaultFile = "repaso.yaml"
	envPrefix   = "REPASO_"
	delim       = "."
)

type Config struct {
	DB        string          `koanf:"db" validate:"required"`
	User      string          `koanf:"user" validate:"required"`
	ReposDir  string          `koanf:"repos_dir" validate:"required"`
	Log       LogConfig       `koanf:"log"`
	Quota     QuotaConfig     `koanf:"quota"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Sync      SyncConfig      `koanf:"sync"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type QuotaConfig struct {
	MaxNewPerDay int    `koanf:"max_new_per_day" validate:"gte=0"`
	Timezone     string `koanf:"timezone"`
}

type SchedulerConfig struct {
	// TimePenalty lowers grades for slow answers (sm2.StepPenalty).
	TimePenalty bool `koanf:"time_penalty"`
}

type MetricsConfig struct {
	Textfile string `koanf:"textfile"`
}

type SyncConfig struct {
	Concurrency int `koanf:"concurrency" validate:"min=1,max=16"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DB:       "repaso.db",
		User:     "default",
		ReposDir: "repos",
		Log:      LogConfig{Level: "info", Format: "text"},
		Quota:    QuotaConfig{MaxNewPerDay: 10, Timezone: "Local"},
		Sync:     SyncConfig{Concurrency: 4},
	}
}

// FlagKeys maps command-line flag names to config keys. Flags not listed
// here are command options and never reach the config.
var FlagKeys = map[string]string{
	"db":               "db",
	"user":             "user",
	"repos-dir":        "repos_dir",
	"log-level":        "log.level",
	"log-format":       "log.format",
	"max-new":          "quota.max_new_per_day",
	"timezone":         "quota.timezone",
	"time-penalty":     "scheduler.time_penalty",
	"metrics-textfile": "metrics.textfile",
	"concurrency":      "sync.concurrency",
}

// Load builds the configuration. path is the YAML file to read; when empty,
// DefaultFile is used if present. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(delim)

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := k.Load(env.Provider(envPrefix, delim, envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if flags != nil {
		p := posflag.ProviderWithFlag(flags, delim, k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(p, nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// REPASO_QUOTA__MAX_NEW_PER_DAY -> quota.max_new_per_day
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", delim)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Location resolves Quota.Timezone; "Local" and "" mean the system zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Quota.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Quota.Timezone)
	if err != nil {
		return nil, fmt.Errorf("quota timezone: %w", err)
	}
	return loc, nil
}

// Penalty returns the grade penalty policy the scheduler should use.
func (c *Config) Penalty() sm2.Penalty {
	if c.Scheduler.TimePenalty {
		return sm2.StepPenalty
	}
	return sm2.NoPenalty
}
