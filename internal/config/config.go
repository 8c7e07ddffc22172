// Package config loads the kindlemanager settings from an optional config
// file and KINDLEMANAGER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/sawyersteven/KindleManager-sub001/internal/library"
)

// EnvPrefix prefixes every environment variable; library.workers is read
// from KINDLEMANAGER_LIBRARY_WORKERS.
const EnvPrefix = "KINDLEMANAGER"

const (
	workersLower   = 1
	workersUpper   = 256
	cacheSizeUpper = 1 << 20
)

// Config is the resolved configuration.
type Config struct {
	Library Library
	Log     Log
}

// Library configures the batch scan.
type Library struct {
	Root      string
	Patterns  []string
	Workers   int
	CacheSize int
}

// Log configures the base logger.
type Log struct {
	Debug bool
	Human bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("library.root", ".")
	v.SetDefault("library.patterns", slices.Clone(library.DefaultPatterns))
	v.SetDefault("library.workers", min(runtime.NumCPU(), workersUpper))
	v.SetDefault("library.cache_size", 1024)
	v.SetDefault("log.debug", false)
	v.SetDefault("log.human", false)
}

// Load reads path, when not empty, in any format viper recognises by its
// extension, then the environment, then overrides keyed by setting name.
// Out-of-range values are reported together.
func Load(path string, overrides map[string]any) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	for key, val := range overrides {
		v.Set(key, val)
	}

	cfg := &Config{
		Library: Library{
			Root:      v.GetString("library.root"),
			Patterns:  v.GetStringSlice("library.patterns"),
			Workers:   v.GetInt("library.workers"),
			CacheSize: v.GetInt("library.cache_size"),
		},
		Log: Log{
			Debug: v.GetBool("log.debug"),
			Human: v.GetBool("log.human"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every setting and joins the failures.
func (c *Config) Validate() error {
	var errs []error
	if c.Library.Root == "" {
		errs = append(errs, errors.New("library.root: missing or empty"))
	}
	if len(c.Library.Patterns) == 0 {
		errs = append(errs, errors.New("library.patterns: missing or empty"))
	}
	if c.Library.Workers < workersLower || c.Library.Workers > workersUpper {
		errs = append(errs, fmt.Errorf("library.workers out of bounds (%d), must be between %d and %d",
			c.Library.Workers, workersLower, workersUpper))
	}
	if c.Library.CacheSize < 0 || c.Library.CacheSize > cacheSizeUpper {
		errs = append(errs, fmt.Errorf("library.cache_size out of bounds (%d), must be between 0 and %d",
			c.Library.CacheSize, cacheSizeUpper))
	}
	return errors.Join(errs...)
}
