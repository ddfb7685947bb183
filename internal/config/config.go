package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds runtime settings. Binding configuration lives in CUE and is
// not part of it.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Journal JournalConfig `mapstructure:"journal"`
	Output  OutputConfig  `mapstructure:"output"`
}

// LogConfig controls the default slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text or json
}

// JournalConfig holds sqlite settings. An empty path disables the journal.
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// OutputConfig holds CLI presentation settings.
type OutputConfig struct {
	Format string `mapstructure:"format"` // text or json
}

// Load reads configuration from file and env. Env var overrides use prefix
// REFBIND_, e.g. REFBIND_LOG_LEVEL=debug.
//
// The file is REFBIND_CONFIG if set, otherwise ~/.config/refbind/config.toml.
// A missing default file is not an error; a missing REFBIND_CONFIG is.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("journal.path", "")
	v.SetDefault("output.format", "text")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("REFBIND_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "refbind"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("REFBIND")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// SlogLevel parses the configured log level.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", c.Level, err)
	}
	return lvl, nil
}

// NewLogger builds a logger writing to w in the configured format.
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	lvl, err := c.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch c.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log format %q: must be text or json", c.Format)
	}
}
