// Package config loads genwiz settings from flags, environment and config
// files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/martinemde/genwiz/internal/ui"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix namespaces environment overrides, e.g. GENWIZ_LOG_LEVEL.
const EnvPrefix = "GENWIZ"

// ProjectConfigFile is looked up relative to the working directory.
var ProjectConfigFile = filepath.Join(".genwiz", "config.yaml")

// Config holds all configuration options for genwiz.
type Config struct {
	Color      string           `mapstructure:"color"`     // auto, always or never
	LogLevel   string           `mapstructure:"log_level"` // zap level name
	LogFile    string           `mapstructure:"log_file"`  // empty logs to stderr
	Worker     WorkerConfig     `mapstructure:"worker"`
	Generators GeneratorsConfig `mapstructure:"generators"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// WorkerConfig controls how the host launches workers.
type WorkerConfig struct {
	Executable  string        `mapstructure:"executable"`
	GracePeriod time.Duration `mapstructure:"grace_period"`
}

// GeneratorsConfig adds generator sources after the built-in ones. Relative
// paths are resolved against the directory of the config file that names
// them, or against the working directory when they come from the
// environment.
type GeneratorsConfig struct {
	Paths []string `mapstructure:"paths"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Color:    ui.ColorAuto,
		LogLevel: "warn",
	}
}

// SetDefaults registers Defaults on v.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("color", d.Color)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("worker.executable", d.Worker.Executable)
	v.SetDefault("worker.grace_period", d.Worker.GracePeriod)
	v.SetDefault("generators.paths", d.Generators.Paths)
}

// Load reads configuration into v and decodes it. cfgFile, when set, is the
// only file read. Otherwise <workDir>/.genwiz/config.yaml is used if present,
// then ~/.config/genwiz/config.yaml. A missing config file is not an error.
func Load(v *viper.Viper, cfgFile, workDir string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		project := filepath.Join(workDir, ProjectConfigFile)
		if _, err := os.Stat(project); err == nil {
			v.SetConfigFile(project)
		} else {
			if home, err := os.UserHomeDir(); err == nil {
				v.AddConfigPath(filepath.Join(home, ".config", "genwiz"))
			}
			v.SetConfigName("config")
			v.SetConfigType("yaml")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	cfg.File = v.ConfigFileUsed()
	base := workDir
	if cfg.File != "" {
		base = filepath.Dir(cfg.File)
	}
	for i, p := range cfg.Generators.Paths {
		if p != "" && !filepath.IsAbs(p) {
			cfg.Generators.Paths[i] = filepath.Join(base, p)
		}
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	if err := ui.ValidateColorMode(c.Color); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid config: log_level: %w", err)
	}
	if c.Worker.GracePeriod < 0 {
		return fmt.Errorf("invalid config: worker.grace_period must not be negative")
	}
	return nil
}
