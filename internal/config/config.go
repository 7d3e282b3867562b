// Package config loads bibform settings from a TOML file, BIBFORM_*
// environment variables and defaults, in rising precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. BIBFORM_DATABASE_PATH.
const EnvPrefix = "BIBFORM"

// DefaultFile is the config file looked up in the working directory when
// no path is given.
const DefaultFile = "bibform.toml"

// Config is the full set of settings.
type Config struct {
	Config    ConfigDirConfig `mapstructure:"config" toml:"config"`
	Database  DatabaseConfig  `mapstructure:"database" toml:"database"`
	Translate TranslateConfig `mapstructure:"translate" toml:"translate"`
	Log       LogConfig       `mapstructure:"log" toml:"log"`
}

// ConfigDirConfig locates the CUE field and model definitions.
type ConfigDirConfig struct {
	Dir string `mapstructure:"dir" toml:"dir"`
}

// DatabaseConfig locates the record store.
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

// TranslateConfig holds translation defaults.
type TranslateConfig struct {
	Format string `mapstructure:"format" toml:"format"` // input format of raw blobs
	Model  string `mapstructure:"model" toml:"model"`
}

// LogConfig selects the logger.
type LogConfig struct {
	JSON  bool   `mapstructure:"json" toml:"json"`
	Level string `mapstructure:"level" toml:"level"`
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("config.dir", "./config")
	v.SetDefault("database.path", "bibform.db")
	v.SetDefault("translate.format", "marc")
	v.SetDefault("translate.model", "__default__")
	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")
}

// New returns a viper instance with defaults and environment binding set
// up. Callers may bind flags onto it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads the settings. An explicit path must exist; with an empty
// path bibform.toml in the working directory is read when present.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = New()
	}
	v.SetConfigType("toml")

	switch {
	case path != "":
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	default:
		if _, err := os.Stat(DefaultFile); err == nil {
			v.SetConfigFile(DefaultFile)
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Wrapf(err, "failed to read config file %s", DefaultFile)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the default settings, ignoring files and environment.
func Default() *Config {
	return &Config{
		Config:    ConfigDirConfig{Dir: "./config"},
		Database:  DatabaseConfig{Path: "bibform.db"},
		Translate: TranslateConfig{Format: "marc", Model: "__default__"},
		Log:       LogConfig{Level: "info"},
	}
}

// Validate checks the settings that cannot be defaulted away.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Config.Dir) == "" {
		return errors.New("config.dir must not be empty")
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path must not be empty")
	}
	switch c.Translate.Format {
	case "marc", "textmarc", "json":
	default:
		return errors.Newf("translate.format %q is not one of marc, textmarc, json", c.Translate.Format)
	}
	return nil
}

// Write saves the settings as TOML, creating parent directories. An
// existing file is left alone unless overwrite is set.
func Write(path string, cfg *Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.Newf("%s already exists", path)
		}
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
