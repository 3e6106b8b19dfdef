package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"docxref/internal/errors"
)

// Dir is the per-repository state directory.
const Dir = ".docxref"

// EnvPrefix prefixes environment overrides, e.g. DOCXREF_WORKERCOUNT.
const EnvPrefix = "DOCXREF"

// Config represents the complete docxref configuration
type Config struct {
	FreshnessWindow   time.Duration `json:"freshnessWindow" mapstructure:"freshnessWindow"`
	WorkerCount       int           `json:"workerCount" mapstructure:"workerCount"`
	RetryLimit        int           `json:"retryLimit" mapstructure:"retryLimit"`
	PerAttemptTimeout time.Duration `json:"perAttemptTimeout" mapstructure:"perAttemptTimeout"`
	CachePath         string        `json:"cachePath" mapstructure:"cachePath"`
	BackoffBase       time.Duration `json:"backoffBase" mapstructure:"backoffBase"`
	BackoffMax        time.Duration `json:"backoffMax" mapstructure:"backoffMax"`
	UserAgent         string        `json:"userAgent" mapstructure:"userAgent"`
	Skip              []string      `json:"skip" mapstructure:"skip"`

	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Source is the config file that was read, empty when defaults were used.
	Source string `json:"-" mapstructure:"-"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"` // human | json
	Level  string `json:"level" mapstructure:"level"`
	File   string `json:"file" mapstructure:"file"` // Optional; appended to

	MaxSize         string `json:"maxSize" mapstructure:"maxSize"` // e.g. "10MB"; empty disables rotation
	MaxBackups      int    `json:"maxBackups" mapstructure:"maxBackups"`
	CompressBackups bool   `json:"compressBackups" mapstructure:"compressBackups"` // gzip rotated files
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		FreshnessWindow:   7 * 24 * time.Hour,
		WorkerCount:       8,
		RetryLimit:        2,
		PerAttemptTimeout: 10 * time.Second,
		CachePath:         filepath.Join(Dir, "linkcache.db"),
		BackoffBase:       250 * time.Millisecond,
		BackoffMax:        5 * time.Second,
		UserAgent:         "docxref-linkcheck/1.0",
		Skip:              []string{},
		Logging: LoggingConfig{
			Format:     "human",
			Level:      "info",
			MaxBackups: 3,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("freshnessWindow", d.FreshnessWindow)
	v.SetDefault("workerCount", d.WorkerCount)
	v.SetDefault("retryLimit", d.RetryLimit)
	v.SetDefault("perAttemptTimeout", d.PerAttemptTimeout)
	v.SetDefault("cachePath", d.CachePath)
	v.SetDefault("backoffBase", d.BackoffBase)
	v.SetDefault("backoffMax", d.BackoffMax)
	v.SetDefault("userAgent", d.UserAgent)
	v.SetDefault("skip", d.Skip)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.maxSize", d.Logging.MaxSize)
	v.SetDefault("logging.maxBackups", d.Logging.MaxBackups)
	v.SetDefault("logging.compressBackups", d.Logging.CompressBackups)
}

// LoadConfig loads configuration. An explicit path must exist; otherwise
// .docxref/config.{yaml,json,toml} under repoRoot is used when present.
// Environment variables override file values. A relative cachePath is
// resolved against repoRoot.
func LoadConfig(repoRoot, path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(repoRoot, Dir))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !stderrors.As(err, &notFound) {
			return nil, errors.New(errors.ConfigInvalid, "cannot read config", err).WithLocation(path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New(errors.ConfigInvalid, "cannot decode config", err).WithLocation(v.ConfigFileUsed())
	}
	cfg.Source = v.ConfigFileUsed()

	if cfg.CachePath != "" && !filepath.IsAbs(cfg.CachePath) {
		cfg.CachePath = filepath.Join(repoRoot, cfg.CachePath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch {
	case c.WorkerCount < 1:
		return invalid("workerCount", "must be at least 1")
	case c.RetryLimit < 0:
		return invalid("retryLimit", "must not be negative")
	case c.PerAttemptTimeout <= 0:
		return invalid("perAttemptTimeout", "must be positive")
	case c.FreshnessWindow < 0:
		return invalid("freshnessWindow", "must not be negative")
	case c.BackoffBase <= 0:
		return invalid("backoffBase", "must be positive")
	case c.BackoffMax < c.BackoffBase:
		return invalid("backoffMax", "must not be below backoffBase")
	case c.CachePath == "":
		return invalid("cachePath", "must not be empty")
	case c.Logging.MaxBackups < 0:
		return invalid("logging.maxBackups", "must not be negative")
	}
	switch c.Logging.Format {
	case "human", "json":
	default:
		return invalid("logging.format", fmt.Sprintf("unknown format %q", c.Logging.Format))
	}
	return nil
}

func invalid(field, msg string) error {
	return errors.Newf(errors.ConfigInvalid, "config error in field '%s': %s", field, msg).
		WithHint("run 'docxref config show' to see effective values")
}

// View is the file representation with durations as strings.
type View struct {
	FreshnessWindow   string      `toml:"freshnessWindow" json:"freshnessWindow"`
	WorkerCount       int         `toml:"workerCount" json:"workerCount"`
	RetryLimit        int         `toml:"retryLimit" json:"retryLimit"`
	PerAttemptTimeout string      `toml:"perAttemptTimeout" json:"perAttemptTimeout"`
	CachePath         string      `toml:"cachePath" json:"cachePath"`
	BackoffBase       string      `toml:"backoffBase" json:"backoffBase"`
	BackoffMax        string      `toml:"backoffMax" json:"backoffMax"`
	UserAgent         string      `toml:"userAgent" json:"userAgent"`
	Skip              []string    `toml:"skip" json:"skip"`
	Logging           LoggingView `toml:"logging" json:"logging"`
}

// LoggingView mirrors LoggingConfig for file output.
type LoggingView struct {
	Format string `toml:"format" json:"format"`
	Level  string `toml:"level" json:"level"`
	File   string `toml:"file,omitempty" json:"file,omitempty"`

	MaxSize         string `toml:"maxSize,omitempty" json:"maxSize,omitempty"`
	MaxBackups      int    `toml:"maxBackups" json:"maxBackups"`
	CompressBackups bool   `toml:"compressBackups" json:"compressBackups"`
}

// View returns the file representation of c.
func (c *Config) View() View {
	skip := c.Skip
	if skip == nil {
		skip = []string{}
	}
	return View{
		FreshnessWindow:   c.FreshnessWindow.String(),
		WorkerCount:       c.WorkerCount,
		RetryLimit:        c.RetryLimit,
		PerAttemptTimeout: c.PerAttemptTimeout.String(),
		CachePath:         c.CachePath,
		BackoffBase:       c.BackoffBase.String(),
		BackoffMax:        c.BackoffMax.String(),
		UserAgent:         c.UserAgent,
		Skip:              skip,
		Logging: LoggingView{
			Format: c.Logging.Format,
			Level:  c.Logging.Level,
			File:   c.Logging.File,

			MaxSize:         c.Logging.MaxSize,
			MaxBackups:      c.Logging.MaxBackups,
			CompressBackups: c.Logging.CompressBackups,
		},
	}
}

// EncodeTOML renders c as TOML.
func (c *Config) EncodeTOML() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(c.View()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ErrExists is returned by Save when the file is present and force is unset.
var ErrExists = stderrors.New("config file already exists")

// Save writes the configuration to .docxref/config.toml under repoRoot and
// returns the written path. An existing file is only replaced when force is set.
func (c *Config) Save(repoRoot string, force bool) (string, error) {
	path := filepath.Join(repoRoot, Dir, "config.toml")
	if !force && fileExists(path) {
		return path, fmt.Errorf("%s: %w", path, ErrExists)
	}
	data, err := c.EncodeTOML()
	if err != nil {
		return path, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return path, err
	}
	return path, os.WriteFile(path, data, 0o644)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
