package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"docxref/internal/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.FreshnessWindow != 168*time.Hour {
		t.Errorf("FreshnessWindow = %v, want 168h", cfg.FreshnessWindow)
	}
	if cfg.WorkerCount != 8 {
		t.Errorf("WorkerCount = %d, want 8", cfg.WorkerCount)
	}
	if cfg.RetryLimit != 2 {
		t.Errorf("RetryLimit = %d, want 2", cfg.RetryLimit)
	}
	if cfg.PerAttemptTimeout != 10*time.Second {
		t.Errorf("PerAttemptTimeout = %v, want 10s", cfg.PerAttemptTimeout)
	}
	if cfg.CachePath != filepath.Join(".docxref", "linkcache.db") {
		t.Errorf("CachePath = %q", cfg.CachePath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadConfig_NoFileUsesDefaults(t *testing.T) {
	root := t.TempDir()

	cfg, err := LoadConfig(root, "")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.WorkerCount != 8 || cfg.RetryLimit != 2 {
		t.Errorf("unexpected values: %+v", cfg)
	}
	if cfg.CachePath != filepath.Join(root, ".docxref", "linkcache.db") {
		t.Errorf("CachePath = %q, want it resolved under the repo root", cfg.CachePath)
	}
	if cfg.Source != "" {
		t.Errorf("Source = %q, want empty", cfg.Source)
	}
}

func TestLoadConfig_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "config.yaml", "workerCount: 3\nperAttemptTimeout: 2s\nskip:\n  - https://internal.example.com/*\n"},
		{"json", "config.json", `{"workerCount": 3, "perAttemptTimeout": "2s", "skip": ["https://internal.example.com/*"]}`},
		{"toml", "config.toml", "workerCount = 3\nperAttemptTimeout = \"2s\"\nskip = [\"https://internal.example.com/*\"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			dir := filepath.Join(root, ".docxref")
			if err := os.MkdirAll(dir, 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(dir, tt.file), []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			cfg, err := LoadConfig(root, "")
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			if cfg.WorkerCount != 3 {
				t.Errorf("WorkerCount = %d, want 3", cfg.WorkerCount)
			}
			if cfg.PerAttemptTimeout != 2*time.Second {
				t.Errorf("PerAttemptTimeout = %v, want 2s", cfg.PerAttemptTimeout)
			}
			if len(cfg.Skip) != 1 || cfg.Skip[0] != "https://internal.example.com/*" {
				t.Errorf("Skip = %v", cfg.Skip)
			}
			if cfg.RetryLimit != 2 {
				t.Errorf("unset key should keep its default, RetryLimit = %d", cfg.RetryLimit)
			}
			if !strings.HasSuffix(cfg.Source, tt.file) {
				t.Errorf("Source = %q", cfg.Source)
			}
		})
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	root := t.TempDir()
	t.Setenv("DOCXREF_WORKERCOUNT", "5")
	t.Setenv("DOCXREF_LOGGING_LEVEL", "debug")
	t.Setenv("DOCXREF_LOGGING_COMPRESSBACKUPS", "true")

	cfg, err := LoadConfig(root, "")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.WorkerCount != 5 {
		t.Errorf("WorkerCount = %d, want 5 from env", cfg.WorkerCount)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug from env", cfg.Logging.Level)
	}
	if !cfg.Logging.CompressBackups {
		t.Error("Logging.CompressBackups should be set from env")
	}
}

func TestLoadConfig_ExplicitPathMissing(t *testing.T) {
	_, err := LoadConfig(t.TempDir(), filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.HasCode(err, errors.ConfigInvalid) {
		t.Errorf("LoadConfig() error = %v, want CONFIG_INVALID", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero workers", func(c *Config) { c.WorkerCount = 0 }, "workerCount"},
		{"negative retries", func(c *Config) { c.RetryLimit = -1 }, "retryLimit"},
		{"zero timeout", func(c *Config) { c.PerAttemptTimeout = 0 }, "perAttemptTimeout"},
		{"backoff inverted", func(c *Config) { c.BackoffMax = time.Millisecond }, "backoffMax"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.HasCode(err, errors.ConfigInvalid) {
				t.Fatalf("Validate() error = %v, want CONFIG_INVALID", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q should name field %s", err, tt.field)
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.RetryLimit = 4
	cfg.Skip = []string{"https://skip.example.com/**"}
	cfg.Logging.CompressBackups = true

	path, err := cfg.Save(root, false)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := cfg.Save(root, false); !stderrors.Is(err, ErrExists) {
		t.Errorf("Save() without force error = %v, want ErrExists", err)
	}

	loaded, err := LoadConfig(root, path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if loaded.RetryLimit != 4 || loaded.FreshnessWindow != cfg.FreshnessWindow {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
	if len(loaded.Skip) != 1 || loaded.Skip[0] != cfg.Skip[0] {
		t.Errorf("Skip = %v", loaded.Skip)
	}
	if !loaded.Logging.CompressBackups {
		t.Error("Logging.CompressBackups lost in round trip")
	}
}
