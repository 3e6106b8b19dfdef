package slogutil

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"docxref/internal/config"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
		wantErr  bool
	}{
		{"", 0, false},
		{"100", 100, false},
		{"100B", 100, false},
		{"1KB", 1000, false},
		{"1KiB", 1024, false},
		{"10MB", 10 * 1000 * 1000, false},
		{"1 MiB", 1024 * 1024, false},
		{"invalid", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func writeLines(t *testing.T, rf *RotatingFile, n int) []byte {
	t.Helper()
	line := []byte(strings.Repeat("a", 29) + "\n")
	for i := 0; i < n; i++ {
		if _, err := rf.Write(line); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}
	return line
}

func TestRotatingFile_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "test.log")
	rf, err := OpenRotatingFile(path, RotateOptions{MaxSize: 50, MaxBackups: 2})
	if err != nil {
		t.Fatalf("OpenRotatingFile failed: %v", err)
	}
	line := writeLines(t, rf, 5)
	_ = rf.Close()

	for _, name := range []string{path, path + ".1", path + ".2"} {
		data, err := os.ReadFile(name)
		if err != nil {
			t.Fatalf("%s: %v", filepath.Base(name), err)
		}
		if !bytes.Equal(data, line) {
			t.Errorf("%s = %q, want one line", filepath.Base(name), data)
		}
	}
	if _, err := os.Stat(path + ".3"); err == nil {
		t.Error("Backup .3 should not exist with MaxBackups=2")
	}
	if _, err := rf.Write(line); err == nil {
		t.Error("Write after Close should fail")
	}
}

func TestRotatingFile_CompressedBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docxref.log")
	rf, err := OpenRotatingFile(path, RotateOptions{MaxSize: 50, MaxBackups: 2, Compress: true})
	if err != nil {
		t.Fatalf("OpenRotatingFile failed: %v", err)
	}
	line := writeLines(t, rf, 4)
	_ = rf.Close()

	if _, err := os.Stat(path + ".1"); err == nil {
		t.Error("uncompressed backup should not be kept")
	}
	if _, err := os.Stat(path + ".3.gz"); err == nil {
		t.Error("Backup .3.gz should not exist with MaxBackups=2")
	}
	for _, name := range []string{path + ".1.gz", path + ".2.gz"} {
		f, err := os.Open(name)
		if err != nil {
			t.Fatalf("%s: %v", filepath.Base(name), err)
		}
		zr, err := gzip.NewReader(f)
		if err != nil {
			t.Fatalf("%s is not gzip: %v", filepath.Base(name), err)
		}
		data, err := io.ReadAll(zr)
		_ = f.Close()
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(data, line) {
			t.Errorf("%s = %q, want one line", filepath.Base(name), data)
		}
	}
	matches, _ := filepath.Glob(path + "*.tmp")
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestRotatingFile_NoBackupsTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.log")
	rf, err := OpenRotatingFile(path, RotateOptions{MaxSize: 50})
	if err != nil {
		t.Fatal(err)
	}
	line := writeLines(t, rf, 3)
	_ = rf.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, line) {
		t.Errorf("log = %q, want only the last line", data)
	}
	if _, err := os.Stat(path + ".1"); err == nil {
		t.Error("no backups should be kept")
	}
}

func TestRotatingFile_AppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.log")
	if err := os.WriteFile(path, []byte(strings.Repeat("b", 40)), 0o644); err != nil {
		t.Fatal(err)
	}
	rf, err := OpenRotatingFile(path, RotateOptions{MaxSize: 50, MaxBackups: 1})
	if err != nil {
		t.Fatal(err)
	}
	writeLines(t, rf, 1)
	_ = rf.Close()

	// The existing 40 bytes count toward MaxSize.
	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("existing content should have been rotated: %v", err)
	}
}

func TestSetup(t *testing.T) {
	t.Run("console only", func(t *testing.T) {
		var buf bytes.Buffer
		logger, closer, err := Setup(config.LoggingConfig{Format: "human", Level: "warn"}, &buf, 0, false)
		if err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		defer func() { _ = closer.Close() }()

		logger.Info("hidden")
		logger.Warn("shown")
		if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "[warn] shown") {
			t.Errorf("unexpected output: %s", buf.String())
		}
	})

	t.Run("json with cli override", func(t *testing.T) {
		var buf bytes.Buffer
		logger, _, err := Setup(config.LoggingConfig{Format: "json", Level: "error"}, &buf, LevelFromVerbosity(2, false), true)
		if err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		logger.Debug("detail", "k", "v")
		if !strings.Contains(buf.String(), `"msg":"detail"`) {
			t.Errorf("expected JSON debug record, got: %s", buf.String())
		}
	})

	t.Run("file sink", func(t *testing.T) {
		var buf bytes.Buffer
		path := filepath.Join(t.TempDir(), "docxref.log")
		logger, closer, err := Setup(config.LoggingConfig{Format: "human", Level: "info", File: path, MaxSize: "1MB", MaxBackups: 1, CompressBackups: true},
			&buf, LevelSilent, true)
		if err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		logger.Info("to file")
		_ = closer.Close()

		if buf.Len() != 0 {
			t.Errorf("quiet console should stay empty, got: %s", buf.String())
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if !strings.Contains(string(data), "to file") {
			t.Errorf("log file missing record: %s", data)
		}
	})

	t.Run("bad size", func(t *testing.T) {
		_, _, err := Setup(config.LoggingConfig{File: filepath.Join(t.TempDir(), "x.log"), MaxSize: "lots"}, &bytes.Buffer{}, 0, false)
		if err == nil {
			t.Error("Setup() should reject an invalid maxSize")
		}
	})
}
