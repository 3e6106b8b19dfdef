package corpus

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"docxref/internal/errors"
)

const jsonSnapshot = `{"records": [
  {"level": 1, "title": "Guide", "entries": [
    {"title": "Intro", "body": "see setup", "references": ["#setup", "https://example.com"],
     "codeBlocks": [{"language": "go", "content": "package main"}]}
  ]},
  {"level": 2, "title": "Setup"}
]}`

var wantRecords = []Record{
	{Level: 1, Title: "Guide", Entries: []RawEntry{{
		Title:      "Intro",
		Body:       "see setup",
		References: []string{"#setup", "https://example.com"},
		CodeBlocks: []CodeBlock{{Language: "go", Content: "package main"}},
	}}},
	{Level: 2, Title: "Setup"},
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path        string
		format      Format
		compression Compression
		wantErr     bool
	}{
		{"docs.json", FormatJSON, CompressionNone, false},
		{"docs.YAML", FormatYAML, CompressionNone, false},
		{"docs.yml.gz", FormatYAML, CompressionGzip, false},
		{"dir/docs.toml.zst", FormatTOML, CompressionZstd, false},
		{"README.md.xz", FormatMarkdown, CompressionXZ, false},
		{"notes.txt", "", CompressionNone, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			format, compression, err := DetectFormat(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DetectFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if format != tt.format || compression != tt.compression {
				t.Errorf("DetectFormat() = %q, %q, want %q, %q", format, compression, tt.format, tt.compression)
			}
		})
	}
}

func TestDecode_Formats(t *testing.T) {
	yamlSnapshot := `records:
  - level: 1
    title: Guide
    entries:
      - title: Intro
        body: see setup
        references: ["#setup", "https://example.com"]
        codeBlocks:
          - language: go
            content: package main
  - level: 2
    title: Setup
`
	tomlSnapshot := `[[records]]
level = 1
title = "Guide"

  [[records.entries]]
  title = "Intro"
  body = "see setup"
  references = ["#setup", "https://example.com"]

    [[records.entries.codeBlocks]]
    language = "go"
    content = "package main"

[[records]]
level = 2
title = "Setup"
`
	tests := []struct {
		name   string
		format Format
		input  string
	}{
		{"json", FormatJSON, jsonSnapshot},
		{"yaml", FormatYAML, yamlSnapshot},
		{"toml", FormatTOML, tomlSnapshot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := Decode(strings.NewReader(tt.input), tt.format, CompressionNone)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if diff := cmp.Diff(wantRecords, snap.Records); diff != "" {
				t.Errorf("records mismatch (-want +got):\n%s", diff)
			}
			if len(snap.Digest) != 64 {
				t.Errorf("Digest = %q, want 64 hex chars", snap.Digest)
			}
		})
	}
}

func TestDecode_JSONRejectsUnknownFields(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"records": [], "extra": 1}`), FormatJSON, CompressionNone)
	if err == nil {
		t.Error("Decode() should reject unknown fields")
	}
}

func TestDecode_DigestIsContentAddressed(t *testing.T) {
	a, _ := Decode(strings.NewReader(jsonSnapshot), FormatJSON, CompressionNone)
	b, _ := Decode(strings.NewReader(jsonSnapshot), FormatJSON, CompressionNone)
	c, _ := Decode(strings.NewReader(strings.Replace(jsonSnapshot, "Setup", "Install", 1)), FormatJSON, CompressionNone)
	if a.Digest != b.Digest {
		t.Error("identical input should give identical digests")
	}
	if a.Digest == c.Digest {
		t.Error("different input should give different digests")
	}
}

func compress(t *testing.T, compression Compression, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch compression {
	case CompressionGzip:
		w := gzip.NewWriter(&buf)
		_, _ = w.Write(data)
		_ = w.Close()
	case CompressionZstd:
		w, err := zstd.NewWriter(&buf)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = w.Write(data)
		_ = w.Close()
	case CompressionXZ:
		w, err := xz.NewWriter(&buf)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = w.Write(data)
		_ = w.Close()
	}
	return buf.Bytes()
}

func TestLoadSnapshot_Compressed(t *testing.T) {
	dir := t.TempDir()
	for _, c := range []struct {
		ext         string
		compression Compression
	}{
		{".gz", CompressionGzip},
		{".zst", CompressionZstd},
		{".xz", CompressionXZ},
	} {
		t.Run(c.ext, func(t *testing.T) {
			path := filepath.Join(dir, "snapshot.json"+c.ext)
			if err := os.WriteFile(path, compress(t, c.compression, []byte(jsonSnapshot)), 0o644); err != nil {
				t.Fatal(err)
			}
			snap, err := LoadSnapshot(path)
			if err != nil {
				t.Fatalf("LoadSnapshot() error = %v", err)
			}
			if diff := cmp.Diff(wantRecords, snap.Records); diff != "" {
				t.Errorf("records mismatch (-want +got):\n%s", diff)
			}
			if snap.Source != path {
				t.Errorf("Source = %q, want %q", snap.Source, path)
			}
		})
	}
}

func TestLoadSnapshot_Unreadable(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(corrupt, []byte(`{"records": [`), 0o644)
	notGzip := filepath.Join(dir, "plain.json.gz")
	_ = os.WriteFile(notGzip, []byte(jsonSnapshot), 0o644)

	for _, path := range []string{corrupt, notGzip, filepath.Join(dir, "missing.json"), filepath.Join(dir, "x.txt")} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadSnapshot(path)
			if !errors.HasCode(err, errors.SnapshotUnreadable) {
				t.Errorf("LoadSnapshot(%s) error = %v, want SNAPSHOT_UNREADABLE", path, err)
			}
		})
	}
}
