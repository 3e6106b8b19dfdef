package corpus

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"docxref/internal/errors"
)

// Format is the encoding of a snapshot file.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatTOML     Format = "toml"
	FormatMarkdown Format = "markdown"
)

// Compression wraps a snapshot encoding.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionXZ   Compression = "xz"
)

// maxSnapshotBytes caps the decoded snapshot size.
const maxSnapshotBytes = 256 << 20

// DetectFormat derives the encoding and compression from a file name such as
// "corpus.yaml.zst".
func DetectFormat(path string) (Format, Compression, error) {
	name := strings.ToLower(filepath.Base(path))

	compression := CompressionNone
	switch {
	case strings.HasSuffix(name, ".gz"):
		compression = CompressionGzip
	case strings.HasSuffix(name, ".zst"):
		compression = CompressionZstd
	case strings.HasSuffix(name, ".xz"):
		compression = CompressionXZ
	}
	if compression != CompressionNone {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}

	switch filepath.Ext(name) {
	case ".json":
		return FormatJSON, compression, nil
	case ".yaml", ".yml":
		return FormatYAML, compression, nil
	case ".toml":
		return FormatTOML, compression, nil
	case ".md", ".markdown":
		return FormatMarkdown, compression, nil
	default:
		return "", compression, fmt.Errorf("unrecognized snapshot extension in %q", path)
	}
}

// LoadSnapshot reads and decodes the snapshot at path. Any failure is a
// SNAPSHOT_UNREADABLE error: the run cannot start without its input.
func LoadSnapshot(path string) (*Snapshot, error) {
	format, compression, err := DetectFormat(path)
	if err != nil {
		return nil, errors.New(errors.SnapshotUnreadable, "cannot determine snapshot format", err).WithLocation(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(errors.SnapshotUnreadable, "cannot open snapshot", err).WithLocation(path)
	}
	defer func() { _ = f.Close() }()

	snap, err := Decode(f, format, compression)
	if err != nil {
		return nil, errors.New(errors.SnapshotUnreadable, "cannot decode snapshot", err).WithLocation(path)
	}
	snap.Source = path
	return snap, nil
}

// Decode reads a snapshot from r.
func Decode(r io.Reader, format Format, compression Compression) (*Snapshot, error) {
	plain, closer, err := decompress(r, compression)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		defer closer()
	}

	data, err := io.ReadAll(io.LimitReader(plain, maxSnapshotBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) > maxSnapshotBytes {
		return nil, fmt.Errorf("snapshot exceeds %d bytes", maxSnapshotBytes)
	}

	var snap Snapshot
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&snap); err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("yaml: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("toml: %w", err)
		}
	case FormatMarkdown:
		records, err := ParseMarkdown(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("markdown: %w", err)
		}
		snap.Records = records
	default:
		return nil, fmt.Errorf("unsupported snapshot format %q", format)
	}

	sum := blake3.Sum256(data)
	snap.Digest = hex.EncodeToString(sum[:])
	return &snap, nil
}

func decompress(r io.Reader, compression Compression) (io.Reader, func(), error) {
	switch compression {
	case CompressionNone:
		return r, nil, nil
	case CompressionGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, func() { _ = zr.Close() }, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd: %w", err)
		}
		return zr, zr.Close, nil
	case CompressionXZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("xz: %w", err)
		}
		return xr, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported compression %q", compression)
	}
}
