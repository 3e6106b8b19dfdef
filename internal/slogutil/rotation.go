package slogutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
)

// RotateOptions controls when a RotatingFile rolls over and what it keeps.
type RotateOptions struct {
	MaxSize    int64 // Bytes before rotation; 0 never rotates
	MaxBackups int   // Rotated files kept; 0 truncates on rotation
	Compress   bool  // Gzip rotated files as <path>.N.gz
}

// RotatingFile is a log file that rolls over by size. The newest backup is
// <path>.1; older ones shift up until MaxBackups is reached.
type RotatingFile struct {
	path string
	opts RotateOptions

	mu      sync.Mutex
	file    *os.File
	written int64
}

// OpenRotatingFile opens path for appending, creating parent directories.
func OpenRotatingFile(path string, opts RotateOptions) (*RotatingFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	rf := &RotatingFile{path: path, opts: opts}
	if err := rf.reopen(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (r *RotatingFile) reopen() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	r.file = f
	r.written = info.Size()
	return nil
}

// Write appends p, rotating first when p would push the file past MaxSize.
// A single oversized write still lands in one file.
func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return 0, os.ErrClosed
	}
	if r.opts.MaxSize > 0 && r.written > 0 && r.written+int64(len(p)) > r.opts.MaxSize {
		if err := r.rotate(); err != nil && r.file == nil {
			return 0, err
		}
	}
	n, err := r.file.Write(p)
	r.written += int64(n)
	return n, err
}

// Close closes the current file. Later writes fail with os.ErrClosed.
func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// rotate closes the live file, shifts backups and reopens. On failure the
// live file is reopened for appending so logging continues.
func (r *RotatingFile) rotate() error {
	if err := r.file.Close(); err != nil {
		return err
	}
	r.file = nil

	if err := r.shift(); err != nil {
		if reopenErr := r.reopen(); reopenErr != nil {
			return reopenErr
		}
		return err
	}
	return r.reopen()
}

func (r *RotatingFile) shift() error {
	if r.opts.MaxBackups <= 0 {
		return os.Truncate(r.path, 0)
	}

	_ = os.Remove(r.backupPath(r.opts.MaxBackups))
	for n := r.opts.MaxBackups - 1; n >= 1; n-- {
		from := r.backupPath(n)
		if _, err := os.Stat(from); err == nil {
			if err := os.Rename(from, r.backupPath(n+1)); err != nil {
				return err
			}
		}
	}

	if !r.opts.Compress {
		return os.Rename(r.path, r.backupPath(1))
	}
	if err := gzipFile(r.path, r.backupPath(1)); err != nil {
		return err
	}
	return os.Remove(r.path)
}

func (r *RotatingFile) backupPath(n int) string {
	name := r.path + "." + strconv.Itoa(n)
	if r.opts.Compress {
		name += ".gz"
	}
	return name
}

// gzipFile writes a gzip copy of src to dst through a temp file.
func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(out)
	_, err = io.Copy(zw, in)
	if closeErr := zw.Close(); err == nil {
		err = closeErr
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("compress %s: %w", filepath.Base(src), err)
	}
	return os.Rename(tmp, dst)
}

// ParseSize parses a size like "10MB" or "512 KiB" into bytes. Empty input
// means no limit.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int64(n), nil
}
