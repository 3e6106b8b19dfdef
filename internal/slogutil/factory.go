package slogutil

import (
	"io"
	"log/slog"

	"docxref/internal/config"
)

// Setup builds the process logger from the logging config. CLI verbosity
// wins over logging.level when cliSet is true. Console output goes to w in
// the configured format; logging.file, if set, additionally receives the text
// format at info or finer, rotated by logging.maxSize and gzipped when
// logging.compressBackups is set. The returned closer releases the file and
// is never nil.
func Setup(cfg config.LoggingConfig, w io.Writer, cliLevel slog.Level, cliSet bool) (*slog.Logger, io.Closer, error) {
	level := LevelFromString(cfg.Level)
	if cliSet {
		level = cliLevel
	}

	var console slog.Handler
	if cfg.Format == "json" {
		console = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		console = NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}

	if cfg.File == "" {
		return slog.New(console), nopCloser{}, nil
	}

	size, err := ParseSize(cfg.MaxSize)
	if err != nil {
		return nil, nopCloser{}, err
	}
	rf, err := OpenRotatingFile(cfg.File, RotateOptions{
		MaxSize:    size,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.CompressBackups,
	})
	if err != nil {
		return nil, nopCloser{}, err
	}

	// The file logs at info or finer even when the console is quiet.
	fileLevel := level
	if fileLevel > slog.LevelInfo {
		fileLevel = slog.LevelInfo
	}
	file := NewTextHandler(rf, &slog.HandlerOptions{Level: fileLevel})
	return slog.New(NewTeeHandler(console, file)), rf, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
