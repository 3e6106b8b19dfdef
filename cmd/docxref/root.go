package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"docxref/internal/config"
	"docxref/internal/errors"
	"docxref/internal/slogutil"
	"docxref/internal/version"
)

var (
	rootDir      string
	configPath   string
	outputFormat string
	verbosity    int
	quiet        bool
)

var rootCmd = &cobra.Command{
	Use:   "docxref",
	Short: "docxref - document structure and cross-reference validator",
	Long: `docxref validates the heading structure of a document snapshot, assigns
stable section slugs, resolves internal cross-references and checks external
links concurrently against a persisted result cache.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("docxref version {{.Version}}\n")
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootDir, "root", "", "Repository root (default: current directory)")
	flags.StringVar(&configPath, "config", "", "Config file (default: .docxref/config.{yaml,json,toml})")
	flags.StringVar(&outputFormat, "format", string(FormatHuman), "Output format (json, human)")
	flags.CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Suppress all logs on the console")
}

// session holds what every command loads before doing its work.
type session struct {
	repoRoot string
	cfg      *config.Config
	logger   *slog.Logger
	format   OutputFormat
	closer   io.Closer
}

// newSession resolves the repository root, loads configuration and builds the
// logger. Console logs go to the command's stderr.
func newSession(cmd *cobra.Command) (*session, error) {
	format, err := parseFormat(outputFormat)
	if err != nil {
		return nil, err
	}

	repoRoot := rootDir
	if repoRoot == "" {
		if repoRoot, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("cannot determine repository root: %w", err)
		}
	}

	cfg, err := config.LoadConfig(repoRoot, configPath)
	if err != nil {
		return nil, err
	}

	cliSet := verbosity > 0 || quiet
	logger, closer, err := slogutil.Setup(cfg.Logging, cmd.ErrOrStderr(),
		slogutil.LevelFromVerbosity(verbosity, quiet), cliSet)
	if err != nil {
		return nil, errors.New(errors.ConfigInvalid, "cannot set up logging", err).WithLocation(cfg.Logging.File)
	}
	logger.Debug("Configuration loaded", "source", cfg.Source, "root", repoRoot)

	return &session{
		repoRoot: repoRoot,
		cfg:      cfg,
		logger:   logger,
		format:   format,
		closer:   closer,
	}, nil
}

func (s *session) Close() {
	_ = s.closer.Close()
}

func parseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatJSON, FormatHuman:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}
