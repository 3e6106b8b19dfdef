package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"docxref/internal/config"
	"docxref/internal/report"
	"docxref/internal/runner"
)

var (
	checkWorkers   int
	checkRetries   int
	checkTimeout   time.Duration
	checkFreshness time.Duration
	checkCachePath string
	checkOffline   bool
	checkStable    bool
	checkOut       string
)

var checkCmd = &cobra.Command{
	Use:   "check <snapshot>",
	Short: "Validate structure and references of a document snapshot",
	Long: `Parse a snapshot (.json, .yaml, .toml or .md, optionally .gz/.zst/.xz),
report structural problems, and validate every internal and external reference.

Exit codes:
  0    everything valid
  1    broken references, unreachable links or structural problems
  2    the snapshot or configuration could not be used
  130  interrupted before all external links were checked

Examples:
  docxref check docs.json
  docxref check README.md --offline
  docxref check docs.yaml.zst --workers 16 --format json --stable
  docxref check docs.json --format json --out report.json.zst`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	flags := checkCmd.Flags()
	flags.IntVar(&checkWorkers, "workers", 0, "Concurrent external checks (overrides workerCount)")
	flags.IntVar(&checkRetries, "retries", 0, "Retries after a transient failure (overrides retryLimit)")
	flags.DurationVar(&checkTimeout, "timeout", 0, "Deadline for one check attempt (overrides perAttemptTimeout)")
	flags.DurationVar(&checkFreshness, "freshness", 0, "Reuse cached valid results younger than this (overrides freshnessWindow)")
	flags.StringVar(&checkCachePath, "cache", "", "Link cache database (overrides cachePath)")
	flags.BoolVar(&checkOffline, "offline", false, "Skip every external link")
	flags.BoolVar(&checkStable, "stable", false, "Omit per-run fields from JSON output")
	flags.StringVarP(&checkOut, "out", "o", "", "Write the report to a file (.zst to compress)")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := applyCheckFlags(cmd, s.cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := runner.New(s.cfg, s.logger, runner.WithOffline(checkOffline))
	defer func() { _ = r.Close() }()

	out, err := r.RunFile(ctx, args[0])
	if err != nil {
		return err
	}

	if checkOut != "" {
		if err := writeReportFile(checkOut, out, s.format); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), summaryLine(out))
	} else if err := writeReport(cmd.OutOrStdout(), out, s.format); err != nil {
		return err
	}

	switch {
	case out.Cancelled:
		return &exitError{code: exitCancelled}
	case !out.Report.Clean():
		return &exitError{code: exitFindings}
	}
	return nil
}

// applyCheckFlags layers explicitly set flags over the loaded configuration.
func applyCheckFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.WorkerCount = checkWorkers
	}
	if flags.Changed("retries") {
		cfg.RetryLimit = checkRetries
	}
	if flags.Changed("timeout") {
		cfg.PerAttemptTimeout = checkTimeout
	}
	if flags.Changed("freshness") {
		cfg.FreshnessWindow = checkFreshness
	}
	if flags.Changed("cache") {
		cfg.CachePath = checkCachePath
	}
	return cfg.Validate()
}

// writeReport renders out in format. JSON carries the report only; run
// metadata is logged and shown in human output.
func writeReport(w io.Writer, out *runner.Outcome, format OutputFormat) error {
	if format == FormatJSON {
		return report.Encode(w, out.Report, report.EncodeOptions{Indent: "  ", Stable: checkStable})
	}
	text, err := FormatResponse(out, format)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, text)
	return err
}

func writeReportFile(path string, out *runner.Outcome, format OutputFormat) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create report file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriter(f)
	var w io.Writer = bw
	var zw *zstd.Encoder
	if strings.EqualFold(filepath.Ext(path), ".zst") {
		if zw, err = zstd.NewWriter(bw); err != nil {
			return err
		}
		w = zw
	}

	if err := writeReport(w, out, format); err != nil {
		return err
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return err
		}
	}
	return bw.Flush()
}
