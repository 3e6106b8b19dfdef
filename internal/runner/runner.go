// Package runner executes one validation run: parse the snapshot, assign
// anchors, resolve internal references, check external targets and build the
// report.
package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"docxref/internal/anchors"
	"docxref/internal/config"
	"docxref/internal/corpus"
	"docxref/internal/errors"
	"docxref/internal/linkcheck"
	"docxref/internal/outline"
	"docxref/internal/report"
	"docxref/internal/slogutil"
	"docxref/internal/storage"
	"docxref/internal/xref"
)

// Outcome is a report plus metadata about the run that produced it.
type Outcome struct {
	RunID          string         `json:"runId"`
	Source         string         `json:"source,omitempty"`
	SnapshotDigest string         `json:"snapshotDigest,omitempty"`
	StartedAt      time.Time      `json:"startedAt"`
	Duration       time.Duration  `json:"durationNs"`
	Cancelled      bool           `json:"cancelled"`
	Checked        int            `json:"checked"`   // External targets that hit the network
	FromCache      int            `json:"fromCache"` // External targets answered from the cache
	Report         *report.Report `json:"report"`
}

// Option configures a Runner.
type Option func(*Runner)

// WithChecker replaces the HTTP checker.
func WithChecker(c linkcheck.Checker) Option {
	return func(r *Runner) { r.checker = c }
}

// WithCache replaces the persisted link cache. The runner does not close it.
func WithCache(c linkcheck.Cache) Option {
	return func(r *Runner) { r.cache = c }
}

// WithOffline skips every external target.
func WithOffline(offline bool) Option {
	return func(r *Runner) { r.offline = offline }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// Runner holds the configuration and collaborators shared by runs.
type Runner struct {
	cfg     *config.Config
	logger  *slog.Logger
	checker linkcheck.Checker
	cache   linkcheck.Cache
	offline bool
	now     func() time.Time

	openOnce sync.Once
	owned    *storage.LinkCache // Cache opened by the runner itself
}

// New creates a runner. A nil cfg uses defaults.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	r := &Runner{
		cfg:    cfg,
		logger: slogutil.OrDiscard(logger),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.checker == nil {
		r.checker = linkcheck.NewHTTPChecker(nil, cfg.UserAgent)
	}
	return r
}

// Close releases the cache database if the runner opened it.
func (r *Runner) Close() error {
	if r.owned != nil {
		return r.owned.Close()
	}
	return nil
}

// RunFile loads the snapshot at path and runs it.
func (r *Runner) RunFile(ctx context.Context, path string) (*Outcome, error) {
	snap, err := corpus.LoadSnapshot(path)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, snap)
}

// Run validates snap. Only an unusable snapshot returns an error; every
// finding, including structural problems, is part of the report. A cancelled
// ctx yields a partial report.
func (r *Runner) Run(ctx context.Context, snap *corpus.Snapshot) (*Outcome, error) {
	started := r.now()
	out := &Outcome{RunID: uuid.NewString(), StartedAt: started}
	if snap != nil {
		out.Source = snap.Source
		out.SnapshotDigest = snap.Digest
	}
	logger := r.logger.With("run", out.RunID)
	logger.Info("Validation run started", "source", out.Source)

	parsed, reg, err := Outline(snap)
	if err != nil {
		return nil, err
	}
	for _, p := range parsed.Problems {
		logger.Warn("Malformed structure", "kind", string(p.Kind), "record", p.Record, "detail", p.Detail)
	}

	resolved := xref.NewResolver(reg).WithClock(r.now).Resolve(parsed.Tree)
	logger.Debug("References resolved",
		"total", resolved.Total,
		"internal", len(resolved.Internal),
		"externalTargets", resolved.External.Len(),
	)

	engine, err := linkcheck.New(r.checker, r.linkCache(logger), r.engineOptions(), logger)
	if err != nil {
		return nil, errors.New(errors.ConfigInvalid, "invalid link check options", err)
	}
	run := engine.Validate(ctx, resolved.External.References())
	if run.Cancelled {
		logger.Info("Validation cancelled", "completed", len(run.Results), "targets", resolved.External.Len())
	}

	out.Report = report.Build(report.Input{
		Problems: parsed.Problems,
		Internal: resolved.Internal,
		Targets:  resolved.External,
		External: run.Results,
		Partial:  run.Cancelled,
	})
	out.Cancelled = run.Cancelled
	out.Checked = run.Checked
	out.FromCache = run.FromCache
	out.Duration = r.now().Sub(started)

	logger.Info("Validation run finished",
		"findings", len(out.Report.Findings),
		"broken", out.Report.Summary.BrokenCount,
		"structure", out.Report.Summary.StructureCount,
		"duration", out.Duration,
	)
	return out, nil
}

// Outline parses snap and assigns anchors.
func Outline(snap *corpus.Snapshot) (*outline.Result, *anchors.Registry, error) {
	parsed, err := outline.Parse(snap)
	if err != nil {
		return nil, nil, err
	}
	reg, err := anchors.Build(parsed.Tree)
	if err != nil {
		return nil, nil, errors.New(errors.InternalError, "anchor assignment failed", err)
	}
	return parsed, reg, nil
}

func (r *Runner) engineOptions() linkcheck.Options {
	return linkcheck.Options{
		Workers:         r.cfg.WorkerCount,
		RetryLimit:      r.cfg.RetryLimit,
		AttemptTimeout:  r.cfg.PerAttemptTimeout,
		FreshnessWindow: r.cfg.FreshnessWindow,
		BackoffBase:     r.cfg.BackoffBase,
		BackoffMax:      r.cfg.BackoffMax,
		Skip:            r.cfg.Skip,
		Offline:         r.offline,
	}
}

// linkCache returns the injected cache, or opens the SQLite cache at
// cachePath once. An unavailable cache degrades to an in-memory one.
func (r *Runner) linkCache(logger *slog.Logger) linkcheck.Cache {
	if r.cache != nil {
		return r.cache
	}
	if r.offline {
		return linkcheck.NewMemoryCache()
	}
	r.openOnce.Do(func() {
		c, err := storage.OpenLinkCache(r.cfg.CachePath, r.logger)
		if err != nil {
			logger.Warn("Link cache unavailable, continuing without persistence",
				"path", r.cfg.CachePath,
				"error", err.Error(),
			)
			r.cache = linkcheck.NewMemoryCache()
			return
		}
		r.owned = c
		r.cache = c
	})
	return r.cache
}
