package linkcheck

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/hashicorp/go-retryablehttp"

	"docxref/internal/corpus"
)

// Options tunes the engine.
type Options struct {
	Workers         int           // Parallel checks
	RetryLimit      int           // Retries after the first attempt
	AttemptTimeout  time.Duration // Hard deadline per attempt
	FreshnessWindow time.Duration // Max age of a reusable cached Valid result
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	Skip            []string // Glob patterns of targets never checked
	Offline         bool     // Skip every external target
}

// DefaultOptions returns the default engine options.
func DefaultOptions() Options {
	return Options{
		Workers:         8,
		RetryLimit:      2,
		AttemptTimeout:  10 * time.Second,
		FreshnessWindow: 7 * 24 * time.Hour,
		BackoffBase:     250 * time.Millisecond,
		BackoffMax:      5 * time.Second,
	}
}

// Run holds the results of one Validate call.
type Run struct {
	Results   map[string]corpus.ValidationResult // Keyed by target; only completed targets
	Cancelled bool                               // Validation stopped before every target finished
	Checked   int                                // Targets that hit the network
	FromCache int                                // Targets answered from the cache
}

// Engine validates external targets concurrently.
type Engine struct {
	checker Checker
	cache   Cache
	opts    Options
	logger  *slog.Logger
	skip    []glob.Glob

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(d time.Duration) time.Duration
}

// New creates an engine. A nil cache gets an in-memory one.
func New(checker Checker, cache Cache, opts Options, logger *slog.Logger) (*Engine, error) {
	def := DefaultOptions()
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.RetryLimit < 0 {
		opts.RetryLimit = 0
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = def.AttemptTimeout
	}
	if opts.FreshnessWindow < 0 {
		opts.FreshnessWindow = 0
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = def.BackoffBase
	}
	if opts.BackoffMax < opts.BackoffBase {
		opts.BackoffMax = opts.BackoffBase
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	skip := make([]glob.Glob, 0, len(opts.Skip))
	for _, pattern := range opts.Skip {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid skip pattern %q: %w", pattern, err)
		}
		skip = append(skip, g)
	}

	return &Engine{
		checker: checker,
		cache:   cache,
		opts:    opts,
		logger:  logger,
		skip:    skip,
		now:     time.Now,
		sleep:   sleepCtx,
		jitter:  equalJitter,
	}, nil
}

// Options returns the effective options after defaults were applied.
func (e *Engine) Options() Options {
	return e.opts
}

// verdict is what a worker hands to the collector.
type verdict struct {
	target    string
	result    corpus.ValidationResult
	fromCache bool
	checked   bool
}

// Validate checks every reference's target once. refs should hold one
// reference per distinct target. When ctx is cancelled, targets still queued
// or in flight are abandoned and Run.Cancelled is set; completed results are
// kept.
func (e *Engine) Validate(ctx context.Context, refs []corpus.Reference) *Run {
	run := &Run{Results: make(map[string]corpus.ValidationResult, len(refs))}
	if len(refs) == 0 {
		return run
	}

	workers := e.opts.Workers
	if workers > len(refs) {
		workers = len(refs)
	}

	jobs := make(chan corpus.Reference)
	verdicts := make(chan verdict, workers)

	go func() {
		defer close(jobs)
		for _, ref := range refs {
			select {
			case jobs <- ref:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			e.worker(ctx, id, jobs, verdicts)
		}(i)
	}
	go func() {
		wg.Wait()
		close(verdicts)
	}()

	for v := range verdicts {
		run.Results[v.target] = v.result
		if v.fromCache {
			run.FromCache++
		}
		if v.checked {
			run.Checked++
		}
	}

	run.Cancelled = ctx.Err() != nil && len(run.Results) < len(refs)
	e.logger.Debug("Link validation finished",
		"targets", len(refs),
		"completed", len(run.Results),
		"checked", run.Checked,
		"fromCache", run.FromCache,
		"cancelled", run.Cancelled,
	)
	return run
}

func (e *Engine) worker(ctx context.Context, id int, jobs <-chan corpus.Reference, out chan<- verdict) {
	for ref := range jobs {
		if ctx.Err() != nil {
			// Drain without work so the feeder can exit.
			continue
		}
		v, ok := e.validateOne(ctx, ref)
		if !ok {
			e.logger.Debug("Abandoned target", "worker", id, "target", ref.RawTarget)
			continue
		}
		out <- v
	}
}

// validateOne produces the verdict for one target. It returns false when the
// run was cancelled before a verdict was reached.
func (e *Engine) validateOne(ctx context.Context, ref corpus.Reference) (verdict, bool) {
	target := ref.RawTarget
	v := verdict{target: target}

	if reason, skip := e.skipReason(target); skip {
		v.result = e.result(ref, corpus.StatusSkipped, reason, 0)
		return v, true
	}

	if cached, ok := e.lookup(target); ok {
		cached.Reference = ref
		cached.FromCache = true
		cached.Attempts = 0
		v.result = cached
		v.fromCache = true
		return v, true
	}

	u, err := parseTarget(target)
	if err != nil {
		v.result = e.result(ref, corpus.StatusBroken, "malformed target: "+err.Error(), 0)
		e.store(target, v.result)
		return v, true
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		v.result = e.result(ref, corpus.StatusSkipped, "unsupported scheme "+u.Scheme, 0)
		return v, true
	}

	result, ok := e.check(ctx, ref, u)
	if !ok {
		return v, false
	}
	v.result = result
	v.checked = true
	e.store(target, result)
	return v, true
}

func (e *Engine) skipReason(target string) (string, bool) {
	if e.opts.Offline {
		return "offline", true
	}
	for i, g := range e.skip {
		if g.Match(target) {
			return "matches skip pattern " + e.opts.Skip[i], true
		}
	}
	return "", false
}

// lookup returns a cached Valid result that is still fresh. Cached failures
// are never reused. Cache errors count as a miss.
func (e *Engine) lookup(target string) (corpus.ValidationResult, bool) {
	cached, ok, err := e.cache.Get(target)
	if err != nil {
		e.logger.Warn("Link cache read failed", "target", target, "error", err.Error())
		return corpus.ValidationResult{}, false
	}
	if !ok || cached.Status != corpus.StatusValid {
		return corpus.ValidationResult{}, false
	}
	if age := e.now().Sub(cached.CheckedAt); age < 0 || age >= e.opts.FreshnessWindow {
		return corpus.ValidationResult{}, false
	}
	return cached, true
}

func (e *Engine) store(target string, result corpus.ValidationResult) {
	stored := result
	stored.FromCache = false
	if err := e.cache.PutIfComplete(target, stored); err != nil {
		e.logger.Warn("Link cache write failed", "target", target, "error", err.Error())
	}
}

// check runs the attempt loop. It returns false if ctx was cancelled.
func (e *Engine) check(ctx context.Context, ref corpus.Reference, u *url.URL) (corpus.ValidationResult, bool) {
	maxAttempts := e.opts.RetryLimit + 1
	history := make([]string, 0, maxAttempts)
	var last Outcome

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := e.backoff(attempt-1, last.Response)
			if err := e.sleep(ctx, delay); err != nil {
				return corpus.ValidationResult{}, false
			}
			e.logger.Debug("Retrying link check",
				"target", ref.RawTarget,
				"attempt", attempt,
				"delay", delay.String(),
			)
		}
		if ctx.Err() != nil {
			return corpus.ValidationResult{}, false
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.opts.AttemptTimeout)
		last = e.checker.Check(attemptCtx, u)
		cancel()

		if ctx.Err() != nil {
			return corpus.ValidationResult{}, false
		}
		history = append(history, last.Describe())

		if last.Class == ClassOK || last.Class == ClassDefinitive {
			break
		}
	}

	status := statusFor(last.Class)
	return e.result(ref, status, summarize(history), len(history)), true
}

// backoff returns the delay before retry number n (starting at 1).
func (e *Engine) backoff(n int, resp *http.Response) time.Duration {
	d := retryablehttp.DefaultBackoff(e.opts.BackoffBase, e.opts.BackoffMax, n-1, resp)
	if d > e.opts.BackoffMax {
		d = e.opts.BackoffMax
	}
	if resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) &&
		resp.Header.Get("Retry-After") != "" {
		// Server-directed delay is honored as is.
		return d
	}
	return e.jitter(d)
}

func (e *Engine) result(ref corpus.Reference, status corpus.Status, detail string, attempts int) corpus.ValidationResult {
	return corpus.ValidationResult{
		Reference: ref,
		Status:    status,
		Detail:    detail,
		CheckedAt: e.now(),
		Attempts:  attempts,
	}
}

func statusFor(c Class) corpus.Status {
	switch c {
	case ClassOK:
		return corpus.StatusValid
	case ClassDefinitive:
		return corpus.StatusBroken
	case ClassTimeout:
		return corpus.StatusTimedOut
	default:
		return corpus.StatusUnreachable
	}
}

// summarize renders the attempt history, e.g. "3 attempts: timeout, timeout, 200 OK".
func summarize(history []string) string {
	noun := "attempts"
	if len(history) == 1 {
		noun = "attempt"
	}
	return fmt.Sprintf("%d %s: %s", len(history), noun, strings.Join(history, ", "))
}

// parseTarget parses an external target. Network-path references get https.
func parseTarget(target string) (*url.URL, error) {
	if strings.HasPrefix(target, "//") {
		target = "https:" + target
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	if u.Host == "" && (u.Scheme == "http" || u.Scheme == "https") {
		return nil, fmt.Errorf("missing host in %q", target)
	}
	u.Fragment = ""
	return u, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// equalJitter keeps half of d and randomizes the other half.
func equalJitter(d time.Duration) time.Duration {
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + rand.N(half+1)
}
