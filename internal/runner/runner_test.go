package runner

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"docxref/internal/config"
	"docxref/internal/corpus"
	"docxref/internal/errors"
	"docxref/internal/linkcheck"
	"docxref/internal/outline"
)

func okChecker(calls *atomic.Int32) linkcheck.Checker {
	return linkcheck.CheckerFunc(func(_ context.Context, u *url.URL) linkcheck.Outcome {
		calls.Add(1)
		if u.Path == "/gone" {
			return linkcheck.Outcome{Class: linkcheck.ClassDefinitive, StatusCode: 404}
		}
		return linkcheck.Outcome{Class: linkcheck.ClassOK, StatusCode: 200}
	})
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.CachePath = filepath.Join(t.TempDir(), "linkcache.db")
	return cfg
}

func sampleSnapshot() *corpus.Snapshot {
	return &corpus.Snapshot{
		Source: "memory",
		Digest: "abc123",
		Records: []corpus.Record{
			{Level: 1, Title: "Guide", Entries: []corpus.RawEntry{
				{Title: "Intro", References: []string{"https://example.com/ok", "#setup", "#nowhere"}},
			}},
			{Level: 2, Title: "Setup", Entries: []corpus.RawEntry{
				{Title: "Steps", References: []string{"https://example.com/gone", "https://example.com/ok"}},
			}},
			{Level: 4, Title: "Too Deep"},
			{Level: 2, Title: "Usage"},
		},
	}
}

func TestRun_Pipeline(t *testing.T) {
	var calls atomic.Int32
	r := New(testConfig(t), nil, WithChecker(okChecker(&calls)), WithCache(linkcheck.NewMemoryCache()))
	defer func() { _ = r.Close() }()

	out, err := r.Run(context.Background(), sampleSnapshot())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if out.RunID == "" || out.SnapshotDigest != "abc123" || out.Source != "memory" {
		t.Errorf("metadata = %+v", out)
	}
	if out.Cancelled || out.Report.Partial {
		t.Error("run should not be cancelled")
	}

	s := out.Report.Summary
	if s.ValidCount != 3 || s.BrokenCount != 2 || s.StructureCount != 1 {
		t.Errorf("summary = %+v, want 3 valid, 2 broken, 1 structural", s)
	}
	if s.TotalReferences != 5 || s.ExternalTargets != 2 {
		t.Errorf("summary = %+v, want 5 references over 2 targets", s)
	}
	if calls.Load() != 2 {
		t.Errorf("checker called %d times, want once per distinct target", calls.Load())
	}
	if out.Report.Structure[0].Kind != outline.ProblemLevelGap {
		t.Errorf("structure = %+v", out.Report.Structure)
	}

	wantTargets := []string{"https://example.com/ok", "#setup", "#nowhere", "https://example.com/gone", "https://example.com/ok"}
	for i, f := range out.Report.Findings {
		if f.Target != wantTargets[i] {
			t.Errorf("finding %d target = %q, want %q", i, f.Target, wantTargets[i])
		}
	}
}

func TestRun_PersistentCacheAcrossRuns(t *testing.T) {
	cfg := testConfig(t)
	var calls atomic.Int32

	first := New(cfg, nil, WithChecker(okChecker(&calls)))
	if _, err := first.Run(context.Background(), sampleSnapshot()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	_ = first.Close()
	if _, err := os.Stat(cfg.CachePath); err != nil {
		t.Fatalf("cache file not created: %v", err)
	}

	second := New(cfg, nil, WithChecker(okChecker(&calls)))
	defer func() { _ = second.Close() }()
	out, err := second.Run(context.Background(), sampleSnapshot())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	// The valid target is reused; the broken one is checked again.
	if out.FromCache != 1 || out.Checked != 1 {
		t.Errorf("FromCache = %d, Checked = %d, want 1 and 1", out.FromCache, out.Checked)
	}
	if calls.Load() != 3 {
		t.Errorf("total checks = %d, want 3", calls.Load())
	}
}

func TestRun_UnavailableCacheDegrades(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.CachePath = filepath.Join(blocker, "cache.db")

	var calls atomic.Int32
	r := New(cfg, nil, WithChecker(okChecker(&calls)))
	defer func() { _ = r.Close() }()

	out, err := r.Run(context.Background(), sampleSnapshot())
	if err != nil {
		t.Fatalf("Run() should not fail on cache errors: %v", err)
	}
	if out.Report.Summary.ValidCount != 3 {
		t.Errorf("summary = %+v", out.Report.Summary)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	r := New(testConfig(t), nil, WithChecker(okChecker(&calls)), WithCache(linkcheck.NewMemoryCache()))
	out, err := r.Run(ctx, sampleSnapshot())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !out.Cancelled || !out.Report.Partial {
		t.Error("cancelled run should be marked partial")
	}
	if out.Report.Summary.ExternalPending != 2 {
		t.Errorf("ExternalPending = %d, want 2", out.Report.Summary.ExternalPending)
	}
	// Internal results never depend on the network and are always complete.
	if out.Report.Summary.ValidCount != 1 || out.Report.Summary.BrokenCount != 1 {
		t.Errorf("summary = %+v", out.Report.Summary)
	}
	if calls.Load() != 0 {
		t.Errorf("checker called %d times after cancellation", calls.Load())
	}
}

func TestRun_Offline(t *testing.T) {
	var calls atomic.Int32
	r := New(testConfig(t), nil, WithChecker(okChecker(&calls)), WithOffline(true))
	out, err := r.Run(context.Background(), sampleSnapshot())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Report.Summary.SkippedCount != 3 || calls.Load() != 0 {
		t.Errorf("summary = %+v, calls = %d", out.Report.Summary, calls.Load())
	}
}

func TestRun_NilSnapshot(t *testing.T) {
	_, err := New(nil, nil).Run(context.Background(), nil)
	if !errors.HasCode(err, errors.SnapshotUnreadable) {
		t.Errorf("Run(nil) error = %v, want SNAPSHOT_UNREADABLE", err)
	}
}

func TestRunFile_Markdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "README.md")
	doc := "# Guide\nSee [usage](#usage).\n\n## Usage\nNothing here.\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	fixed := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	r := New(testConfig(t), nil, WithCache(linkcheck.NewMemoryCache()), WithClock(func() time.Time { return fixed }))
	out, err := r.RunFile(context.Background(), path)
	if err != nil {
		t.Fatalf("RunFile() error = %v", err)
	}
	if !out.Report.Clean() {
		t.Errorf("report should be clean: %+v", out.Report)
	}
	if out.Report.Findings[0].ResolvedSlug != "usage" {
		t.Errorf("finding = %+v", out.Report.Findings[0])
	}
	if out.Duration != 0 || !out.StartedAt.Equal(fixed) {
		t.Errorf("clock not applied: %v %v", out.StartedAt, out.Duration)
	}
}
