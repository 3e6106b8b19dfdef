package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"docxref/internal/corpus"
	"docxref/internal/report"
	"docxref/internal/runner"
	"docxref/internal/storage"
	"docxref/internal/version"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *runner.Outcome:
		return formatOutcomeHuman(v), nil
	case *SlugTableCLI:
		return formatSlugsHuman(v), nil
	case *storage.Stats:
		return formatCacheStatsHuman(v), nil
	case *CacheChangeCLI:
		return formatCacheChangeHuman(v), nil
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

func formatOutcomeHuman(out *runner.Outcome) string {
	var b strings.Builder
	rep := out.Report

	b.WriteString(fmt.Sprintf("docxref v%s\n", version.Version))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	digest := out.SnapshotDigest
	if len(digest) > 12 {
		digest = digest[:12]
	}
	b.WriteString(fmt.Sprintf("Source:  %s (digest %s)\n", out.Source, digest))
	b.WriteString(fmt.Sprintf("Run:     %s, %s\n", out.RunID, out.Duration.Round(time.Millisecond)))
	b.WriteString(fmt.Sprintf("Links:   %s checked, %s from cache\n\n",
		humanize.Comma(int64(out.Checked)), humanize.Comma(int64(out.FromCache))))

	if len(rep.Structure) > 0 {
		b.WriteString("Structure:\n")
		for _, p := range rep.Structure {
			b.WriteString(fmt.Sprintf("  [%s] record %d, %s: %s", p.Kind, p.Record, strings.Join(p.Path, " > "), p.Detail))
			if p.Skipped > 0 {
				b.WriteString(fmt.Sprintf(" (%d nested records dropped)", p.Skipped))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	failed := 0
	for _, f := range rep.Findings {
		if f.Status.Failed() {
			failed++
		}
	}
	if failed > 0 {
		b.WriteString("Findings:\n")
		w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		for _, f := range rep.Findings {
			if !f.Status.Failed() {
				continue
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", strings.ToUpper(string(f.Status)), f.Location, f.Target, findingDetail(f))
		}
		_ = w.Flush()
		b.WriteString("\n")
	}

	s := rep.Summary
	b.WriteString(fmt.Sprintf("Summary: %d references (%d external targets)\n", s.TotalReferences, s.ExternalTargets))
	b.WriteString(fmt.Sprintf("  valid %d, broken %d, unreachable %d, timed out %d, skipped %d, structural %d\n",
		s.ValidCount, s.BrokenCount, s.UnreachableCount, s.TimedOutCount, s.SkippedCount, s.StructureCount))
	if rep.Partial {
		b.WriteString(fmt.Sprintf("  interrupted: %d external targets not checked\n", s.ExternalPending))
	}
	return strings.TrimRight(b.String(), "\n")
}

func findingDetail(f report.Finding) string {
	if f.FromCache && !f.CheckedAt.IsZero() {
		return fmt.Sprintf("%s (cached %s)", f.Detail, humanize.Time(f.CheckedAt))
	}
	return f.Detail
}

// summaryLine is printed when the report itself goes to a file.
func summaryLine(out *runner.Outcome) string {
	s := out.Report.Summary
	status := "clean"
	switch {
	case out.Report.Partial:
		status = "interrupted"
	case !out.Report.Clean():
		status = "findings"
	}
	return fmt.Sprintf("%s: %d references, %d broken, %d unreachable, %d timed out, %d structural",
		status, s.TotalReferences, s.BrokenCount, s.UnreachableCount, s.TimedOutCount, s.StructureCount)
}

func formatSlugsHuman(t *SlugTableCLI) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SLUG\tSECTION")
	for _, a := range t.Anchors {
		fmt.Fprintf(w, "%s\t%s\n", a.Slug, strings.Join(a.Path, " > "))
	}
	_ = w.Flush()
	if t.Problems > 0 {
		b.WriteString(fmt.Sprintf("\n%d structural problems; run 'docxref check' for details\n", t.Problems))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatCacheStatsHuman(st *storage.Stats) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Cache:   %s (%s)\n", st.Path, humanize.Bytes(uint64(max(st.Bytes, 0)))))
	b.WriteString(fmt.Sprintf("Entries: %s\n", humanize.Comma(int64(st.Entries))))

	for _, status := range corpus.Statuses {
		if n := st.ByStatus[status]; n > 0 {
			b.WriteString(fmt.Sprintf("  %-12s %d\n", status, n))
		}
	}

	if !st.Oldest.IsZero() {
		b.WriteString(fmt.Sprintf("Oldest:  %s\n", humanize.Time(st.Oldest)))
		b.WriteString(fmt.Sprintf("Newest:  %s\n", humanize.Time(st.Newest)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatCacheChangeHuman(c *CacheChangeCLI) string {
	return fmt.Sprintf("%s %s from %s", c.Action, humanize.Comma(c.Removed)+" entries", c.Path)
}
