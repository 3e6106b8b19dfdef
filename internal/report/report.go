// Package report merges internal and external validation results with
// structural problems into one document-ordered report.
//
// Build is a pure function of its input: the same input always yields the
// same report, whatever order the external checks finished in.
package report

import (
	"slices"
	"time"

	"docxref/internal/corpus"
	"docxref/internal/outline"
)

// Finding is the verdict for one reference occurrence.
type Finding struct {
	Location     corpus.Location `json:"location"`
	Kind         corpus.Kind     `json:"kind"`
	Target       string          `json:"reference"`
	Status       corpus.Status   `json:"status"`
	Detail       string          `json:"detail,omitempty"`
	ResolvedSlug string          `json:"resolvedSlug,omitempty"`
	FromCache    bool            `json:"fromCache"`
	Attempts     int             `json:"attempts"`
	CheckedAt    time.Time       `json:"checkedAt"`
}

// StructureFinding is a MalformedStructure problem found while parsing.
type StructureFinding struct {
	Kind    outline.ProblemKind `json:"kind"`
	Record  int                 `json:"record"`
	Level   int                 `json:"level"`
	Path    []string            `json:"path"`
	Detail  string              `json:"detail"`
	Skipped int                 `json:"skipped"`
}

// Summary counts findings per status.
type Summary struct {
	ValidCount       int `json:"validCount"`
	BrokenCount      int `json:"brokenCount"`
	UnreachableCount int `json:"unreachableCount"`
	TimedOutCount    int `json:"timedOutCount"`
	SkippedCount     int `json:"skippedCount"`
	StructureCount   int `json:"structureCount"`
	TotalReferences  int `json:"totalReferences"`
	ExternalTargets  int `json:"externalTargets"`
	ExternalPending  int `json:"externalPending"` // Targets left unchecked by cancellation
}

// Report is the aggregated result of one run.
type Report struct {
	Findings  []Finding          `json:"findings"`
	Structure []StructureFinding `json:"structure"`
	Summary   Summary            `json:"summary"`
	Partial   bool               `json:"partial"`
}

// Clean reports whether the run found nothing wrong and ran to completion.
func (r *Report) Clean() bool {
	s := r.Summary
	return !r.Partial && s.BrokenCount == 0 && s.UnreachableCount == 0 &&
		s.TimedOutCount == 0 && s.StructureCount == 0
}

// Count returns the number of findings with status.
func (r *Report) Count(status corpus.Status) int {
	switch status {
	case corpus.StatusValid:
		return r.Summary.ValidCount
	case corpus.StatusBroken:
		return r.Summary.BrokenCount
	case corpus.StatusUnreachable:
		return r.Summary.UnreachableCount
	case corpus.StatusTimedOut:
		return r.Summary.TimedOutCount
	case corpus.StatusSkipped:
		return r.Summary.SkippedCount
	default:
		return 0
	}
}

// ExternalSet is the deduplicated external target set with its reverse index.
type ExternalSet interface {
	List() []string
	Sources(target string) []corpus.Location
	Occurrences() int
}

// Input carries everything Build aggregates.
type Input struct {
	Problems []outline.Problem
	Internal []corpus.ValidationResult         // One per internal reference occurrence
	Targets  ExternalSet                       // May be nil when there are no external references
	External map[string]corpus.ValidationResult // Per target; missing targets are pending
	Partial  bool
}

// Build aggregates in into a report ordered by source location.
func Build(in Input) *Report {
	rep := &Report{
		Findings:  make([]Finding, 0, len(in.Internal)),
		Structure: make([]StructureFinding, 0, len(in.Problems)),
		Partial:   in.Partial,
	}

	for _, r := range in.Internal {
		rep.Findings = append(rep.Findings, findingAt(r.Reference.Source, r))
	}

	if in.Targets != nil {
		for _, target := range in.Targets.List() {
			rep.Summary.ExternalTargets++
			r, ok := in.External[target]
			if !ok {
				rep.Summary.ExternalPending++
				continue
			}
			// One finding per occurrence so every source location is reported.
			for _, loc := range in.Targets.Sources(target) {
				f := findingAt(loc, r)
				f.Kind = corpus.KindExternal
				f.Target = target
				rep.Findings = append(rep.Findings, f)
			}
		}
		rep.Summary.TotalReferences += in.Targets.Occurrences()
	}
	rep.Summary.TotalReferences += len(in.Internal)

	slices.SortStableFunc(rep.Findings, func(a, b Finding) int {
		switch {
		case a.Location.Less(b.Location):
			return -1
		case b.Location.Less(a.Location):
			return 1
		default:
			return 0
		}
	})

	for _, f := range rep.Findings {
		switch f.Status {
		case corpus.StatusValid:
			rep.Summary.ValidCount++
		case corpus.StatusBroken:
			rep.Summary.BrokenCount++
		case corpus.StatusUnreachable:
			rep.Summary.UnreachableCount++
		case corpus.StatusTimedOut:
			rep.Summary.TimedOutCount++
		case corpus.StatusSkipped:
			rep.Summary.SkippedCount++
		}
	}

	for _, p := range in.Problems {
		rep.Structure = append(rep.Structure, StructureFinding{
			Kind:    p.Kind,
			Record:  p.Record,
			Level:   p.Level,
			Path:    p.Path,
			Detail:  p.Detail,
			Skipped: p.Skipped,
		})
	}
	slices.SortStableFunc(rep.Structure, func(a, b StructureFinding) int {
		return a.Record - b.Record
	})
	rep.Summary.StructureCount = len(rep.Structure)

	return rep
}

func findingAt(loc corpus.Location, r corpus.ValidationResult) Finding {
	return Finding{
		Location:     loc,
		Kind:         r.Reference.Kind,
		Target:       r.Reference.RawTarget,
		Status:       r.Status,
		Detail:       r.Detail,
		ResolvedSlug: r.Reference.ResolvedSlug,
		FromCache:    r.FromCache,
		Attempts:     r.Attempts,
		CheckedAt:    r.CheckedAt,
	}
}
