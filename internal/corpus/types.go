// Package corpus holds the document data model shared by every validation stage:
// snapshot records as authored, references with their source locations, and the
// validation results produced for them.
package corpus

import (
	"fmt"
	"strings"
	"time"
)

// Kind classifies a reference by its syntactic shape.
type Kind string

const (
	KindInternal Kind = "internal" // Anchor inside the document: #setup
	KindExternal Kind = "external" // Network locator: https://example.com
)

// Status is the outcome of validating a single reference.
type Status string

const (
	StatusValid       Status = "valid"
	StatusBroken      Status = "broken"
	StatusUnreachable Status = "unreachable"
	StatusTimedOut    Status = "timed_out"
	StatusSkipped     Status = "skipped"
)

// Statuses lists every status in summary order.
var Statuses = []Status{StatusValid, StatusBroken, StatusUnreachable, StatusTimedOut, StatusSkipped}

// Known reports whether s is one of the defined statuses.
func (s Status) Known() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Failed reports whether s is a reportable failure.
func (s Status) Failed() bool {
	return s == StatusBroken || s == StatusUnreachable || s == StatusTimedOut
}

// CodeBlock is an embedded code sample. Content is never interpreted.
type CodeBlock struct {
	Language string `json:"language,omitempty" yaml:"language,omitempty" toml:"language"`
	Content  string `json:"content" yaml:"content" toml:"content"`
}

// RawEntry is an entry exactly as it appears in the snapshot.
type RawEntry struct {
	Title      string      `json:"title" yaml:"title" toml:"title"`
	Body       string      `json:"body,omitempty" yaml:"body,omitempty" toml:"body"`
	CodeBlocks []CodeBlock `json:"codeBlocks,omitempty" yaml:"codeBlocks,omitempty" toml:"codeBlocks"`
	References []string    `json:"references,omitempty" yaml:"references,omitempty" toml:"references"`
}

// Record is one heading with its nominal (authored) level and the entries under it.
type Record struct {
	Level   int        `json:"level" yaml:"level" toml:"level"`
	Title   string     `json:"title" yaml:"title" toml:"title"`
	Entries []RawEntry `json:"entries,omitempty" yaml:"entries,omitempty" toml:"entries"`
}

// Snapshot is the immutable, ordered input of one validation run.
type Snapshot struct {
	Records []Record `json:"records" yaml:"records" toml:"records"`

	Source string `json:"-" yaml:"-" toml:"-"` // Path or label the snapshot was read from
	Digest string `json:"-" yaml:"-" toml:"-"` // BLAKE3 of the decoded input bytes
}

// Location addresses a reference in document order.
type Location struct {
	Section int      `json:"section"`        // Pre-order index of the owning section
	Path    []string `json:"path"`           // Section titles from the topic down
	Slug    string   `json:"slug,omitempty"` // Slug of the owning section
	Entry   int      `json:"entry"`          // 0-indexed entry within the section
	Ref     int      `json:"ref"`            // 0-indexed reference within the entry
}

// Less orders locations by section, then entry, then reference index.
func (l Location) Less(o Location) bool {
	if l.Section != o.Section {
		return l.Section < o.Section
	}
	if l.Entry != o.Entry {
		return l.Entry < o.Entry
	}
	return l.Ref < o.Ref
}

func (l Location) String() string {
	return fmt.Sprintf("%s [entry %d, ref %d]", strings.Join(l.Path, " > "), l.Entry, l.Ref)
}

// Reference is a single cross-reference found in an entry.
type Reference struct {
	Kind         Kind     `json:"kind"`
	RawTarget    string   `json:"target"`
	Source       Location `json:"source"`
	ResolvedSlug string   `json:"resolvedSlug,omitempty"` // Set once an internal reference resolves
}

// ValidationResult is the verdict for one reference (internal) or one target (external).
type ValidationResult struct {
	Reference Reference `json:"reference"`
	Status    Status    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
	FromCache bool      `json:"fromCache"`
	Attempts  int       `json:"attempts"` // Network attempts made; 0 for cached or local verdicts
}

// Complete reports whether the result carries a final verdict worth persisting.
func (r ValidationResult) Complete() bool {
	return r.Status.Known() && !r.CheckedAt.IsZero() && r.Reference.RawTarget != ""
}
