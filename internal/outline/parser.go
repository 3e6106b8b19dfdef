package outline

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"

	"docxref/internal/corpus"
	"docxref/internal/errors"
)

// ProblemKind names a structural defect.
type ProblemKind string

const (
	ProblemLevelGap     ProblemKind = "level_gap"          // Level 3 directly under level 1
	ProblemRootLevel    ProblemKind = "root_not_level_one" // Corpus (or a topic) does not start at level 1
	ProblemDuplicate    ProblemKind = "duplicate_section"  // Sibling with identical title and content
	ProblemInvalidLevel ProblemKind = "invalid_level"      // Level below 1
	ProblemEmptyTitle   ProblemKind = "empty_title"        // Title is blank after normalization
)

// Problem is a MalformedStructure finding. The offending record and every
// deeper record after it (its subtree) are left out of the tree; parsing
// resumes at the next record of the same or a shallower level.
type Problem struct {
	Kind    ProblemKind `json:"kind"`
	Record  int         `json:"record"`  // Index of the offending record
	Level   int         `json:"level"`   // Nominal level as authored
	Path    []string    `json:"path"`    // Ancestor titles plus the offending title
	Detail  string      `json:"detail"`  // Human-readable description
	Skipped int         `json:"skipped"` // Descendant records dropped with it
}

// Err converts the problem into a coded error.
func (p Problem) Err() *errors.Error {
	return errors.New(errors.MalformedStructure, p.Detail, nil).
		WithLocation(fmt.Sprintf("record %d: %s", p.Record, strings.Join(p.Path, " > ")))
}

// Result is the output of Parse.
type Result struct {
	Tree     *Tree
	Problems []Problem
}

// NormalizeTitle trims a title and collapses internal whitespace runs to a single space.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(title), " ")
}

// Parse builds the section tree from the snapshot's records.
func Parse(snap *corpus.Snapshot) (*Result, error) {
	if snap == nil {
		return nil, errors.New(errors.SnapshotUnreadable, "nil snapshot", nil)
	}

	p := &parser{
		tree:     &Tree{},
		siblings: make(map[NodeID]map[string]struct{}),
	}
	for i, rec := range snap.Records {
		p.record(i, rec)
	}

	return &Result{Tree: p.tree, Problems: p.problems}, nil
}

type parser struct {
	tree     *Tree
	problems []Problem
	stack    []NodeID // Open ancestors of the next record

	// Set while dropping the subtree of a rejected record
	skipping  bool
	skipLevel int

	// Per-parent set of title+content keys for duplicate detection
	siblings map[NodeID]map[string]struct{}
}

func (p *parser) record(index int, rec corpus.Record) {
	if p.skipping {
		if rec.Level > p.skipLevel {
			p.problems[len(p.problems)-1].Skipped++
			return
		}
		p.skipping = false
	}

	title := NormalizeTitle(rec.Title)

	if rec.Level < 1 {
		p.reject(index, rec.Level, title, ProblemInvalidLevel,
			fmt.Sprintf("heading level %d is below 1", rec.Level), false)
		return
	}

	// Close sections at the same or a deeper level.
	for len(p.stack) > 0 && p.tree.nodes[p.top()].Level >= rec.Level {
		p.stack = p.stack[:len(p.stack)-1]
	}

	if title == "" {
		p.reject(index, rec.Level, title, ProblemEmptyTitle, "heading title is empty", true)
		return
	}

	parent := NoParent
	if len(p.stack) == 0 {
		if rec.Level != 1 {
			p.reject(index, rec.Level, title, ProblemRootLevel,
				fmt.Sprintf("top-level section %q has level %d, want 1", title, rec.Level), true)
			return
		}
	} else {
		parent = p.top()
		parentLevel := p.tree.nodes[parent].Level
		if rec.Level > parentLevel+1 {
			p.reject(index, rec.Level, title, ProblemLevelGap,
				fmt.Sprintf("level %d section %q directly under level %d section %q",
					rec.Level, title, parentLevel, p.tree.nodes[parent].Title), true)
			return
		}
	}

	entries := normalizeEntries(rec.Entries)
	key := title + "\x00" + fingerprint(entries)
	seen := p.siblings[parent]
	if seen == nil {
		seen = make(map[string]struct{})
		p.siblings[parent] = seen
	}
	if _, dup := seen[key]; dup {
		p.reject(index, rec.Level, title, ProblemDuplicate,
			fmt.Sprintf("section %q duplicates an earlier sibling with identical content", title), true)
		return
	}
	seen[key] = struct{}{}

	id := p.tree.add(Section{
		Level:   rec.Level,
		Title:   title,
		Parent:  parent,
		Entries: entries,
		Record:  index,
	})
	p.stack = append(p.stack, id)
}

func (p *parser) top() NodeID {
	return p.stack[len(p.stack)-1]
}

func (p *parser) reject(index, level int, title string, kind ProblemKind, detail string, dropSubtree bool) {
	var path []string
	if len(p.stack) > 0 {
		path = p.tree.Path(p.top())
	}
	path = append(path, title)

	p.problems = append(p.problems, Problem{
		Kind:   kind,
		Record: index,
		Level:  level,
		Path:   path,
		Detail: detail,
	})
	if dropSubtree {
		p.skipping = true
		p.skipLevel = level
	}
}

func normalizeEntries(raw []corpus.RawEntry) []Entry {
	if len(raw) == 0 {
		return nil
	}
	entries := make([]Entry, len(raw))
	for i, e := range raw {
		entries[i] = Entry{
			Title:      NormalizeTitle(e.Title),
			Body:       e.Body,
			CodeBlocks: e.CodeBlocks,
			References: e.References,
		}
	}
	return entries
}

// fingerprint hashes entry content with length-prefixed fields so that
// different splits of the same bytes never collide.
func fingerprint(entries []Entry) string {
	h := blake3.New()
	write := func(s string) {
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
		_, _ = h.Write(n[:])
		_, _ = h.Write([]byte(s))
	}
	for _, e := range entries {
		write(e.Title)
		write(e.Body)
		for _, cb := range e.CodeBlocks {
			write(cb.Language)
			write(cb.Content)
		}
		write("\x01")
		for _, ref := range e.References {
			write(ref)
		}
		write("\x02")
	}
	return hex.EncodeToString(h.Sum(nil))
}
