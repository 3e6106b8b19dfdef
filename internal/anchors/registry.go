// Package anchors assigns every section a unique, reproducible slug and resolves
// slugs back to sections.
//
// Slugs are assigned in document (pre-order) order. A base slug that is already
// taken receives the smallest integer suffix, starting at 2, that yields an
// unused slug. Because the scan is in document order, a section's slug depends
// only on the sections before it with the same base.
package anchors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"unicode"

	"docxref/internal/corpus"
	"docxref/internal/outline"
)

// ErrNotFound is returned by Resolve for a slug no section carries.
var ErrNotFound = stderrors.New("anchor not found")

// Separator joins words of a slug.
const Separator = '-'

// fallbackBase is used when a title contains no letters or digits.
const fallbackBase = "section"

// Anchor is one registry entry: a slug and where its section lives.
type Anchor struct {
	Slug    string         `json:"slug"`
	Section outline.NodeID `json:"section"`
	Path    []string       `json:"path"`
}

// Registry maps slugs to sections of one tree.
type Registry struct {
	tree    *outline.Tree
	bySlug  map[string]outline.NodeID
	anchors []Anchor // Document order
}

// Build assigns slugs to every section of tree and seals it.
func Build(tree *outline.Tree) (*Registry, error) {
	r := &Registry{
		tree:    tree,
		bySlug:  make(map[string]outline.NodeID, tree.Len()),
		anchors: make([]Anchor, 0, tree.Len()),
	}

	err := tree.AssignSlugs(func(s *outline.Section) string {
		slug := r.claim(Slugify(s.Title))
		r.bySlug[slug] = s.ID
		r.anchors = append(r.anchors, Anchor{Slug: slug, Section: s.ID})
		return slug
	})
	if err != nil {
		return nil, err
	}

	for i := range r.anchors {
		r.anchors[i].Path = tree.Path(r.anchors[i].Section)
	}
	return r, nil
}

// claim returns base if free, otherwise base-N for the smallest free N >= 2.
func (r *Registry) claim(base string) string {
	if _, taken := r.bySlug[base]; !taken {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s%c%d", base, Separator, n)
		if _, taken := r.bySlug[candidate]; !taken {
			return candidate
		}
	}
}

// Slugify derives the base slug of a normalized title: lower-cased, every run
// of characters that are not letters or digits replaced by one separator, and
// no leading or trailing separator.
func Slugify(title string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteRune(Separator)
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	if b.Len() == 0 {
		return fallbackBase
	}
	return b.String()
}

// Resolve returns the section carrying slug, or ErrNotFound.
func (r *Registry) Resolve(slug string) (*outline.Section, error) {
	id, ok := r.bySlug[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, slug)
	}
	return r.tree.Node(id), nil
}

// Location returns the source location of the section carrying slug.
func (r *Registry) Location(slug string) (corpus.Location, bool) {
	id, ok := r.bySlug[slug]
	if !ok {
		return corpus.Location{}, false
	}
	return corpus.Location{Section: int(id), Path: r.tree.Path(id), Slug: slug}, true
}

// Anchors returns every registry entry in document order.
func (r *Registry) Anchors() []Anchor {
	return r.anchors
}

// Len returns the number of registered slugs.
func (r *Registry) Len() int {
	return len(r.bySlug)
}
