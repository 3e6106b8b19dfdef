// Package xref collects every reference in a section tree, resolves internal
// anchors against the anchor registry and gathers external targets for the
// link checker.
package xref

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"docxref/internal/anchors"
	"docxref/internal/corpus"
	"docxref/internal/outline"
)

// schemePattern matches a leading URI scheme followed by "://".
var schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*://`)

// Classify returns the kind of a raw reference target. A leading scheme or an
// absolute network path ("//host/...") marks an external reference; anything
// else is an internal anchor.
func Classify(raw string) corpus.Kind {
	target := strings.TrimSpace(raw)
	if schemePattern.MatchString(target) || strings.HasPrefix(target, "//") {
		return corpus.KindExternal
	}
	return corpus.KindInternal
}

// AnchorTarget returns the slug an internal reference points at.
func AnchorTarget(raw string) string {
	return strings.TrimPrefix(strings.TrimSpace(raw), "#")
}

// Targets is the deduplicated set of external targets with a reverse index
// from each target to every location that references it.
type Targets struct {
	order   []string
	first   map[string]corpus.Reference
	sources map[string][]corpus.Location
}

func newTargets() *Targets {
	return &Targets{
		first:   make(map[string]corpus.Reference),
		sources: make(map[string][]corpus.Location),
	}
}

func (t *Targets) add(ref corpus.Reference) {
	key := ref.RawTarget
	if _, ok := t.first[key]; !ok {
		t.order = append(t.order, key)
		t.first[key] = ref
	}
	t.sources[key] = append(t.sources[key], ref.Source)
}

// List returns the distinct targets in order of first appearance.
func (t *Targets) List() []string {
	return t.order
}

// References returns the first-occurrence reference of every distinct target.
func (t *Targets) References() []corpus.Reference {
	refs := make([]corpus.Reference, len(t.order))
	for i, key := range t.order {
		refs[i] = t.first[key]
	}
	return refs
}

// Sources returns every location referencing target, in document order.
func (t *Targets) Sources(target string) []corpus.Location {
	return t.sources[target]
}

// Len returns the number of distinct targets.
func (t *Targets) Len() int {
	return len(t.order)
}

// Occurrences returns the total number of external references.
func (t *Targets) Occurrences() int {
	n := 0
	for _, locs := range t.sources {
		n += len(locs)
	}
	return n
}

// Result is the output of Resolve.
type Result struct {
	Internal []corpus.ValidationResult // One per internal reference, document order
	External *Targets
	Total    int // All references seen
}

// Resolver resolves internal references synchronously. No I/O happens here.
type Resolver struct {
	registry *anchors.Registry
	now      func() time.Time
}

// NewResolver creates a resolver backed by registry.
func NewResolver(registry *anchors.Registry) *Resolver {
	return &Resolver{registry: registry, now: time.Now}
}

// WithClock overrides the timestamp source for results.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve walks tree once and splits its references into resolved internal
// results and the external target set.
func (r *Resolver) Resolve(tree *outline.Tree) *Result {
	result := &Result{External: newTargets()}
	checkedAt := r.now()

	tree.Walk(func(s *outline.Section) bool {
		path := tree.Path(s.ID)
		for ei, entry := range s.Entries {
			for ri, raw := range entry.References {
				result.Total++
				ref := corpus.Reference{
					Kind:      Classify(raw),
					RawTarget: strings.TrimSpace(raw),
					Source: corpus.Location{
						Section: int(s.ID),
						Path:    path,
						Slug:    s.Slug,
						Entry:   ei,
						Ref:     ri,
					},
				}

				if ref.Kind == corpus.KindExternal {
					result.External.add(ref)
					continue
				}
				result.Internal = append(result.Internal, r.resolveInternal(ref, checkedAt))
			}
		}
		return true
	})

	return result
}

func (r *Resolver) resolveInternal(ref corpus.Reference, checkedAt time.Time) corpus.ValidationResult {
	res := corpus.ValidationResult{Reference: ref, CheckedAt: checkedAt}

	slug := AnchorTarget(ref.RawTarget)
	if slug == "" {
		res.Status = corpus.StatusBroken
		res.Detail = fmt.Sprintf("empty reference at %s", ref.Source)
		return res
	}

	section, err := r.registry.Resolve(slug)
	if err != nil {
		res.Status = corpus.StatusBroken
		res.Detail = fmt.Sprintf("unresolved anchor %q referenced from %s", slug, ref.Source)
		return res
	}

	res.Status = corpus.StatusValid
	res.Reference.ResolvedSlug = section.Slug
	res.Detail = "resolves to " + strings.Join(r.pathOf(section.Slug), " > ")
	return res
}

func (r *Resolver) pathOf(slug string) []string {
	loc, _ := r.registry.Location(slug)
	return loc.Path
}
