package outline

import (
	"strings"
	"testing"

	"docxref/internal/corpus"
	"docxref/internal/errors"
)

func rec(level int, title string, entries ...corpus.RawEntry) corpus.Record {
	return corpus.Record{Level: level, Title: title, Entries: entries}
}

func titles(tree *Tree) []string {
	var out []string
	tree.Walk(func(s *Section) bool {
		out = append(out, s.Title)
		return true
	})
	return out
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Setup", "Setup"},
		{"  Setup  ", "Setup"},
		{"Getting \t  Started", "Getting Started"},
		{"\nMulti\nline\n", "Multi line"},
		{"   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeTitle(tt.in); got != tt.want {
				t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParse_BuildsTree(t *testing.T) {
	snap := &corpus.Snapshot{Records: []corpus.Record{
		rec(1, "Guide"),
		rec(2, "Install", corpus.RawEntry{Title: "From source", Body: "make"}),
		rec(3, "Linux"),
		rec(2, "Usage"),
		rec(1, "Reference"),
	}}

	result, err := Parse(snap)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(result.Problems) != 0 {
		t.Fatalf("unexpected problems: %+v", result.Problems)
	}

	tree := result.Tree
	if tree.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", tree.Len())
	}
	if got := len(tree.Roots()); got != 2 {
		t.Errorf("len(Roots()) = %d, want 2", got)
	}

	guide := tree.Node(tree.Roots()[0])
	if len(guide.Children) != 2 {
		t.Fatalf("Guide has %d children, want 2", len(guide.Children))
	}
	linux := tree.Node(2)
	if linux.Title != "Linux" || linux.Level != 3 {
		t.Errorf("node 2 = %q level %d, want Linux level 3", linux.Title, linux.Level)
	}

	path := strings.Join(tree.Path(linux.ID), " > ")
	if path != "Guide > Install > Linux" {
		t.Errorf("Path() = %q", path)
	}

	install := tree.Node(1)
	if len(install.Entries) != 1 || install.Entries[0].Body != "make" {
		t.Errorf("Install entries = %+v", install.Entries)
	}
}

func TestParse_LevelGapKeepsSiblings(t *testing.T) {
	snap := &corpus.Snapshot{Records: []corpus.Record{
		rec(1, "Guide"),
		rec(3, "Too Deep"),
		rec(4, "Inside Too Deep"),
		rec(2, "Install"),
		rec(2, "Usage"),
	}}

	result, err := Parse(snap)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(result.Problems) != 1 {
		t.Fatalf("got %d problems, want 1: %+v", len(result.Problems), result.Problems)
	}
	p := result.Problems[0]
	if p.Kind != ProblemLevelGap {
		t.Errorf("Kind = %v, want %v", p.Kind, ProblemLevelGap)
	}
	if p.Record != 1 {
		t.Errorf("Record = %d, want 1", p.Record)
	}
	if p.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", p.Skipped)
	}
	if !errors.HasCode(p.Err(), errors.MalformedStructure) {
		t.Errorf("Err() code = %v, want MALFORMED_STRUCTURE", p.Err())
	}

	got := strings.Join(titles(result.Tree), ",")
	if got != "Guide,Install,Usage" {
		t.Errorf("sections = %s, want Guide,Install,Usage", got)
	}
}

func TestParse_RootNotLevelOne(t *testing.T) {
	snap := &corpus.Snapshot{Records: []corpus.Record{
		rec(2, "Orphan"),
		rec(3, "Orphan Child"),
		rec(1, "Guide"),
		rec(2, "Install"),
	}}

	result, err := Parse(snap)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(result.Problems) != 1 || result.Problems[0].Kind != ProblemRootLevel {
		t.Fatalf("problems = %+v, want one root_not_level_one", result.Problems)
	}
	if got := strings.Join(titles(result.Tree), ","); got != "Guide,Install" {
		t.Errorf("sections = %s", got)
	}
}

func TestParse_DuplicateSiblings(t *testing.T) {
	same := corpus.RawEntry{Title: "Step", Body: "run it"}

	t.Run("identical title and content is rejected", func(t *testing.T) {
		snap := &corpus.Snapshot{Records: []corpus.Record{
			rec(1, "Guide"),
			rec(2, "Setup", same),
			rec(2, "  Setup ", same),
		}}
		result, _ := Parse(snap)
		if len(result.Problems) != 1 || result.Problems[0].Kind != ProblemDuplicate {
			t.Fatalf("problems = %+v, want one duplicate_section", result.Problems)
		}
		if result.Tree.Len() != 2 {
			t.Errorf("Len() = %d, want 2", result.Tree.Len())
		}
	})

	t.Run("same title different content is kept", func(t *testing.T) {
		snap := &corpus.Snapshot{Records: []corpus.Record{
			rec(1, "Guide"),
			rec(2, "Setup", same),
			rec(2, "Setup", corpus.RawEntry{Title: "Step", Body: "run it twice"}),
		}}
		result, _ := Parse(snap)
		if len(result.Problems) != 0 {
			t.Fatalf("unexpected problems: %+v", result.Problems)
		}
		if result.Tree.Len() != 3 {
			t.Errorf("Len() = %d, want 3", result.Tree.Len())
		}
	})

	t.Run("same title under different parents is kept", func(t *testing.T) {
		snap := &corpus.Snapshot{Records: []corpus.Record{
			rec(1, "Linux"),
			rec(2, "Setup", same),
			rec(1, "macOS"),
			rec(2, "Setup", same),
		}}
		result, _ := Parse(snap)
		if len(result.Problems) != 0 {
			t.Fatalf("unexpected problems: %+v", result.Problems)
		}
	})
}

func TestParse_InvalidLevelAndEmptyTitle(t *testing.T) {
	snap := &corpus.Snapshot{Records: []corpus.Record{
		rec(1, "Guide"),
		rec(0, "Zero"),
		rec(2, "   "),
		rec(3, "Under Blank"),
		rec(2, "Install"),
	}}

	result, _ := Parse(snap)
	if len(result.Problems) != 2 {
		t.Fatalf("got %d problems, want 2: %+v", len(result.Problems), result.Problems)
	}
	if result.Problems[0].Kind != ProblemInvalidLevel {
		t.Errorf("problem 0 = %v, want invalid_level", result.Problems[0].Kind)
	}
	if result.Problems[1].Kind != ProblemEmptyTitle || result.Problems[1].Skipped != 1 {
		t.Errorf("problem 1 = %+v, want empty_title skipping 1", result.Problems[1])
	}
	if got := strings.Join(titles(result.Tree), ","); got != "Guide,Install" {
		t.Errorf("sections = %s", got)
	}
}

func TestParse_NilSnapshot(t *testing.T) {
	if _, err := Parse(nil); !errors.HasCode(err, errors.SnapshotUnreadable) {
		t.Errorf("Parse(nil) error = %v, want SNAPSHOT_UNREADABLE", err)
	}
}

func TestTree_AssignSlugsOnce(t *testing.T) {
	result, _ := Parse(&corpus.Snapshot{Records: []corpus.Record{rec(1, "Guide")}})

	if err := result.Tree.AssignSlugs(func(s *Section) string { return "guide" }); err != nil {
		t.Fatalf("AssignSlugs() error = %v", err)
	}
	if !result.Tree.Sealed() {
		t.Error("tree should be sealed")
	}
	if err := result.Tree.AssignSlugs(func(s *Section) string { return "x" }); err == nil {
		t.Error("second AssignSlugs() should fail")
	}
	if got := result.Tree.Node(0).Slug; got != "guide" {
		t.Errorf("Slug = %q, want guide", got)
	}
}
