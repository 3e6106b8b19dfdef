// Package testutil provides testing utilities for golden tests.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// FixtureContext holds information about a loaded fixture.
type FixtureContext struct {
	// Name is the fixture directory name (e.g., "guide")
	Name string

	// Root is the absolute path to the fixture directory
	Root string

	// SnapshotPath is the snapshot file inside the fixture
	SnapshotPath string

	// ExpectedDir is the path to the expected/ directory
	ExpectedDir string
}

// snapshotNames are the file names a fixture's snapshot may have, in lookup order.
var snapshotNames = []string{"snapshot.json", "snapshot.yaml", "snapshot.toml", "snapshot.md"}

// LoadFixture loads a named fixture, failing the test on error.
func LoadFixture(t *testing.T, name string) *FixtureContext {
	t.Helper()

	fixtureDir := filepath.Join(getFixturesRoot(t), name)
	if _, err := os.Stat(fixtureDir); os.IsNotExist(err) {
		t.Fatalf("Fixture directory not found: %s", fixtureDir)
	}

	snapshot := findSnapshot(fixtureDir)
	if snapshot == "" {
		t.Fatalf("No snapshot in fixture %s (want one of %v)", fixtureDir, snapshotNames)
	}

	expectedDir := filepath.Join(fixtureDir, "expected")
	if err := os.MkdirAll(expectedDir, 0o755); err != nil {
		t.Fatalf("Failed to create expected directory: %v", err)
	}

	return &FixtureContext{
		Name:         name,
		Root:         fixtureDir,
		SnapshotPath: snapshot,
		ExpectedDir:  expectedDir,
	}
}

// ExpectedPath returns the path to a golden file within the fixture.
// The name should not include the .json extension.
func (f *FixtureContext) ExpectedPath(name string) string {
	return filepath.Join(f.ExpectedDir, name+".json")
}

func findSnapshot(dir string) string {
	for _, name := range snapshotNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// getFixturesRoot returns the absolute path to testdata/fixtures/.
func getFixturesRoot(t *testing.T) string {
	t.Helper()

	// Get the directory of this source file
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get caller information")
	}

	// Navigate from internal/testutil to project root
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
	fixturesRoot := filepath.Join(projectRoot, "testdata", "fixtures")

	if _, err := os.Stat(fixturesRoot); os.IsNotExist(err) {
		t.Fatalf("Fixtures root not found: %s", fixturesRoot)
	}

	return fixturesRoot
}

// AvailableFixtures returns the names of fixtures that carry a snapshot.
func AvailableFixtures(t *testing.T) []string {
	t.Helper()

	root := getFixturesRoot(t)
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("Failed to read fixtures directory: %v", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() && !isHiddenDir(entry.Name()) && findSnapshot(filepath.Join(root, entry.Name())) != "" {
			names = append(names, entry.Name())
		}
	}
	return names
}

func isHiddenDir(name string) bool {
	return len(name) > 0 && name[0] == '.'
}
