package testutil

import (
	"bytes"
)

// FixtureRootToken replaces the fixture's absolute root in golden output.
const FixtureRootToken = "<fixture>"

// Normalize makes data independent of where the checkout lives: the fixture
// root becomes FixtureRootToken and the output ends with exactly one newline.
func Normalize(fixture *FixtureContext, data []byte) []byte {
	out := bytes.ReplaceAll(data, []byte(fixture.Root), []byte(FixtureRootToken))
	out = bytes.TrimRight(out, "\n")
	return append(out, '\n')
}
