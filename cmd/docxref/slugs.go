package main

import (
	"github.com/spf13/cobra"

	"docxref/internal/anchors"
	"docxref/internal/corpus"
	"docxref/internal/runner"
)

var slugsCmd = &cobra.Command{
	Use:   "slugs <snapshot>",
	Short: "Print the slug assigned to every section",
	Long: `Parse a snapshot and print each section's slug with its path, in document
order. Slugs are the targets internal references resolve against.`,
	Args: cobra.ExactArgs(1),
	RunE: runSlugs,
}

func init() {
	rootCmd.AddCommand(slugsCmd)
}

// SlugTableCLI is the output of the slugs command.
type SlugTableCLI struct {
	Source   string           `json:"source"`
	Digest   string           `json:"snapshotDigest"`
	Anchors  []anchors.Anchor `json:"anchors"`
	Problems int              `json:"structureProblems"`
}

func runSlugs(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	snap, err := corpus.LoadSnapshot(args[0])
	if err != nil {
		return err
	}
	parsed, reg, err := runner.Outline(snap)
	if err != nil {
		return err
	}
	s.logger.Debug("Anchors assigned", "sections", parsed.Tree.Len(), "slugs", reg.Len())

	return printResponse(cmd, &SlugTableCLI{
		Source:   snap.Source,
		Digest:   snap.Digest,
		Anchors:  reg.Anchors(),
		Problems: len(parsed.Problems),
	}, s.format)
}
