package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docxref/internal/storage"
)

var (
	cachePathFlag  string
	pruneOlderThan time.Duration
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the link cache",
	Long:  "Inspect and maintain the persisted external link results (default .docxref/linkcache.db)",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache size and entries per status",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove entries checked before a cutoff",
	Long: `Remove cached results older than --older-than.

Examples:
  docxref cache prune                    # Drop entries older than 30 days
  docxref cache prune --older-than 24h`,
	Args: cobra.NoArgs,
	RunE: runCachePrune,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached result",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cachePathFlag, "cache", "", "Link cache database (overrides cachePath)")
	cachePruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 720*time.Hour, "Age of the oldest entry to keep")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

// CacheChangeCLI is the output of prune and clear.
type CacheChangeCLI struct {
	Action  string `json:"action"`
	Path    string `json:"path"`
	Removed int64  `json:"removed"`
}

// openCache opens the link cache named by --cache or the configuration.
func openCache(cmd *cobra.Command) (*session, *storage.LinkCache, error) {
	s, err := newSession(cmd)
	if err != nil {
		return nil, nil, err
	}
	path := s.cfg.CachePath
	if cmd.Flags().Changed("cache") {
		path = cachePathFlag
	}
	c, err := storage.OpenLinkCache(path, s.logger)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, c, nil
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	s, c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	defer func() { _ = c.Close() }()

	stats, err := c.Stats(cmd.Context())
	if err != nil {
		return err
	}
	return printResponse(cmd, stats, s.format)
}

func runCachePrune(cmd *cobra.Command, _ []string) error {
	if pruneOlderThan <= 0 {
		return fmt.Errorf("--older-than must be positive, got %s", pruneOlderThan)
	}
	s, c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	defer func() { _ = c.Close() }()

	removed, err := c.Prune(cmd.Context(), time.Now().Add(-pruneOlderThan))
	if err != nil {
		return err
	}
	s.logger.Info("Cache pruned", "path", c.Path(), "removed", removed, "olderThan", pruneOlderThan)
	return printResponse(cmd, &CacheChangeCLI{Action: "pruned", Path: c.Path(), Removed: removed}, s.format)
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	s, c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	defer func() { _ = c.Close() }()

	removed, err := c.Clear(cmd.Context())
	if err != nil {
		return err
	}
	s.logger.Info("Cache cleared", "path", c.Path(), "removed", removed)
	return printResponse(cmd, &CacheChangeCLI{Action: "cleared", Path: c.Path(), Removed: removed}, s.format)
}

func printResponse(cmd *cobra.Command, resp interface{}, format OutputFormat) error {
	text, err := FormatResponse(resp, format)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
