package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hexstrike/hexstrike/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or invalidate the daemon result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache hit/miss statistics",
	RunE:  runCacheStats,
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate TARGET",
	Short: "Drop every cached result for a target",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheInvalidate,
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	var stats cache.Stats
	if err := newAPIClient().get(cmd.Context(), "/api/v1/cache/stats", &stats); err != nil {
		return err
	}

	cmd.Println(titleStyle.Render("Cache"))
	cmd.Printf("%s %d\n", headStyle.Render("entries: "), stats.EntryCount)
	cmd.Printf("%s %d\n", headStyle.Render("hits:    "), stats.Hits)
	cmd.Printf("%s %d\n", headStyle.Render("misses:  "), stats.Misses)
	cmd.Printf("%s %.1f%%\n", headStyle.Render("hit rate:"), stats.HitRate*100)
	return nil
}

func runCacheInvalidate(cmd *cobra.Command, args []string) error {
	var resp struct {
		EntriesRemoved int `json:"entries_removed"`
	}
	body := map[string]string{"target": args[0]}
	if err := newAPIClient().post(cmd.Context(), "/api/v1/cache/invalidate", body, &resp); err != nil {
		return err
	}
	cmd.Println(okStyle.Render(fmt.Sprintf("removed %d entries for %s", resp.EntriesRemoved, args[0])))
	return nil
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&apiAddr, "addr", "127.0.0.1:8888", "daemon address")
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)
}
