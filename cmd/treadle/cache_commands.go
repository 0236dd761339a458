package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"treadle/internal/cache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the artifact cache",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheEvictCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))

	return cacheCmd
}

// withStore opens the cache for a subcommand, reporting a disabled cache as
// a friendly message instead of an error.
func withStore(ctx *commandContext, cmd *cobra.Command, fn func(*cache.Store) error) error {
	store, err := ctx.openStore()
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	if store == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Artifact cache is disabled in configuration")
		return nil
	}
	defer store.Close()
	return fn(store)
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List cached artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, cmd, func(store *cache.Store) error {
				entries, err := store.Entries(cmd.Context())
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Cache is empty")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{
						entry.Key.StageID,
						entry.Key.String(),
						entry.ArtifactRef,
						entry.CreatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Stage", "Key", "Artifact", "Created"},
					rows,
					nil,
				))
				return nil
			})
		},
	}
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, cmd, func(store *cache.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Entries: %d\n", stats.Entries)
				for stageID, count := range stats.EntriesByStage {
					fmt.Fprintf(out, "  %s: %d\n", stageID, count)
				}
				fmt.Fprintf(out, "Disk:    %s free of %s\n",
					humanize.IBytes(stats.FreeBytes), humanize.IBytes(stats.TotalFSBytes))
				return nil
			})
		},
	}
}

func newCacheEvictCommand(ctx *commandContext) *cobra.Command {
	var stageID string

	cmd := &cobra.Command{
		Use:   "evict",
		Short: "Evict all cached artifacts for a stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if stageID == "" {
				return fmt.Errorf("--stage is required")
			}
			return withStore(ctx, cmd, func(store *cache.Store) error {
				evicted, err := store.EvictStage(cmd.Context(), stageID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Evicted %d entries for stage %s\n", evicted, stageID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&stageID, "stage", "", "Stage whose entries to evict")
	return cmd
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Evict entries older than the configured maximum age",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Cache.MaxAgeHours <= 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "cache.max_age_hours is not set; nothing to prune")
				return nil
			}
			return withStore(ctx, cmd, func(store *cache.Store) error {
				maxAge := time.Duration(cfg.Cache.MaxAgeHours) * time.Hour
				evicted, err := store.EvictExpired(cmd.Context(), maxAge)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Evicted %d entries older than %s\n", evicted, maxAge)
				return nil
			})
		},
	}
}
