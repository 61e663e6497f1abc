package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"listforge/internal/engine/cache"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or reset the managed scratch directories",
	}

	cmd.AddCommand(newCacheStatusCmd())
	cmd.AddCommand(newCachePurgeCmd())

	return cmd
}

func newCacheStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report size and group counts for each managed directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := cacheManagerFromConfig()
			if err != nil {
				return err
			}
			manager.LogStatus()
			return nil
		},
	}
}

func newCachePurgeCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every file in every managed directory",
		Long: `Delete every file in every managed scratch directory.

This also reclaims files orphaned by a previously interrupted run, which the
pipeline never cleans up on its own. Destructive; requires --confirm.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := cacheManagerFromConfig()
			if err != nil {
				return err
			}
			if err := manager.ForceCleanupAll(confirm); err != nil {
				return err
			}
			fmt.Println("cache directories purged")
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "actually perform the purge")
	return cmd
}

func cacheManagerFromConfig() (*cache.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return cache.NewManager(cache.Config{
		Dirs:             cfg.Cache.Dirs,
		RetentionCount:   cfg.Cache.RetentionCount,
		MaxCacheSizeMB:   cfg.Cache.MaxCacheSizeMB,
		CleanupOnSuccess: cfg.Cache.CleanupOnSuccess,
	})
}
