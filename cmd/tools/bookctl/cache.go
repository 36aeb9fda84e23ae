// cmd/tools/bookctl/cache.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"book-availability/internal/cache"
	"book-availability/internal/common/database"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Maintain the Redis result cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every cache entry under a key prefix",
	Long: `Purge scans Redis for keys under the prefix and deletes them in batches.
Use --prefix search: to drop cached search results, or book: for book records.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix, _ := cmd.Flags().GetString("prefix")
		if prefix == "" {
			return fmt.Errorf("--prefix is required")
		}
		c, closeFn, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		n := c.DeleteByPrefix(cmd.Context(), prefix)
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d keys under %q\n", n, prefix)
		return nil
	},
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a single cache entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")
		if key == "" {
			return fmt.Errorf("--key is required")
		}
		c, closeFn, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		c.Delete(cmd.Context(), key)
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", key)
		return nil
	},
}

func init() {
	cachePurgeCmd.Flags().String("prefix", "", "key prefix, e.g. search: or book:")
	cacheDeleteCmd.Flags().String("key", "", "exact cache key, e.g. libraries")

	cacheCmd.AddCommand(cachePurgeCmd, cacheDeleteCmd)
	rootCmd.AddCommand(cacheCmd)
}

func openCache(cmd *cobra.Command) (*cache.Cache, func(), error) {
	rc := database.NewRedis(cfg.Database.Redis)
	if err := rc.Ping(cmd.Context()); err != nil {
		_ = rc.Close()
		return nil, nil, fmt.Errorf("redis unavailable: %w", err)
	}
	return cache.New(rc.Client, cache.TTLs{}, log), func() { _ = rc.Close() }, nil
}
