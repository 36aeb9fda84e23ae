// cmd/tools/bookctl/main.go

// Command bookctl runs the catalog scrapers, the aggregator, the branch
// registry and the Redis cache from a terminal, without the HTTP service.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"book-availability/internal/common/config"
	bookhttp "book-availability/internal/common/http"
	"book-availability/internal/common/logger"
	"book-availability/pkg/registry"
)

var (
	cfg *config.Config
	log logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bookctl",
	Short: "Operate the book availability engine from the command line",
	Long: `bookctl exposes the pieces behind the search API as subcommands: scrape a
single catalog, run a full aggregated search, inspect the branch registry and
maintain the Redis cache. It reads the same configuration as the service.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		level, _ := cmd.Flags().GetString("log-level")

		var err error
		if path != "" {
			cfg, err = config.LoadFromFile(path)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return err
		}
		if level == "" {
			level = cfg.Logging.Level
		}
		log = logger.NewStructured(level, "console")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
}

func newFetcher() *bookhttp.Fetcher {
	return bookhttp.NewFetcher(bookhttp.FetcherConfig{
		Timeout:     config.GetDuration(cfg.Fetch.Timeout),
		MaxAttempts: cfg.Fetch.MaxAttempts,
		BackoffUnit: config.GetDuration(cfg.Fetch.BackoffUnit),
		UserAgent:   cfg.Fetch.UserAgent,
	}, log)
}

func loadRegistry() (*registry.Registry, error) {
	if cfg.Registry.Path == "" {
		return registry.Default(), nil
	}
	return registry.LoadRegistry(cfg.Registry.Path)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
