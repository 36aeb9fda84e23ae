// cmd/tools/bookctl/search.go
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	el "book-availability/internal/workers/scraping/education-lib"
	su "book-availability/internal/workers/scraping/songpa-unified"
	ah "book-availability/internal/workers/search/aggregate-holdings"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run an aggregated search across both catalogs",
	Long: `Search queries both catalogs concurrently and prints the merged result,
with holdings ordered the way the API returns them. The cache and the rate
limiter are bypassed.`,
	RunE: runSearch,
}

func init() {
	addQueryFlags(searchCmd)

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	q, err := queryFromFlags(cmd)
	if err != nil {
		return err
	}
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	fetcher := newFetcher()
	var primary, secondary ah.Source = su.NewHandler(su.LoadConfig(cfg), fetcher, reg, log),
		el.NewHandler(el.LoadConfig(cfg), fetcher, reg, log)
	if !cfg.Sources.SongpaUnified.Enabled {
		primary = ah.Disabled(su.Source)
	}
	if !cfg.Sources.Education.Enabled {
		secondary = ah.Disabled(el.Source)
	}

	res, err := ah.NewHandler(ah.LoadConfig(cfg), primary, secondary, log).Execute(cmd.Context(), q)
	if errors.Is(err, ah.ErrNotFound) {
		fmt.Fprintln(os.Stderr, "no catalog matched the query")
		return err
	}
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}
