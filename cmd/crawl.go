package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pmorrell/setlist-harvester/internal/listing"
)

// newCrawlCmd creates the 'crawl' subcommand: the initial listing-page
// crawl that discovers years and event URLs.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Scrapes the event listing pages into the input dataset",
		Long: `Fetches the listing site's year index, scrapes the events table for
every year, and writes the year-keyed JSON dataset consumed by 'enrich'.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	crawler := listing.New(listing.Config{
		BaseURL:   a.cfg.Listing.BaseURL,
		Delay:     a.cfg.Listing.Delay,
		UserAgent: a.cfg.Listing.UserAgent,
		Timeout:   a.cfg.RequestTimeout(),
	}, a.logger)

	dataset, err := crawler.Crawl(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing crawl: %w", err)
	}
	if err := dataset.Save(a.cfg.InputPath); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}

	a.logger.Info("listing crawl finished",
		zap.String("path", a.cfg.InputPath),
		zap.Int("events", dataset.Len()),
	)
	return nil
}
