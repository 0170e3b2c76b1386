package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"autoria-scraper/scraper/autoria"
	"autoria-scraper/services"
	"autoria-scraper/storage"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one crawl of the configured listings search",
	RunE:  runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewCarStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	stats, err := autoria.NewScraper(cfg, store, log).Run(ctx)
	if err != nil {
		return err
	}

	fmt.Println(services.RenderReport(services.BuildReport(stats)))
	return nil
}
