// Package cmd implements the autoria-scraper command-line interface.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autoria-scraper/config"
	"autoria-scraper/utils"
)

var rootCmd = &cobra.Command{
	Use:   "autoria-scraper",
	Short: "Crawl auto.ria.com used-car listings into PostgreSQL",
	Long: `autoria-scraper walks the auto.ria.com search results page by page,
opens every listing in a headless browser to pull out the car's details
(including the click-to-reveal phone number) and stores new listings in
PostgreSQL. Listings already stored are skipped, never updated.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// setup loads configuration from the environment (plus an optional .env
// file) and builds the process logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := utils.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
