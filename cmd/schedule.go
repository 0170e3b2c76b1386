package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autoria-scraper/scraper/autoria"
	"autoria-scraper/services"
	"autoria-scraper/storage"
)

var scheduleRunNow bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the daily scrape and dump scheduler until interrupted",
	RunE:  runSchedule,
}

func init() {
	scheduleCmd.Flags().BoolVar(&scheduleRunNow, "now", false,
		"run a scrape immediately on start, regardless of the schedule")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, _ []string) error {
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

	scraper := autoria.NewScraper(cfg, store, log)

	scrapeJob := func(ctx context.Context) {
		stats, err := scraper.Run(ctx)
		if err != nil {
			log.Error("scrape failed", zap.Error(err))
			return
		}
		fmt.Println(services.RenderReport(services.BuildReport(stats)))
	}
	dumpJob := func(ctx context.Context) {
		path, err := storage.DumpSQL(ctx, cfg, cfg.DumpDir)
		if err != nil {
			log.Error("database dump failed", zap.Error(err))
			return
		}
		log.Info("database dump written", zap.String("path", path))
	}

	sched, err := services.NewScheduler(cfg, log, scrapeJob, dumpJob)
	if err != nil {
		return err
	}
	return sched.Run(ctx, scheduleRunNow)
}
