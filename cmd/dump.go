package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autoria-scraper/storage"
)

var dumpFormat string

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Export the cars database to a timestamped file",
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().StringVar(&dumpFormat, "format", "sql", "dump format: sql (pg_dump) or csv")
	rootCmd.AddCommand(dumpCmd)
}

func runDump(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()

	var path string
	switch dumpFormat {
	case "sql":
		path, err = storage.DumpSQL(ctx, cfg, cfg.DumpDir)
	case "csv":
		store, storeErr := storage.NewCarStore(ctx, cfg)
		if storeErr != nil {
			return storeErr
		}
		defer store.Close()

		cars, carsErr := store.AllCars(ctx)
		if carsErr != nil {
			return carsErr
		}
		path, err = storage.DumpCSV(cars, cfg.DumpDir)
	default:
		return fmt.Errorf("unknown dump format %q (want sql or csv)", dumpFormat)
	}
	if err != nil {
		return err
	}

	log.Info("dump written", zap.String("path", path), zap.String("format", dumpFormat))
	fmt.Println(path)
	return nil
}
