package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geonames-cli/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the GeoNames dumps and build the hierarchy",
	Long: `Streams allCountries and alternateNamesV2 (zip archives or extracted
text files), resolves every record's administrative parent, and writes the
places and names tables as a complete snapshot.

Data-quality problems (malformed rows, duplicate admin definers, missing
parents, orphan names) never abort the run; they are counted and reported
in the final summary.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := zap.L().With(zap.String("command", "import"))

		// Flags override config values.
		if v, _ := cmd.Flags().GetString("places"); v != "" {
			cfg.Import.PlacesPath = v
		}
		if v, _ := cmd.Flags().GetString("names"); v != "" {
			cfg.Import.NamesPath = v
		}
		if v, _ := cmd.Flags().GetString("db"); v != "" {
			cfg.Store.Path = v
		}
		if v, _ := cmd.Flags().GetInt("batch-size"); v > 0 {
			cfg.Import.BatchSize = v
		}
		if v, _ := cmd.Flags().GetBool("skip-names"); v {
			cfg.Import.SkipNames = true
		}
		if v, _ := cmd.Flags().GetBool("progress"); v {
			cfg.Import.Progress = true
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		log.Info("starting import",
			zap.String("places", cfg.Import.PlacesPath),
			zap.String("names", cfg.Import.NamesPath),
			zap.String("driver", cfg.Store.Driver),
			zap.Int("batch_size", cfg.Import.BatchSize),
			zap.Bool("skip_names", cfg.Import.SkipNames),
		)

		stats, err := importer.New(cfg.Import, st).Run(ctx)
		if err != nil {
			return eris.Wrap(err, "import")
		}

		fmt.Printf("Import complete: %d places, %d names, %d conflicts, %d orphan names\n",
			stats.Places, stats.Names, stats.Conflicts(), stats.OrphanNames)
		return nil
	},
}

func init() {
	importCmd.Flags().String("places", "", "path to allCountries.zip (or extracted .txt)")
	importCmd.Flags().String("names", "", "path to alternateNamesV2.zip (or extracted .txt)")
	importCmd.Flags().String("db", "", "output store path (sqlite driver)")
	importCmd.Flags().Int("batch-size", 0, "rows per write transaction")
	importCmd.Flags().Bool("skip-names", false, "skip the alternate names feed")
	importCmd.Flags().Bool("progress", false, "show progress bars")

	rootCmd.AddCommand(importCmd)
}
