package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geonames-cli/internal/fetch"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the GeoNames dump archives",
	Long: `Downloads allCountries.zip and alternateNamesV2.zip from a GeoNames
mirror into the configured data directory. Archives already downloaded are
skipped when the server reports them unchanged.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := zap.L().With(zap.String("command", "fetch"))

		if v, _ := cmd.Flags().GetString("out"); v != "" {
			cfg.Fetch.OutDir = v
		}
		namesOnly, _ := cmd.Flags().GetBool("names-only")
		placesOnly, _ := cmd.Flags().GetBool("places-only")
		progress, _ := cmd.Flags().GetBool("progress")

		archives := []string{"allCountries.zip", "alternateNamesV2.zip"}
		if placesOnly {
			archives = archives[:1]
		} else if namesOnly {
			archives = archives[1:]
		}

		client := fetch.NewClient(fetch.Options{
			BaseURL:  cfg.Fetch.BaseURL,
			Progress: progress,
		})

		for _, name := range archives {
			log.Info("fetching archive", zap.String("name", name))
			path, fetched, err := client.Archive(ctx, name, cfg.Fetch.OutDir)
			if err != nil {
				return eris.Wrapf(err, "fetch %s", name)
			}
			if fetched {
				fmt.Printf("downloaded %s\n", path)
			} else {
				fmt.Printf("up to date  %s\n", path)
			}
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().String("out", "", "directory to store archives")
	fetchCmd.Flags().Bool("places-only", false, "fetch only allCountries.zip")
	fetchCmd.Flags().Bool("names-only", false, "fetch only alternateNamesV2.zip")
	fetchCmd.Flags().Bool("progress", false, "show download progress")

	rootCmd.AddCommand(fetchCmd)
}
