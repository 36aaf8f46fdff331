package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geonames-cli/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize a built store and its import runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if v, _ := cmd.Flags().GetString("db"); v != "" {
			cfg.Store.Path = v
		}
		limit, _ := cmd.Flags().GetInt("runs")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sum, err := st.Summary(ctx)
		if err != nil {
			return eris.Wrap(err, "stats")
		}

		fmt.Printf("places:       %d\n", sum.Places)
		fmt.Printf("roots:        %d\n", sum.Roots)
		fmt.Printf("names:        %d\n", sum.Names)
		fmt.Printf("orphan names: %d\n", sum.OrphanNames)

		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "stats")
		}
		if len(runs) > 0 {
			fmt.Println("\nrecent runs:")
			for _, r := range runs {
				fmt.Printf("  %s  %s  %s  places=%d names=%d conflicts=%d\n",
					r.StartedAt.Format("2006-01-02 15:04:05"), r.ID, r.Status,
					r.Stats.Places, r.Stats.Names, r.Stats.Conflicts())
			}
		}
		return nil
	},
}

// openStore opens the configured store backend.
func openStore(ctx context.Context) (store.Store, error) {
	dsn := cfg.Store.Path
	if cfg.Store.Driver == "postgres" {
		dsn = cfg.Store.DatabaseURL
	}
	st, err := store.Open(ctx, cfg.Store.Driver, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

func init() {
	statsCmd.Flags().String("db", "", "store path (sqlite driver)")
	statsCmd.Flags().Int("runs", 10, "number of recent runs to list")

	rootCmd.AddCommand(statsCmd)
}
