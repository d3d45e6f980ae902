package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCommand(a *app) *cobra.Command {
	var (
		vacuum  bool
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database row counts and size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			ctx := cmd.Context()

			if vacuum {
				if err := st.Vacuum(ctx); err != nil {
					return fmt.Errorf("vacuum: %w", err)
				}
				a.logger.Info("database vacuumed", "db", a.cfg.DBPath.Value)
			}

			stats, err := st.Stats(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "database:     %s\n", a.cfg.DBPath.Value)
			fmt.Fprintf(out, "size:         %d bytes\n", stats.DBSizeBytes)
			fmt.Fprintf(out, "animals:      %d\n", stats.AnimalCount)
			fmt.Fprintf(out, "observations: %d\n", stats.ObservationCount)
			fmt.Fprintf(out, "measurements: %d\n", stats.MeasurementCount)
			fmt.Fprintf(out, "feedings:     %d\n", stats.FeedingCount)
			return nil
		},
	}
	cmd.Flags().BoolVar(&vacuum, "vacuum", false, "Run VACUUM before reporting")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
