package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/zoonotes/internal/store"
)

func newReportCommand(a *app) *cobra.Command {
	var (
		date    string
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the daily report",
		Long:  `Report lists every observation, measurement and feeding recorded on one UTC day.`,
		Example: `  zoonotes report
  zoonotes report --date 2024-05-17 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now().UTC()
			if date != "" {
				d, err := time.Parse(time.DateOnly, date)
				if err != nil {
					return fmt.Errorf("invalid --date %q: use YYYY-MM-DD", date)
				}
				day = d
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			rep, err := st.DailyReport(cmd.Context(), day)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), rep)
			}
			printReport(cmd.OutOrStdout(), rep)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day to report (YYYY-MM-DD, UTC); defaults to today")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func printReport(w io.Writer, r *store.DailyReport) {
	fmt.Fprintf(w, "Report for %s\n", r.Date)
	fmt.Fprintf(w, "  observations: %d\n  measurements: %d\n  feedings:     %d\n",
		r.ObservationsCount, r.MeasurementsCount, r.FeedingsCount)

	if len(r.Observations) > 0 {
		fmt.Fprintln(w, "\nObservations")
		for _, o := range r.Observations {
			fmt.Fprintf(w, "  %s  %s (%s)  %s\n", o.Timestamp.Format("15:04"), o.AnimalName, o.AnimalSpecies, summarizeObservation(o))
		}
	}
	if len(r.Measurements) > 0 {
		fmt.Fprintln(w, "\nMeasurements")
		for _, m := range r.Measurements {
			fmt.Fprintf(w, "  %s  %s (%s)  weight %s  length %s  height %s  temperature %s\n",
				m.Timestamp.Format("15:04"), m.AnimalName, m.AnimalSpecies,
				fmtFloat(m.Weight), fmtFloat(m.Length), fmtFloat(m.Height), fmtFloat(m.Temperature))
		}
	}
	if len(r.Feedings) > 0 {
		fmt.Fprintln(w, "\nFeedings")
		for _, f := range r.Feedings {
			fmt.Fprintf(w, "  %s  %s (%s)  %s %s\n", f.Timestamp.Format("15:04"), f.AnimalName, f.AnimalSpecies, f.FoodType, fmtFloat(f.Quantity))
		}
	}
}
