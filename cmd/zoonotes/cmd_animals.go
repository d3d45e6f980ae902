package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/zoonotes/internal/store"
)

func newAnimalsCommand(a *app) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "animals [id]",
		Short: "List animals, or show one animal and its observation log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				animals, err := st.ListAnimals(ctx)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(out, animals)
				}
				if len(animals) == 0 {
					fmt.Fprintln(out, "No animals recorded yet.")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tSPECIES\tAGE\tENCLOSURE")
				for _, an := range animals {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", an.ID, an.Name, an.Species, fmtFloat(an.Age), deref(an.Enclosure))
				}
				return tw.Flush()
			}

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid animal id %q", args[0])
			}
			detail, err := st.GetAnimal(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("animal %d not found", id)
			}
			if err != nil {
				return err
			}
			entries, err := st.AnimalLog(ctx, id, store.ListOpts{Limit: limit})
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(out, map[string]any{"animal": detail, "log": entries})
			}
			printAnimal(out, detail, entries)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", store.DefaultListLimit, "Log entries to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func printAnimal(w io.Writer, d *store.AnimalDetail, entries []*store.Observation) {
	fmt.Fprintf(w, "#%d %s (%s)\n", d.ID, d.Name, d.Species)
	if d.Age != nil {
		fmt.Fprintf(w, "  age:       %s\n", fmtFloat(d.Age))
	}
	if d.Enclosure != nil {
		fmt.Fprintf(w, "  enclosure: %s\n", *d.Enclosure)
	}
	if m := d.LatestMeasurement; m != nil {
		fmt.Fprintf(w, "  latest measurement %s: weight %s, length %s, height %s, temperature %s\n",
			m.Timestamp.Format("2006-01-02 15:04"), fmtFloat(m.Weight), fmtFloat(m.Length), fmtFloat(m.Height), fmtFloat(m.Temperature))
	}
	if f := d.LatestFeeding; f != nil {
		fmt.Fprintf(w, "  latest feeding %s: %s %s\n", f.Timestamp.Format("2006-01-02 15:04"), f.FoodType, fmtFloat(f.Quantity))
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "\nNo observations.")
		return
	}
	fmt.Fprintln(w)
	for _, o := range entries {
		fmt.Fprintf(w, "%s  %s\n", o.Timestamp.Format("2006-01-02 15:04"), summarizeObservation(o))
	}
}

func summarizeObservation(o *store.Observation) string {
	var parts []string
	if o.Behavior != nil {
		parts = append(parts, "behavior: "+*o.Behavior)
	}
	if o.HealthStatus != nil {
		parts = append(parts, "health: "+*o.HealthStatus)
	}
	if len(parts) == 0 {
		return truncateLine(o.Notes, 80)
	}
	return strings.Join(parts, "; ")
}

func fmtFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func truncateLine(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}
