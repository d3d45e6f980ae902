package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/zoonotes/internal/engine"
)

func newExtractCommand(a *app) *cobra.Command {
	var (
		observedAt string
		showStats  bool
	)
	cmd := &cobra.Command{
		Use:   "extract [transcript]",
		Short: "Extract entities and a draft record from a transcript",
		Long: `Extract runs the recognizers and the synthesis rules on one transcript
and prints the draft as JSON. Nothing is written to the database.

With no argument, or "-", the transcript is read from stdin.`,
		Example: `  zoonotes extract "Лев Борис ест мясо 5 кг. Вес 190 кг."
  echo "Слон ест сено 30 кг." | zoonotes extract`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readTranscript(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			at, err := parseObservedAt(observedAt)
			if err != nil {
				return err
			}

			eng, closer, err := a.buildEngine(nil)
			if err != nil {
				return err
			}
			defer closer.Close()

			res, err := eng.Process(cmd.Context(), engine.Input{Transcript: text, ObservedAt: at})
			if err != nil {
				return err
			}
			if showStats {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d entities in %s\n", len(res.Draft.Entities), res.ExtractionTime.Round(time.Microsecond))
				for _, name := range res.FailedExtractors() {
					fmt.Fprintf(cmd.ErrOrStderr(), "  extractor %s failed, its output was dropped\n", name)
				}
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&observedAt, "at", "", "Observation time (RFC 3339); defaults to now")
	cmd.Flags().BoolVar(&showStats, "stats", false, "Print entity count and timing to stderr")
	return cmd
}

func readTranscript(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", fmt.Errorf("empty transcript")
	}
	return text, nil
}

func parseObservedAt(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", time.DateOnly} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --at %q: use RFC 3339, \"YYYY-MM-DD HH:MM\" or YYYY-MM-DD", s)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
