package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/zoonotes/internal/audio"
	"github.com/hurttlocker/zoonotes/internal/engine"
	"github.com/hurttlocker/zoonotes/internal/pipeline"
)

func newProcessCommand(a *app) *cobra.Command {
	var (
		observedAt string
		dryRun     bool
	)
	cmd := &cobra.Command{
		Use:   "process <file>...",
		Short: "Process recordings or transcript files and store the records",
		Long: `Process reads each file, extracts a draft and saves the animal,
observation, measurement and feeding rows.

Audio files (.wav, .mp3, ...) are transcribed from a sidecar text file:
either <file>.txt or the same name with a .txt extension. Any other file
is read as a plain-text transcript.`,
		Example: `  zoonotes process morning/lion.wav
  zoonotes process --dry-run notes.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseObservedAt(observedAt)
			if err != nil {
				return err
			}
			rt, err := a.buildServices(nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			var results []any
			for _, path := range args {
				res, err := processFile(cmd, rt.pipeline, path, at, dryRun)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				a.logger.Info("processed", "file", path, "entities", len(res.Draft.Entities))
				results = append(results, res)
			}
			if len(results) == 1 {
				return printJSON(cmd.OutOrStdout(), results[0])
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().StringVar(&observedAt, "at", "", "Observation time (RFC 3339); defaults to now")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Extract only, do not write to the database")
	return cmd
}

func processFile(cmd *cobra.Command, p *pipeline.Pipeline, path string, at time.Time, dryRun bool) (*pipeline.Processed, error) {
	ctx := cmd.Context()
	if audio.Accepted(path) {
		if dryRun {
			res, err := p.ProcessAudio(ctx, path, at)
			if err != nil {
				return nil, err
			}
			return &pipeline.Processed{Result: res}, nil
		}
		return p.RecordAudio(ctx, path, at)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	in := engine.Input{
		Transcript: strings.TrimSpace(string(b)),
		ObservedAt: at,
	}
	if dryRun {
		res, err := p.ProcessText(ctx, in)
		if err != nil {
			return nil, err
		}
		return &pipeline.Processed{Result: res}, nil
	}
	return p.RecordText(ctx, in)
}
