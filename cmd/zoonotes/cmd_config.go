package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/zoonotes/internal/config"
	"github.com/hurttlocker/zoonotes/internal/entity"
	"github.com/hurttlocker/zoonotes/internal/store"
)

func newConfigCommand(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration and where each value came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), a.cfg)
			}
			return printConfig(cmd.OutOrStdout(), a.cfg)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.AddCommand(newEntitiesCommand(a))
	return cmd
}

func printConfig(w io.Writer, cfg config.ResolvedConfig) error {
	fmt.Fprintf(w, "config file: %s\n\n", cfg.ConfigPath)
	rows := []struct {
		key string
		v   config.ResolvedValue
	}{
		{"db_path", cfg.DBPath},
		{"lexicon_path", cfg.LexiconPath},
		{"upload_dir", cfg.UploadDir},
		{"log.level", cfg.LogLevel},
		{"log.format", cfg.LogFormat},
		{"log.file", cfg.LogFile},
		{"engine.body_marker_radius", cfg.BodyMarkerRadius},
		{"engine.feeding_join_distance", cfg.FeedingJoinDistance},
		{"engine.fuzzy_threshold", cfg.FuzzyThreshold},
		{"engine.disabled_kinds", cfg.DisabledKinds},
		{"annotator.model_path", cfg.AnnotatorModel},
		{"annotator.tokenizer_path", cfg.AnnotatorTokenizer},
		{"annotator.runtime_path", cfg.AnnotatorRuntime},
		{"annotator.labels", cfg.AnnotatorLabels},
		{"server.addr", cfg.ServerAddr},
		{"jobs.workers", cfg.JobWorkers},
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tVALUE\tSOURCE")
	for _, r := range rows {
		value := r.v.Value
		if value == "" {
			value = "-"
		}
		source := string(r.v.Source)
		if r.v.From != "" {
			source += " (" + r.v.From + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.key, value, source)
	}
	return tw.Flush()
}

func newEntitiesCommand(a *app) *cobra.Command {
	var enable, disable string
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "List or toggle which entity types populate draft fields",
		Long: `Entities shows the stored per-type toggles. Disabled types are still
recognized and listed in a draft's entities, but no field is filled from them.`,
		Example: `  zoonotes config entities
  zoonotes config entities --disable food
  zoonotes config entities --enable food`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if enable != "" && disable != "" {
				return errors.New("--enable and --disable are mutually exclusive")
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			ctx := cmd.Context()

			switch {
			case enable != "":
				err = toggleEntity(cmd, st, enable, true)
			case disable != "":
				err = toggleEntity(cmd, st, disable, false)
			}
			if err != nil {
				return err
			}

			configs, err := st.ListEntityConfigs(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tACTIVE\tPRIORITY")
			for _, c := range configs {
				fmt.Fprintf(tw, "%s\t%t\t%d\n", c.EntityType, c.IsActive, c.Priority)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&enable, "enable", "", "Entity type to enable")
	cmd.Flags().StringVar(&disable, "disable", "", "Entity type to disable")
	return cmd
}

func toggleEntity(cmd *cobra.Command, st store.Store, name string, active bool) error {
	kind, err := entity.ParseKind(name)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	configs, err := st.ListEntityConfigs(ctx)
	if err != nil {
		return err
	}
	priority := 1
	for _, c := range configs {
		if c.EntityType == kind {
			priority = c.Priority
		}
	}
	_, err = st.UpsertEntityConfig(ctx, store.EntityConfig{
		EntityType: kind,
		IsActive:   active,
		Priority:   priority,
	})
	return err
}
