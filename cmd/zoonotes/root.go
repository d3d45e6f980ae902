package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/zoonotes/internal/config"
	"github.com/hurttlocker/zoonotes/internal/logging"
)

var version = "0.1.0-dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	dbPath     string
	lexicon    string
	logLevel   string
	addr       string
}

// app carries state resolved once in PersistentPreRunE.
type app struct {
	flags     globalFlags
	cfg       config.ResolvedConfig
	logger    *slog.Logger
	closeLogs func() error
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "zoonotes",
		Short: "zoonotes - structured records from zoo observation transcripts",
		Long: `zoonotes extracts animals, measurements, behavior, health and feeding
from Russian-language keeper dictations and stores them as observation
records.

Transcripts come from text, stdin, or a sidecar .txt next to a recording.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closeLogs != nil {
				return a.closeLogs()
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "Config file (default ~/.zoonotes/config.yaml)")
	pf.StringVar(&a.flags.dbPath, "db", "", "SQLite database path")
	pf.StringVar(&a.flags.lexicon, "lexicon", "", "YAML lexicon overriding the built-in word lists")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(newExtractCommand(a))
	cmd.AddCommand(newProcessCommand(a))
	cmd.AddCommand(newServeCommand(a))
	cmd.AddCommand(newMCPCommand(a))
	cmd.AddCommand(newAnimalsCommand(a))
	cmd.AddCommand(newReportCommand(a))
	cmd.AddCommand(newConfigCommand(a))
	cmd.AddCommand(newStatsCommand(a))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func (a *app) init() error {
	cfg, err := config.ResolveConfig(config.ResolveOptions{
		ConfigPath:  a.flags.configPath,
		CLIDBPath:   a.flags.dbPath,
		CLILexicon:  a.flags.lexicon,
		CLILogLevel: a.flags.logLevel,
		CLIAddr:     a.flags.addr,
	})
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	closeLogs, err := logging.Setup(logging.Config{
		Level:  cfg.LogLevel.Value,
		Format: cfg.LogFormat.Value,
		File:   cfg.LogFile.Value,
	})
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	a.logger = slog.Default()
	a.closeLogs = closeLogs
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "zoonotes %s\n", version)
			return nil
		},
	}
}

func execute() error {
	return newRootCommand().Execute()
}
