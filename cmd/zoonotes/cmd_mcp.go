package main

import (
	"github.com/spf13/cobra"

	"github.com/hurttlocker/zoonotes/internal/mcp"
)

func newMCPCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools over stdio",
		Long: `MCP starts a Model Context Protocol server on stdin/stdout exposing
zoo_extract, zoo_record, zoo_animals, zoo_animal_log and zoo_daily_report,
plus the zoo://stats and zoo://entities/config resources.

Logs go to stderr or the configured log file; stdout carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.buildServices(nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			s := mcp.NewServer(mcp.ServerConfig{
				Pipeline: rt.pipeline,
				Store:    rt.store,
				Version:  version,
			})
			return mcp.ServeStdio(s)
		},
	}
}
