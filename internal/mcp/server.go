// Package mcp provides a Model Context Protocol server for zoonotes.
//
// It exposes transcript extraction, observation recording and the animal
// registry as MCP tools, and store statistics and entity toggles as MCP
// resources. Served over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/zoonotes/internal/engine"
	"github.com/hurttlocker/zoonotes/internal/pipeline"
	"github.com/hurttlocker/zoonotes/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Pipeline *pipeline.Pipeline
	Store    store.Store
	Version  string // version string for MCP server info
}

// dbMu serializes tool calls that write to the database. mcp-go dispatches
// handlers concurrently and SQLite allows a single writer.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all zoonotes tools and resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"zoonotes",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerExtractTool(s, cfg.Pipeline)
	registerRecordTool(s, cfg.Pipeline)
	registerAnimalsTool(s, cfg.Store)
	registerAnimalLogTool(s, cfg.Store)
	registerDailyReportTool(s, cfg.Store)

	registerStatsResource(s, cfg.Store)
	registerEntityConfigResource(s, cfg.Store)

	return s
}

// ServeStdio runs the server on stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// --- Tools ---

func registerExtractTool(s *server.MCPServer, p *pipeline.Pipeline) {
	tool := mcp.NewTool("zoo_extract",
		mcp.WithDescription("Extract entities from a zoo observation transcript and return the structured draft and the records it would produce. Nothing is saved."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("transcript",
			mcp.Required(),
			mcp.Description("Observation transcript text (Russian)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		transcript, err := req.RequireString("transcript")
		if err != nil {
			return mcp.NewToolResultError("transcript is required"), nil
		}

		res, err := p.ProcessText(ctx, engine.Input{Transcript: transcript})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("extraction error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(res, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerRecordTool(s *server.MCPServer, p *pipeline.Pipeline) {
	tool := mcp.NewTool("zoo_record",
		mcp.WithDescription("Extract a zoo observation transcript and save the animal, observation, measurement and feeding records."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("transcript",
			mcp.Required(),
			mcp.Description("Observation transcript text (Russian)"),
		),
		mcp.WithString("audio_file",
			mcp.Description("Name of the source recording, if any"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		transcript, err := req.RequireString("transcript")
		if err != nil {
			return mcp.NewToolResultError("transcript is required"), nil
		}
		if strings.TrimSpace(transcript) == "" {
			return mcp.NewToolResultError("transcript cannot be empty"), nil
		}

		in := engine.Input{Transcript: transcript, ObservedAt: time.Now().UTC()}
		if f, err := req.RequireString("audio_file"); err == nil && f != "" {
			in.AudioFile = f
		}

		out, err := p.RecordText(ctx, in)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("record error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerAnimalsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("zoo_animals",
		mcp.WithDescription("List every known animal with its species and latest recorded age."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		animals, err := st.ListAnimals(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing animals: %v", err)), nil
		}
		if len(animals) == 0 {
			return mcp.NewToolResultText("No animals recorded yet."), nil
		}

		data, _ := json.MarshalIndent(animals, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerAnimalLogTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("zoo_animal_log",
		mcp.WithDescription("Show an animal's observations, newest first."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("animal_id",
			mcp.Required(),
			mcp.Description("Animal id from zoo_animals"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of observations (default: 10, max: 100)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		idVal, err := req.RequireFloat("animal_id")
		if err != nil || idVal <= 0 {
			return mcp.NewToolResultError("animal_id is required"), nil
		}

		opts := store.ListOpts{}
		if limitVal, err := req.RequireFloat("limit"); err == nil {
			opts.Limit = int(limitVal)
		}

		entries, err := st.AnimalLog(ctx, int64(idVal), opts)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return mcp.NewToolResultError(fmt.Sprintf("animal #%d not found", int64(idVal))), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("reading log: %v", err)), nil
		}

		data, _ := json.MarshalIndent(entries, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerDailyReportTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("zoo_daily_report",
		mcp.WithDescription("Summarize observations, measurements and feedings recorded on one day (UTC)."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("date",
			mcp.Description("Day as YYYY-MM-DD (default: today)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		day := time.Now().UTC()
		if v, err := req.RequireString("date"); err == nil && v != "" {
			parsed, err := time.Parse(time.DateOnly, v)
			if err != nil {
				return mcp.NewToolResultError("invalid date format, use YYYY-MM-DD"), nil
			}
			day = parsed
		}

		rep, err := st.DailyReport(ctx, day)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("building report: %v", err)), nil
		}

		data, _ := json.MarshalIndent(rep, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}
