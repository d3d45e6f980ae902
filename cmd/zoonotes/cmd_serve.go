package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/zoonotes/internal/api"
	"github.com/hurttlocker/zoonotes/internal/jobs"
	"github.com/hurttlocker/zoonotes/internal/telemetry"
)

const (
	shutdownTimeout = 15 * time.Second
	jobRetention    = time.Hour
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve exposes extraction, background processing of transcripts and
recordings, and the animal, log and daily report queries over HTTP.
Prometheus metrics are served at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&a.flags.addr, "addr", "", "Listen address (default :8080)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	provider, err := telemetry.InitProvider()
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}
	defer provider.Shutdown(context.Background())

	rt, err := a.buildServices(provider.Metrics)
	if err != nil {
		return err
	}
	defer rt.Close()

	workers, err := a.cfg.JobWorkers.Int(jobs.DefaultWorkers)
	if err != nil {
		return fmt.Errorf("job_workers: %w", err)
	}
	uploadDir := a.cfg.UploadDir.Value
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return fmt.Errorf("creating upload dir: %w", err)
	}
	uploadDir, _ = filepath.Abs(uploadDir)

	registry := jobs.NewRegistry()
	runner := jobs.NewRunner(registry, jobs.RunnerConfig{
		Workers: workers,
		Logger:  a.logger,
		Metrics: provider.Metrics,
	})
	runner.Start(ctx)
	go a.pruneJobs(ctx, registry)

	srv := api.New(api.Config{
		Pipeline:       rt.pipeline,
		Store:          rt.store,
		Runner:         runner,
		UploadDir:      uploadDir,
		Logger:         a.logger,
		Metrics:        provider.Metrics,
		MetricsHandler: provider.Handler(),
	})

	a.logger.Info("zoonotes serving",
		"version", version,
		"db", a.cfg.DBPath.Value,
		"uploads", uploadDir,
		"workers", workers,
	)
	serveErr := api.Serve(ctx, a.cfg.ServerAddr.Value, srv.Handler(), a.logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := runner.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("job runner did not drain", "error", err)
	}
	return serveErr
}

// pruneJobs drops finished jobs once they are older than jobRetention.
func (a *app) pruneJobs(ctx context.Context, reg *jobs.Registry) {
	ticker := time.NewTicker(jobRetention / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := reg.Prune(now.Add(-jobRetention)); n > 0 {
				a.logger.Debug("pruned finished jobs", "count", n)
			}
		}
	}
}
