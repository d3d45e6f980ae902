// Package api serves the zoonotes HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hurttlocker/zoonotes/internal/jobs"
	"github.com/hurttlocker/zoonotes/internal/pipeline"
	"github.com/hurttlocker/zoonotes/internal/store"
	"github.com/hurttlocker/zoonotes/internal/telemetry"
)

// DefaultMaxUploadBytes caps multipart uploads.
const DefaultMaxUploadBytes = 64 << 20

// Config holds everything the server needs.
type Config struct {
	Pipeline       *pipeline.Pipeline
	Store          store.Store
	Runner         *jobs.Runner
	UploadDir      string
	MaxUploadBytes int64

	Logger         *slog.Logger
	Metrics        *telemetry.Metrics
	MetricsHandler http.Handler // served at /metrics when set
}

// Server holds the routes.
type Server struct {
	cfg    Config
	router chi.Router
}

// New builds the router.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	s := &Server{cfg: cfg}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.Middleware(s.cfg.Metrics, routePattern))
	r.Use(cors)

	r.Get("/", s.handleRoot)
	if s.cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.cfg.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/extract", s.handleExtract)
		r.Post("/observations", s.handleSubmitTranscript)
		r.Post("/audio/process", s.handleSubmitAudio)
		r.Get("/audio/status/{id}", s.handleJobStatus)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleJobStatus)
		r.Get("/transcriptions", s.handleTranscriptions)
		r.Get("/animals", s.handleListAnimals)
		r.Get("/animals/{id}", s.handleGetAnimal)
		r.Get("/animals/{id}/log", s.handleAnimalLog)
		r.Get("/reports/daily", s.handleDailyReport)
		r.Get("/entities/config", s.handleListEntityConfigs)
		r.Post("/entities/config", s.handleUpsertEntityConfig)
		r.Get("/stats", s.handleStats)
	})
	return r
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Serve listens on addr until ctx is canceled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
