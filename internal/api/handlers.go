package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hurttlocker/zoonotes/internal/audio"
	"github.com/hurttlocker/zoonotes/internal/engine"
	"github.com/hurttlocker/zoonotes/internal/entity"
	"github.com/hurttlocker/zoonotes/internal/jobs"
	"github.com/hurttlocker/zoonotes/internal/store"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Zoo Assistant API is running",
		"status":  "ok",
	})
}

// transcriptRequest is the JSON body of /api/extract and /api/observations.
type transcriptRequest struct {
	Transcript    string     `json:"transcript"`
	AudioFile     string     `json:"audio_file,omitempty"`
	AudioDuration float64    `json:"audio_duration,omitempty"`
	ObservedAt    *time.Time `json:"observed_at,omitempty"`
}

func (t transcriptRequest) input() engine.Input {
	in := engine.Input{
		Transcript:           t.Transcript,
		AudioFile:            t.AudioFile,
		AudioDurationSeconds: t.AudioDuration,
	}
	if t.ObservedAt != nil {
		in.ObservedAt = *t.ObservedAt
	}
	return in
}

func decodeTranscript(w http.ResponseWriter, r *http.Request) (transcriptRequest, bool) {
	var req transcriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	return req, true
}

// handleExtract returns the draft for a transcript without persisting it.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTranscript(w, r)
	if !ok {
		return
	}
	res, err := s.cfg.Pipeline.ProcessText(r.Context(), req.input())
	if err != nil {
		s.writeProcessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleSubmitTranscript queues a transcript for processing and storage.
func (s *Server) handleSubmitTranscript(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTranscript(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		writeError(w, http.StatusBadRequest, "transcript is required")
		return
	}
	in := req.input()
	if in.ObservedAt.IsZero() {
		in.ObservedAt = time.Now().UTC()
	}

	job, err := s.cfg.Runner.Submit(r.Context(), req.AudioFile, func(ctx context.Context) (any, error) {
		return s.cfg.Pipeline.RecordText(ctx, in)
	})
	if err != nil {
		s.writeSubmitError(w, job, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// handleSubmitAudio stores an uploaded recording and queues it. An optional
// "transcript" form field is saved as the recording's sidecar transcript.
func (s *Server) handleSubmitAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !audio.Accepted(name) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported audio file %q", name))
		return
	}

	path, err := s.saveUpload(name, file)
	if err != nil {
		s.cfg.Logger.Error("saving upload", "file", name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if transcript := strings.TrimSpace(r.FormValue("transcript")); transcript != "" {
		if err := os.WriteFile(path+".txt", []byte(transcript), 0o644); err != nil {
			s.cfg.Logger.Error("saving transcript", "file", name, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to store transcript")
			return
		}
	}

	observedAt := time.Now().UTC()
	job, err := s.cfg.Runner.Submit(r.Context(), name, func(ctx context.Context) (any, error) {
		return s.cfg.Pipeline.RecordAudio(ctx, path, observedAt)
	})
	if err != nil {
		s.writeSubmitError(w, job, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// saveUpload writes the upload under a unique prefix so concurrent uploads
// of the same name never collide.
func (s *Server) saveUpload(name string, src io.Reader) (string, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.cfg.UploadDir, uuid.NewString()[:8]+"_"+name)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	return path, dst.Close()
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.cfg.Runner.Registry().Get(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "Job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Runner.Registry().List())
}

func (s *Server) handleTranscriptions(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOpts(w, r)
	if !ok {
		return
	}
	obs, err := s.cfg.Store.ListObservations(r.Context(), opts)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(obs))
}

func (s *Server) handleListAnimals(w http.ResponseWriter, r *http.Request) {
	animals, err := s.cfg.Store.ListAnimals(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(animals))
}

func (s *Server) handleGetAnimal(w http.ResponseWriter, r *http.Request) {
	id, ok := animalID(w, r)
	if !ok {
		return
	}
	detail, err := s.cfg.Store.GetAnimal(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleAnimalLog(w http.ResponseWriter, r *http.Request) {
	id, ok := animalID(w, r)
	if !ok {
		return
	}
	opts, ok := listOpts(w, r)
	if !ok {
		return
	}
	entries, err := s.cfg.Store.AnimalLog(r.Context(), id, opts)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(entries))
}

func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := time.Parse(time.DateOnly, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format. Use YYYY-MM-DD")
			return
		}
		day = parsed
	}
	rep, err := s.cfg.Store.DailyReport(r.Context(), day)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleListEntityConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.cfg.Store.ListEntityConfigs(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(configs))
}

func (s *Server) handleUpsertEntityConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EntityType string `json:"entity_type"`
		IsActive   *bool  `json:"is_active"`
		Priority   int    `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IsActive == nil {
		writeError(w, http.StatusBadRequest, "is_active is required")
		return
	}
	if req.Priority == 0 {
		req.Priority = 1
	}
	c, err := s.cfg.Store.UpsertEntityConfig(r.Context(), store.EntityConfig{
		EntityType: entity.Kind(req.EntityType),
		IsActive:   *req.IsActive,
		Priority:   req.Priority,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cfg.Store.Stats(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) writeProcessError(w http.ResponseWriter, err error) {
	if errors.Is(err, engine.ErrMalformedInput) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.cfg.Logger.Error("processing transcript", "error", err)
	writeError(w, http.StatusInternalServerError, "processing failed")
}

// writeSubmitError reports a rejected submission. A job that was registered
// before being rejected is returned as is so its ID stays reachable.
func (s *Server) writeSubmitError(w http.ResponseWriter, job jobs.Job, err error) {
	switch {
	case errors.Is(err, jobs.ErrQueueFull) && job.ID != "":
		writeJSON(w, http.StatusServiceUnavailable, job)
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrRunnerStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Animal not found")
	case errors.Is(err, store.ErrInvalidEntityType):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.cfg.Logger.Error("store query", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func animalID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid animal id")
		return 0, false
	}
	return id, true
}

// listOpts reads ?limit= and ?offset= (?skip= is accepted for offset).
func listOpts(w http.ResponseWriter, r *http.Request) (store.ListOpts, bool) {
	q := r.URL.Query()
	var opts store.ListOpts
	parse := func(key string, dst *int) bool {
		v := q.Get(key)
		if v == "" {
			return true
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", key))
			return false
		}
		*dst = n
		return true
	}
	if !parse("limit", &opts.Limit) || !parse("skip", &opts.Offset) || !parse("offset", &opts.Offset) {
		return opts, false
	}
	return opts, true
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
