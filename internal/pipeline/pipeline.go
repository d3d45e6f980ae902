// Package pipeline runs a transcript or recording through the engine and
// persists the mapped records.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/hurttlocker/zoonotes/internal/engine"
	"github.com/hurttlocker/zoonotes/internal/entity"
	"github.com/hurttlocker/zoonotes/internal/record"
	"github.com/hurttlocker/zoonotes/internal/store"
)

// Recorder is the slice of the store the pipeline writes through.
type Recorder interface {
	SaveRecords(ctx context.Context, r record.Records) (*store.SaveResult, error)
	DisabledKinds(ctx context.Context) ([]entity.Kind, error)
}

// Processed is an engine result plus the ids of the rows it produced.
type Processed struct {
	*engine.Result
	Saved *store.SaveResult `json:"saved,omitempty"`
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	engine      *engine.Engine
	recorder    Recorder
	transcriber Transcriber
	logger      *slog.Logger
}

// Option configures New.
type Option func(*Pipeline)

// WithTranscriber replaces the default SidecarTranscriber.
func WithTranscriber(t Transcriber) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.transcriber = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New returns a pipeline over eng. A nil recorder makes Save fail and
// leaves every kind enabled.
func New(eng *engine.Engine, recorder Recorder, opts ...Option) *Pipeline {
	p := &Pipeline{
		engine:      eng,
		recorder:    recorder,
		transcriber: SidecarTranscriber{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Engine returns the engine the pipeline runs.
func (p *Pipeline) Engine() *engine.Engine {
	return p.engine
}

// ProcessText runs a transcript through the engine with the currently
// configured entity toggles. Nothing is persisted.
func (p *Pipeline) ProcessText(ctx context.Context, in engine.Input) (*engine.Result, error) {
	eng, err := p.currentEngine(ctx)
	if err != nil {
		return nil, err
	}
	res, err := eng.Process(ctx, in)
	if err != nil {
		return nil, err
	}
	if len(res.Failures) > 0 {
		p.logger.Warn("extraction degraded", "failed", res.FailedExtractors())
	}
	return res, nil
}

// ProcessAudio transcribes the recording and processes the transcript.
func (p *Pipeline) ProcessAudio(ctx context.Context, audioPath string, observedAt time.Time) (*engine.Result, error) {
	tr, err := p.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("transcribing %s: %w", filepath.Base(audioPath), err)
	}
	p.logger.Debug("transcribed", "file", filepath.Base(audioPath), "chars", len(tr.Text), "duration", tr.DurationSeconds)
	return p.ProcessText(ctx, engine.Input{
		Transcript:           tr.Text,
		AudioDurationSeconds: tr.DurationSeconds,
		AudioFile:            audioPath,
		ObservedAt:           observedAt,
	})
}

// Save persists the records of a processed transcript.
func (p *Pipeline) Save(ctx context.Context, res *engine.Result) (*store.SaveResult, error) {
	if p.recorder == nil {
		return nil, fmt.Errorf("pipeline has no store")
	}
	saved, err := p.recorder.SaveRecords(ctx, res.Records)
	if err != nil {
		return nil, fmt.Errorf("saving records: %w", err)
	}
	p.logger.Info("observation saved",
		"animal", res.Records.Animal.Name,
		"species", res.Records.Animal.Species,
		"animal_id", saved.AnimalID,
		"observation_id", saved.ObservationID,
	)
	return saved, nil
}

// RecordText processes a transcript and saves it.
func (p *Pipeline) RecordText(ctx context.Context, in engine.Input) (*Processed, error) {
	res, err := p.ProcessText(ctx, in)
	if err != nil {
		return nil, err
	}
	saved, err := p.Save(ctx, res)
	if err != nil {
		return nil, err
	}
	return &Processed{Result: res, Saved: saved}, nil
}

// RecordAudio transcribes, processes and saves a recording.
func (p *Pipeline) RecordAudio(ctx context.Context, audioPath string, observedAt time.Time) (*Processed, error) {
	res, err := p.ProcessAudio(ctx, audioPath, observedAt)
	if err != nil {
		return nil, err
	}
	saved, err := p.Save(ctx, res)
	if err != nil {
		return nil, err
	}
	return &Processed{Result: res, Saved: saved}, nil
}

// currentEngine derives an engine honoring the stored toggles on top of the
// kinds the engine was configured to ignore.
func (p *Pipeline) currentEngine(ctx context.Context) (*engine.Engine, error) {
	if p.recorder == nil {
		return p.engine, nil
	}
	disabled, err := p.recorder.DisabledKinds(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading entity configs: %w", err)
	}
	if len(disabled) == 0 {
		return p.engine, nil
	}
	return p.engine.WithDisabledKinds(append(p.engine.DisabledKinds(), disabled...)...), nil
}
