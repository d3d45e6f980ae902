// Package engine wires extraction, synthesis and record mapping into a single
// immutable value that can be shared by any number of goroutines.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/hurttlocker/zoonotes/internal/annotate"
	"github.com/hurttlocker/zoonotes/internal/entity"
	"github.com/hurttlocker/zoonotes/internal/extract"
	"github.com/hurttlocker/zoonotes/internal/lexicon"
	"github.com/hurttlocker/zoonotes/internal/record"
	"github.com/hurttlocker/zoonotes/internal/synth"
	"github.com/hurttlocker/zoonotes/internal/telemetry"
)

// ErrMalformedInput is returned for transcripts that are not valid UTF-8.
var ErrMalformedInput = errors.New("transcript is not valid UTF-8")

// Input is one transcript plus what is known about its source recording.
type Input struct {
	Transcript           string
	AudioDurationSeconds float64
	AudioFile            string
	ObservedAt           time.Time
}

// Result is the outcome of processing one transcript.
type Result struct {
	Transcript           string                    `json:"transcription"`
	AudioFile            string                    `json:"audio_file,omitempty"`
	AudioDurationSeconds float64                   `json:"audio_duration"`
	Draft                synth.Draft               `json:"structured_data"`
	Records              record.Records            `json:"db_records"`
	Failures             []*extract.ExtractorError `json:"-"`
	ExtractionTime       time.Duration             `json:"-"`
}

// FailedExtractors lists the names of extractors whose output was dropped.
func (r *Result) FailedExtractors() []string {
	names := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		names = append(names, f.Extractor)
	}
	return names
}

// Engine is immutable after New; derived engines share its compiled tables.
type Engine struct {
	tables    lexicon.Tables
	matcher   *lexicon.Matcher
	annotator annotate.Annotator
	pipeline  *extract.Pipeline
	mapper    record.Mapper
	synthOpts synth.Options
	logger    *slog.Logger
	metrics   *telemetry.Metrics

	fuzzyThreshold float64
	sequential     bool
}

// Option configures New.
type Option func(*Engine)

// WithAnnotator sets the statistical annotator. Defaults to annotate.Nop.
func WithAnnotator(a annotate.Annotator) Option {
	return func(e *Engine) {
		if a != nil {
			e.annotator = a
		}
	}
}

// WithLexicon replaces the default tables.
func WithLexicon(t lexicon.Tables) Option {
	return func(e *Engine) {
		e.tables = t
	}
}

// WithSynthOptions replaces the synthesis rules. Body markers left empty are
// taken from the lexicon.
func WithSynthOptions(o synth.Options) Option {
	return func(e *Engine) {
		e.synthOpts = o
	}
}

// WithLogger sets the logger for swallowed extractor failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records extraction and processing metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithFuzzyThreshold enables fuzzy lexicon matching (see lexicon.WithFuzzyThreshold).
func WithFuzzyThreshold(threshold float64) Option {
	return func(e *Engine) {
		e.fuzzyThreshold = threshold
	}
}

// WithDisabledKinds stops the given kinds from populating draft fields.
func WithDisabledKinds(kinds ...entity.Kind) Option {
	return func(e *Engine) {
		e.synthOpts.DisabledKinds = append([]entity.Kind(nil), kinds...)
	}
}

// WithSequentialExtraction runs extractors one after another.
func WithSequentialExtraction() Option {
	return func(e *Engine) {
		e.sequential = true
	}
}

// New builds an engine. The lexicon is compiled once here.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		tables:    lexicon.Default(),
		annotator: annotate.Nop{},
		synthOpts: synth.DefaultOptions(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.fuzzyThreshold < 0 || e.fuzzyThreshold > 1 {
		return nil, fmt.Errorf("fuzzy threshold %.2f out of range [0,1]", e.fuzzyThreshold)
	}
	if e.synthOpts.BodyMarkerRadius < 0 || e.synthOpts.FeedingJoinDistance < 0 {
		return nil, errors.New("synthesis windows cannot be negative")
	}
	for _, k := range e.synthOpts.DisabledKinds {
		if !k.Valid() {
			return nil, fmt.Errorf("unknown entity kind %q", k)
		}
	}
	if len(e.synthOpts.BodyMarkers) == 0 {
		e.synthOpts.BodyMarkers = e.tables.BodyMarkers
	}

	e.matcher = lexicon.Compile(e.tables, lexicon.WithFuzzyThreshold(e.fuzzyThreshold))
	e.mapper = record.NewMapper(e.tables.ObservationMarkers)
	e.pipeline = e.buildPipeline()
	return e, nil
}

func (e *Engine) buildPipeline() *extract.Pipeline {
	opts := []extract.PipelineOption{
		extract.WithLogger(e.logger),
		extract.WithMetrics(e.metrics),
	}
	if e.sequential {
		opts = append(opts, extract.WithSequential())
	}
	return extract.NewPipeline([]extract.Extractor{
		extract.NewAnnotatorExtractor(e.annotator),
		extract.NewLexiconExtractor(e.matcher),
		extract.NewRegexExtractor(e.tables),
	}, opts...)
}

// WithDisabledKinds returns a copy of e whose synthesis ignores kinds. The
// receiver is not modified.
func (e *Engine) WithDisabledKinds(kinds ...entity.Kind) *Engine {
	derived := *e
	derived.synthOpts.DisabledKinds = append([]entity.Kind(nil), kinds...)
	derived.synthOpts.BodyMarkers = append([]string(nil), e.synthOpts.BodyMarkers...)
	return &derived
}

// DisabledKinds returns the kinds synthesis ignores.
func (e *Engine) DisabledKinds() []entity.Kind {
	return append([]entity.Kind(nil), e.synthOpts.DisabledKinds...)
}

// Tables returns the lexicon the engine was built with.
func (e *Engine) Tables() lexicon.Tables {
	return e.tables
}

// Extract runs only the extraction stage.
func (e *Engine) Extract(ctx context.Context, text string) (extract.Result, error) {
	if !utf8.ValidString(text) {
		return extract.Result{}, ErrMalformedInput
	}
	return e.pipeline.Extract(ctx, text), nil
}

// Process extracts, synthesizes and maps one transcript. An empty transcript
// yields an all-absent draft. Only malformed input and a cancelled context
// are errors.
func (e *Engine) Process(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	if !utf8.ValidString(in.Transcript) {
		e.metrics.RecordProcessing(ctx, "malformed", time.Since(start))
		return nil, ErrMalformedInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	extracted := e.pipeline.Extract(ctx, in.Transcript)
	draft := synth.Synthesize(in.Transcript, extracted.Entities, e.synthOpts)
	records := e.mapper.Map(draft, in.Transcript, record.Meta{
		AudioFile:  in.AudioFile,
		ObservedAt: in.ObservedAt,
	})

	e.metrics.RecordProcessing(ctx, "ok", time.Since(start))
	return &Result{
		Transcript:           in.Transcript,
		AudioFile:            in.AudioFile,
		AudioDurationSeconds: in.AudioDurationSeconds,
		Draft:                draft,
		Records:              records,
		Failures:             extracted.Failures,
		ExtractionTime:       extracted.Elapsed,
	}, nil
}
