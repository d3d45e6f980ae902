// Package extract turns a transcript into typed entity spans.
//
// Three independent extractors feed one pipeline:
// - the statistical annotator adapter (person, location, organization)
// - the lexicon extractor (species, behaviors, health, food, quantities)
// - the regex extractor (dates, times, percentages, ages)
//
// Extractors may run in parallel, but their outputs are always concatenated
// in declared order before the stable sort by start offset. Entities that
// share a start offset therefore keep extractor precedence (statistical,
// lexicon, regex), which the synthesis engine's first-match-wins rule
// depends on.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/hurttlocker/zoonotes/internal/entity"
	"github.com/hurttlocker/zoonotes/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// Extractor produces entity spans from raw text. Implementations must be
// safe for concurrent use and must not retain text.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, text string) ([]entity.Entity, error)
}

// ExtractorError records a single extractor's failure. The pipeline treats a
// failed extractor as having produced zero entities.
type ExtractorError struct {
	Extractor string
	Err       error
}

func (e *ExtractorError) Error() string {
	return fmt.Sprintf("extractor %s: %v", e.Extractor, e.Err)
}

func (e *ExtractorError) Unwrap() error {
	return e.Err
}

// Result is the merged output of one pipeline run.
type Result struct {
	// Entities are sorted by start offset; ties keep extractor order.
	Entities []entity.Entity
	// Failures lists extractors whose output was discarded.
	Failures []*ExtractorError
	Elapsed  time.Duration
}

// Pipeline runs a fixed, ordered list of extractors.
type Pipeline struct {
	extractors []Extractor
	sequential bool
	logger     *slog.Logger
	metrics    *telemetry.Metrics
}

// PipelineOption configures the extraction pipeline.
type PipelineOption func(*Pipeline)

// WithSequential disables the parallel fan-out. Output is identical either
// way; this only changes scheduling.
func WithSequential() PipelineOption {
	return func(p *Pipeline) {
		p.sequential = true
	}
}

// WithLogger sets the logger used to report swallowed extractor failures.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics records per-extractor entity counts and failures.
func WithMetrics(m *telemetry.Metrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// NewPipeline creates a pipeline over extractors, in precedence order.
func NewPipeline(extractors []Extractor, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		extractors: append([]Extractor(nil), extractors...),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extractors returns the extractor names in precedence order.
func (p *Pipeline) Extractors() []string {
	names := make([]string, len(p.extractors))
	for i, e := range p.extractors {
		names[i] = e.Name()
	}
	return names
}

// Extract runs every extractor over text and merges the results.
// It never fails: extractor errors, panics and contract violations are
// reported in Result.Failures and the offending extractor contributes
// nothing.
func (p *Pipeline) Extract(ctx context.Context, text string) Result {
	start := time.Now()
	textLen := utf8.RuneCountInString(text)

	outputs := make([][]entity.Entity, len(p.extractors))
	failures := make([]*ExtractorError, len(p.extractors))

	run := func(i int) {
		ex := p.extractors[i]
		entities, err := safeExtract(ctx, ex, text)
		if err == nil {
			err = validateAll(entities, textLen)
		}
		if err != nil {
			failures[i] = &ExtractorError{Extractor: ex.Name(), Err: err}
			return
		}
		outputs[i] = entities
	}

	if p.sequential || len(p.extractors) < 2 {
		for i := range p.extractors {
			run(i)
		}
	} else {
		var g errgroup.Group
		for i := range p.extractors {
			g.Go(func() error {
				run(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	res := Result{Entities: Merge(outputs...)}
	for i, f := range failures {
		if f == nil {
			p.metrics.RecordEntities(ctx, p.extractors[i].Name(), outputs[i])
			continue
		}
		p.logger.Warn("extractor failed, continuing without its entities",
			"extractor", f.Extractor, "error", f.Err)
		p.metrics.RecordExtractorFailure(ctx, f.Extractor)
		res.Failures = append(res.Failures, f)
	}
	res.Elapsed = time.Since(start)
	return res
}

// safeExtract shields the pipeline from a panicking collaborator.
func safeExtract(ctx context.Context, ex Extractor, text string) (entities []entity.Entity, err error) {
	defer func() {
		if r := recover(); r != nil {
			entities = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return ex.Extract(ctx, text)
}

func validateAll(entities []entity.Entity, textLen int) error {
	for _, e := range entities {
		if err := entity.Validate(e, textLen); err != nil {
			return err
		}
	}
	return nil
}

// Merge concatenates extractor outputs in argument order and stable-sorts
// the result by start offset.
func Merge(outputs ...[]entity.Entity) []entity.Entity {
	n := 0
	for _, o := range outputs {
		n += len(o)
	}
	merged := make([]entity.Entity, 0, n)
	for _, o := range outputs {
		merged = append(merged, o...)
	}
	entity.SortByStart(merged)
	return merged
}
