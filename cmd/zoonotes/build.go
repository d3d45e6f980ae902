package main

import (
	"fmt"
	"io"

	"github.com/hurttlocker/zoonotes/internal/annotate"
	"github.com/hurttlocker/zoonotes/internal/engine"
	"github.com/hurttlocker/zoonotes/internal/entity"
	"github.com/hurttlocker/zoonotes/internal/lexicon"
	"github.com/hurttlocker/zoonotes/internal/pipeline"
	"github.com/hurttlocker/zoonotes/internal/store"
	"github.com/hurttlocker/zoonotes/internal/synth"
	"github.com/hurttlocker/zoonotes/internal/telemetry"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// buildEngine assembles the engine from the resolved configuration. The
// returned closer releases the annotator model.
func (a *app) buildEngine(metrics *telemetry.Metrics) (*engine.Engine, io.Closer, error) {
	cfg := a.cfg

	tables, err := lexicon.Load(cfg.LexiconPath.Value)
	if err != nil {
		return nil, nil, err
	}

	radius, err := cfg.BodyMarkerRadius.Int(synth.DefaultBodyMarkerRadius)
	if err != nil {
		return nil, nil, fmt.Errorf("body_marker_radius: %w", err)
	}
	distance, err := cfg.FeedingJoinDistance.Int(synth.DefaultFeedingJoinDistance)
	if err != nil {
		return nil, nil, fmt.Errorf("feeding_join_distance: %w", err)
	}
	fuzzy, err := cfg.FuzzyThreshold.Float(0)
	if err != nil {
		return nil, nil, fmt.Errorf("fuzzy_threshold: %w", err)
	}
	var disabled []entity.Kind
	for _, name := range cfg.DisabledKinds.List() {
		k, err := entity.ParseKind(name)
		if err != nil {
			return nil, nil, fmt.Errorf("disabled_kinds: %w", err)
		}
		disabled = append(disabled, k)
	}

	opts := []engine.Option{
		engine.WithLexicon(tables),
		engine.WithSynthOptions(synth.Options{
			BodyMarkers:         tables.BodyMarkers,
			BodyMarkerRadius:    radius,
			FeedingJoinDistance: distance,
		}),
		engine.WithFuzzyThreshold(fuzzy),
		engine.WithDisabledKinds(disabled...),
		engine.WithLogger(a.logger),
		engine.WithMetrics(metrics),
	}

	var closer io.Closer = nopCloser{}
	if cfg.AnnotatorEnabled() {
		ann, err := annotate.NewONNX(annotate.ONNXConfig{
			ModelPath:     cfg.AnnotatorModel.Value,
			TokenizerPath: cfg.AnnotatorTokenizer.Value,
			RuntimePath:   cfg.AnnotatorRuntime.Value,
			Labels:        cfg.AnnotatorLabels.List(),
			Logger:        a.logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("loading annotator: %w", err)
		}
		a.logger.Info("annotator loaded", "model", cfg.AnnotatorModel.Value)
		opts = append(opts, engine.WithAnnotator(ann))
		closer = ann
	} else {
		a.logger.Debug("no annotator model configured; animal names will not be extracted")
	}

	eng, err := engine.New(opts...)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return eng, closer, nil
}

func (a *app) openStore() (store.Store, error) {
	st, err := store.NewStore(store.StoreConfig{DBPath: a.cfg.DBPath.Value})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return st, nil
}

// services bundles everything a persisting command needs.
type services struct {
	engine   *engine.Engine
	store    store.Store
	pipeline *pipeline.Pipeline
	closers  []io.Closer
}

func (r *services) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (a *app) buildServices(metrics *telemetry.Metrics) (*services, error) {
	eng, annCloser, err := a.buildEngine(metrics)
	if err != nil {
		return nil, err
	}
	st, err := a.openStore()
	if err != nil {
		annCloser.Close()
		return nil, err
	}
	return &services{
		engine:   eng,
		store:    st,
		pipeline: pipeline.New(eng, st, pipeline.WithLogger(a.logger)),
		closers:  []io.Closer{annCloser, st},
	}, nil
}
