package extract

import (
	"context"

	"github.com/hurttlocker/zoonotes/internal/annotate"
	"github.com/hurttlocker/zoonotes/internal/entity"
)

// AnnotatorExtractor adapts the statistical annotator to the pipeline.
// Spans of kinds other than person, location and organization are dropped.
type AnnotatorExtractor struct {
	annotator annotate.Annotator
}

// NewAnnotatorExtractor wraps a. A nil annotator behaves like annotate.Nop.
func NewAnnotatorExtractor(a annotate.Annotator) *AnnotatorExtractor {
	if a == nil {
		a = annotate.Nop{}
	}
	return &AnnotatorExtractor{annotator: a}
}

// Name implements Extractor.
func (x *AnnotatorExtractor) Name() string { return "statistical" }

// Extract implements Extractor.
func (x *AnnotatorExtractor) Extract(ctx context.Context, text string) ([]entity.Entity, error) {
	if text == "" {
		return nil, nil
	}
	raw, err := x.annotator.Annotate(ctx, text)
	if err != nil {
		return nil, err
	}
	out := raw[:0:0]
	for _, e := range raw {
		if !e.Kind.Statistical() {
			continue
		}
		e.Value = nil
		out = append(out, e)
	}
	return out, nil
}
