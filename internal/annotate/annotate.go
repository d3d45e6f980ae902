// Package annotate provides the statistical linguistic annotator that tags
// people, locations and organizations in a transcript.
//
// The annotator is an external collaborator of the extraction core: callers
// must treat its errors as "no entities" and carry on.
package annotate

import (
	"context"
	"strings"

	"github.com/hurttlocker/zoonotes/internal/entity"
)

// Annotator tags named-entity spans. Implementations must be safe for
// concurrent use. Returned offsets are rune offsets into text.
type Annotator interface {
	Annotate(ctx context.Context, text string) ([]entity.Entity, error)
}

// Func adapts a plain function to Annotator.
type Func func(ctx context.Context, text string) ([]entity.Entity, error)

// Annotate implements Annotator.
func (f Func) Annotate(ctx context.Context, text string) ([]entity.Entity, error) {
	return f(ctx, text)
}

// Nop never finds anything. It stands in when no model is configured.
type Nop struct{}

// Annotate implements Annotator.
func (Nop) Annotate(context.Context, string) ([]entity.Entity, error) {
	return nil, nil
}

// KindForTag maps an NER tag (PER, LOC, ORG and common spellings) onto an
// entity kind.
func KindForTag(tag string) (entity.Kind, bool) {
	switch strings.ToUpper(strings.TrimSpace(tag)) {
	case "PER", "PERSON":
		return entity.Person, true
	case "LOC", "LOCATION", "GPE":
		return entity.Location, true
	case "ORG", "ORGANIZATION":
		return entity.Organization, true
	}
	return "", false
}
