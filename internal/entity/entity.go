// Package entity defines the typed, located text fragments produced by the
// extractors and consumed by the synthesis engine.
//
// Offsets are character (rune) offsets into the transcript, half-open:
// Text == string([]rune(transcript)[Start:End]). Spans from different
// extractors may overlap; the only structural guarantee downstream is the
// ordering established by SortByStart.
package entity

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies what an entity denotes. The set of kinds is closed.
type Kind string

const (
	Species      Kind = "species"
	Behavior     Kind = "behavior"
	HealthStatus Kind = "health_status"
	Weight       Kind = "weight"
	Length       Kind = "length"
	Temperature  Kind = "temperature"
	Food         Kind = "food"
	Person       Kind = "person"
	Location     Kind = "location"
	Organization Kind = "organization"
	Date         Kind = "date"
	Time         Kind = "time"
	Percentage   Kind = "percentage"
	Age          Kind = "age"
)

var allKinds = []Kind{
	Species, Behavior, HealthStatus, Weight, Length, Temperature, Food,
	Person, Location, Organization, Date, Time, Percentage, Age,
}

// Kinds returns every known kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// ParseKind maps a string onto a Kind. The legacy "animal_species" label is
// accepted as an alias for Species.
func ParseKind(s string) (Kind, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "animal_species" {
		return Species, nil
	}
	for _, k := range allKinds {
		if string(k) == v {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Numeric reports whether entities of this kind carry a numeric Value.
func (k Kind) Numeric() bool {
	switch k {
	case Weight, Length, Temperature, Percentage, Age:
		return true
	}
	return false
}

// Statistical reports whether the kind is produced by the statistical
// annotator rather than by the lexicon or regex extractors.
func (k Kind) Statistical() bool {
	switch k {
	case Person, Location, Organization:
		return true
	}
	return false
}

// Entity is a typed span of the transcript.
type Entity struct {
	Text       string   `json:"text"`
	Kind       Kind     `json:"type"`
	Start      int      `json:"start"`
	End        int      `json:"end"`
	Value      *float64 `json:"value"`
	Normalized string   `json:"normalized,omitempty"`
}

// HasValue reports whether a numeric value was extracted.
func (e Entity) HasValue() bool {
	return e.Value != nil
}

// FloatValue returns the numeric value, or 0 when absent.
func (e Entity) FloatValue() float64 {
	if e.Value == nil {
		return 0
	}
	return *e.Value
}

// Float returns a pointer to a copy of v. Handy for building entities and
// optional draft fields.
func Float(v float64) *float64 {
	return &v
}

// SpanError describes an entity whose offsets or payload break the Entity
// contract. It always indicates a broken producer, never bad user input.
type SpanError struct {
	Entity  Entity
	TextLen int
	Reason  string
}

func (e *SpanError) Error() string {
	return fmt.Sprintf("invalid %s entity %q [%d,%d) for text of length %d: %s",
		e.Entity.Kind, e.Entity.Text, e.Entity.Start, e.Entity.End, e.TextLen, e.Reason)
}

// Validate checks e against a transcript of textLen characters.
func Validate(e Entity, textLen int) error {
	switch {
	case !e.Kind.Valid():
		return &SpanError{Entity: e, TextLen: textLen, Reason: "unknown kind"}
	case e.Start < 0:
		return &SpanError{Entity: e, TextLen: textLen, Reason: "negative start"}
	case e.Start > e.End:
		return &SpanError{Entity: e, TextLen: textLen, Reason: "start after end"}
	case e.End > textLen:
		return &SpanError{Entity: e, TextLen: textLen, Reason: "end beyond text"}
	case e.Value != nil && !e.Kind.Numeric():
		return &SpanError{Entity: e, TextLen: textLen, Reason: "value on non-numeric kind"}
	}
	return nil
}

// SortByStart stable-sorts entities ascending by Start. Entities sharing a
// start offset keep their relative input order, which callers rely on to
// encode extractor precedence.
func SortByStart(entities []Entity) {
	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].Start < entities[j].Start
	})
}

// IsSorted reports whether entities are in non-decreasing Start order.
func IsSorted(entities []Entity) bool {
	for i := 1; i < len(entities); i++ {
		if entities[i-1].Start > entities[i].Start {
			return false
		}
	}
	return true
}
