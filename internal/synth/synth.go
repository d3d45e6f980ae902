// Package synth folds a sorted entity sequence into one structured draft per
// transcript.
//
// Synthesis is a single forward pass with first-match-wins per field,
// followed by a proximity join that attaches a weight reading to the first
// food mention. Both the body-marker window and the join distance are
// measured in characters (runes) of the original transcript.
package synth

import (
	"fmt"
	"strings"

	"github.com/hurttlocker/zoonotes/internal/entity"
	"github.com/hurttlocker/zoonotes/internal/lexicon"
)

// Defaults for Options.
const (
	DefaultBodyMarkerRadius    = 10
	DefaultFeedingJoinDistance = 20
)

// Options tunes the contextual rules.
type Options struct {
	// BodyMarkers route a temperature to measurements when one of them
	// occurs within BodyMarkerRadius characters of the reading.
	BodyMarkers      []string
	BodyMarkerRadius int
	// FeedingJoinDistance is the exclusive bound on |weight.start - food.start|
	// for the feeding quantity join.
	FeedingJoinDistance int
	// DisabledKinds are ignored by the field rules. They still appear in
	// Draft.Entities.
	DisabledKinds []entity.Kind
}

// DefaultOptions returns the stock rules with body markers taken from the
// default lexicon.
func DefaultOptions() Options {
	return Options{
		BodyMarkers:         lexicon.Default().BodyMarkers,
		BodyMarkerRadius:    DefaultBodyMarkerRadius,
		FeedingJoinDistance: DefaultFeedingJoinDistance,
	}
}

// Measurements are readings taken on the animal itself.
type Measurements struct {
	Weight      *float64 `json:"weight"`
	Length      *float64 `json:"length"`
	Temperature *float64 `json:"temperature"`
	Age         *float64 `json:"age"`
}

// Any reports whether at least one reading is present.
func (m Measurements) Any() bool {
	return m.Weight != nil || m.Length != nil || m.Temperature != nil || m.Age != nil
}

// Feeding describes what the animal was given.
type Feeding struct {
	FoodType *string  `json:"food_type"`
	Quantity *float64 `json:"quantity"`
}

// Environment holds enclosure readings.
type Environment struct {
	Temperature *float64 `json:"temperature"`
	// Humidity is never populated by the current rules; it is kept so
	// stored observations and API payloads have a stable shape.
	Humidity *float64 `json:"humidity"`
}

// Draft is the structured result for one transcript. It is not modified
// after Synthesize returns.
type Draft struct {
	Name         *string         `json:"name"`
	Species      *string         `json:"species"`
	Measurements Measurements    `json:"measurements"`
	Behavior     *string         `json:"behavior"`
	HealthStatus *string         `json:"health_status"`
	Feeding      Feeding         `json:"feeding"`
	Environment  Environment     `json:"environment"`
	Entities     []entity.Entity `json:"entities"`
}

// Synthesize builds a Draft from text and its merged entities. sorted must be
// ordered by start offset with extractor precedence on ties, as produced by
// the extraction pipeline.
//
// Synthesize panics if an entity violates its span contract or the sequence
// is out of order: both mean an extractor is broken.
func Synthesize(text string, sorted []entity.Entity, opts Options) Draft {
	runes := []rune(text)
	textLen := len(runes)
	for i, e := range sorted {
		if err := entity.Validate(e, textLen); err != nil {
			panic(fmt.Sprintf("synth: %v", err))
		}
		if i > 0 && sorted[i-1].Start > e.Start {
			panic(fmt.Sprintf("synth: entities out of order at index %d (%d > %d)", i, sorted[i-1].Start, e.Start))
		}
	}

	disabled := make(map[entity.Kind]bool, len(opts.DisabledKinds))
	for _, k := range opts.DisabledKinds {
		disabled[k] = true
	}
	markers := foldMarkers(opts.BodyMarkers)

	d := Draft{Entities: make([]entity.Entity, len(sorted))}
	for i, e := range sorted {
		if e.Value != nil {
			e.Value = entity.Float(*e.Value)
		}
		d.Entities[i] = e
	}

	setText := func(dst **string, e entity.Entity) {
		if *dst == nil {
			s := e.Text
			*dst = &s
		}
	}
	setValue := func(dst **float64, e entity.Entity) {
		if *dst == nil && e.Value != nil {
			v := *e.Value
			*dst = &v
		}
	}

	var firstFood *entity.Entity
	for i, e := range sorted {
		if disabled[e.Kind] {
			continue
		}
		switch e.Kind {
		case entity.Person:
			setText(&d.Name, e)
		case entity.Species:
			setText(&d.Species, e)
		case entity.Weight:
			setValue(&d.Measurements.Weight, e)
		case entity.Length:
			setValue(&d.Measurements.Length, e)
		case entity.Age:
			setValue(&d.Measurements.Age, e)
		case entity.Temperature:
			if nearBodyMarker(runes, e, opts.BodyMarkerRadius, markers) {
				setValue(&d.Measurements.Temperature, e)
			} else {
				setValue(&d.Environment.Temperature, e)
			}
		case entity.Behavior:
			setText(&d.Behavior, e)
		case entity.HealthStatus:
			setText(&d.HealthStatus, e)
		case entity.Food:
			setText(&d.Feeding.FoodType, e)
			if firstFood == nil {
				firstFood = &sorted[i]
			}
		}
	}

	// Nearest-by-position heuristic, not a grammatical relation: the first
	// weight close enough to the first food mention is taken as its quantity.
	if firstFood != nil && !disabled[entity.Weight] {
		for _, e := range sorted {
			if e.Kind != entity.Weight || e.Value == nil {
				continue
			}
			if abs(e.Start-firstFood.Start) < opts.FeedingJoinDistance {
				v := *e.Value
				d.Feeding.Quantity = &v
				break
			}
		}
	}
	return d
}

// nearBodyMarker looks for a marker in runes[start-radius, end+radius),
// clamped to the text.
func nearBodyMarker(runes []rune, e entity.Entity, radius int, markers []string) bool {
	if len(markers) == 0 {
		return false
	}
	from := e.Start - radius
	if from < 0 {
		from = 0
	}
	to := e.End + radius
	if to > len(runes) {
		to = len(runes)
	}
	window := lexicon.Fold(string(runes[from:to]))
	for _, m := range markers {
		if strings.Contains(window, m) {
			return true
		}
	}
	return false
}

func foldMarkers(markers []string) []string {
	out := make([]string, 0, len(markers))
	for _, m := range markers {
		if f := lexicon.Fold(strings.TrimSpace(m)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
