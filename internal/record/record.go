// Package record maps a synthesized draft onto the payloads the persistence
// layer stores: an animal identity, an observation and optional measurement
// and feeding rows.
package record

import (
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/hurttlocker/zoonotes/internal/lexicon"
	"github.com/hurttlocker/zoonotes/internal/synth"
)

// Unknown fills identity fields nothing could be extracted for.
const Unknown = "Unknown"

// Animal identifies an animal by name and species.
type Animal struct {
	Name    string `json:"name"`
	Species string `json:"species"`
}

// Observation is the per-transcript observation row.
type Observation struct {
	Behavior      *string   `json:"behavior"`
	HealthStatus  *string   `json:"health_status"`
	Notes         string    `json:"notes"`
	AudioFile     string    `json:"audio_file,omitempty"`
	Transcription string    `json:"transcription"`
	Temperature   *float64  `json:"temperature"`
	Humidity      *float64  `json:"humidity"`
	ObservedAt    time.Time `json:"observed_at"`
}

// Measurement holds readings taken on the animal.
type Measurement struct {
	Weight      *float64 `json:"weight"`
	Length      *float64 `json:"length"`
	Height      *float64 `json:"height"` // not extracted yet
	Temperature *float64 `json:"temperature"`
	Age         *float64 `json:"age"`
}

// Feeding records what the animal was given.
type Feeding struct {
	FoodType string   `json:"food_type"`
	Quantity *float64 `json:"quantity"`
	Notes    *string  `json:"notes"`
}

// Records is everything one transcript contributes to storage.
type Records struct {
	Animal      Animal       `json:"animal"`
	Observation Observation  `json:"observation"`
	Measurement *Measurement `json:"measurement"`
	Feeding     *Feeding     `json:"feeding"`
}

// Meta carries what the draft does not know about its source.
type Meta struct {
	AudioFile  string
	ObservedAt time.Time
}

// Mapper converts drafts into Records.
type Mapper struct {
	markers [][]rune
}

// NewMapper returns a Mapper whose species fallback looks for the given
// introductory phrases ("наблюдение за").
func NewMapper(observationMarkers []string) Mapper {
	m := Mapper{}
	for _, marker := range observationMarkers {
		if folded := foldRunes(strings.TrimSpace(marker)); len(folded) > 0 {
			m.markers = append(m.markers, folded)
		}
	}
	return m
}

// Map converts d with the default observation markers.
func Map(d synth.Draft, transcript string, meta Meta) Records {
	return NewMapper(lexicon.Default().ObservationMarkers).Map(d, transcript, meta)
}

// Map converts d. When the draft has no name or no species, the transcript
// is searched for an observation marker and the text after it, up to the
// next "." (or "," when there is no period), becomes the species if the
// species is still unknown.
func (m Mapper) Map(d synth.Draft, transcript string, meta Meta) Records {
	name := deref(d.Name)
	species := deref(d.Species)
	if name == "" || species == "" {
		if label := m.fallbackSpecies(transcript); label != "" && species == "" {
			species = label
		}
	}
	if name == "" {
		name = Unknown
	}
	if species == "" {
		species = Unknown
	}

	audio := ""
	if meta.AudioFile != "" {
		audio = filepath.Base(meta.AudioFile)
	}
	observedAt := meta.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now().UTC()
	}

	r := Records{
		Animal: Animal{Name: name, Species: species},
		Observation: Observation{
			Behavior:      cloneString(d.Behavior),
			HealthStatus:  cloneString(d.HealthStatus),
			Notes:         transcript,
			AudioFile:     audio,
			Transcription: transcript,
			Temperature:   cloneFloat(d.Environment.Temperature),
			Humidity:      cloneFloat(d.Environment.Humidity),
			ObservedAt:    observedAt,
		},
	}
	if d.Measurements.Any() {
		r.Measurement = &Measurement{
			Weight:      cloneFloat(d.Measurements.Weight),
			Length:      cloneFloat(d.Measurements.Length),
			Temperature: cloneFloat(d.Measurements.Temperature),
			Age:         cloneFloat(d.Measurements.Age),
		}
	}
	if d.Feeding.FoodType != nil || d.Feeding.Quantity != nil {
		food := deref(d.Feeding.FoodType)
		if food == "" {
			food = Unknown
		}
		r.Feeding = &Feeding{FoodType: food, Quantity: cloneFloat(d.Feeding.Quantity)}
	}
	return r
}

func (m Mapper) fallbackSpecies(transcript string) string {
	runes := []rune(transcript)
	folded := foldRunes(transcript)
	for _, marker := range m.markers {
		at := indexRunes(folded, marker)
		if at < 0 {
			continue
		}
		from := at + len(marker)
		end := indexRune(runes, '.', from)
		if end < 0 {
			end = indexRune(runes, ',', from)
		}
		if end < 0 {
			end = len(runes)
		}
		return strings.TrimSpace(string(runes[from:end]))
	}
	return ""
}

// foldRunes lowercases rune by rune so offsets stay aligned with the source.
func foldRunes(s string) []rune {
	runes := []rune(s)
	for i, r := range runes {
		r = unicode.ToLower(r)
		if r == 'ё' {
			r = 'е'
		}
		runes[i] = r
	}
	return runes
}

func indexRunes(haystack, needle []rune) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func indexRune(runes []rune, r rune, from int) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
