// Package lexicon holds the static dictionaries and unit grammars used by the
// lexicon extractor, plus the morphological normalizer that lets declined
// word forms match their dictionary entries.
//
// Tables are plain data. A compiled Matcher is immutable after Compile and is
// safe to share between goroutines without locking.
package lexicon

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tables is the full set of term lists and cue words.
type Tables struct {
	Species        []string `yaml:"species" json:"species"`
	Behaviors      []string `yaml:"behaviors" json:"behaviors"`
	HealthStatuses []string `yaml:"health_statuses" json:"health_statuses"`
	Foods          []string `yaml:"foods" json:"foods"`

	WeightUnits      []string `yaml:"weight_units" json:"weight_units"`
	LengthUnits      []string `yaml:"length_units" json:"length_units"`
	TemperatureUnits []string `yaml:"temperature_units" json:"temperature_units"`

	MonthNames   []string `yaml:"month_names" json:"month_names"`
	PercentWords []string `yaml:"percent_words" json:"percent_words"`
	YearWords    []string `yaml:"year_words" json:"year_words"`

	// BodyMarkers route a nearby temperature reading to the animal instead
	// of the environment.
	BodyMarkers []string `yaml:"body_markers" json:"body_markers"`
	// ObservationMarkers introduce the observed animal ("наблюдение за ...").
	ObservationMarkers []string `yaml:"observation_markers" json:"observation_markers"`

	// Inflections lists surface forms the stemmer and the regular endings of
	// Forms cannot produce (fleeting vowels, suppletion), keyed by lemma.
	// A lemma listed here matches only itself and these forms when its stem
	// is short.
	Inflections map[string][]string `yaml:"inflections" json:"inflections,omitempty"`
}

// Default returns the built-in Russian tables.
func Default() Tables {
	return Tables{
		Species: []string{
			"тигр", "тигрица", "лев", "львица", "слон", "жираф", "зебра", "обезьяна",
			"горилла", "шимпанзе", "медведь", "волк", "лиса", "енот", "панда", "коала",
			"кенгуру", "крокодил", "аллигатор", "змея", "питон", "удав", "черепаха",
			"игуана", "ящерица", "попугай", "пингвин", "фламинго", "журавль", "павлин",
			"бегемот", "носорог", "антилопа", "верблюд", "лама",
		},
		Behaviors: []string{
			"спит", "ест", "играет", "отдыхает", "плавает", "бегает", "прыгает",
			"охотится", "дерется", "кормит", "чистит", "вылизывает", "купается",
			"греется", "прячется", "наблюдает", "кричит", "рычит", "воет",
			"агрессивный", "спокойный", "активный", "вялый", "игривый",
		},
		HealthStatuses: []string{
			"здоров", "болен", "ранен", "выздоравливает", "слабый", "сильный",
			"нормальный", "стабильный", "критический", "беременная", "кормящая",
		},
		Foods: []string{
			"мясо", "рыба", "фрукты", "овощи", "трава", "листья", "сено",
			"зерно", "орехи", "насекомые", "грызуны", "кролик", "курица",
		},
		WeightUnits:      []string{"килограмм", "кг", "грамм", "г"},
		LengthUnits:      []string{"метр", "м", "сантиметр", "см"},
		TemperatureUnits: []string{"градус", "°C", "°"},
		MonthNames: []string{
			"января", "февраля", "марта", "апреля", "мая", "июня", "июля",
			"августа", "сентября", "октября", "ноября", "декабря",
		},
		PercentWords:       []string{"процент", "процента", "процентов"},
		YearWords:          []string{"лет", "год", "года"},
		BodyMarkers:        []string{"тела"},
		ObservationMarkers: []string{"наблюдение за"},
		Inflections: map[string][]string{
			"лев":     {"льва", "льву", "львом", "льве", "львы", "львов", "львам", "львами", "львах"},
			"орехи":   {"орех", "ореха", "орехов", "орехами"},
			"листья":  {"лист", "листьев", "листьями"},
			"грызуны": {"грызун", "грызунов"},
			"ест":     {"едят"},
			"болен":   {"больна", "больны"},
		},
	}
}

// Load reads a YAML lexicon file and overlays it onto the defaults: every
// non-empty list in the file replaces the built-in list of the same name.
func Load(path string) (Tables, error) {
	base := Default()
	if strings.TrimSpace(path) == "" {
		return base, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("reading lexicon %s: %w", path, err)
	}
	var overlay Tables
	if err := yaml.Unmarshal(b, &overlay); err != nil {
		return base, fmt.Errorf("parsing lexicon %s: %w", path, err)
	}
	return Merge(base, overlay), nil
}

// Merge returns base with every non-empty list of overlay substituted.
// Inflection entries are merged per lemma.
func Merge(base, overlay Tables) Tables {
	out := base
	pick := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = append([]string(nil), src...)
		}
	}
	pick(&out.Species, overlay.Species)
	pick(&out.Behaviors, overlay.Behaviors)
	pick(&out.HealthStatuses, overlay.HealthStatuses)
	pick(&out.Foods, overlay.Foods)
	pick(&out.WeightUnits, overlay.WeightUnits)
	pick(&out.LengthUnits, overlay.LengthUnits)
	pick(&out.TemperatureUnits, overlay.TemperatureUnits)
	pick(&out.MonthNames, overlay.MonthNames)
	pick(&out.PercentWords, overlay.PercentWords)
	pick(&out.YearWords, overlay.YearWords)
	pick(&out.BodyMarkers, overlay.BodyMarkers)
	pick(&out.ObservationMarkers, overlay.ObservationMarkers)

	if len(overlay.Inflections) > 0 {
		merged := make(map[string][]string, len(base.Inflections)+len(overlay.Inflections))
		for k, v := range base.Inflections {
			merged[k] = v
		}
		for k, v := range overlay.Inflections {
			merged[k] = v
		}
		out.Inflections = merged
	}
	return out
}
