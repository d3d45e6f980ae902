package lexicon

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
	"github.com/hurttlocker/zoonotes/internal/entity"
)

// TermKinds lists the dictionary-backed kinds in the order the lexicon
// extractor emits them.
var TermKinds = []entity.Kind{entity.Species, entity.Behavior, entity.HealthStatus, entity.Food}

// UnitKinds lists the quantity kinds in the order the lexicon extractor
// emits them.
var UnitKinds = []entity.Kind{entity.Weight, entity.Length, entity.Temperature}

// minFuzzyRunes keeps short tokens and short lemmas out of fuzzy matching;
// Jaro-Winkler is too forgiving on three- and four-letter words.
const minFuzzyRunes = 5

// phraseWord is one word of a phrase. A word with forms matches only those
// folded surface forms; otherwise any token with the same key matches.
type phraseWord struct {
	key   string
	forms map[string]struct{}
}

func (w phraseWord) matches(tok Token) bool {
	if tok.Type != WordToken {
		return false
	}
	if w.forms != nil {
		_, ok := w.forms[tok.Folded]
		return ok
	}
	return tok.Key == w.key
}

// phrase is one matchable surface sequence for a lemma.
type phrase struct {
	lemma  string
	words  []phraseWord
	folded string
}

type termIndex struct {
	byKey  map[string][]phrase
	byForm map[string][]phrase
	all    []phrase
}

// Matcher is a compiled, read-only view of Tables.
type Matcher struct {
	tables         Tables
	terms          map[entity.Kind]*termIndex
	units          map[entity.Kind]map[string]struct{}
	fuzzyThreshold float64
}

// Option configures Compile.
type Option func(*Matcher)

// WithFuzzyThreshold enables a Jaro-Winkler fallback for single-word terms
// that failed an exact key match. Zero disables it.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Compile builds a Matcher from t.
func Compile(t Tables, opts ...Option) *Matcher {
	m := &Matcher{
		tables: t,
		terms:  make(map[entity.Kind]*termIndex, len(TermKinds)),
		units:  make(map[entity.Kind]map[string]struct{}, len(UnitKinds)),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.terms[entity.Species] = buildTermIndex(entity.Species, t.Species, t.Inflections)
	m.terms[entity.Behavior] = buildTermIndex(entity.Behavior, t.Behaviors, t.Inflections)
	m.terms[entity.HealthStatus] = buildTermIndex(entity.HealthStatus, t.HealthStatuses, t.Inflections)
	m.terms[entity.Food] = buildTermIndex(entity.Food, t.Foods, t.Inflections)

	m.units[entity.Weight] = keySet(t.WeightUnits)
	m.units[entity.Length] = keySet(t.LengthUnits)
	m.units[entity.Temperature] = keySet(t.TemperatureUnits)
	return m
}

func buildTermIndex(kind entity.Kind, lemmas []string, inflections map[string][]string) *termIndex {
	idx := &termIndex{
		byKey:  make(map[string][]phrase),
		byForm: make(map[string][]phrase),
	}
	seen := make(map[string]bool)
	add := func(lemma, surface string, generate bool) {
		fields := strings.Fields(surface)
		words := make([]phraseWord, 0, len(fields))
		for _, f := range fields {
			key := Key(f)
			if key == "" {
				continue
			}
			w := phraseWord{key: key}
			if shortStem(f) {
				forms := []string{Fold(f)}
				if generate && len(fields) == 1 {
					forms = Forms(kind, f)
				}
				w.forms = make(map[string]struct{}, len(forms))
				for _, form := range forms {
					w.forms[form] = struct{}{}
				}
			}
			words = append(words, w)
		}
		if len(words) == 0 {
			return
		}
		sig := lemma + "\x00" + Fold(surface)
		if seen[sig] {
			return
		}
		seen[sig] = true
		p := phrase{lemma: lemma, words: words, folded: Fold(surface)}
		if first := words[0]; first.forms != nil {
			for form := range first.forms {
				idx.byForm[form] = append(idx.byForm[form], p)
			}
		} else {
			idx.byKey[first.key] = append(idx.byKey[first.key], p)
		}
		idx.all = append(idx.all, p)
	}
	for _, lemma := range lemmas {
		forms := inflections[lemma]
		// Listed inflections replace generated forms for irregular lemmas.
		add(lemma, lemma, len(forms) == 0)
		for _, form := range forms {
			add(lemma, form, false)
		}
	}
	return idx
}

func keySet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if k := Key(w); k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

// Tables returns the tables the matcher was compiled from.
func (m *Matcher) Tables() Tables {
	return m.tables
}

// MatchTerm tries to match a dictionary term of the given kind starting at
// tokens[i]. It returns the number of tokens consumed and the lemma.
func (m *Matcher) MatchTerm(kind entity.Kind, tokens []Token, i int) (int, string, bool) {
	idx, ok := m.terms[kind]
	if !ok || i < 0 || i >= len(tokens) || tokens[i].Type != WordToken {
		return 0, "", false
	}

	found, bestLen, bestLemma := false, 0, ""
	for _, candidates := range [][]phrase{idx.byForm[tokens[i].Folded], idx.byKey[tokens[i].Key]} {
		for _, p := range candidates {
			// Longest phrase wins so multiword entries beat their own prefixes.
			if len(p.words) > bestLen && matchesAt(p.words, tokens, i) {
				found, bestLen, bestLemma = true, len(p.words), p.lemma
			}
		}
	}
	if found {
		return bestLen, bestLemma, true
	}

	if m.fuzzyThreshold > 0 && utf8.RuneCountInString(tokens[i].Folded) >= minFuzzyRunes {
		best, bestScore := "", 0.0
		for _, p := range idx.all {
			if len(p.words) != 1 || utf8.RuneCountInString(p.folded) < minFuzzyRunes {
				continue
			}
			score := matchr.JaroWinkler(tokens[i].Folded, p.folded, false)
			if score > bestScore {
				best, bestScore = p.lemma, score
			}
		}
		if best != "" && bestScore >= m.fuzzyThreshold {
			return 1, best, true
		}
	}
	return 0, "", false
}

func matchesAt(words []phraseWord, tokens []Token, i int) bool {
	if i+len(words) > len(tokens) {
		return false
	}
	for j, w := range words {
		tok := tokens[i+j]
		if !w.matches(tok) {
			return false
		}
		if j > 0 && !tok.Adjacent {
			return false
		}
	}
	return true
}

// IsUnit reports whether tok is a unit word of the given quantity kind.
func (m *Matcher) IsUnit(kind entity.Kind, tok Token) bool {
	set, ok := m.units[kind]
	if !ok || tok.Type == NumberToken {
		return false
	}
	_, hit := set[tok.Key]
	return hit
}
