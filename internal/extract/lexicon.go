package extract

import (
	"context"

	"github.com/hurttlocker/zoonotes/internal/entity"
	"github.com/hurttlocker/zoonotes/internal/lexicon"
)

// LexiconExtractor matches dictionary terms and NUMBER UNIT quantities.
type LexiconExtractor struct {
	matcher *lexicon.Matcher
}

// NewLexiconExtractor wraps a compiled matcher.
func NewLexiconExtractor(m *lexicon.Matcher) *LexiconExtractor {
	return &LexiconExtractor{matcher: m}
}

// Name implements Extractor.
func (x *LexiconExtractor) Name() string { return "lexicon" }

// Extract emits quantities (weight, length, temperature) followed by terms
// (species, behavior, health status, food), each group in text order.
// Matches of one kind never overlap; matches of different kinds may.
func (x *LexiconExtractor) Extract(_ context.Context, text string) ([]entity.Entity, error) {
	tokens := lexicon.Tokenize(text)
	if len(tokens) == 0 {
		return nil, nil
	}
	runes := []rune(text)

	var out []entity.Entity
	for _, kind := range lexicon.UnitKinds {
		out = append(out, x.quantities(kind, tokens, runes)...)
	}
	for _, kind := range lexicon.TermKinds {
		out = append(out, x.terms(kind, tokens, runes)...)
	}
	return out, nil
}

func (x *LexiconExtractor) quantities(kind entity.Kind, tokens []lexicon.Token, runes []rune) []entity.Entity {
	var out []entity.Entity
	for i := 0; i+1 < len(tokens); i++ {
		num, unit := tokens[i], tokens[i+1]
		if num.Type != lexicon.NumberToken || !unit.Adjacent || !x.matcher.IsUnit(kind, unit) {
			continue
		}
		e := entity.Entity{
			Text:  string(runes[num.Start:unit.End]),
			Kind:  kind,
			Start: num.Start,
			End:   unit.End,
		}
		if v, ok := ParseNumeric(e.Text); ok {
			e.Value = entity.Float(v)
		}
		out = append(out, e)
		i++
	}
	return out
}

func (x *LexiconExtractor) terms(kind entity.Kind, tokens []lexicon.Token, runes []rune) []entity.Entity {
	var out []entity.Entity
	for i := 0; i < len(tokens); {
		n, lemma, ok := x.matcher.MatchTerm(kind, tokens, i)
		if !ok {
			i++
			continue
		}
		first, last := tokens[i], tokens[i+n-1]
		out = append(out, entity.Entity{
			Text:       string(runes[first.Start:last.End]),
			Kind:       kind,
			Start:      first.Start,
			End:        last.End,
			Normalized: lemma,
		})
		i += n
	}
	return out
}
