package lexicon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hurttlocker/zoonotes/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFold(t *testing.T) {
	assert.Equal(t, "еж", Fold("Ёж"))
	assert.Equal(t, "тигр", Fold("ТИГР"))
}

func TestKeyToleratesDeclension(t *testing.T) {
	tests := []struct {
		a, b string
	}{
		{"килограмм", "килограмма"},
		{"килограмм", "килограммов"},
		{"метр", "метра"},
		{"метр", "метров"},
		{"сантиметр", "сантиметров"},
		{"градус", "градусов"},
		{"градус", "градуса"},
		{"Питон", "питона"},
	}
	for _, tt := range tests {
		t.Run(tt.b, func(t *testing.T) {
			assert.Equal(t, Key(tt.a), Key(tt.b))
		})
	}
}

func TestKeyLeavesNonWordsFolded(t *testing.T) {
	assert.Equal(t, "°c", Key("°C"))
	assert.Equal(t, "42", Key("42"))
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("Вес 2,5 кг, t 28°C")
	require.Len(t, tokens, 6)

	assert.Equal(t, "Вес", tokens[0].Text)
	assert.Equal(t, WordToken, tokens[0].Type)

	assert.Equal(t, "2,5", tokens[1].Text)
	assert.Equal(t, NumberToken, tokens[1].Type)
	assert.Equal(t, 4, tokens[1].Start)
	assert.Equal(t, 7, tokens[1].End)

	assert.Equal(t, "кг", tokens[2].Text)
	assert.True(t, tokens[2].Adjacent)

	// The comma after "кг" breaks adjacency.
	assert.Equal(t, "t", tokens[3].Text)
	assert.False(t, tokens[3].Adjacent)

	assert.Equal(t, "28", tokens[4].Text)
	assert.Equal(t, "°C", tokens[5].Text)
	assert.Equal(t, SymbolToken, tokens[5].Type)
	assert.Equal(t, "°c", tokens[5].Key)
}

func TestTokenizeRuneOffsets(t *testing.T) {
	text := "Лев спит"
	tokens := Tokenize(text)
	require.Len(t, tokens, 2)
	runes := []rune(text)
	for _, tok := range tokens {
		assert.Equal(t, tok.Text, string(runes[tok.Start:tok.End]))
	}
	assert.Equal(t, 4, tokens[1].Start)
}

func TestTokenizeTrailingDecimalSeparator(t *testing.T) {
	tokens := Tokenize("1, 2.")
	require.Len(t, tokens, 2)
	assert.Equal(t, "1", tokens[0].Text)
	assert.Equal(t, "2", tokens[1].Text)
}

func TestMatcherTerms(t *testing.T) {
	m := Compile(Default())

	tokens := Tokenize("Тигрица спокойная, ест мясо")
	n, lemma, ok := m.MatchTerm(entity.Species, tokens, 0)
	require.True(t, ok)
	assert.Equal(t, 1, n)
	assert.Equal(t, "тигрица", lemma)

	_, _, ok = m.MatchTerm(entity.Species, tokens, 1)
	assert.False(t, ok)

	_, lemma, ok = m.MatchTerm(entity.Food, tokens, 3)
	require.True(t, ok)
	assert.Equal(t, "мясо", lemma)
}

func TestMatcherInflections(t *testing.T) {
	m := Compile(Default())
	tokens := Tokenize("Осмотр льва")
	_, lemma, ok := m.MatchTerm(entity.Species, tokens, 1)
	require.True(t, ok)
	assert.Equal(t, "лев", lemma)
}

func TestMatcherShortStemsNeedKnownForms(t *testing.T) {
	m := Compile(Default())
	tests := []struct {
		name  string
		kind  entity.Kind
		text  string
		at    int
		lemma string // empty means no match
	}{
		{"adjective sharing the lion stem", entity.Species, "Травма левой лапы", 1, ""},
		{"feminine adjective", entity.Species, "левая лапа", 0, ""},
		{"noun sharing the feeding stem", entity.Behavior, "Утром дали корм", 2, ""},
		{"genitive", entity.Species, "Вес слона", 1, "слон"},
		{"plural", entity.Species, "тигры", 0, "тигр"},
		{"listed irregular form", entity.Species, "львы", 0, "лев"},
		{"accusative", entity.Food, "рыбу", 0, "рыба"},
		{"third person plural", entity.Behavior, "спят", 0, "спит"},
		{"second conjugation plural", entity.Behavior, "кормят", 0, "кормит"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, lemma, ok := m.MatchTerm(tt.kind, Tokenize(tt.text), tt.at)
			if tt.lemma == "" {
				assert.False(t, ok, "matched %q", lemma)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.lemma, lemma)
		})
	}
}

func TestForms(t *testing.T) {
	assert.Subset(t, Forms(entity.Species, "Тигр"), []string{"тигр", "тигра", "тигры", "тиграми"})
	assert.Subset(t, Forms(entity.Food, "рыба"), []string{"рыбу", "рыбой", "рыб"})
	assert.Subset(t, Forms(entity.Food, "мясо"), []string{"мяса", "мясом"})
	assert.Subset(t, Forms(entity.Behavior, "спит"), []string{"спит", "спят"})
	assert.Subset(t, Forms(entity.Behavior, "кричит"), []string{"кричат"})
	assert.Subset(t, Forms(entity.Behavior, "купается"), []string{"купаются"})
	assert.Subset(t, Forms(entity.HealthStatus, "слабый"), []string{"слабая", "слабые", "слаба"})
	assert.Equal(t, []string{"кенгуру"}, Forms(entity.Species, "кенгуру"))
	assert.NotContains(t, Forms(entity.Species, "лев"), "левой")
	assert.Nil(t, Forms(entity.Species, "  "))
}

func TestMatcherMultiwordPrefersLongest(t *testing.T) {
	tables := Default()
	tables.Species = []string{"бурый медведь", "медведь"}
	m := Compile(tables)

	tokens := Tokenize("бурый медведь")
	n, lemma, ok := m.MatchTerm(entity.Species, tokens, 0)
	require.True(t, ok)
	assert.Equal(t, 2, n)
	assert.Equal(t, "бурый медведь", lemma)

	// Punctuation between the words breaks the phrase.
	tokens = Tokenize("бурый. медведь")
	_, _, ok = m.MatchTerm(entity.Species, tokens, 0)
	assert.False(t, ok)
}

func TestMatcherFuzzy(t *testing.T) {
	tokens := Tokenize("крокадил")

	exact := Compile(Default())
	_, _, ok := exact.MatchTerm(entity.Species, tokens, 0)
	assert.False(t, ok, "fuzzy matching must be opt-in")

	fuzzy := Compile(Default(), WithFuzzyThreshold(0.9))
	_, lemma, ok := fuzzy.MatchTerm(entity.Species, tokens, 0)
	require.True(t, ok)
	assert.Equal(t, "крокодил", lemma)

	_, lemma, ok = fuzzy.MatchTerm(entity.Species, Tokenize("левой"), 0)
	assert.False(t, ok, "short lemma %q matched fuzzily", lemma)
}

func TestMatcherUnits(t *testing.T) {
	m := Compile(Default())
	tokens := Tokenize("42 килограмма 4 метра 30 сантиметров 28 градусов 36°C")

	assert.True(t, m.IsUnit(entity.Weight, tokens[1]))
	assert.False(t, m.IsUnit(entity.Length, tokens[1]))
	assert.True(t, m.IsUnit(entity.Length, tokens[3]))
	assert.True(t, m.IsUnit(entity.Length, tokens[5]))
	assert.True(t, m.IsUnit(entity.Temperature, tokens[7]))
	assert.True(t, m.IsUnit(entity.Temperature, tokens[9]))
	assert.False(t, m.IsUnit(entity.Weight, tokens[0]), "numbers are never units")
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexicon.yaml")
	content := `
species:
  - капибара
  - тапир
inflections:
  тапир: [тапира]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tables, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"капибара", "тапир"}, tables.Species)
	assert.Equal(t, Default().Foods, tables.Foods)
	assert.Contains(t, tables.Inflections, "лев")
	assert.Equal(t, []string{"тапира"}, tables.Inflections["тапир"])
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	tables, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Species, tables.Species)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
