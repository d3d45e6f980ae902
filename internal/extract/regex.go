package extract

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hurttlocker/zoonotes/internal/entity"
	"github.com/hurttlocker/zoonotes/internal/lexicon"
)

// regexPattern represents a data type pattern to match.
type regexPattern struct {
	regex *regexp.Regexp
	kind  entity.Kind
	name  string
}

// RegexExtractor finds dates, times, percentages and ages.
type RegexExtractor struct {
	patterns []*regexPattern
}

// NewRegexExtractor compiles the patterns using the month, percent and year
// words from tables.
func NewRegexExtractor(tables lexicon.Tables) *RegexExtractor {
	return &RegexExtractor{patterns: initRegexPatterns(tables)}
}

// Name implements Extractor.
func (x *RegexExtractor) Name() string { return "regex" }

// initRegexPatterns builds the patterns in emission order: date, time,
// percentage, age. Word boundaries are enforced after matching because RE2's
// \b only understands ASCII word characters.
func initRegexPatterns(t lexicon.Tables) []*regexPattern {
	months := alternation(t.MonthNames)
	percent := alternation(t.PercentWords)
	years := alternation(t.YearWords)

	patterns := []*regexPattern{
		// 01.01.2023, 1-1-23, 1 января 2023
		{
			regex: regexp.MustCompile(`\d{1,2}[./-]\d{1,2}[./-]\d{2,4}` + optional(`|\d{1,2}\s+(?i:`+months+`)\s+\d{4}`, months)),
			kind:  entity.Date,
			name:  "date",
		},
		// 14:30, 2:45
		{
			regex: regexp.MustCompile(`\d{1,2}:\d{2}`),
			kind:  entity.Time,
			name:  "time",
		},
		// 50%, 70 процентов
		{
			regex: regexp.MustCompile(`\d+(?:[.,]\d+)?%` + optional(`|\d+(?:[.,]\d+)?\s+(?i:`+percent+`)`, percent)),
			kind:  entity.Percentage,
			name:  "percentage",
		},
	}
	// 5 лет, 2 года
	if years != "" {
		patterns = append(patterns, &regexPattern{
			regex: regexp.MustCompile(`\d+\s+(?i:` + years + `)`),
			kind:  entity.Age,
			name:  "age",
		})
	}
	return patterns
}

// alternation quotes words and joins them longest-first so the leftmost-first
// RE2 semantics pick the longest inflection ("процентов" before "процент").
func alternation(words []string) string {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	sort.SliceStable(quoted, func(i, j int) bool {
		return utf8.RuneCountInString(quoted[i]) > utf8.RuneCountInString(quoted[j])
	})
	return strings.Join(quoted, "|")
}

func optional(fragment, words string) string {
	if words == "" {
		return ""
	}
	return fragment
}

// Extract implements Extractor.
func (x *RegexExtractor) Extract(_ context.Context, text string) ([]entity.Entity, error) {
	if text == "" {
		return nil, nil
	}
	idx := entity.RuneOffsets(text)

	var out []entity.Entity
	for _, p := range x.patterns {
		for _, loc := range p.regex.FindAllStringIndex(text, -1) {
			start, end := loc[0], loc[1]
			if !wordBounded(text, start, end) {
				continue
			}
			e := entity.Entity{
				Text:  text[start:end],
				Kind:  p.kind,
				Start: idx[start],
				End:   idx[end],
			}
			if p.kind.Numeric() {
				if v, ok := ParseNumeric(e.Text); ok {
					e.Value = entity.Float(v)
				}
			}
			out = append(out, e)
		}
	}
	return out, nil
}

// wordBounded reports whether text[start:end] does not start or end inside a
// word. A match ending in a non-word rune ("50%") needs no trailing boundary.
func wordBounded(text string, start, end int) bool {
	if start > 0 {
		prev, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(prev) {
			return false
		}
	}
	last, _ := utf8.DecodeLastRuneInString(text[start:end])
	if isWordRune(last) && end < len(text) {
		next, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(next) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
