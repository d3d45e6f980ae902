package lexicon

import (
	"strings"
	"unicode/utf8"

	"github.com/hurttlocker/zoonotes/internal/entity"
)

// shortStemRunes is the longest stem that is not trusted on its own. Short
// Russian stems collide across unrelated words ("лев" and "левая", "корм" and
// "кормит"), so such terms only match the word forms returned by Forms or
// listed in Tables.Inflections.
const shortStemRunes = 4

// shortStem reports whether word's lookup key is too short to match by stem.
func shortStem(word string) bool {
	return utf8.RuneCountInString(Key(word)) <= shortStemRunes
}

// Forms returns the folded surface forms a single-word lemma of the given kind
// is expected to take: the lemma itself plus regular case endings for nouns
// (species, food) or person, number and gender endings for verbs and
// adjectives (behavior, health status). Irregular paradigms (fleeting vowels,
// suppletion) belong in Tables.Inflections.
func Forms(kind entity.Kind, lemma string) []string {
	w := Fold(strings.TrimSpace(lemma))
	if w == "" {
		return nil
	}
	var forms []string
	switch kind {
	case entity.Species, entity.Food:
		forms = nounForms(w)
	case entity.Behavior, entity.HealthStatus:
		forms = verbalForms(w)
	}
	return dedupe(append([]string{w}, forms...))
}

func nounForms(w string) []string {
	switch {
	case strings.HasSuffix(w, "ые"), strings.HasSuffix(w, "ие"):
		base, v := trim(w, 2), string([]rune(w)[utf8.RuneCountInString(w)-2])
		return suffixed(base, v+"х", v+"м", v+"ми", "ая", "ое", "ой", "ую")
	case strings.HasSuffix(w, "а"):
		base := trim(w, 1)
		return suffixed(base, "", pluralVowel(base), "е", "у", "ой", "ою", "ам", "ами", "ах")
	case strings.HasSuffix(w, "я"):
		base := trim(w, 1)
		return suffixed(base, "й", "и", "е", "ю", "ей", "ею", "ям", "ями", "ях")
	case strings.HasSuffix(w, "о"):
		base := trim(w, 1)
		return suffixed(base, "а", "у", "ом", "е")
	case strings.HasSuffix(w, "ь"), strings.HasSuffix(w, "й"):
		base := trim(w, 1)
		return suffixed(base, "я", "ю", "ем", "е", "и", "ей", "ев", "ям", "ями", "ях")
	case strings.HasSuffix(w, "ы"), strings.HasSuffix(w, "и"):
		// Plural lemmas ("фрукты", "овощи") also appear in the singular.
		base := trim(w, 1)
		return suffixed(base, "", "а", "у", "ом", "ем", "е", "ов", "ей", "ам", "ами", "ах")
	case endsInConsonant(w):
		return suffixed(w, "а", "у", "ом", "ем", "е", pluralVowel(w), "ов", "ей", "ам", "ами", "ах")
	}
	// Indeclinable ("кенгуру", "шимпанзе").
	return nil
}

func verbalForms(w string) []string {
	switch {
	case strings.HasSuffix(w, "ется"), strings.HasSuffix(w, "ится"):
		base := trim(w, 4)
		return suffixed(base, thirdPlural(base, strings.HasSuffix(w, "ится"))+"ся")
	case strings.HasSuffix(w, "ет"), strings.HasSuffix(w, "ит"):
		base := trim(w, 2)
		return suffixed(base, thirdPlural(base, strings.HasSuffix(w, "ит")))
	case strings.HasSuffix(w, "ый"), strings.HasSuffix(w, "ий"), strings.HasSuffix(w, "ой"):
		base := trim(w, 2)
		v := pluralVowel(base)
		return suffixed(base, "ая", "ое", v+"е", "ого", "ому", v+"м", v+"х", v+"ми", "ую", "ой", "ою",
			"", "а", "о", v)
	case strings.HasSuffix(w, "ая"):
		base := trim(w, 2)
		v := pluralVowel(base)
		return suffixed(base, "ой", "ою", "ую", v+"е", v+"х", v+"м", v+"ми")
	case endsInConsonant(w):
		// Short predicative adjectives ("здоров", "ранен").
		return suffixed(w, "а", "о", "ы")
	}
	return nil
}

// thirdPlural returns the third-person plural ending matching a singular
// "-ет"/"-ит" verb with the given base.
func thirdPlural(base string, second bool) string {
	last, _ := utf8.DecodeLastRuneInString(base)
	switch {
	case second && strings.ContainsRune("жчшщ", last):
		return "ат"
	case second:
		return "ят"
	case strings.ContainsRune(vowels, last):
		return "ют"
	}
	return "ут"
}

const vowels = "аеиоуыэюяё"

// pluralVowel applies the spelling rule that puts "и" instead of "ы" after
// velars and sibilants.
func pluralVowel(base string) string {
	last, _ := utf8.DecodeLastRuneInString(base)
	if strings.ContainsRune("гкхжчшщ", last) {
		return "и"
	}
	return "ы"
}

func endsInConsonant(w string) bool {
	last, _ := utf8.DecodeLastRuneInString(w)
	return last >= 'а' && last <= 'я' && !strings.ContainsRune(vowels+"ьъй", last)
}

func trim(w string, n int) string {
	r := []rune(w)
	if n > len(r) {
		return ""
	}
	return string(r[:len(r)-n])
}

func suffixed(base string, endings ...string) []string {
	if base == "" {
		return nil
	}
	out := make([]string, 0, len(endings))
	for _, e := range endings {
		out = append(out, base+e)
	}
	return out
}

func dedupe(words []string) []string {
	seen := make(map[string]bool, len(words))
	out := words[:0]
	for _, w := range words {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}
