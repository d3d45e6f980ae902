package lexicon

import (
	"unicode"
)

// TokenType classifies a token.
type TokenType int

const (
	WordToken TokenType = iota
	NumberToken
	SymbolToken
)

func (t TokenType) String() string {
	switch t {
	case WordToken:
		return "word"
	case NumberToken:
		return "number"
	case SymbolToken:
		return "symbol"
	}
	return "unknown"
}

// Token is a word, number or unit symbol with rune offsets into the source.
type Token struct {
	Text  string
	Type  TokenType
	Start int
	End   int
	// Key is the normalized lookup key (see Key).
	Key string
	// Folded is the case-folded surface form, used for fuzzy comparison.
	Folded string
	// Adjacent is true when only whitespace separates the token from the
	// previous one (always true for the first token).
	Adjacent bool
}

// Tokenize splits text into words, numbers ("42", "2,5", "1.65") and the
// unit symbols "°", "°C" and "%". Punctuation is dropped but breaks
// adjacency between the surrounding tokens.
func Tokenize(text string) []Token {
	runes := []rune(text)
	var tokens []Token
	adjacent := true

	emit := func(typ TokenType, start, end int, key string) {
		surface := string(runes[start:end])
		if key == "" {
			key = Key(surface)
		}
		tokens = append(tokens, Token{
			Text:     surface,
			Type:     typ,
			Start:    start,
			End:      end,
			Key:      key,
			Folded:   Fold(surface),
			Adjacent: adjacent,
		})
		adjacent = true
	}

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r):
			j := i
			for j < len(runes) && unicode.IsDigit(runes[j]) {
				j++
			}
			if j+1 < len(runes) && (runes[j] == '.' || runes[j] == ',') && unicode.IsDigit(runes[j+1]) {
				j++
				for j < len(runes) && unicode.IsDigit(runes[j]) {
					j++
				}
			}
			emit(NumberToken, i, j, string(runes[i:j]))
			i = j
		case unicode.IsLetter(r):
			j := i
			for j < len(runes) {
				if unicode.IsLetter(runes[j]) || unicode.Is(unicode.Mn, runes[j]) {
					j++
					continue
				}
				// Keep hyphenated compounds ("кое-где") as one word.
				if runes[j] == '-' && j+1 < len(runes) && unicode.IsLetter(runes[j+1]) {
					j++
					continue
				}
				break
			}
			emit(WordToken, i, j, "")
			i = j
		case r == '°':
			j := i + 1
			key := "°"
			if j < len(runes) && isCelsiusLetter(runes[j]) {
				j++
				key = "°c"
			}
			emit(SymbolToken, i, j, key)
			i = j
		case r == '%':
			emit(SymbolToken, i, i+1, "%")
			i++
		default:
			adjacent = false
			i++
		}
	}
	return tokens
}

// isCelsiusLetter accepts Latin and Cyrillic "C", which ASR output mixes freely.
func isCelsiusLetter(r rune) bool {
	switch r {
	case 'C', 'c', 'С', 'с':
		return true
	}
	return false
}
