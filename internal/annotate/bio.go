package annotate

import (
	"strings"

	"github.com/hurttlocker/zoonotes/internal/entity"
)

// TokenLabel is one classified subword token. Start and End are rune
// offsets; special tokens carry an empty span and are ignored.
type TokenLabel struct {
	Label string
	Start int
	End   int
}

// DecodeBIO folds per-token BIO labels ("B-PER", "I-PER", "O") into entity
// spans. An I- tag that does not continue an open span of the same type
// starts a new one. Tags that KindForTag does not know are treated as "O".
func DecodeBIO(text string, labels []TokenLabel) []entity.Entity {
	runes := []rune(text)
	var (
		out     []entity.Entity
		open    bool
		curKind entity.Kind
		curFrom int
		curTo   int
	)

	flush := func() {
		if open && curTo > curFrom {
			out = append(out, entity.Entity{
				Text:  string(runes[curFrom:curTo]),
				Kind:  curKind,
				Start: curFrom,
				End:   curTo,
			})
		}
		open = false
	}

	for _, tl := range labels {
		if tl.End <= tl.Start || tl.Start < 0 || tl.End > len(runes) {
			continue
		}
		prefix, tag := splitLabel(tl.Label)
		kind, known := KindForTag(tag)
		if prefix == "O" || !known {
			flush()
			continue
		}

		continues := open && prefix == "I" && kind == curKind
		// Subword pieces of one word ("##ов") arrive glued to the previous
		// token; treat them as continuations whatever their prefix says.
		if open && kind == curKind && tl.Start == curTo && !startsWord(runes, tl.Start) {
			continues = true
		}
		if continues {
			curTo = tl.End
			continue
		}
		flush()
		open, curKind, curFrom, curTo = true, kind, tl.Start, tl.End
	}
	flush()
	return out
}

func splitLabel(label string) (prefix, tag string) {
	label = strings.TrimSpace(label)
	if label == "" || label == "O" {
		return "O", ""
	}
	if i := strings.IndexAny(label, "-_"); i == 1 {
		return strings.ToUpper(label[:1]), label[2:]
	}
	// Bare tags ("PER") behave like IO tagging.
	return "I", label
}

func startsWord(runes []rune, at int) bool {
	if at == 0 {
		return true
	}
	prev := runes[at-1]
	return prev == ' ' || prev == '\t' || prev == '\n'
}
