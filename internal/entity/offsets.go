package entity

import "unicode/utf8"

// RuneOffsets maps every byte offset of text to the rune offset it falls in.
// The table has one extra slot so the end-of-text offset maps too. Offsets
// inside a multi-byte rune map to that rune.
func RuneOffsets(text string) []int {
	idx := make([]int, len(text)+1)
	r := 0
	for i := 0; i < len(text); {
		_, size := utf8.DecodeRuneInString(text[i:])
		for k := 0; k < size; k++ {
			idx[i+k] = r
		}
		i += size
		r++
	}
	idx[len(text)] = r
	return idx
}
