package splitter

import "strings"

// runeIndex maps code point offsets of a text to byte offsets.
type runeIndex struct {
	text    string
	offsets []int
}

func newRuneIndex(text string) *runeIndex {
	offsets := make([]int, 0, len(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(text))
	return &runeIndex{text: text, offsets: offsets}
}

// find returns the code point offset of the first occurrence of piece at or
// after the code point offset from, or -1.
func (r *runeIndex) find(piece string, from int) int {
	if from < 0 {
		from = 0
	}
	if from >= len(r.offsets) {
		return -1
	}

	byteFrom := r.offsets[from]
	i := strings.Index(r.text[byteFrom:], piece)
	if i < 0 {
		return -1
	}
	return r.runeAt(byteFrom + i)
}

// findLast returns the code point offset of the last occurrence of piece
// starting within [lo, hi], or -1.
func (r *runeIndex) findLast(piece string, lo, hi int) int {
	lo = max(lo, 0)
	hi = min(hi, len(r.offsets)-1)
	if lo > hi {
		return -1
	}

	byteLo := r.offsets[lo]
	byteHi := min(r.offsets[hi]+len(piece), len(r.text))
	i := strings.LastIndex(r.text[byteLo:byteHi], piece)
	if i < 0 {
		return -1
	}
	return r.runeAt(byteLo + i)
}

// runeAt converts a byte offset on a code point boundary to a code point offset.
func (r *runeIndex) runeAt(byteOffset int) int {
	lo, hi := 0, len(r.offsets)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if r.offsets[mid] < byteOffset {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
