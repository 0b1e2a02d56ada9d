package catalog

import "strings"

// sequenceRatio computes the normalized character-sequence similarity of
// two strings, case-insensitive: 2*M/T where M is the total size of the
// longest matching blocks and T the combined length. Identical strings
// score 1.0, disjoint strings 0.0.
func sequenceRatio(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	matches := matchingRunes(ra, rb, 0, len(ra), 0, len(rb))
	return 2.0 * float64(matches) / float64(total)
}

// matchingRunes sums the sizes of the longest matching blocks, recursing
// on the unmatched regions left and right of each block.
func matchingRunes(a, b []rune, alo, ahi, blo, bhi int) int {
	ai, bj, size := longestMatch(a, b, alo, ahi, blo, bhi)
	if size == 0 {
		return 0
	}
	sum := size
	sum += matchingRunes(a, b, alo, ai, blo, bj)
	sum += matchingRunes(a, b, ai+size, ahi, bj+size, bhi)
	return sum
}

// longestMatch finds the longest block of runes common to a[alo:ahi] and
// b[blo:bhi], preferring the earliest position on ties.
func longestMatch(a, b []rune, alo, ahi, blo, bhi int) (besti, bestj, size int) {
	besti, bestj = alo, blo

	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		newJ2len := make(map[int]int)
		for j := blo; j < bhi; j++ {
			if a[i] != b[j] {
				continue
			}
			k := j2len[j-1] + 1
			newJ2len[j] = k
			if k > size {
				besti, bestj, size = i-k+1, j-k+1, k
			}
		}
		j2len = newJ2len
	}
	return besti, bestj, size
}
