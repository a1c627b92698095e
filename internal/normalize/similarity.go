package normalize

import (
	"math"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Score computes a 0-100 similarity ratio between two strings based on
// Levenshtein edit distance: 100 means identical, 0 means nothing in common.
func Score(a, b string) int {
	if a == b {
		return 100
	}
	lenA := utf8.RuneCountInString(a)
	lenB := utf8.RuneCountInString(b)
	longest := lenA
	if lenB > longest {
		longest = lenB
	}
	if longest == 0 {
		return 100
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)
	distance := dmp.DiffLevenshtein(diffs)
	ratio := 1 - float64(distance)/float64(longest)
	if ratio < 0 {
		ratio = 0
	}
	return int(math.Round(ratio * 100))
}
