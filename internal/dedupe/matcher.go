// Package dedupe classifies candidate question texts against the stored
// corpus as unique, exact duplicates, or fuzzy duplicates.
package dedupe

import (
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// Similarity returns the token-set similarity of two strings in [0,100].
// The comparison is order-insensitive: it tokenizes both strings, compares
// the shared token set against each side's remainder, and scores the best
// alignment. "the cat sat on the mat" and "on the mat the cat sat" score 100.
func Similarity(a, b string) int {
	return fuzzy.TokenSetRatio(a, b)
}
