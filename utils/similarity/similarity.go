// Package similarity scores how alike two channel names are. Used to reject
// fuzzy guide matches that share letters but name different channels.
package similarity

import (
	"strings"
	"unicode"
)

// Score returns the Levenshtein similarity of the normalized forms, between
// 0.0 (nothing in common) and 1.0 (identical).
func Score(a, b string) float64 {
	a = normalize(a)
	b = normalize(b)
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	distance := levenshtein([]rune(a), []rune(b))
	longest := max(len([]rune(a)), len([]rune(b)))
	return 1.0 - float64(distance)/float64(longest)
}

// normalize lowercases, spells out "&" (channel names like "A&E" appear both
// ways), turns separators into spaces, and drops everything else.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "&", " and ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '.' || r == '-' || r == '_' || r == '|':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// levenshtein computes the edit distance with a rolling pair of rows.
func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
