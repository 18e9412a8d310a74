package plate

import (
	"strings"

	"golang.org/x/text/width"
)

// Normalize folds full-width forms, uppercases the text and drops every rune
// outside [A-Z0-9]. The result is the key used for parsing and aggregation.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	folded := strings.ToUpper(width.Fold.String(text))
	var b strings.Builder
	b.Grow(len(folded))
	for i := 0; i < len(folded); i++ {
		c := folded[i]
		if isUpper(c) || isDigit(c) {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// HasLetter reports whether s contains an ASCII letter.
func HasLetter(s string) bool {
	for i := 0; i < len(s); i++ {
		if isUpper(s[i]) || (s[i] >= 'a' && s[i] <= 'z') {
			return true
		}
	}
	return false
}

// HasDigit reports whether s contains an ASCII digit.
func HasDigit(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func lettersOnly(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if isUpper(s[i]) {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func digitsOnly(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if isDigit(s[i]) {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// levenshtein returns the edit distance between two ASCII strings using two
// rolling rows.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}
	if b == "" {
		return len(a)
	}
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
			cur[j] = min(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
