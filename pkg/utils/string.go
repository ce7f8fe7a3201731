package utils

import "unicode/utf8"

// Ellipsis is appended to strings shortened by Truncate.
const Ellipsis = "..."

// Truncate shortens s to at most maxLen runes and appends Ellipsis when
// anything was cut. Multi-byte characters are never split.
func Truncate(s string, maxLen int) string {
	if maxLen < 0 {
		maxLen = 0
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}

	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i] + Ellipsis
		}
		n++
	}
	return s
}
