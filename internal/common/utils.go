package common

import "strings"

// HasAny returns true if s contains any of the substrings, ignoring case.
func HasAny(s string, subs ...string) bool {
	s = strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// KeepNumeric drops every rune that cannot be part of a decimal number.
// A Unicode minus sign is folded to '-'.
func KeepNumeric(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		case r == '−':
			b.WriteByte('-')
		}
	}
	return b.String()
}
