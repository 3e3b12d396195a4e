package schema

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultLabel derives a human label from a field key: the first letter is
// upper-cased and camelCase boundaries, underscores and dots become spaces.
//
//	firstName     -> First Name
//	address.city  -> Address city
//	release_year  -> Release year
func DefaultLabel(key string) string {
	if key == "" {
		return ""
	}
	var b strings.Builder
	prevLower := false
	for _, r := range key {
		switch {
		case r == '_' || r == '.' || r == '-':
			b.WriteRune(' ')
			prevLower = false
			continue
		case unicode.IsUpper(r) && prevLower:
			b.WriteRune(' ')
		}
		b.WriteRune(r)
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
	}
	s := strings.Join(strings.Fields(b.String()), " ")
	if s == "" {
		return ""
	}
	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(first)) + s[size:]
}
