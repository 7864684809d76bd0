// Package textclean strips characters that must never reach the datastore.
package textclean

import "strings"

// Sanitize removes NUL and other C0 control characters, keeping tab, newline
// and carriage return. Invalid UTF-8 sequences are replaced with U+FFFD.
func Sanitize(text string) string {
	text = strings.ToValidUTF8(text, "�")
	return strings.Map(func(r rune) rune {
		if IsControl(r) {
			return -1
		}
		return r
	}, text)
}

// IsControl reports whether r is a C0 control character other than tab,
// newline or carriage return.
func IsControl(r rune) bool {
	return r < 0x20 && r != '\t' && r != '\n' && r != '\r'
}

// CollapseSpace replaces every run of whitespace with a single space and trims the result.
func CollapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
