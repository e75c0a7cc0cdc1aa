// Package email derives display values from email addresses.
package email

import (
	"strings"
	"unicode"
)

// NameFromAddress turns the local part of an address into a display name:
// "pat.doe+portal@example.com" becomes "Pat Doe". Tags after '+' are
// dropped. Returns "" when the local part carries no letters.
func NameFromAddress(addr string) string {
	local, _, _ := strings.Cut(addr, "@")
	local, _, _ = strings.Cut(local, "+")

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		if !strings.ContainsFunc(p, unicode.IsLetter) {
			continue
		}
		words = append(words, capitalize(p))
	}
	return strings.Join(words, " ")
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
