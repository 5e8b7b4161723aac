// Package email normalizes addresses and derives display names for user profiles.
package email

import (
	"net/mail"
	"strings"
	"unicode"
)

// Normalize lowercases and trims an address so lookups are case-insensitive.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Valid reports whether address is a bare RFC 5322 address (no display name).
func Valid(address string) bool {
	parsed, err := mail.ParseAddress(address)
	return err == nil && parsed.Address == address
}

// DisplayName derives "First Last" from the local part of an address, used when
// a profile is created without an explicit name.
func DisplayName(address string) string {
	localPart := address
	if at := strings.IndexByte(address, '@'); at >= 0 {
		localPart = address[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "Usuario"
	}

	first := capitalize(parts[0])
	if len(parts) == 1 {
		return first
	}
	return first + " " + capitalize(parts[len(parts)-1])
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
