// Package normalize canonicalizes user-entered identity fields before
// they are stored or compared.
package normalize

import "strings"

// Email trims and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace and keeps case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Team trims and uppercases a team id so "rc" and "RC" compare equal.
func Team(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
