// Package strings normalizes the free text and identifiers that end up in
// generated documents and operator-facing messages.
package strings

import (
	"strings"
)

// Dedupe collapses whitespace in each value, drops blanks, and removes
// repeats, keeping first-seen order. Comparison is case sensitive.
//
// Example:
//
//	Dedupe([]string{" seller  name missing", "seller name missing", ""})
//	// Returns: []string{"seller name missing"}
func Dedupe(values []string) []string {
	var out []string
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = CollapseSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// CollapseSpace trims the value and folds internal runs of whitespace into a
// single space, so free-text fields serialize identically however they were typed.
//
// Example:
//
//	CollapseSpace("  12   Main\tSt ")
//	// Returns: "12 Main St"
func CollapseSpace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// DigitsOnly strips everything except ASCII digits. Identifier fields are
// accepted with separators ("12-3456789") and stored without them.
func DigitsOnly(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
