package service

import (
	"regexp"
	"strings"
)

var (
	leadingVersionRe = regexp.MustCompile(`^\d+(?:\.\d+)*\.*\s*`)
	nonASCIIRe       = regexp.MustCompile(`[^\x00-\x7F]+`)
	disallowedRe     = regexp.MustCompile(`[^\w\s-]`)
	markupRe         = regexp.MustCompile(`<[^<]+?>`)
)

// SanitizeName turns a process name into a record name accepted by the EA
// repository: "3.1. Plan demand" -> "Plan demand".
func SanitizeName(name string) string {
	s := leadingVersionRe.ReplaceAllString(strings.TrimSpace(name), "")
	s = nonASCIIRe.ReplaceAllString(s, " ")
	s = disallowedRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ";", ",")
	return strings.TrimSpace(s)
}

// StripMarkup removes HTML tags from rich text descriptions.
func StripMarkup(text string) string {
	return markupRe.ReplaceAllString(text, "")
}

// IsPlaceholder reports whether name equals or contains the placeholder label.
func IsPlaceholder(name string) bool {
	return strings.Contains(strings.ToLower(strings.TrimSpace(name)), PlaceholderName)
}

// NormalizeOwnerName strips the "GPO" marker used in owner group names.
func NormalizeOwnerName(name string) string {
	return strings.TrimSpace(strings.ReplaceAll(name, "GPO", ""))
}
