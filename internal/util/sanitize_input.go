package util

import (
	"html"
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	codePattern  = regexp.MustCompile(`^[0-9]{6}$`)
)

// SanitizeInput escapes HTML/script-like characters
func SanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return html.EscapeString(s)
}

// ContainsSuspicious flags input carrying script-injection markers.
func ContainsSuspicious(s string) bool {
	badChars := []string{"<", ">", "$", "{", "}", "script", "onerror", "onload"}
	for _, c := range badChars {
		if strings.Contains(strings.ToLower(s), c) {
			return true
		}
	}
	return false
}

// IsValidEmail reports whether s looks like a deliverable email address.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// IsValidPhone accepts E.164-style numbers, optionally prefixed with '+'.
func IsValidPhone(s string) bool {
	normalized := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(s)
	return phonePattern.MatchString(normalized)
}

// IsValidCode reports whether s is a 6-digit one-time code.
func IsValidCode(s string) bool {
	return codePattern.MatchString(strings.TrimSpace(s))
}

// NormalizePhone strips separators so the same number always maps to one identifier.
func NormalizePhone(s string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(s))
}
