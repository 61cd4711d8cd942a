package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ugcPolicy   = bluemonday.UGCPolicy()
	plainPolicy = bluemonday.StrictPolicy()
)

// Sanitize cleans user HTML (post and comment bodies) to prevent XSS attacks.
func Sanitize(input string) string {
	return ugcPolicy.Sanitize(input)
}

// SanitizePlain strips every tag and trims, for single-line fields such as
// titles. Entities are decoded before the policy runs so encoded markup is
// stripped too; the result is HTML-escaped text.
func SanitizePlain(input string) string {
	return strings.TrimSpace(plainPolicy.Sanitize(html.UnescapeString(input)))
}
