package languageutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Casers keep internal state, so a new one is built per call instead of sharing a package value.

func Lower(value string) string {
	return cases.Lower(language.Und).String(value)
}

func Title(value string) string {
	return cases.Title(language.English).String(value)
}

// NormalizeToken lower-cases and trims a free-form enum value coming from model output.
func NormalizeToken(value string) string {
	return Lower(strings.TrimSpace(value))
}
