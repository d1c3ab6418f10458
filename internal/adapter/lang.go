package adapter

import (
	"strings"

	"golang.org/x/text/language"
)

// DefaultLanguage is used when a caller sends no usable language hint.
var DefaultLanguage = language.English

// ParseLanguage normalizes a caller's language hint such as "es", "pt-BR"
// or "en_GB". Empty or invalid hints yield DefaultLanguage.
func ParseLanguage(hint string) language.Tag {
	hint = strings.ReplaceAll(strings.TrimSpace(hint), "_", "-")
	if hint == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(hint)
	if err != nil || tag == language.Und {
		return DefaultLanguage
	}
	return tag
}

// LanguageCode returns the two-letter base language of a hint, e.g. "pt"
// for "pt-BR".
func LanguageCode(hint string) string {
	base, _ := ParseLanguage(hint).Base()
	return base.String()
}
