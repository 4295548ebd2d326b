package bing

import "strings"

// DefaultLocale is used when no language preference is configured.
const DefaultLocale = "en-US"

// localeOverrides maps bare language tags to the culture the provider expects.
var localeOverrides = map[string]string{
	"fr": "fr-FR",
	"de": "de-DE",
}

// MapLocale resolves a language preference to a provider culture code.
func MapLocale(locale string) string {
	if locale == "" {
		return DefaultLocale
	}
	if mapped, ok := localeOverrides[strings.ToLower(locale)]; ok {
		return mapped
	}
	return locale
}

// splitCulture splits "en-US" into ("en-US", "US"). The region is empty when
// the culture has no region part.
func splitCulture(culture string) (string, string) {
	_, region, found := strings.Cut(culture, "-")
	if !found {
		return culture, ""
	}
	return culture, region
}
