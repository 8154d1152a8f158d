package statstable

import (
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"
)

var nonIdentifier = regexp.MustCompile("[^a-zA-Z0-9]+")

// SanitizeName turns an arbitrary column or outcome name into a safe
// identifier fragment: non-ASCII letters are transliterated, everything
// that is not alphanumeric collapses to a single underscore. Composed
// counter names like "label_host" stay parseable because the fragments
// themselves never gain stray separators.
func SanitizeName(name string) string {
	processed := unidecode.Unidecode(name)
	processed = nonIdentifier.ReplaceAllString(processed, "_")
	processed = strings.ReplaceAll(processed, "__", "_")
	return strings.Trim(processed, "_")
}

// FeatureName composes the output feature name for one counter of one
// selected column, e.g. ("label", "host") -> "label_host".
func FeatureName(counter, column string) string {
	return SanitizeName(counter) + "_" + SanitizeName(column)
}
