// Package normalizer expands a search term into the set of lowercase
// orthographic variants used for substring matching. German umlauts and ß
// are folded two ways: by discarding combining marks after Unicode
// decomposition (ä -> a) and by the conventional digraph substitutions
// (ä -> ae, ß -> ss).
package normalizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var digraphReplacer = strings.NewReplacer(
	"ä", "ae",
	"ö", "oe",
	"ü", "ue",
	"ß", "ss",
)

// Variants returns the deduplicated set of lowercase spelling variants of
// term, in deterministic order: the plain lowercase form first, then the
// diacritic-stripped form, then the digraph-substituted form. Blank input
// yields an empty set.
func Variants(term string) []string {
	lowered := strings.ToLower(strings.TrimSpace(term))
	if lowered == "" {
		return nil
	}

	candidates := []string{
		lowered,
		stripDiacritics(lowered),
		digraphReplacer.Replace(lowered),
	}

	seen := make(map[string]bool, len(candidates))
	variants := make([]string, 0, len(candidates))
	for _, v := range candidates {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		variants = append(variants, v)
	}

	return variants
}

// stripDiacritics decomposes the string and drops combining marks, so that
// "göttingen" becomes "gottingen". ß has no decomposition and passes through.
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return stripped
}
