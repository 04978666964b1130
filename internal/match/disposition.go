package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Extractor derives a disposition label from activity free text.
//
// Two passes: an explicit prefix marker (text following it wins verbatim),
// then a catalog scan where both sides are normalized (diacritics stripped,
// separators collapsed) and the first catalog label contained in the text
// wins. No match keeps the raw text with an empty label.
type Extractor struct {
	prefix  string
	catalog []string
	normed  []string
}

func NewExtractor(prefix string, catalog []string) *Extractor {
	e := &Extractor{prefix: prefix, catalog: catalog}
	e.normed = make([]string, len(catalog))
	for i, label := range catalog {
		e.normed[i] = normalizeLabel(label)
	}
	return e
}

// Extract returns the derived label (empty when none) and the raw text.
func (e *Extractor) Extract(text string) (label, raw string) {
	raw = strings.TrimSpace(text)
	if raw == "" {
		return "", ""
	}

	if e.prefix != "" {
		if idx := strings.Index(raw, e.prefix); idx >= 0 {
			rest := raw[idx+len(e.prefix):]
			if nl := strings.IndexAny(rest, "\r\n"); nl >= 0 {
				rest = rest[:nl]
			}
			if rest = strings.TrimSpace(rest); rest != "" {
				return rest, raw
			}
		}
	}

	normText := normalizeLabel(raw)
	for i, n := range e.normed {
		if n != "" && strings.Contains(normText, n) {
			return e.catalog[i], raw
		}
	}
	return "", raw
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeLabel upper-cases, strips diacritics and collapses every run of
// non-alphanumeric characters into a single underscore.
func normalizeLabel(s string) string {
	stripped, _, err := transform.String(stripMarks, s)
	if err != nil {
		stripped = s
	}
	stripped = strings.ToUpper(stripped)

	var b strings.Builder
	lastSep := true // also trims leading separators
	for _, r := range stripped {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSep = false
			continue
		}
		if !lastSep {
			b.WriteRune('_')
			lastSep = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}
