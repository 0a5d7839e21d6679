package generateartifact

import (
	"errors"
	"regexp"
	"strings"
)

// ErrExtractionAmbiguous means the generator output held no document marker.
var ErrExtractionAmbiguous = errors.New("EXTRACTION_AMBIGUOUS")

// FallbackDocument is published when generation or extraction fails.
const FallbackDocument = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Fallback App</title></head>
<body><h1>Failed to generate app</h1></body>
</html>`

var (
	htmlFencePattern = regexp.MustCompile("(?is)```html[^\\n]*\\n(.*?)```")
	markerPattern    = regexp.MustCompile(`(?i)<!doctype|<html`)
	closePattern     = regexp.MustCompile(`(?i)</html>`)
)

// ExtractDocument pulls an HTML document out of raw generator output:
//  1. text that already starts with <!DOCTYPE or <html is returned trimmed;
//  2. otherwise the first ```html fence whose content starts with a marker;
//  3. otherwise everything from the first marker through the next </html>;
//  4. otherwise ErrExtractionAmbiguous.
//
// Applying it to its own output returns the same output.
func ExtractDocument(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if startsWithMarker(trimmed) {
		return trimmed, nil
	}

	for _, m := range htmlFencePattern.FindAllStringSubmatch(raw, -1) {
		content := strings.TrimSpace(m[1])
		if startsWithMarker(content) {
			return content, nil
		}
	}

	loc := markerPattern.FindStringIndex(raw)
	if loc == nil {
		return "", ErrExtractionAmbiguous
	}
	doc := raw[loc[0]:]
	if end := closePattern.FindStringIndex(doc); end != nil {
		doc = doc[:end[1]]
	}
	return strings.TrimSpace(doc), nil
}

// IsWellFormed is the minimal validity check applied after extraction.
func IsWellFormed(doc string) bool {
	lower := strings.ToLower(doc)
	return strings.Contains(lower, "<html") && strings.Contains(lower, "</html>")
}

func startsWithMarker(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html")
}
