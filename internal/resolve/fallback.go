package resolve

import (
	"strings"
	"unicode"
)

// Manufacturer and class prefix tokens that appear in raw entity ids but add
// noise to a display name.
var prefixTokens = map[string]struct{}{
	"AEGS": {}, "ANVL": {}, "ARGO": {}, "BANU": {}, "CNOU": {},
	"CRUS": {}, "DRAK": {}, "ESPR": {}, "GAMA": {}, "GRIN": {},
	"KRIG": {}, "MISC": {}, "MRAI": {}, "ORIG": {}, "RSI": {},
	"TMBL": {}, "VNCL": {}, "XIAN": {}, "XNAA": {},
	"PU": {}, "NPC": {}, "AI": {},
}

// FallbackName derives a readable name from a raw identifier without any
// lookup: strip a trailing numeric suffix, drop known manufacturer prefix
// tokens, and turn separators into spaces. Deterministic, so repeated calls
// for an unresolved id render identically.
func FallbackName(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}

	parts := strings.FieldsFunc(id, func(r rune) bool {
		return r == '_' || r == '-'
	})

	// Trailing pure-numeric tokens are instance suffixes, not names.
	for len(parts) > 1 && isNumeric(parts[len(parts)-1]) {
		parts = parts[:len(parts)-1]
	}
	// Leading manufacturer/class tokens.
	for len(parts) > 1 {
		if _, ok := prefixTokens[strings.ToUpper(parts[0])]; !ok {
			break
		}
		parts = parts[1:]
	}

	if len(parts) == 0 {
		return id
	}
	return strings.Join(parts, " ")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
