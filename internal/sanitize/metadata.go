// Package sanitize cleans untrusted metadata before it is persisted or
// forwarded to a payment provider.
package sanitize

import (
	"html"
	"regexp"
	"unicode/utf8"
)

const (
	DefaultMaxDepth     = 10
	DefaultMaxEntries   = 100
	DefaultMaxStringLen = 10000
)

var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,255}$`)

// dangerousPatterns are scrubbed from string values before tag stripping.
// Script blocks are removed with their content.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?is)<script[^>]*>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)\bon\w+\s*=`),
	regexp.MustCompile(`(?i)data:text/html`),
	regexp.MustCompile(`(?i)vbscript:`),
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Sanitizer recursively cleans metadata maps against depth, size and content
// limits. The zero limits fall back to the package defaults.
type Sanitizer struct {
	MaxDepth     int
	MaxEntries   int
	MaxStringLen int
}

func New() *Sanitizer {
	return &Sanitizer{
		MaxDepth:     DefaultMaxDepth,
		MaxEntries:   DefaultMaxEntries,
		MaxStringLen: DefaultMaxStringLen,
	}
}

// Sanitize cleans a metadata map. Keys failing the naming pattern are dropped
// silently, oversized collections collapse to empty, and values nested past
// the depth ceiling are dropped.
func (s *Sanitizer) Sanitize(meta map[string]any) map[string]any {
	cleaned, ok := s.sanitizeValue(meta, 1)
	if !ok {
		return map[string]any{}
	}
	m, ok := cleaned.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}

func (s *Sanitizer) sanitizeValue(v any, depth int) (any, bool) {
	if depth > s.maxDepth() {
		return nil, false
	}

	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any)
		if len(val) > s.maxEntries() {
			return out, true
		}
		for key, inner := range val {
			if !keyPattern.MatchString(key) {
				continue
			}
			cleaned, ok := s.sanitizeValue(inner, depth+1)
			if !ok {
				continue
			}
			out[key] = cleaned
		}
		return out, true

	case []any:
		if len(val) > s.maxEntries() {
			return []any{}, true
		}
		out := make([]any, 0, len(val))
		for _, inner := range val {
			cleaned, ok := s.sanitizeValue(inner, depth+1)
			if !ok {
				continue
			}
			out = append(out, cleaned)
		}
		return out, true

	case string:
		return s.sanitizeString(val), true

	case bool, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return val, true

	default:
		// Anything else (nil, structs, channels) is dropped.
		return nil, false
	}
}

func (s *Sanitizer) sanitizeString(in string) string {
	if limit := s.maxStringLen(); len(in) > limit {
		// Back off to a rune boundary so the cut never leaves an
		// invalid UTF-8 tail.
		for limit > 0 && !utf8.RuneStart(in[limit]) {
			limit--
		}
		in = in[:limit]
	}
	for _, pattern := range dangerousPatterns {
		in = pattern.ReplaceAllString(in, "")
	}
	in = tagPattern.ReplaceAllString(in, "")
	return html.EscapeString(in)
}

func (s *Sanitizer) maxDepth() int {
	if s.MaxDepth > 0 {
		return s.MaxDepth
	}
	return DefaultMaxDepth
}

func (s *Sanitizer) maxEntries() int {
	if s.MaxEntries > 0 {
		return s.MaxEntries
	}
	return DefaultMaxEntries
}

func (s *Sanitizer) maxStringLen() int {
	if s.MaxStringLen > 0 {
		return s.MaxStringLen
	}
	return DefaultMaxStringLen
}
