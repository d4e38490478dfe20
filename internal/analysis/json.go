package analysis

import (
	"errors"
)

var (
	errNoJSONObject = errors.New("no JSON object found in response")
	errNoJSONArray  = errors.New("no JSON array found in response")
)

// extractJSONObject returns the first balanced JSON object embedded in
// free text. Workers frequently wrap JSON in prose or markdown fences, so
// the scanner skips everything up to the first '{' and tracks nesting
// from there, honoring string literals and escapes.
func extractJSONObject(s string) ([]byte, error) {
	return extractBalanced(s, '{', '}', errNoJSONObject)
}

// extractJSONArray returns the first balanced JSON array embedded in free text
func extractJSONArray(s string) ([]byte, error) {
	return extractBalanced(s, '[', ']', errNoJSONArray)
}

func extractBalanced(s string, open, close byte, notFound error) ([]byte, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if start < 0 {
			if c == open {
				start = i
				depth = 1
			}
			continue
		}
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// characters inside strings don't affect nesting
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return []byte(s[start : i+1]), nil
			}
		}
	}
	return nil, notFound
}
