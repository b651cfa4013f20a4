package reason

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrUnparsed marks reasoner output that could not be interpreted as the
// expected JSON shape. Callers apply their documented local fallback;
// parsing differences must never silently change business logic.
var ErrUnparsed = errors.New("reason: unparsed model output")

// ExtractJSON interprets raw model output as JSON into v. It strips
// markdown fences and, failing a direct parse, retries on the first
// balanced object in the text. Any failure yields ErrUnparsed.
func ExtractJSON(raw string, v any) error {
	cleaned := CleanJSON(raw)
	if cleaned == "" {
		return ErrUnparsed
	}
	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}
	if obj := firstObject(cleaned); obj != "" {
		if err := json.Unmarshal([]byte(obj), v); err == nil {
			return nil
		}
	}
	return ErrUnparsed
}

// CleanJSON strips markdown fences and surrounding whitespace.
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// firstObject returns the first balanced {...} block, ignoring braces
// inside JSON strings.
func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
