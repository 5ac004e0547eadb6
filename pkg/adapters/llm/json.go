package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// errNoJSON is returned when a reply holds no JSON object
var errNoJSON = errors.New("no JSON object in reply")

// decodeReply decodes the first JSON object in an LLM reply into v
func decodeReply(reply string, v interface{}) error {
	raw, err := extractJSON(reply)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to decode reply: %w", err)
	}
	return nil
}

// extractJSON returns the outermost JSON object in s, skipping code fences
// and surrounding prose
func extractJSON(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", errNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("%w: unbalanced braces", errNoJSON)
}
