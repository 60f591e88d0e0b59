package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls a JSON object or array out of an LLM completion,
// tolerating markdown code fences, preamble text, and trailing commentary.
// The returned slice is valid JSON or an error is returned.
func ExtractJSON(content string) (json.RawMessage, error) {
	s := stripFences(content)

	// Scan for the first balanced object or array.
	start := -1
	var open, closeCh byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			open = s[i]
			closeCh = '}'
			if open == '[' {
				closeCh = ']'
			}
			break
		}
	}
	if start == -1 {
		return nil, fmt.Errorf("llm: no JSON found in completion")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == open:
			depth++
		case !inString && c == closeCh:
			depth--
			if depth == 0 {
				candidate := s[start : i+1]
				if !json.Valid([]byte(candidate)) {
					return nil, fmt.Errorf("llm: extracted JSON is invalid")
				}
				return json.RawMessage(candidate), nil
			}
		}
	}

	return nil, fmt.Errorf("llm: unbalanced JSON in completion")
}

// DecodeJSON extracts and unmarshals a completion into v.
func DecodeJSON(content string, v any) error {
	raw, err := ExtractJSON(content)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("llm: unmarshal completion: %w", err)
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	// Drop the opening fence line (```json, ```html, ...) and a trailing ```.
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// StripCodeFences removes a surrounding markdown code fence from generated
// file content, leaving other text untouched.
func StripCodeFences(code string) string {
	return stripFences(code)
}
