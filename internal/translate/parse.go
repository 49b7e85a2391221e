package translate

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("```(?:json)?\\s*")

func cleanJSONResponse(s string) string {
	s = fencePattern.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// fixInvalidEscapes doubles the backslash of escapes JSON does not know, such
// as the \N caption line break, so the reply still decodes.
func fixInvalidEscapes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i == len(s)-1 {
			b.WriteByte(s[i])
			continue
		}
		next := s[i+1]
		switch next {
		case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
			b.WriteByte('\\')
		default:
			b.WriteString(`\\`)
		}
		b.WriteByte(next)
		i++
	}
	return b.String()
}

// extractItems finds the first JSON value in text holding translated items,
// either a bare array or an array under a wrapper object.
func extractItems(text string) ([]Item, error) {
	text = fixInvalidEscapes(text)
	for i := 0; i < len(text); i++ {
		if text[i] != '[' && text[i] != '{' {
			continue
		}
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&raw); err != nil {
			continue
		}
		if items, ok := itemsFrom(raw); ok {
			return items, nil
		}
	}
	return nil, errors.New("no valid translation JSON found in response")
}

func itemsFrom(raw json.RawMessage) ([]Item, bool) {
	var items []Item
	if err := json.Unmarshal(raw, &items); err == nil && hasText(items) {
		return items, true
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, false
	}
	for _, key := range []string{"results", "translations", "data", "items"} {
		if field, ok := wrapper[key]; ok {
			if items, ok := itemsFrom(field); ok {
				return items, true
			}
		}
	}
	return nil, false
}

func hasText(items []Item) bool {
	for _, it := range items {
		if it.Text != "" {
			return true
		}
	}
	return false
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
