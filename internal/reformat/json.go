package reformat

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var jsonFence = regexp.MustCompile("```(?:json)?\\s*")

// removes markdown formatting from the response
func cleanJSONResponse(s string) string {
	s = strings.TrimSpace(s)
	s = jsonFence.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// fixInvalidEscapes doubles backslashes that do not start a JSON escape, so
// stray sequences like \N survive decoding literally.
func fixInvalidEscapes(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i == len(s)-1 {
			sb.WriteByte(s[i])
			continue
		}
		switch next := s[i+1]; next {
		case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
			sb.WriteByte('\\')
			sb.WriteByte(next)
		default:
			sb.WriteString(`\\`)
			sb.WriteByte(next)
		}
		i++
	}
	return sb.String()
}

// extractResults returns the first array of reformatted items found in text.
func extractResults(text string) ([]Result, error) {
	text = fixInvalidEscapes(text)

	for i := 0; i < len(text); i++ {
		if text[i] != '[' && text[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			continue
		}
		if results, ok := tryExtractResults(raw); ok {
			return results, nil
		}
		i += int(dec.InputOffset()) - 1
	}
	return nil, fmt.Errorf("no valid caption JSON found in response")
}

var wrapperKeys = []string{"results", "captions", "lines", "data", "items"}

func tryExtractResults(raw json.RawMessage) ([]Result, bool) {
	var results []Result
	if err := json.Unmarshal(raw, &results); err == nil && validateResults(results) {
		return results, true
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, false
	}
	for _, key := range wrapperKeys {
		if fieldRaw, ok := wrapper[key]; ok {
			if results, ok := tryExtractResults(fieldRaw); ok {
				return results, true
			}
		}
	}
	for key, fieldRaw := range wrapper {
		if containsKey(wrapperKeys, key) {
			continue
		}
		if results, ok := tryExtractResults(fieldRaw); ok {
			return results, true
		}
	}
	return nil, false
}

func containsKey(keys []string, k string) bool {
	for _, key := range keys {
		if key == k {
			return true
		}
	}
	return false
}

func validateResults(results []Result) bool {
	for _, r := range results {
		if r.Text != "" {
			return true
		}
	}
	return false
}

// truncates a string to maxLen bytes
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
