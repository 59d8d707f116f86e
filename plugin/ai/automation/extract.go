package automation

import (
	"encoding/json"
	"strings"
)

// ExtractJSON decodes the outermost JSON object embedded in a model reply.
// It returns nil when no object can be decoded.
func ExtractJSON(text string) map[string]any {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &data); err != nil {
		return nil
	}
	return data
}
