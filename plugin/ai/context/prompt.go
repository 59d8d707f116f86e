package context

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// FormatPrompt frames the payload and the user request for the model call.
// The context JSON is ASCII-only.
func FormatPrompt(message string, payload *Payload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal context payload")
	}

	var sb strings.Builder
	sb.WriteString("You are assisting a Home Assistant user.\n")
	sb.WriteString("Use the Home Assistant context JSON below to answer.\n")
	sb.WriteString("Do not reveal secrets or credentials. Ask clarifying questions when needed.\n\n")
	sb.WriteString("HOME_ASSISTANT_CONTEXT_JSON:\n")
	sb.WriteString(asciiJSON(data))
	sb.WriteString("\n\nUSER_REQUEST:\n")
	sb.WriteString(message)
	return sb.String(), nil
}

// asciiJSON escapes every non-ASCII rune of encoded JSON as \uXXXX.
func asciiJSON(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data))
	for _, r := range string(data) {
		if r < 0x80 {
			sb.WriteRune(r)
			continue
		}
		if r > 0xFFFF {
			r -= 0x10000
			writeEscape(&sb, 0xD800+(r>>10))
			writeEscape(&sb, 0xDC00+(r&0x3FF))
			continue
		}
		writeEscape(&sb, r)
	}
	return sb.String()
}

func writeEscape(sb *strings.Builder, r rune) {
	const hex = "0123456789abcdef"
	sb.WriteString(`\u`)
	sb.WriteByte(hex[(r>>12)&0xF])
	sb.WriteByte(hex[(r>>8)&0xF])
	sb.WriteByte(hex[(r>>4)&0xF])
	sb.WriteByte(hex[r&0xF])
}
