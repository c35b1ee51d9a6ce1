package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeJSON unmarshals a model answer into target, retrying once on the
// extracted JSON when the raw text is wrapped in fences or prose.
func DecodeJSON(content string, target any) error {
	raw := strings.TrimSpace(content)
	if raw == "" {
		return errors.New("empty payload")
	}
	err := json.Unmarshal([]byte(raw), target)
	if err == nil {
		return nil
	}
	extracted := ExtractJSON(raw)
	if extracted == "" || extracted == raw {
		return fmt.Errorf("%w (payload: %s)", err, snippet(raw))
	}
	if err := json.Unmarshal([]byte(extracted), target); err != nil {
		return fmt.Errorf("%w (extracted payload: %s)", err, snippet(extracted))
	}
	return nil
}

// ExtractJSON strips code fences and stray prose around a JSON object or array.
func ExtractJSON(content string) string {
	text := stripFence(strings.TrimSpace(content))
	if text == "" || text[0] == '{' || text[0] == '[' {
		return text
	}
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(text, pair[0])
		end := strings.LastIndex(text, pair[1])
		if start >= 0 && end > start {
			return strings.TrimSpace(text[start : end+1])
		}
	}
	return text
}

func stripFence(text string) string {
	body, ok := strings.CutPrefix(text, "```")
	if !ok {
		return text
	}
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func checkHealthPayload(content string) error {
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeJSON(content, &parsed); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

// snippet collapses whitespace and truncates text for error messages.
func snippet(text string) string {
	clean := strings.Join(strings.Fields(text), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
