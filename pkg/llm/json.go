package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON unmarshals a model reply into v, tolerating markdown code
// fences and surrounding prose around the JSON payload.
func ExtractJSON(raw string, v any) error {
	raw = strings.TrimSpace(raw)

	// Handle markdown code block wrapping.
	if strings.HasPrefix(raw, "```") {
		if idx := strings.Index(raw[3:], "\n"); idx >= 0 {
			raw = raw[3+idx+1:]
		}
		if strings.HasSuffix(raw, "```") {
			raw = raw[:len(raw)-3]
		}
		raw = strings.TrimSpace(raw)
	}

	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}

	// Fall back to the outermost JSON object or array in the text.
	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return fmt.Errorf("no json payload in response: %s", truncate(raw, 200))
	}
	var end int
	if raw[start] == '{' {
		end = strings.LastIndex(raw, "}")
	} else {
		end = strings.LastIndex(raw, "]")
	}
	if end <= start {
		return fmt.Errorf("unterminated json payload in response: %s", truncate(raw, 200))
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), v); err != nil {
		return fmt.Errorf("parse llm response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
