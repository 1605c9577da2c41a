package translate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Difference records one correction the model made to a subtitle cue.
type Difference struct {
	Index     int    `json:"index"`
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
	Reason    string `json:"reason"`
}

// TermEntry is translator vocabulary returned alongside a corrected batch.
type TermEntry struct {
	Japanese           string `json:"japanese"`
	RecommendedChinese string `json:"recommended_chinese"`
	Description        string `json:"description,omitempty"`
}

// SubtitlePayload is the JSON contract for subtitle tasks.
type SubtitlePayload struct {
	Content     string       `json:"content"`
	Success     bool         `json:"success"`
	Error       string       `json:"error,omitempty"`
	Differences []Difference `json:"differences,omitempty"`
	Terms       []TermEntry  `json:"terms,omitempty"`
}

// DecodeJSON parses a model response into target, tolerating markdown code
// fences and surrounding prose around the JSON body.
func DecodeJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	sanitized := sanitizePayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("decode payload: %w", directErr)
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("decode sanitized payload: %w", err)
	}
	return nil
}

func sanitizePayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFence(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	if start := strings.Index(trimmed, "["); start >= 0 {
		if end := strings.LastIndex(trimmed, "]"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
