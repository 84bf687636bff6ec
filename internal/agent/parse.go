package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseAnswer extracts the Answer envelope from raw model output. Models
// occasionally wrap JSON in markdown fencing despite instructions, so fences
// are stripped before unmarshalling.
func parseAnswer(output string) (*Answer, error) {
	cleaned := stripFences(output)

	answer := &Answer{}
	if err := json.Unmarshal([]byte(cleaned), answer); err != nil {
		return nil, fmt.Errorf("agent: failed to unmarshal answer envelope: %w", err)
	}

	switch answer.Status {
	case StatusAnswered, StatusClarification, StatusInvalidQuery:
	case "":
		answer.Status = StatusAnswered
	default:
		return nil, fmt.Errorf("agent: answer envelope has unknown status %q", answer.Status)
	}

	if answer.Text == "" {
		return nil, fmt.Errorf("agent: answer envelope has empty text")
	}
	return answer, nil
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
