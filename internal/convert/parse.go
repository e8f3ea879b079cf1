package convert

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports a model response that could not be read as a JSON
// object. Its message is fed back to the model verbatim in the repair
// prompt, so wording stays plain and self-contained.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string {
	return e.Msg
}

func parseError(format string, args ...any) *ParseError {
	return &ParseError{Msg: fmt.Sprintf(format, args...)}
}

// stripFence removes one surrounding Markdown code fence, but only when the
// response actually starts with a fence marker. Responses that merely
// contain backticks further in are left alone.
func stripFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	lines := strings.Split(trimmed, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.HasPrefix(strings.TrimSpace(lines[n-1]), "```") {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// parseObject strictly parses text as a single JSON object. Numbers stay
// json.Number so integer ages survive undamaged.
func parseObject(text string) (map[string]any, error) {
	body := stripFence(text)
	if body == "" {
		return nil, parseError("response was empty")
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, parseError("response is not a valid JSON object: %v", err)
	}
	if dec.More() {
		return nil, parseError("response contains trailing data after the JSON object")
	}
	return raw, nil
}
