package session

import (
	"regexp"
	"strings"
)

// numberedStepRe matches the first line of a numbered plan, "1." or "1)".
var numberedStepRe = regexp.MustCompile(`^\s*1[.)]\s`)

// splitPlan extracts the technique and plan from the planner's free-form
// reply. Strategies apply in order and the first match wins: a labeled
// "Counseling plan" delimiter line, then the start of a numbered list. The
// hard fallback keeps the whole text as the plan with no technique. This
// never fails; planner output format is inherently variable.
func splitPlan(text string) (technique *string, plan string) {
	lines := strings.Split(text, "\n")

	if idx := findLabelLine(lines, "counseling plan"); idx >= 0 {
		return findTechnique(lines[:idx]), joinedFrom(lines, idx+1, text)
	}

	for i, line := range lines {
		if numberedStepRe.MatchString(line) {
			return findTechnique(lines[:i]), joinedFrom(lines, i, text)
		}
	}

	return nil, strings.TrimSpace(text)
}

// findLabelLine returns the index of the first line starting with label,
// compared case-insensitively after trimming.
func findLabelLine(lines []string, label string) int {
	for i, line := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), label) {
			return i
		}
	}
	return -1
}

// findTechnique scans the lines before the plan for a technique label and
// returns the value after the colon, nil when absent or empty.
func findTechnique(lines []string) *string {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		if !strings.HasPrefix(lower, "cbt technique") && !strings.HasPrefix(lower, "technique") {
			continue
		}
		_, value, found := strings.Cut(trimmed, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		return &value
	}
	return nil
}

// joinedFrom returns lines[start:] joined back together, falling back to
// the whole text when the slice would be empty.
func joinedFrom(lines []string, start int, whole string) string {
	if start >= len(lines) {
		return strings.TrimSpace(whole)
	}
	joined := strings.TrimSpace(strings.Join(lines[start:], "\n"))
	if joined == "" {
		return strings.TrimSpace(whole)
	}
	return joined
}

// sanitizeReply cleans one counselor utterance: a duplicated "Counselor:"
// role label is stripped case-insensitively, then literal backslashes and
// double-quote characters introduced by serialization artifacts are
// removed.
func sanitizeReply(text string) string {
	reply := strings.TrimSpace(text)

	if len(reply) >= len(counselorLabel) && strings.EqualFold(reply[:len(counselorLabel)], counselorLabel) {
		reply = strings.TrimSpace(reply[len(counselorLabel):])
	}

	reply = strings.ReplaceAll(reply, `\`, "")
	reply = strings.ReplaceAll(reply, `"`, "")
	return strings.TrimSpace(reply)
}

const counselorLabel = "Counselor:"
