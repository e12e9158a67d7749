package scanning

import (
	"strings"
)

// noTextMarker is what LLM providers are told to answer for unreadable images
const noTextMarker = "NO_TEXT"

// parseTranscript splits an LLM transcript into receipt lines
func parseTranscript(text string) ([]string, error) {
	text = strings.TrimSpace(text)

	// Remove markdown code blocks if present
	if strings.HasPrefix(text, "```") {
		if nl := strings.Index(text, "\n"); nl != -1 {
			text = text[nl+1:]
		} else {
			text = strings.TrimLeft(text, "`")
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	if strings.EqualFold(strings.TrimSpace(text), noTextMarker) {
		return nil, ErrNoText
	}

	return splitLines(text)
}

// splitLines breaks text into trimmed, non-empty lines
func splitLines(text string) ([]string, error) {
	lines := make([]string, 0)
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, ErrNoText
	}
	return lines, nil
}

// SplitLines breaks recognized text into trimmed, non-empty lines, returning
// ErrNoText when nothing is left
func SplitLines(text string) ([]string, error) {
	return splitLines(text)
}
