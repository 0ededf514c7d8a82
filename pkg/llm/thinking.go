package llm

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// StripThinking removes <think>...</think> reasoning traces from model
// output. Some reasoning models emit them even when asked not to think, so
// callers strip defensively before using a reply. An unclosed <think> tag
// swallows the rest of the string.
func StripThinking(s string) string {
	for {
		start := strings.Index(s, thinkOpen)
		if start < 0 {
			break
		}
		rest := s[start+len(thinkOpen):]
		end := strings.Index(rest, thinkClose)
		if end < 0 {
			s = s[:start]
			break
		}
		s = s[:start] + rest[end+len(thinkClose):]
	}
	return strings.TrimSpace(s)
}
