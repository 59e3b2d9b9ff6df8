package agent

import "strings"

var reasoningTags = []string{"thinking", "think"}

// sanitizeText removes hidden-reasoning delimiters some models emit around
// their internal notes. Paired tags are dropped along with their content, an
// unclosed opening tag drops the rest of the text, and a bare closing tag
// drops everything before it.
func sanitizeText(s string) string {
	for _, tag := range reasoningTags {
		openTag := "<" + tag + ">"
		closeTag := "</" + tag + ">"

		for {
			start := strings.Index(s, openTag)
			if start == -1 {
				break
			}

			rest := s[start+len(openTag):]
			end := strings.Index(rest, closeTag)
			if end == -1 {
				s = s[:start]
				break
			}

			s = s[:start] + rest[end+len(closeTag):]
		}

		if idx := strings.Index(s, closeTag); idx != -1 {
			s = s[idx+len(closeTag):]
		}
	}

	return strings.TrimSpace(s)
}
