package ai

import (
	"regexp"
	"strings"
)

func isGarbageResponse(s string) bool {
	l := strings.ToLower(s)

	if strings.Contains(l, "<html") {
		return true
	}
	if strings.TrimSpace(s) == "" {
		return true
	}
	return false
}

func truncate(b []byte) string {
	if len(b) > 200 {
		return string(b[:200]) + "..."
	}
	return string(b)
}

// preview shortens a reply for log lines.
func preview(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}

var thinkRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

func cleanReply(reply string) string {
	reply = thinkRe.ReplaceAllString(reply, "")
	reply = strings.TrimSpace(reply)

	if len(reply) >= 2 {
		quotes := []struct{ open, close string }{
			{`"`, `"`}, {"“", "”"}, {"‘", "’"},
		}
		for _, q := range quotes {
			if strings.HasPrefix(reply, q.open) && strings.HasSuffix(reply, q.close) {
				reply = strings.TrimSuffix(strings.TrimPrefix(reply, q.open), q.close)
				reply = strings.TrimSpace(reply)
				break
			}
		}
	}

	// Discord hard-caps messages at 2000 chars.
	if len(reply) > 1900 {
		reply = reply[:1900] + "\n\n[truncated]"
	}

	return reply
}

// StripCodeFence removes a surrounding markdown code fence from structured
// model output before it is parsed as YAML.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		lines := strings.Split(s, "\n")
		lines = lines[1:]
		s = strings.Join(lines, "\n")
	}
	if strings.HasSuffix(strings.TrimSpace(s), "```") {
		s = strings.TrimSpace(s)
		lines := strings.Split(s, "\n")
		lines = lines[:len(lines)-1]
		s = strings.Join(lines, "\n")
	}
	return strings.TrimSpace(s)
}
