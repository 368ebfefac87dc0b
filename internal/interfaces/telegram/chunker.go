package telegram

import "strings"

// MessageLimit is Telegram's maximum message length in bytes.
const MessageLimit = 4096

// ChunkText splits text that exceeds the platform limit, preferring
// paragraph boundaries, then line breaks, then sentence ends, then
// spaces, and only as a last resort a hard cut.
func ChunkText(text string) []string {
	if len(text) <= MessageLimit {
		return []string{text}
	}

	var chunks []string
	remaining := text
	for len(remaining) > MessageLimit {
		split := findSplitPoint(remaining, MessageLimit)
		chunks = append(chunks, remaining[:split])
		remaining = strings.TrimLeft(remaining[split:], " \t\n\r")
	}
	if remaining != "" {
		chunks = append(chunks, remaining)
	}
	return chunks
}

func findSplitPoint(text string, maxLen int) int {
	area := text[:maxLen]

	if idx := strings.LastIndex(area, "\n\n"); idx >= maxLen/2 {
		return idx
	}
	if idx := strings.LastIndex(area, "\n"); idx >= maxLen/2 {
		return idx
	}
	if idx := lastSentenceEnd(area); idx >= maxLen/2 {
		return idx
	}
	if idx := strings.LastIndex(area, " "); idx >= maxLen/3 {
		return idx
	}
	return maxLen
}

func lastSentenceEnd(s string) int {
	best := -1
	for _, mark := range []string{". ", "。", "！", "？"} {
		if idx := strings.LastIndex(s, mark); idx > best {
			best = idx + len(mark)
		}
	}
	return best
}
