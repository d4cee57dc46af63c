package worker

const continuedPrefix = "(continued…) "

// splitMessage cuts output exceeding a transport's maximum message size into
// ordered chunks, marking all but the first as continued. Splits on rune
// boundaries so multi-byte characters survive intact.
func splitMessage(text string, max int) []string {
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		return []string{text}
	}

	prefixLen := len([]rune(continuedPrefix))

	var chunks []string
	first := true
	for len(runes) > 0 {
		budget := max
		prefix := ""
		if !first {
			budget = max - prefixLen
			prefix = continuedPrefix
		}
		if budget <= 0 {
			budget = 1
		}
		if budget > len(runes) {
			budget = len(runes)
		}
		chunks = append(chunks, prefix+string(runes[:budget]))
		runes = runes[budget:]
		first = false
	}
	return chunks
}
