package synth

import "strings"

// SplitSentences splits text into playback units ending in '.', '!' or '?'.
// Trailing text without a terminator forms the last unit.
func SplitSentences(text string) []string {
	var units []string
	start := 0
	flush := func(end int) {
		if s := strings.TrimSpace(text[start:end]); s != "" {
			units = append(units, s)
		}
		start = end
	}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			// Keep runs like "?!" or "..." in one unit.
			j := i + 1
			for j < len(text) && strings.IndexByte(".!?", text[j]) >= 0 {
				j++
			}
			flush(j)
			i = j - 1
		}
	}
	flush(len(text))
	return units
}
