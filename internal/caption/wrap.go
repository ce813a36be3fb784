package caption

import (
	"strings"
	"unicode/utf8"
)

// WrapLines splits formatted text into caption lines of at most maxChars runes.
// Existing line breaks are kept, long lines wrap at spaces, and runs without
// spaces are hard-wrapped. maxChars <= 0 disables wrapping.
func WrapLines(text string, maxChars int) []string {
	var out []string
	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if maxChars <= 0 || utf8.RuneCountInString(raw) <= maxChars {
			out = append(out, raw)
			continue
		}
		out = append(out, wrapLine(raw, maxChars)...)
	}
	return out
}

func wrapLine(s string, maxChars int) []string {
	var (
		lines []string
		cur   strings.Builder
		width int
	)
	flush := func() {
		if width > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
			width = 0
		}
	}

	for _, field := range strings.Fields(s) {
		n := utf8.RuneCountInString(field)

		if n > maxChars {
			flush()
			chunks := hardWrap(field, maxChars)
			lines = append(lines, chunks[:len(chunks)-1]...)
			last := chunks[len(chunks)-1]
			cur.WriteString(last)
			width = utf8.RuneCountInString(last)
			continue
		}

		if width > 0 && width+1+n > maxChars {
			flush()
		}
		if width > 0 {
			cur.WriteByte(' ')
			width++
		}
		cur.WriteString(field)
		width += n
	}
	flush()
	return lines
}

func hardWrap(s string, maxChars int) []string {
	runes := []rune(s)
	var chunks []string
	for len(runes) > maxChars {
		chunks = append(chunks, string(runes[:maxChars]))
		runes = runes[maxChars:]
	}
	return append(chunks, string(runes))
}
