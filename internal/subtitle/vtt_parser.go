package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/mgpai22/cutline/internal/errs"
)

// hours are optional in WebVTT
var vttTimestamp = regexp.MustCompile(
	`(?:(\d{2,}):)?(\d{2}):(\d{2})\.(\d{3})\s*-->\s*(?:(\d{2,}):)?(\d{2}):(\d{2})\.(\d{3})`,
)

var vttTag = regexp.MustCompile(`</?[^>]+>`)

func parseVTT(r io.Reader) ([]Entry, error) {
	const op = "subtitle.parseVTT"

	var (
		entries   []Entry
		current   *Entry
		textLines []string
		lineNum   int
		skipBlock bool
	)
	flush := func() {
		if current != nil && len(textLines) > 0 {
			current.Text = strings.Join(textLines, "\n")
			entries = append(entries, *current)
		}
		current, textLines = nil, nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		lineNum++
		trimmed := strings.TrimSpace(line)

		if lineNum == 1 {
			trimmed = strings.TrimPrefix(trimmed, "\ufeff")
			if !strings.HasPrefix(trimmed, "WEBVTT") {
				return nil, errs.InvalidInput(op, lineNum, trimmed, "missing WEBVTT header")
			}
			skipBlock = true
			continue
		}

		if trimmed == "" {
			flush()
			skipBlock = false
			continue
		}
		if skipBlock {
			continue
		}

		if current == nil && (strings.HasPrefix(trimmed, "NOTE") ||
			strings.HasPrefix(trimmed, "STYLE") || strings.HasPrefix(trimmed, "REGION")) {
			skipBlock = true
			continue
		}

		if m := vttTimestamp.FindStringSubmatch(line); m != nil && len(textLines) == 0 {
			start, end, err := parseTimingMatch(withHours(m[1:5]), withHours(m[5:9]))
			if err != nil {
				return nil, errs.InvalidInput(op, lineNum, line, "invalid timestamp: %v", err)
			}
			current = &Entry{Index: len(entries) + 1, StartTime: start, EndTime: end}
			continue
		}

		if current == nil {
			// cue identifier
			continue
		}
		if text := strings.TrimSpace(vttTag.ReplaceAllString(line, "")); text != "" {
			textLines = append(textLines, unescapeVTT(text))
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading VTT file: %w", err)
	}
	return entries, nil
}

func withHours(parts []string) []string {
	if parts[0] == "" {
		return append([]string{"0"}, parts[1:]...)
	}
	return parts
}

var vttEntities = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&nbsp;", " ", "&amp;", "&")

func unescapeVTT(s string) string {
	return vttEntities.Replace(s)
}
