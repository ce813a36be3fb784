package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mgpai22/cutline/internal/errs"
)

var assOverride = regexp.MustCompile(`\{[^}]*\}`)

// parseASS reads Dialogue events from the [Events] section.
func parseASS(r io.Reader) ([]Entry, error) {
	const op = "subtitle.parseASS"

	var (
		entries  []Entry
		inEvents bool
		columns  []string
		startCol = -1
		endCol   = -1
		textCol  = -1
		lineNum  int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		lineNum++
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			inEvents = strings.EqualFold(trimmed, "[events]")
			continue
		}
		if !inEvents {
			continue
		}

		if strings.HasPrefix(trimmed, "Format:") {
			columns = strings.Split(strings.TrimPrefix(trimmed, "Format:"), ",")
			for i, col := range columns {
				switch strings.ToLower(strings.TrimSpace(col)) {
				case "start":
					startCol = i
				case "end":
					endCol = i
				case "text":
					textCol = i
				}
			}
			if startCol < 0 || endCol < 0 || textCol != len(columns)-1 {
				return nil, errs.InvalidInput(op, lineNum, trimmed, "Format line needs Start, End and a final Text column")
			}
			continue
		}

		if !strings.HasPrefix(trimmed, "Dialogue:") {
			continue
		}
		if columns == nil {
			return nil, errs.InvalidInput(op, lineNum, trimmed, "Dialogue before Format line")
		}

		fields := splitASSFields(strings.TrimSpace(strings.TrimPrefix(trimmed, "Dialogue:")), len(columns))
		if len(fields) < len(columns) {
			return nil, errs.InvalidInput(op, lineNum, trimmed, "expected %d fields, got %d", len(columns), len(fields))
		}
		start, err := parseASSTimestamp(fields[startCol])
		if err != nil {
			return nil, errs.InvalidInput(op, lineNum, fields[startCol], "invalid start: %v", err)
		}
		end, err := parseASSTimestamp(fields[endCol])
		if err != nil {
			return nil, errs.InvalidInput(op, lineNum, fields[endCol], "invalid end: %v", err)
		}
		if end < start {
			return nil, errs.InvalidInput(op, lineNum, trimmed, "dialogue ends before it starts")
		}

		entries = append(entries, Entry{
			Index:     len(entries) + 1,
			StartTime: start,
			EndTime:   end,
			Text:      assText(fields[textCol]),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading ASS file: %w", err)
	}
	return entries, nil
}

// splitASSFields splits on commas, leaving any commas in the last field.
func splitASSFields(content string, numFields int) []string {
	if numFields <= 0 {
		return nil
	}
	return strings.SplitN(content, ",", numFields)
}

// assText drops override blocks and turns \N and \n into line breaks.
func assText(s string) string {
	s = assOverride.ReplaceAllString(s, "")
	s = strings.NewReplacer(`\N`, "\n", `\n`, "\n", `\h`, " ").Replace(s)
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// parses H:MM:SS.cc
func parseASSTimestamp(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	hms := strings.Split(s, ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("want H:MM:SS.cc, got %q", s)
	}
	secParts := strings.SplitN(hms[2], ".", 2)

	h, err := strconv.Atoi(hms[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(hms[1])
	if err != nil {
		return 0, err
	}
	sec, err := strconv.Atoi(secParts[0])
	if err != nil {
		return 0, err
	}
	var cs int
	if len(secParts) == 2 {
		frac := (secParts[1] + "00")[:2]
		if cs, err = strconv.Atoi(frac); err != nil {
			return 0, err
		}
	}
	if m > 59 || sec > 59 {
		return 0, fmt.Errorf("minutes and seconds must be below 60")
	}
	return clock(h, m, sec, cs*10), nil
}
