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

// some tools write '.' instead of ',' before the milliseconds
var srtTimestamp = regexp.MustCompile(
	`(\d{1,2}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d{1,2}):(\d{2}):(\d{2})[,.](\d{3})`,
)

func parseSRT(r io.Reader) ([]Entry, error) {
	const op = "subtitle.parseSRT"

	var (
		entries   []Entry
		current   *Entry
		timed     bool
		textLines []string
		lineNum   int
	)
	flush := func() {
		if current != nil && len(textLines) > 0 {
			current.Text = strings.Join(textLines, "\n")
			entries = append(entries, *current)
		}
		current, timed, textLines = nil, false, nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		lineNum++
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		if current == nil {
			if index, err := strconv.Atoi(strings.TrimSpace(line)); err == nil {
				current = &Entry{Index: index}
				continue
			}
			// cue without a counter line
			current = &Entry{Index: len(entries) + 1}
		}

		if !timed {
			m := srtTimestamp.FindStringSubmatch(line)
			if m == nil {
				return nil, errs.InvalidInput(op, lineNum, line, "expected a timing line")
			}
			start, end, err := parseTimingMatch(m[1:5], m[5:9])
			if err != nil {
				return nil, errs.InvalidInput(op, lineNum, line, "invalid timestamp: %v", err)
			}
			current.StartTime, current.EndTime, timed = start, end, true
			continue
		}

		textLines = append(textLines, line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading SRT file: %w", err)
	}
	return entries, nil
}

// parseTimingMatch reads two h:m:s:ms groups.
func parseTimingMatch(start, end []string) (time.Duration, time.Duration, error) {
	s, err := parseClock(start)
	if err != nil {
		return 0, 0, err
	}
	e, err := parseClock(end)
	if err != nil {
		return 0, 0, err
	}
	if e < s {
		return 0, 0, fmt.Errorf("end %v before start %v", e, s)
	}
	return s, e, nil
}

func parseClock(parts []string) (time.Duration, error) {
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, err
		}
		v[i] = n
	}
	if v[1] > 59 || v[2] > 59 {
		return 0, fmt.Errorf("minutes and seconds must be below 60")
	}
	return clock(v[0], v[1], v[2], v[3]), nil
}
