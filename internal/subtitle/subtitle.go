package subtitle

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mgpai22/cutline/internal/errs"
	"github.com/mgpai22/cutline/internal/timeline"
)

// represents single subtitle entry
type Entry struct {
	Index     int
	StartTime time.Duration
	EndTime   time.Duration
	Text      string
}

// represents supported subtitle formats
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
	FormatASS Format = "ass"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".srt":
		return FormatSRT, nil
	case ".vtt":
		return FormatVTT, nil
	case ".ass", ".ssa":
		return FormatASS, nil
	default:
		return "", errs.InvalidInput("subtitle.FormatOf", errs.NoIndex, path, "unsupported subtitle format: %s", ext)
	}
}

// Open reads a subtitle file, choosing the parser from its extension.
func Open(path string) ([]Entry, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open subtitle file: %w", err)
	}
	defer f.Close()
	return Parse(f, format)
}

func Parse(r io.Reader, format Format) ([]Entry, error) {
	switch format {
	case FormatSRT:
		return parseSRT(r)
	case FormatVTT:
		return parseVTT(r)
	case FormatASS:
		return parseASS(r)
	}
	return nil, errs.InvalidInput("subtitle.Parse", errs.NoIndex, string(format), "unsupported subtitle format")
}

// Cues converts entries to caption cues ordered by start. Blank entries are
// skipped and an entry that runs into the next one is cut at its start.
func Cues(entries []Entry) ([]timeline.CaptionCue, error) {
	sorted := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Text) != "" {
			sorted = append(sorted, e)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartTime < sorted[j].StartTime })

	cues := make([]timeline.CaptionCue, len(sorted))
	for i, e := range sorted {
		end := e.EndTime
		if i+1 < len(sorted) && end > sorted[i+1].StartTime {
			end = sorted[i+1].StartTime
		}
		cues[i] = timeline.CaptionCue{
			Text:      strings.TrimSpace(e.Text),
			Start:     e.StartTime.Seconds(),
			End:       end.Seconds(),
			LineIndex: i,
		}
	}
	return timeline.NewCues(cues)
}

// ReadCues opens a subtitle file and returns its cues.
func ReadCues(path string) ([]timeline.CaptionCue, error) {
	entries, err := Open(path)
	if err != nil {
		return nil, err
	}
	return Cues(entries)
}

func clock(h, m, s, ms int) time.Duration {
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond
}
