package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/mgpai22/cutline/internal/errs"
	"github.com/mgpai22/cutline/internal/timecode"
	"github.com/mgpai22/cutline/internal/timeline"
)

// SRTEncoder writes SubRip subtitles, UTF-8 without a byte order mark.
type SRTEncoder struct{}

func (e *SRTEncoder) Encode(w io.Writer, tl *timeline.Timeline) error {
	const op = "export.SRT"

	ew := &errWriter{w: w}
	for i, c := range tl.Cues() {
		text, err := cueText(op, c)
		if err != nil {
			return err
		}
		ew.printf("%d\n", i+1)
		ew.printf("%s --> %s\n", timecode.SecondsToSRT(c.Start), timecode.SecondsToSRT(c.End))
		ew.printf("%s\n\n", text)
	}

	if ew.err != nil {
		return fmt.Errorf("failed to write srt: %w", ew.err)
	}
	return nil
}

// VTTEncoder writes WebVTT subtitles.
type VTTEncoder struct{}

var vttEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func (e *VTTEncoder) Encode(w io.Writer, tl *timeline.Timeline) error {
	const op = "export.VTT"

	ew := &errWriter{w: w}
	ew.printf("WEBVTT\n\n")
	for i, c := range tl.Cues() {
		text, err := cueText(op, c)
		if err != nil {
			return err
		}
		ew.printf("%d\n", i+1)
		ew.printf("%s --> %s\n", timecode.SecondsToVTT(c.Start), timecode.SecondsToVTT(c.End))
		ew.printf("%s\n\n", vttEscaper.Replace(text))
	}

	if ew.err != nil {
		return fmt.Errorf("failed to write vtt: %w", ew.err)
	}
	return nil
}

// cueText drops blank lines inside a cue, which would end the block early.
func cueText(op string, c timeline.CaptionCue) (string, error) {
	if err := checkText(op, c.Text); err != nil {
		return "", withIndex(err, c.LineIndex)
	}

	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(c.Text, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return "", errs.Encoding(op, c.LineIndex, c.Text, "cue has no printable text")
	}
	return strings.Join(lines, "\n"), nil
}
