package export

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/width"

	"github.com/mgpai22/cutline/internal/errs"
	"github.com/mgpai22/cutline/internal/timecode"
	"github.com/mgpai22/cutline/internal/timeline"
)

const (
	maxEDLEvents = 999
	maxReelLen   = 8
	fallbackReel = "AX"
)

// EDLEncoder writes a CMX 3600 edit decision list.
type EDLEncoder struct {
	// append each cue as a comment on the event it starts in
	Captions bool
}

func (e *EDLEncoder) Encode(w io.Writer, tl *timeline.Timeline) error {
	const op = "export.EDL"

	if err := checkLine(op, tl.Title); err != nil {
		return err
	}
	if err := checkLine(op, tl.Media.Name); err != nil {
		return err
	}

	events := planEvents(tl)
	if len(events) > maxEDLEvents {
		return errs.Encoding(op, errs.NoIndex, len(events), "CMX 3600 holds at most %d events", maxEDLEvents)
	}

	comments := make([][]string, len(events))
	if e.Captions {
		for _, c := range tl.Cues() {
			if err := checkText(op, c.Text); err != nil {
				return withIndex(err, c.LineIndex)
			}
			at := eventAt(events, timecode.SecondsToFrames(c.Start, tl.Rate))
			for _, line := range strings.Split(c.Text, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					comments[at] = append(comments[at], "* CAPTION: "+line)
				}
			}
		}
	}

	fcm := "NON-DROP FRAME"
	if tl.Rate.DropFrame {
		fcm = "DROP FRAME"
	}

	reel := ReelName(tl.Media.Name)
	ew := &errWriter{w: w}
	ew.printf("TITLE: %s\n", tl.Title)
	ew.printf("FCM: %s\n\n", fcm)

	for i, ev := range events {
		tcs, err := edlTimecodes(tl.Rate, ev.SrcIn, ev.SrcOut, ev.RecIn, ev.RecOut)
		if err != nil {
			return err
		}
		ew.printf("%03d  %-8s B     C        %s %s %s %s\n", i+1, reel, tcs[0], tcs[1], tcs[2], tcs[3])
		ew.printf("* FROM CLIP NAME: %s\n", tl.Media.Name)
		for _, c := range comments[i] {
			ew.printf("%s\n", c)
		}
		ew.printf("\n")
	}

	if ew.err != nil {
		return fmt.Errorf("failed to write edl: %w", ew.err)
	}
	return nil
}

func edlTimecodes(r timecode.FrameRate, frames ...int64) ([]string, error) {
	out := make([]string, len(frames))
	for i, f := range frames {
		tc, err := timecode.FramesToTimecode(f, r)
		if err != nil {
			return nil, err
		}
		// drop-frame labels use ';' before the frame field
		if r.DropFrame {
			tc = tc[:len(tc)-3] + ";" + tc[len(tc)-2:]
		}
		out[i] = tc
	}
	return out, nil
}

// ReelName derives an 8 character reel from the media file name.
func ReelName(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	stem = width.Fold.String(stem)

	var sb strings.Builder
	for _, r := range stem {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			continue
		}
		sb.WriteRune(unicode.ToUpper(r))
		if sb.Len() == maxReelLen {
			break
		}
	}
	if sb.Len() == 0 {
		return fallbackReel
	}
	return sb.String()
}

// checkLine rejects text that would break the line structure of a text format.
func checkLine(op, s string) error {
	if err := checkText(op, s); err != nil {
		return err
	}
	if strings.ContainsAny(s, "\r\n") {
		return errs.Encoding(op, errs.NoIndex, s, "value must fit on one line")
	}
	return nil
}
