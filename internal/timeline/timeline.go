package timeline

import (
	"math"
	"path/filepath"
	"strings"

	"github.com/mgpai22/cutline/internal/errs"
	"github.com/mgpai22/cutline/internal/timecode"
)

// Segment is a contiguous span of source media kept after silence removal.
type Segment struct {
	Index    int
	Start    float64
	End      float64
	Duration float64
}

// WordTimestamp is one transcribed word on the source timeline.
type WordTimestamp struct {
	Word  string
	Start float64
	End   float64
}

// CaptionCue is one timed caption on the record (post-cut) timeline.
type CaptionCue struct {
	Text      string
	Start     float64
	End       float64
	LineIndex int
}

// Media describes the source file the segments refer to.
type Media struct {
	Path             string
	Name             string
	Width            int
	Height           int
	DurationSeconds  float64
	PixelAspectRatio float64
	AudioSampleRate  int
	AudioChannels    int
}

// Metadata is what the probe collaborator reports about a media file.
type Metadata struct {
	FPS              float64
	Width            int
	Height           int
	DurationSeconds  float64
	PixelAspectRatio float64
	AudioSampleRate  int
	AudioChannels    int
}

// Media converts probe metadata into the header the serializers need.
func (m Metadata) Media(path string) Media {
	return Media{
		Path:             path,
		Name:             filepath.Base(path),
		Width:            m.Width,
		Height:           m.Height,
		DurationSeconds:  m.DurationSeconds,
		PixelAspectRatio: m.PixelAspectRatio,
		AudioSampleRate:  m.AudioSampleRate,
		AudioChannels:    m.AudioChannels,
	}
}

// Timeline is the unit every serializer consumes.
type Timeline struct {
	Title string
	Media Media
	Rate  timecode.FrameRate

	segments []Segment
	cues     []CaptionCue
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func NewSegment(index int, start, end float64) (Segment, error) {
	const op = "timeline.NewSegment"
	switch {
	case !finite(start) || !finite(end):
		return Segment{}, errs.InvalidInput(op, index, [2]float64{start, end}, "segment bounds must be finite")
	case start < 0:
		return Segment{}, errs.InvalidInput(op, index, start, "segment start must be non-negative")
	case end <= start:
		return Segment{}, errs.InvalidInput(op, index, [2]float64{start, end}, "segment duration must be positive")
	}
	return Segment{Index: index, Start: start, End: end, Duration: end - start}, nil
}

// NewSegments validates an ordered, non-overlapping list indexed 0..N-1.
func NewSegments(in []Segment) ([]Segment, error) {
	const op = "timeline.NewSegments"

	out := make([]Segment, len(in))
	for i, s := range in {
		if s.Index != i {
			return nil, errs.InvalidInput(op, i, s.Index, "segment index out of sequence")
		}
		seg, err := NewSegment(i, s.Start, s.End)
		if err != nil {
			return nil, err
		}
		if i > 0 && seg.Start < out[i-1].End {
			return nil, errs.InvalidInput(op, i, seg.Start, "segment overlaps previous segment ending at %g", out[i-1].End)
		}
		out[i] = seg
	}
	return out, nil
}

func NewWord(word string, start, end float64) (WordTimestamp, error) {
	const op = "timeline.NewWord"
	switch {
	case !finite(start) || !finite(end):
		return WordTimestamp{}, errs.InvalidInput(op, errs.NoIndex, word, "word times must be finite")
	case start < 0:
		return WordTimestamp{}, errs.InvalidInput(op, errs.NoIndex, start, "word start must be non-negative")
	case end < start:
		return WordTimestamp{}, errs.InvalidInput(op, errs.NoIndex, [2]float64{start, end}, "word ends before it starts")
	}
	return WordTimestamp{Word: word, Start: start, End: end}, nil
}

// NewWords validates a word list that is non-decreasing in start time.
func NewWords(in []WordTimestamp) ([]WordTimestamp, error) {
	const op = "timeline.NewWords"

	out := make([]WordTimestamp, len(in))
	for i, w := range in {
		word, err := NewWord(w.Word, w.Start, w.End)
		if err != nil {
			return nil, withIndex(err, i)
		}
		if i > 0 && word.Start < out[i-1].Start {
			return nil, errs.InvalidInput(op, i, word.Start, "word starts before previous word")
		}
		out[i] = word
	}
	return out, nil
}

func NewCue(text string, start, end float64, lineIndex int) (CaptionCue, error) {
	const op = "timeline.NewCue"
	switch {
	case strings.TrimSpace(text) == "":
		return CaptionCue{}, errs.InvalidInput(op, lineIndex, text, "cue text is empty")
	case !finite(start) || !finite(end):
		return CaptionCue{}, errs.InvalidInput(op, lineIndex, [2]float64{start, end}, "cue times must be finite")
	case start < 0:
		return CaptionCue{}, errs.InvalidInput(op, lineIndex, start, "cue start must be non-negative")
	case end < start:
		return CaptionCue{}, errs.InvalidInput(op, lineIndex, [2]float64{start, end}, "cue ends before it starts")
	}
	return CaptionCue{Text: text, Start: start, End: end, LineIndex: lineIndex}, nil
}

// NewCues validates an ordered, non-overlapping cue list.
func NewCues(in []CaptionCue) ([]CaptionCue, error) {
	const op = "timeline.NewCues"

	out := make([]CaptionCue, len(in))
	for i, c := range in {
		cue, err := NewCue(c.Text, c.Start, c.End, c.LineIndex)
		if err != nil {
			return nil, withIndex(err, i)
		}
		if i > 0 && cue.Start < out[i-1].End {
			return nil, errs.InvalidInput(op, i, cue.Start, "cue overlaps previous cue ending at %g", out[i-1].End)
		}
		out[i] = cue
	}
	return out, nil
}

// NewTimeline validates and copies segments and cues. Cues may be empty.
func NewTimeline(title string, media Media, rate timecode.FrameRate, segments []Segment, cues []CaptionCue) (*Timeline, error) {
	const op = "timeline.NewTimeline"

	if rate.IsZero() {
		return nil, errs.UnsupportedFrameRate(op, rate, "frame rate not classified")
	}
	if media.Name == "" && media.Path != "" {
		media.Name = filepath.Base(media.Path)
	}
	if media.Name == "" {
		return nil, errs.InvalidInput(op, errs.NoIndex, nil, "media has neither path nor name")
	}
	if len(segments) == 0 {
		return nil, errs.InvalidInput(op, errs.NoIndex, nil, "no segments to export")
	}

	segs, err := NewSegments(segments)
	if err != nil {
		return nil, err
	}
	if d := media.DurationSeconds; d > 0 {
		last := segs[len(segs)-1]
		if last.End > d+durationTolerance {
			return nil, errs.InvalidInput(op, last.Index, last.End, "segment ends after media duration %g", d)
		}
	}

	cs, err := NewCues(cues)
	if err != nil {
		return nil, err
	}

	if title == "" {
		title = strings.TrimSuffix(media.Name, filepath.Ext(media.Name))
	}

	return &Timeline{
		Title:    title,
		Media:    media,
		Rate:     rate,
		segments: segs,
		cues:     cs,
	}, nil
}

// Segments returns a copy of the retained segments.
func (t *Timeline) Segments() []Segment {
	return append([]Segment(nil), t.segments...)
}

// Cues returns a copy of the caption cues.
func (t *Timeline) Cues() []CaptionCue {
	return append([]CaptionCue(nil), t.cues...)
}

func (t *Timeline) HasCues() bool {
	return len(t.cues) > 0
}

// RecordDuration is the length of the cut timeline in seconds.
func (t *Timeline) RecordDuration() float64 {
	var total float64
	for _, s := range t.segments {
		total += s.Duration
	}
	return total
}

func withIndex(err error, index int) error {
	if e, ok := err.(*errs.Error); ok {
		e.Index = index
	}
	return err
}
