package segment

import (
	"math"

	"github.com/mgpai22/cutline/internal/errs"
	"github.com/mgpai22/cutline/internal/timeline"
)

// Interval is a [Start, End) span in source seconds.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (i Interval) Duration() float64 {
	return i.End - i.Start
}

// Policy controls how silence is turned into retained segments.
type Policy struct {
	// silences shorter than this are kept as speech
	MinSilence float64
	// seconds of silence kept on each side of speech
	Margin float64
	// merge expanded intervals that meet at exactly one point
	MergeTouching bool
}

func DefaultPolicy() Policy {
	return Policy{
		MinSilence:    1.0,
		Margin:        0.2,
		MergeTouching: true,
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Reduce turns detected silence into the ordered segments to keep.
func Reduce(silences []Interval, total float64, policy Policy) ([]timeline.Segment, error) {
	const op = "segment.Reduce"

	if !finite(total) || total <= 0 {
		return nil, errs.InvalidInput(op, errs.NoIndex, total, "total duration must be positive")
	}
	if !finite(policy.MinSilence) || policy.MinSilence < 0 {
		return nil, errs.InvalidInput(op, errs.NoIndex, policy.MinSilence, "minimum silence must be non-negative")
	}
	if !finite(policy.Margin) || policy.Margin < 0 {
		return nil, errs.InvalidInput(op, errs.NoIndex, policy.Margin, "margin must be non-negative")
	}

	kept, err := clip(silences, total, policy.MinSilence)
	if err != nil {
		return nil, err
	}

	speech := Invert(kept, total)

	expanded := make([]Interval, 0, len(speech))
	for _, s := range speech {
		iv := Interval{
			Start: math.Max(0, s.Start-policy.Margin),
			End:   math.Min(total, s.End+policy.Margin),
		}

		if n := len(expanded); n > 0 {
			gap := iv.Start - expanded[n-1].End
			if gap < 0 || (gap == 0 && policy.MergeTouching) {
				expanded[n-1].End = math.Max(expanded[n-1].End, iv.End)
				continue
			}
		}
		expanded = append(expanded, iv)
	}

	segs := make([]timeline.Segment, 0, len(expanded))
	for _, iv := range expanded {
		if iv.Duration() <= 0 {
			continue
		}
		seg, err := timeline.NewSegment(len(segs), iv.Start, iv.End)
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}

	if len(segs) == 0 {
		return nil, errs.InvalidInput(op, errs.NoIndex, total, "source is entirely silent, nothing to export")
	}
	return segs, nil
}

// clip validates ordering and clips every interval to [0, total].
// clip validates silences, drops those shorter than minSilence as detected,
// and cuts the rest to [0, total].
func clip(silences []Interval, total, minSilence float64) ([]Interval, error) {
	const op = "segment.Reduce"

	out := make([]Interval, 0, len(silences))
	for i, s := range silences {
		switch {
		case !finite(s.Start) || !finite(s.End):
			return nil, errs.InvalidInput(op, i, s, "silence bounds must be finite")
		case s.Start < 0:
			return nil, errs.InvalidInput(op, i, s.Start, "silence start must be non-negative")
		case s.End <= s.Start:
			return nil, errs.InvalidInput(op, i, s, "silence must end after it starts")
		case i > 0 && s.Start < silences[i-1].Start:
			return nil, errs.InvalidInput(op, i, s.Start, "silences must be ordered by start")
		}

		if s.Start >= total || s.Duration() < minSilence {
			continue
		}
		out = append(out, Interval{Start: s.Start, End: math.Min(s.End, total)})
	}
	return out, nil
}

// Invert returns the gaps between silences over [0, total].
// Silences must be ordered by start; overlapping silences are absorbed.
func Invert(silences []Interval, total float64) []Interval {
	var speech []Interval
	cursor := 0.0
	for _, s := range silences {
		if s.Start > cursor {
			speech = append(speech, Interval{Start: cursor, End: math.Min(s.Start, total)})
		}
		cursor = math.Max(cursor, s.End)
		if cursor >= total {
			return speech
		}
	}
	if cursor < total {
		speech = append(speech, Interval{Start: cursor, End: total})
	}
	return speech
}
