package export

import (
	"github.com/mgpai22/cutline/internal/timecode"
	"github.com/mgpai22/cutline/internal/timeline"
)

// event is one segment placed on the record timeline, in frames.
type event struct {
	Segment timeline.Segment
	SrcIn   int64
	SrcOut  int64
	RecIn   int64
	RecOut  int64
}

func (e event) Length() int64 {
	return e.RecOut - e.RecIn
}

// planEvents lays segments back to back. Record edges come from cumulative
// durations so rounding never accumulates; the source out point is derived
// from the record length so both sides of an event agree.
// Segments shorter than half a frame round to nothing and are left out.
func planEvents(tl *timeline.Timeline) []event {
	rate := tl.Rate
	segs := tl.Segments()

	events := make([]event, 0, len(segs))
	var cum float64
	for _, s := range segs {
		recIn := timecode.SecondsToFrames(cum, rate)
		cum += s.Duration
		recOut := timecode.SecondsToFrames(cum, rate)
		if recOut <= recIn {
			continue
		}

		srcIn := timecode.SecondsToFrames(s.Start, rate)
		events = append(events, event{
			Segment: s,
			SrcIn:   srcIn,
			SrcOut:  srcIn + (recOut - recIn),
			RecIn:   recIn,
			RecOut:  recOut,
		})
	}
	return events
}

// title is one cue in record frames.
type title struct {
	Cue   timeline.CaptionCue
	Start int64
	End   int64
}

// planTitles converts cues to frames, skipping cues shorter than one frame.
func planTitles(tl *timeline.Timeline) []title {
	rate := tl.Rate
	cues := tl.Cues()

	titles := make([]title, 0, len(cues))
	for _, c := range cues {
		start := timecode.SecondsToFrames(c.Start, rate)
		end := timecode.SecondsToFrames(c.End, rate)
		if end <= start {
			continue
		}
		titles = append(titles, title{Cue: c, Start: start, End: end})
	}
	return titles
}

func recordLength(events []event) int64 {
	if len(events) == 0 {
		return 0
	}
	return events[len(events)-1].RecOut
}

// mediaFrames is the source length used for clip durations.
func mediaFrames(tl *timeline.Timeline, events []event) int64 {
	frames := int64(0)
	if tl.Media.DurationSeconds > 0 {
		frames = timecode.SecondsToFrames(tl.Media.DurationSeconds, tl.Rate)
	}
	for _, e := range events {
		if e.SrcOut > frames {
			frames = e.SrcOut
		}
	}
	return frames
}

// eventAt returns the index of the last event starting at or before frame.
func eventAt(events []event, frame int64) int {
	idx := 0
	for i, e := range events {
		if e.RecIn > frame {
			break
		}
		idx = i
	}
	return idx
}
