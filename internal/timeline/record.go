package timeline

import "sort"

// RecordOffsets returns where each segment starts on the record timeline.
func RecordOffsets(segs []Segment) []float64 {
	offsets := make([]float64, len(segs))
	var acc float64
	for i, s := range segs {
		offsets[i] = acc
		acc += s.Duration
	}
	return offsets
}

// SourceToRecord maps a source time onto the record timeline.
// Times inside removed material collapse onto the cut point; inside reports
// whether t fell within a retained segment.
func SourceToRecord(t float64, segs []Segment, offsets []float64) (pos float64, inside bool) {
	if len(segs) == 0 {
		return 0, false
	}

	i := sort.Search(len(segs), func(i int) bool { return segs[i].End >= t })
	if i == len(segs) {
		last := len(segs) - 1
		return offsets[last] + segs[last].Duration, false
	}
	if t >= segs[i].Start {
		return offsets[i] + (t - segs[i].Start), true
	}
	return offsets[i], false
}

// MapToRecord moves source-timeline cues onto the record timeline.
// Cues that lie entirely in removed material are dropped.
func MapToRecord(cues []CaptionCue, segs []Segment) ([]CaptionCue, error) {
	offsets := RecordOffsets(segs)

	out := make([]CaptionCue, 0, len(cues))
	for _, c := range cues {
		start, startInside := SourceToRecord(c.Start, segs, offsets)
		end, _ := SourceToRecord(c.End, segs, offsets)

		if end <= start && (c.End > c.Start || !startInside) {
			continue
		}
		if n := len(out); n > 0 && start < out[n-1].End {
			start = out[n-1].End
			if end < start {
				continue
			}
		}

		out = append(out, CaptionCue{Text: c.Text, Start: start, End: end, LineIndex: c.LineIndex})
	}

	return NewCues(out)
}
