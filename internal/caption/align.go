package caption

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/mgpai22/cutline/internal/errs"
	"github.com/mgpai22/cutline/internal/timeline"
)

// Policy tunes how greedily words are assigned to a line.
type Policy struct {
	// fraction of a line's characters that must be matched before it closes
	Threshold float64
	// keep taking words past the threshold while they still fit the line
	AbsorbTail bool
}

func DefaultPolicy() Policy {
	return Policy{Threshold: 0.8}
}

// Input is one alignment job.
type Input struct {
	Words []timeline.WordTimestamp
	Lines []string
	// window shared out proportionally when word timing runs out
	SpanStart float64
	SpanEnd   float64
}

// Aligner maps word timestamps onto reformatted caption lines.
type Aligner struct {
	Policy Policy
}

func New(policy Policy) *Aligner {
	return &Aligner{Policy: policy}
}

// Normalize drops whitespace, punctuation and symbols after NFKC folding.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

type line struct {
	index int
	text  string
	chars int
}

type word struct {
	timeline.WordTimestamp
	chars int
}

// Align produces one cue per non-empty line, in order and without overlap.
func (a *Aligner) Align(in Input) ([]timeline.CaptionCue, error) {
	const op = "caption.Align"

	threshold := a.Policy.Threshold
	if math.IsNaN(threshold) || threshold <= 0 || threshold > 1 {
		return nil, errs.InvalidInput(op, errs.NoIndex, threshold, "threshold must be in (0, 1]")
	}

	validated, err := timeline.NewWords(in.Words)
	if err != nil {
		return nil, err
	}
	words := make([]word, len(validated))
	for i, w := range validated {
		words[i] = word{WordTimestamp: w, chars: utf8.RuneCountInString(Normalize(w.Word))}
	}

	var lines []line
	for i, text := range in.Lines {
		text = strings.TrimSpace(text)
		chars := utf8.RuneCountInString(Normalize(text))
		if chars == 0 {
			continue
		}
		lines = append(lines, line{index: i, text: text, chars: chars})
	}
	if len(lines) == 0 {
		return nil, nil
	}

	spanEnd := in.SpanEnd
	if n := len(words); n > 0 && spanEnd < words[n-1].End {
		spanEnd = words[n-1].End
	}

	cues := make([]timeline.CaptionCue, 0, len(lines))
	cursor := 0
	for li, ln := range lines {
		if cursor >= len(words) {
			start := in.SpanStart
			if n := len(cues); n > 0 {
				start = math.Max(start, cues[n-1].End)
			}
			rest, err := proportional(lines[li:], start, spanEnd)
			if err != nil {
				return nil, err
			}
			cues = append(cues, rest...)
			break
		}

		last := a.consume(words, cursor, ln.chars)
		cue := cueFor(ln, words[cursor:last+1])
		cursor = last + 1

		if n := len(cues); n > 0 && cue.Start < cues[n-1].End {
			cue.Start = cues[n-1].End
		}
		if cue.End <= cue.Start {
			cue.End = borrowEnd(words[cursor:], cue.Start, spanEnd)
			if cue.End <= cue.Start {
				// nothing left to borrow
				continue
			}
		}
		cues = append(cues, cue)
	}

	return timeline.NewCues(cues)
}

// consume returns the index of the last word taken for a line starting at cursor.
func (a *Aligner) consume(words []word, cursor, lineChars int) int {
	matched := 0
	i := cursor
	for ; i < len(words); i++ {
		matched += words[i].chars
		if float64(matched)/float64(lineChars) >= a.Policy.Threshold {
			break
		}
	}
	if i == len(words) {
		return len(words) - 1
	}

	if a.Policy.AbsorbTail {
		for i+1 < len(words) && matched+words[i+1].chars <= lineChars {
			i++
			matched += words[i].chars
		}
	}
	return i
}

func cueFor(ln line, taken []word) timeline.CaptionCue {
	// punctuation-only words do not set timing when real words are present
	firstTimed, lastTimed := -1, -1
	for i, w := range taken {
		if w.chars == 0 {
			continue
		}
		if firstTimed < 0 {
			firstTimed = i
		}
		lastTimed = i
	}
	if firstTimed < 0 {
		firstTimed, lastTimed = 0, len(taken)-1
	}

	return timeline.CaptionCue{
		Text:      ln.text,
		Start:     taken[firstTimed].Start,
		End:       taken[lastTimed].End,
		LineIndex: ln.index,
	}
}

// borrowEnd is the first boundary after start that a cue with no duration of
// its own can end on: the next word's start or end, else the span end.
func borrowEnd(rest []word, start, spanEnd float64) float64 {
	if len(rest) > 0 {
		if rest[0].Start > start {
			return rest[0].Start
		}
		if rest[0].End > start {
			return rest[0].End
		}
		return start
	}
	return spanEnd
}

// proportional shares [start, end] across lines by character count.
func proportional(lines []line, start, end float64) ([]timeline.CaptionCue, error) {
	if math.IsNaN(end) || math.IsInf(end, 0) || end-start <= 0 {
		return nil, errs.Alignment(
			"caption.Align", lines[0].index,
			"no word timing left and no span to allocate (%g..%g)", start, end,
		)
	}

	total := 0
	for _, ln := range lines {
		total += ln.chars
	}

	span := end - start
	cues := make([]timeline.CaptionCue, len(lines))
	cum := 0
	for i, ln := range lines {
		cueStart := start + span*float64(cum)/float64(total)
		cum += ln.chars
		cueEnd := start + span*float64(cum)/float64(total)
		if i == len(lines)-1 {
			cueEnd = end
		}
		cues[i] = timeline.CaptionCue{Text: ln.text, Start: cueStart, End: cueEnd, LineIndex: ln.index}
	}
	return cues, nil
}
