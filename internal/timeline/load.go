package timeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/mgpai22/cutline/internal/errs"
)

// stored durations may disagree with end-start by at most this much
const durationTolerance = 0.001

type segmentRecord struct {
	Index    int      `json:"index"`
	Start    float64  `json:"start"`
	End      float64  `json:"end"`
	Duration *float64 `json:"duration,omitempty"`
}

type cueRecord struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type wordRecord struct {
	Word  string  `json:"word"`
	Text  string  `json:"text,omitempty"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type metadataRecord struct {
	FPS              float64 `json:"fps"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	Duration         float64 `json:"duration"`
	PixelAspectRatio float64 `json:"pixel_aspect_ratio"`
	SampleRate       int     `json:"sample_rate,omitempty"`
	Channels         int     `json:"channels,omitempty"`
}

// CaptionBundle is the reformatting collaborator's output.
type CaptionBundle struct {
	OriginalText  string
	FormattedText string
	Captions      []CaptionCue
}

type captionBundleRecord struct {
	OriginalText  string      `json:"original_text"`
	FormattedText string      `json:"formatted_text"`
	Captions      []cueRecord `json:"captions"`
}

func decode(op string, r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return errs.Collaborator(op, err, "malformed JSON")
	}
	return nil
}

func readFile(op, path string, load func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errs.Collaborator(op, err, "failed to open %s", path)
	}
	defer f.Close()
	return load(f)
}

// LoadSegments reads [{"index","start","end","duration"}].
func LoadSegments(r io.Reader) ([]Segment, error) {
	const op = "timeline.LoadSegments"

	var records []segmentRecord
	if err := decode(op, r, &records); err != nil {
		return nil, err
	}

	segs := make([]Segment, len(records))
	for i, rec := range records {
		if rec.Duration != nil && math.Abs(*rec.Duration-(rec.End-rec.Start)) > durationTolerance {
			return nil, errs.InvalidInput(op, i, *rec.Duration, "duration disagrees with end-start")
		}
		segs[i] = Segment{Index: rec.Index, Start: rec.Start, End: rec.End}
	}
	return NewSegments(segs)
}

func ReadSegmentsFile(path string) ([]Segment, error) {
	var segs []Segment
	err := readFile("timeline.ReadSegmentsFile", path, func(r io.Reader) error {
		var err error
		segs, err = LoadSegments(r)
		return err
	})
	return segs, err
}

// WriteSegments writes segments in the same shape LoadSegments reads.
func WriteSegments(w io.Writer, segs []Segment) error {
	records := make([]segmentRecord, len(segs))
	for i, s := range segs {
		d := s.Duration
		records[i] = segmentRecord{Index: s.Index, Start: s.Start, End: s.End, Duration: &d}
	}
	return writeJSON(w, records)
}

// LoadCaptionBundle reads {"original_text","formatted_text","captions":[...]}.
func LoadCaptionBundle(r io.Reader) (CaptionBundle, error) {
	const op = "timeline.LoadCaptionBundle"

	var rec captionBundleRecord
	if err := decode(op, r, &rec); err != nil {
		return CaptionBundle{}, err
	}

	cues := make([]CaptionCue, len(rec.Captions))
	for i, c := range rec.Captions {
		cues[i] = CaptionCue{Text: c.Text, Start: c.Start, End: c.End, LineIndex: i}
	}
	validated, err := NewCues(cues)
	if err != nil {
		return CaptionBundle{}, err
	}

	return CaptionBundle{
		OriginalText:  rec.OriginalText,
		FormattedText: rec.FormattedText,
		Captions:      validated,
	}, nil
}

func ReadCaptionBundleFile(path string) (CaptionBundle, error) {
	var b CaptionBundle
	err := readFile("timeline.ReadCaptionBundleFile", path, func(r io.Reader) error {
		var err error
		b, err = LoadCaptionBundle(r)
		return err
	})
	return b, err
}

func WriteCaptionBundle(w io.Writer, b CaptionBundle) error {
	rec := captionBundleRecord{
		OriginalText:  b.OriginalText,
		FormattedText: b.FormattedText,
		Captions:      make([]cueRecord, len(b.Captions)),
	}
	for i, c := range b.Captions {
		rec.Captions[i] = cueRecord{Text: c.Text, Start: c.Start, End: c.End}
	}
	return writeJSON(w, rec)
}

// LoadWords accepts a bare array or an object with a "words" field.
func LoadWords(r io.Reader) ([]WordTimestamp, error) {
	const op = "timeline.LoadWords"

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.Collaborator(op, err, "failed to read words")
	}

	var records []wordRecord
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Words []wordRecord `json:"words"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, errs.Collaborator(op, err, "malformed JSON")
		}
		if wrapped.Words == nil {
			return nil, errs.Collaborator(op, nil, "object has no words field")
		}
		records = wrapped.Words
	} else if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, errs.Collaborator(op, err, "malformed JSON")
	}

	words := make([]WordTimestamp, len(records))
	for i, rec := range records {
		text := rec.Word
		if text == "" {
			text = rec.Text
		}
		words[i] = WordTimestamp{Word: text, Start: rec.Start, End: rec.End}
	}
	return NewWords(words)
}

func ReadWordsFile(path string) ([]WordTimestamp, error) {
	var words []WordTimestamp
	err := readFile("timeline.ReadWordsFile", path, func(r io.Reader) error {
		var err error
		words, err = LoadWords(r)
		return err
	})
	return words, err
}

func WriteWords(w io.Writer, words []WordTimestamp) error {
	records := make([]wordRecord, len(words))
	for i, word := range words {
		records[i] = wordRecord{Word: word.Word, Start: word.Start, End: word.End}
	}
	return writeJSON(w, records)
}

// LoadMetadata reads {"fps","width","height","duration","pixel_aspect_ratio"}.
func LoadMetadata(r io.Reader) (Metadata, error) {
	const op = "timeline.LoadMetadata"

	var rec metadataRecord
	if err := decode(op, r, &rec); err != nil {
		return Metadata{}, err
	}
	if rec.FPS == 0 {
		return Metadata{}, errs.Collaborator(op, nil, "metadata has no fps")
	}
	if rec.Duration <= 0 || !finite(rec.Duration) {
		return Metadata{}, errs.Collaborator(op, nil, "metadata has no usable duration (%g)", rec.Duration)
	}

	par := rec.PixelAspectRatio
	if par == 0 {
		par = 1
	}

	return Metadata{
		FPS:              rec.FPS,
		Width:            rec.Width,
		Height:           rec.Height,
		DurationSeconds:  rec.Duration,
		PixelAspectRatio: par,
		AudioSampleRate:  rec.SampleRate,
		AudioChannels:    rec.Channels,
	}, nil
}

func ReadMetadataFile(path string) (Metadata, error) {
	var m Metadata
	err := readFile("timeline.ReadMetadataFile", path, func(r io.Reader) error {
		var err error
		m, err = LoadMetadata(r)
		return err
	})
	return m, err
}

func WriteMetadata(w io.Writer, m Metadata) error {
	return writeJSON(w, metadataRecord{
		FPS:              m.FPS,
		Width:            m.Width,
		Height:           m.Height,
		Duration:         m.DurationSeconds,
		PixelAspectRatio: m.PixelAspectRatio,
		SampleRate:       m.AudioSampleRate,
		Channels:         m.AudioChannels,
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
