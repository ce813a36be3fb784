// Package pipeline drives the collaborators that turn a media file into a
// cut timeline and writes that timeline in the requested formats.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mgpai22/cutline/internal/caption"
	"github.com/mgpai22/cutline/internal/export"
	"github.com/mgpai22/cutline/internal/logging"
	"github.com/mgpai22/cutline/internal/reformat"
	"github.com/mgpai22/cutline/internal/segment"
	"github.com/mgpai22/cutline/internal/silence"
	"github.com/mgpai22/cutline/internal/timecode"
	"github.com/mgpai22/cutline/internal/timeline"
	"github.com/mgpai22/cutline/internal/transcribe"
	"github.com/mgpai22/cutline/internal/video"
)

// Exporter holds the collaborators and policies for one run. Nil
// collaborators are only an error when a request needs them.
type Exporter struct {
	Media       video.Processor
	Silence     silence.Detector
	Audio       AudioSource
	Transcriber transcribe.Transcriber
	Reformatter reformat.Reformatter

	Segments segment.Policy
	Align    caption.Policy
	Export   export.Options

	// transcription workers
	Concurrency int
	Logger      *logging.Logger
}

// Request describes one media file. Any precomputed collaborator output
// that is set is used instead of running that collaborator.
type Request struct {
	MediaPath string
	Title     string

	Metadata *timeline.Metadata
	Segments []timeline.Segment
	Words    []timeline.WordTimestamp
	Lines    []string
	// source-timeline cues, e.g. from an imported subtitle file
	Cues []timeline.CaptionCue

	Captions bool
}

// Build is everything a run produced.
type Build struct {
	Timeline *timeline.Timeline
	Metadata timeline.Metadata
	Words    []timeline.WordTimestamp
	// captions on the source timeline
	Bundle timeline.CaptionBundle
}

func (e *Exporter) log() *logging.Logger {
	if e.Logger == nil {
		return logging.Nop()
	}
	return e.Logger
}

// Build runs every stage the request leaves open and assembles the timeline.
func (e *Exporter) Build(ctx context.Context, req Request) (*Build, error) {
	path, err := filepath.Abs(req.MediaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media path: %w", err)
	}

	var md timeline.Metadata
	if req.Metadata != nil {
		md = *req.Metadata
	} else {
		if md, err = e.Probe(ctx, path); err != nil {
			return nil, err
		}
	}
	rate, err := timecode.Classify(md.FPS)
	if err != nil {
		return nil, err
	}

	segs := req.Segments
	if segs == nil {
		if segs, err = e.DetectSegments(ctx, path, md.DurationSeconds); err != nil {
			return nil, err
		}
	}

	out := &Build{Metadata: md, Words: req.Words}

	sourceCues := req.Cues
	if sourceCues == nil && req.Captions {
		if out.Words == nil {
			res, err := e.Transcribe(ctx, path)
			if err != nil {
				return nil, err
			}
			out.Words = res.Words
			out.Bundle.OriginalText = res.Text
		}
		bundle, err := e.Captions(ctx, out.Words, out.Bundle.OriginalText, req.Lines, md.DurationSeconds)
		if err != nil {
			return nil, err
		}
		out.Bundle = bundle
		sourceCues = bundle.Captions
	} else if sourceCues != nil {
		out.Bundle.Captions = sourceCues
	}

	recordCues, err := timeline.MapToRecord(sourceCues, segs)
	if err != nil {
		return nil, err
	}
	if dropped := len(sourceCues) - len(recordCues); dropped > 0 {
		e.log().Debugw("Dropped cues inside removed material", "count", dropped)
	}

	tl, err := timeline.NewTimeline(req.Title, md.Media(path), rate, segs, recordCues)
	if err != nil {
		return nil, err
	}
	out.Timeline = tl

	e.log().Infow("Timeline built",
		"file", filepath.Base(path),
		"rate", rate.String(),
		"segments", len(segs),
		"cues", len(recordCues),
		"record_seconds", tl.RecordDuration(),
	)
	return out, nil
}

// Probe asks the media collaborator for the file's metadata.
func (e *Exporter) Probe(ctx context.Context, path string) (timeline.Metadata, error) {
	if e.Media == nil {
		return timeline.Metadata{}, fmt.Errorf("no media prober configured")
	}
	info, err := e.Media.Probe(ctx, path)
	if err != nil {
		return timeline.Metadata{}, err
	}
	e.log().Debugw("Probed media",
		"file", filepath.Base(path),
		"fps", info.RawFrameRate,
		"width", info.Metadata.Width,
		"height", info.Metadata.Height,
		"duration", info.Metadata.DurationSeconds,
		"audio_channels", info.Metadata.AudioChannels,
	)
	return info.Metadata, nil
}

// DetectSegments runs silence detection and reduces it to retained segments.
func (e *Exporter) DetectSegments(ctx context.Context, path string, total float64) ([]timeline.Segment, error) {
	if e.Silence == nil {
		return nil, fmt.Errorf("no silence detector configured")
	}
	silences, err := e.Silence.Detect(ctx, path, total)
	if err != nil {
		return nil, err
	}
	segs, err := segment.Reduce(silences, total, e.Segments)
	if err != nil {
		return nil, err
	}
	e.log().Infow("Silence reduced",
		"silences", len(silences),
		"segments", len(segs),
	)
	return segs, nil
}

// Transcribe cuts the media's audio into chunks and transcribes them.
func (e *Exporter) Transcribe(ctx context.Context, path string) (*transcribe.Result, error) {
	if e.Transcriber == nil {
		return nil, fmt.Errorf("no transcriber configured")
	}
	if e.Audio == nil {
		return nil, fmt.Errorf("no audio source configured")
	}

	workDir, err := os.MkdirTemp("", "cutline-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	chunks, err := e.Audio.Chunks(ctx, path, workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare audio: %w", err)
	}
	e.log().Infow("Transcribing audio",
		"chunks", len(chunks),
		"concurrency", e.Concurrency,
	)

	res, err := transcribe.TranscribeChunks(ctx, e.Transcriber, chunks, e.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}
	e.log().Infow("Transcription complete",
		"words", len(res.Words),
		"language", res.Language,
	)
	return res, nil
}

// Captions reformats the transcript into lines, unless lines are given, and
// aligns them to the words. Lines left over when the words run out share the
// time up to spanEnd, the media duration; zero means the last word's end.
// Cues stay on the source timeline.
func (e *Exporter) Captions(
	ctx context.Context,
	words []timeline.WordTimestamp,
	text string,
	lines []string,
	spanEnd float64,
) (timeline.CaptionBundle, error) {
	if strings.TrimSpace(text) == "" {
		text = joinWords(words)
	}
	bundle := timeline.CaptionBundle{OriginalText: text}

	if lines == nil {
		r := e.Reformatter
		if r == nil {
			r = reformat.NewLocal(0)
		}
		var err error
		if lines, err = r.Reformat(ctx, text); err != nil {
			return bundle, fmt.Errorf("reformatting failed: %w", err)
		}
	}
	bundle.FormattedText = strings.Join(lines, "\n")

	cues, err := caption.New(e.Align).Align(caption.Input{
		Words:   words,
		Lines:   lines,
		SpanEnd: spanEnd,
	})
	if err != nil {
		return bundle, err
	}
	bundle.Captions = cues

	e.log().Infow("Captions aligned",
		"lines", len(lines),
		"cues", len(cues),
	)
	return bundle, nil
}

func joinWords(words []timeline.WordTimestamp) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Word
	}
	return strings.Join(parts, " ")
}
