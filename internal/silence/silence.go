// Package silence finds quiet stretches in a media file with ffmpeg's
// silencedetect filter.
package silence

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/mgpai22/cutline/internal/errs"
	ffmpegbin "github.com/mgpai22/cutline/internal/ffmpeg"
	"github.com/mgpai22/cutline/internal/segment"
)

type Options struct {
	// level below which audio counts as silent, in dBFS
	NoiseDB float64
	// shortest silence ffmpeg reports, in seconds
	MinDuration float64
}

func DefaultOptions() Options {
	return Options{NoiseDB: -30, MinDuration: 0.3}
}

// Detector is the silence collaborator used by the pipeline.
type Detector interface {
	Detect(ctx context.Context, path string, total float64) ([]segment.Interval, error)
}

// FFmpegDetector runs silencedetect over the first audio stream.
type FFmpegDetector struct {
	Options Options
	// ffmpeg binary; resolved on first use when empty
	Bin string
}

func NewDetector(opts Options) *FFmpegDetector {
	return &FFmpegDetector{Options: opts}
}

func (d *FFmpegDetector) Detect(ctx context.Context, path string, total float64) ([]segment.Interval, error) {
	const op = "silence.Detect"

	if d.Options.NoiseDB >= 0 || d.Options.MinDuration < 0 {
		return nil, errs.InvalidInput(op, errs.NoIndex, d.Options, "noise level must be negative and duration non-negative")
	}

	stream := Stream(path, d.Options)
	var (
		stderr string
		err    error
	)
	if d.Bin != "" {
		stderr, err = ffmpegbin.RunWith(ctx, d.Bin, stream)
	} else {
		stderr, err = ffmpegbin.Run(ctx, stream)
	}
	if err != nil {
		return nil, errs.Collaborator(op, err, "silencedetect failed on %s", path)
	}
	return Parse(strings.NewReader(stderr), total)
}

// Stream builds the analysis command: decode audio only, discard output.
func Stream(path string, opts Options) *ffmpeg.Stream {
	filter := fmt.Sprintf("silencedetect=noise=%gdB:d=%g", opts.NoiseDB, opts.MinDuration)
	return ffmpeg.Input(path).
		Output("-", ffmpeg.KwArgs{"af": filter, "vn": "", "f": "null"})
}

var (
	startRe = regexp.MustCompile(`silence_start:\s*(-?[0-9.eE+-]+)`)
	endRe   = regexp.MustCompile(`silence_end:\s*(-?[0-9.eE+-]+)`)
)

// Parse reads silencedetect log lines. A silence still open at end of input
// runs to total; when total is unknown it is dropped.
func Parse(r io.Reader, total float64) ([]segment.Interval, error) {
	const op = "silence.Parse"

	var (
		out   []segment.Interval
		start float64
		open  bool
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if m := startRe.FindStringSubmatch(line); m != nil {
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return nil, errs.Collaborator(op, err, "bad silence_start %q", m[1])
			}
			start, open = max(v, 0), true
			continue
		}
		if m := endRe.FindStringSubmatch(line); m != nil {
			if !open {
				continue
			}
			end, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return nil, errs.Collaborator(op, err, "bad silence_end %q", m[1])
			}
			if end < start {
				return nil, errs.Collaborator(op, nil, "silence ends at %g before it starts at %g", end, start)
			}
			if end > start {
				out = append(out, segment.Interval{Start: start, End: end})
			}
			open = false
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errs.Collaborator(op, err, "failed to read silencedetect output")
	}
	if open && total > start {
		out = append(out, segment.Interval{Start: start, End: total})
	}
	return out, nil
}
