package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/mgpai22/cutline/internal/audio"
	"github.com/mgpai22/cutline/internal/errs"
	ffmpegbin "github.com/mgpai22/cutline/internal/ffmpeg"
	"github.com/mgpai22/cutline/internal/timecode"
	"github.com/mgpai22/cutline/internal/timeline"
)

// Info is what the probe learned about a media file.
type Info struct {
	Path     string
	Metadata timeline.Metadata
	// frame rate as reported, e.g. "30000/1001"
	RawFrameRate string
	Codec        string
	Container    string
}

func (i Info) HasAudio() bool {
	return i.Metadata.AudioChannels > 0
}

// Processor is the media collaborator used by the pipeline.
type Processor interface {
	ExtractAudio(ctx context.Context, videoPath, outputPath string, opts ExtractAudioOptions) error
	Probe(ctx context.Context, path string) (*Info, error)
}

// holds options for audio extraction
type ExtractAudioOptions = audio.CompressionOptions

// returns sensible defaults for audio extraction
func DefaultExtractAudioOptions() ExtractAudioOptions {
	return ExtractAudioOptions{
		Format:     "wav",
		SampleRate: 16000,
		Channels:   1,
	}
}

// default implementation using ffmpeg and ffprobe
type DefaultProcessor struct{}

func NewProcessor() *DefaultProcessor {
	return &DefaultProcessor{}
}

// extracts audio from video file
func (p *DefaultProcessor) ExtractAudio(
	ctx context.Context,
	videoPath, outputPath string,
	opts ExtractAudioOptions,
) error {
	if _, err := os.Stat(videoPath); err != nil {
		return fmt.Errorf("video file not found: %s", videoPath)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	stream := ffmpeg.Input(videoPath).
		Output(outputPath, audio.EncodeArgs(opts)).
		OverWriteOutput()
	if _, err := ffmpegbin.Run(ctx, stream); err != nil {
		return fmt.Errorf("ffmpeg extraction failed: %w", err)
	}
	return nil
}

// Probe runs ffprobe on the file and converts its report into timeline metadata.
func (p *DefaultProcessor) Probe(ctx context.Context, path string) (*Info, error) {
	const op = "video.Probe"

	if _, err := os.Stat(path); err != nil {
		return nil, errs.Collaborator(op, err, "media file not readable")
	}
	ffprobePath, err := ffmpegbin.FFprobePath()
	if err != nil {
		return nil, errs.Collaborator(op, err, "ffprobe unavailable")
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, errs.Collaborator(op, err, "ffprobe failed on %s", path)
	}

	info, err := ParseProbe(out.Bytes())
	if err != nil {
		return nil, err
	}
	info.Path = path
	return info, nil
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

type probeStream struct {
	CodecType         string `json:"codec_type"`
	CodecName         string `json:"codec_name"`
	Width             int    `json:"width"`
	Height            int    `json:"height"`
	AvgFrameRate      string `json:"avg_frame_rate"`
	RFrameRate        string `json:"r_frame_rate"`
	SampleAspectRatio string `json:"sample_aspect_ratio"`
	Duration          string `json:"duration"`
	SampleRate        string `json:"sample_rate"`
	Channels          int    `json:"channels"`
}

// ParseProbe reads ffprobe's JSON report. The first video stream is required;
// audio is optional and reported as zero channels when absent.
func ParseProbe(data []byte) (*Info, error) {
	const op = "video.ParseProbe"

	var raw probeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.Collaborator(op, err, "malformed ffprobe output")
	}

	var vs, as *probeStream
	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch {
		case s.CodecType == "video" && vs == nil:
			vs = s
		case s.CodecType == "audio" && as == nil:
			as = s
		}
	}
	if vs == nil {
		return nil, errs.Collaborator(op, nil, "no video stream")
	}

	rate := vs.AvgFrameRate
	if !usableRate(rate) {
		rate = vs.RFrameRate
	}
	if !usableRate(rate) {
		return nil, errs.Collaborator(op, nil, "video stream reports no frame rate")
	}
	fps, err := timecode.ParseRational(rate)
	if err != nil {
		return nil, err
	}

	duration, err := parseSeconds(raw.Format.Duration)
	if err != nil || duration <= 0 {
		duration, err = parseSeconds(vs.Duration)
	}
	if err != nil || duration <= 0 {
		return nil, errs.Collaborator(op, err, "media duration unknown")
	}

	md := timeline.Metadata{
		FPS:              fps,
		Width:            vs.Width,
		Height:           vs.Height,
		DurationSeconds:  duration,
		PixelAspectRatio: parseAspect(vs.SampleAspectRatio),
	}
	if as != nil {
		md.AudioChannels = as.Channels
		if sr, err := strconv.Atoi(as.SampleRate); err == nil {
			md.AudioSampleRate = sr
		}
	}

	return &Info{
		Metadata:     md,
		RawFrameRate: rate,
		Codec:        vs.CodecName,
		Container:    raw.Format.FormatName,
	}, nil
}

func usableRate(r string) bool {
	return r != "" && r != "0/0" && !strings.HasPrefix(r, "0/")
}

func parseSeconds(s string) (float64, error) {
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("no duration")
	}
	return strconv.ParseFloat(s, 64)
}

// parseAspect turns "10:11" into 0.909...; unknown or "0:1" means square.
func parseAspect(s string) float64 {
	n, d, ok := strings.Cut(s, ":")
	if !ok {
		return 1
	}
	num, err1 := strconv.ParseFloat(n, 64)
	den, err2 := strconv.ParseFloat(d, 64)
	if err1 != nil || err2 != nil || num <= 0 || den <= 0 {
		return 1
	}
	return num / den
}
