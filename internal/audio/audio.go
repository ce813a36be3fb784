package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/mgpai22/cutline/internal/ffmpeg"
)

// ChunkInfo is one slice of a longer recording. Offset is where the chunk
// starts in the source, used to shift chunk-relative timestamps back.
type ChunkInfo struct {
	Path   string
	Index  int
	Offset time.Duration
	Length time.Duration
}

func (c ChunkInfo) OffsetSeconds() float64 {
	return c.Offset.Seconds()
}

// settings for re-encoding audio
type CompressionOptions struct {
	Format     string // mp3, aac, flac or wav
	SampleRate int    // Hz
	Channels   int    // 1=mono, 2=stereo
	Bitrate    string // lossy formats only, e.g. "64k"
}

// defaults for speech transcription uploads
func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		Format:     "mp3",
		SampleRate: 16000,
		Channels:   1,
		Bitrate:    "64k",
	}
}

// EncodeArgs returns the ffmpeg output arguments for an audio-only encode.
func EncodeArgs(opts CompressionOptions) ffmpeg.KwArgs {
	kwargs := ffmpeg.KwArgs{"vn": ""}
	if opts.SampleRate > 0 {
		kwargs["ar"] = opts.SampleRate
	}
	if opts.Channels > 0 {
		kwargs["ac"] = opts.Channels
	}

	lossy := true
	switch opts.Format {
	case "aac":
		kwargs["acodec"] = "aac"
	case "flac":
		kwargs["acodec"] = "flac"
		lossy = false
	case "wav":
		kwargs["acodec"] = "pcm_s16le"
		lossy = false
	default:
		kwargs["acodec"] = "libmp3lame"
	}
	if lossy && opts.Bitrate != "" {
		kwargs["b:a"] = opts.Bitrate
	}
	return kwargs
}

// ValidFormat reports whether EncodeArgs knows the container.
func ValidFormat(format string) bool {
	switch format {
	case "mp3", "aac", "flac", "wav":
		return true
	}
	return false
}

type ffprobeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration asks ffprobe for the container duration.
func Duration(ctx context.Context, filePath string) (time.Duration, error) {
	if _, err := os.Stat(filePath); err != nil {
		return 0, fmt.Errorf("file not found: %s", filePath)
	}

	ffprobePath, err := ffmpegbin.FFprobePath()
	if err != nil {
		return 0, err
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		filePath,
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe ffprobeFormat
	if err := json.Unmarshal(out.Bytes(), &probe); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	seconds, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", probe.Format.Duration, err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// Compress re-encodes any media file into a small audio-only file.
func Compress(ctx context.Context, inputPath, outputPath string, opts CompressionOptions) error {
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("input file not found: %s", inputPath)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	stream := ffmpeg.Input(inputPath).
		Output(outputPath, EncodeArgs(opts)).
		OverWriteOutput()
	if _, err := ffmpegbin.Run(ctx, stream); err != nil {
		return fmt.Errorf("compression failed: %w", err)
	}
	return nil
}

// PlanChunks splits [0, total) into pieces of at most size.
func PlanChunks(total, size time.Duration) ([]ChunkInfo, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %v", size)
	}
	var chunks []ChunkInfo
	for i := 0; ; i++ {
		start := time.Duration(i) * size
		if start >= total {
			break
		}
		chunks = append(chunks, ChunkInfo{
			Index:  i,
			Offset: start,
			Length: min(size, total-start),
		})
	}
	return chunks, nil
}

// ChunkAudio splits an audio file into chunks with at most concurrency
// ffmpeg processes at once (10 when concurrency <= 0).
func ChunkAudio(
	ctx context.Context,
	audioPath string,
	chunkDuration time.Duration,
	outputDir string,
	concurrency int,
) ([]ChunkInfo, error) {
	if concurrency <= 0 {
		concurrency = 10
	}

	total, err := Duration(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get audio duration: %w", err)
	}
	chunks, err := PlanChunks(total, chunkDuration)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	ext := filepath.Ext(audioPath)
	base := strings.TrimSuffix(filepath.Base(audioPath), ext)
	for i := range chunks {
		chunks[i].Path = filepath.Join(outputDir, fmt.Sprintf("%s_chunk_%03d%s", base, i, ext))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)
	sem := make(chan struct{}, concurrency)

	for _, c := range chunks {
		wg.Add(1)
		go func(c ChunkInfo) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			stream := ffmpeg.Input(audioPath, ffmpeg.KwArgs{"ss": c.Offset.Seconds()}).
				Output(c.Path, ffmpeg.KwArgs{"t": c.Length.Seconds(), "c": "copy"}).
				OverWriteOutput()
			if _, err := ffmpegbin.Run(ctx, stream); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("failed to create chunk %d: %w", c.Index, err)
					cancel()
				}
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	if firstErr != nil {
		_ = CleanupChunks(chunks)
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}

var (
	videoExts = map[string]bool{
		".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".wmv": true, ".flv": true,
		".webm": true, ".m4v": true, ".mpeg": true, ".mpg": true, ".3gp": true, ".mxf": true,
	}
	audioExts = map[string]bool{
		".mp3": true, ".wav": true, ".aac": true, ".flac": true, ".ogg": true,
		".m4a": true, ".wma": true, ".aiff": true,
	}
)

func IsVideoFile(path string) bool {
	return videoExts[strings.ToLower(filepath.Ext(path))]
}

func IsAudioFile(path string) bool {
	return audioExts[strings.ToLower(filepath.Ext(path))]
}

func IsMediaFile(path string) bool {
	return IsAudioFile(path) || IsVideoFile(path)
}

// removes all chunk files
func CleanupChunks(chunks []ChunkInfo) error {
	var lastErr error
	for _, c := range chunks {
		if c.Path == "" {
			continue
		}
		if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
			lastErr = err
		}
	}
	return lastErr
}
