package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mgpai22/cutline/internal/audio"
	"github.com/mgpai22/cutline/internal/video"
)

// AudioSource cuts a media file's audio into transcription chunks inside
// workDir.
type AudioSource interface {
	Chunks(ctx context.Context, mediaPath, workDir string) ([]audio.ChunkInfo, error)
}

// FFmpegAudio extracts or compresses the audio with ffmpeg and splits it.
type FFmpegAudio struct {
	Processor   video.Processor
	ChunkLength time.Duration
	// ffmpeg processes used while splitting
	Concurrency int
}

func (a *FFmpegAudio) Chunks(ctx context.Context, mediaPath, workDir string) ([]audio.ChunkInfo, error) {
	opts := audio.DefaultCompressionOptions()
	audioPath := filepath.Join(workDir, "audio."+opts.Format)

	if audio.IsVideoFile(mediaPath) {
		if a.Processor == nil {
			return nil, fmt.Errorf("no media processor configured")
		}
		if err := a.Processor.ExtractAudio(ctx, mediaPath, audioPath, opts); err != nil {
			return nil, fmt.Errorf("failed to extract audio: %w", err)
		}
	} else {
		if err := audio.Compress(ctx, mediaPath, audioPath, opts); err != nil {
			return nil, fmt.Errorf("failed to compress audio: %w", err)
		}
	}

	return audio.ChunkAudio(ctx, audioPath, a.ChunkLength, filepath.Join(workDir, "chunks"), a.Concurrency)
}
