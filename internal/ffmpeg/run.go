package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	ffmpeggo "github.com/u2takey/ffmpeg-go"
)

// maxStderr bounds how much ffmpeg chatter ends up in an error message.
const maxStderr = 2048

// Run executes a stream built with ffmpeg-go using the resolved binary and
// returns ffmpeg's stderr, where filters such as silencedetect report.
func Run(ctx context.Context, stream *ffmpeggo.Stream) (string, error) {
	bin, err := FFmpegPath()
	if err != nil {
		return "", err
	}
	return RunWith(ctx, bin, stream)
}

func RunWith(ctx context.Context, bin string, stream *ffmpeggo.Stream) (string, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, stream.GetArgs()...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return stderr.String(), ctx.Err()
		}
		return stderr.String(), fmt.Errorf("ffmpeg failed: %w: %s", err, tail(stderr.String()))
	}
	return stderr.String(), nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = "..." + s[len(s)-maxStderr:]
	}
	return s
}
