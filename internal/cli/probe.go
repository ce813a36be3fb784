package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mgpai22/cutline/internal/timecode"
	"github.com/mgpai22/cutline/internal/timeline"
	"github.com/mgpai22/cutline/internal/video"
)

var probeCmd = &cobra.Command{
	Use:   "probe [media_file]",
	Short: "Probe a media file and write its metadata",
	Long: `Read frame rate, frame size, pixel aspect ratio, duration and audio layout
with ffprobe and write them as metadata JSON.

The output can be passed back to export with --metadata.

Examples:
  cutline probe talk.mp4
  cutline probe talk.mov -o -`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	mediaPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := requireFile(mediaPath); err != nil {
		return err
	}
	outputPath := outputFor(cmd, mediaPath, ".metadata.json")

	info, err := video.NewProcessor().Probe(ctx, mediaPath)
	if err != nil {
		return err
	}
	md := info.Metadata

	// an unusable rate is reported, not fatal: the metadata is still useful
	rate, rateErr := timecode.Classify(md.FPS)
	if rateErr != nil {
		logger.Warnw("Frame rate not supported for export",
			"fps", info.RawFrameRate,
			"error", rateErr,
		)
	}

	logger.Infow("Probed media",
		"input", mediaPath,
		"codec", info.Codec,
		"container", info.Container,
		"fps", info.RawFrameRate,
	)

	if err := writeOutput(outputPath, func(w io.Writer) error {
		return timeline.WriteMetadata(w, md)
	}); err != nil {
		return err
	}

	printWritten("Metadata", outputPath)
	if outputPath != "-" {
		if rateErr == nil {
			fmt.Printf("  Rate: %s\n", rate)
		} else {
			fmt.Printf("  Rate: %s (unsupported)\n", info.RawFrameRate)
		}
		fmt.Printf("  Size: %dx%d\n", md.Width, md.Height)
		fmt.Printf("  Duration: %.3fs\n", md.DurationSeconds)
		fmt.Printf("  Audio: %d ch @ %d Hz\n", md.AudioChannels, md.AudioSampleRate)
	}
	return nil
}
