package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mgpai22/cutline/internal/timeline"
)

var segmentsCmd = &cobra.Command{
	Use:   "segments [media_file]",
	Short: "Detect silence and write the retained speech segments",
	Long: `Run silence detection on an audio or video file and write the segments
that an export would keep, as JSON.

The output can be edited and passed back to export with --segments.

Examples:
  cutline segments talk.mp4
  cutline segments talk.mp4 --min-silence 0.6 --margin 0.1 -o -`,
	Args: cobra.ExactArgs(1),
	RunE: runSegments,
}

func init() {
	rootCmd.AddCommand(segmentsCmd)

	segmentsCmd.Flags().
		String("metadata", "", "Media metadata JSON to use instead of probing")

	addSilenceFlags(segmentsCmd)
}

func runSegments(cmd *cobra.Command, args []string) error {
	mediaPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := requireFile(mediaPath); err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	outputPath := outputFor(cmd, mediaPath, ".segments.json")

	exporter := newExporter(cfg)

	var md timeline.Metadata
	if metadataPath, _ := cmd.Flags().GetString("metadata"); metadataPath != "" {
		var err error
		if md, err = timeline.ReadMetadataFile(metadataPath); err != nil {
			return err
		}
	} else {
		var err error
		if md, err = exporter.Probe(ctx, mediaPath); err != nil {
			return err
		}
	}

	logger.Infow("Detecting silence",
		"input", mediaPath,
		"duration", md.DurationSeconds,
		"min_silence", cfg.Silence.MinSilence,
		"margin", cfg.Silence.Margin,
		"noise_db", cfg.Silence.NoiseDB,
	)

	segs, err := exporter.DetectSegments(ctx, mediaPath, md.DurationSeconds)
	if err != nil {
		return err
	}

	if err := writeOutput(outputPath, func(w io.Writer) error {
		return timeline.WriteSegments(w, segs)
	}); err != nil {
		return err
	}

	var kept float64
	for _, s := range segs {
		kept += s.Duration
	}
	printWritten("Segments", outputPath)
	if outputPath != "-" {
		fmt.Printf("  Segments: %d\n", len(segs))
		fmt.Printf("  Kept: %.3fs of %.3fs\n", kept, md.DurationSeconds)
	}
	return nil
}
