package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mgpai22/cutline/internal/audio"
	"github.com/mgpai22/cutline/internal/timeline"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe [media_file]",
	Short: "Transcribe a recording into word timestamps",
	Long: `Transcribe an audio or video file with word-level timestamps.

For video files the audio is extracted first. The audio is split into chunks
that are transcribed in parallel; word times are shifted back onto the source
timeline and written as JSON.

The output can be passed to align, or to export with --words.

Examples:
  cutline transcribe talk.mp4
  cutline transcribe talk.mp4 --provider gemini -l ja
  cutline transcribe podcast.mp3 --chunk-seconds 300 --concurrency 5 -o words.json`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

func init() {
	rootCmd.AddCommand(transcribeCmd)

	transcribeCmd.Flags().
		Bool("text", false, "Also write the plain transcript next to the words file")

	addTranscribeFlags(transcribeCmd)
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	mediaPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := requireFile(mediaPath); err != nil {
		return err
	}
	if !audio.IsMediaFile(mediaPath) {
		return fmt.Errorf("unsupported file type: %s (expected audio or video file)", filepath.Ext(mediaPath))
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	outputPath := outputFor(cmd, mediaPath, ".words.json")
	writeText, _ := cmd.Flags().GetBool("text")

	exporter := newExporter(cfg)
	exporter.Concurrency, _ = cmd.Flags().GetInt("concurrency")
	if exporter.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", exporter.Concurrency)
	}

	var err error
	if exporter.Transcriber, err = newTranscriber(ctx, cmd, cfg); err != nil {
		return err
	}

	logger.Infow("Starting transcription",
		"input", mediaPath,
		"output", outputPath,
		"provider", cfg.Transcribe.Provider,
		"chunk_seconds", cfg.Transcribe.ChunkSeconds,
	)

	res, err := exporter.Transcribe(ctx, mediaPath)
	if err != nil {
		return err
	}

	if err := writeOutput(outputPath, func(w io.Writer) error {
		return timeline.WriteWords(w, res.Words)
	}); err != nil {
		return err
	}
	if writeText && outputPath != "-" {
		textPath := stem(outputPath) + ".txt"
		if err := writeOutput(textPath, func(w io.Writer) error {
			_, err := io.WriteString(w, res.Text+"\n")
			return err
		}); err != nil {
			return err
		}
		printWritten("Transcript", textPath)
	}

	printWritten("Words", outputPath)
	if outputPath != "-" {
		fmt.Printf("  Words: %d\n", len(res.Words))
		if res.Language != "" {
			fmt.Printf("  Language: %s\n", res.Language)
		}
	}
	return nil
}
