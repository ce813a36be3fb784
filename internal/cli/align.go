package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mgpai22/cutline/internal/timeline"
)

var alignCmd = &cobra.Command{
	Use:   "align [words_file]",
	Short: "Align caption lines to word timestamps",
	Long: `Time caption lines against a word timestamps file and write a caption
bundle (original text, formatted text, timed captions).

Lines come from --lines, one caption per line. Without --lines the transcript
is reformatted into lines first: locally by wrapping at --max-chars, or by an
LLM provider set with --reformat-provider.

Lines left over once the words run out share the time up to the end of the
media when --metadata gives its duration, else up to the last word.

Caption times stay on the source timeline; export maps them onto the cut.

Examples:
  cutline align talk.words.json --lines talk.txt
  cutline align talk.words.json --reformat-provider anthropic --max-chars 32
  cutline align talk.words.json --threshold 0.7 -o -
  cutline align talk.words.json --lines talk.txt --metadata talk.metadata.json`,
	Args: cobra.ExactArgs(1),
	RunE: runAlign,
}

func init() {
	rootCmd.AddCommand(alignCmd)

	alignCmd.Flags().
		String("lines", "", "Text file with one caption line per line")
	alignCmd.Flags().
		String("language", "", "Transcript language hint for LLM reformatting")
	alignCmd.Flags().
		String("metadata", "", "Media metadata JSON; its duration bounds captions past the last word")

	addCaptionFlags(alignCmd)
}

func runAlign(cmd *cobra.Command, args []string) error {
	wordsPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	outputPath := outputFor(cmd, wordsPath, ".captions.json")

	words, err := timeline.ReadWordsFile(wordsPath)
	if err != nil {
		return err
	}

	var lines []string
	if linesPath, _ := cmd.Flags().GetString("lines"); linesPath != "" {
		if lines, err = readLinesFile(linesPath); err != nil {
			return err
		}
	}

	var spanEnd float64
	if metadataPath, _ := cmd.Flags().GetString("metadata"); metadataPath != "" {
		md, err := timeline.ReadMetadataFile(metadataPath)
		if err != nil {
			return err
		}
		spanEnd = md.DurationSeconds
	}

	exporter := newExporter(cfg)
	if lines == nil {
		if exporter.Reformatter, err = newReformatter(ctx, cfg); err != nil {
			return err
		}
	}

	logger.Infow("Aligning captions",
		"words", len(words),
		"lines", len(lines),
		"threshold", cfg.Captions.Threshold,
		"span_end", spanEnd,
	)

	bundle, err := exporter.Captions(ctx, words, "", lines, spanEnd)
	if err != nil {
		return err
	}

	if err := writeOutput(outputPath, func(w io.Writer) error {
		return timeline.WriteCaptionBundle(w, bundle)
	}); err != nil {
		return err
	}

	printWritten("Captions", outputPath)
	if outputPath != "-" {
		fmt.Printf("  Captions: %d\n", len(bundle.Captions))
	}
	return nil
}
