package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgpai22/cutline/internal/errs"
	"github.com/mgpai22/cutline/internal/pipeline"
	"github.com/mgpai22/cutline/internal/subtitle"
	"github.com/mgpai22/cutline/internal/timeline"
)

var exportCmd = &cobra.Command{
	Use:   "export [media_file]",
	Short: "Cut silence from a recording and export editor timelines",
	Long: `Detect silence in an audio or video file, keep the speech, and write the
resulting timeline in one or more formats.

Formats: xml (Final Cut Pro 7 xmeml), xml-strict (xmeml without optional
metadata), fcpxml, edl (CMX 3600), srt and vtt.

Captions come from, in order of preference: --captions (a caption bundle
JSON, or an SRT/VTT/ASS file), --words (word timestamps, aligned to --lines
or to reformatted transcript lines), or --transcribe (run a transcription
provider first). A caption bundle that holds only formatted text is aligned
against --words or --transcribe. Precomputed --metadata and --segments skip ffprobe and
silence detection.

Examples:
  cutline export talk.mp4
  cutline export talk.mp4 -f xml,srt --transcribe
  cutline export talk.mp4 -f fcpxml --captions talk.srt
  cutline export talk.mov --metadata talk.meta.json --segments talk.segments.json -o out/`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().
		StringSliceP("format", "f", nil, "Output formats (xml, xml-strict, fcpxml, edl, srt, vtt)")
	exportCmd.Flags().
		String("title", "", "Sequence title (default: media file name)")
	exportCmd.Flags().
		String("metadata", "", "Media metadata JSON to use instead of probing")
	exportCmd.Flags().
		String("segments", "", "Segments JSON to use instead of silence detection")
	exportCmd.Flags().
		String("words", "", "Word timestamps JSON to align captions from")
	exportCmd.Flags().
		String("lines", "", "Text file with one caption line per line")
	exportCmd.Flags().
		String("captions", "", "Caption bundle JSON or subtitle file (srt, vtt, ass)")
	exportCmd.Flags().
		Bool("transcribe", false, "Transcribe the media to produce captions")
	exportCmd.Flags().
		Bool("no-captions", false, "Export without captions")
	exportCmd.Flags().
		Bool("omit-titles", false, "Leave the caption title track out of xml and fcpxml")
	exportCmd.Flags().
		Bool("edl-captions", false, "Add caption text to EDL events as comments")
	exportCmd.Flags().
		Bool("save-intermediates", false, "Also write the segments, words and caption bundle JSON")

	addSilenceFlags(exportCmd)
	addTranscribeFlags(exportCmd)
	addCaptionFlags(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	mediaPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	formats, err := cfg.Formats()
	if err != nil {
		return err
	}

	title, _ := cmd.Flags().GetString("title")
	saveIntermediates, _ := cmd.Flags().GetBool("save-intermediates")

	req, err := exportRequest(cmd, mediaPath)
	if err != nil {
		return err
	}
	req.Title = title

	if req.Metadata == nil || req.Segments == nil {
		if err := requireFile(mediaPath); err != nil {
			return err
		}
	}

	outDir, _ := cmd.Flags().GetString("output")
	if outDir == "" {
		outDir = cfg.Export.OutputDir
	}
	if outDir == "" {
		outDir = filepath.Dir(mediaPath)
	}
	base := filepath.Base(stem(mediaPath))

	exporter := newExporter(cfg)
	exporter.Concurrency, _ = cmd.Flags().GetInt("concurrency")
	if req.Captions && req.Words == nil {
		if exporter.Transcriber, err = newTranscriber(ctx, cmd, cfg); err != nil {
			return err
		}
	}
	if req.Captions && req.Lines == nil {
		if exporter.Reformatter, err = newReformatter(ctx, cfg); err != nil {
			return err
		}
	}

	logger.Infow("Starting export",
		"input", mediaPath,
		"output_dir", outDir,
		"formats", formats,
		"captions", req.Captions || req.Cues != nil,
	)

	build, err := exporter.Build(ctx, req)
	if err != nil {
		return err
	}

	outputs, err := exporter.Write(ctx, build.Timeline, formats, outDir, base)
	if err != nil {
		return err
	}

	if saveIntermediates {
		if err := writeIntermediates(build, outDir, base); err != nil {
			return err
		}
	}

	for _, out := range outputs {
		if out.Skipped {
			fmt.Printf("Skipped %s: no captions\n", out.Format)
			continue
		}
		abs, _ := filepath.Abs(out.Path)
		fmt.Printf("Exported %s: %s\n", out.Format, abs)
	}
	fmt.Printf("  Segments: %d\n", len(build.Timeline.Segments()))
	fmt.Printf("  Captions: %d\n", len(build.Timeline.Cues()))
	fmt.Printf("  Duration: %.3fs\n", build.Timeline.RecordDuration())

	return nil
}

// exportRequest loads every precomputed input named on the command line.
func exportRequest(cmd *cobra.Command, mediaPath string) (pipeline.Request, error) {
	req := pipeline.Request{MediaPath: mediaPath}

	metadataPath, _ := cmd.Flags().GetString("metadata")
	segmentsPath, _ := cmd.Flags().GetString("segments")
	wordsPath, _ := cmd.Flags().GetString("words")
	linesPath, _ := cmd.Flags().GetString("lines")
	captionsPath, _ := cmd.Flags().GetString("captions")
	transcribe, _ := cmd.Flags().GetBool("transcribe")
	noCaptions, _ := cmd.Flags().GetBool("no-captions")

	if noCaptions && (wordsPath != "" || linesPath != "" || captionsPath != "" || transcribe) {
		return req, fmt.Errorf("--no-captions cannot be combined with caption inputs")
	}
	if linesPath != "" && wordsPath == "" && !transcribe {
		return req, fmt.Errorf("--lines needs --words or --transcribe")
	}

	if metadataPath != "" {
		md, err := timeline.ReadMetadataFile(metadataPath)
		if err != nil {
			return req, err
		}
		req.Metadata = &md
	}
	if segmentsPath != "" {
		segs, err := timeline.ReadSegmentsFile(segmentsPath)
		if err != nil {
			return req, err
		}
		req.Segments = segs
	}
	if wordsPath != "" {
		words, err := timeline.ReadWordsFile(wordsPath)
		if err != nil {
			return req, err
		}
		req.Words = words
		req.Captions = true
	}
	if linesPath != "" {
		lines, err := readLinesFile(linesPath)
		if err != nil {
			return req, err
		}
		req.Lines = lines
	}
	if captionsPath != "" {
		cues, lines, err := readCaptions(captionsPath)
		if err != nil {
			return req, err
		}
		switch {
		case cues != nil && (wordsPath != "" || transcribe):
			return req, fmt.Errorf("%s already has timed captions: drop --words and --transcribe", captionsPath)
		case cues != nil:
			req.Cues = cues
		case linesPath != "":
			return req, fmt.Errorf("--lines cannot be combined with a caption bundle's formatted text")
		case wordsPath == "" && !transcribe:
			return req, fmt.Errorf("%s has no timed captions: pass --words or --transcribe to align its formatted text", captionsPath)
		default:
			req.Lines = lines
		}
	}
	if transcribe {
		req.Captions = true
	}
	return req, nil
}

// readCaptions loads source-timeline cues from a caption bundle or a
// subtitle file, chosen by extension. A bundle without timed captions yields
// the lines of its formatted text instead, for the aligner.
func readCaptions(path string) ([]timeline.CaptionCue, []string, error) {
	const op = "cli.readCaptions"

	if strings.EqualFold(filepath.Ext(path), ".json") {
		bundle, err := timeline.ReadCaptionBundleFile(path)
		if err != nil {
			return nil, nil, err
		}
		if len(bundle.Captions) > 0 {
			return bundle.Captions, nil, nil
		}
		lines, err := readLines(strings.NewReader(bundle.FormattedText))
		if err != nil {
			return nil, nil, err
		}
		if len(lines) == 0 {
			return nil, nil, errs.InvalidInput(op, errs.NoIndex, path, "caption bundle has no captions and no formatted text")
		}
		return nil, lines, nil
	}

	cues, err := subtitle.ReadCues(path)
	if err != nil {
		return nil, nil, err
	}
	if len(cues) == 0 {
		return nil, nil, errs.InvalidInput(op, errs.NoIndex, path, "subtitle file has no cues")
	}
	return cues, nil, nil
}

// readLinesFile returns the non-blank lines of a text file.
func readLinesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lines file: %w", err)
	}
	defer f.Close()
	return readLines(f)
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lines: %w", err)
	}
	if lines == nil {
		lines = []string{}
	}
	return lines, nil
}

func writeIntermediates(b *pipeline.Build, outDir, base string) error {
	files := []struct {
		suffix string
		skip   bool
		write  func(w io.Writer) error
	}{
		{".segments.json", false, func(w io.Writer) error {
			return timeline.WriteSegments(w, b.Timeline.Segments())
		}},
		{".metadata.json", false, func(w io.Writer) error {
			return timeline.WriteMetadata(w, b.Metadata)
		}},
		{".words.json", b.Words == nil, func(w io.Writer) error {
			return timeline.WriteWords(w, b.Words)
		}},
		{".captions.json", b.Bundle.Captions == nil, func(w io.Writer) error {
			return timeline.WriteCaptionBundle(w, b.Bundle)
		}},
	}
	for _, f := range files {
		if f.skip {
			continue
		}
		path := filepath.Join(outDir, base+f.suffix)
		if err := writeOutput(path, f.write); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		logger.Debugw("Wrote intermediate", "path", path)
	}
	return nil
}
