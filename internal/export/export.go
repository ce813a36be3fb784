// Package export serializes a timeline into editor interchange formats.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/mgpai22/cutline/internal/errs"
	"github.com/mgpai22/cutline/internal/timeline"
)

// Format names an output format
type Format string

const (
	FormatXML       Format = "xml"
	FormatXMLStrict Format = "xml-strict"
	FormatEDL       Format = "edl"
	FormatSRT       Format = "srt"
	FormatVTT       Format = "vtt"
	FormatFCPXML    Format = "fcpxml"
)

// Formats lists every supported format in a stable order.
func Formats() []Format {
	return []Format{FormatXML, FormatXMLStrict, FormatEDL, FormatSRT, FormatVTT, FormatFCPXML}
}

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", errs.InvalidInput("export.ParseFormat", errs.NoIndex, s, "unknown format (want one of %s)", formatList())
}

func formatList() string {
	names := make([]string, 0, len(Formats()))
	for _, f := range Formats() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

// Extension returns the file extension for the format, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatXML:
		return ".xml"
	case FormatXMLStrict:
		return ".strict.xml"
	case FormatEDL:
		return ".edl"
	case FormatSRT:
		return ".srt"
	case FormatVTT:
		return ".vtt"
	case FormatFCPXML:
		return ".fcpxml"
	}
	return ""
}

// NeedsCues reports whether the format has nothing to say without captions.
func (f Format) NeedsCues() bool {
	return f == FormatSRT || f == FormatVTT
}

// Encoder writes one timeline in one format. Implementations hold no state
// between calls and may be used concurrently.
type Encoder interface {
	Encode(w io.Writer, tl *timeline.Timeline) error
}

// Options are the per-format switches the caller may set.
type Options struct {
	// leave the caption title track out of interchange XML and FCPXML
	OmitTitles bool
	// append cue text to EDL events as comments
	EDLCaptions bool
}

func New(f Format, opts Options) (Encoder, error) {
	switch f {
	case FormatXML:
		return &XMEMLEncoder{Mode: ModeFull, OmitTitles: opts.OmitTitles}, nil
	case FormatXMLStrict:
		return &XMEMLEncoder{Mode: ModeStrict, OmitTitles: opts.OmitTitles}, nil
	case FormatEDL:
		return &EDLEncoder{Captions: opts.EDLCaptions}, nil
	case FormatSRT:
		return &SRTEncoder{}, nil
	case FormatVTT:
		return &VTTEncoder{}, nil
	case FormatFCPXML:
		return &FCPXMLEncoder{OmitTitles: opts.OmitTitles}, nil
	}
	return nil, errs.InvalidInput("export.New", errs.NoIndex, string(f), "unknown format (want one of %s)", formatList())
}

// errWriter keeps the first write error so line-oriented encoders stay readable.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
