package export

import (
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/mgpai22/cutline/internal/errs"
	"github.com/mgpai22/cutline/internal/timecode"
	"github.com/mgpai22/cutline/internal/timeline"
)

const (
	fcpxmlVersion   = "1.10"
	fcpxmlHeader    = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" + "<!DOCTYPE fcpxml>\n"
	basicTitleUID   = ".../Titles.localized/Bumper:Opener.localized/Basic Title.localized/Basic Title.moti"
	formatRef       = "r1"
	assetRef        = "r2"
	titleEffectRef  = "r3"
	titleFont       = "Helvetica"
	titleFontSize   = "60"
	titleFontColor  = "1 1 1 1"
	titleAlignment  = "center"
	titleFontFace   = "Regular"
	titleTextStyles = "ts"
)

type fcpxmlDoc struct {
	XMLName   xml.Name   `xml:"fcpxml"`
	Version   string     `xml:"version,attr"`
	Resources fResources `xml:"resources"`
	Library   fLibrary   `xml:"library"`
}

type fResources struct {
	Formats []fFormat `xml:"format"`
	Assets  []fAsset  `xml:"asset"`
	Effects []fEffect `xml:"effect,omitempty"`
}

type fFormat struct {
	ID            string `xml:"id,attr"`
	FrameDuration string `xml:"frameDuration,attr"`
	Width         int    `xml:"width,attr,omitempty"`
	Height        int    `xml:"height,attr,omitempty"`
}

type fAsset struct {
	ID            string    `xml:"id,attr"`
	Name          string    `xml:"name,attr"`
	UID           string    `xml:"uid,attr"`
	Start         string    `xml:"start,attr"`
	Duration      string    `xml:"duration,attr"`
	HasVideo      string    `xml:"hasVideo,attr"`
	Format        string    `xml:"format,attr"`
	HasAudio      string    `xml:"hasAudio,attr,omitempty"`
	AudioSources  string    `xml:"audioSources,attr,omitempty"`
	AudioChannels int       `xml:"audioChannels,attr,omitempty"`
	AudioRate     int       `xml:"audioRate,attr,omitempty"`
	MediaRep      fMediaRep `xml:"media-rep"`
}

type fMediaRep struct {
	Kind string `xml:"kind,attr"`
	Src  string `xml:"src,attr"`
}

type fEffect struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr"`
	UID  string `xml:"uid,attr"`
}

type fLibrary struct {
	Events []fEvent `xml:"event"`
}

type fEvent struct {
	Name     string     `xml:"name,attr"`
	Projects []fProject `xml:"project"`
}

type fProject struct {
	Name     string    `xml:"name,attr"`
	Sequence fSequence `xml:"sequence"`
}

type fSequence struct {
	Format   string `xml:"format,attr"`
	Duration string `xml:"duration,attr"`
	TCStart  string `xml:"tcStart,attr"`
	TCFormat string `xml:"tcFormat,attr"`
	Spine    fSpine `xml:"spine"`
}

type fSpine struct {
	AssetClips []fAssetClip `xml:"asset-clip"`
}

type fAssetClip struct {
	Ref      string   `xml:"ref,attr"`
	Offset   string   `xml:"offset,attr"`
	Name     string   `xml:"name,attr"`
	Start    string   `xml:"start,attr"`
	Duration string   `xml:"duration,attr"`
	TCFormat string   `xml:"tcFormat,attr"`
	Titles   []fTitle `xml:"title,omitempty"`
}

type fTitle struct {
	Ref          string        `xml:"ref,attr"`
	Lane         int           `xml:"lane,attr"`
	Offset       string        `xml:"offset,attr"`
	Name         string        `xml:"name,attr"`
	Duration     string        `xml:"duration,attr"`
	Text         fTitleText    `xml:"text"`
	TextStyleDef fTextStyleDef `xml:"text-style-def"`
}

type fTitleText struct {
	TextStyle fTextStyleRef `xml:"text-style"`
}

type fTextStyleRef struct {
	Ref  string `xml:"ref,attr"`
	Text string `xml:",chardata"`
}

type fTextStyleDef struct {
	ID        string     `xml:"id,attr"`
	TextStyle fTextStyle `xml:"text-style"`
}

type fTextStyle struct {
	Font      string `xml:"font,attr"`
	FontSize  string `xml:"fontSize,attr"`
	FontFace  string `xml:"fontFace,attr"`
	FontColor string `xml:"fontColor,attr"`
	Alignment string `xml:"alignment,attr"`
}

// FCPXMLEncoder writes Final Cut Pro XML with one asset-clip per segment and
// captions as connected Basic Title clips.
type FCPXMLEncoder struct {
	OmitTitles bool
}

func (e *FCPXMLEncoder) Encode(w io.Writer, tl *timeline.Timeline) error {
	doc, err := e.build(tl)
	if err != nil {
		return err
	}

	if _, err := io.WriteString(w, fcpxmlHeader); err != nil {
		return fmt.Errorf("failed to write fcpxml header: %w", err)
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errs.Encoding("export.FCPXML", errs.NoIndex, nil, "failed to marshal fcpxml: %v", err)
	}
	out = append(out, '\n')
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("failed to write fcpxml: %w", err)
	}
	return nil
}

func (e *FCPXMLEncoder) build(tl *timeline.Timeline) (*fcpxmlDoc, error) {
	const op = "export.FCPXML"

	if err := checkText(op, tl.Title); err != nil {
		return nil, err
	}
	if err := checkText(op, tl.Media.Name); err != nil {
		return nil, err
	}
	escaped, err := escapePath(tl.Media.Path)
	if err != nil {
		return nil, err
	}

	rate := tl.Rate
	events := planEvents(tl)
	media := mediaFrames(tl, events)
	tcFormat := displayFormat(rate)
	stem := strings.TrimSuffix(tl.Media.Name, filepath.Ext(tl.Media.Name))

	asset := fAsset{
		ID:       assetRef,
		Name:     stem,
		UID:      assetUID(tl.Media.Name),
		Start:    "0s",
		Duration: fcpTime(media, rate),
		HasVideo: "1",
		Format:   formatRef,
		MediaRep: fMediaRep{Kind: "original-media", Src: "file://" + escaped},
	}
	if tl.Media.AudioChannels > 0 {
		asset.HasAudio = "1"
		asset.AudioSources = "1"
		asset.AudioChannels = tl.Media.AudioChannels
		asset.AudioRate = tl.Media.AudioSampleRate
	}

	clips := make([]fAssetClip, len(events))
	for i, ev := range events {
		clips[i] = fAssetClip{
			Ref:      assetRef,
			Offset:   fcpTime(ev.RecIn, rate),
			Name:     stem,
			Start:    fcpTime(ev.SrcIn, rate),
			Duration: fcpTime(ev.Length(), rate),
			TCFormat: tcFormat,
		}
	}

	resources := fResources{
		Formats: []fFormat{{
			ID:            formatRef,
			FrameDuration: fcpTime(1, rate),
			Width:         tl.Media.Width,
			Height:        tl.Media.Height,
		}},
		Assets: []fAsset{asset},
	}

	if !e.OmitTitles && tl.HasCues() && len(events) > 0 {
		titles := planTitles(tl)
		for i, t := range titles {
			if err := checkText(op, t.Cue.Text); err != nil {
				return nil, withIndex(err, t.Cue.LineIndex)
			}
			at := eventAt(events, t.Start)
			parent := events[at]
			styleID := fmt.Sprintf("%s%d", titleTextStyles, i+1)

			// connected clips are positioned in the parent's source time
			offset := parent.SrcIn + (t.Start - parent.RecIn)
			clips[at].Titles = append(clips[at].Titles, fTitle{
				Ref:      titleEffectRef,
				Lane:     1,
				Offset:   fcpTime(offset, rate),
				Name:     t.Cue.Text,
				Duration: fcpTime(t.End-t.Start, rate),
				Text: fTitleText{
					TextStyle: fTextStyleRef{Ref: styleID, Text: t.Cue.Text},
				},
				TextStyleDef: fTextStyleDef{
					ID: styleID,
					TextStyle: fTextStyle{
						Font:      titleFont,
						FontSize:  titleFontSize,
						FontFace:  titleFontFace,
						FontColor: titleFontColor,
						Alignment: titleAlignment,
					},
				},
			})
		}
		if len(titles) > 0 {
			resources.Effects = []fEffect{{ID: titleEffectRef, Name: "Basic Title", UID: basicTitleUID}}
		}
	}

	return &fcpxmlDoc{
		Version:   fcpxmlVersion,
		Resources: resources,
		Library: fLibrary{
			Events: []fEvent{{
				Name: tl.Title,
				Projects: []fProject{{
					Name: tl.Title,
					Sequence: fSequence{
						Format:   formatRef,
						Duration: fcpTime(recordLength(events), rate),
						TCStart:  "0s",
						TCFormat: tcFormat,
						Spine:    fSpine{AssetClips: clips},
					},
				}},
			}},
		},
	}, nil
}

// fcpTime renders a frame count as a rational number of seconds.
func fcpTime(frames int64, r timecode.FrameRate) string {
	if frames == 0 {
		return "0s"
	}
	return fmt.Sprintf("%d/%ds", frames*r.Den, r.Num)
}

// assetUID depends on the file name only so re-imports match the same asset.
func assetUID(name string) string {
	id := uuid.NewSHA1(uuidNamespace, []byte("asset:"+name))
	return strings.ToUpper(id.String())
}
