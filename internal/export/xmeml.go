package export

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"

	"github.com/google/uuid"

	"github.com/mgpai22/cutline/internal/errs"
	"github.com/mgpai22/cutline/internal/timecode"
	"github.com/mgpai22/cutline/internal/timeline"
)

// Mode selects how much of the Premiere extension set an xmeml document carries.
type Mode int

const (
	// ModeFull adds uuid and pproTicks fields.
	ModeFull Mode = iota
	// ModeStrict emits only baseline xmeml v4 elements.
	ModeStrict
)

func (m Mode) String() string {
	if m == ModeStrict {
		return "strict"
	}
	return "full"
}

const (
	masterClipID = "masterclip-1"
	fileID       = "file-1"
	xmemlHeader  = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" + "<!DOCTYPE xmeml>\n"
)

type xmeml struct {
	XMLName  xml.Name  `xml:"xmeml"`
	Version  string    `xml:"version,attr"`
	Sequence xSequence `xml:"sequence"`
}

type xRate struct {
	Timebase int    `xml:"timebase"`
	NTSC     string `xml:"ntsc"`
}

type xTimecode struct {
	Rate          xRate  `xml:"rate"`
	String        string `xml:"string"`
	Frame         int64  `xml:"frame"`
	DisplayFormat string `xml:"displayformat"`
}

type xSequence struct {
	ID       string    `xml:"id,attr"`
	UUID     string    `xml:"uuid,omitempty"`
	Name     string    `xml:"name"`
	Duration int64     `xml:"duration"`
	Rate     xRate     `xml:"rate"`
	Timecode xTimecode `xml:"timecode"`
	Media    xSeqMedia `xml:"media"`
}

type xSeqMedia struct {
	Video xSeqVideo  `xml:"video"`
	Audio *xSeqAudio `xml:"audio,omitempty"`
}

type xSeqVideo struct {
	Format xVideoFormat `xml:"format"`
	Tracks []xTrack     `xml:"track"`
}

type xSeqAudio struct {
	NumOutputChannels int          `xml:"numOutputChannels"`
	Format            xAudioFormat `xml:"format"`
	Tracks            []xTrack     `xml:"track"`
}

type xVideoFormat struct {
	Samples xVideoSamples `xml:"samplecharacteristics"`
}

type xVideoSamples struct {
	Rate             xRate  `xml:"rate"`
	Width            int    `xml:"width"`
	Height           int    `xml:"height"`
	PixelAspectRatio string `xml:"pixelaspectratio"`
	FieldDominance   string `xml:"fielddominance"`
}

type xAudioFormat struct {
	Samples xAudioSamples `xml:"samplecharacteristics"`
}

type xAudioSamples struct {
	Depth      int `xml:"depth"`
	SampleRate int `xml:"samplerate"`
}

type xTrack struct {
	Enabled        string           `xml:"enabled"`
	Locked         string           `xml:"locked"`
	ClipItems      []xClipItem      `xml:"clipitem,omitempty"`
	GeneratorItems []xGeneratorItem `xml:"generatoritem,omitempty"`
}

type xClipItem struct {
	ID           string        `xml:"id,attr"`
	MasterClipID string        `xml:"masterclipid"`
	Name         string        `xml:"name"`
	Enabled      string        `xml:"enabled"`
	Duration     int64         `xml:"duration"`
	Rate         xRate         `xml:"rate"`
	Start        int64         `xml:"start"`
	End          int64         `xml:"end"`
	In           int64         `xml:"in"`
	Out          int64         `xml:"out"`
	PproTicksIn  *int64        `xml:"pproTicksIn,omitempty"`
	PproTicksOut *int64        `xml:"pproTicksOut,omitempty"`
	File         xFile         `xml:"file"`
	SourceTrack  *xSourceTrack `xml:"sourcetrack,omitempty"`
	Links        []xLink       `xml:"link"`
}

// xFile is either the full definition (first use) or a bare id reference.
type xFile struct {
	ID       string      `xml:"id,attr"`
	Name     string      `xml:"name,omitempty"`
	PathURL  string      `xml:"pathurl,omitempty"`
	Rate     *xRate      `xml:"rate,omitempty"`
	Duration *int64      `xml:"duration,omitempty"`
	Timecode *xTimecode  `xml:"timecode,omitempty"`
	Media    *xFileMedia `xml:"media,omitempty"`
}

type xFileMedia struct {
	Video xFileVideo  `xml:"video"`
	Audio *xFileAudio `xml:"audio,omitempty"`
}

type xFileVideo struct {
	Samples xVideoSamples `xml:"samplecharacteristics"`
}

type xFileAudio struct {
	Samples      xAudioSamples `xml:"samplecharacteristics"`
	ChannelCount int           `xml:"channelcount"`
}

type xSourceTrack struct {
	MediaType  string `xml:"mediatype"`
	TrackIndex int    `xml:"trackindex"`
}

type xLink struct {
	LinkClipRef string `xml:"linkclipref"`
	MediaType   string `xml:"mediatype"`
	TrackIndex  int    `xml:"trackindex"`
	ClipIndex   int    `xml:"clipindex"`
}

type xGeneratorItem struct {
	ID       string  `xml:"id,attr"`
	Name     string  `xml:"name"`
	Enabled  string  `xml:"enabled"`
	Duration int64   `xml:"duration"`
	Rate     xRate   `xml:"rate"`
	Start    int64   `xml:"start"`
	End      int64   `xml:"end"`
	In       int64   `xml:"in"`
	Out      int64   `xml:"out"`
	Effect   xEffect `xml:"effect"`
}

type xEffect struct {
	Name           string       `xml:"name"`
	EffectID       string       `xml:"effectid"`
	EffectCategory string       `xml:"effectcategory"`
	EffectType     string       `xml:"effecttype"`
	MediaType      string       `xml:"mediatype"`
	Parameters     []xParameter `xml:"parameter"`
}

type xParameter struct {
	ParameterID string `xml:"parameterid"`
	Name        string `xml:"name"`
	Value       string `xml:"value"`
}

// XMEMLEncoder writes xmeml v4 interchange XML. Full and strict output share
// one document model; Mode only toggles the extension fields.
type XMEMLEncoder struct {
	Mode       Mode
	OmitTitles bool
}

func (e *XMEMLEncoder) Encode(w io.Writer, tl *timeline.Timeline) error {
	doc, err := e.build(tl)
	if err != nil {
		return err
	}

	if _, err := io.WriteString(w, xmemlHeader); err != nil {
		return fmt.Errorf("failed to write xml header: %w", err)
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errs.Encoding("export.XMEML", errs.NoIndex, nil, "failed to marshal xmeml: %v", err)
	}
	out = append(out, '\n')
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("failed to write xmeml: %w", err)
	}
	return nil
}

func (e *XMEMLEncoder) build(tl *timeline.Timeline) (*xmeml, error) {
	const op = "export.XMEML"

	if err := checkText(op, tl.Title); err != nil {
		return nil, err
	}
	if err := checkText(op, tl.Media.Name); err != nil {
		return nil, err
	}
	pathURL, err := PathURL(tl.Media.Path)
	if err != nil {
		return nil, err
	}

	rate := xmemlRate(tl.Rate)
	events := planEvents(tl)
	media := mediaFrames(tl, events)
	channels := max(tl.Media.AudioChannels, 0)

	zeroTC, err := timecode.FramesToTimecode(0, tl.Rate)
	if err != nil {
		return nil, err
	}
	tc := xTimecode{Rate: rate, String: zeroTC, Frame: 0, DisplayFormat: displayFormat(tl.Rate)}

	videoSamples := xVideoSamples{
		Rate:             rate,
		Width:            tl.Media.Width,
		Height:           tl.Media.Height,
		PixelAspectRatio: pixelAspect(tl.Media.PixelAspectRatio),
		FieldDominance:   "none",
	}
	audioSamples := xAudioSamples{Depth: 16, SampleRate: tl.Media.AudioSampleRate}

	fullFile := xFile{
		ID:       fileID,
		Name:     tl.Media.Name,
		PathURL:  pathURL,
		Rate:     &rate,
		Duration: &media,
		Timecode: &tc,
		Media:    &xFileMedia{Video: xFileVideo{Samples: videoSamples}},
	}
	if channels > 0 {
		fullFile.Media.Audio = &xFileAudio{Samples: audioSamples, ChannelCount: channels}
	}

	videoTrack := xTrack{Enabled: "TRUE", Locked: "FALSE"}
	audioTracks := make([]xTrack, channels)
	for ch := range audioTracks {
		audioTracks[ch] = xTrack{Enabled: "TRUE", Locked: "FALSE"}
	}

	for i, ev := range events {
		clipIndex := i + 1
		links := clipLinks(clipIndex, channels)

		file := xFile{ID: fileID}
		if i == 0 {
			file = fullFile
		}

		video := e.clipItem(videoClipID(clipIndex), tl.Media.Name, tl.Rate, media, ev, file, links)
		videoTrack.ClipItems = append(videoTrack.ClipItems, video)

		for ch := 0; ch < channels; ch++ {
			audio := e.clipItem(audioClipID(clipIndex, ch+1), tl.Media.Name, tl.Rate, media, ev, xFile{ID: fileID}, links)
			audio.SourceTrack = &xSourceTrack{MediaType: "audio", TrackIndex: ch + 1}
			audioTracks[ch].ClipItems = append(audioTracks[ch].ClipItems, audio)
		}
	}

	tracks := []xTrack{videoTrack}
	if !e.OmitTitles && tl.HasCues() {
		titles, err := titleTrack(tl, rate)
		if err != nil {
			return nil, err
		}
		if len(titles.GeneratorItems) > 0 {
			tracks = append(tracks, titles)
		}
	}

	seq := xSequence{
		ID:       "sequence-1",
		Name:     tl.Title,
		Duration: recordLength(events),
		Rate:     rate,
		Timecode: tc,
		Media: xSeqMedia{
			Video: xSeqVideo{Format: xVideoFormat{Samples: videoSamples}, Tracks: tracks},
		},
	}
	if channels > 0 {
		seq.Media.Audio = &xSeqAudio{
			NumOutputChannels: channels,
			Format:            xAudioFormat{Samples: audioSamples},
			Tracks:            audioTracks,
		}
	}
	if e.Mode == ModeFull {
		seq.UUID = sequenceUUID(pathURL, tl.Title)
	}

	return &xmeml{Version: "4", Sequence: seq}, nil
}

func (e *XMEMLEncoder) clipItem(id, name string, fr timecode.FrameRate, media int64, ev event, file xFile, links []xLink) xClipItem {
	item := xClipItem{
		ID:           id,
		MasterClipID: masterClipID,
		Name:         name,
		Enabled:      "TRUE",
		Duration:     media,
		Rate:         xmemlRate(fr),
		Start:        ev.RecIn,
		End:          ev.RecOut,
		In:           ev.SrcIn,
		Out:          ev.SrcOut,
		File:         file,
		Links:        links,
	}
	if e.Mode == ModeFull {
		ticksIn := timecode.FramesToTicks(ev.SrcIn, fr)
		ticksOut := timecode.FramesToTicks(ev.SrcOut, fr)
		item.PproTicksIn = &ticksIn
		item.PproTicksOut = &ticksOut
	}
	return item
}

func titleTrack(tl *timeline.Timeline, rate xRate) (xTrack, error) {
	track := xTrack{Enabled: "TRUE", Locked: "FALSE"}
	for i, t := range planTitles(tl) {
		if err := checkText("export.XMEML", t.Cue.Text); err != nil {
			return xTrack{}, withIndex(err, t.Cue.LineIndex)
		}
		length := t.End - t.Start
		track.GeneratorItems = append(track.GeneratorItems, xGeneratorItem{
			ID:       fmt.Sprintf("title-%d", i+1),
			Name:     t.Cue.Text,
			Enabled:  "TRUE",
			Duration: length,
			Rate:     rate,
			Start:    t.Start,
			End:      t.End,
			In:       0,
			Out:      length,
			Effect: xEffect{
				Name:           "Text",
				EffectID:       "Text",
				EffectCategory: "Text",
				EffectType:     "generator",
				MediaType:      "video",
				Parameters: []xParameter{
					{ParameterID: "str", Name: "Text", Value: t.Cue.Text},
				},
			},
		})
	}
	return track, nil
}

// clipLinks ties a video clip to its audio clips so editors move them together.
func clipLinks(clipIndex, channels int) []xLink {
	links := []xLink{{
		LinkClipRef: videoClipID(clipIndex),
		MediaType:   "video",
		TrackIndex:  1,
		ClipIndex:   clipIndex,
	}}
	for ch := 1; ch <= channels; ch++ {
		links = append(links, xLink{
			LinkClipRef: audioClipID(clipIndex, ch),
			MediaType:   "audio",
			TrackIndex:  ch,
			ClipIndex:   clipIndex,
		})
	}
	return links
}

func videoClipID(clipIndex int) string {
	return fmt.Sprintf("clipitem-%d", clipIndex)
}

func audioClipID(clipIndex, channel int) string {
	return fmt.Sprintf("clipitem-a%d-%d", channel, clipIndex)
}

func xmemlRate(r timecode.FrameRate) xRate {
	ntsc := "FALSE"
	if r.NTSC() {
		ntsc = "TRUE"
	}
	return xRate{Timebase: r.Timebase, NTSC: ntsc}
}

func displayFormat(r timecode.FrameRate) string {
	if r.DropFrame {
		return "DF"
	}
	return "NDF"
}

// pixelAspect maps a numeric ratio onto the names xmeml readers understand.
func pixelAspect(par float64) string {
	known := []struct {
		ratio float64
		name  string
	}{
		{10.0 / 11.0, "NTSC-601"},
		{40.0 / 33.0, "NTSC-CCIR-601-16:9"},
		{59.0 / 54.0, "PAL-601"},
		{118.0 / 81.0, "PAL-CCIR-601-16:9"},
		{4.0 / 3.0, "HD-(1440x1080)"},
		{1.5, "HD-(1280x1080)"},
	}
	for _, k := range known {
		if math.Abs(par-k.ratio) < 0.005 {
			return k.name
		}
	}
	return "square"
}

var uuidNamespace = uuid.MustParse("5b8f1f2e-6a9c-4e5b-9d1a-3c7e2f0a8b64")

// sequenceUUID is stable for the same media and title.
func sequenceUUID(pathURL, title string) string {
	return uuid.NewSHA1(uuidNamespace, []byte(pathURL+"#"+title)).String()
}

func withIndex(err error, index int) error {
	if e, ok := err.(*errs.Error); ok {
		e.Index = index
	}
	return err
}
