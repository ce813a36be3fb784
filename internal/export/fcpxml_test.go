package export

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"
)

func TestFCPXMLEncode(t *testing.T) {
	tl := newTestTimeline(t, 25, testCues())

	var buf bytes.Buffer
	if err := (&FCPXMLEncoder{}).Encode(&buf, tl); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<!DOCTYPE fcpxml>\n<fcpxml version=\"1.10\">") {
		t.Errorf("unexpected document head:\n%s", buf.String()[:min(buf.Len(), 120)])
	}

	var doc fcpxmlDoc
	if err := xml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output does not parse: %v", err)
	}

	if got := doc.Resources.Formats[0].FrameDuration; got != "1/25s" {
		t.Errorf("frameDuration = %q", got)
	}
	asset := doc.Resources.Assets[0]
	if asset.MediaRep.Src != "file:///media/My%20Clip.mp4" || asset.Duration != "250/25s" {
		t.Errorf("unexpected asset %+v", asset)
	}
	if asset.UID != assetUID("My Clip.mp4") {
		t.Errorf("asset uid should depend on the file name only")
	}

	seq := doc.Library.Events[0].Projects[0].Sequence
	if seq.Duration != "195/25s" || seq.TCFormat != "NDF" {
		t.Errorf("sequence duration %q tcFormat %q", seq.Duration, seq.TCFormat)
	}

	clips := seq.Spine.AssetClips
	if len(clips) != 3 {
		t.Fatalf("got %d asset clips, want 3", len(clips))
	}
	if clips[1].Offset != "55/25s" || clips[1].Start != "95/25s" || clips[1].Duration != "60/25s" {
		t.Errorf("clip 2 = %+v", clips[1])
	}

	if len(clips[0].Titles) != 1 || clips[0].Titles[0].Offset != "0s" {
		t.Errorf("first cue should connect to clip 1 at 0s: %+v", clips[0].Titles)
	}
	if len(clips[1].Titles) != 1 {
		t.Fatalf("second cue should connect to clip 2")
	}
	title := clips[1].Titles[0]
	if title.Offset != "103/25s" || title.Duration != "25/25s" || title.Text.TextStyle.Text != "world" {
		t.Errorf("title = %+v", title)
	}
	if title.Text.TextStyle.Ref != title.TextStyleDef.ID {
		t.Errorf("text style ref %q does not match definition %q", title.Text.TextStyle.Ref, title.TextStyleDef.ID)
	}
	if len(doc.Resources.Effects) != 1 {
		t.Errorf("expected the title effect resource")
	}
}

func TestFCPXMLNTSCTime(t *testing.T) {
	tl := newTestTimeline(t, 29.97, nil)

	var buf bytes.Buffer
	if err := (&FCPXMLEncoder{}).Encode(&buf, tl); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `frameDuration="1001/30000s"`) {
		t.Errorf("expected NTSC frame duration:\n%s", out)
	}
	if !strings.Contains(out, `tcFormat="DF"`) {
		t.Errorf("expected drop-frame tcFormat")
	}
	if strings.Contains(out, "<effect") {
		t.Errorf("no cues should mean no title effect")
	}
}
