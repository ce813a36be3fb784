package subtitle

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mgpai22/cutline/internal/errs"
)

func TestParseSRT(t *testing.T) {
	content := "\ufeff1\r\n00:00:01,000 --> 00:00:04,000\r\nHello, world!\r\n\r\n" + `2
00:00:05,500 --> 00:00:08,200
This is a test.
With multiple lines.

00:00:10.000 --> 00:00:12,500
No counter line.
`
	entries, err := Parse(strings.NewReader(content), FormatSRT)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	if entries[0].StartTime != 1*time.Second || entries[0].EndTime != 4*time.Second {
		t.Errorf("entry 0: got %v --> %v", entries[0].StartTime, entries[0].EndTime)
	}
	if entries[0].Text != "Hello, world!" {
		t.Errorf("entry 0: got %q", entries[0].Text)
	}
	if want := "This is a test.\nWith multiple lines."; entries[1].Text != want {
		t.Errorf("entry 1: expected %q, got %q", want, entries[1].Text)
	}
	if entries[1].EndTime != 8200*time.Millisecond {
		t.Errorf("entry 1 end: %v", entries[1].EndTime)
	}
	if entries[2].Index != 3 || entries[2].StartTime != 10*time.Second {
		t.Errorf("entry 2: %+v", entries[2])
	}
}

func TestParseVTT(t *testing.T) {
	content := `WEBVTT - sample
Kind: captions

NOTE this block is ignored
00:00:00.000 --> 00:00:00.500

STYLE
::cue { color: yellow }

intro
00:00:01.000 --> 00:00:04.000 align:start
<v Roger>Hello, &amp; <b>welcome</b>!</v>

2
00:05.500 --> 00:08.200
This is a test.
With multiple lines.

01:00:10.000 --> 01:00:12.500
Late cue.
`
	entries, err := Parse(strings.NewReader(content), FormatVTT)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(entries), entries)
	}
	if entries[0].Text != "Hello, & welcome!" || entries[0].StartTime != time.Second {
		t.Errorf("entry 0: %+v", entries[0])
	}
	if entries[1].StartTime != 5500*time.Millisecond || entries[1].Text != "This is a test.\nWith multiple lines." {
		t.Errorf("entry 1: %+v", entries[1])
	}
	if entries[2].StartTime != time.Hour+10*time.Second {
		t.Errorf("entry 2 start: %v", entries[2].StartTime)
	}
}

func TestParseASS(t *testing.T) {
	content := `[Script Info]
Title: Test

[V4+ Styles]
Format: Name, Fontname, Fontsize
Style: Default,Arial,20

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
Comment: 0,0:00:00.00,0:00:01.00,Default,,0,0,0,,ignored
Dialogue: 0,0:00:01.50,0:00:04.00,Default,,0,0,0,,{\pos(100,200)}Hello, world!
Dialogue: 0,0:00:05.00,0:00:08.2,Default,,0,0,0,,First line\NSecond {\i1}line{\i0}
`
	entries, err := Parse(strings.NewReader(content), FormatASS)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].StartTime != 1500*time.Millisecond || entries[0].Text != "Hello, world!" {
		t.Errorf("entry 0: %+v", entries[0])
	}
	if entries[1].EndTime != 8200*time.Millisecond || entries[1].Text != "First line\nSecond line" {
		t.Errorf("entry 1: %+v", entries[1])
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		content string
	}{
		{"srt missing timing", FormatSRT, "1\nHello\n"},
		{"srt backwards", FormatSRT, "1\n00:00:05,000 --> 00:00:01,000\nHello\n"},
		{"srt bad minutes", FormatSRT, "1\n00:75:00,000 --> 00:76:00,000\nHello\n"},
		{"vtt no header", FormatVTT, "00:01.000 --> 00:02.000\nHello\n"},
		{"ass no format", FormatASS, "[Events]\nDialogue: 0,0:00:01.00,0:00:02.00,Default,,0,0,0,,Hi\n"},
		{"ass no text column", FormatASS, "[Events]\nFormat: Start, End, Text, Style\n"},
		{"ass bad time", FormatASS, "[Events]\nFormat: Start, End, Text\nDialogue: 1.00,0:00:02.00,Hi\n"},
		{"unknown format", Format("sub"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.content), tt.format)
			if !errors.Is(err, errs.ErrInvalidInput) {
				t.Errorf("error = %v, want invalid input", err)
			}
		})
	}
}

func TestCues(t *testing.T) {
	entries := []Entry{
		{Index: 2, StartTime: 5 * time.Second, EndTime: 7 * time.Second, Text: "second"},
		{Index: 1, StartTime: 1 * time.Second, EndTime: 6 * time.Second, Text: " first "},
		{Index: 3, StartTime: 8 * time.Second, EndTime: 9 * time.Second, Text: "  "},
	}
	cues, err := Cues(entries)
	if err != nil {
		t.Fatalf("Cues: %v", err)
	}
	if len(cues) != 2 {
		t.Fatalf("got %d cues", len(cues))
	}
	if cues[0].Text != "first" || cues[0].Start != 1 || cues[0].End != 5 || cues[0].LineIndex != 0 {
		t.Errorf("cue 0 = %+v", cues[0])
	}
	if cues[1].Text != "second" || cues[1].Start != 5 || cues[1].End != 7 || cues[1].LineIndex != 1 {
		t.Errorf("cue 1 = %+v", cues[1])
	}
}

func TestReadCues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "captions.SRT")
	if err := os.WriteFile(path, []byte("1\n00:00:00,500 --> 00:00:01,250\nhi\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cues, err := ReadCues(path)
	if err != nil {
		t.Fatalf("ReadCues: %v", err)
	}
	if len(cues) != 1 || cues[0].Start != 0.5 || cues[0].End != 1.25 {
		t.Errorf("cues = %+v", cues)
	}

	if _, err := ReadCues(filepath.Join(dir, "captions.txt")); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("unsupported extension error = %v", err)
	}
	if _, err := ReadCues(filepath.Join(dir, "missing.srt")); err == nil {
		t.Error("expected error for missing file")
	}
}
