package silence

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/mgpai22/cutline/internal/errs"
	"github.com/mgpai22/cutline/internal/segment"
)

const sampleLog = `Input #0, wav, from 'talk.wav':
  Duration: 00:00:10.00, bitrate: 256 kb/s
[silencedetect @ 0x7f8] silence_start: -0.00133333
[silencedetect @ 0x7f8] silence_end: 0.52 | silence_duration: 0.521333
size=N/A time=00:00:05.00 bitrate=N/A speed= 500x
[silencedetect @ 0x7f8] silence_start: 2.2
[silencedetect @ 0x7f8] silence_end: 3.8 | silence_duration: 1.6
[silencedetect @ 0x7f8] silence_start: 9.1
`

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		log   string
		total float64
		want  []segment.Interval
	}{
		{
			name:  "trailing silence closed at total",
			log:   sampleLog,
			total: 10,
			want:  []segment.Interval{{Start: 0, End: 0.52}, {Start: 2.2, End: 3.8}, {Start: 9.1, End: 10}},
		},
		{
			name:  "trailing silence dropped without total",
			log:   sampleLog,
			total: 0,
			want:  []segment.Interval{{Start: 0, End: 0.52}, {Start: 2.2, End: 3.8}},
		},
		{
			name: "stray end ignored",
			log:  "silence_end: 1.0 | silence_duration: 1.0\n",
			want: nil,
		},
		{
			name: "no silence",
			log:  "size=N/A time=00:00:05.00\n",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(strings.NewReader(tt.log), tt.total)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseFeedsReduce(t *testing.T) {
	silences, err := Parse(strings.NewReader(sampleLog), 10)
	if err != nil {
		t.Fatal(err)
	}
	segs, err := segment.Reduce(silences, 10, segment.DefaultPolicy())
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	// only the 1.6s gap is long enough to cut
	if len(segs) != 2 || math.Abs(segs[0].End-2.4) > 1e-9 || math.Abs(segs[1].Start-3.6) > 1e-9 {
		t.Errorf("segments = %+v", segs)
	}
}

func TestParseRejectsBackwardsSilence(t *testing.T) {
	log := "silence_start: 5\nsilence_end: 4 | silence_duration: -1\n"
	if _, err := Parse(strings.NewReader(log), 10); !errors.Is(err, errs.ErrExternalCollaborator) {
		t.Errorf("expected collaborator error, got %v", err)
	}
}

func TestStreamArgs(t *testing.T) {
	args := strings.Join(Stream("in.mov", Options{NoiseDB: -35, MinDuration: 0.5}).GetArgs(), " ")
	for _, want := range []string{"-i in.mov", "-af silencedetect=noise=-35dB:d=0.5", "-f null", "-vn"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
	if !strings.HasSuffix(args, " -") {
		t.Errorf("output should be discarded to '-': %q", args)
	}
}

func TestDetectWithStubBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as a stand-in for ffmpeg")
	}
	bin := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\ncat >&2 <<'EOF'\n" + sampleLog + "EOF\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	d := &FFmpegDetector{Options: DefaultOptions(), Bin: bin}
	got, err := d.Detect(context.Background(), "talk.wav", 10)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d silences, want 3", len(got))
	}

	d.Options.NoiseDB = 3
	if _, err := d.Detect(context.Background(), "talk.wav", 10); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("positive noise floor should be rejected, got %v", err)
	}
}
