package timecode

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/mgpai22/cutline/internal/errs"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		fps      float64
		timebase int
		drop     bool
		num, den int64
	}{
		{23.976, 24, true, 24000, 1001},
		{24000.0 / 1001.0, 24, true, 24000, 1001},
		{23.98, 24, true, 24000, 1001},
		{24, 24, false, 24, 1},
		{25, 25, false, 25, 1},
		{29.97, 30, true, 30000, 1001},
		{30000.0 / 1001.0, 30, true, 30000, 1001},
		{30, 30, false, 30, 1},
		{50, 50, false, 50, 1},
		{59.94, 60, true, 60000, 1001},
		{60, 60, false, 60, 1},
		{12.4, 12, false, 12, 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.fps), func(t *testing.T) {
			r, err := Classify(tt.fps)
			if err != nil {
				t.Fatalf("Classify(%v) error: %v", tt.fps, err)
			}
			if r.Timebase != tt.timebase || r.DropFrame != tt.drop {
				t.Errorf("Classify(%v) = tb %d drop %v, want tb %d drop %v",
					tt.fps, r.Timebase, r.DropFrame, tt.timebase, tt.drop)
			}
			if r.Num != tt.num || r.Den != tt.den {
				t.Errorf("Classify(%v) rate = %d/%d, want %d/%d", tt.fps, r.Num, r.Den, tt.num, tt.den)
			}
		})
	}
}

func TestClassifyRejects(t *testing.T) {
	for _, fps := range []float64{0, -25, math.NaN(), math.Inf(1), 0.2, 5000} {
		t.Run(fmt.Sprintf("%v", fps), func(t *testing.T) {
			_, err := Classify(fps)
			if !errors.Is(err, errs.ErrUnsupportedFrameRate) {
				t.Errorf("Classify(%v) error = %v, want unsupported frame rate", fps, err)
			}
		})
	}
}

func TestParseRational(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"30000/1001", 30000.0 / 1001.0, false},
		{"25/1", 25, false},
		{"24", 24, false},
		{"0/0", 0, true},
		{"abc", 0, true},
		{"30/x", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRational(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRational(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ParseRational(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTicksRoundTrip(t *testing.T) {
	limit := 1.0 / float64(TicksPerSecond)
	for _, s := range []float64{0, 1e-9, 0.001, 0.5, 1.0 / 3.0, 2.2, 59.94, 3599.999, 7322.123456, 36000} {
		got := TicksToSeconds(SecondsToTicks(s))
		if math.Abs(got-s) >= limit {
			t.Errorf("round trip of %v = %v, error %g >= %g", s, got, math.Abs(got-s), limit)
		}
	}
}

func TestFramesToTicksIsExact(t *testing.T) {
	tests := []struct {
		fps    float64
		frames int64
		want   int64
	}{
		{25, 1, 11_297_280},
		{24, 24, TicksPerSecond},
		{30, 90, 3 * TicksPerSecond},
		{60, 1, 4_707_200},
		{23.976, 1, 11_779_768},
		{23.976, 24000, 1001 * TicksPerSecond},
		{29.97, 5, 47_119_072},
		{29.97, 1, 9_423_814},
		{29.97, 30000, 1001 * TicksPerSecond},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v/%d", tt.fps, tt.frames), func(t *testing.T) {
			got := FramesToTicks(tt.frames, MustClassify(tt.fps))
			if got != tt.want {
				t.Errorf("FramesToTicks(%d) = %d, want %d", tt.frames, got, tt.want)
			}
		})
	}
}

func TestFramesToTicksDoesNotDrift(t *testing.T) {
	r := MustClassify(29.97)
	// ten hours of frames lands exactly on a whole tick boundary
	frames := int64(30000 * 36)
	if got, want := FramesToTicks(frames, r), int64(36*1001)*TicksPerSecond; got != want {
		t.Errorf("FramesToTicks(%d) = %d, want %d", frames, got, want)
	}
}

func TestSecondsToFramesWithinHalfFrame(t *testing.T) {
	for _, fps := range []float64{23.976, 24, 25, 29.97, 30, 50, 59.94, 60} {
		r := MustClassify(fps)
		half := 0.5 / r.FPS()
		for _, s := range []float64{0, 0.01, 0.5, 1.234, 59.99, 61.5, 600.25, 3601.7} {
			back := FramesToSeconds(SecondsToFrames(s, r), r)
			if math.Abs(back-s) > half+1e-9 {
				t.Errorf("%v fps: %v -> %v exceeds half a frame", fps, s, back)
			}
		}
	}
}

func TestFramesToTimecode(t *testing.T) {
	tests := []struct {
		fps    float64
		frames int64
		want   string
	}{
		{25, 0, "00:00:00:00"},
		{25, 90000, "01:00:00:00"},
		{24, 1439, "00:00:59:23"},
		{30, 1800, "00:01:00:00"},
		{29.97, 1799, "00:00:59:29"},
		{29.97, 1800, "00:01:00:02"},
		{29.97, 3598, "00:02:00:02"},
		{29.97, 17982, "00:10:00:00"},
		{29.97, 17983, "00:10:00:01"},
		{29.97, 107892, "01:00:00:00"},
		{59.94, 3600, "00:01:00:04"},
		{59.94, 35964, "00:10:00:00"},
		{23.976, 1440, "00:01:00:02"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v/%d", tt.fps, tt.frames), func(t *testing.T) {
			got, err := FramesToTimecode(tt.frames, MustClassify(tt.fps))
			if err != nil {
				t.Fatalf("FramesToTimecode error: %v", err)
			}
			if got != tt.want {
				t.Errorf("FramesToTimecode(%d) = %s, want %s", tt.frames, got, tt.want)
			}
		})
	}
}

func TestFramesToTimecodeRejectsNegative(t *testing.T) {
	_, err := FramesToTimecode(-1, MustClassify(25))
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestDropFrameSkipsLabels(t *testing.T) {
	for _, fps := range []float64{23.976, 29.97, 59.94} {
		r := MustClassify(fps)
		d := r.DroppedPerMinute()
		total := int64(r.Timebase) * 60 * 25

		for f := int64(0); f < total; f++ {
			tc, err := FramesToTimecode(f, r)
			if err != nil {
				t.Fatalf("%v fps frame %d: %v", fps, f, err)
			}

			var hh, mm, ss, ff int
			if _, err := fmt.Sscanf(tc, "%d:%d:%d:%d", &hh, &mm, &ss, &ff); err != nil {
				t.Fatalf("unparseable timecode %q", tc)
			}
			if ss == 0 && mm%10 != 0 && ff < d {
				t.Fatalf("%v fps frame %d emitted skipped label %s", fps, f, tc)
			}

			back, err := ParseTimecode(tc, r)
			if err != nil {
				t.Fatalf("%v fps: ParseTimecode(%s): %v", fps, tc, err)
			}
			if back != f {
				t.Fatalf("%v fps: %s parsed to %d, want %d", fps, tc, back, f)
			}
		}
	}
}

func TestParseTimecode(t *testing.T) {
	df := MustClassify(29.97)
	ndf := MustClassify(25)

	tests := []struct {
		name    string
		tc      string
		rate    FrameRate
		want    int64
		wantErr bool
	}{
		{"ndf", "01:00:00:00", ndf, 90000, false},
		{"df semicolon", "00:01:00;02", df, 1800, false},
		{"df all semicolons", "00;10;00;00", df, 17982, false},
		{"df skipped label", "00:01:00:00", df, 0, true},
		{"df skipped label 01", "00:01:00:01", df, 0, true},
		{"df tenth minute keeps 00", "00:10:00:00", df, 17982, false},
		{"frame out of range", "00:00:00:25", ndf, 0, true},
		{"minutes out of range", "00:60:00:00", ndf, 0, true},
		{"too few fields", "00:00:00", ndf, 0, true},
		{"garbage", "aa:bb:cc:dd", ndf, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimecode(tt.tc, tt.rate)
			if tt.wantErr {
				if !errors.Is(err, errs.ErrInvalidInput) {
					t.Errorf("ParseTimecode(%q) error = %v, want invalid input", tt.tc, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimecode(%q) error: %v", tt.tc, err)
			}
			if got != tt.want {
				t.Errorf("ParseTimecode(%q) = %d, want %d", tt.tc, got, tt.want)
			}
		})
	}
}

func TestClockTimestamps(t *testing.T) {
	tests := []struct {
		seconds float64
		srt     string
		vtt     string
	}{
		{0, "00:00:00,000", "00:00:00.000"},
		{2.2, "00:00:02,200", "00:00:02.200"},
		{59.9996, "00:01:00,000", "00:01:00.000"},
		{3661.5, "01:01:01,500", "01:01:01.500"},
		{36000.042, "10:00:00,042", "10:00:00.042"},
	}

	for _, tt := range tests {
		t.Run(tt.srt, func(t *testing.T) {
			if got := SecondsToSRT(tt.seconds); got != tt.srt {
				t.Errorf("SecondsToSRT(%v) = %s, want %s", tt.seconds, got, tt.srt)
			}
			if got := SecondsToVTT(tt.seconds); got != tt.vtt {
				t.Errorf("SecondsToVTT(%v) = %s, want %s", tt.seconds, got, tt.vtt)
			}
		})
	}
}

func TestFrameRateString(t *testing.T) {
	if got := MustClassify(29.97).String(); !strings.Contains(got, "DF") || !strings.HasPrefix(got, "29.970") {
		t.Errorf("String() = %q", got)
	}
	if got := MustClassify(25).String(); got != "25 fps (NDF)" {
		t.Errorf("String() = %q", got)
	}
}
