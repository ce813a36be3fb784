package timecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mgpai22/cutline/internal/errs"
)

// FrameRate is the classified frame rate of an export run.
// Num/Den is the exact rate, Timebase the nominal integer rate editors count in.
type FrameRate struct {
	Num       int64
	Den       int64
	Timebase  int
	DropFrame bool

	// timecode labels skipped at the start of each non-tenth minute
	drop int
}

// NTSC families. Labels dropped per minute scale with the timebase.
var ntscRates = []struct {
	nominal  float64
	num, den int64
	timebase int
	drop     int
}{
	{23.976, 24000, 1001, 24, 2},
	{29.97, 30000, 1001, 30, 2},
	{59.94, 60000, 1001, 60, 4},
}

const (
	classifyEpsilon = 0.01
	maxTimebase     = 1000
)

// Classify maps a raw fps value (as reported by a probe) to its FrameRate.
func Classify(rawFps float64) (FrameRate, error) {
	if math.IsNaN(rawFps) || math.IsInf(rawFps, 0) || rawFps <= 0 {
		return FrameRate{}, errs.UnsupportedFrameRate(
			"timecode.Classify", rawFps, "fps must be a positive finite number",
		)
	}

	for _, row := range ntscRates {
		exact := float64(row.num) / float64(row.den)
		if math.Abs(rawFps-row.nominal) < classifyEpsilon ||
			math.Abs(rawFps-exact) < classifyEpsilon {
			return FrameRate{
				Num:       row.num,
				Den:       row.den,
				Timebase:  row.timebase,
				DropFrame: true,
				drop:      row.drop,
			}, nil
		}
	}

	timebase := int(math.Round(rawFps))
	if timebase < 1 || timebase > maxTimebase {
		return FrameRate{}, errs.UnsupportedFrameRate(
			"timecode.Classify", rawFps, "timebase %d outside 1..%d", timebase, maxTimebase,
		)
	}

	return FrameRate{
		Num:      int64(timebase),
		Den:      1,
		Timebase: timebase,
	}, nil
}

// MustClassify is Classify for constant rates known to be valid.
func MustClassify(rawFps float64) FrameRate {
	r, err := Classify(rawFps)
	if err != nil {
		panic(err)
	}
	return r
}

// FPS returns the exact rate as a float.
func (r FrameRate) FPS() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// NTSC reports whether the rate is one of the 1000/1001 families.
func (r FrameRate) NTSC() bool {
	return r.Den == 1001
}

// DroppedPerMinute is the number of labels drop-frame timecode skips per minute.
func (r FrameRate) DroppedPerMinute() int {
	if !r.DropFrame {
		return 0
	}
	return r.drop
}

// IsZero reports whether r was never classified.
func (r FrameRate) IsZero() bool {
	return r.Num == 0 || r.Den == 0 || r.Timebase == 0
}

func (r FrameRate) String() string {
	mode := "NDF"
	if r.DropFrame {
		mode = "DF"
	}
	if r.Den == 1 {
		return fmt.Sprintf("%d fps (%s)", r.Num, mode)
	}
	return fmt.Sprintf("%.3f fps (%s)", r.FPS(), mode)
}

// ParseRational parses ffprobe style rates such as "30000/1001" or "25".
func ParseRational(s string) (float64, error) {
	s = strings.TrimSpace(s)
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, errs.UnsupportedFrameRate("timecode.ParseRational", s, "malformed rate")
	}
	if !found {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, errs.UnsupportedFrameRate("timecode.ParseRational", s, "malformed rate")
	}
	return n / d, nil
}
