package timecode

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/mgpai22/cutline/internal/errs"
)

// TicksPerSecond is a common multiple of the supported frame-rate denominators.
const TicksPerSecond int64 = 282_432_000

func SecondsToTicks(seconds float64) int64 {
	return int64(math.Round(seconds * float64(TicksPerSecond)))
}

func TicksToSeconds(ticks int64) float64 {
	return float64(ticks) / float64(TicksPerSecond)
}

// FramesToTicks converts an absolute frame index, so boundaries never drift.
func FramesToTicks(frames int64, r FrameRate) int64 {
	neg := frames < 0
	if neg {
		frames = -frames
	}

	n := new(big.Int).Mul(big.NewInt(frames), big.NewInt(r.Den))
	n.Mul(n, big.NewInt(TicksPerSecond))
	num := big.NewInt(r.Num)
	q, m := new(big.Int).QuoRem(n, num, new(big.Int))
	if m.Lsh(m, 1).Cmp(num) >= 0 {
		q.Add(q, big.NewInt(1))
	}

	ticks := q.Int64()
	if neg {
		return -ticks
	}
	return ticks
}

// SecondsToFrames rounds to the nearest frame of the exact rate.
// For non-NTSC classes this is round(seconds * timebase).
func SecondsToFrames(seconds float64, r FrameRate) int64 {
	return int64(math.Round(seconds * float64(r.Num) / float64(r.Den)))
}

func FramesToSeconds(frames int64, r FrameRate) float64 {
	return float64(frames) * float64(r.Den) / float64(r.Num)
}

// FramesToTimecode renders a frame count as HH:MM:SS:FF.
// Drop-frame rates skip the first labels of every minute not divisible by ten.
func FramesToTimecode(frames int64, r FrameRate) (string, error) {
	if frames < 0 {
		return "", errs.InvalidInput(
			"timecode.FramesToTimecode", errs.NoIndex, frames, "frame count must be non-negative",
		)
	}
	if r.IsZero() {
		return "", errs.UnsupportedFrameRate("timecode.FramesToTimecode", r, "frame rate not classified")
	}

	tb := int64(r.Timebase)
	if d := int64(r.DroppedPerMinute()); d > 0 {
		perTenMinutes := tb*600 - 9*d
		perMinute := tb*60 - d

		tens := frames / perTenMinutes
		rem := frames % perTenMinutes
		if rem > d {
			frames += 9*d*tens + d*((rem-d)/perMinute)
		} else {
			frames += 9 * d * tens
		}
	}

	ff := frames % tb
	ss := (frames / tb) % 60
	mm := (frames / (tb * 60)) % 60
	hh := frames / (tb * 3600)

	return fmt.Sprintf("%02d:%02d:%02d:%02d", hh, mm, ss, ff), nil
}

// SecondsToTimecode is FramesToTimecode(SecondsToFrames(seconds)).
func SecondsToTimecode(seconds float64, r FrameRate) (string, error) {
	return FramesToTimecode(SecondsToFrames(seconds, r), r)
}

// ParseTimecode is the inverse of FramesToTimecode. ';' and '.' separators are accepted.
func ParseTimecode(tc string, r FrameRate) (int64, error) {
	const op = "timecode.ParseTimecode"

	if r.IsZero() {
		return 0, errs.UnsupportedFrameRate(op, r, "frame rate not classified")
	}

	parts := strings.FieldsFunc(strings.TrimSpace(tc), func(c rune) bool {
		return c == ':' || c == ';' || c == '.'
	})
	if len(parts) != 4 {
		return 0, errs.InvalidInput(op, errs.NoIndex, tc, "expected HH:MM:SS:FF")
	}

	var fields [4]int64
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil || v < 0 {
			return 0, errs.InvalidInput(op, errs.NoIndex, tc, "field %d is not a number", i)
		}
		fields[i] = v
	}

	hh, mm, ss, ff := fields[0], fields[1], fields[2], fields[3]
	tb := int64(r.Timebase)
	if mm > 59 || ss > 59 || ff >= tb {
		return 0, errs.InvalidInput(op, errs.NoIndex, tc, "field out of range")
	}

	totalMinutes := hh*60 + mm
	frames := (totalMinutes*60+ss)*tb + ff

	if d := int64(r.DroppedPerMinute()); d > 0 {
		if ss == 0 && mm%10 != 0 && ff < d {
			return 0, errs.InvalidInput(op, errs.NoIndex, tc, "label is skipped by drop-frame timecode")
		}
		frames -= d * (totalMinutes - totalMinutes/10)
	}

	return frames, nil
}

// SecondsToSRT renders HH:MM:SS,mmm.
func SecondsToSRT(seconds float64) string {
	return formatClock(seconds, ',')
}

// SecondsToVTT renders HH:MM:SS.mmm.
func SecondsToVTT(seconds float64) string {
	return formatClock(seconds, '.')
}

func formatClock(seconds float64, sep byte) string {
	ms := int64(math.Round(seconds * 1000))
	sign := ""
	if ms < 0 {
		sign = "-"
		ms = -ms
	}

	hours := ms / 3_600_000
	minutes := (ms / 60_000) % 60
	secs := (ms / 1000) % 60
	millis := ms % 1000

	return fmt.Sprintf("%s%02d:%02d:%02d%c%03d", sign, hours, minutes, secs, sep, millis)
}
