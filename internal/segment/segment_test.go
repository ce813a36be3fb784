package segment

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/mgpai22/cutline/internal/errs"
	"github.com/mgpai22/cutline/internal/timeline"
)

const eps = 1e-9

func assertSegments(t *testing.T, got []timeline.Segment, want []Interval) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d segments %+v, want %d %+v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i].Index != i {
			t.Errorf("segment %d has index %d", i, got[i].Index)
		}
		if math.Abs(got[i].Start-want[i].Start) > eps || math.Abs(got[i].End-want[i].End) > eps {
			t.Errorf("segment %d = (%v, %v), want (%v, %v)", i, got[i].Start, got[i].End, want[i].Start, want[i].End)
		}
		if math.Abs(got[i].Duration-(got[i].End-got[i].Start)) > eps {
			t.Errorf("segment %d duration %v does not match bounds", i, got[i].Duration)
		}
	}
}

func TestReduce(t *testing.T) {
	tests := []struct {
		name     string
		silences []Interval
		total    float64
		policy   Policy
		want     []Interval
	}{
		{
			name:     "two silences with margin",
			silences: []Interval{{2, 4}, {6, 7}},
			total:    10,
			policy:   Policy{MinSilence: 1, Margin: 0.2, MergeTouching: true},
			want:     []Interval{{0, 2.2}, {3.8, 6.2}, {6.8, 10}},
		},
		{
			name:     "short silence ignored",
			silences: []Interval{{2, 2.5}, {6, 8}},
			total:    10,
			policy:   Policy{MinSilence: 1, Margin: 0},
			want:     []Interval{{0, 6}, {8, 10}},
		},
		{
			name:     "leading and trailing silence",
			silences: []Interval{{0, 1.5}, {8, 10}},
			total:    10,
			policy:   Policy{MinSilence: 1, Margin: 0.5},
			want:     []Interval{{1, 8.5}},
		},
		{
			name:     "margin larger than gap merges",
			silences: []Interval{{2, 3}},
			total:    5,
			policy:   Policy{MinSilence: 0.5, Margin: 0.75},
			want:     []Interval{{0, 5}},
		},
		{
			name:     "overlapping silences absorbed",
			silences: []Interval{{2, 5}, {4, 6}},
			total:    10,
			policy:   Policy{MinSilence: 1},
			want:     []Interval{{0, 2}, {6, 10}},
		},
		{
			name:     "silence past end clipped",
			silences: []Interval{{8, 12}, {11, 13}},
			total:    10,
			policy:   Policy{MinSilence: 1},
			want:     []Interval{{0, 8}},
		},
		{
			name:     "trailing silence measured before clipping",
			silences: []Interval{{9.5, 12}},
			total:    10,
			policy:   Policy{MinSilence: 1},
			want:     []Interval{{0, 9.5}},
		},
		{
			name:     "short silence past end still ignored",
			silences: []Interval{{9.5, 10.2}},
			total:    10,
			policy:   Policy{MinSilence: 1},
			want:     []Interval{{0, 10}},
		},
		{
			name:     "no silence",
			silences: nil,
			total:    3,
			policy:   DefaultPolicy(),
			want:     []Interval{{0, 3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Reduce(tt.silences, tt.total, tt.policy)
			if err != nil {
				t.Fatalf("Reduce: %v", err)
			}
			assertSegments(t, got, tt.want)
		})
	}
}

func TestReduceTouchingTieBreak(t *testing.T) {
	// speech (0,2) and (2.5,5) expanded by 0.25 meet exactly at 2.25
	silences := []Interval{{2, 2.5}}

	merged, err := Reduce(silences, 5, Policy{MinSilence: 0.5, Margin: 0.25, MergeTouching: true})
	if err != nil {
		t.Fatal(err)
	}
	assertSegments(t, merged, []Interval{{0, 5}})

	adjacent, err := Reduce(silences, 5, Policy{MinSilence: 0.5, Margin: 0.25, MergeTouching: false})
	if err != nil {
		t.Fatal(err)
	}
	assertSegments(t, adjacent, []Interval{{0, 2.25}, {2.25, 5}})

	if _, err := timeline.NewSegments(adjacent); err != nil {
		t.Errorf("touching segments should be a valid list: %v", err)
	}
}

func TestReduceDefaultsMergeTouching(t *testing.T) {
	if !DefaultPolicy().MergeTouching {
		t.Errorf("default policy should merge touching intervals")
	}
	if DefaultPolicy().MinSilence != 1.0 || DefaultPolicy().Margin != 0.2 {
		t.Errorf("unexpected default policy %+v", DefaultPolicy())
	}
}

func TestReduceRejects(t *testing.T) {
	tests := []struct {
		name     string
		silences []Interval
		total    float64
		policy   Policy
	}{
		{"fully silent", []Interval{{0, 10}}, 10, DefaultPolicy()},
		{"fully silent in pieces", []Interval{{0, 6}, {5, 10}}, 10, DefaultPolicy()},
		{"zero total", nil, 0, DefaultPolicy()},
		{"nan total", nil, math.NaN(), DefaultPolicy()},
		{"negative margin", nil, 10, Policy{Margin: -1}},
		{"negative min silence", nil, 10, Policy{MinSilence: -1}},
		{"reversed interval", []Interval{{4, 2}}, 10, DefaultPolicy()},
		{"negative start", []Interval{{-1, 2}}, 10, DefaultPolicy()},
		{"unordered", []Interval{{5, 6}, {1, 2}}, 10, DefaultPolicy()},
		{"infinite", []Interval{{1, math.Inf(1)}}, 10, DefaultPolicy()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Reduce(tt.silences, tt.total, tt.policy); !errors.Is(err, errs.ErrInvalidInput) {
				t.Errorf("expected invalid input, got %v", err)
			}
		})
	}
}

func unionLength(ivs []Interval) float64 {
	sorted := append([]Interval(nil), ivs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var total, curStart, curEnd float64
	open := false
	for _, iv := range sorted {
		if !open || iv.Start > curEnd {
			if open {
				total += curEnd - curStart
			}
			curStart, curEnd, open = iv.Start, iv.End, true
			continue
		}
		curEnd = math.Max(curEnd, iv.End)
	}
	if open {
		total += curEnd - curStart
	}
	return total
}

func TestInvertCoversDuration(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 500; round++ {
		total := 1 + rng.Float64()*600

		var silences []Interval
		cursor := 0.0
		for cursor < total {
			start := cursor + rng.Float64()*20
			end := start + rng.Float64()*10 + 0.01
			if start >= total {
				break
			}
			silences = append(silences, Interval{start, math.Min(end, total)})
			// allow overlaps now and then
			cursor = start + rng.Float64()*(end-start)*1.5
		}

		speech := Invert(silences, total)

		for i, s := range speech {
			if s.End <= s.Start {
				t.Fatalf("round %d: empty speech interval %+v", round, s)
			}
			if i > 0 && s.Start < speech[i-1].End {
				t.Fatalf("round %d: speech intervals overlap: %+v %+v", round, speech[i-1], s)
			}
			for _, sil := range silences {
				if s.Start < sil.End-eps && sil.Start < s.End-eps {
					t.Fatalf("round %d: speech %+v intersects silence %+v", round, s, sil)
				}
			}
		}

		covered := unionLength(speech) + unionLength(silences)
		if math.Abs(covered-total) > 1e-6 {
			t.Fatalf("round %d: speech+silence covers %v, want %v", round, covered, total)
		}
	}
}
