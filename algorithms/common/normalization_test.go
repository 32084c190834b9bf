package common

import (
	"math"
	"testing"
)

func TestNormalizeByMax(t *testing.T) {
	got := NormalizeByMax([]float64{1, 2, 4})
	want := []float64{0.25, 0.5, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNormalizeByMaxDegenerate(t *testing.T) {
	cases := map[string][]float64{
		"zeros":    {0, 0, 0},
		"negative": {-1, -2, -0.5},
		"nan":      {1, math.NaN(), 2},
		"inf":      {1, math.Inf(1)},
	}
	for name, in := range cases {
		got := NormalizeByMax(in)
		if len(got) != len(in) {
			t.Fatalf("%s: length %d, want %d", name, len(got), len(in))
		}
		for i, v := range got {
			if v != 0 {
				t.Errorf("%s: got[%d] = %v, want 0", name, i, v)
			}
		}
	}
}

func TestScaleRowsByGlobalMax(t *testing.T) {
	rows := [][]float64{{1, 2}, {4, 0}}
	if m := ScaleRowsByGlobalMax(rows); m != 4 {
		t.Fatalf("max = %v, want 4", m)
	}
	if rows[1][0] != 1 || rows[0][1] != 0.5 {
		t.Errorf("unexpected scaled rows %v", rows)
	}

	// already scaled: second pass is a no-op
	ScaleRowsByGlobalMax(rows)
	if rows[1][0] != 1 || rows[0][1] != 0.5 {
		t.Errorf("second pass changed rows %v", rows)
	}

	zero := [][]float64{{0, 0}}
	if m := ScaleRowsByGlobalMax(zero); m != 0 {
		t.Errorf("degenerate max = %v, want 0", m)
	}
}

func TestResampleLinear(t *testing.T) {
	got := ResampleLinear([]float64{0, 10}, 3)
	want := []float64{0, 5, 10}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if n := len(ResampleLinear(make([]float64, 1000), 32)); n != 32 {
		t.Errorf("len = %d, want 32", n)
	}
	if n := len(ResampleLinear(nil, 8)); n != 8 {
		t.Errorf("empty contour len = %d, want 8", n)
	}
}
