package envelope

import (
	"math"
	"testing"
)

func TestShapeBreakpoints(t *testing.T) {
	got := Shape(0.2, DefaultAttack, DefaultRelease)
	want := Curve{{0, 0}, {0.01, 1}, {0.15, 1}, {0.2, 0}}
	for i := range want {
		if math.Abs(got[i].T-want[i].T) > 1e-12 || got[i].V != want[i].V {
			t.Fatalf("breakpoint %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestShapeShortGrainKeepsOrder(t *testing.T) {
	cases := []float64{0.04, 0.03, 0.005}
	for _, d := range cases {
		c := Shape(d, DefaultAttack, DefaultRelease)
		for i := 1; i < len(c); i++ {
			if c[i].T < c[i-1].T {
				t.Fatalf("duration %v: breakpoints out of order: %+v", d, c)
			}
		}
		if c.Duration() != d {
			t.Fatalf("duration %v: curve ends at %v", d, c.Duration())
		}
	}
	c := Shape(0.04, DefaultAttack, DefaultRelease)
	if c[2].T != DefaultAttack {
		t.Fatalf("release should start at attack end for 40ms grains, got %v", c[2].T)
	}
}

func TestShapeDegenerate(t *testing.T) {
	if c := Shape(0, DefaultAttack, DefaultRelease); c != (Curve{}) {
		t.Fatalf("zero duration should yield a flat curve, got %+v", c)
	}
}

func TestValueAt(t *testing.T) {
	c := Shape(0.2, 0.01, 0.05)
	cases := []struct {
		t    float64
		want float64
	}{
		{-0.1, 0},
		{0, 0},
		{0.005, 0.5},
		{0.01, 1},
		{0.1, 1},
		{0.175, 0.5},
		{0.2, 0},
		{0.3, 0},
	}
	for _, tc := range cases {
		if got := c.ValueAt(tc.t); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("ValueAt(%v) = %v, want %v", tc.t, got, tc.want)
		}
	}
}
