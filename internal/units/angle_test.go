package units

import (
	"math"
	"testing"
)

func TestNormalizeDeg(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{180, 180},
		{181, -179},
		{-180, 180},
		{-181, 179},
		{360, 0},
		{720 + 45, 45},
	}
	for _, c := range cases {
		got := NormalizeDeg(c.in)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("NormalizeDeg(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestDiffDegAntisymmetric(t *testing.T) {
	a, b := 10.0, 350.0
	d1 := DiffDeg(a, b)
	d2 := DiffDeg(b, a)
	if math.Abs(d1+d2) > 1e-9 && math.Abs(math.Abs(d1+d2)-360) > 1e-9 {
		t.Errorf("diff(a,b)=%v diff(b,a)=%v not antisymmetric mod 360", d1, d2)
	}
	if d1 <= -180 || d1 > 180 {
		t.Errorf("diff out of range: %v", d1)
	}
}

func TestAzimuthFromENU(t *testing.T) {
	// East (theta=0) -> azimuth 90 (the spec's near-point east example).
	if got := AzimuthFromENU(0); math.Abs(got-90) > 1e-9 {
		t.Errorf("azimuth(east) = %v, want 90", got)
	}
	// North (theta=90deg) -> azimuth 0.
	if got := AzimuthFromENU(math.Pi / 2); math.Abs(got-0) > 1e-9 {
		t.Errorf("azimuth(north) = %v, want 0", got)
	}
}
