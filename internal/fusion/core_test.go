package fusion

import (
	"math"
	"testing"
	"time"

	"github.com/unidroids/robotour/internal/timeutil"
	"github.com/unidroids/robotour/internal/units"
	"github.com/unidroids/robotour/internal/wire/ubx"
)

func accumAngleFor(localHeadingDeg float64) int32 {
	return int32(-localHeadingDeg * imuAngleDiv)
}

func navPvatWithHeading(headingDeg float64) ubx.NavPvat {
	return ubx.NavPvat{
		LatDeg:        50.0,
		LonDeg:        14.0,
		HAccMM:        500,
		HeadingValid:  true,
		VehHeadingDeg: headingDeg,
	}
}

func TestCoreHeadingOffsetEstimatorScenario(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	c := New(clock, DefaultWindow)

	// Seed the local-heading stream; the very first sample only sets
	// prevLocal/curLocal, no alignment happens yet.
	clock.Advance(10 * time.Millisecond)
	c.OnOdm(0, accumAngleFor(25), 100, 100)

	for i := 0; i < 20; i++ {
		clock.Advance(100 * time.Millisecond)
		c.OnNavPvat(navPvatWithHeading(0))
		clock.Advance(50 * time.Millisecond)
		c.OnOdm(0, accumAngleFor(25), 100, 100)
	}

	if got := c.estimator.Count(); got != 20 {
		t.Fatalf("estimator count = %d, want 20", got)
	}
	mean, ok := c.estimator.Mean()
	if !ok {
		t.Fatal("expected a mean after 20 samples")
	}
	if diff := math.Abs(mean - 25); diff > 1e-3 {
		t.Errorf("mean = %v, want ~25 (diff %v)", mean, diff)
	}
	if q := c.estimator.Quality(); q < 0.999 {
		t.Errorf("quality = %v, want ~1.0", q)
	}

	correction, quality, ok := c.Correction()
	if !ok {
		t.Fatal("expected a correction")
	}
	if diff := math.Abs(correction - 25); diff > 1e-3 {
		t.Errorf("correction = %v, want ~25 (diff %v)", correction, diff)
	}
	if quality < 0.999 {
		t.Errorf("reported quality = %v, want ~1.0", quality)
	}
	if !c.haveSmoothed {
		t.Error("expected smoothed correction to be established")
	}

	sol, ok := c.GetSolution()
	if !ok {
		t.Fatal("expected a ready solution")
	}
	if diff := math.Abs(units.DiffDeg(float64(sol.Heading), 0)); diff > 1e-3 {
		t.Errorf("solution heading = %v, want ~0 (global truth)", sol.Heading)
	}

	// Inject 180-degree outliers: 5 samples where local leads global by
	// 205 degrees instead of 25. They dilute the 20-sample window enough
	// to push quality below the smoothing gate, freezing the smoothed
	// correction at its prior value.
	for i := 0; i < 5; i++ {
		clock.Advance(100 * time.Millisecond)
		c.OnNavPvat(navPvatWithHeading(0))
		clock.Advance(50 * time.Millisecond)
		c.OnOdm(0, accumAngleFor(205), 100, 100)
	}

	_, quality, ok = c.Correction()
	if !ok {
		t.Fatal("expected a correction after outliers")
	}
	if quality >= QualityGate {
		t.Errorf("quality = %v, want below gate %v after outliers", quality, QualityGate)
	}

	frozen, _, _ := c.Correction()
	if diff := math.Abs(frozen - 25); diff > 2.0 {
		t.Errorf("smoothed correction = %v, want within 2 of 25 after outliers", frozen)
	}
}

func TestCoreReadyGateRequiresAllInputs(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	c := New(clock, DefaultWindow)

	if c.Ready() {
		t.Error("expected not ready with no inputs")
	}

	c.OnNavPvat(navPvatWithHeading(10))
	if c.Ready() {
		t.Error("expected not ready with only a position/global sample")
	}

	clock.Advance(50 * time.Millisecond)
	c.OnOdm(0, accumAngleFor(10), 50, 50)
	if c.Ready() {
		t.Error("expected not ready before the estimator holds an aligned sample")
	}

	// A global sample between two local samples gives the estimator its
	// first delta.
	clock.Advance(50 * time.Millisecond)
	c.OnNavPvat(navPvatWithHeading(10))
	clock.Advance(50 * time.Millisecond)
	c.OnOdm(0, accumAngleFor(10), 50, 50)
	if !c.Ready() {
		t.Error("expected ready once position, local heading, wheel speeds, and an estimator sample are all present")
	}

	if _, ok := c.GetSolution(); !ok {
		t.Error("expected GetSolution to succeed once ready")
	}
}

func TestCoreAlignmentUsesShortestArcInterpolation(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(2000, 0))
	c := New(clock, 5)

	clock.Advance(10 * time.Millisecond)
	c.OnOdm(0, accumAngleFor(170), 0, 0)

	// Midway between two local samples that straddle the wrap, a global
	// sample should be compared against the interpolated value along the
	// shorter arc rather than a naive linear blend.
	clock.Advance(50 * time.Millisecond)
	c.OnNavPvat(navPvatWithHeading(180))
	clock.Advance(50 * time.Millisecond)
	c.OnOdm(0, accumAngleFor(-170), 0, 0)

	if got := c.estimator.Count(); got != 1 {
		t.Fatalf("estimator count = %d, want 1", got)
	}
	mean, _ := c.estimator.Mean()
	if diff := math.Abs(mean); diff > 1.0 {
		t.Errorf("mean = %v, want ~0 (interpolated local ~180 matches global 180)", mean)
	}
}
