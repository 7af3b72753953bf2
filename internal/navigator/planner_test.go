package navigator

import "testing"

func TestMixForwardOnlyBothWheelsHigh(t *testing.T) {
	cfg := MixerConfig{VMaxMps: 0.5, OmegaMaxDps: 90, MaxPWM: 255, DeadbandPWM: 20}
	l, r := Mix(0.5, 0, cfg)
	if l <= 200 || r <= 200 {
		t.Errorf("L,R = %d,%d; want both > 200", l, r)
	}
	if diff := l - r; diff > 2 || diff < -2 {
		t.Errorf("|L-R| = %d, want <= 2", diff)
	}
}

func TestMixPureSpinOppositeSigns(t *testing.T) {
	cfg := MixerConfig{VMaxMps: 0.5, OmegaMaxDps: 90, MaxPWM: 255, DeadbandPWM: 20}
	l, r := Mix(0, 60, cfg)
	if !(l < 0 && r > 0) {
		t.Errorf("L,R = %d,%d; want L<0<R", l, r)
	}
}

func TestMixRescalesWhenBothSaturate(t *testing.T) {
	cfg := MixerConfig{VMaxMps: 1.0, OmegaMaxDps: 90, MaxPWM: 255, DeadbandPWM: 20}
	l, r := Mix(1.0, 90, cfg)
	if r != 255 {
		t.Errorf("right = %d, want 255 (full scale after rescale)", r)
	}
	if l != 0 {
		t.Errorf("left = %d, want 0", l)
	}
}

func TestPlanPurePursuitStraightAhead(t *testing.T) {
	cfg := PlannerConfig{TrackWidthM: 0.58, MaxSpeedMps: 1.0, LateralAccelMax: 2.0}
	plan := PlanPurePursuit(0, 1.0, cfg)
	if plan.CurvaturePerM != 0 {
		t.Errorf("curvature = %v, want 0 for zero heading error", plan.CurvaturePerM)
	}
	if plan.LeftMps != plan.RightMps {
		t.Errorf("left/right = %v/%v, want equal going straight", plan.LeftMps, plan.RightMps)
	}
}

func TestPlanPurePursuitTurningSlowsOuterCap(t *testing.T) {
	cfg := PlannerConfig{TrackWidthM: 0.58, MaxSpeedMps: 2.0, LateralAccelMax: 1.0}
	plan := PlanPurePursuit(45, 1.0, cfg)
	if plan.SpeedMps >= cfg.MaxSpeedMps {
		t.Errorf("speed = %v, want capped below max speed by the lateral accel budget", plan.SpeedMps)
	}
	if plan.LeftMps < 0 || plan.RightMps < 0 {
		t.Errorf("left/right = %v/%v, want non-negative", plan.LeftMps, plan.RightMps)
	}
}
