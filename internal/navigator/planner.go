package navigator

import "math"

// PlannerConfig bounds the pure-pursuit velocity planner, grounded on the
// original motion controller's speed/turn limits.
type PlannerConfig struct {
	TrackWidthM  float64 // b: distance between the two wheels
	MaxSpeedMps  float64
	LateralAccelMax float64 // a_y_max, m/s^2
	MinTurnRadiusM  float64 // optional; 0 disables the extra clamp
	MinWheelSpeedMps float64 // optional inner-wheel floor; 0 disables
}

// VelocityPlan is the planner's output: a center speed and the
// corresponding left/right wheel speeds for the track-width geometry.
type VelocityPlan struct {
	CurvaturePerM float64
	SpeedMps      float64
	LeftMps       float64
	RightMps      float64
}

// PlanPurePursuit implements the pure-pursuit velocity plan from
// SPEC_FULL.md §4.7: from heading error alpha (degrees, clamped to
// [-90,90]) and lookahead distance lM, compute curvature, clamp the
// admissible heading error for the effective turn radius, cap speed by the
// lateral-acceleration budget and MaxSpeedMps, then derive wheel speeds.
func PlanPurePursuit(alphaDeg, lM float64, cfg PlannerConfig) VelocityPlan {
	if alphaDeg > 90 {
		alphaDeg = 90
	} else if alphaDeg < -90 {
		alphaDeg = -90
	}

	rEff := cfg.TrackWidthM / 2.0
	if cfg.MinTurnRadiusM > rEff {
		rEff = cfg.MinTurnRadiusM
	}
	if rEff > 0 && lM > 0 {
		alphaMax := math.Asin(math.Min(1.0, lM/(2*rEff))) * 180 / math.Pi
		if alphaDeg > alphaMax {
			alphaDeg = alphaMax
		} else if alphaDeg < -alphaMax {
			alphaDeg = -alphaMax
		}
	}

	alphaRad := alphaDeg * math.Pi / 180
	kappa := 0.0
	if lM > 0 {
		kappa = 2 * math.Sin(alphaRad) / lM
	}

	speed := cfg.MaxSpeedMps
	if kappa != 0 && cfg.LateralAccelMax > 0 {
		vCap := math.Sqrt(cfg.LateralAccelMax / math.Abs(kappa))
		if vCap < speed {
			speed = vCap
		}
	}

	b := cfg.TrackWidthM
	left := speed * (1 - b*kappa/2)
	right := speed * (1 + b*kappa/2)
	if left < 0 {
		left = 0
	}
	if right < 0 {
		right = 0
	}
	if cfg.MinWheelSpeedMps > 0 {
		if left > 0 && left < cfg.MinWheelSpeedMps {
			left = cfg.MinWheelSpeedMps
		}
		if right > 0 && right < cfg.MinWheelSpeedMps {
			right = cfg.MinWheelSpeedMps
		}
	}

	return VelocityPlan{
		CurvaturePerM: kappa,
		SpeedMps:      speed,
		LeftMps:       left,
		RightMps:      right,
	}
}

// MixerConfig bounds the PWM mixer.
type MixerConfig struct {
	VMaxMps     float64
	OmegaMaxDps float64
	MaxPWM      int
	DeadbandPWM int
}

// Mix implements the PWM mixing from SPEC_FULL.md §4.7: normalize v/vMax
// and omega/omegaMax to [-1,1], differential-mix into left/right, rescale
// if either exceeds unit magnitude, then map to signed PWM with a deadband.
// Grounded on the original motion controller's mix_v_omega_to_pwm.
func Mix(vMps, omegaDps float64, cfg MixerConfig) (left, right int) {
	vMax := math.Max(1e-6, cfg.VMaxMps)
	wMax := math.Max(1e-6, cfg.OmegaMaxDps)

	v := math.Max(-vMax, math.Min(vMax, vMps))
	w := math.Max(-wMax, math.Min(wMax, omegaDps))

	vNorm := v / vMax
	wNorm := w / wMax

	l := vNorm - wNorm
	r := vNorm + wNorm

	m := math.Max(1.0, math.Max(math.Abs(l), math.Abs(r)))
	l /= m
	r /= m

	return normToPWM(l, cfg), normToPWM(r, cfg)
}

func normToPWM(n float64, cfg MixerConfig) int {
	if n > 1 {
		n = 1
	} else if n < -1 {
		n = -1
	}
	if math.Abs(n) < 1e-6 {
		return 0
	}
	span := float64(cfg.MaxPWM - cfg.DeadbandPWM)
	if n > 0 {
		return int(math.Round(float64(cfg.DeadbandPWM) + n*span))
	}
	return -int(math.Round(float64(cfg.DeadbandPWM) + (-n)*span))
}
