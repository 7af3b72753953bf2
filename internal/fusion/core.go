// Package fusion implements the sensor-fusion core: a sliding circular-mean
// heading-offset estimator that aligns a local heading stream (from the
// motor controller's odometry/IMU tick) against whichever global heading
// samples are available (NAV-PVAT vehicle/motion heading, UNIHEADINGA),
// and composes the navigation solution the navigator and loopback stream
// consume. See SPEC_FULL.md §4.6.
//
// This package intentionally implements only the sliding-circular-mean
// alignment. An alternative gyro-Z-integration-with-calibration-offset
// variant exists in the source material this project draws on; it is not
// implemented here and must not be reintroduced.
package fusion

import (
	"sync"
	"time"

	"github.com/unidroids/robotour/internal/records"
	"github.com/unidroids/robotour/internal/timeutil"
	"github.com/unidroids/robotour/internal/units"
	"github.com/unidroids/robotour/internal/wire/ubx"
	"github.com/unidroids/robotour/internal/wire/unicore"
)

// DefaultWindow is the circular-mean estimator's default sample window.
const DefaultWindow = 20

// DefaultAlpha is the exponential smoothing factor applied to the
// estimator's mean once its quality clears QualityGate.
const DefaultAlpha = 0.1

// QualityGate is the minimum circular-mean quality (length of the mean
// unit vector) required before the smoothed correction is updated.
const QualityGate = 0.8

// Output placeholders for fields this port does not yet estimate directly;
// mirrors the original prototype's fixed error-budget constants.
const (
	sAccPlaceholder       = 0.020
	headingAccPlaceholder = 2.0
	gyroZAccPlaceholder   = 1.0
)

// imuOmegaDiv and imuAngleDiv convert the motor controller's raw gyro-Z and
// accumulated-angle ADC counts into deg/s and degrees (ccw+), matching the
// scale factors used by the source odometry/IMU tick decoder this data
// format was drawn from.
const (
	imuOmegaDiv = 13106.8
	imuAngleDiv = 3355340.8
)

type localSample struct {
	t          time.Time
	headingDeg float64
}

type globalSample struct {
	t          time.Time
	headingDeg float64
}

// Core holds the fusion engine's running state: last position, the local
// and global heading streams needed for alignment, the sliding circular
// mean estimator, and the raw passthrough fields the output record carries
// for downstream diagnostics.
type Core struct {
	mu    sync.Mutex
	clock timeutil.Clock

	estimator *CircularMeanEstimator

	havePosition bool
	lat, lon     float64
	hAcc         float64

	haveLocal          int // 0, 1, or 2 local samples observed
	prevLocal, curLocal localSample

	globalBuf []globalSample // at most 2, oldest first

	haveWheels       bool
	leftMMps, rightMMps float64

	haveGyroZ               bool
	gyroZDegS, prevGyroZDegS float64

	lastMotHeadingDeg float64
	lastGSpeedMMps    float64

	haveFixStatus bool
	lastFixOK     bool
	lastDrUsed    bool

	smoothedCorrection float64
	haveSmoothed       bool
}

// UBX NAV-PVAT fixType codes relevant to the gnssFixOK/drUsed alternate
// path: 1 is dead-reckoning-only, 4 is combined GNSS+dead-reckoning.
const (
	fixTypeDeadReckoningOnly = 1
	fixTypeGNSSPlusDR        = 4
)

// New builds a fusion Core. window <= 0 selects DefaultWindow.
func New(clock timeutil.Clock, window int) *Core {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Core{
		clock:     clock,
		estimator: NewCircularMeanEstimator(window),
	}
}

// OnNavPvat ingests a GNSS navigation solution: updates the last known
// position and horizontal accuracy, and records a global heading sample
// (vehicle attitude heading when valid, falling back to motion heading).
func (c *Core) OnNavPvat(m ubx.NavPvat) {
	t := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lat = m.LatDeg
	c.lon = m.LonDeg
	c.hAcc = float64(m.HAccMM) / 1000.0
	c.havePosition = true
	c.lastMotHeadingDeg = m.MotHeadingDeg
	c.lastGSpeedMMps = float64(m.GroundSpeedMMps)

	c.haveFixStatus = true
	c.lastFixOK = m.FixOK
	c.lastDrUsed = m.FixType == fixTypeDeadReckoningOnly || m.FixType == fixTypeGNSSPlusDR

	heading := m.MotHeadingDeg
	if m.HeadingValid {
		heading = m.VehHeadingDeg
	}
	c.addGlobal(t, units.NormalizeDeg(heading))
}

// OnUniHeading ingests a dual-antenna heading solution as another global
// heading sample.
func (c *Core) OnUniHeading(m unicore.UniHeading) {
	t := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addGlobal(t, units.NormalizeDeg(m.HeadingDeg))
}

// OnEsfRaw ingests a raw gyro sample as the local angular rate (gyroZ),
// shifting the previous value into lastGyroZ.
func (c *Core) OnEsfRaw(m ubx.EsfRaw) {
	if !m.HaveGyroZ {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prevGyroZDegS = c.gyroZDegS
	c.gyroZDegS = m.GyroZ
	c.haveGyroZ = true
}

// OnOdm ingests a wheel-odometry/IMU-tick sample: stores the wheel speeds
// and converts the accumulated-angle ADC count into a local heading sample
// (cw, 0=N convention) fed into the alignment procedure.
func (c *Core) OnOdm(gyroZAdc int16, accumAngleAdc int32, leftMMps, rightMMps int16) {
	t := c.clock.Now()
	localCcw := float64(accumAngleAdc) / imuAngleDiv
	localHeadingDeg := units.NormalizeDeg(-localCcw)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.leftMMps = float64(leftMMps)
	c.rightMMps = float64(rightMMps)
	c.haveWheels = true
	c.ingestLocal(t, localHeadingDeg)
}

// addGlobal appends a global heading sample, keeping at most the 2 most
// recent. Caller holds c.mu.
func (c *Core) addGlobal(t time.Time, headingDeg float64) {
	c.globalBuf = append(c.globalBuf, globalSample{t: t, headingDeg: headingDeg})
	if len(c.globalBuf) > 2 {
		c.globalBuf = c.globalBuf[len(c.globalBuf)-2:]
	}
}

// ingestLocal implements the alignment procedure from SPEC_FULL.md §4.6:
// on a new local heading at t_curr with the previous (t_prev, h_prev), drop
// global samples older than t_prev, then for every remaining global sample
// in [t_prev, t_curr], interpolate the local heading at that instant along
// the shortest arc and feed the (h_local_at_tg, h_g) delta to the circular
// mean estimator. Caller holds c.mu.
func (c *Core) ingestLocal(tCurr time.Time, headingDeg float64) {
	if c.haveLocal == 0 {
		c.curLocal = localSample{t: tCurr, headingDeg: headingDeg}
		c.prevLocal = c.curLocal
		c.haveLocal = 1
		return
	}

	tPrev := c.curLocal.t
	hPrev := c.curLocal.headingDeg
	c.prevLocal = c.curLocal
	c.curLocal = localSample{t: tCurr, headingDeg: headingDeg}
	c.haveLocal = 2

	kept := c.globalBuf[:0]
	for _, g := range c.globalBuf {
		if !g.t.Before(tPrev) {
			kept = append(kept, g)
		}
	}
	c.globalBuf = kept

	for _, g := range c.globalBuf {
		if g.t.Before(tPrev) || g.t.After(tCurr) {
			continue
		}
		hLocalAtTg := interpolateHeadingDeg(tPrev, hPrev, tCurr, headingDeg, g.t)
		// Correction is tracked as (local - global): a positive value means
		// the local stream leads the global one by that many degrees, and
		// GetSolution subtracts it back out to recover the global-aligned
		// heading.
		delta := units.DiffDeg(hLocalAtTg, g.headingDeg)
		c.estimator.Add(delta)

		if mean, ok := c.estimator.Mean(); ok && c.estimator.Quality() > QualityGate {
			if !c.haveSmoothed {
				c.smoothedCorrection = mean
				c.haveSmoothed = true
			} else {
				c.smoothedCorrection = units.NormalizeDeg(
					c.smoothedCorrection + DefaultAlpha*units.DiffDeg(mean, c.smoothedCorrection))
			}
		}
	}
}

// interpolateHeadingDeg linearly interpolates between two heading samples
// along the shortest arc, clamping tq to [t0, t1].
func interpolateHeadingDeg(t0 time.Time, h0 float64, t1 time.Time, h1 float64, tq time.Time) float64 {
	total := t1.Sub(t0)
	if total <= 0 {
		return h1
	}
	frac := tq.Sub(t0).Seconds() / total.Seconds()
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	return units.NormalizeDeg(h0 + frac*units.DiffDeg(h1, h0))
}

// Ready reports whether GetSolution would return a valid solution: position,
// local heading, wheel speeds, and the sliding estimator must all be present.
func (c *Core) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready()
}

func (c *Core) ready() bool {
	return c.havePosition && c.haveLocal > 0 && c.haveWheels && c.estimator.Count() > 0
}

// Correction returns the current heading-offset estimate (smoothed once
// established, otherwise the raw circular mean) and its quality.
func (c *Core) Correction() (correction, quality float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mean, meanOK := c.estimator.Mean()
	if !meanOK {
		return 0, 0, false
	}
	if c.haveSmoothed {
		return c.smoothedCorrection, c.estimator.Quality(), true
	}
	return mean, c.estimator.Quality(), true
}

// GetSolution composes a NavFusion record from the current state, per
// SPEC_FULL.md §4.6's output rules. It returns false if the ready gate is
// not yet satisfied.
func (c *Core) GetSolution() (records.NavFusion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready() {
		return records.NavFusion{}, false
	}

	correction := 0.0
	if mean, ok := c.estimator.Mean(); ok {
		correction = mean
	}
	if c.haveSmoothed {
		correction = c.smoothedCorrection
	}

	heading := units.Normalize360Deg(c.curLocal.headingDeg - correction)
	speedMps := (c.leftMMps + c.rightMMps) / 2.0 / 1000.0

	rec := records.NavFusion{
		TsMono:     float64(c.clock.Now().UnixNano()) / 1e9,
		Lat:        c.lat,
		Lon:        c.lon,
		HAcc:       float32(c.hAcc),
		Heading:    float32(heading),
		HeadingAcc: headingAccPlaceholder,
		Speed:      float32(speedMps),
		SAcc:       sAccPlaceholder,
		GyroZ:      float32(c.gyroZDegS),
		GyroZAcc:   gyroZAccPlaceholder,
		GnssFixOK:  c.lastFixOK,
		DrUsed:     c.lastDrUsed,
		VehHeading: float32(units.Normalize360Deg(c.curLocal.headingDeg)),
		MotHeading: float32(units.Normalize360Deg(c.lastMotHeadingDeg)),
		LastGyroZ:  float32(c.prevGyroZDegS),
		GSpeed:     float32(c.lastGSpeedMMps),
	}
	return rec, true
}
