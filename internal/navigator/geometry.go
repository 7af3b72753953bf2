// Package navigator implements the waypoint navigator: near-point lookahead
// geometry, the drive FSM, a pure-pursuit velocity planner, and the PWM
// mixer. See SPEC_FULL.md §4.7.
package navigator

import (
	"math"

	"github.com/unidroids/robotour/internal/geo"
	"github.com/unidroids/robotour/internal/units"
)

// NearCase classifies how the lookahead circle around the robot intersects
// the straight line through the start and goal waypoints.
type NearCase int

const (
	// NoIntersection means the lookahead circle never reaches the line.
	NoIntersection NearCase = iota
	// Tangent means the circle just touches the line at its foot point.
	Tangent
	// TwoIntersections means the circle crosses the line twice; the near
	// point is the one farther along toward the goal.
	TwoIntersections
)

func (c NearCase) String() string {
	switch c {
	case NoIntersection:
		return "NO_INTERSECTION"
	case Tangent:
		return "TANGENT"
	case TwoIntersections:
		return "TWO_INTERSECTIONS"
	default:
		return "UNKNOWN"
	}
}

// NearPoint is the result of the near-point lookahead computation for one
// robot position R against the line through start S and goal E.
type NearPoint struct {
	Case NearCase

	// DistanceToGoalM is the signed distance to the goal along the S->E
	// line (negative once R's projection passes E).
	DistanceToGoalM float64
	// AbsDistanceToGoalM is the straight-line (Euclidean) distance R->E.
	AbsDistanceToGoalM float64
	// DPerpM is the perpendicular distance from R to the S-E line.
	DPerpM float64

	// HeadingToNearDeg is the GNSS azimuth (0=N, CW) from R to the near
	// point; only meaningful when Case != NoIntersection.
	HeadingToNearDeg float64
	// NearE, NearN are the near point's local ENU offset from R, meters.
	NearE, NearN float64
}

// DefaultEpsilonM is the default tolerance used to classify the tangent
// case, matching the original near-waypoint prototype's default.
const DefaultEpsilonM = 2e-3

// ComputeNearPoint implements the near-point lookahead geometry from
// SPEC_FULL.md §4.7: project the robot position R onto the S->E line in a
// local ENU frame centered at R, then intersect the lookahead circle of
// radius lNearM with that line.
func ComputeNearPoint(sLat, sLon, eLat, eLon, rLat, rLon, lNearM, epsM float64) NearPoint {
	if epsM <= 0 {
		epsM = DefaultEpsilonM
	}

	s := geo.LLAToENU(sLat, sLon, 0, rLat, rLon, 0)
	e := geo.LLAToENU(eLat, eLon, 0, rLat, rLon, 0)

	absDistGoal := math.Hypot(e.E, e.N)

	vx, vy := e.E-s.E, e.N-s.N
	lSeg := math.Hypot(vx, vy)
	if lSeg < 1e-12 {
		return NearPoint{
			Case:               NoIntersection,
			DistanceToGoalM:    absDistGoal,
			AbsDistanceToGoalM: absDistGoal,
		}
	}
	vx /= lSeg
	vy /= lSeg

	// Foot of the perpendicular from R (the origin in this ENU frame) onto
	// the line S + t*v.
	tQ := -(s.E*vx + s.N*vy)
	qx := s.E + tQ*vx
	qy := s.N + tQ*vy
	dPerp := math.Hypot(qx, qy)

	distanceToGoal := lSeg - tQ

	base := NearPoint{
		DistanceToGoalM:    distanceToGoal,
		AbsDistanceToGoalM: absDistGoal,
		DPerpM:             dPerp,
	}

	switch {
	case dPerp > lNearM+epsM:
		base.Case = NoIntersection
		return base
	case math.Abs(dPerp-lNearM) <= epsM:
		base.Case = Tangent
		base.NearE, base.NearN = qx, qy
	default:
		base.Case = TwoIntersections
		delta := math.Sqrt(math.Max(0, lNearM*lNearM-dPerp*dPerp))
		n1x, n1y := qx+delta*vx, qy+delta*vy
		n2x, n2y := qx-delta*vx, qy-delta*vy
		t1 := (n1x-s.E)*vx + (n1y-s.N)*vy
		t2 := (n2x-s.E)*vx + (n2y-s.N)*vy
		if t1 >= t2 {
			base.NearE, base.NearN = n1x, n1y
		} else {
			base.NearE, base.NearN = n2x, n2y
		}
	}

	thetaRad := math.Atan2(base.NearN, base.NearE)
	base.HeadingToNearDeg = units.AzimuthFromENU(thetaRad)
	return base
}
