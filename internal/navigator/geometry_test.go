package navigator

import (
	"math"
	"testing"
)

const metersPerDegLat = 111_132.954

func TestComputeNearPointTwoIntersectionsHeadingEast(t *testing.T) {
	rLat, rLon := 50.000000, 14.000000
	np := ComputeNearPoint(rLat, rLon-0.0002, rLat, rLon+0.0002, rLat, rLon, 1.0, DefaultEpsilonM)
	if np.Case != TwoIntersections {
		t.Fatalf("case = %v, want TWO_INTERSECTIONS", np.Case)
	}
	if diff := math.Abs(np.HeadingToNearDeg - 90); diff > 1.0 {
		t.Errorf("heading = %v, want ~90 (east)", np.HeadingToNearDeg)
	}
}

func TestComputeNearPointTangent(t *testing.T) {
	rLat, rLon := 50.000000, 14.000000
	sLat := rLat + 1.0/metersPerDegLat
	np := ComputeNearPoint(sLat, rLon-0.0002, sLat, rLon+0.0002, rLat, rLon, 1.0, DefaultEpsilonM)
	if np.Case != Tangent {
		t.Fatalf("case = %v, want TANGENT (d_perp=%v)", np.Case, np.DPerpM)
	}
}

func TestComputeNearPointNoIntersection(t *testing.T) {
	rLat, rLon := 50.000000, 14.000000
	sLat := rLat + 1.2/metersPerDegLat
	np := ComputeNearPoint(sLat, rLon-0.0002, sLat, rLon+0.0002, rLat, rLon, 1.0, DefaultEpsilonM)
	if np.Case != NoIntersection {
		t.Fatalf("case = %v, want NO_INTERSECTION (d_perp=%v)", np.Case, np.DPerpM)
	}
}

func TestComputeNearPointNegativeDistancePastGoal(t *testing.T) {
	s := struct{ lat, lon float64 }{50.0, 14.0}
	e := struct{ lat, lon float64 }{50.0, 14.0 + 0.00002}
	rLat, rLon := 50.0+0.000004, 14.0+0.00003
	np := ComputeNearPoint(s.lat, s.lon, e.lat, e.lon, rLat, rLon, 1.0, DefaultEpsilonM)
	if np.DistanceToGoalM >= 0 {
		t.Errorf("distance to goal = %v, want negative (R past E)", np.DistanceToGoalM)
	}
}
