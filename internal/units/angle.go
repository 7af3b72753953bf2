// Package units provides shared angle and speed conversions used across the
// wire, fusion, and navigator packages so the same constants aren't
// rederived in each.
package units

import "math"

// NormalizeDeg wraps a degree value into (-180, 180].
func NormalizeDeg(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d <= -180 {
		d += 360
	} else if d > 180 {
		d -= 360
	}
	return d
}

// DiffDeg returns the shortest signed difference a-b in (-180, 180].
func DiffDeg(a, b float64) float64 {
	return NormalizeDeg(a - b)
}

// AzimuthFromENU converts an ENU heading angle theta (CCW from east, radians)
// to a GNSS azimuth in degrees (0=N, clockwise).
func AzimuthFromENU(thetaRad float64) float64 {
	deg := 90 - thetaRad*180/math.Pi
	az := math.Mod(deg, 360)
	if az < 0 {
		az += 360
	}
	return az
}

// Normalize360Deg wraps a degree value into [0, 360), the GNSS azimuth
// convention (0=N, clockwise) used for output headings.
func Normalize360Deg(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 { return deg * math.Pi / 180 }

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 { return rad * 180 / math.Pi }
