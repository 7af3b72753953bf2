// Package geo implements the WGS-84 LLA/ECEF/ENU coordinate conversions the
// navigator needs to work in a local tangent plane centered on the robot's
// current position. Grounded on the original pilot geo_utils module; for
// distances of the scale this rover operates at (tens to hundreds of
// meters) the error introduced is millimeter-to-centimeter, per the
// original's own note.
package geo

import "math"

const (
	wgs84A = 6378137.0
	wgs84F = 1.0 / 298.257223563
)

var (
	wgs84B  = wgs84A * (1.0 - wgs84F)
	wgs84E2 = (wgs84A*wgs84A - wgs84B*wgs84B) / (wgs84A * wgs84A)
)

// ECEF is a point in Earth-Centered-Earth-Fixed Cartesian coordinates, meters.
type ECEF struct {
	X, Y, Z float64
}

// ENU is a point in a local East-North-Up tangent plane, meters.
type ENU struct {
	E, N, U float64
}

// LLAToECEF converts geodetic latitude/longitude (degrees) and height
// (meters) into ECEF coordinates.
func LLAToECEF(latDeg, lonDeg, hM float64) ECEF {
	lat := latDeg * math.Pi / 180
	lon := lonDeg * math.Pi / 180
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)
	n := wgs84A / math.Sqrt(1.0-wgs84E2*sinLat*sinLat)
	return ECEF{
		X: (n + hM) * cosLat * cosLon,
		Y: (n + hM) * cosLat * sinLon,
		Z: (n*(1.0-wgs84E2) + hM) * sinLat,
	}
}

// enuRotation returns the 3x3 rotation taking an ECEF delta vector (relative
// to the reference point) into ENU coordinates.
func enuRotation(lat0Deg, lon0Deg float64) [3][3]float64 {
	lat0 := lat0Deg * math.Pi / 180
	lon0 := lon0Deg * math.Pi / 180
	sL, cL := math.Sincos(lat0)
	sO, cO := math.Sincos(lon0)
	return [3][3]float64{
		{-sO, cO, 0.0},
		{-sL * cO, -sL * sO, cL},
		{cL * cO, cL * sO, sL},
	}
}

// ECEFToENU converts an ECEF point into the local ENU tangent plane centered
// at (lat0, lon0, h0).
func ECEFToENU(p ECEF, lat0Deg, lon0Deg, h0M float64) ENU {
	ref := LLAToECEF(lat0Deg, lon0Deg, h0M)
	dx, dy, dz := p.X-ref.X, p.Y-ref.Y, p.Z-ref.Z
	r := enuRotation(lat0Deg, lon0Deg)
	return ENU{
		E: r[0][0]*dx + r[0][1]*dy + r[0][2]*dz,
		N: r[1][0]*dx + r[1][1]*dy + r[1][2]*dz,
		U: r[2][0]*dx + r[2][1]*dy + r[2][2]*dz,
	}
}

// LLAToENU converts a lat/lon/height point directly into the ENU tangent
// plane centered at (lat0, lon0, h0); a convenience composing LLAToECEF and
// ECEFToENU for the common case of two nearby geodetic points.
func LLAToENU(latDeg, lonDeg, hM, lat0Deg, lon0Deg, h0M float64) ENU {
	return ECEFToENU(LLAToECEF(latDeg, lonDeg, hM), lat0Deg, lon0Deg, h0M)
}
