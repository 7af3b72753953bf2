package records

import (
	"encoding/binary"
	"fmt"
	"math"
)

// RouteVersion is the only waypoint route layout this port understands.
const RouteVersion = 1

// Corridor is one admissible heading band around a waypoint, used by
// the navigator to judge whether the near-point direction of travel
// stays inside a mapped path.
type Corridor struct {
	AzimuthDeg float32
	WidthDeg   float32
}

// Waypoint is one stop on a route: a WGS84 fix plus the geometry the
// navigator needs to compute a near-point and judge path containment.
type Waypoint struct {
	Lat           float64
	Lon           float64
	Curvature     float32
	PathWidthM    float32
	RelAzimuthDeg float32
	Corridors     []Corridor
}

// Route is an ordered list of waypoints, the unit downloaded once per
// mission and walked sequentially by the navigator's goal FSM.
type Route struct {
	Waypoints []Waypoint
}

// ToBytes packs a route as: version(u8), n(u16), then per waypoint
// lat/lon/curvature/path_width/rel_azimuth/m followed by m corridors.
func (r Route) ToBytes() ([]byte, error) {
	if len(r.Waypoints) > math.MaxUint16 {
		return nil, fmt.Errorf("records: route has %d waypoints, max %d", len(r.Waypoints), math.MaxUint16)
	}
	size := 1 + 2
	for _, wp := range r.Waypoints {
		if len(wp.Corridors) > math.MaxUint8 {
			return nil, fmt.Errorf("records: waypoint has %d corridors, max %d", len(wp.Corridors), math.MaxUint8)
		}
		size += 8 + 8 + 4 + 4 + 4 + 1 + len(wp.Corridors)*8
	}
	buf := make([]byte, size)
	i := 0
	buf[i] = RouteVersion
	i++
	binary.LittleEndian.PutUint16(buf[i:], uint16(len(r.Waypoints)))
	i += 2
	for _, wp := range r.Waypoints {
		binary.LittleEndian.PutUint64(buf[i:], math.Float64bits(wp.Lat))
		i += 8
		binary.LittleEndian.PutUint64(buf[i:], math.Float64bits(wp.Lon))
		i += 8
		i = putF32(buf, i, wp.Curvature)
		i = putF32(buf, i, wp.PathWidthM)
		i = putF32(buf, i, wp.RelAzimuthDeg)
		buf[i] = byte(len(wp.Corridors))
		i++
		for _, c := range wp.Corridors {
			i = putF32(buf, i, c.AzimuthDeg)
			i = putF32(buf, i, c.WidthDeg)
		}
	}
	return buf, nil
}

// RouteFromBytes unpacks and version-checks a waypoint route.
func RouteFromBytes(data []byte) (Route, error) {
	if len(data) < 3 {
		return Route{}, fmt.Errorf("records: route too short: %d bytes", len(data))
	}
	if data[0] != RouteVersion {
		return Route{}, fmt.Errorf("records: unsupported route version: %d (expected %d)", data[0], RouteVersion)
	}
	n := binary.LittleEndian.Uint16(data[1:3])
	i := 3
	wps := make([]Waypoint, 0, n)
	for k := uint16(0); k < n; k++ {
		if i+8+8+4+4+4+1 > len(data) {
			return Route{}, fmt.Errorf("records: route truncated at waypoint %d", k)
		}
		var wp Waypoint
		wp.Lat = math.Float64frombits(binary.LittleEndian.Uint64(data[i:]))
		i += 8
		wp.Lon = math.Float64frombits(binary.LittleEndian.Uint64(data[i:]))
		i += 8
		wp.Curvature, i = getF32(data, i)
		wp.PathWidthM, i = getF32(data, i)
		wp.RelAzimuthDeg, i = getF32(data, i)
		m := int(data[i])
		i++
		if i+m*8 > len(data) {
			return Route{}, fmt.Errorf("records: route truncated in corridors of waypoint %d", k)
		}
		wp.Corridors = make([]Corridor, m)
		for c := 0; c < m; c++ {
			wp.Corridors[c].AzimuthDeg, i = getF32(data, i)
			wp.Corridors[c].WidthDeg, i = getF32(data, i)
		}
		wps = append(wps, wp)
	}
	return Route{Waypoints: wps}, nil
}
