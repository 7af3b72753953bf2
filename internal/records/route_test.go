package records

import "testing"

func TestRouteRoundTrip(t *testing.T) {
	r := Route{Waypoints: []Waypoint{
		{
			Lat: 49.1, Lon: 17.2, Curvature: 0.01, PathWidthM: 1.5, RelAzimuthDeg: 10,
			Corridors: []Corridor{{AzimuthDeg: 5, WidthDeg: 20}, {AzimuthDeg: 95, WidthDeg: 10}},
		},
		{
			Lat: 49.2, Lon: 17.3, Curvature: -0.02, PathWidthM: 2.0, RelAzimuthDeg: -15,
			Corridors: nil,
		},
	}}
	blob, err := r.ToBytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := RouteFromBytes(blob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Waypoints) != 2 {
		t.Fatalf("got %d waypoints, want 2", len(got.Waypoints))
	}
	if got.Waypoints[0].Lat != 49.1 || len(got.Waypoints[0].Corridors) != 2 {
		t.Errorf("waypoint 0 = %+v", got.Waypoints[0])
	}
	if got.Waypoints[1].Lon != 17.3 || len(got.Waypoints[1].Corridors) != 0 {
		t.Errorf("waypoint 1 = %+v", got.Waypoints[1])
	}
}

func TestRouteFromBytesRejectsTruncated(t *testing.T) {
	r := Route{Waypoints: []Waypoint{{Lat: 1, Lon: 2, Corridors: []Corridor{{AzimuthDeg: 1, WidthDeg: 2}}}}}
	blob, err := r.ToBytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := RouteFromBytes(blob[:len(blob)-4]); err == nil {
		t.Error("expected truncation error")
	}
}

func TestRouteFromBytesRejectsBadVersion(t *testing.T) {
	blob := []byte{RouteVersion + 1, 0, 0}
	if _, err := RouteFromBytes(blob); err == nil {
		t.Error("expected version error")
	}
}
