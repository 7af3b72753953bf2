package runlog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/unidroids/robotour/internal/fsutil"
	"github.com/unidroids/robotour/internal/security"
)

// Point is the single-line point.ini payload: "lat lon radius" (spec.md §6).
type Point struct {
	Lat    float64
	Lon    float64
	Radius float64
}

// ReadPointIni reads and parses a point.ini file from dir/name, rejecting
// any path that escapes dir.
func ReadPointIni(fs fsutil.FileSystem, dir, name string) (Point, error) {
	path := dir + "/" + name
	if err := security.ValidatePathWithinDirectory(path, dir); err != nil {
		return Point{}, fmt.Errorf("runlog: %w", err)
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		return Point{}, fmt.Errorf("runlog: read point.ini: %w", err)
	}

	fields := strings.Fields(strings.TrimSpace(string(data)))
	if len(fields) != 3 {
		return Point{}, fmt.Errorf("runlog: point.ini must have 3 fields, got %d", len(fields))
	}
	lat, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Point{}, fmt.Errorf("runlog: parse point.ini lat: %w", err)
	}
	lon, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Point{}, fmt.Errorf("runlog: parse point.ini lon: %w", err)
	}
	radius, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return Point{}, fmt.Errorf("runlog: parse point.ini radius: %w", err)
	}
	return Point{Lat: lat, Lon: lon, Radius: radius}, nil
}

// WritePointIni writes p as "lat lon radius" to dir/name, rejecting any
// path that escapes dir.
func WritePointIni(fs fsutil.FileSystem, dir, name string, p Point) error {
	path := dir + "/" + name
	if err := security.ValidatePathWithinDirectory(path, dir); err != nil {
		return fmt.Errorf("runlog: %w", err)
	}
	line := fmt.Sprintf("%f %f %f\n", p.Lat, p.Lon, p.Radius)
	if err := fs.WriteFile(path, []byte(line), 0o644); err != nil {
		return fmt.Errorf("runlog: write point.ini: %w", err)
	}
	return nil
}
