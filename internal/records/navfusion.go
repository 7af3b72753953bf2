// Package records implements the binary on-wire/on-disk record formats
// shared between the fusion and navigation services and their loopback
// streaming endpoints.
package records

import (
	"encoding/binary"
	"fmt"
	"math"
)

// NavFusionVersion is the only version this port understands. Mirrors
// the version byte in the original project's v1 record, bumped here
// because this port's record carries four extra fields (vehHeading,
// motHeading, lastGyroZ, gSpeed) that the v1 layout never had.
const NavFusionVersion = 2

// NavFusionSize is the packed size of a NavFusion record: 3 uint8 + 3
// float64 + 11 float32, little-endian, no padding.
const NavFusionSize = 1 + 3*8 + 11*4 + 2

// NavFusion is the fusion engine's navigation solution, composed on
// demand by GetSolution and streamed as a flat binary record over the
// GET_BINARY_STREAM loopback socket and into run-history logs.
type NavFusion struct {
	TsMono        float64
	Lat           float64
	Lon           float64
	HAcc          float32
	Heading       float32
	HeadingAcc    float32
	Speed         float32
	SAcc          float32
	GyroZ         float32
	GyroZAcc      float32
	GnssFixOK     bool
	DrUsed        bool
	VehHeading    float32
	MotHeading    float32
	LastGyroZ     float32
	GSpeed        float32
}

// ToBytes packs the record into NavFusionSize little-endian bytes.
func (n NavFusion) ToBytes() []byte {
	buf := make([]byte, NavFusionSize)
	i := 0
	buf[i] = NavFusionVersion
	i++
	binary.LittleEndian.PutUint64(buf[i:], math.Float64bits(n.TsMono))
	i += 8
	binary.LittleEndian.PutUint64(buf[i:], math.Float64bits(n.Lat))
	i += 8
	binary.LittleEndian.PutUint64(buf[i:], math.Float64bits(n.Lon))
	i += 8
	i = putF32(buf, i, n.HAcc)
	i = putF32(buf, i, n.Heading)
	i = putF32(buf, i, n.HeadingAcc)
	i = putF32(buf, i, n.Speed)
	i = putF32(buf, i, n.SAcc)
	i = putF32(buf, i, n.GyroZ)
	i = putF32(buf, i, n.GyroZAcc)
	buf[i] = boolByte(n.GnssFixOK)
	i++
	buf[i] = boolByte(n.DrUsed)
	i++
	i = putF32(buf, i, n.VehHeading)
	i = putF32(buf, i, n.MotHeading)
	i = putF32(buf, i, n.LastGyroZ)
	i = putF32(buf, i, n.GSpeed)
	return buf
}

// NavFusionFromBytes unpacks and version-checks a NavFusion record.
func NavFusionFromBytes(data []byte) (NavFusion, error) {
	if len(data) != NavFusionSize {
		return NavFusion{}, fmt.Errorf("records: invalid NavFusion length: %d (expected %d)", len(data), NavFusionSize)
	}
	if data[0] != NavFusionVersion {
		return NavFusion{}, fmt.Errorf("records: unsupported NavFusion version: %d (expected %d)", data[0], NavFusionVersion)
	}
	i := 1
	var n NavFusion
	n.TsMono = math.Float64frombits(binary.LittleEndian.Uint64(data[i:]))
	i += 8
	n.Lat = math.Float64frombits(binary.LittleEndian.Uint64(data[i:]))
	i += 8
	n.Lon = math.Float64frombits(binary.LittleEndian.Uint64(data[i:]))
	i += 8
	n.HAcc, i = getF32(data, i)
	n.Heading, i = getF32(data, i)
	n.HeadingAcc, i = getF32(data, i)
	n.Speed, i = getF32(data, i)
	n.SAcc, i = getF32(data, i)
	n.GyroZ, i = getF32(data, i)
	n.GyroZAcc, i = getF32(data, i)
	n.GnssFixOK = data[i] != 0
	i++
	n.DrUsed = data[i] != 0
	i++
	n.VehHeading, i = getF32(data, i)
	n.MotHeading, i = getF32(data, i)
	n.LastGyroZ, i = getF32(data, i)
	n.GSpeed, i = getF32(data, i)
	return n, nil
}

func putF32(buf []byte, i int, v float32) int {
	binary.LittleEndian.PutUint32(buf[i:], math.Float32bits(v))
	return i + 4
}

func getF32(buf []byte, i int) (float32, int) {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[i:])), i + 4
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
