package ubx

import (
	"encoding/binary"
	"testing"
)

func buildNavPvatPayload() []byte {
	p := make([]byte, 116)
	le := binary.LittleEndian
	le.PutUint32(p[0:4], 123456)
	le.PutUint16(p[4:6], 2026)
	p[6], p[7], p[8], p[9], p[10] = 7, 31, 12, 0, 0
	p[11] = 0x07 // validDate|validTime|fullyResolved
	le.PutUint32(p[12:16], 10)
	le.PutUint32(p[16:20], 0)
	p[20] = 3 // fixType 3D
	p[21] = 0x03 // fixOK | diffSoln
	p[22] = 2    // carrier fixed
	p[23] = 0x07 // roll/pitch/heading valid
	le.PutUint32(p[24:28], uint32(int32(140000000)))  // lon 14.0 deg
	le.PutUint32(p[28:32], uint32(int32(500000000)))  // lat 50.0 deg
	le.PutUint32(p[40:44], 1500) // hAcc 1.5 m in mm
	le.PutUint32(p[76:80], uint32(int32(9000000)))  // vehHeading 90 deg
	le.PutUint32(p[92:96], 200000) // headingAcc 2 deg
	return p
}

func TestDecodeNavPvat(t *testing.T) {
	payload := buildNavPvatPayload()
	m, ok := DecodeNavPvat(payload)
	if !ok {
		t.Fatal("decode failed")
	}
	if m.LonDeg != 14.0 || m.LatDeg != 50.0 {
		t.Errorf("lon/lat = %v/%v, want 14/50", m.LonDeg, m.LatDeg)
	}
	if m.HAccMM != 1500 {
		t.Errorf("hAcc = %d, want 1500", m.HAccMM)
	}
	if m.VehHeadingDeg != 90 {
		t.Errorf("heading = %v, want 90", m.VehHeadingDeg)
	}
	if m.HeadingAccDeg != 2 {
		t.Errorf("headingAcc = %v, want 2", m.HeadingAccDeg)
	}
	if !m.FixOK || !m.DiffSoln || m.Carrier != CarrierFixed {
		t.Errorf("flags decoded wrong: %+v", m)
	}
	if _, ok := DecodeNavPvat(make([]byte, 10)); ok {
		t.Error("expected decode failure on wrong length")
	}
}

func esfSlot(dataType byte, data int32, tag uint32) []byte {
	word := (uint32(dataType) << 24) | (uint32(data) & 0x00FFFFFF)
	out := make([]byte, 8)
	binary.LittleEndian.PutUint32(out[0:4], word)
	binary.LittleEndian.PutUint32(out[4:8], tag)
	return out
}

func TestDecodeEsfRaw(t *testing.T) {
	var payload []byte
	payload = append(payload, esfSlot(sensorGyroZ, -4096, 1000)...) // -1 deg/s
	payload = append(payload, esfSlot(sensorAccZ, 10240, 1000)...) // 10 m/s^2
	payload = append(payload, esfSlot(sensorGyroTemp, 2500, 1000)...) // 25 deg C

	m, ok := DecodeEsfRaw(payload)
	if !ok {
		t.Fatal("decode failed")
	}
	if m.GyroZ != -1.0 {
		t.Errorf("gyroZ = %v, want -1.0", m.GyroZ)
	}
	if m.AccZ != 10.0 {
		t.Errorf("accZ = %v, want 10.0", m.AccZ)
	}
	if m.TempGyro != 25.0 {
		t.Errorf("tempGyro = %v, want 25.0", m.TempGyro)
	}
	if !m.HaveGyroZ {
		t.Error("expected HaveGyroZ")
	}
}
