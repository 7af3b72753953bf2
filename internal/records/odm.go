package records

import (
	"encoding/binary"
	"fmt"
)

// OdmVersion is the only version this port understands.
const OdmVersion = 1

// OdmSize is the packed size of an Odm record: 1 + 4 + 2 + 4 + 2 + 2 bytes.
const OdmSize = 1 + 4 + 2 + 4 + 2 + 2

// Odm is one wheel-odometry/IMU-tick sample from the motor controller's
// "ODM" telemetry sentence: a monotonic time tag, raw gyro-Z and
// accumulated-angle ADC counts, and signed left/right wheel speeds in mm/s.
type Odm struct {
	TsMonoMillis  uint32
	GyroZAdc      int16
	AccumAngleAdc int32
	LeftSpeedMMps int16
	RightSpeedMMps int16
}

// ToBytes packs the record into OdmSize little-endian bytes.
func (o Odm) ToBytes() []byte {
	buf := make([]byte, OdmSize)
	buf[0] = OdmVersion
	binary.LittleEndian.PutUint32(buf[1:5], o.TsMonoMillis)
	binary.LittleEndian.PutUint16(buf[5:7], uint16(o.GyroZAdc))
	binary.LittleEndian.PutUint32(buf[7:11], uint32(o.AccumAngleAdc))
	binary.LittleEndian.PutUint16(buf[11:13], uint16(o.LeftSpeedMMps))
	binary.LittleEndian.PutUint16(buf[13:15], uint16(o.RightSpeedMMps))
	return buf
}

// OdmFromBytes unpacks and version-checks an Odm record.
func OdmFromBytes(data []byte) (Odm, error) {
	if len(data) != OdmSize {
		return Odm{}, fmt.Errorf("records: invalid Odm length: %d (expected %d)", len(data), OdmSize)
	}
	if data[0] != OdmVersion {
		return Odm{}, fmt.Errorf("records: unsupported Odm version: %d (expected %d)", data[0], OdmVersion)
	}
	return Odm{
		TsMonoMillis:   binary.LittleEndian.Uint32(data[1:5]),
		GyroZAdc:       int16(binary.LittleEndian.Uint16(data[5:7])),
		AccumAngleAdc:  int32(binary.LittleEndian.Uint32(data[7:11])),
		LeftSpeedMMps:  int16(binary.LittleEndian.Uint16(data[11:13])),
		RightSpeedMMps: int16(binary.LittleEndian.Uint16(data[13:15])),
	}, nil
}
