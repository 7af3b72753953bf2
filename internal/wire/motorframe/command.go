package motorframe

import "fmt"

const (
	stx byte = 0xFB
	mtx byte = 0xFC
	etx byte = 0xFD
)

// CmdKey identifies a command by its full parameter tuple, used to match a
// send against its eventual ACK/NACK.
type CmdKey struct {
	Cmd, P1, P2, P3, P4 byte
}

func validateParam(name string, v int) error {
	if v < 0 || v > 250 {
		return fmt.Errorf("motorframe: %s=%d out of range 0..250", name, v)
	}
	return nil
}

// BuildCommand encodes a 13-byte binary command frame:
// STX cmd p1 p2 p3 p4 MTX cmd p1 p2 p3 p4 ETX, with the cmd/params repeated
// as a firmware-side integrity check. Every field must be in 0..250.
func BuildCommand(cmd, p1, p2, p3, p4 int) ([13]byte, error) {
	var out [13]byte
	for name, v := range map[string]int{"cmd": cmd, "p1": p1, "p2": p2, "p3": p3, "p4": p4} {
		if err := validateParam(name, v); err != nil {
			return out, err
		}
	}
	fields := [5]byte{byte(cmd), byte(p1), byte(p2), byte(p3), byte(p4)}
	out[0] = stx
	copy(out[1:6], fields[:])
	out[6] = mtx
	copy(out[7:12], fields[:])
	out[12] = etx
	return out, nil
}

// Key returns the CmdKey for a command, after validating the parameters.
func Key(cmd, p1, p2, p3, p4 int) (CmdKey, error) {
	if _, err := BuildCommand(cmd, p1, p2, p3, p4); err != nil {
		return CmdKey{}, err
	}
	return CmdKey{byte(cmd), byte(p1), byte(p2), byte(p3), byte(p4)}, nil
}

// Motor controller command codes, grounded on original_source/drive/service.py.
const (
	CmdHalt     = 0
	CmdStop     = 1
	CmdStart    = 2
	CmdPowerOff = 3
	CmdDrive    = 4
	CmdBreak    = 5
	CmdPWM      = 101
)

// EncodeSpeed maps a signed mm/s speed in [-50, 200] to a single 0..250
// parameter byte.
func EncodeSpeed(v int) (int, error) {
	p := v + 50
	if err := validateParam("speed", p); err != nil {
		return 0, err
	}
	return p, nil
}

// EncodePWM maps a signed duty value in [-125, 375] to a (p1, p2) pair,
// the piecewise encoding the firmware expects:
//
//	d <= 0:      p1=0,   p2=d+125
//	0 < d <=250: p1=d,   p2=125
//	d > 250:     p1=250, p2=d-125
func EncodePWM(d int) (p1, p2 int, err error) {
	if d < -125 || d > 375 {
		return 0, 0, fmt.Errorf("motorframe: pwm %d out of range [-125, 375]", d)
	}
	switch {
	case d <= 0:
		p1, p2 = 0, d+125
	case d <= 250:
		p1, p2 = d, 125
	default:
		p1, p2 = 250, d-125
	}
	return p1, p2, nil
}
