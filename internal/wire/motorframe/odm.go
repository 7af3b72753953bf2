package motorframe

import "strconv"

// CodeOdmPrefix is the alphabetic prefix of an "ODM" telemetry sentence.
// Unlike IAM/INM, the ODM sentence glues its first field directly onto the
// code with no separating comma (e.g. "ODM123456789,-10,...") -- the
// convention this port found in use for wheel-odometry telemetry, distinct
// from the comma-prefixed ACK/NACK convention chosen in SPEC_FULL.md §5.
const CodeOdmPrefix = "ODM"

// AlphaPrefix returns the leading run of uppercase letters in a sentence
// code, used to route ODM-style sentences whose first field is glued
// directly onto the code with no comma.
func AlphaPrefix(code string) string {
	i := 0
	for i < len(code) && code[i] >= 'A' && code[i] <= 'Z' {
		i++
	}
	return code[:i]
}

// DecodeOdm parses an "ODM<ts_mono_ms>,<gyroZ_adc>,<accumAngle_adc>,<leftSpeed>,<rightSpeed>"
// sentence into its five numeric fields.
func DecodeOdm(f Frame) (tsMonoMillis uint32, gyroZAdc int16, accumAngleAdc int32, leftSpeed, rightSpeed int16, ok bool) {
	if AlphaPrefix(f.Code) != CodeOdmPrefix || len(f.Fields) != 4 {
		return 0, 0, 0, 0, 0, false
	}
	tsStr := f.Code[len(CodeOdmPrefix):]
	ts, err := strconv.ParseUint(tsStr, 10, 32)
	if err != nil {
		return 0, 0, 0, 0, 0, false
	}
	gz, err := strconv.ParseInt(f.Fields[0], 10, 16)
	if err != nil {
		return 0, 0, 0, 0, 0, false
	}
	aa, err := strconv.ParseInt(f.Fields[1], 10, 32)
	if err != nil {
		return 0, 0, 0, 0, 0, false
	}
	ls, err := strconv.ParseInt(f.Fields[2], 10, 16)
	if err != nil {
		return 0, 0, 0, 0, 0, false
	}
	rs, err := strconv.ParseInt(f.Fields[3], 10, 16)
	if err != nil {
		return 0, 0, 0, 0, 0, false
	}
	return uint32(ts), int16(gz), int32(aa), int16(ls), int16(rs), true
}
