package motorframe

import "strconv"

// Ack/Nack sentence codes. Two conventions exist in the original source
// (bare "IAM50,10,20,30,40" vs comma-prefixed "IAM,50,10,20,30,40"); this
// port standardizes on the comma-prefixed form, per SPEC_FULL.md §5.
const (
	CodeAck  = "IAM"
	CodeNack = "INM"
)

// ParseAck extracts the echoed command key from an "IAM,cmd,p1,p2,p3,p4" frame.
func ParseAck(f Frame) (CmdKey, bool) {
	if f.Code != CodeAck || len(f.Fields) != 5 {
		return CmdKey{}, false
	}
	return parseKeyFields(f.Fields)
}

// ParseNack extracts the echoed command key and error fields from an
// "INM,cmd,p1,p2,p3,p4,input_err,cmd_err" frame.
func ParseNack(f Frame) (key CmdKey, inputErr, cmdErr int, ok bool) {
	if f.Code != CodeNack || len(f.Fields) != 7 {
		return CmdKey{}, 0, 0, false
	}
	key, ok = parseKeyFields(f.Fields[:5])
	if !ok {
		return CmdKey{}, 0, 0, false
	}
	ie, err1 := strconv.Atoi(f.Fields[5])
	ce, err2 := strconv.Atoi(f.Fields[6])
	if err1 != nil || err2 != nil {
		return CmdKey{}, 0, 0, false
	}
	return key, ie, ce, true
}

func parseKeyFields(fields []string) (CmdKey, bool) {
	var vals [5]int
	for i, s := range fields {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 || v > 250 {
			return CmdKey{}, false
		}
		vals[i] = v
	}
	return CmdKey{byte(vals[0]), byte(vals[1]), byte(vals[2]), byte(vals[3]), byte(vals[4])}, true
}

// IsRetryable reports whether a NACK's error fields indicate a transient
// quality problem worth retrying (input_err!=0, cmd_err==0), versus a
// parameter error that should not be retried.
func IsRetryable(inputErr, cmdErr int) bool {
	return inputErr != 0 && cmdErr == 0
}

// base251Modulus is 251^4, just under 2^32, the range timing values are
// reduced into before being packed as four base-251 digits in p1..p4.
const base251Modulus = 251 * 251 * 251 * 251

// EncodeTimingU32 packs a 32-bit value (reduced modulo 251^4) into four
// base-251 digits (low digit first, i.e. p1..p4), so a firmware echo of
// p1..p4 lets the sender reconstruct elapsed time without storing state.
func EncodeTimingU32(v uint32) (p1, p2, p3, p4 int) {
	x := uint64(v) % base251Modulus
	d0 := x % 251
	x /= 251
	d1 := x % 251
	x /= 251
	d2 := x % 251
	x /= 251
	d3 := x % 251
	return int(d0), int(d1), int(d2), int(d3)
}

// DecodeTimingU32 reconstructs the packed value from its four base-251 digits.
func DecodeTimingU32(p1, p2, p3, p4 int) uint32 {
	return uint32(p4)*251*251*251 + uint32(p3)*251*251 + uint32(p2)*251 + uint32(p1)
}
