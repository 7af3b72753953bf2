// Package checksum implements the three checksum algorithms used by the
// rover's serial wire protocols: UBX Fletcher-8, motor-ctrl XOR-8, and
// Unicore's reflected CRC-32.
package checksum

import "fmt"

// Fletcher8 computes the two-byte Fletcher checksum UBX frames use over
// class||id||len||payload.
func Fletcher8(data []byte) (a, b byte) {
	var sa, sb uint32
	for _, x := range data {
		sa = (sa + uint32(x)) & 0xFF
		sb = (sb + sa) & 0xFF
	}
	return byte(sa), byte(sb)
}

// XOR8 computes the motor-ctrl ASCII checksum: XOR of every payload byte
// between '$' and '*'.
func XOR8(payload []byte) byte {
	var cs byte
	for _, b := range payload {
		cs ^= b
	}
	return cs
}

// XOR8Hex renders an XOR8 checksum as two uppercase hex digits.
func XOR8Hex(payload []byte) string {
	return fmt.Sprintf("%02X", XOR8(payload))
}

var crc32Table [256]uint32

func init() {
	const poly = 0xEDB88320
	for i := range crc32Table {
		c := uint32(i)
		for range 8 {
			if c&1 != 0 {
				c = poly ^ (c >> 1)
			} else {
				c >>= 1
			}
		}
		crc32Table[i] = c
	}
}

// CRC32 computes the reflected CRC-32 (poly 0xEDB88320, init 0, xorout 0,
// refin/refout true) Unicore frames use over the payload between '#' and '*'.
func CRC32(payload []byte) uint32 {
	crc := uint32(0)
	for _, b := range payload {
		crc = crc32Table[byte(crc)^b] ^ (crc >> 8)
	}
	return crc
}

// CRC32Hex renders a CRC32 checksum as eight lowercase hex digits.
func CRC32Hex(payload []byte) string {
	return fmt.Sprintf("%08x", CRC32(payload))
}
