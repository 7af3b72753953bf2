// Package motorframe implements the motor controller's two wire formats:
// a fixed 13-byte binary command frame sent to the controller, and the
// NMEA-like ASCII telemetry ("$<payload>*<XX>\r\n", XOR-8 checksum) it
// replies with.
package motorframe

import "github.com/unidroids/robotour/internal/wire/checksum"

const (
	startDelim    = '$'
	csDelim       = '*'
	maxPayloadLen = 240
)

type state int

const (
	stateFindStart state = iota
	statePayload
	stateCk1
	stateCk2
	stateCR
	stateLF
)

// Frame is a complete, checksum-validated ASCII sentence.
type Frame struct {
	// Code is the first comma-delimited token of the payload, used by the
	// dispatcher to route the sentence (e.g. "IAM", "INM", "ODM").
	Code string
	// Fields holds every comma-delimited token after Code.
	Fields []string
	Raw    []byte
}

// Stats counts parser outcomes, per spec.md §4.2's error taxonomy.
type Stats struct {
	FramesOK        uint64
	JunkBytes       uint64
	ChecksumErrors  uint64
	BadCharErrors   uint64
	OverlongPayload uint64
}

func isPayloadByte(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z') || b == ',' || b == '-'
}

// Parser is a byte-fed incremental state machine for motor-ctrl ASCII
// sentences. Not safe for concurrent use.
type Parser struct {
	st      state
	payload []byte
	ck      [2]byte
	ckIdx   int
	Stats   Stats
}

// NewParser returns a Parser ready to consume bytes.
func NewParser() *Parser {
	return &Parser{st: stateFindStart}
}

// Feed consumes raw bytes and returns every complete, validated sentence.
func (p *Parser) Feed(data []byte) []Frame {
	var out []Frame
	for _, b := range data {
		if f, ok := p.feedByte(b); ok {
			out = append(out, f)
		}
	}
	return out
}

func (p *Parser) restart(countJunk bool) {
	if countJunk {
		p.Stats.JunkBytes++
	}
	p.st = stateFindStart
	p.payload = p.payload[:0]
}

func (p *Parser) discard(countBad bool) {
	if countBad {
		p.Stats.BadCharErrors++
	}
	// discard bytes until a terminator or a new start delimiter
	p.st = stateFindStart
	p.payload = p.payload[:0]
}

func (p *Parser) feedByte(b byte) (Frame, bool) {
	switch p.st {
	case stateFindStart:
		if b == startDelim {
			p.payload = p.payload[:0]
			p.st = statePayload
		}
	case statePayload:
		if b == startDelim {
			// premature start delimiter: restart, counting one junk event
			p.restart(true)
			p.st = statePayload
			return Frame{}, false
		}
		if b == csDelim {
			p.ckIdx = 0
			p.st = stateCk1
			return Frame{}, false
		}
		if len(p.payload) >= maxPayloadLen {
			p.discard(false)
			p.Stats.OverlongPayload++
			return Frame{}, false
		}
		if !isPayloadByte(b) {
			p.discard(true)
			return Frame{}, false
		}
		p.payload = append(p.payload, b)
	case stateCk1:
		if !isHex(b) {
			p.discard(true)
			return Frame{}, false
		}
		p.ck[0] = b
		p.st = stateCk2
	case stateCk2:
		if !isHex(b) {
			p.discard(true)
			return Frame{}, false
		}
		p.ck[1] = b
		p.st = stateCR
	case stateCR:
		if b != '\r' {
			p.discard(true)
			return Frame{}, false
		}
		p.st = stateLF
	case stateLF:
		if b != '\n' {
			p.discard(true)
			return Frame{}, false
		}
		frame, ok := p.finish()
		p.restart(false)
		return frame, ok
	}
	return Frame{}, false
}

func isHex(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'A' && b <= 'F') || (b >= 'a' && b <= 'f')
}

func hexVal(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	default:
		return b - 'a' + 10
	}
}

func (p *Parser) finish() (Frame, bool) {
	want := checksum.XOR8(p.payload)
	got := hexVal(p.ck[0])<<4 | hexVal(p.ck[1])
	if want != got {
		p.Stats.ChecksumErrors++
		return Frame{}, false
	}
	p.Stats.FramesOK++

	payload := make([]byte, len(p.payload))
	copy(payload, p.payload)

	code, fields := splitPayload(string(payload))
	raw := make([]byte, 0, len(payload)+6)
	raw = append(raw, startDelim)
	raw = append(raw, payload...)
	raw = append(raw, csDelim, p.ck[0], p.ck[1], '\r', '\n')
	return Frame{Code: code, Fields: fields, Raw: raw}, true
}

func splitPayload(s string) (code string, fields []string) {
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			if code == "" {
				code = s[start:i]
			} else {
				fields = append(fields, s[start:i])
			}
			start = i + 1
		}
	}
	if code == "" {
		code = s[start:]
		return code, nil
	}
	fields = append(fields, s[start:])
	return code, fields
}

// Encode builds a complete "$payload*CS\r\n" sentence for a given payload
// (without the leading '$' or checksum).
func Encode(payload string) []byte {
	cs := checksum.XOR8Hex([]byte(payload))
	out := make([]byte, 0, len(payload)+6)
	out = append(out, startDelim)
	out = append(out, payload...)
	out = append(out, csDelim)
	out = append(out, cs...)
	out = append(out, '\r', '\n')
	return out
}
