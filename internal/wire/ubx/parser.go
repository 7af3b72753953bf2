// Package ubx implements the UBX binary framing used by the GNSS receiver:
// sync bytes 0xB5 0x62, class/id, little-endian length, payload, and a
// two-byte Fletcher-8 checksum over class||id||len||payload.
package ubx

import (
	"github.com/unidroids/robotour/internal/wire/checksum"
)

const (
	sync0    = 0xB5
	sync1    = 0x62
	maxPayload = 2048
)

type state int

const (
	stateSync0 state = iota
	stateSync1
	stateClass
	stateID
	stateLen1
	stateLen2
	statePayload
	stateCkA
	stateCkB
)

// Frame is a complete, checksum-validated UBX message.
type Frame struct {
	Class   byte
	ID      byte
	Payload []byte
	RxMono  int64 // caller-supplied monotonic receive time tag (ns), 0 if unset
}

// Code identifies a UBX message class+id, used by the dispatcher.
type Code struct {
	Class, ID byte
}

// CodeOf returns the dispatcher code for a frame.
func (f Frame) CodeOf() Code { return Code{f.Class, f.ID} }

// Stats counts parser outcomes for diagnostics, per spec.md's "junk/bad/checksum" taxonomy.
type Stats struct {
	FramesOK        uint64
	JunkBytes       uint64
	ChecksumErrors  uint64
	OverlongPayload uint64
}

// Parser is a byte-fed incremental state machine. It is not safe for
// concurrent use; each serial RX thread owns one Parser.
type Parser struct {
	st      state
	class   byte
	id      byte
	lenLo   byte
	length  int
	payload []byte
	ckA     byte
	ckB     byte

	Stats Stats
}

// NewParser returns a Parser ready to consume bytes.
func NewParser() *Parser {
	return &Parser{st: stateSync0}
}

// Feed consumes a chunk of raw bytes and returns every complete, validated
// frame found within it, in order. Invalid frames are counted and discarded;
// Feed never returns an error — see spec.md §4.2's failure semantics.
func (p *Parser) Feed(data []byte) []Frame {
	var out []Frame
	for _, b := range data {
		if f, ok := p.feedByte(b); ok {
			out = append(out, f)
		}
	}
	return out
}

func (p *Parser) reset() {
	p.st = stateSync0
	p.payload = p.payload[:0]
}

func (p *Parser) feedByte(b byte) (Frame, bool) {
	switch p.st {
	case stateSync0:
		if b == sync0 {
			p.st = stateSync1
		} else {
			p.Stats.JunkBytes++
		}
	case stateSync1:
		switch b {
		case sync1:
			p.st = stateClass
		case sync0:
			// still a candidate sync0, stay put without counting junk
		default:
			p.Stats.JunkBytes++
			p.st = stateSync0
		}
	case stateClass:
		p.class = b
		p.st = stateID
	case stateID:
		p.id = b
		p.st = stateLen1
	case stateLen1:
		p.lenLo = b
		p.st = stateLen2
	case stateLen2:
		p.length = int(p.lenLo) | int(b)<<8
		if p.length > maxPayload {
			p.Stats.OverlongPayload++
			p.reset()
			break
		}
		p.payload = make([]byte, 0, p.length)
		if p.length == 0 {
			p.st = stateCkA
		} else {
			p.st = statePayload
		}
	case statePayload:
		p.payload = append(p.payload, b)
		if len(p.payload) == p.length {
			p.st = stateCkA
		}
	case stateCkA:
		p.ckA = b
		p.st = stateCkB
	case stateCkB:
		p.ckB = b
		frame, ok := p.finish()
		p.reset()
		return frame, ok
	}
	return Frame{}, false
}

func (p *Parser) finish() (Frame, bool) {
	header := make([]byte, 0, 4+len(p.payload))
	header = append(header, p.class, p.id, p.lenLo, byte(p.length>>8))
	header = append(header, p.payload...)
	a, b := checksum.Fletcher8(header)
	if a != p.ckA || b != p.ckB {
		p.Stats.ChecksumErrors++
		return Frame{}, false
	}
	p.Stats.FramesOK++
	payload := make([]byte, len(p.payload))
	copy(payload, p.payload)
	return Frame{Class: p.class, ID: p.id, Payload: payload}, true
}

// Encode builds a complete wire frame (sync+header+payload+checksum) for TX.
func Encode(class, id byte, payload []byte) []byte {
	length := len(payload)
	header := []byte{class, id, byte(length), byte(length >> 8)}
	header = append(header, payload...)
	a, b := checksum.Fletcher8(header)
	out := make([]byte, 0, 8+length)
	out = append(out, sync0, sync1)
	out = append(out, header...)
	out = append(out, a, b)
	return out
}
