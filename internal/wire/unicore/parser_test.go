package unicore

import "testing"

func TestParseRoundTrip(t *testing.T) {
	wire := Encode("UNIHEADINGA,91.25,1.20,0.50,0.80,1")
	p := NewParser()
	frames := p.Feed(wire)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	h, ok := DecodeUniHeading(frames[0])
	if !ok {
		t.Fatal("expected heading to decode")
	}
	if h.HeadingDeg != 91.25 || h.QualityFlag != 1 {
		t.Errorf("decoded = %+v", h)
	}
}

func TestParseBadChecksum(t *testing.T) {
	wire := Encode("UNIHEADINGA,1,2,3,4,5")
	wire[len(wire)-10] ^= 0xFF // corrupt a checksum hex digit
	p := NewParser()
	if frames := p.Feed(wire); len(frames) != 0 {
		t.Fatalf("got %d frames, want 0", len(frames))
	}
	if p.Stats.ChecksumErrors == 0 && p.Stats.BadCharErrors == 0 {
		t.Error("expected a counted error")
	}
}

func TestParseRejectsDisallowedChar(t *testing.T) {
	raw := []byte("#BAD\x01FIELD*00000000\r\n")
	p := NewParser()
	p.Feed(raw)
	if p.Stats.BadCharErrors == 0 {
		t.Error("expected bad-char error for a control byte in payload")
	}
}
