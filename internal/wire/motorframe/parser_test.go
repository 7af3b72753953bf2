package motorframe

import (
	"testing"

	"github.com/unidroids/robotour/internal/testutil"
)

func TestParseRoundTrip(t *testing.T) {
	wire := Encode("IAM,50,10,20,30,40")
	p := NewParser()
	frames := p.Feed(wire)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	f := frames[0]
	if f.Code != "IAM" {
		t.Errorf("code = %q, want IAM", f.Code)
	}
	want := []string{"50", "10", "20", "30", "40"}
	if len(f.Fields) != len(want) {
		t.Fatalf("fields = %v, want %v", f.Fields, want)
	}
	for i := range want {
		if f.Fields[i] != want[i] {
			t.Errorf("field %d = %q, want %q", i, f.Fields[i], want[i])
		}
	}
}

func TestParseBadChecksumEmitsNoFrame(t *testing.T) {
	wire := Encode("IAM,50,10,20,30,40")
	wire[len(wire)-4] = '0' // corrupt first checksum hex digit
	wire[len(wire)-3] = '0'
	p := NewParser()
	frames := p.Feed(wire)
	if len(frames) != 0 {
		t.Fatalf("got %d frames, want 0", len(frames))
	}
	if p.Stats.ChecksumErrors != 1 {
		t.Errorf("checksum errors = %d, want 1", p.Stats.ChecksumErrors)
	}
}

func TestParsePrematureStartDelimiterResyncs(t *testing.T) {
	good := Encode("IAM,1,2,3,4")
	stream := append([]byte("$JUNK"), good...)
	p := NewParser()
	frames := p.Feed(stream)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if p.Stats.JunkBytes == 0 {
		t.Error("expected a counted junk event for the abandoned sentence")
	}
}

func TestBuildCommandValidatesRange(t *testing.T) {
	if _, err := BuildCommand(50, 10, 20, 30, 251); err == nil {
		t.Fatal("expected error for p4=251")
	}
	frame, err := BuildCommand(50, 10, 20, 30, 40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [13]byte{0xFB, 50, 10, 20, 30, 40, 0xFC, 50, 10, 20, 30, 40, 0xFD}
	if frame != want {
		t.Errorf("frame = %v, want %v", frame, want)
	}
}

func TestAckNackParsing(t *testing.T) {
	ackFrames := NewParser().Feed(Encode("IAM,50,10,20,30,40"))
	key, ok := ParseAck(ackFrames[0])
	if !ok {
		t.Fatal("expected ACK to parse")
	}
	if key != (CmdKey{50, 10, 20, 30, 40}) {
		t.Errorf("key = %+v", key)
	}

	nackFrames := NewParser().Feed(Encode("INM,50,10,20,30,40,1,0"))
	nkey, inputErr, cmdErr, ok := ParseNack(nackFrames[0])
	if !ok || nkey != key {
		t.Fatalf("nack parse failed: key=%+v ok=%v", nkey, ok)
	}
	if inputErr != 1 || cmdErr != 0 {
		t.Errorf("errs = %d,%d want 1,0", inputErr, cmdErr)
	}
	if !IsRetryable(inputErr, cmdErr) {
		t.Error("expected quality NACK to be retryable")
	}
}

func TestEncodeSpeedRange(t *testing.T) {
	cases := []struct {
		v    int
		want int
	}{
		{-50, 0},
		{0, 50},
		{200, 250},
	}
	for _, c := range cases {
		got, err := EncodeSpeed(c.v)
		testutil.AssertNoError(t, err)
		if got != c.want {
			t.Errorf("EncodeSpeed(%d) = %d, want %d", c.v, got, c.want)
		}
	}
	_, err := EncodeSpeed(201)
	testutil.AssertError(t, err)
	_, err = EncodeSpeed(-51)
	testutil.AssertError(t, err)
}

func TestEncodePWMPiecewise(t *testing.T) {
	cases := []struct {
		d      int
		p1, p2 int
	}{
		{-125, 0, 0},
		{0, 0, 125},
		{100, 100, 125},
		{250, 250, 125},
		{375, 250, 250},
	}
	for _, c := range cases {
		p1, p2, err := EncodePWM(c.d)
		testutil.AssertNoError(t, err)
		if p1 != c.p1 || p2 != c.p2 {
			t.Errorf("EncodePWM(%d) = (%d,%d), want (%d,%d)", c.d, p1, p2, c.p1, c.p2)
		}
	}
	_, _, err := EncodePWM(376)
	testutil.AssertError(t, err)
	_, _, err = EncodePWM(-126)
	testutil.AssertError(t, err)
}

func TestTimingBase251RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 12345, 251 * 251 * 251 * 251 - 1} {
		p1, p2, p3, p4 := EncodeTimingU32(v)
		for _, d := range []int{p1, p2, p3, p4} {
			if d < 0 || d > 250 {
				t.Fatalf("digit %d out of range for value %d", d, v)
			}
		}
		got := DecodeTimingU32(p1, p2, p3, p4)
		if got != v {
			t.Errorf("round trip %d -> (%d,%d,%d,%d) -> %d", v, p1, p2, p3, p4, got)
		}
	}
}
