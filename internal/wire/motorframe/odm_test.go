package motorframe

import "testing"

func TestDecodeOdm(t *testing.T) {
	frames := NewParser().Feed(Encode("ODM123456,-10,456789,120,-130"))
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	ts, gz, aa, ls, rs, ok := DecodeOdm(frames[0])
	if !ok {
		t.Fatal("expected ODM sentence to decode")
	}
	if ts != 123456 || gz != -10 || aa != 456789 || ls != 120 || rs != -130 {
		t.Errorf("decoded = ts=%d gz=%d aa=%d ls=%d rs=%d", ts, gz, aa, ls, rs)
	}
}

func TestAlphaPrefix(t *testing.T) {
	cases := map[string]string{"IAM": "IAM", "ODM123456": "ODM", "INM": "INM", "": ""}
	for in, want := range cases {
		if got := AlphaPrefix(in); got != want {
			t.Errorf("AlphaPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}
