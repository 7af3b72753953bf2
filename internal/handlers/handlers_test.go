package handlers

import (
	"net"
	"testing"
	"time"

	"github.com/unidroids/robotour/internal/wire/motorframe"
	"github.com/unidroids/robotour/internal/wire/ubx"
	"github.com/unidroids/robotour/internal/wire/unicore"
)

func TestNavPvatHandlerPublishesLatestAndInvokesCallback(t *testing.T) {
	payload := make([]byte, 116)
	payload[20] = 3 // fixType
	var got ubx.NavPvat
	var calls int
	h := NewNavPvatHandler(func(m ubx.NavPvat) { got = m; calls++ })
	h.Handle(ubx.Frame{Payload: payload})

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if got.FixType != 3 {
		t.Errorf("FixType = %d, want 3", got.FixType)
	}
	latest, ok := h.Latest()
	if !ok || latest.FixType != 3 {
		t.Errorf("Latest() = %+v, %v", latest, ok)
	}
}

func TestNavPvatHandlerDropsBadLength(t *testing.T) {
	h := NewNavPvatHandler(nil)
	h.Handle(ubx.Frame{Payload: []byte{1, 2, 3}})
	if h.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", h.Dropped())
	}
	if _, ok := h.Latest(); ok {
		t.Error("expected no latest record")
	}
}

func TestOdmHandlerForwardsBytes(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		received <- buf[:n]
	}()

	fwd := NewLoopbackForwarder(ln.Addr().String(), time.Second)
	defer fwd.Close()
	h := NewOdmHandler(fwd, nil)

	frames := motorframe.NewParser().Feed(motorframe.Encode("ODM123456,-10,456789,120,-130"))
	h.Handle(frames[0])

	select {
	case data := <-received:
		if len(data) == 0 {
			t.Error("expected non-empty forwarded payload")
		}
	case <-time.After(time.Second):
		t.Fatal("forwarder never sent data")
	}

	latest, ok := h.Latest()
	if !ok || latest.LeftSpeedMMps != 120 {
		t.Errorf("latest = %+v, ok=%v", latest, ok)
	}
}

func TestUniHeadingHandlerPublishesLatest(t *testing.T) {
	h := NewUniHeadingHandler(nil, nil)
	frames := unicore.NewParser().Feed(unicore.Encode("UNIHEADINGA,91.25,1.20,0.50,0.80,1"))
	h.Handle(frames[0])
	latest, ok := h.Latest()
	if !ok || latest.HeadingDeg != 91.25 {
		t.Errorf("latest = %+v, ok=%v", latest, ok)
	}
}
