package dispatch

import (
	"context"
	"testing"
	"time"
)

func codeOf(s string) byte { return s[0] }

func TestDispatcherRoutesByCode(t *testing.T) {
	d := New[string, byte](codeOf)
	var gotA, gotB []string
	d.Register('A', func(m string) { gotA = append(gotA, m) })
	d.Register('B', func(m string) { gotB = append(gotB, m) })

	msgs := []string{"Afoo", "Bbar", "Abaz"}
	idx := 0
	source := func(timeout time.Duration) (string, bool) {
		if idx >= len(msgs) {
			time.Sleep(time.Millisecond)
			return "", false
		}
		m := msgs[idx]
		idx++
		return m, true
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { d.Run(ctx, source, time.Millisecond); close(done) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if len(gotA) != 2 || len(gotB) != 1 {
		t.Fatalf("gotA=%v gotB=%v", gotA, gotB)
	}
	if d.Stats().Dispatched != 3 {
		t.Errorf("dispatched = %d, want 3", d.Stats().Dispatched)
	}
}

func TestDispatcherDefaultHandlerAndUnhandledCount(t *testing.T) {
	d := New[string, byte](codeOf)
	var defaulted []string
	d.SetDefault(func(m string) { defaulted = append(defaulted, m) })
	d.dispatchOne("Zsomething")
	if len(defaulted) != 1 {
		t.Fatalf("defaulted = %v", defaulted)
	}

	d2 := New[string, byte](codeOf)
	d2.dispatchOne("Yunhandled")
	if d2.Stats().Unhandled != 1 {
		t.Errorf("unhandled = %d, want 1", d2.Stats().Unhandled)
	}
}

func TestDispatcherIsolatesHandlerPanic(t *testing.T) {
	d := New[string, byte](codeOf)
	d.Register('P', func(m string) { panic("boom") })
	d.dispatchOne("Pcrash")
	if d.Stats().Recovered != 1 {
		t.Errorf("recovered = %d, want 1", d.Stats().Recovered)
	}
	if d.Stats().Dispatched != 0 {
		t.Errorf("dispatched = %d, want 0 (panicked call should not count)", d.Stats().Dispatched)
	}
}
