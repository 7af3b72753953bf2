// Package dispatch implements the single-threaded, code-routed message
// dispatcher described in SPEC_FULL.md §4.3: one goroutine pulls frames off
// a device's RX queue in strict FIFO order and invokes the handler
// registered for that frame's code, isolating handler failures from the
// dispatch loop itself.
package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/unidroids/robotour/internal/monitoring"
)

// Handler processes one decoded message. It must not block for long: the
// dispatcher is single-threaded per device, so a slow handler stalls every
// other code on that device.
type Handler[M any] func(M)

// Source is anything the dispatcher can poll for the next RX message,
// typically a *serialio.Device[M]'s GetMessage method.
type Source[M any] func(timeout time.Duration) (M, bool)

// Stats counts dispatch outcomes.
type Stats struct {
	Dispatched uint64
	Unhandled  uint64
	Recovered  uint64
}

// Dispatcher routes messages of type M to handlers keyed by C (e.g. a UBX
// Code{Class,ID} or a motor-ctrl/Unicore sentence code string).
type Dispatcher[M any, C comparable] struct {
	codeOf  func(M) C
	handlers map[C]Handler[M]
	deflt    Handler[M]

	dispatched, unhandled, recovered atomic.Uint64
}

// New constructs a Dispatcher. codeOf extracts the routing key from a
// message.
func New[M any, C comparable](codeOf func(M) C) *Dispatcher[M, C] {
	return &Dispatcher[M, C]{
		codeOf:   codeOf,
		handlers: make(map[C]Handler[M]),
	}
}

// Register installs the handler for a code, replacing any prior handler.
func (d *Dispatcher[M, C]) Register(code C, h Handler[M]) {
	d.handlers[code] = h
}

// SetDefault installs a handler invoked for any code with no registered
// handler. A nil default silently drops unhandled codes (still counted).
func (d *Dispatcher[M, C]) SetDefault(h Handler[M]) {
	d.deflt = h
}

// Stats returns a snapshot of the dispatch counters.
func (d *Dispatcher[M, C]) Stats() Stats {
	return Stats{
		Dispatched: d.dispatched.Load(),
		Unhandled:  d.unhandled.Load(),
		Recovered:  d.recovered.Load(),
	}
}

// Run pulls from source in a loop until ctx is cancelled, dispatching each
// message to its handler. Run is the dispatcher's one thread: it never
// spawns goroutines of its own, so ordering across codes on the same
// device is preserved exactly as received.
func (d *Dispatcher[M, C]) Run(ctx context.Context, source Source[M], pollInterval time.Duration) {
	if pollInterval <= 0 {
		pollInterval = 50 * time.Millisecond
	}
	for ctx.Err() == nil {
		msg, ok := source(pollInterval)
		if !ok {
			continue
		}
		d.dispatchOne(msg)
	}
}

func (d *Dispatcher[M, C]) dispatchOne(msg M) {
	h, ok := d.handlers[d.codeOf(msg)]
	if !ok {
		h = d.deflt
	}
	if h == nil {
		d.unhandled.Add(1)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.recovered.Add(1)
			monitoring.Logf("dispatch: handler panic recovered: %v", r)
		}
	}()
	h(msg)
	d.dispatched.Add(1)
}
