package serialio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unidroids/robotour/internal/monitoring"
)

// Config describes how a Device should own and reconnect to its serial port.
type Config struct {
	Device         string
	BaudRate       int
	ReconnectDelay time.Duration
	ReadChunkSize  int
	RXQueueSize    int
	TXQueueSize    int
}

// Normalize fills in the defaults spec.md §4.1/§5/§6 call for: ~4 KiB read
// chunks, 256-frame FIFOs in both directions, and a modest reconnect delay.
func (c Config) Normalize() Config {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 500 * time.Millisecond
	}
	if c.ReadChunkSize <= 0 {
		c.ReadChunkSize = 4096
	}
	if c.RXQueueSize <= 0 {
		c.RXQueueSize = 256
	}
	if c.TXQueueSize <= 0 {
		c.TXQueueSize = 256
	}
	return c
}

// Stats mirrors the counters spec.md §4.1 requires: rx/tx bytes and frames,
// overflow drops, and open/reconnect failures.
type Stats struct {
	RxBytes        uint64
	TxBytes        uint64
	RxFrames       uint64
	TxFrames       uint64
	RxOverflows    uint64
	TxOverflows    uint64
	OpenErrors     uint64
	IOErrors       uint64
	ReconnectCount uint64
}

type counters struct {
	rxBytes, txBytes                     atomic.Uint64
	rxFrames, txFrames                   atomic.Uint64
	rxOverflows, txOverflows             atomic.Uint64
	openErrors, ioErrors, reconnectCount atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		RxBytes:        c.rxBytes.Load(),
		TxBytes:        c.txBytes.Load(),
		RxFrames:       c.rxFrames.Load(),
		TxFrames:       c.txFrames.Load(),
		RxOverflows:    c.rxOverflows.Load(),
		TxOverflows:    c.txOverflows.Load(),
		OpenErrors:     c.openErrors.Load(),
		IOErrors:       c.ioErrors.Load(),
		ReconnectCount: c.reconnectCount.Load(),
	}
}

// Device owns one serial port and shuttles frames of type M between it and
// the rest of the system. M is produced by Feed, a caller-supplied
// incremental parser adapter (e.g. wrapping a ubx.Parser or a
// motorframe.Parser), so this package stays independent of any one wire
// format, mirroring the teacher's generic SerialMux[T SerialPorter].
type Device[M any] struct {
	cfg    Config
	open   Opener
	feed   func([]byte) []M
	name   string

	rx chan M
	tx chan []byte

	portMu sync.Mutex
	port   Port

	counters counters

	cancel context.CancelFunc
	done   chan struct{}
}

// NewDevice constructs a Device. name is used only for log lines.
func NewDevice[M any](name string, cfg Config, open Opener, feed func([]byte) []M) *Device[M] {
	cfg = cfg.Normalize()
	return &Device[M]{
		cfg:  cfg,
		open: open,
		feed: feed,
		name: name,
		rx:   make(chan M, cfg.RXQueueSize),
		tx:   make(chan []byte, cfg.TXQueueSize),
	}
}

// Start launches the RX and TX goroutines. Calling Start twice is a bug and
// panics: a Device owns exactly one pair of threads for its port's lifetime.
func (d *Device[M]) Start(ctx context.Context) {
	if d.cancel != nil {
		panic("serialio: Device.Start called twice")
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); d.runRX(ctx) }()
	go func() { defer wg.Done(); d.runTX(ctx) }()
	go func() { wg.Wait(); close(d.done) }()
}

// Stop requests shutdown and blocks until both goroutines exit or timeout
// elapses, matching spec.md §5's bounded, idempotent stop().
func (d *Device[M]) Stop(timeout time.Duration) {
	if d.cancel == nil {
		return
	}
	d.cancel()
	select {
	case <-d.done:
	case <-time.After(timeout):
		monitoring.Logf("serialio[%s]: stop timed out after %s", d.name, timeout)
	}
	d.closePort()
}

// SendFrame enqueues a frame for transmission. It never blocks: on a full
// TX FIFO it counts an overflow and returns false.
func (d *Device[M]) SendFrame(frame []byte) bool {
	select {
	case d.tx <- frame:
		return true
	default:
		d.counters.txOverflows.Add(1)
		return false
	}
}

// GetMessage waits up to timeout for the next validated frame from the RX
// FIFO. A zero timeout polls without blocking.
func (d *Device[M]) GetMessage(timeout time.Duration) (M, bool) {
	if timeout <= 0 {
		select {
		case m := <-d.rx:
			return m, true
		default:
			var zero M
			return zero, false
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case m := <-d.rx:
		return m, true
	case <-t.C:
		var zero M
		return zero, false
	}
}

// Stats returns a snapshot of the device's counters.
func (d *Device[M]) Stats() Stats { return d.counters.snapshot() }

func (d *Device[M]) runRX(ctx context.Context) {
	buf := make([]byte, d.cfg.ReadChunkSize)
	for ctx.Err() == nil {
		port, err := d.ensurePort(ctx)
		if err != nil {
			return
		}
		n, err := port.Read(buf)
		if err != nil {
			d.counters.ioErrors.Add(1)
			monitoring.Logf("serialio[%s]: rx error: %v", d.name, err)
			d.closePort()
			continue
		}
		if n == 0 {
			continue
		}
		d.counters.rxBytes.Add(uint64(n))
		for _, m := range d.feed(buf[:n]) {
			d.counters.rxFrames.Add(1)
			select {
			case d.rx <- m:
			default:
				d.counters.rxOverflows.Add(1)
			}
		}
	}
}

func (d *Device[M]) runTX(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-d.tx:
			port, err := d.ensurePort(ctx)
			if err != nil {
				return
			}
			n, err := port.Write(frame)
			if err != nil || n != len(frame) {
				d.counters.ioErrors.Add(1)
				monitoring.Logf("serialio[%s]: tx error: %v", d.name, err)
				d.closePort()
				continue
			}
			d.counters.txBytes.Add(uint64(n))
			d.counters.txFrames.Add(1)
		}
	}
}

// ensurePort returns the open port, opening (and retrying with backoff) if
// necessary. It returns an error only when ctx has been cancelled.
func (d *Device[M]) ensurePort(ctx context.Context) (Port, error) {
	d.portMu.Lock()
	defer d.portMu.Unlock()
	if d.port != nil {
		return d.port, nil
	}
	for {
		p, err := d.open(d.cfg.Device, d.cfg.BaudRate)
		if err == nil {
			d.port = p
			return p, nil
		}
		d.counters.openErrors.Add(1)
		monitoring.Logf("serialio[%s]: open %s failed: %v", d.name, d.cfg.Device, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d.cfg.ReconnectDelay):
		}
	}
}

func (d *Device[M]) closePort() {
	d.portMu.Lock()
	defer d.portMu.Unlock()
	if d.port == nil {
		return
	}
	if err := d.port.Close(); err != nil {
		monitoring.Logf("serialio[%s]: close error: %v", d.name, err)
	}
	d.port = nil
	d.counters.reconnectCount.Add(1)
}
