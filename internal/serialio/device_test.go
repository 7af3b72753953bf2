package serialio

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// pipePort is an in-memory Port over an io.Pipe, for tests that don't touch
// real hardware.
type pipePort struct {
	r      *io.PipeReader
	w      *io.PipeWriter
	mu     sync.Mutex
	closed bool
}

func newPipePort() (*pipePort, *io.PipeWriter) {
	r, w := io.Pipe()
	return &pipePort{r: r, w: w}, w
}

func (p *pipePort) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipePort) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *pipePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.r.CloseWithError(io.EOF)
	return p.w.Close()
}

func lineFeed(data []byte) []string {
	return []string{string(data)}
}

func TestDeviceSendAndReceive(t *testing.T) {
	port, remoteWrite := newPipePort()
	opened := make(chan struct{}, 1)
	opener := func(string, int) (Port, error) {
		select {
		case opened <- struct{}{}:
		default:
		}
		return port, nil
	}

	d := NewDevice[string]("test", Config{Device: "mock0", BaudRate: 9600}, opener, lineFeed)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop(time.Second)

	go remoteWrite.Write([]byte("hello"))

	msg, ok := d.GetMessage(time.Second)
	if !ok {
		t.Fatal("expected a message")
	}
	if msg != "hello" {
		t.Errorf("msg = %q, want %q", msg, "hello")
	}

	if !d.SendFrame([]byte("ping")) {
		t.Fatal("expected SendFrame to succeed")
	}

	stats := d.Stats()
	if stats.RxFrames == 0 {
		t.Error("expected at least one rx frame counted")
	}
}

func TestDeviceGetMessageTimesOutWhenEmpty(t *testing.T) {
	port, _ := newPipePort()
	opener := func(string, int) (Port, error) { return port, nil }
	d := NewDevice[string]("test", Config{Device: "mock0", BaudRate: 9600}, opener, lineFeed)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop(time.Second)

	if _, ok := d.GetMessage(20 * time.Millisecond); ok {
		t.Error("expected no message before timeout")
	}
}

func TestDeviceSendFrameOverflowCounted(t *testing.T) {
	opener := func(string, int) (Port, error) { return nil, errors.New("never opens") }
	d := NewDevice[string]("test", Config{Device: "mock0", BaudRate: 9600, TXQueueSize: 1, ReconnectDelay: time.Millisecond}, opener, lineFeed)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop(50 * time.Millisecond)

	if !d.SendFrame([]byte("a")) {
		t.Fatal("expected first enqueue to succeed")
	}
	// give the TX goroutine a moment to pull the first frame out and block on ensurePort
	time.Sleep(20 * time.Millisecond)
	d.SendFrame([]byte("b"))
	// with only 1 slot and the consumer stuck retrying opens, "c" finds the
	// FIFO full
	if d.SendFrame([]byte("c")) {
		t.Error("expected SendFrame to fail on a full TX FIFO")
	}
	time.Sleep(20 * time.Millisecond)
	if d.Stats().TxOverflows == 0 {
		t.Error("expected TX overflows to be counted")
	}
	if d.Stats().OpenErrors == 0 {
		t.Error("expected open errors to be counted")
	}
}
