package handlers

import (
	"sync"

	"github.com/unidroids/robotour/internal/wire/ubx"
)

// EsfRawHandler decodes ESF-RAW frames and publishes the latest sample.
type EsfRawHandler struct {
	mu     sync.Mutex
	latest ubx.EsfRaw
	have   bool

	onSample func(ubx.EsfRaw)
	dropped  uint64
}

// NewEsfRawHandler constructs a handler. onSample, if non-nil, is invoked
// inline with every successfully decoded sample.
func NewEsfRawHandler(onSample func(ubx.EsfRaw)) *EsfRawHandler {
	return &EsfRawHandler{onSample: onSample}
}

// Handle decodes one ESF-RAW frame.
func (h *EsfRawHandler) Handle(f ubx.Frame) {
	m, ok := ubx.DecodeEsfRaw(f.Payload)
	if !ok {
		h.mu.Lock()
		h.dropped++
		h.mu.Unlock()
		return
	}
	m.RxMono = f.RxMono
	h.mu.Lock()
	h.latest = m
	h.have = true
	h.mu.Unlock()
	if h.onSample != nil {
		h.onSample(m)
	}
}

// Latest returns the most recently decoded sample, if any.
func (h *EsfRawHandler) Latest() (ubx.EsfRaw, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.have
}
