// Package handlers decodes dispatcher-routed frames into typed records,
// maintains an atomic "latest" slot per message kind, and forwards the
// records fusion needs onward. See SPEC_FULL.md §4.5.
package handlers

import (
	"sync"

	"github.com/unidroids/robotour/internal/wire/ubx"
)

// NavPvatHandler decodes NAV-PVAT frames and publishes the latest solution.
type NavPvatHandler struct {
	mu     sync.Mutex
	latest ubx.NavPvat
	have   bool

	onSolution func(ubx.NavPvat)
	dropped    uint64
}

// NewNavPvatHandler constructs a handler. onSolution, if non-nil, is
// invoked inline with every successfully decoded record (e.g. the fusion
// core's ingestion entry point).
func NewNavPvatHandler(onSolution func(ubx.NavPvat)) *NavPvatHandler {
	return &NavPvatHandler{onSolution: onSolution}
}

// Handle decodes one NAV-PVAT frame. Malformed payloads are counted and
// swallowed, per spec.md §4.5/§7's handler failure semantics.
func (h *NavPvatHandler) Handle(f ubx.Frame) {
	m, ok := ubx.DecodeNavPvat(f.Payload)
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
	if h.onSolution != nil {
		h.onSolution(m)
	}
}

// Latest returns the most recently decoded record, if any.
func (h *NavPvatHandler) Latest() (ubx.NavPvat, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.have
}

// Dropped returns the count of payloads that failed to decode.
func (h *NavPvatHandler) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}
