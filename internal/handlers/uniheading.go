package handlers

import (
	"fmt"
	"sync"

	"github.com/unidroids/robotour/internal/wire/unicore"
)

// UniHeadingHandler decodes UNIHEADINGA sentences and forwards a short
// line representation to the fusion service, grounded on the original
// uniheadinga_handler.py's "HEADING\n<fields>\n" forwarding convention.
type UniHeadingHandler struct {
	mu     sync.Mutex
	latest unicore.UniHeading
	have   bool

	fwd      Forwarder
	onSample func(unicore.UniHeading)
	dropped  uint64
}

// NewUniHeadingHandler constructs a handler.
func NewUniHeadingHandler(fwd Forwarder, onSample func(unicore.UniHeading)) *UniHeadingHandler {
	return &UniHeadingHandler{fwd: fwd, onSample: onSample}
}

// Handle decodes one UNIHEADINGA sentence and forwards it on.
func (h *UniHeadingHandler) Handle(f unicore.Frame) {
	m, ok := unicore.DecodeUniHeading(f)
	if !ok {
		h.mu.Lock()
		h.dropped++
		h.mu.Unlock()
		return
	}
	h.mu.Lock()
	h.latest = m
	h.have = true
	h.mu.Unlock()

	if h.fwd != nil {
		line := fmt.Sprintf("HEADING\n%.4f,%.4f,%.4f,%.4f,%d\n",
			m.HeadingDeg, m.HeadingAccDeg, m.PitchDeg, m.BaselineM, m.QualityFlag)
		h.fwd.Send([]byte(line))
	}
	if h.onSample != nil {
		h.onSample(m)
	}
}

// Latest returns the most recently decoded record, if any.
func (h *UniHeadingHandler) Latest() (unicore.UniHeading, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.have
}
