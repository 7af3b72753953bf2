package handlers

import (
	"sync"

	"github.com/unidroids/robotour/internal/records"
	"github.com/unidroids/robotour/internal/wire/motorframe"
)

// OdmHandler decodes "ODM" wheel-odometry/IMU-tick telemetry and forwards
// a compact binary record to the fusion service, grounded on the original
// odm_handler.py's store-then-forward pattern.
type OdmHandler struct {
	mu     sync.Mutex
	latest records.Odm
	have   bool

	fwd      Forwarder
	onSample func(records.Odm)
	dropped  uint64
}

// NewOdmHandler constructs a handler. fwd may be nil (no forwarding, e.g.
// in tests); onSample, if non-nil, is invoked inline with every sample.
func NewOdmHandler(fwd Forwarder, onSample func(records.Odm)) *OdmHandler {
	return &OdmHandler{fwd: fwd, onSample: onSample}
}

// Handle decodes one ODM sentence and forwards it on.
func (h *OdmHandler) Handle(f motorframe.Frame) {
	ts, gz, aa, ls, rs, ok := motorframe.DecodeOdm(f)
	if !ok {
		h.mu.Lock()
		h.dropped++
		h.mu.Unlock()
		return
	}
	rec := records.Odm{
		TsMonoMillis:   ts,
		GyroZAdc:       gz,
		AccumAngleAdc:  aa,
		LeftSpeedMMps:  ls,
		RightSpeedMMps: rs,
	}
	h.mu.Lock()
	h.latest = rec
	h.have = true
	h.mu.Unlock()

	if h.fwd != nil {
		h.fwd.Send(rec.ToBytes())
	}
	if h.onSample != nil {
		h.onSample(rec)
	}
}

// Latest returns the most recently decoded record, if any.
func (h *OdmHandler) Latest() (records.Odm, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.have
}
