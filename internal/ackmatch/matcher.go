// Package ackmatch implements the stop-and-wait ACK/NACK matcher described
// in SPEC_FULL.md §4.4: a motor-controller command is sent, matched by
// content against an IAM/INM reply, and retried according to whether the
// failure looks transient (quality) or permanent (parameters), grounded on
// original_source/drive/ack_nack.py's AckNackManager.
package ackmatch

import (
	"sync"
	"time"

	"github.com/unidroids/robotour/internal/timeutil"
	"github.com/unidroids/robotour/internal/wire/motorframe"
)

// Result is the structured outcome of a send_and_wait call.
type Result struct {
	OK          bool
	IsTimeout   bool
	InputErr    int
	CmdErr      int
	RTT         time.Duration
	RetriesDone int
}

// Sender transmits a raw command frame and reports whether it was
// successfully enqueued (e.g. *serialio.Device[...].SendFrame).
type Sender func(frame []byte) bool

type pending struct {
	sentAt time.Time
	result *Result
	done   chan struct{}
}

// Matcher owns at most one outstanding command key at a time, matching
// IAM/INM replies fed in from the dispatcher against pending sends.
type Matcher struct {
	clock timeutil.Clock
	rate  *RateLimiter
	send  Sender

	mu      sync.Mutex
	pending map[motorframe.CmdKey]*pending
}

// New constructs a Matcher. minInterval is the rate limiter's minimum
// spacing between sends; send transmits a built command frame.
func New(clock timeutil.Clock, minInterval time.Duration, send Sender) *Matcher {
	return &Matcher{
		clock:   clock,
		rate:    NewRateLimiter(clock, minInterval),
		send:    send,
		pending: make(map[motorframe.CmdKey]*pending),
	}
}

// HandleAck feeds a parsed IAM frame to the matcher; call this from the
// dispatcher's "IAM" handler.
func (m *Matcher) HandleAck(f motorframe.Frame) {
	key, ok := motorframe.ParseAck(f)
	if !ok {
		return
	}
	m.complete(key, Result{OK: true})
}

// HandleNack feeds a parsed INM frame to the matcher; call this from the
// dispatcher's "INM" handler.
func (m *Matcher) HandleNack(f motorframe.Frame) {
	key, inputErr, cmdErr, ok := motorframe.ParseNack(f)
	if !ok {
		return
	}
	m.complete(key, Result{OK: false, InputErr: inputErr, CmdErr: cmdErr})
}

func (m *Matcher) complete(key motorframe.CmdKey, partial Result) {
	m.mu.Lock()
	p, ok := m.pending[key]
	if !ok {
		m.mu.Unlock()
		return // no one is waiting: late or duplicate reply, ignored
	}
	partial.RTT = m.clock.Since(p.sentAt)
	p.result = &partial
	m.mu.Unlock()
	close(p.done)
}

// SendAndWait sends a command built from (cmd,p1..p4), waits for a matching
// ACK/NACK, and retries per spec.md §4.4: a quality NACK (input_err!=0,
// cmd_err==0) or a timeout is retried up to retries times; a parameter NACK
// (cmd_err!=0) is never retried.
func (m *Matcher) SendAndWait(cmd, p1, p2, p3, p4 int, timeout time.Duration, retries int) Result {
	key, err := motorframe.Key(cmd, p1, p2, p3, p4)
	if err != nil {
		return Result{OK: false, CmdErr: 1}
	}
	frame, err := motorframe.BuildCommand(cmd, p1, p2, p3, p4)
	if err != nil {
		return Result{OK: false, CmdErr: 1}
	}

	retriesDone := 0
	for {
		m.rate.AwaitSlot()

		sentAt := m.clock.Now()
		done := make(chan struct{})
		m.mu.Lock()
		m.pending[key] = &pending{sentAt: sentAt, done: done}
		m.mu.Unlock()

		if !m.send(frame[:]) {
			m.mu.Lock()
			delete(m.pending, key)
			m.mu.Unlock()
			return Result{OK: false, RetriesDone: retriesDone}
		}

		result, gotReply := m.awaitReply(key, done, timeout)
		if !gotReply {
			if retriesDone >= retries {
				m.mu.Lock()
				delete(m.pending, key)
				m.mu.Unlock()
				return Result{OK: false, IsTimeout: true, RTT: m.clock.Since(sentAt), RetriesDone: retriesDone}
			}
			retriesDone++
			continue
		}

		result.RetriesDone = retriesDone
		if result.OK {
			return result
		}
		if motorframe.IsRetryable(result.InputErr, result.CmdErr) && retriesDone < retries {
			retriesDone++
			continue
		}
		return result
	}
}

func (m *Matcher) awaitReply(key motorframe.CmdKey, done chan struct{}, timeout time.Duration) (Result, bool) {
	timer := m.clock.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		m.mu.Lock()
		p := m.pending[key]
		delete(m.pending, key)
		m.mu.Unlock()
		if p == nil || p.result == nil {
			return Result{}, false
		}
		return *p.result, true
	case <-timer.C():
		return Result{}, false
	}
}
