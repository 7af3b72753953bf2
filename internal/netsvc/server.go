// Package netsvc implements the loopback TCP line protocol shared by every
// service in this core (spec.md §6): one goroutine per connection, text
// commands terminated by '\n', ASCII responses terminated by '\n'. Common
// verbs (PING/START/STOP/EXIT/STATE) are handled here; each service
// registers its own verbs on top, grounded on original_source/server's
// per-service command loops.
package netsvc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/unidroids/robotour/internal/monitoring"
)

// VerbFunc handles one service-specific command line (already split into
// upper-cased fields) and writes its response, terminated by the caller.
type VerbFunc func(conn *Conn, fields []string) string

// Conn is the per-connection context passed to a VerbFunc: the raw net.Conn
// plus whatever the verb needs to switch into a raw binary stream (e.g.
// GET_BINARY_STREAM).
type Conn struct {
	net.Conn
	// Raw, once true, tells the connection loop to stop line-reading and
	// hand the socket entirely to the verb handler (which owns writes
	// until the client disconnects).
	Raw bool
}

// Server is a single-port, multi-connection loopback TCP server. Name
// appears in PING's "PONG <SERVICE>" response and in STATE's JSON.
type Server struct {
	Name string

	mu      sync.Mutex
	verbs   map[string]VerbFunc
	running atomic.Bool

	// StateJSON, if set, is called to build the STATE verb's response body.
	StateJSON func() string

	connWG sync.WaitGroup
}

// New constructs a Server. Use Register to add service-specific verbs
// before calling Serve.
func New(name string) *Server {
	return &Server{Name: name, verbs: make(map[string]VerbFunc)}
}

// Register installs a service-specific verb, replacing any built-in or
// prior handler of the same name. verb is matched case-insensitively.
func (s *Server) Register(verb string, fn VerbFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verbs[strings.ToUpper(verb)] = fn
}

// SetRunning updates the flag START/STOP/STATE report.
func (s *Server) SetRunning(v bool) { s.running.Store(v) }

// Running reports whether the service's main loop is currently active.
func (s *Server) Running() bool { return s.running.Load() }

// Serve accepts connections on ln until ctx is cancelled, handling each in
// its own goroutine. It blocks until ctx is cancelled and all in-flight
// connections have drained.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.connWG.Wait()
				return nil
			}
			return fmt.Errorf("netsvc: accept: %w", err)
		}
		s.connWG.Add(1)
		go func() {
			defer s.connWG.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, nc net.Conn) {
	defer nc.Close()
	c := &Conn{Conn: nc}
	r := bufio.NewReader(nc)

	for ctx.Err() == nil {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		fields[0] = strings.ToUpper(fields[0])

		resp, raw := s.dispatch(c, fields)
		if resp != "" {
			if _, err := nc.Write([]byte(resp + "\n")); err != nil {
				return
			}
		}
		if raw {
			// The verb has taken over the connection (e.g. switched it to
			// a raw binary stream); nothing more to do here.
			return
		}
		if fields[0] == "EXIT" {
			return
		}
	}
}

func (s *Server) dispatch(c *Conn, fields []string) (response string, raw bool) {
	switch fields[0] {
	case "PING":
		return "PONG " + s.Name, false
	case "START":
		if s.running.Load() {
			return "ALREADY_RUNNING", false
		}
		s.running.Store(true)
		return "OK", false
	case "STOP":
		if !s.running.Load() {
			return "NOT_RUNNING", false
		}
		s.running.Store(false)
		return "OK", false
	case "EXIT":
		return "BYE", false
	case "STATE":
		if s.StateJSON != nil {
			return s.StateJSON(), false
		}
		return fmt.Sprintf(`{"running":%t}`, s.running.Load()), false
	}

	s.mu.Lock()
	fn, ok := s.verbs[fields[0]]
	s.mu.Unlock()
	if !ok {
		return "ERR unknown command", false
	}
	defer func() {
		if r := recover(); r != nil {
			monitoring.Logf("netsvc: verb %s panic recovered: %v", fields[0], r)
		}
	}()
	return fn(c, fields), c.Raw
}
