// Command piloted is the navigator service: it consumes fusiond's fused
// NavFusion solution, steps the waypoint FSM, plans a pure-pursuit
// velocity, mixes it to PWM, and drives drived. See spec.md §6's Pilot
// bullet and SPEC_FULL.md §4.7.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/unidroids/robotour/internal/config"
	"github.com/unidroids/robotour/internal/monitoring"
	"github.com/unidroids/robotour/internal/navigator"
	"github.com/unidroids/robotour/internal/netsvc"
	"github.com/unidroids/robotour/internal/records"
	"github.com/unidroids/robotour/internal/runlog"
	"github.com/unidroids/robotour/internal/units"
	"github.com/unidroids/robotour/internal/version"
)

var (
	listen      = flag.String("listen", "127.0.0.1:9105", "loopback TCP address to serve")
	fusionAddr  = flag.String("fusion-addr", "127.0.0.1:9104", "fusiond's control-port address")
	driveAddr   = flag.String("drive-addr", "127.0.0.1:9102", "drived's control-port address")
	controlHz   = flag.Float64("control-hz", 10.0, "navigator loop frequency")
	runDir      = flag.String("run-dir", "./runlogs", "directory for this run's CSV log and sqlite run-history rows")
	versionFlag = flag.Bool("version", false, "print version and exit")
)

// mission holds one leg's parameters: travel from (sLat,sLon) toward
// (eLat,eLon), stopping within radiusM of the goal.
type mission struct {
	active                          bool
	sLat, sLon, eLat, eLon, radiusM float64
}

// missionState tracks either a single NAVIGATE leg or a LOAD_ROUTE
// sequence of waypoints walked one leg at a time, guarded by its own mutex.
type missionState struct {
	mu      sync.Mutex
	m       mission
	route   []records.Waypoint
	leg     int
	inRoute bool
}

func (s *missionState) get() (mission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m, s.m.active
}

// setSingle installs a one-shot NAVIGATE leg, clearing any loaded route.
func (s *missionState) setSingle(sLat, sLon, eLat, eLon, radiusM float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = mission{active: true, sLat: sLat, sLon: sLon, eLat: eLat, eLon: eLon, radiusM: radiusM}
	s.route = nil
	s.inRoute = false
}

// setRoute installs a waypoint sequence, starting the first leg from the
// rover's current fused position.
func (s *missionState) setRoute(wps []records.Waypoint, startLat, startLon, radiusM float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.route = wps
	s.leg = 0
	s.inRoute = true
	s.m = mission{active: true, sLat: startLat, sLon: startLon, eLat: wps[0].Lat, eLon: wps[0].Lon, radiusM: radiusM}
}

// advance moves a route-driven mission to its next leg when the current one
// reaches its goal. A single NAVIGATE leg just goes inactive.
func (s *missionState) advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inRoute {
		s.m.active = false
		return
	}
	prevGoalLat, prevGoalLon := s.m.eLat, s.m.eLon
	s.leg++
	if s.leg >= len(s.route) {
		s.m.active = false
		s.inRoute = false
		return
	}
	next := s.route[s.leg]
	s.m = mission{active: true, sLat: prevGoalLat, sLon: prevGoalLon, eLat: next.Lat, eLon: next.Lon, radiusM: s.m.radiusM}
}

func main() {
	flag.Parse()
	if *versionFlag {
		fmt.Printf("piloted v%s (git SHA: %s)\n", version.Version, version.GitSHA)
		os.Exit(0)
	}
	cfg := config.MustLoadDefaultConfig()

	fsm := navigator.NewFSM(navigator.DefaultFSMConfig())
	plannerCfg := navigator.PlannerConfig{
		TrackWidthM:      cfg.GetTrackWidthM(),
		MaxSpeedMps:      cfg.GetMaxSpeedMps(),
		LateralAccelMax:  cfg.GetLateralAccelMax(),
		MinTurnRadiusM:   cfg.GetMinTurnRadiusM(),
		MinWheelSpeedMps: cfg.GetMinWheelSpeedMps(),
	}
	mixerCfg := navigator.MixerConfig{
		VMaxMps:     cfg.GetMaxSpeedMps(),
		OmegaMaxDps: 90,
		MaxPWM:      250,
		DeadbandPWM: 10,
	}
	lookaheadM := cfg.GetLookaheadM()

	runID := runlog.NewRunID()
	if err := os.MkdirAll(*runDir, 0o755); err != nil {
		log.Fatalf("piloted: create run dir %s: %v", *runDir, err)
	}
	db, err := runlog.Open(filepath.Join(*runDir, "piloted.db"))
	if err != nil {
		log.Fatalf("piloted: open run db: %v", err)
	}
	defer db.Close()
	csvw, err := runlog.OpenCSVWriter(
		filepath.Join(*runDir, fmt.Sprintf("piloted_%s.csv", runID)),
		[]string{"ts", "from_state", "to_state", "note"})
	if err != nil {
		log.Fatalf("piloted: open run csv: %v", err)
	}
	defer csvw.Close()
	fsmRec := &fsmRecorder{db: db, csvw: csvw, runID: runID}

	var solMu sync.Mutex
	var latestSolution records.NavFusion
	var haveSolution bool

	state := &missionState{}

	driveConn := newDriveClient(*driveAddr)
	defer driveConn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go streamFusionSolution(ctx, *fusionAddr, func(rec records.NavFusion) {
		solMu.Lock()
		latestSolution = rec
		haveSolution = true
		solMu.Unlock()
	})

	go runNavigationLoop(ctx, time.Duration(float64(time.Second)/ *controlHz), fsm, plannerCfg, mixerCfg, lookaheadM, driveConn, fsmRec,
		func() (records.NavFusion, bool) {
			solMu.Lock()
			defer solMu.Unlock()
			return latestSolution, haveSolution
		},
		state.get,
		state.advance,
	)

	srv := netsvc.New("PILOT")
	srv.StateJSON = func() string {
		return fmt.Sprintf(`{"running":%t,"state":%q}`, srv.Running(), fsm.State().String())
	}

	srv.Register("NAVIGATE", func(c *netsvc.Conn, fields []string) string {
		if len(fields) != 6 {
			return "ERR usage: NAVIGATE <start_lat> <start_lon> <goal_lat> <goal_lon> <radius>"
		}
		vals := make([]float64, 5)
		for i, s := range fields[1:] {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return "ERR bad args"
			}
			vals[i] = v
		}
		state.setSingle(vals[0], vals[1], vals[2], vals[3], vals[4])
		fsm.Reset(navigator.WaitGNSS)
		return "OK"
	})

	srv.Register("STATUS", func(c *netsvc.Conn, fields []string) string {
		return statusFor(fsm.State())
	})

	srv.Register("LOAD_ROUTE", func(c *netsvc.Conn, fields []string) string {
		if len(fields) != 2 {
			return "ERR usage: LOAD_ROUTE <hex>"
		}
		blob, err := hex.DecodeString(fields[1])
		if err != nil {
			return "ERR bad hex"
		}
		route, err := records.RouteFromBytes(blob)
		if err != nil {
			return "ERR " + err.Error()
		}
		if len(route.Waypoints) == 0 {
			return "ERR empty route"
		}
		solMu.Lock()
		sol, ok := latestSolution, haveSolution
		solMu.Unlock()
		if !ok {
			return "ERR no fix yet"
		}
		state.setRoute(route.Waypoints, sol.Lat, sol.Lon, cfg.GetGoalRadiusM())
		fsm.Reset(navigator.WaitGNSS)
		return fmt.Sprintf("OK %d", len(route.Waypoints))
	})

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Fatalf("piloted: listen %s: %v", *listen, err)
	}
	srv.SetRunning(true)

	monitoring.Logf("piloted v%s: listening on %s, run %s logging to %s", version.Version, *listen, runID, *runDir)
	if err := srv.Serve(ctx, ln); err != nil {
		log.Fatalf("piloted: serve: %v", err)
	}
}

// statusFor maps the FSM's internal state onto the coarser vocabulary
// spec.md §6 names for the STATUS verb.
func statusFor(s navigator.State) string {
	switch s {
	case navigator.WaitGNSS, navigator.AcquireHeadingRotate, navigator.AcquireHeadingSeek, navigator.AcquireHeadingReady:
		return "IDLE"
	case navigator.Navigate, navigator.SafeSpin:
		return "RUNNING"
	case navigator.GoalReached:
		return "GOAL_REACHED"
	case navigator.GoalNotReached:
		return "GOAL_NOT_REACHED"
	default:
		return "ERROR"
	}
}

// streamFusionSolution dials fusiond's GET_BINARY_STREAM verb and invokes
// onSolution for every decoded NavFusion record, reconnecting with a fixed
// backoff if the connection drops.
func streamFusionSolution(ctx context.Context, addr string, onSolution func(records.NavFusion)) {
	for ctx.Err() == nil {
		conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
		if err != nil {
			monitoring.Logf("piloted: dial fusion stream: %v", err)
			sleepOrDone(ctx, 500*time.Millisecond)
			continue
		}
		if _, err := conn.Write([]byte("GET_BINARY_STREAM\n")); err != nil {
			conn.Close()
			sleepOrDone(ctx, 500*time.Millisecond)
			continue
		}
		readSolutions(ctx, conn, onSolution)
		conn.Close()
		sleepOrDone(ctx, 500*time.Millisecond)
	}
}

func readSolutions(ctx context.Context, conn net.Conn, onSolution func(records.NavFusion)) {
	buf := make([]byte, records.NavFusionSize)
	for ctx.Err() == nil {
		n := 0
		for n < len(buf) {
			k, err := conn.Read(buf[n:])
			n += k
			if err != nil {
				return
			}
		}
		rec, err := records.NavFusionFromBytes(buf)
		if err != nil {
			continue
		}
		onSolution(rec)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// driveClient is a lazily-reconnecting line-protocol client to drived's
// control port, used to push PWM commands from the navigator loop.
type driveClient struct {
	addr string
	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
}

func newDriveClient(addr string) *driveClient {
	return &driveClient{addr: addr}
}

func (d *driveClient) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

// SendPWM sends "PWM <left> <right>" and returns drived's one-line reply.
func (d *driveClient) SendPWM(left, right int) (string, error) {
	return d.sendLine(fmt.Sprintf("PWM %d %d", left, right))
}

// SendHalt sends "HALT".
func (d *driveClient) SendHalt() (string, error) {
	return d.sendLine("HALT")
}

func (d *driveClient) sendLine(line string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		conn, err := net.DialTimeout("tcp", d.addr, 2*time.Second)
		if err != nil {
			return "", err
		}
		d.conn = conn
		d.r = bufio.NewReader(conn)
	}
	if _, err := d.conn.Write([]byte(line + "\n")); err != nil {
		d.conn.Close()
		d.conn = nil
		return "", err
	}
	resp, err := d.r.ReadString('\n')
	if err != nil {
		d.conn.Close()
		d.conn = nil
		return "", err
	}
	return resp, nil
}

// fsmRecorder persists every navigator FSM state change to the run's
// sqlite store and CSV log, per SPEC_FULL.md §4.
type fsmRecorder struct {
	db    *runlog.DB
	csvw  *runlog.CSVWriter
	runID string
}

func (r *fsmRecorder) record(from, to navigator.State, note string) {
	now := time.Now()
	if err := r.db.InsertFSMTransition(runlog.FSMTransition{
		RunID:     r.runID,
		TsMono:    float64(now.UnixNano()) / 1e9,
		FromState: from.String(),
		ToState:   to.String(),
		Note:      note,
	}); err != nil {
		monitoring.Logf("piloted: %v", err)
	}
	if err := r.csvw.WriteRow(runlog.FormatTimestamp(now), from.String(), to.String(), note); err != nil {
		monitoring.Logf("piloted: %v", err)
		return
	}
	if err := r.csvw.Flush(); err != nil {
		monitoring.Logf("piloted: %v", err)
	}
}

// runNavigationLoop ticks the FSM/planner/mixer pipeline at the configured
// rate, reading the latest fusion solution and active mission, and pushing
// PWM commands to drived.
func runNavigationLoop(
	ctx context.Context,
	period time.Duration,
	fsm *navigator.FSM,
	plannerCfg navigator.PlannerConfig,
	mixerCfg navigator.MixerConfig,
	lookaheadM float64,
	drive *driveClient,
	fsmRec *fsmRecorder,
	getSolution func() (records.NavFusion, bool),
	getMission func() (mission, bool),
	advanceMission func(),
) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	dtS := period.Seconds()
	prevState := fsm.State()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m, active := getMission()
		if !active {
			continue
		}
		sol, ok := getSolution()
		if !ok {
			continue
		}

		near := navigator.ComputeNearPoint(m.sLat, m.sLon, m.eLat, m.eLon,
			sol.Lat, sol.Lon, lookaheadM, navigator.DefaultEpsilonM)
		headingErr := units.DiffDeg(near.HeadingToNearDeg, float64(sol.Heading))

		q := navigator.Quality{HasFix: sol.GnssFixOK, HAccM: float64(sol.HAcc), HeadingAccDeg: float64(sol.HeadingAcc)}
		action := fsm.Step(dtS, q, near.AbsDistanceToGoalM, m.radiusM, near.Case, headingErr)
		if action.State != prevState {
			fsmRec.record(prevState, action.State, action.Note)
			prevState = action.State
		}

		if action.State == navigator.GoalReached {
			drive.SendHalt()
			advanceMission()
			if _, stillActive := getMission(); stillActive {
				fsm.Reset(navigator.Navigate)
				if fsm.State() != prevState {
					fsmRec.record(prevState, fsm.State(), "advanced to next route leg")
					prevState = fsm.State()
				}
			}
			continue
		}

		if !action.AllowForward && !action.AllowSpin {
			drive.SendHalt()
			continue
		}

		v := 0.0
		omega := 0.0
		if action.AllowForward {
			plan := navigator.PlanPurePursuit(headingErr, lookaheadM, plannerCfg)
			v = plan.SpeedMps
			omega = plan.CurvaturePerM * plan.SpeedMps * 180 / 3.141592653589793
		} else if action.AllowSpin {
			omega = 30
			if headingErr < 0 {
				omega = -30
			}
		}

		left, right := navigator.Mix(v, omega, mixerCfg)
		if _, err := drive.SendPWM(left, right); err != nil {
			monitoring.Logf("piloted: send PWM: %v", err)
		}
	}
}
