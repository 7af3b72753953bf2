// Command drived owns the motor controller's serial link: it builds and
// sends binary command frames, matches ACK/NACK replies via ackmatch, and
// forwards decoded ODM telemetry on to fusiond. Verb set and command-code
// mapping are grounded on original_source/drive/{client_handler,service}.py.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/unidroids/robotour/internal/ackmatch"
	"github.com/unidroids/robotour/internal/config"
	"github.com/unidroids/robotour/internal/dispatch"
	"github.com/unidroids/robotour/internal/handlers"
	"github.com/unidroids/robotour/internal/monitoring"
	"github.com/unidroids/robotour/internal/netsvc"
	"github.com/unidroids/robotour/internal/runlog"
	"github.com/unidroids/robotour/internal/serialio"
	"github.com/unidroids/robotour/internal/timeutil"
	"github.com/unidroids/robotour/internal/version"
	"github.com/unidroids/robotour/internal/wire/motorframe"
)

var (
	listen       = flag.String("listen", "127.0.0.1:9102", "loopback TCP address to serve")
	fusionIngest = flag.String("fusion-ingest", "127.0.0.1:9112", "fusiond's ODM ingestion address")
	runDir       = flag.String("run-dir", "./runlogs", "directory for this run's CSV log and sqlite run-history rows")
	versionFlag  = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()
	if *versionFlag {
		fmt.Printf("drived v%s (git SHA: %s)\n", version.Version, version.GitSHA)
		os.Exit(0)
	}
	cfg := config.MustLoadDefaultConfig()

	fwd := handlers.NewLoopbackForwarder(*fusionIngest, cfg.GetAckTimeout())
	defer fwd.Close()

	odmHandler := handlers.NewOdmHandler(fwd, nil)

	serCfg := serialio.Config{
		Device:         cfg.GetDriveDevice(),
		BaudRate:       cfg.GetDriveBaud(),
		ReconnectDelay: cfg.GetReconnectDelay(),
		ReadChunkSize:  cfg.GetReadChunkBytes(),
		RXQueueSize:    cfg.GetRXQueueSize(),
		TXQueueSize:    cfg.GetTXQueueSize(),
	}.Normalize()
	parser := motorframe.NewParser()
	dev := serialio.NewDevice[motorframe.Frame]("drive", serCfg, serialio.OpenRealPort, parser.Feed)

	matcher := ackmatch.New(timeutil.RealClock{}, cfg.GetAckMinInterval(), dev.SendFrame)

	runID := runlog.NewRunID()
	if err := os.MkdirAll(*runDir, 0o755); err != nil {
		log.Fatalf("drived: create run dir %s: %v", *runDir, err)
	}
	db, err := runlog.Open(filepath.Join(*runDir, "drived.db"))
	if err != nil {
		log.Fatalf("drived: open run db: %v", err)
	}
	defer db.Close()
	csvw, err := runlog.OpenCSVWriter(
		filepath.Join(*runDir, fmt.Sprintf("drived_%s.csv", runID)),
		[]string{"ts", "cmd", "ok", "is_timeout", "input_err", "cmd_err", "rtt_ms", "retries_done"})
	if err != nil {
		log.Fatalf("drived: open run csv: %v", err)
	}
	defer csvw.Close()
	rec := &ackRecorder{db: db, csvw: csvw, runID: runID}

	disp := dispatch.New(func(f motorframe.Frame) string { return motorframe.AlphaPrefix(f.Code) })
	disp.Register(motorframe.CodeAck, matcher.HandleAck)
	disp.Register(motorframe.CodeNack, matcher.HandleNack)
	disp.Register(motorframe.CodeOdmPrefix, odmHandler.Handle)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dev.Start(ctx)
	defer dev.Stop(2 * time.Second)
	go disp.Run(ctx, dev.GetMessage, 20*time.Millisecond)

	ackTimeout := cfg.GetAckTimeout()
	ackRetries := cfg.GetAckMaxRetries()

	srv := netsvc.New("DRIVE")
	srv.StateJSON = func() string {
		latest, have := odmHandler.Latest()
		s := dev.Stats()
		return fmt.Sprintf(`{"running":%t,"rx_frames":%d,"have_odm":%t,"left_mmps":%d,"right_mmps":%d}`,
			srv.Running(), s.RxFrames, have, latest.LeftSpeedMMps, latest.RightSpeedMMps)
	}

	srv.Register("HALT", simpleCmdVerb(matcher, rec, ackTimeout, ackRetries, motorframe.CmdHalt, 0, 0, 0, 0))
	srv.Register("POWER_OFF", simpleCmdVerb(matcher, rec, ackTimeout, ackRetries, motorframe.CmdPowerOff, 0, 0, 0, 0))
	srv.Register("BREAK", simpleCmdVerb(matcher, rec, ackTimeout, ackRetries, motorframe.CmdBreak, 0, 0, 0, 0))

	srv.Register("DRIVE", func(c *netsvc.Conn, fields []string) string {
		if len(fields) != 4 {
			return "ERR usage: DRIVE <max_pwm> <vL> <vR>"
		}
		maxPWM, err1 := strconv.Atoi(fields[1])
		vL, err2 := strconv.Atoi(fields[2])
		vR, err3 := strconv.Atoi(fields[3])
		if err1 != nil || err2 != nil || err3 != nil {
			return "ERR bad args"
		}
		p1, p2, err := motorframe.EncodePWM(maxPWM)
		if err != nil {
			return "ERR " + err.Error()
		}
		p3, errL := motorframe.EncodeSpeed(vL)
		p4, errR := motorframe.EncodeSpeed(vR)
		if errL != nil || errR != nil {
			return "ERR speed out of range"
		}
		result := matcher.SendAndWait(motorframe.CmdDrive, p1, p2, p3, p4, ackTimeout, ackRetries)
		rec.record(motorframe.CmdDrive, result)
		return sendResult(result)
	})

	srv.Register("PWM", func(c *netsvc.Conn, fields []string) string {
		if len(fields) != 3 {
			return "ERR usage: PWM <pwmL> <pwmR>"
		}
		pwmL, err1 := strconv.Atoi(fields[1])
		pwmR, err2 := strconv.Atoi(fields[2])
		if err1 != nil || err2 != nil {
			return "ERR bad args"
		}
		p1, p2, errL := motorframe.EncodePWM(pwmL)
		p3, p4, errR := motorframe.EncodePWM(pwmR)
		if errL != nil || errR != nil {
			return "ERR pwm out of range"
		}
		result := matcher.SendAndWait(motorframe.CmdPWM, p1, p2, p3, p4, ackTimeout, ackRetries)
		rec.record(motorframe.CmdPWM, result)
		return sendResult(result)
	})

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Fatalf("drived: listen %s: %v", *listen, err)
	}
	srv.SetRunning(true)

	monitoring.Logf("drived v%s: listening on %s, device %s, run %s logging to %s",
		version.Version, *listen, serCfg.Device, runID, *runDir)
	if err := srv.Serve(ctx, ln); err != nil {
		log.Fatalf("drived: serve: %v", err)
	}
}

// simpleCmdVerb builds a netsvc verb for a fixed, argument-less command
// (HALT/POWER_OFF/BREAK), all of which send p1..p4 as zero.
func simpleCmdVerb(m *ackmatch.Matcher, rec *ackRecorder, timeout time.Duration, retries, cmd, p1, p2, p3, p4 int) netsvc.VerbFunc {
	return func(c *netsvc.Conn, fields []string) string {
		result := m.SendAndWait(cmd, p1, p2, p3, p4, timeout, retries)
		rec.record(cmd, result)
		return sendResult(result)
	}
}

func sendResult(r ackmatch.Result) string {
	if r.OK {
		return "OK"
	}
	if r.IsTimeout {
		return "ERR TIMEOUT"
	}
	return fmt.Sprintf("ERR NACK input_err=%d cmd_err=%d", r.InputErr, r.CmdErr)
}

// ackRecorder persists every SendAndWait outcome to the run's sqlite store
// and CSV log, per SPEC_FULL.md §4.
type ackRecorder struct {
	db    *runlog.DB
	csvw  *runlog.CSVWriter
	runID string
}

func (r *ackRecorder) record(cmd int, result ackmatch.Result) {
	rttMs := float64(result.RTT) / float64(time.Millisecond)
	if err := r.db.InsertAckOutcome(runlog.AckOutcome{
		RunID:       r.runID,
		Cmd:         cmd,
		OK:          result.OK,
		IsTimeout:   result.IsTimeout,
		InputErr:    result.InputErr,
		CmdErr:      result.CmdErr,
		RTTMs:       rttMs,
		RetriesDone: result.RetriesDone,
	}); err != nil {
		monitoring.Logf("drived: %v", err)
	}
	if err := r.csvw.WriteRow(
		runlog.FormatTimestamp(time.Now()),
		strconv.Itoa(cmd),
		strconv.FormatBool(result.OK),
		strconv.FormatBool(result.IsTimeout),
		strconv.Itoa(result.InputErr),
		strconv.Itoa(result.CmdErr),
		strconv.FormatFloat(rttMs, 'f', 2, 64),
		strconv.Itoa(result.RetriesDone),
	); err != nil {
		monitoring.Logf("drived: %v", err)
		return
	}
	if err := r.csvw.Flush(); err != nil {
		monitoring.Logf("drived: %v", err)
	}
}
