// Command fusiond runs the fusion service. Unlike the control verbs every
// other service exposes, the labeled payloads gnssd/drived/headingd push in
// do not go through the netsvc line-dispatch port: each label gets its own
// dedicated loopback listener, matching the one-Forwarder-per-source wiring
// in internal/handlers (odm.go sends raw records.Odm bytes with no label
// at all; uniheading.go sends a self-describing "HEADING\n<fields>\n"
// line). fusiond feeds everything it receives into a fusion.Core and serves
// the resulting solution as a binary stream for replay/telemetry consumers.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/unidroids/robotour/internal/config"
	"github.com/unidroids/robotour/internal/fusion"
	"github.com/unidroids/robotour/internal/monitoring"
	"github.com/unidroids/robotour/internal/netsvc"
	"github.com/unidroids/robotour/internal/records"
	"github.com/unidroids/robotour/internal/runlog"
	"github.com/unidroids/robotour/internal/timeutil"
	"github.com/unidroids/robotour/internal/version"
	"github.com/unidroids/robotour/internal/wire/ubx"
	"github.com/unidroids/robotour/internal/wire/unicore"
)

var (
	listen        = flag.String("listen", "127.0.0.1:9104", "loopback TCP address for the control protocol")
	gnssIngest    = flag.String("gnss-ingest", "127.0.0.1:9111", "address gnssd forwards NAV-PVAT/ESF-RAW samples to")
	driveIngest   = flag.String("drive-ingest", "127.0.0.1:9112", "address drived forwards ODM samples to")
	headingIngest = flag.String("heading-ingest", "127.0.0.1:9113", "address headingd forwards UNIHEADINGA samples to")
	runDir        = flag.String("run-dir", "./runlogs", "directory for this run's CSV log and sqlite run-history rows")
	versionFlag   = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()
	if *versionFlag {
		fmt.Printf("fusiond v%s (git SHA: %s)\n", version.Version, version.GitSHA)
		os.Exit(0)
	}
	cfg := config.MustLoadDefaultConfig()

	core := fusion.New(timeutil.RealClock{}, cfg.GetFusionWindowSize())

	runID := runlog.NewRunID()
	if err := os.MkdirAll(*runDir, 0o755); err != nil {
		log.Fatalf("fusiond: create run dir %s: %v", *runDir, err)
	}
	db, err := runlog.Open(filepath.Join(*runDir, "fusiond.db"))
	if err != nil {
		log.Fatalf("fusiond: open run db: %v", err)
	}
	defer db.Close()
	csvw, err := runlog.OpenCSVWriter(
		filepath.Join(*runDir, fmt.Sprintf("fusiond_%s.csv", runID)),
		[]string{"ts", "lat", "lon", "heading_deg", "heading_acc_deg", "quality", "gnss_fix_ok"})
	if err != nil {
		log.Fatalf("fusiond: open run csv: %v", err)
	}
	defer csvw.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go serveIngest(ctx, *gnssIngest, "gnss-ingest", gnssLineReader(core))
	go serveIngest(ctx, *driveIngest, "drive-ingest", odmBinaryReader(core))
	go serveIngest(ctx, *headingIngest, "heading-ingest", headingLineReader(core))
	go recordNavSamples(ctx, core, db, csvw, runID)

	srv := netsvc.New("FUSION")
	srv.StateJSON = func() string {
		_, quality, ok := core.Correction()
		_ = ok
		return `{"running":` + boolStr(srv.Running()) + `,"ready":` + boolStr(core.Ready()) +
			`,"quality":` + strconv.FormatFloat(quality, 'f', 4, 64) + `}`
	}
	srv.Register("GET_BINARY_STREAM", func(c *netsvc.Conn, fields []string) string {
		c.Raw = true
		go streamSolution(c.Conn, core)
		return ""
	})

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Fatalf("fusiond: listen %s: %v", *listen, err)
	}
	srv.SetRunning(true)

	monitoring.Logf("fusiond v%s: control on %s, ingest gnss=%s drive=%s heading=%s, run %s logging to %s",
		version.Version, *listen, *gnssIngest, *driveIngest, *headingIngest, runID, *runDir)
	if err := srv.Serve(ctx, ln); err != nil {
		log.Fatalf("fusiond: serve: %v", err)
	}
}

// serveIngest accepts connections on addr and hands each one to handle,
// one goroutine per connection, until ctx is cancelled.
func serveIngest(ctx context.Context, addr, name string, handle func(net.Conn)) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("fusiond: listen %s (%s): %v", addr, name, err)
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			monitoring.Logf("fusiond: %s accept: %v", name, err)
			return
		}
		go handle(conn)
	}
}

// gnssLineReader returns a connection handler for gnssd's forwarded
// samples, each line tagged NAV or ESF:
//
//	NAV,lat,lon,hAccM,vehHeadingDeg,headingValid,motHeadingDeg,groundSpeedMMps
//	ESF,gyroZDegS,haveGyroZ
func gnssLineReader(core *fusion.Core) func(net.Conn) {
	return func(conn net.Conn) {
		defer conn.Close()
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			f := strings.Split(strings.TrimSpace(scanner.Text()), ",")
			if len(f) == 0 {
				continue
			}
			switch f[0] {
			case "NAV":
				handleNavFields(core, f[1:])
			case "ESF":
				handleEsfFields(core, f[1:])
			}
		}
	}
}

func handleNavFields(core *fusion.Core, f []string) {
	if len(f) != 7 {
		return
	}
	lat, err1 := strconv.ParseFloat(f[0], 64)
	lon, err2 := strconv.ParseFloat(f[1], 64)
	hAccM, err3 := strconv.ParseFloat(f[2], 64)
	vehHeading, err4 := strconv.ParseFloat(f[3], 64)
	headingValid := f[4] == "1"
	motHeading, err5 := strconv.ParseFloat(f[5], 64)
	gSpeed, err6 := strconv.ParseFloat(f[6], 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil || err6 != nil {
		return
	}
	core.OnNavPvat(ubx.NavPvat{
		LatDeg:          lat,
		LonDeg:          lon,
		HAccMM:          uint32(hAccM * 1000),
		VehHeadingDeg:   vehHeading,
		HeadingValid:    headingValid,
		MotHeadingDeg:   motHeading,
		GroundSpeedMMps: int32(gSpeed),
	})
}

func handleEsfFields(core *fusion.Core, f []string) {
	if len(f) != 2 {
		return
	}
	gyroZ, err1 := strconv.ParseFloat(f[0], 64)
	if err1 != nil {
		return
	}
	core.OnEsfRaw(ubx.EsfRaw{GyroZ: gyroZ, HaveGyroZ: f[1] == "1"})
}

// odmBinaryReader returns a connection handler for drived's forwarded ODM
// samples: a stream of fixed records.OdmSize binary records, matching
// handlers.OdmHandler's fwd.Send(rec.ToBytes()) convention.
func odmBinaryReader(core *fusion.Core) func(net.Conn) {
	return func(conn net.Conn) {
		defer conn.Close()
		buf := make([]byte, records.OdmSize)
		for {
			if _, err := readFull(conn, buf); err != nil {
				return
			}
			rec, err := records.OdmFromBytes(buf)
			if err != nil {
				continue
			}
			core.OnOdm(rec.GyroZAdc, rec.AccumAngleAdc, rec.LeftSpeedMMps, rec.RightSpeedMMps)
		}
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		k, err := conn.Read(buf[n:])
		n += k
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// headingLineReader returns a connection handler for headingd's forwarded
// samples, matching handlers.UniHeadingHandler's
// "HEADING\n<fields>\n" convention: the label line is simply not a valid
// 5-field CSV row and is ignored.
func headingLineReader(core *fusion.Core) func(net.Conn) {
	return func(conn net.Conn) {
		defer conn.Close()
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			f := strings.Split(strings.TrimSpace(scanner.Text()), ",")
			if len(f) != 5 {
				continue
			}
			heading, err1 := strconv.ParseFloat(f[0], 64)
			headingAcc, err2 := strconv.ParseFloat(f[1], 64)
			pitch, err3 := strconv.ParseFloat(f[2], 64)
			baseline, err4 := strconv.ParseFloat(f[3], 64)
			quality, err5 := strconv.Atoi(f[4])
			if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
				continue
			}
			core.OnUniHeading(unicore.UniHeading{
				HeadingDeg:    heading,
				HeadingAccDeg: headingAcc,
				PitchDeg:      pitch,
				BaselineM:     baseline,
				QualityFlag:   quality,
			})
		}
	}
}

// streamSolution writes the latest NavFusion solution at a fixed cadence
// until the connection drops.
func streamSolution(conn net.Conn, core *fusion.Core) {
	defer conn.Close()
	w := bufio.NewWriter(conn)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		rec, ok := core.GetSolution()
		if !ok {
			continue
		}
		if _, err := w.Write(rec.ToBytes()); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

// recordNavSamples persists one fusion solution per second to the sqlite
// run-history store and the run's CSV log, per SPEC_FULL.md §4. Sampled at
// 1 Hz rather than the binary stream's 50ms cadence — the run log is a
// coarse history for post-hoc summaries, not a replacement for the replay
// dump.
func recordNavSamples(ctx context.Context, core *fusion.Core, db *runlog.DB, csvw *runlog.CSVWriter, runID string) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rec, ok := core.GetSolution()
			if !ok {
				continue
			}
			_, quality, _ := core.Correction()

			if err := db.InsertNavSample(runlog.NavSample{
				RunID:      runID,
				TsMono:     rec.TsMono,
				Lat:        rec.Lat,
				Lon:        rec.Lon,
				Heading:    float64(rec.Heading),
				HeadingAcc: float64(rec.HeadingAcc),
				Quality:    quality,
				GnssFixOK:  rec.GnssFixOK,
			}); err != nil {
				monitoring.Logf("fusiond: %v", err)
			}
			if err := csvw.WriteRow(
				runlog.FormatTimestamp(time.Now()),
				strconv.FormatFloat(rec.Lat, 'f', 7, 64),
				strconv.FormatFloat(rec.Lon, 'f', 7, 64),
				strconv.FormatFloat(float64(rec.Heading), 'f', 2, 64),
				strconv.FormatFloat(float64(rec.HeadingAcc), 'f', 2, 64),
				strconv.FormatFloat(quality, 'f', 4, 64),
				boolStr(rec.GnssFixOK),
			); err != nil {
				monitoring.Logf("fusiond: %v", err)
				continue
			}
			if err := csvw.Flush(); err != nil {
				monitoring.Logf("fusiond: %v", err)
			}
		}
	}
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
