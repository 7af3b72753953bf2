// Command gnssd owns the GNSS serial device: it decodes UBX NAV-PVAT and
// ESF-RAW frames, forwards them to fusiond as labeled payloads, and serves
// the loopback TCP control protocol described in spec.md §6's GNSS bullet.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unidroids/robotour/internal/config"
	"github.com/unidroids/robotour/internal/dispatch"
	"github.com/unidroids/robotour/internal/handlers"
	"github.com/unidroids/robotour/internal/monitoring"
	"github.com/unidroids/robotour/internal/netsvc"
	"github.com/unidroids/robotour/internal/serialio"
	"github.com/unidroids/robotour/internal/version"
	"github.com/unidroids/robotour/internal/wire/ubx"
)

var (
	listen        = flag.String("listen", "127.0.0.1:9101", "loopback TCP address to serve")
	fusionControl = flag.String("fusion-control", "127.0.0.1:9104", "fusiond's control-port address, for GET_BINARY_STREAM proxying")
	fusionIngest  = flag.String("fusion-ingest", "127.0.0.1:9111", "fusiond's GNSS ingestion address")
	versionFlag   = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()
	if *versionFlag {
		fmt.Printf("gnssd v%s (git SHA: %s)\n", version.Version, version.GitSHA)
		os.Exit(0)
	}
	cfg := config.MustLoadDefaultConfig()

	fwd := handlers.NewLoopbackForwarder(*fusionIngest, cfg.GetAckTimeout())
	defer fwd.Close()

	navHandler := handlers.NewNavPvatHandler(func(m ubx.NavPvat) {
		hAccM := float64(m.HAccMM) / 1000.0
		validFlag := "0"
		if m.HeadingValid {
			validFlag = "1"
		}
		line := fmt.Sprintf("NAV,%f,%f,%f,%f,%s,%f,%d\n",
			m.LatDeg, m.LonDeg, hAccM, m.VehHeadingDeg, validFlag, m.MotHeadingDeg, m.GroundSpeedMMps)
		if err := fwd.Send([]byte(line)); err != nil {
			monitoring.Logf("gnssd: forward NAV-PVAT: %v", err)
		}
	})
	esfHandler := handlers.NewEsfRawHandler(func(m ubx.EsfRaw) {
		gyroValid := "0"
		if m.HaveGyroZ {
			gyroValid = "1"
		}
		line := fmt.Sprintf("ESF,%f,%s\n", m.GyroZ, gyroValid)
		if err := fwd.Send([]byte(line)); err != nil {
			monitoring.Logf("gnssd: forward ESF-RAW: %v", err)
		}
	})

	disp := dispatch.New(func(f ubx.Frame) ubx.Code { return f.CodeOf() })
	disp.Register(ubx.CodeNavPvat, navHandler.Handle)
	disp.Register(ubx.CodeEsfRaw, esfHandler.Handle)

	parser := ubx.NewParser()
	serCfg := serialio.Config{
		Device:         cfg.GetGNSSDevice(),
		BaudRate:       cfg.GetGNSSBaud(),
		ReconnectDelay: cfg.GetReconnectDelay(),
		ReadChunkSize:  cfg.GetReadChunkBytes(),
		RXQueueSize:    cfg.GetRXQueueSize(),
		TXQueueSize:    cfg.GetTXQueueSize(),
	}.Normalize()
	dev := serialio.NewDevice[ubx.Frame]("gnss", serCfg, serialio.OpenRealPort, parser.Feed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dev.Start(ctx)
	defer dev.Stop(2 * time.Second)
	go disp.Run(ctx, dev.GetMessage, 20*time.Millisecond)

	srv := netsvc.New("GNSS")
	srv.StateJSON = func() string {
		s := dev.Stats()
		return fmt.Sprintf(`{"running":%t,"rx_frames":%d,"dropped_navpvat":%d,"dropped_esfraw":%d}`,
			srv.Running(), s.RxFrames, navHandler.Dropped(), 0)
	}

	// ODO <hex> pokes a raw odometry-style diagnostic frame to the GNSS
	// port verbatim, mirroring the original tool's manual poke command.
	srv.Register("ODO", func(c *netsvc.Conn, fields []string) string {
		if len(fields) != 2 {
			return "ERR usage: ODO <hex>"
		}
		raw, err := hex.DecodeString(fields[1])
		if err != nil {
			return "ERR bad hex"
		}
		if !dev.SendFrame(raw) {
			return "ERR tx queue full"
		}
		return "OK"
	})

	// PERFECT <hex> injects a synthetic NAV-PVAT/ESF-RAW payload straight
	// into the parser, bypassing the serial port — used by test harnesses
	// to replay a captured fix without hardware attached.
	srv.Register("PERFECT", func(c *netsvc.Conn, fields []string) string {
		if len(fields) != 2 {
			return "ERR usage: PERFECT <hex>"
		}
		raw, err := hex.DecodeString(fields[1])
		if err != nil {
			return "ERR bad hex"
		}
		for _, f := range parser.Feed(raw) {
			switch f.CodeOf() {
			case ubx.CodeNavPvat:
				navHandler.Handle(f)
			case ubx.CodeEsfRaw:
				esfHandler.Handle(f)
			}
		}
		return "OK"
	})

	// GET_BINARY_STREAM proxies to fusiond's own binary stream (spec.md §6
	// places this verb under GNSS, but fusiond is the single binary-stream
	// host; see DESIGN.md for the full rationale).
	srv.Register("GET_BINARY_STREAM", func(c *netsvc.Conn, fields []string) string {
		upstream, err := net.DialTimeout("tcp", *fusionControl, 2*time.Second)
		if err != nil {
			return "ERR fusion unavailable"
		}
		c.Raw = true
		if _, err := upstream.Write([]byte("GET_BINARY_STREAM\n")); err != nil {
			upstream.Close()
			return ""
		}
		go proxyStream(c.Conn, upstream)
		return ""
	})

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Fatalf("gnssd: listen %s: %v", *listen, err)
	}
	srv.SetRunning(true)

	monitoring.Logf("gnssd v%s: listening on %s, device %s", version.Version, *listen, serCfg.Device)
	if err := srv.Serve(ctx, ln); err != nil {
		log.Fatalf("gnssd: serve: %v", err)
	}
}

// proxyStream relays bytes from upstream (fusiond's binary stream) to down
// until either side closes.
func proxyStream(down net.Conn, upstream net.Conn) {
	defer upstream.Close()
	defer down.Close()
	io.Copy(down, upstream)
}
