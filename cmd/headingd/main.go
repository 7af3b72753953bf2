// Command headingd owns the dual-antenna heading receiver's serial link:
// it decodes UNIHEADINGA sentences and forwards them on to fusiond, and
// serves the loopback TCP control protocol described in spec.md §6's
// Heading bullet.
package main

import (
	"context"
	"flag"
	"fmt"
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
	"github.com/unidroids/robotour/internal/wire/unicore"
)

var (
	listen       = flag.String("listen", "127.0.0.1:9103", "loopback TCP address to serve")
	fusionIngest = flag.String("fusion-ingest", "127.0.0.1:9113", "fusiond's heading ingestion address")
	device       = flag.String("device", "", "serial device override; defaults to the heading_device slot in rover.defaults.json")
	versionFlag  = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()
	if *versionFlag {
		fmt.Printf("headingd v%s (git SHA: %s)\n", version.Version, version.GitSHA)
		os.Exit(0)
	}
	cfg := config.MustLoadDefaultConfig()

	fwd := handlers.NewLoopbackForwarder(*fusionIngest, cfg.GetAckTimeout())
	defer fwd.Close()

	headingHandler := handlers.NewUniHeadingHandler(fwd, nil)

	dev := *device
	if dev == "" {
		dev = cfg.GetHeadingDevice()
	}
	serCfg := serialio.Config{
		Device:         dev,
		BaudRate:       cfg.GetHeadingBaud(),
		ReconnectDelay: cfg.GetReconnectDelay(),
		ReadChunkSize:  cfg.GetReadChunkBytes(),
		RXQueueSize:    cfg.GetRXQueueSize(),
		TXQueueSize:    cfg.GetTXQueueSize(),
	}.Normalize()
	parser := unicore.NewParser()
	serialDev := serialio.NewDevice[unicore.Frame]("heading", serCfg, serialio.OpenRealPort, parser.Feed)

	disp := dispatch.New(func(f unicore.Frame) string { return f.Code })
	disp.Register(unicore.CodeUniHeading, headingHandler.Handle)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serialDev.Start(ctx)
	defer serialDev.Stop(2 * time.Second)
	go disp.Run(ctx, serialDev.GetMessage, 20*time.Millisecond)

	srv := netsvc.New("HEADING")
	srv.StateJSON = func() string {
		latest, have := headingHandler.Latest()
		s := serialDev.Stats()
		return fmt.Sprintf(`{"running":%t,"rx_frames":%d,"have_heading":%t,"heading_deg":%.3f,"quality_flag":%d}`,
			srv.Running(), s.RxFrames, have, latest.HeadingDeg, latest.QualityFlag)
	}

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Fatalf("headingd: listen %s: %v", *listen, err)
	}
	srv.SetRunning(true)

	monitoring.Logf("headingd v%s: listening on %s, device %s", version.Version, *listen, serCfg.Device)
	if err := srv.Serve(ctx, ln); err != nil {
		log.Fatalf("headingd: serve: %v", err)
	}
}
