// Command replay renders an HTML chart from a binary NavFusion dump, the
// same fixed-size-record format fusiond's GET_BINARY_STREAM verb emits.
// It satisfies the offline-replay need named in spec.md §6 without
// inventing a new dump format.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"

	"github.com/unidroids/robotour/internal/records"
)

var (
	inPath  = flag.String("in", "", "path to a binary NavFusion dump (required)")
	outPath = flag.String("out", "replay.html", "output HTML path")
)

func main() {
	flag.Parse()
	if *inPath == "" {
		log.Fatal("replay: -in is required")
	}

	solutions, err := readDump(*inPath)
	if err != nil {
		log.Fatalf("replay: %v", err)
	}
	if len(solutions) == 0 {
		log.Fatal("replay: dump contains no records")
	}

	page := buildPage(solutions)

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("replay: create %s: %v", *outPath, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := page.Render(w); err != nil {
		log.Fatalf("replay: render: %v", err)
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("replay: flush: %v", err)
	}

	fmt.Printf("replay: wrote %d samples to %s\n", len(solutions), *outPath)
}

// readDump reads a sequence of fixed-size records.NavFusion records from a
// binary dump file.
func readDump(path string) ([]records.NavFusion, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var out []records.NavFusion
	buf := make([]byte, records.NavFusionSize)
	for {
		if _, err := readFull(r, buf); err != nil {
			break
		}
		rec, err := records.NavFusionFromBytes(buf)
		if err != nil {
			return nil, fmt.Errorf("replay: decode record %d: %w", len(out), err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		k, err := r.Read(buf[n:])
		n += k
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// buildPage assembles a heading/position-accuracy line chart, a speed and
// gyro-Z line chart, and a heading-accuracy summary bar chart into one
// go-echarts page.
func buildPage(sols []records.NavFusion) *components.Page {
	x := make([]string, len(sols))
	headingAcc := make([]opts.LineData, len(sols))
	speed := make([]opts.LineData, len(sols))
	gyroZ := make([]opts.LineData, len(sols))
	hAcc := make([]opts.LineData, len(sols))

	headingAccSamples := make([]float64, len(sols))
	for i, s := range sols {
		x[i] = fmt.Sprintf("%.1f", s.TsMono)
		headingAcc[i] = opts.LineData{Value: s.HeadingAcc}
		speed[i] = opts.LineData{Value: s.Speed}
		gyroZ[i] = opts.LineData{Value: s.GyroZ}
		hAcc[i] = opts.LineData{Value: s.HAcc}
		headingAccSamples[i] = float64(s.HeadingAcc)
	}

	qualityLine := charts.NewLine()
	qualityLine.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Run Replay: Quality", Theme: "dark", Width: "1100px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Heading/Position Accuracy", Subtitle: fmt.Sprintf("%d samples", len(sols))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t_mono (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "accuracy"}),
	)
	qualityLine.SetXAxis(x).
		AddSeries("heading_acc_deg", headingAcc).
		AddSeries("h_acc_m", hAcc)

	motionLine := charts.NewLine()
	motionLine.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Run Replay: Motion", Theme: "dark", Width: "1100px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Speed / Gyro-Z"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t_mono (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "m/s, deg/s"}),
	)
	motionLine.SetXAxis(x).
		AddSeries("speed_mps", speed).
		AddSeries("gyro_z_dps", gyroZ)

	summary := summaryBar(headingAccSamples)

	page := components.NewPage()
	page.AddCharts(qualityLine, motionLine, summary)
	return page
}

// summaryBar renders the mean and p50/p85/p98 heading-accuracy quantiles as a bar chart,
// grounded on the teacher's use of stat.Quantile for run summaries.
func summaryBar(headingAccSamples []float64) *charts.Bar {
	sorted := append([]float64(nil), headingAccSamples...)
	sort.Float64s(sorted)

	mean := stat.Mean(sorted, nil)
	p50 := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	p85 := stat.Quantile(0.85, stat.Empirical, sorted, nil)
	p98 := stat.Quantile(0.98, stat.Empirical, sorted, nil)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Run Replay: Heading Accuracy Summary", Theme: "dark", Width: "1100px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Heading Accuracy Summary (deg)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis([]string{"mean", "p50", "p85", "p98"}).
		AddSeries("heading_acc_deg", []opts.BarData{
			{Value: mean}, {Value: p50}, {Value: p85}, {Value: p98},
		}, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	return bar
}
