package runlog

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// RunSummary is the percentile summary of one run's ACK RTTs and
// heading-offset estimator quality, grounded on the teacher's
// P50/P85/P98 speed aggregation in internal/db/db.go.
type RunSummary struct {
	RTTp50Ms     float64
	RTTp95Ms     float64
	QualityP50   float64
	QualityP05   float64
	SampleCount  int
	AckCount     int
}

// Summarize computes RunSummary from raw RTT and quality samples. Both
// slices are sorted copies internally; the caller's slices are untouched.
func Summarize(rttMs, quality []float64) RunSummary {
	s := RunSummary{SampleCount: len(quality), AckCount: len(rttMs)}

	if len(rttMs) > 0 {
		sorted := append([]float64(nil), rttMs...)
		sort.Float64s(sorted)
		s.RTTp50Ms = stat.Quantile(0.50, stat.Empirical, sorted, nil)
		s.RTTp95Ms = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	}
	if len(quality) > 0 {
		sorted := append([]float64(nil), quality...)
		sort.Float64s(sorted)
		s.QualityP50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
		s.QualityP05 = stat.Quantile(0.05, stat.Empirical, sorted, nil)
	}
	return s
}
