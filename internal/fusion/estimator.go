package fusion

import "math"

// CircularMeanEstimator is a sliding circular mean over a fixed window of
// angle samples in degrees. Grounded on the original fusion prototype's
// _circ_mean_deg helper (atan2 of mean sin/cos), reworked here as an O(1)
// ring buffer of unit-vector components with running sums per SPEC_FULL.md's
// design note, instead of rescanning the window on every sample.
type CircularMeanEstimator struct {
	sin, cos []float64
	size     int
	count    int
	head     int
	sumSin   float64
	sumCos   float64
}

// NewCircularMeanEstimator builds an estimator holding at most window samples.
func NewCircularMeanEstimator(window int) *CircularMeanEstimator {
	if window < 1 {
		window = 1
	}
	return &CircularMeanEstimator{
		sin:  make([]float64, window),
		cos:  make([]float64, window),
		size: window,
	}
}

// Add feeds one more angle sample (degrees) into the window, evicting the
// oldest sample once the window is full.
func (e *CircularMeanEstimator) Add(deg float64) {
	rad := deg * math.Pi / 180
	s, c := math.Sincos(rad)
	if e.count == e.size {
		e.sumSin -= e.sin[e.head]
		e.sumCos -= e.cos[e.head]
	} else {
		e.count++
	}
	e.sin[e.head] = s
	e.cos[e.head] = c
	e.sumSin += s
	e.sumCos += c
	e.head = (e.head + 1) % e.size
}

// Mean returns the circular mean in degrees and true, or (0, false) if no
// sample has been added yet.
func (e *CircularMeanEstimator) Mean() (float64, bool) {
	if e.count == 0 {
		return 0, false
	}
	meanSin := e.sumSin / float64(e.count)
	meanCos := e.sumCos / float64(e.count)
	return math.Atan2(meanSin, meanCos) * 180 / math.Pi, true
}

// Quality is the length of the mean unit vector, in [0,1]: 1 when every
// sample in the window agrees, 0 when they cancel out evenly on the circle.
func (e *CircularMeanEstimator) Quality() float64 {
	if e.count == 0 {
		return 0
	}
	meanSin := e.sumSin / float64(e.count)
	meanCos := e.sumCos / float64(e.count)
	return math.Hypot(meanSin, meanCos)
}

// Count returns the number of samples currently held (at most the window size).
func (e *CircularMeanEstimator) Count() int { return e.count }
