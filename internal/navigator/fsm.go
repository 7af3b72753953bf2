package navigator

import "math"

// State is one state of the navigator FSM described in SPEC_FULL.md §4.7.
type State int

const (
	WaitGNSS State = iota
	AcquireHeadingRotate
	AcquireHeadingSeek
	AcquireHeadingReady
	Navigate
	SafeSpin
	GoalReached
	GoalNotReached
)

func (s State) String() string {
	switch s {
	case WaitGNSS:
		return "WAIT_GNSS"
	case AcquireHeadingRotate:
		return "ACQUIRE_HEADING/ROTATE"
	case AcquireHeadingSeek:
		return "ACQUIRE_HEADING/SEEK"
	case AcquireHeadingReady:
		return "ACQUIRE_HEADING/READY"
	case Navigate:
		return "NAVIGATE"
	case SafeSpin:
		return "SAFE_SPIN"
	case GoalReached:
		return "GOAL_REACHED"
	case GoalNotReached:
		return "GOAL_NOT_REACHED"
	default:
		return "UNKNOWN"
	}
}

// FSMConfig holds the debounce windows and quality thresholds the FSM steps
// against, grounded on the original pilot FSM's FsmConfig dataclass.
type FSMConfig struct {
	HAccReadyM            float64 // position accuracy required to leave WAIT_GNSS
	RotateHeadingAccDeg    float64 // headingAcc threshold to leave ROTATE (default 40)
	SeekErrDeg              float64 // |err to near| threshold to leave SEEK (default 20)
	ReadyErrDeg             float64 // |err to near| threshold to leave READY into NAVIGATE (default 7)
	ReacquireErrDeg         float64 // |err to near| jump that forces NAVIGATE back to ROTATE (default 60)
	HeadingUncertainDeg     float64 // headingAcc held above this triggers SAFE_SPIN (default 20)
	RecoverHeadingAccDeg    float64 // headingAcc required to leave SAFE_SPIN (default 20)
	RecoverErrDeg           float64 // |err to near| required to leave SAFE_SPIN (default 30)
	TStableS                float64 // sustained-good duration before a recovery transition (default 0.7)
	THoldS                  float64 // sustained-bad duration before SAFE_SPIN (default 0.3)
}

// DefaultFSMConfig returns the thresholds named in SPEC_FULL.md §4.7.
func DefaultFSMConfig() FSMConfig {
	return FSMConfig{
		HAccReadyM:           1.5,
		RotateHeadingAccDeg:  40.0,
		SeekErrDeg:           20.0,
		ReadyErrDeg:          7.0,
		ReacquireErrDeg:      60.0,
		HeadingUncertainDeg:  20.0,
		RecoverHeadingAccDeg: 20.0,
		RecoverErrDeg:        30.0,
		TStableS:             0.7,
		THoldS:               0.3,
	}
}

// Quality is the navigation-quality snapshot the FSM steps against.
type Quality struct {
	HasFix        bool
	HAccM         float64
	HeadingAccDeg float64
}

// Action is the FSM's decision for one step: the resulting state and
// whether forward motion and spin are currently permitted.
type Action struct {
	State        State
	AllowForward bool
	AllowSpin    bool
	Note         string
}

// FSM is the navigator's drive state machine. Not safe for concurrent use;
// callers serialize Step calls (the navigator loop owns one FSM).
type FSM struct {
	cfg   FSMConfig
	state State

	goodElapsedS float64
	badElapsedS  float64
}

// NewFSM builds an FSM starting in WAIT_GNSS.
func NewFSM(cfg FSMConfig) *FSM {
	return &FSM{cfg: cfg, state: WaitGNSS}
}

// State returns the current state.
func (f *FSM) State() State { return f.state }

// Reset returns the FSM to WAIT_GNSS (or the given state) and clears the
// debounce accumulators.
func (f *FSM) Reset(s State) {
	f.state = s
	f.goodElapsedS = 0
	f.badElapsedS = 0
}

// Step advances the FSM by dtS seconds given the current navigation
// quality, near-point distance/case, and heading error to the near point
// (degrees, shortest signed difference).
func (f *FSM) Step(dtS float64, q Quality, distToGoalM, goalRadiusM float64, nearCase NearCase, headingErrToNearDeg float64) Action {
	cfg := f.cfg

	if distToGoalM <= goalRadiusM {
		f.state = GoalReached
		return Action{f.state, false, false, "goal reached"}
	}
	if nearCase == NoIntersection {
		f.state = GoalNotReached
		return Action{f.state, false, false, "near selection failed"}
	}

	absErr := math.Abs(headingErrToNearDeg)
	posReady := q.HAccM <= cfg.HAccReadyM
	headGoodForNav := q.HeadingAccDeg <= cfg.HeadingUncertainDeg
	recovered := q.HeadingAccDeg <= cfg.RecoverHeadingAccDeg && absErr <= cfg.RecoverErrDeg

	switch f.state {
	case WaitGNSS:
		if posReady {
			f.Reset(AcquireHeadingRotate)
			return Action{f.state, false, true, "position ready -> acquire heading"}
		}
		return Action{f.state, false, true, "waiting for GNSS fix"}

	case AcquireHeadingRotate:
		if q.HeadingAccDeg <= cfg.RotateHeadingAccDeg {
			f.Reset(AcquireHeadingSeek)
			return Action{f.state, false, true, "heading accuracy acceptable -> seek"}
		}
		return Action{f.state, false, true, "rotating to acquire heading"}

	case AcquireHeadingSeek:
		if absErr <= cfg.SeekErrDeg {
			f.Reset(AcquireHeadingReady)
			return Action{f.state, false, true, "near within window -> ready"}
		}
		return Action{f.state, false, true, "seeking toward near point"}

	case AcquireHeadingReady:
		if absErr <= cfg.ReadyErrDeg {
			f.Reset(Navigate)
			return Action{f.state, true, true, "aligned -> navigate"}
		}
		return Action{f.state, false, true, "pre-spin toward near point"}

	case Navigate:
		if absErr > cfg.ReacquireErrDeg {
			f.Reset(AcquireHeadingRotate)
			return Action{f.state, false, true, "heading error jumped -> reacquire"}
		}
		if !headGoodForNav {
			f.badElapsedS += dtS
			if f.badElapsedS >= cfg.THoldS {
				f.state = SafeSpin
				f.badElapsedS = 0
				return Action{f.state, false, true, "heading uncertain -> safe spin"}
			}
		} else {
			f.badElapsedS = 0
		}
		return Action{f.state, true, true, "navigating"}

	case SafeSpin:
		if recovered {
			f.goodElapsedS += dtS
			if f.goodElapsedS >= cfg.TStableS {
				f.state = Navigate
				f.goodElapsedS = 0
				return Action{f.state, true, true, "recovered -> navigate"}
			}
		} else {
			f.goodElapsedS = 0
		}
		return Action{f.state, false, true, "safe spin"}

	case GoalReached, GoalNotReached:
		return Action{f.state, false, false, "terminal"}

	default:
		return Action{f.state, false, false, "unknown state"}
	}
}
