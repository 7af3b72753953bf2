package navigator

import "testing"

func TestFSMEndToEndWaitToGoalReached(t *testing.T) {
	cfg := DefaultFSMConfig()
	f := NewFSM(cfg)

	// hAcc=3m: stays in WAIT_GNSS for a full second of stepping.
	for i := 0; i < 10; i++ {
		a := f.Step(0.1, Quality{HasFix: true, HAccM: 3.0, HeadingAccDeg: 50}, 20, 1, TwoIntersections, 90)
		if a.State != WaitGNSS {
			t.Fatalf("step %d: state = %v, want WAIT_GNSS", i, a.State)
		}
	}

	// hAcc improves to 1.0m: transition to ACQUIRE_HEADING/ROTATE.
	a := f.Step(0.1, Quality{HasFix: true, HAccM: 1.0, HeadingAccDeg: 50}, 20, 1, TwoIntersections, 90)
	if a.State != AcquireHeadingRotate {
		t.Fatalf("state = %v, want ACQUIRE_HEADING/ROTATE", a.State)
	}

	// headingAcc decreases monotonically; error to near shrinks too. Walk
	// through ROTATE -> SEEK -> READY -> NAVIGATE.
	headingAcc := 50.0
	errDeg := 90.0
	for i := 0; i < 50 && f.State() != Navigate; i++ {
		if headingAcc > 1 {
			headingAcc -= 2
		}
		if errDeg > 1 {
			errDeg -= 3
		}
		f.Step(0.1, Quality{HasFix: true, HAccM: 1.0, HeadingAccDeg: headingAcc}, 20, 1, TwoIntersections, errDeg)
	}
	if f.State() != Navigate {
		t.Fatalf("state = %v, want NAVIGATE after convergence", f.State())
	}

	// Dist to goal within radius terminates the run.
	final := f.Step(0.1, Quality{HasFix: true, HAccM: 1.0, HeadingAccDeg: 1}, 0.5, 1, TwoIntersections, 0)
	if final.State != GoalReached {
		t.Fatalf("state = %v, want GOAL_REACHED", final.State)
	}
}

func TestFSMReacquiresOnSuddenHeadingJump(t *testing.T) {
	f := NewFSM(DefaultFSMConfig())
	f.Reset(Navigate)
	a := f.Step(0.1, Quality{HasFix: true, HAccM: 1.0, HeadingAccDeg: 5}, 20, 1, TwoIntersections, 75)
	if a.State != AcquireHeadingRotate {
		t.Fatalf("state = %v, want ACQUIRE_HEADING/ROTATE after a >60deg jump", a.State)
	}
}

func TestFSMEntersSafeSpinAfterSustainedUncertainty(t *testing.T) {
	f := NewFSM(DefaultFSMConfig())
	f.Reset(Navigate)
	var a Action
	for i := 0; i < 5; i++ {
		a = f.Step(0.1, Quality{HasFix: true, HAccM: 1.0, HeadingAccDeg: 30}, 20, 1, TwoIntersections, 10)
	}
	if a.State != SafeSpin {
		t.Fatalf("state = %v, want SAFE_SPIN after sustained heading uncertainty", a.State)
	}
}

func TestFSMGoalNotReachedOnNearSelectionFailure(t *testing.T) {
	f := NewFSM(DefaultFSMConfig())
	f.Reset(Navigate)
	a := f.Step(0.1, Quality{HasFix: true, HAccM: 1.0, HeadingAccDeg: 5}, 20, 1, NoIntersection, 0)
	if a.State != GoalNotReached {
		t.Fatalf("state = %v, want GOAL_NOT_REACHED", a.State)
	}
}

// TestFSMLeavesWaitGNSSWithoutHasFix guards against the WAIT_GNSS exit
// gate depending on Quality.HasFix: spec §4.7 only names hAcc, and
// fusion.Core's gnssFixOK output can legitimately stay false while hAcc
// is already good (e.g. dead-reckoning-only fixes).
func TestFSMLeavesWaitGNSSWithoutHasFix(t *testing.T) {
	f := NewFSM(DefaultFSMConfig())
	a := f.Step(0.1, Quality{HasFix: false, HAccM: 1.0, HeadingAccDeg: 50}, 20, 1, TwoIntersections, 90)
	if a.State != AcquireHeadingRotate {
		t.Fatalf("state = %v, want ACQUIRE_HEADING/ROTATE with HasFix=false but hAcc within budget", a.State)
	}
}
