package runlog

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/unidroids/robotour/internal/fsutil"
)

func TestOpenMigratesAndInsertsRows(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "runlog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	runID := NewRunID()
	if runID == "" {
		t.Fatal("NewRunID returned empty string")
	}

	if err := db.InsertNavSample(NavSample{RunID: runID, TsMono: 1.0, Lat: 50, Lon: 14, Heading: 90, HeadingAcc: 2, Quality: 0.95, GnssFixOK: true}); err != nil {
		t.Fatalf("InsertNavSample: %v", err)
	}
	if err := db.InsertAckOutcome(AckOutcome{RunID: runID, Cmd: 50, OK: true, RTTMs: 5.2, RetriesDone: 0}); err != nil {
		t.Fatalf("InsertAckOutcome: %v", err)
	}
	if err := db.InsertFSMTransition(FSMTransition{RunID: runID, TsMono: 1.0, FromState: "WAIT_GNSS", ToState: "ACQUIRE_HEADING/ROTATE", Note: "position ready"}); err != nil {
		t.Fatalf("InsertFSMTransition: %v", err)
	}

	rtts, err := db.RTTMsForRun(runID)
	if err != nil {
		t.Fatalf("RTTMsForRun: %v", err)
	}
	if len(rtts) != 1 || rtts[0] != 5.2 {
		t.Errorf("rtts = %v, want [5.2]", rtts)
	}

	quality, err := db.QualityForRun(runID)
	if err != nil {
		t.Fatalf("QualityForRun: %v", err)
	}
	if len(quality) != 1 || quality[0] != 0.95 {
		t.Errorf("quality = %v, want [0.95]", quality)
	}

	state, err := db.LatestFSMState(runID)
	if err != nil {
		t.Fatalf("LatestFSMState: %v", err)
	}
	if state != "ACQUIRE_HEADING/ROTATE" {
		t.Errorf("state = %q, want ACQUIRE_HEADING/ROTATE", state)
	}
}

func TestLatestFSMStateEmptyForUnknownRun(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "runlog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	state, err := db.LatestFSMState("no-such-run")
	if err != nil {
		t.Fatalf("LatestFSMState: %v", err)
	}
	if state != "" {
		t.Errorf("state = %q, want empty for an unknown run", state)
	}
}

func TestCSVWriterHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.csv")
	w, err := OpenCSVWriter(path, []string{"ts", "lat", "lon"})
	if err != nil {
		t.Fatalf("OpenCSVWriter: %v", err)
	}
	if err := w.WriteRow("2026-07-31T00:00:00.000Z", "50.0", "14.0"); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Scan()
	if scanner.Text() != "ts;lat;lon" {
		t.Errorf("header = %q, want ts;lat;lon", scanner.Text())
	}
	scanner.Scan()
	if scanner.Text() != "2026-07-31T00:00:00.000Z;50.0;14.0" {
		t.Errorf("row = %q", scanner.Text())
	}
}

func TestPointIniRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs := fsutil.OSFileSystem{}

	want := Point{Lat: 50.123456, Lon: 14.654321, Radius: 1.5}
	if err := WritePointIni(fs, dir, "point.ini", want); err != nil {
		t.Fatalf("WritePointIni: %v", err)
	}
	got, err := ReadPointIni(fs, dir, "point.ini")
	if err != nil {
		t.Fatalf("ReadPointIni: %v", err)
	}
	if got.Lat != want.Lat || got.Lon != want.Lon || got.Radius != want.Radius {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestReadPointIniRejectsMalformedContent(t *testing.T) {
	dir := t.TempDir()
	fs := fsutil.OSFileSystem{}
	if err := fs.WriteFile(dir+"/point.ini", []byte("not enough fields\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadPointIni(fs, dir, "point.ini"); err == nil {
		t.Error("expected an error for a malformed point.ini")
	}
}

func TestSummarizeComputesPercentiles(t *testing.T) {
	rtts := []float64{5, 6, 7, 8, 100}
	quality := []float64{0.9, 0.95, 1.0, 0.2, 0.85}

	s := Summarize(rtts, quality)
	if s.AckCount != 5 || s.SampleCount != 5 {
		t.Errorf("counts = %d/%d, want 5/5", s.AckCount, s.SampleCount)
	}
	if s.RTTp50Ms <= 0 {
		t.Errorf("RTTp50Ms = %v, want > 0", s.RTTp50Ms)
	}
	if s.RTTp95Ms < s.RTTp50Ms {
		t.Errorf("RTTp95Ms (%v) should be >= RTTp50Ms (%v)", s.RTTp95Ms, s.RTTp50Ms)
	}
	if s.QualityP05 > s.QualityP50 {
		t.Errorf("QualityP05 (%v) should be <= QualityP50 (%v)", s.QualityP05, s.QualityP50)
	}
}

func TestNewRunIDUnique(t *testing.T) {
	a := NewRunID()
	b := NewRunID()
	if a == b {
		t.Error("expected distinct run IDs")
	}
	if !strings.Contains(a, "-") {
		t.Errorf("run id %q doesn't look like a uuid", a)
	}
}
