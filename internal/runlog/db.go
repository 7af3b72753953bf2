// Package runlog persists a run's state to three artifacts named in
// spec.md §6: a headered, ';'-delimited CSV run log per component, a
// point.ini file, and (the structured supplement from SPEC_FULL.md §4)
// a sqlite database migrated via golang-migrate, grounded on the
// teacher's internal/db package.
package runlog

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a sqlite connection holding the run-history tables.
type DB struct {
	*sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// migrates it to the latest schema version.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("runlog: open %s: %w", path, err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("runlog: set WAL mode: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("runlog: set busy_timeout: %w", err)
	}

	db := &DB{sqlDB}
	if err := db.migrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrateUp() error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("runlog: sub-filesystem for migrations: %w", err)
	}
	sourceDriver, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("runlog: iofs source driver: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("runlog: sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("runlog: migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("runlog: migrate up: %w", err)
	}
	return nil
}

// NavSample is one row of the nav_sample table: a fusion solution sample
// tagged with the run it belongs to.
type NavSample struct {
	RunID      string
	TsMono     float64
	Lat        float64
	Lon        float64
	Heading    float64
	HeadingAcc float64
	Quality    float64
	GnssFixOK  bool
}

// InsertNavSample appends one fusion solution sample.
func (db *DB) InsertNavSample(s NavSample) error {
	_, err := db.Exec(
		`INSERT INTO nav_sample (run_id, ts_mono, lat, lon, heading, heading_acc, quality, gnss_fix_ok)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.TsMono, s.Lat, s.Lon, s.Heading, s.HeadingAcc, s.Quality, s.GnssFixOK)
	if err != nil {
		return fmt.Errorf("runlog: insert nav_sample: %w", err)
	}
	return nil
}

// AckOutcome is one row of the ack_outcome table: the result of a single
// send_and_wait call to the motor controller.
type AckOutcome struct {
	RunID       string
	Cmd         int
	OK          bool
	IsTimeout   bool
	InputErr    int
	CmdErr      int
	RTTMs       float64
	RetriesDone int
}

// InsertAckOutcome appends one ACK/NACK matcher result.
func (db *DB) InsertAckOutcome(o AckOutcome) error {
	_, err := db.Exec(
		`INSERT INTO ack_outcome (run_id, cmd, ok, is_timeout, input_err, cmd_err, rtt_ms, retries_done)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, o.Cmd, o.OK, o.IsTimeout, o.InputErr, o.CmdErr, o.RTTMs, o.RetriesDone)
	if err != nil {
		return fmt.Errorf("runlog: insert ack_outcome: %w", err)
	}
	return nil
}

// FSMTransition is one row of the fsm_transition table: a navigator state
// change.
type FSMTransition struct {
	RunID     string
	TsMono    float64
	FromState string
	ToState   string
	Note      string
}

// InsertFSMTransition appends one navigator FSM state change.
func (db *DB) InsertFSMTransition(t FSMTransition) error {
	_, err := db.Exec(
		`INSERT INTO fsm_transition (run_id, ts_mono, from_state, to_state, note)
		 VALUES (?, ?, ?, ?, ?)`,
		t.RunID, t.TsMono, t.FromState, t.ToState, t.Note)
	if err != nil {
		return fmt.Errorf("runlog: insert fsm_transition: %w", err)
	}
	return nil
}

// RTTMsForRun returns every recorded ACK RTT (milliseconds) for a run, in
// insertion order, for percentile summaries.
func (db *DB) RTTMsForRun(runID string) ([]float64, error) {
	rows, err := db.Query(`SELECT rtt_ms FROM ack_outcome WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("runlog: query rtt_ms: %w", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("runlog: scan rtt_ms: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// QualityForRun returns every recorded heading-offset estimator quality
// value for a run, in insertion order, for percentile summaries.
func (db *DB) QualityForRun(runID string) ([]float64, error) {
	rows, err := db.Query(`SELECT quality FROM nav_sample WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("runlog: query quality: %w", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("runlog: scan quality: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// LatestFSMState returns the most recent to_state recorded for a run, or
// "" if no transitions have been recorded yet.
func (db *DB) LatestFSMState(runID string) (string, error) {
	var state string
	err := db.QueryRow(
		`SELECT to_state FROM fsm_transition WHERE run_id = ? ORDER BY id DESC LIMIT 1`, runID,
	).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("runlog: query latest fsm state: %w", err)
	}
	return state, nil
}
