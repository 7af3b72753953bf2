package runlog

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewRunID generates the uuid that namespaces a run's CSV file name and
// its sqlite rows.
func NewRunID() string {
	return uuid.NewString()
}

// CSVWriter appends headered, ';'-delimited rows to a per-run CSV log, one
// file per component run, per spec.md §6.
type CSVWriter struct {
	f   *os.File
	w   *bufio.Writer
	cap int
}

// OpenCSVWriter creates (or truncates) path and writes the header row.
func OpenCSVWriter(path string, header []string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("runlog: create csv %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	if _, err := w.WriteString(strings.Join(header, ";") + "\n"); err != nil {
		f.Close()
		return nil, fmt.Errorf("runlog: write csv header: %w", err)
	}
	return &CSVWriter{f: f, w: w, cap: len(header)}, nil
}

// WriteRow appends one row. Mismatched field counts are still written; the
// caller's header/row pairing is its own contract to keep.
func (c *CSVWriter) WriteRow(fields ...string) error {
	if _, err := c.w.WriteString(strings.Join(fields, ";") + "\n"); err != nil {
		return fmt.Errorf("runlog: write csv row: %w", err)
	}
	return nil
}

// Flush pushes buffered rows to the underlying file.
func (c *CSVWriter) Flush() error {
	return c.w.Flush()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	if err := c.w.Flush(); err != nil {
		c.f.Close()
		return fmt.Errorf("runlog: flush csv on close: %w", err)
	}
	return c.f.Close()
}

// FormatTimestamp renders t the way every CSV run log in this package
// timestamps its rows: RFC3339 with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000Z07:00")
}
