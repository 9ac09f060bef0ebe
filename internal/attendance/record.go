// Package attendance keeps per-round attendance records: the CSV file written
// while a round runs and the roster computed when it closes.
package attendance

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Layouts used in record files and roster messages.
const (
	TimeLayout = "15:04:05"
	FileLayout = "2006-01-02_15-04-05"
	DateLayout = "02-01-2006"
)

// recordHeader is the first row of every attendance record.
var recordHeader = []string{"Name", "Time"}

// Entry is one identity marked present, at the time of its first detection.
type Entry struct {
	Identity string    `json:"identity"`
	Time     time.Time `json:"time"`
}

// Row is one line of an attendance record as stored on disk.
type Row struct {
	Name string `json:"name"`
	Time string `json:"time"`
}

// RecordFileName returns the record file name for a round started at start.
func RecordFileName(start time.Time) string {
	return start.Format(FileLayout) + ".csv"
}

// Record is an append-only attendance CSV file. Every append is flushed so
// the file on disk always holds every entry recorded so far.
type Record struct {
	path string
	file *os.File
	w    *csv.Writer
}

// CreateRecord creates the record file for start in dir and writes the
// header. It fails with an os.ErrExist error if the file already exists.
func CreateRecord(dir string, start time.Time) (*Record, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating attendance directory: %w", err)
	}

	path := filepath.Join(dir, RecordFileName(start))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // name derived from a timestamp
	if err != nil {
		return nil, fmt.Errorf("creating attendance record: %w", err)
	}

	return initRecord(path, f)
}

// initRecord writes the header to a freshly created record. A record whose
// header could not be written is removed so no header-less file is left.
func initRecord(path string, f *os.File) (*Record, error) {
	r := &Record{path: path, file: f, w: csv.NewWriter(f)}
	if err := r.write(recordHeader); err != nil {
		f.Close()
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Printf("WARNING: removing incomplete record %s: %v", path, rmErr)
		}
		return nil, err
	}
	return r, nil
}

// Path returns the record's file path.
func (r *Record) Path() string {
	return r.path
}

// Append writes one entry.
func (r *Record) Append(e Entry) error {
	return r.write([]string{e.Identity, e.Time.Format(TimeLayout)})
}

func (r *Record) write(row []string) error {
	if err := r.w.Write(row); err != nil {
		return fmt.Errorf("writing attendance record: %w", err)
	}
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		return fmt.Errorf("flushing attendance record: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (r *Record) Close() error {
	r.w.Flush()
	flushErr := r.w.Error()
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("closing attendance record: %w", err)
	}
	return flushErr
}

// ReadRecord reads the rows of a record file, without the header.
func ReadRecord(path string) ([]Row, error) {
	f, err := os.Open(path) //nolint:gosec // caller-provided record path
	if err != nil {
		return nil, fmt.Errorf("opening attendance record: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(recordHeader)

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("attendance record has no header")
	}
	if err != nil {
		return nil, fmt.Errorf("reading attendance record: %w", err)
	}
	if header[0] != recordHeader[0] || header[1] != recordHeader[1] {
		return nil, fmt.Errorf("unexpected attendance header %v", header)
	}

	var rows []Row
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading attendance record: %w", err)
		}
		rows = append(rows, Row{Name: rec[0], Time: rec[1]})
	}
	return rows, nil
}
