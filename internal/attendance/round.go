package attendance

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
)

// maxStartAttempts bounds how far OpenRound advances a colliding start time.
const maxStartAttempts = 60

// ErrRoundClosed is returned when marking or finalizing a finalized round.
var ErrRoundClosed = errors.New("round already closed")

// RoundInfo identifies a round that has started.
type RoundInfo struct {
	ID         string    `json:"id"`
	Seq        int       `json:"seq"`
	Start      time.Time `json:"start"`
	RecordPath string    `json:"record_path"`
}

// Summary is the roster of a finalized round.
type Summary struct {
	ID         string    `json:"id"`
	Seq        int       `json:"seq"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	RecordPath string    `json:"record_path"`
	Present    []Entry   `json:"present"`
	Absent     []string  `json:"absent"`
}

// AllPresent reports whether nobody known at round start is absent.
func (s Summary) AllPresent() bool {
	return len(s.Absent) == 0
}

// Round is one capture window with its own record file. The present set only
// grows, and every identity in it has exactly one record entry.
type Round struct {
	ID    string
	Seq   int
	Start time.Time

	record  *Record
	present map[string]bool
	entries []Entry
	closed  bool
}

// NextStart returns the start time for a round beginning at now after a
// round that started at prev. Start times have one-second resolution and
// never repeat.
func NextStart(prev, now time.Time) time.Time {
	start := now.Truncate(time.Second)
	if !prev.IsZero() && !start.After(prev) {
		start = prev.Truncate(time.Second).Add(time.Second)
	}
	return start
}

// OpenRound creates a round and its record in dir. If a record for start
// already exists, start is advanced one second at a time until a free name is
// found.
func OpenRound(dir string, seq int, start time.Time) (*Round, error) {
	start = start.Truncate(time.Second)
	for range maxStartAttempts {
		rec, err := CreateRecord(dir, start)
		if err == nil {
			return &Round{
				ID:      uuid.NewString(),
				Seq:     seq,
				Start:   start,
				record:  rec,
				present: make(map[string]bool),
			}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, err
		}
		start = start.Add(time.Second)
	}
	return nil, fmt.Errorf("no free attendance record name after %s", start.Format(FileLayout))
}

// Info returns the round's identifying fields.
func (r *Round) Info() RoundInfo {
	return RoundInfo{ID: r.ID, Seq: r.Seq, Start: r.Start, RecordPath: r.record.Path()}
}

// RecordPath returns the path of the round's record file.
func (r *Round) RecordPath() string {
	return r.record.Path()
}

// Mark records identity as present at t. It returns false without writing
// anything if the identity is already present.
func (r *Round) Mark(identity string, t time.Time) (bool, error) {
	if r.closed {
		return false, ErrRoundClosed
	}
	if r.present[identity] {
		return false, nil
	}

	e := Entry{Identity: identity, Time: t}
	if err := r.record.Append(e); err != nil {
		return false, err
	}
	r.present[identity] = true
	r.entries = append(r.entries, e)
	return true, nil
}

// IsPresent reports whether identity has been marked in this round.
func (r *Round) IsPresent(identity string) bool {
	return r.present[identity]
}

// Present returns the entries in detection order.
func (r *Round) Present() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Finalize closes the record and computes the roster against the identities
// known when the round started. Absent identities are sorted.
func (r *Round) Finalize(known []string, end time.Time) (Summary, error) {
	if r.closed {
		return Summary{}, ErrRoundClosed
	}
	r.closed = true

	var absent []string
	seen := make(map[string]bool, len(known))
	for _, id := range known {
		if seen[id] || r.present[id] {
			continue
		}
		seen[id] = true
		absent = append(absent, id)
	}
	sort.Strings(absent)

	s := Summary{
		ID:         r.ID,
		Seq:        r.Seq,
		Start:      r.Start,
		End:        end,
		RecordPath: r.record.Path(),
		Present:    r.Present(),
		Absent:     absent,
	}

	if err := r.record.Close(); err != nil {
		return s, err
	}
	return s, nil
}
