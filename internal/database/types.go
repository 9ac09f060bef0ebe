package database

import (
	"time"

	"github.com/kozaktomas/rollcall/internal/attendance"
)

// StoredRound represents a round stored in the attendance mirror
type StoredRound struct {
	ID           string             `json:"id"`
	Seq          int                `json:"seq"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   *time.Time         `json:"finished_at,omitempty"` // nil while the round runs or if it never closed
	RecordPath   string             `json:"record_path"`
	PresentCount int                `json:"present_count"`
	Absent       []string           `json:"absent"`
	Entries      []attendance.Entry `json:"entries,omitempty"`
}

// Finished reports whether the round was finalized.
func (r *StoredRound) Finished() bool {
	return r.FinishedAt != nil
}

// DefaultListLimit caps ListRounds when no positive limit is given.
const DefaultListLimit = 50

// ListLimit normalizes a requested page size.
func ListLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return DefaultListLimit
	}
	return limit
}
