package database

import (
	"context"

	"github.com/kozaktomas/rollcall/internal/attendance"
)

// AttendanceWriter mirrors rounds and their entries into a database.
type AttendanceWriter interface {
	// StartRound stores a round that has just begun
	StartRound(ctx context.Context, info attendance.RoundInfo) error
	// RecordEntry stores one identity marked present in a round; repeated
	// entries for the same identity are ignored
	RecordEntry(ctx context.Context, roundID string, e attendance.Entry) error
	// FinishRound stores the end time and absent list of a finalized round
	FinishRound(ctx context.Context, s attendance.Summary) error
}

// AttendanceReader provides read-only access to mirrored rounds
type AttendanceReader interface {
	// GetRound retrieves a round with its entries, returns nil if not found
	GetRound(ctx context.Context, id string) (*StoredRound, error)
	// ListRounds returns the most recent rounds first, without entries
	ListRounds(ctx context.Context, limit int) ([]StoredRound, error)
}

// AttendanceSink is a full attendance mirror backend.
type AttendanceSink interface {
	AttendanceWriter
	AttendanceReader
	Close() error
}
