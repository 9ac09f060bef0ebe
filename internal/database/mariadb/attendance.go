package mariadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kozaktomas/rollcall/internal/attendance"
	"github.com/kozaktomas/rollcall/internal/database"
)

// AttendanceRepository mirrors rounds into MariaDB. Absent lists are stored as JSON text.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new MariaDB attendance repository
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

var _ database.AttendanceSink = (*AttendanceRepository)(nil)

func (r *AttendanceRepository) StartRound(ctx context.Context, info attendance.RoundInfo) error {
	query := `INSERT IGNORE INTO rounds (id, seq, started_at, record_path, absent) VALUES (?, ?, ?, ?, '[]')`
	if _, err := r.pool.db.ExecContext(ctx, query, info.ID, info.Seq, info.Start, info.RecordPath); err != nil {
		return fmt.Errorf("start round: %w", err)
	}
	return nil
}

func (r *AttendanceRepository) RecordEntry(ctx context.Context, roundID string, e attendance.Entry) error {
	query := `INSERT IGNORE INTO round_entries (round_id, identity, seen_at) VALUES (?, ?, ?)`
	if _, err := r.pool.db.ExecContext(ctx, query, roundID, e.Identity, e.Time); err != nil {
		return fmt.Errorf("record entry: %w", err)
	}
	return nil
}

func (r *AttendanceRepository) FinishRound(ctx context.Context, s attendance.Summary) error {
	absent := s.Absent
	if absent == nil {
		absent = []string{}
	}
	data, err := json.Marshal(absent)
	if err != nil {
		return fmt.Errorf("marshal absent list: %w", err)
	}

	// RowsAffected is 0 for unchanged rows, so check existence first.
	var exists bool
	err = r.pool.db.QueryRowContext(ctx, `SELECT 1 FROM rounds WHERE id = ?`, s.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("finish round: %w", roundLookupError(s.ID, err))
	}

	query := `UPDATE rounds SET finished_at = ?, absent = ? WHERE id = ?`
	if _, err := r.pool.db.ExecContext(ctx, query, s.End, string(data), s.ID); err != nil {
		return fmt.Errorf("finish round: %w", err)
	}
	return nil
}

// roundLookupError reports a missing round as not found and keeps every
// other query error intact.
func roundLookupError(id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("round %s not found: %w", id, err)
	}
	return fmt.Errorf("look up round %s: %w", id, err)
}

const roundColumns = `r.id, r.seq, r.started_at, r.finished_at, r.record_path, r.absent,
	(SELECT COUNT(*) FROM round_entries e WHERE e.round_id = r.id)`

func (r *AttendanceRepository) GetRound(ctx context.Context, id string) (*database.StoredRound, error) {
	row := r.pool.db.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM rounds r WHERE r.id = ?`, id)
	round, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get round: %w", err)
	}

	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT identity, seen_at FROM round_entries WHERE round_id = ? ORDER BY seen_at, position`, id)
	if err != nil {
		return nil, fmt.Errorf("get round entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e attendance.Entry
		if err := rows.Scan(&e.Identity, &e.Time); err != nil {
			return nil, fmt.Errorf("scan round entry: %w", err)
		}
		round.Entries = append(round.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate round entries: %w", err)
	}
	return round, nil
}

func (r *AttendanceRepository) ListRounds(ctx context.Context, limit int) ([]database.StoredRound, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT `+roundColumns+` FROM rounds r ORDER BY r.started_at DESC LIMIT ?`, database.ListLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	var rounds []database.StoredRound
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		rounds = append(rounds, *round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rounds: %w", err)
	}
	return rounds, nil
}

// Close closes the underlying pool
func (r *AttendanceRepository) Close() error {
	return r.pool.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRound(row rowScanner) (*database.StoredRound, error) {
	var (
		round    database.StoredRound
		finished sql.NullTime
		absent   string
	)
	if err := row.Scan(&round.ID, &round.Seq, &round.StartedAt, &finished, &round.RecordPath, &absent, &round.PresentCount); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		round.FinishedAt = &t
	}
	if err := json.Unmarshal([]byte(absent), &round.Absent); err != nil {
		return nil, fmt.Errorf("decode absent list: %w", err)
	}
	if round.Absent == nil {
		round.Absent = []string{}
	}
	return &round, nil
}
