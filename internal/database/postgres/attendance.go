package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/rollcall/internal/attendance"
	"github.com/kozaktomas/rollcall/internal/database"
	"github.com/lib/pq"
)

// AttendanceRepository provides PostgreSQL-backed attendance mirroring
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

var _ database.AttendanceSink = (*AttendanceRepository)(nil)

// StartRound stores a round that has just begun
func (r *AttendanceRepository) StartRound(ctx context.Context, info attendance.RoundInfo) error {
	query := `
		INSERT INTO rounds (id, seq, started_at, record_path)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`

	if _, err := r.pool.exec(ctx, query, info.ID, info.Seq, info.Start, info.RecordPath); err != nil {
		return fmt.Errorf("start round: %w", err)
	}
	return nil
}

// RecordEntry stores one present identity
func (r *AttendanceRepository) RecordEntry(ctx context.Context, roundID string, e attendance.Entry) error {
	query := `
		INSERT INTO round_entries (round_id, identity, seen_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (round_id, identity) DO NOTHING
	`

	if _, err := r.pool.exec(ctx, query, roundID, e.Identity, e.Time); err != nil {
		return fmt.Errorf("record entry: %w", err)
	}
	return nil
}

// FinishRound stores the end time and absent list of a round
func (r *AttendanceRepository) FinishRound(ctx context.Context, s attendance.Summary) error {
	absent := s.Absent
	if absent == nil {
		absent = []string{}
	}

	query := `
		UPDATE rounds SET finished_at = $2, absent = $3
		WHERE id = $1
	`

	res, err := r.pool.exec(ctx, query, s.ID, s.End, pq.Array(absent))
	if err != nil {
		return fmt.Errorf("finish round: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish round: round %s not found", s.ID)
	}
	return nil
}

// GetRound retrieves a round with its entries, returns nil if not found
func (r *AttendanceRepository) GetRound(ctx context.Context, id string) (*database.StoredRound, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	query := `
		SELECT r.id, r.seq, r.started_at, r.finished_at, r.record_path, r.absent,
			(SELECT COUNT(*) FROM round_entries e WHERE e.round_id = r.id)
		FROM rounds r
		WHERE r.id = $1
	`

	round, err := scanRound(r.pool.queryRow(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get round: %w", err)
	}

	rows, err := r.pool.query(ctx, `
		SELECT identity, seen_at FROM round_entries
		WHERE round_id = $1
		ORDER BY seen_at, position
	`, id)
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

// ListRounds returns the most recent rounds first
func (r *AttendanceRepository) ListRounds(ctx context.Context, limit int) ([]database.StoredRound, error) {
	query := `
		SELECT r.id, r.seq, r.started_at, r.finished_at, r.record_path, r.absent,
			(SELECT COUNT(*) FROM round_entries e WHERE e.round_id = r.id)
		FROM rounds r
		ORDER BY r.started_at DESC
		LIMIT $1
	`

	rows, err := r.pool.query(ctx, query, database.ListLimit(limit))
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
		absent   pq.StringArray
	)
	if err := row.Scan(&round.ID, &round.Seq, &round.StartedAt, &finished, &round.RecordPath, &absent, &round.PresentCount); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time.In(time.Local)
		round.FinishedAt = &t
	}
	round.Absent = []string(absent)
	return &round, nil
}
