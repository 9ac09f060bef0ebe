package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
)

func TestNormalizeDSN(t *testing.T) {
	got, err := normalizeDSN("rollcall:secret@tcp(db:3306)/rollcall")
	if err != nil {
		t.Fatalf("normalizeDSN: %v", err)
	}
	if !strings.Contains(got, "parseTime=true") {
		t.Errorf("expected parseTime=true in %q", got)
	}
	if !strings.HasPrefix(got, "rollcall:secret@tcp(db:3306)/rollcall") {
		t.Errorf("unexpected DSN %q", got)
	}
}

func TestNormalizeDSN_Invalid(t *testing.T) {
	if _, err := normalizeDSN("not a dsn"); err == nil {
		t.Error("expected error for malformed DSN")
	}
}

func TestNewPool_RequiresDSN(t *testing.T) {
	if _, err := NewPool(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestRoundLookupError(t *testing.T) {
	err := roundLookupError("r1", sql.ErrNoRows)
	if !errors.Is(err, sql.ErrNoRows) || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected a not-found error, got %v", err)
	}

	err = roundLookupError("r1", context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected the query error to be wrapped, got %v", err)
	}
	if strings.Contains(err.Error(), "not found") {
		t.Errorf("a failed query must not read as a missing round: %v", err)
	}
}
