package database

import (
	"testing"
	"time"
)

func TestListLimit(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, DefaultListLimit},
		{-3, DefaultListLimit},
		{10, 10},
		{1000, 1000},
		{1001, DefaultListLimit},
	}

	for _, tt := range tests {
		if got := ListLimit(tt.input); got != tt.expected {
			t.Errorf("ListLimit(%d) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}

func TestStoredRound_Finished(t *testing.T) {
	r := StoredRound{ID: "r1"}
	if r.Finished() {
		t.Error("round without finish time must not be finished")
	}
	now := time.Now()
	r.FinishedAt = &now
	if !r.Finished() {
		t.Error("round with finish time must be finished")
	}
}
