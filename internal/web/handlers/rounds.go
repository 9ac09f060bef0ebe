package handlers

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/rollcall/internal/attendance"
	"github.com/kozaktomas/rollcall/internal/database"
)

// RoundBoard holds the most recently finalized round. It is safe for
// concurrent use.
type RoundBoard struct {
	mu     sync.RWMutex
	latest *attendance.Summary
}

// NewRoundBoard creates an empty board.
func NewRoundBoard() *RoundBoard {
	return &RoundBoard{}
}

// Publish replaces the latest round with s.
func (b *RoundBoard) Publish(s attendance.Summary) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest = &s
}

// Latest returns the latest finalized round, if any.
func (b *RoundBoard) Latest() (attendance.Summary, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.latest == nil {
		return attendance.Summary{}, false
	}
	return *b.latest, true
}

// RoundsHandler handles round endpoints.
type RoundsHandler struct {
	board  *RoundBoard
	reader database.AttendanceReader // nil without an attendance database
}

// NewRoundsHandler creates a new rounds handler. reader may be nil.
func NewRoundsHandler(board *RoundBoard, reader database.AttendanceReader) *RoundsHandler {
	return &RoundsHandler{board: board, reader: reader}
}

// Latest returns the last finalized round.
func (h *RoundsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	s, ok := h.board.Latest()
	if !ok {
		respondError(w, http.StatusNotFound, "no round has finished yet")
		return
	}
	if s.Present == nil {
		s.Present = []attendance.Entry{}
	}
	if s.Absent == nil {
		s.Absent = []string{}
	}
	respondJSON(w, http.StatusOK, s)
}

// List returns stored rounds, newest first.
func (h *RoundsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		respondError(w, http.StatusServiceUnavailable, "attendance database not configured")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	rounds, err := h.reader.ListRounds(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rounds")
		return
	}
	if rounds == nil {
		rounds = []database.StoredRound{}
	}
	respondJSON(w, http.StatusOK, rounds)
}

// Get returns one stored round with its entries.
func (h *RoundsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		respondError(w, http.StatusServiceUnavailable, "attendance database not configured")
		return
	}

	round, err := h.reader.GetRound(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get round")
		return
	}
	if round == nil {
		respondError(w, http.StatusNotFound, "round not found")
		return
	}
	respondJSON(w, http.StatusOK, round)
}
