package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/rollcall/internal/attendance"
	"github.com/kozaktomas/rollcall/internal/config"
	"github.com/kozaktomas/rollcall/internal/gallery"
)

type stubCounter struct{}

func (stubCounter) Counts() (map[string]int, error) {
	return map[string]int{"Alice": 1}, nil
}

type stubEnroller struct{}

func (stubEnroller) EnrollImage(context.Context, []byte, string, string) (*gallery.EnrollResult, error) {
	return nil, gallery.ErrNoFace
}

func TestServer_Routes(t *testing.T) {
	s := NewServer(config.WebConfig{Host: "127.0.0.1", Port: 8080}, Deps{
		Counter:  stubCounter{},
		Enroller: stubEnroller{},
	})
	s.Board().Publish(attendance.Summary{ID: "r1"})

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{http.MethodGet, "/api/v1/health", http.StatusOK},
		{http.MethodGet, "/api/v1/identities", http.StatusOK},
		{http.MethodGet, "/api/v1/rounds/latest", http.StatusOK},
		{http.MethodGet, "/api/v1/rounds", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/v1/rounds/r1", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
		{http.MethodDelete, "/api/v1/identities", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			s.Router().ServeHTTP(recorder, httptest.NewRequest(tt.method, tt.path, nil))
			if recorder.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, recorder.Code)
			}
		})
	}
}
