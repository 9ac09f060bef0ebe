package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/rollcall/internal/gallery"
)

type fakeCounter struct {
	counts map[string]int
	err    error
}

func (f *fakeCounter) Counts() (map[string]int, error) {
	return f.counts, f.err
}

type fakeEnroller struct {
	result   *gallery.EnrollResult
	err      error
	identity string
	ext      string
	size     int
}

func (f *fakeEnroller) EnrollImage(_ context.Context, data []byte, ext, identity string) (*gallery.EnrollResult, error) {
	f.identity = identity
	f.ext = ext
	f.size = len(data)
	return f.result, f.err
}

func TestIdentitiesHandler_List(t *testing.T) {
	h := NewIdentitiesHandler(&fakeCounter{counts: map[string]int{"Zoe": 1, "Alice": 3}}, nil)

	recorder := httptest.NewRecorder()
	h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/identities", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	var result []IdentityResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(result) != 2 || result[0].Name != "Alice" || result[0].References != 3 || result[1].Name != "Zoe" {
		t.Errorf("unexpected identities %+v", result)
	}
}

func TestIdentitiesHandler_ListEmpty(t *testing.T) {
	h := NewIdentitiesHandler(&fakeCounter{counts: map[string]int{}}, nil)

	recorder := httptest.NewRecorder()
	h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/identities", nil))

	if body := recorder.Body.String(); body != "[]\n" {
		t.Errorf("expected empty JSON array, got %q", body)
	}
}

func TestIdentitiesHandler_ListError(t *testing.T) {
	h := NewIdentitiesHandler(&fakeCounter{err: errors.New("disk gone")}, nil)

	recorder := httptest.NewRecorder()
	h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/identities", nil))

	if recorder.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", recorder.Code)
	}
}

func TestIdentitiesHandler_AddReference(t *testing.T) {
	enroller := &fakeEnroller{result: &gallery.EnrollResult{
		Reference: gallery.Reference{Identity: "Alice", Seq: 2, Path: "dataset/Alice/Alice_2.jpg"},
		Faces:     1,
	}}
	h := NewIdentitiesHandler(nil, enroller)

	req := multipartRequest(t, "/api/v1/identities/Alice/references", "file", "me.JPG", []byte("jpeg-bytes"))
	req = requestWithChiParams(req, map[string]string{"name": "Alice"})

	recorder := httptest.NewRecorder()
	h.AddReference(recorder, req)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if enroller.identity != "Alice" || enroller.ext != ".jpg" || enroller.size != len("jpeg-bytes") {
		t.Errorf("unexpected enroll call identity=%q ext=%q size=%d", enroller.identity, enroller.ext, enroller.size)
	}

	var result EnrollResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if result.Seq != 2 || result.Path != "dataset/Alice/Alice_2.jpg" {
		t.Errorf("unexpected response %+v", result)
	}
}

func TestIdentitiesHandler_AddReferenceErrors(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		field      string
		err        error
		wantStatus int
	}{
		{"no face", "a.jpg", "file", gallery.ErrNoFace, http.StatusUnprocessableEntity},
		{"invalid name", "a.jpg", "file", fmt.Errorf("%w: %q", gallery.ErrInvalidIdentity, ".."), http.StatusBadRequest},
		{"empty name", "a.jpg", "file", gallery.ErrEmptyIdentity, http.StatusBadRequest},
		{"taken", "a.png", "file", gallery.ErrReferenceExists, http.StatusConflict},
		{"extractor down", "a.jpg", "file", errors.New("detecting faces: connection refused"), http.StatusInternalServerError},
		{"bad extension", "a.gif", "file", nil, http.StatusBadRequest},
		{"missing file", "", "", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewIdentitiesHandler(nil, &fakeEnroller{err: tt.err})

			req := multipartRequest(t, "/api/v1/identities/x/references", tt.field, tt.filename, []byte("img"))
			req = requestWithChiParams(req, map[string]string{"name": "x"})

			recorder := httptest.NewRecorder()
			h.AddReference(recorder, req)

			if recorder.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, recorder.Code, recorder.Body.String())
			}
		})
	}
}
