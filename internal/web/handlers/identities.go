package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/rollcall/internal/constants"
	"github.com/kozaktomas/rollcall/internal/gallery"
)

// ReferenceCounter lists identities with their reference image counts.
type ReferenceCounter interface {
	Counts() (map[string]int, error)
}

// Enroller commits a validated reference image.
type Enroller interface {
	EnrollImage(ctx context.Context, data []byte, ext, identity string) (*gallery.EnrollResult, error)
}

// IdentitiesHandler handles gallery identity endpoints.
type IdentitiesHandler struct {
	counter  ReferenceCounter
	enroller Enroller
}

// NewIdentitiesHandler creates a new identities handler.
func NewIdentitiesHandler(counter ReferenceCounter, enroller Enroller) *IdentitiesHandler {
	return &IdentitiesHandler{counter: counter, enroller: enroller}
}

// IdentityResponse is one identity in the gallery listing.
type IdentityResponse struct {
	Name       string `json:"name"`
	References int    `json:"references"`
}

// EnrollResponse describes a stored reference image.
type EnrollResponse struct {
	Identity     string              `json:"identity"`
	Seq          int                 `json:"seq"`
	Path         string              `json:"path"`
	Faces        int                 `json:"faces"`
	SimilarNames []string            `json:"similar_names,omitempty"`
	Lookalikes   []gallery.Lookalike `json:"lookalikes,omitempty"`
}

// List returns all identities sorted by name.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	counts, err := h.counter.Counts()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list identities")
		return
	}

	result := make([]IdentityResponse, 0, len(counts))
	for name, n := range counts {
		result = append(result, IdentityResponse{Name: name, References: n})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	respondJSON(w, http.StatusOK, result)
}

// AddReference enrolls the uploaded image under the identity in the URL.
func (h *IdentitiesHandler) AddReference(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !gallery.IsImageExtension(ext) {
		respondError(w, http.StatusBadRequest, "unsupported image type, want .jpg, .jpeg or .png")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	result, err := h.enroller.EnrollImage(r.Context(), data, ext, name)
	switch {
	case err == nil:
	case errors.Is(err, gallery.ErrEmptyIdentity), errors.Is(err, gallery.ErrInvalidIdentity):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, gallery.ErrNoFace):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, gallery.ErrReferenceExists):
		respondError(w, http.StatusConflict, err.Error())
		return
	default:
		log.Printf("WARNING: enroll %q failed: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusInternalServerError, "enrollment failed")
		return
	}

	respondJSON(w, http.StatusCreated, EnrollResponse{
		Identity:     result.Reference.Identity,
		Seq:          result.Reference.Seq,
		Path:         result.Reference.Path,
		Faces:        result.Faces,
		SimilarNames: result.SimilarNames,
		Lookalikes:   result.Lookalikes,
	})
}
