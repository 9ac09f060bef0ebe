package gallery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/kozaktomas/rollcall/internal/facematch"
)

// ErrNoFace is returned when an enrollment image contains no detectable face.
var ErrNoFace = errors.New("no face detected in image")

// maxLookalikes caps the lookalikes reported per enrollment.
const maxLookalikes = 3

// EnrollResult describes a committed enrollment.
type EnrollResult struct {
	Reference Reference
	// Faces is the number of faces detected. More than one is accepted; the
	// gallery uses the first detected face.
	Faces int
	// SimilarNames lists existing identities whose names differ from this one
	// only by case, diacritics or separators.
	SimilarNames []string
	// Lookalikes lists gallery entries of other identities within the
	// configured lookalike distance of the enrolled face.
	Lookalikes []Lookalike
}

// Enroller validates candidate images and commits them to the store.
type Enroller struct {
	store     *Store
	extractor facematch.Extractor

	// Lookalikes, if set, is consulted after a successful enrollment to report
	// other identities whose faces lie within LookalikeDistance.
	Lookalikes        *Builder
	LookalikeDistance float64
}

// NewEnroller creates an enrollment workflow over store.
func NewEnroller(store *Store, extractor facematch.Extractor) *Enroller {
	return &Enroller{store: store, extractor: extractor}
}

// Enroll validates the image at imagePath and stores a copy under identity.
func (e *Enroller) Enroll(ctx context.Context, imagePath, identity string) (*EnrollResult, error) {
	ext := strings.ToLower(filepath.Ext(imagePath))
	if !IsImageExtension(ext) {
		return nil, fmt.Errorf("unsupported image type %q (want .jpg, .jpeg or .png)", ext)
	}

	data, err := os.ReadFile(imagePath) //nolint:gosec // path chosen by the operator
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return e.EnrollImage(ctx, data, ext, identity)
}

// EnrollImage validates an encoded image and stores it under identity.
// Nothing is written unless the identity is valid and at least one face is
// detected.
func (e *Enroller) EnrollImage(ctx context.Context, data []byte, ext, identity string) (*EnrollResult, error) {
	identity, err := ValidateIdentity(identity)
	if err != nil {
		return nil, err
	}
	if !IsImageExtension(ext) {
		return nil, fmt.Errorf("unsupported image type %q (want .jpg, .jpeg or .png)", ext)
	}

	detected, err := e.extractor.DetectFaces(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("detecting faces: %w", err)
	}
	if len(detected) == 0 {
		return nil, ErrNoFace
	}

	similar, err := e.similarNames(identity)
	if err != nil {
		return nil, err
	}

	ref, err := e.store.Add(identity, data, ext)
	if err != nil {
		return nil, err
	}

	result := &EnrollResult{
		Reference:    ref,
		Faces:        len(detected),
		SimilarNames: similar,
	}
	if len(similar) > 0 {
		log.Printf("WARNING: enroll: %q looks like existing identities %v", identity, similar)
	}
	if len(detected) > 1 {
		log.Printf("WARNING: enroll: %d faces in %s, the first detected face is used", len(detected), ref.Path)
	}

	if e.Lookalikes != nil && e.LookalikeDistance > 0 {
		result.Lookalikes = e.findLookalikes(ctx, identity, detected[0].Embedding)
	}

	return result, nil
}

// similarNames returns existing identities that fold to the same loose form
// as identity but are not equal to it.
func (e *Enroller) similarNames(identity string) ([]string, error) {
	ids, err := e.store.Identities()
	if err != nil {
		return nil, err
	}

	folded := foldIdentity(identity)
	var out []string
	for _, id := range ids {
		if id != identity && foldIdentity(id) == folded {
			out = append(out, id)
		}
	}
	return out, nil
}

// findLookalikes rebuilds the gallery and searches it for other identities
// close to emb. Failures are logged; they never undo the enrollment.
func (e *Enroller) findLookalikes(ctx context.Context, identity string, emb facematch.Embedding) []Lookalike {
	g, _, err := e.Lookalikes.Build(ctx)
	if err != nil {
		log.Printf("WARNING: enroll: lookalike check failed: %v", err)
		return nil
	}

	found := NewLookalikeIndex(g).Near(emb, maxLookalikes, e.LookalikeDistance, identity)
	for _, l := range found {
		log.Printf("WARNING: enroll: %q is %.3f from %q (%s)", identity, l.Distance, l.Identity, l.Source)
	}
	return found
}
