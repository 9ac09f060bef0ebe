package gallery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/kozaktomas/rollcall/internal/facematch"
)

// errNoFaceInReference marks a reference image the extractor found no face in.
var errNoFaceInReference = errors.New("no face found")

// SkippedReference is a reference image that produced no gallery entry.
type SkippedReference struct {
	Reference Reference
	Err       error
}

// BuildReport describes one gallery build.
type BuildReport struct {
	// Identities is every identity in the store when the build started,
	// including identities none of whose references could be used.
	Identities []string
	References int
	Entries    int
	Skipped    []SkippedReference
}

// Builder recomputes the matching gallery from the store.
type Builder struct {
	store     *Store
	extractor facematch.Extractor
	threshold float64

	// OnReference, if set, is called after each reference is processed.
	OnReference func(ref Reference, err error)
}

// NewBuilder creates a gallery builder using threshold as the acceptance threshold.
func NewBuilder(store *Store, extractor facematch.Extractor, threshold float64) *Builder {
	return &Builder{
		store:     store,
		extractor: extractor,
		threshold: threshold,
	}
}

// Build extracts an embedding from every reference image and returns the
// resulting gallery. A reference that cannot be read or holds no face is
// skipped with a warning; only store-level failures, cancellation and
// inconsistent embedding sizes fail the build. When a reference holds several
// faces the first detected one is used.
func (b *Builder) Build(ctx context.Context) (*facematch.Gallery, *BuildReport, error) {
	ids, err := b.store.Identities()
	if err != nil {
		return nil, nil, err
	}
	refs, err := b.store.References()
	if err != nil {
		return nil, nil, err
	}

	// An identity enrolled between the two listings still counts as known.
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	for _, ref := range refs {
		if !known[ref.Identity] {
			known[ref.Identity] = true
			ids = append(ids, ref.Identity)
		}
	}

	report := &BuildReport{Identities: ids, References: len(refs)}
	entries := make([]facematch.Entry, 0, len(refs))

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("building gallery: %w", err)
		}

		emb, err := b.embedReference(ctx, ref)
		if b.OnReference != nil {
			b.OnReference(ref, err)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, fmt.Errorf("building gallery: %w", ctx.Err())
			}
			log.Printf("WARNING: gallery: skipping reference %s: %v", ref.Path, err)
			report.Skipped = append(report.Skipped, SkippedReference{Reference: ref, Err: err})
			continue
		}

		entries = append(entries, facematch.Entry{
			Identity:  ref.Identity,
			Embedding: emb,
			Source:    ref.Path,
		})
	}

	g, err := facematch.BuildGallery(entries, b.threshold)
	if err != nil {
		return nil, nil, fmt.Errorf("building gallery: %w", err)
	}
	report.Entries = g.Len()
	return g, report, nil
}

// embedReference reads one reference image and returns its first face embedding.
func (b *Builder) embedReference(ctx context.Context, ref Reference) (facematch.Embedding, error) {
	data, err := os.ReadFile(ref.Path) //nolint:gosec // path comes from the dataset listing
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	detected, err := b.extractor.DetectFaces(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("extracting faces: %w", err)
	}
	if len(detected) == 0 {
		return nil, errNoFaceInReference
	}
	return detected[0].Embedding, nil
}
