// Package facematch resolves detected faces to enrolled identities.
// It holds the per-round gallery and the nearest-neighbor matching rules
// shared by the session controller, the enrollment workflow and the CLI.
package facematch

import "context"

// Unknown is the identity reported for faces that match no gallery entry.
const Unknown = "Unknown"

// Embedding is a fixed-length face descriptor produced by the extractor.
type Embedding []float64

// Face is a single face detected within one image.
type Face struct {
	BBox      []float64 // [x1, y1, x2, y2] in image pixels
	Embedding Embedding
	DetScore  float64
}

// Entry pairs an identity with one of its reference embeddings.
type Entry struct {
	Identity  string
	Embedding Embedding
	Source    string // reference image the embedding was computed from
}

// Match is the outcome of resolving a face against a gallery.
type Match struct {
	Identity string  // Unknown when no entry was accepted
	Distance float64 // distance to the nearest entry, -1 for an empty gallery
	BBox     []float64
	// Accepted is set by Resolve when an entry fell within the threshold.
	Accepted bool
}

// Known reports whether the match resolved to an enrolled identity.
func (m Match) Known() bool {
	return m.Accepted
}

// Extractor detects faces in an encoded image and computes their embeddings.
// Implementations must be deterministic for a fixed image.
type Extractor interface {
	DetectFaces(ctx context.Context, image []byte) ([]Face, error)
}
