package facematch

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// ErrDimensionMismatch is returned when embeddings of different lengths are compared.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Gallery is the immutable set of reference embeddings used for one round.
type Gallery struct {
	entries    []Entry
	identities []string
	dim        int
	threshold  float64
}

// BuildGallery constructs a gallery from entries. All embeddings must share one
// dimensionality. threshold is the acceptance threshold: a query matches only
// when its nearest entry is strictly closer than threshold.
func BuildGallery(entries []Entry, threshold float64) (*Gallery, error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("acceptance threshold must be positive, got %v", threshold)
	}

	g := &Gallery{
		entries:   make([]Entry, 0, len(entries)),
		threshold: threshold,
	}
	seen := make(map[string]bool)

	for i, e := range entries {
		if e.Identity == "" {
			return nil, fmt.Errorf("entry %d: empty identity", i)
		}
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("entry %d (%s): empty embedding", i, e.Identity)
		}
		if g.dim == 0 {
			g.dim = len(e.Embedding)
		} else if len(e.Embedding) != g.dim {
			return nil, fmt.Errorf("entry %d (%s): %w: got %d, want %d",
				i, e.Identity, ErrDimensionMismatch, len(e.Embedding), g.dim)
		}

		// Copy so later mutation of the caller's slices cannot leak into the round.
		emb := make(Embedding, len(e.Embedding))
		copy(emb, e.Embedding)
		g.entries = append(g.entries, Entry{Identity: e.Identity, Embedding: emb, Source: e.Source})

		if !seen[e.Identity] {
			seen[e.Identity] = true
			g.identities = append(g.identities, e.Identity)
		}
	}

	return g, nil
}

// Len returns the number of entries.
func (g *Gallery) Len() int {
	return len(g.entries)
}

// Dim returns the embedding dimensionality, 0 for an empty gallery.
func (g *Gallery) Dim() int {
	return g.dim
}

// Threshold returns the acceptance threshold.
func (g *Gallery) Threshold() float64 {
	return g.threshold
}

// Identities returns the distinct identities in first-seen order.
func (g *Gallery) Identities() []string {
	out := make([]string, len(g.identities))
	copy(out, g.identities)
	return out
}

// Entries returns a copy of the gallery entries in build order.
func (g *Gallery) Entries() []Entry {
	out := make([]Entry, len(g.entries))
	copy(out, g.entries)
	return out
}

// Resolve finds the identity for a query embedding.
//
// The entry with the minimum Euclidean distance wins; among entries at exactly
// the same minimum distance the first one in build order is chosen. The match
// is accepted only if that distance is below the threshold. An empty gallery
// always yields Unknown.
func (g *Gallery) Resolve(query Embedding) (Match, error) {
	if len(g.entries) == 0 {
		return Match{Identity: Unknown, Distance: -1}, nil
	}
	if len(query) != g.dim {
		return Match{}, fmt.Errorf("%w: query has %d dimensions, gallery has %d",
			ErrDimensionMismatch, len(query), g.dim)
	}

	best := 0
	bestDist := EuclideanDistance(query, g.entries[0].Embedding)
	for i := 1; i < len(g.entries); i++ {
		d := EuclideanDistance(query, g.entries[i].Embedding)
		if d < bestDist {
			best, bestDist = i, d
		}
	}

	if bestDist < g.threshold {
		return Match{Identity: g.entries[best].Identity, Distance: bestDist, Accepted: true}, nil
	}
	return Match{Identity: Unknown, Distance: bestDist}, nil
}

// EuclideanDistance returns the L2 distance between two embeddings of equal length.
func EuclideanDistance(a, b Embedding) float64 {
	return floats.Distance(a, b, 2)
}
