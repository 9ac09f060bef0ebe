package gallery

import (
	"sort"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/rollcall/internal/facematch"
)

// HNSW parameters for small face galleries.
const (
	lookalikeMaxNeighbors = 16
	lookalikeEfSearch     = 64
	// lookalikeSearchMultiplier widens the approximate candidate pool before
	// exact distances are applied.
	lookalikeSearchMultiplier = 3
)

// Lookalike is an existing gallery entry close to a newly enrolled face.
type Lookalike struct {
	Identity string  `json:"identity"`
	Source   string  `json:"source"`
	Distance float64 `json:"distance"`
}

// LookalikeIndex is an approximate nearest-neighbor index over a gallery,
// used to flag enrollments whose face is already close to someone else.
type LookalikeIndex struct {
	graph   *hnsw.Graph[int]
	entries []facematch.Entry
}

// NewLookalikeIndex indexes every entry of g.
func NewLookalikeIndex(g *facematch.Gallery) *LookalikeIndex {
	entries := g.Entries()

	graph := hnsw.NewGraph[int]()
	graph.M = lookalikeMaxNeighbors
	graph.Ml = 1.0 / float64(lookalikeMaxNeighbors)
	graph.EfSearch = lookalikeEfSearch
	graph.Distance = hnsw.EuclideanDistance

	for i, e := range entries {
		graph.Add(hnsw.MakeNode(i, toFloat32(e.Embedding)))
	}

	return &LookalikeIndex{graph: graph, entries: entries}
}

// Len returns the number of indexed entries.
func (l *LookalikeIndex) Len() int {
	return len(l.entries)
}

// Near returns up to k entries strictly closer than maxDistance to query,
// excluding entries of the identity named exclude, nearest first. Distances
// are exact Euclidean distances recomputed from the stored embeddings.
func (l *LookalikeIndex) Near(query facematch.Embedding, k int, maxDistance float64, exclude string) []Lookalike {
	if len(l.entries) == 0 || k <= 0 {
		return nil
	}

	var out []Lookalike
	candidates := l.graph.Search(toFloat32(query), k*lookalikeSearchMultiplier)
	for _, n := range candidates {
		e := l.entries[n.Key]
		if e.Identity == exclude || len(e.Embedding) != len(query) {
			continue
		}
		d := facematch.EuclideanDistance(query, e.Embedding)
		if d >= maxDistance {
			continue
		}
		out = append(out, Lookalike{Identity: e.Identity, Source: e.Source, Distance: d})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func toFloat32(e facematch.Embedding) []float32 {
	out := make([]float32, len(e))
	for i, v := range e {
		out[i] = float32(v)
	}
	return out
}
