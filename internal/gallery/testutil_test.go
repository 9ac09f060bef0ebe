package gallery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/rollcall/internal/facematch"
)

// fakeExtractor returns canned faces keyed by the raw image content.
type fakeExtractor struct {
	faces map[string][]facematch.Face
	calls int
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{faces: make(map[string][]facematch.Face)}
}

// face registers image content that yields one face with the given embedding.
func (f *fakeExtractor) face(content string, emb ...float64) {
	f.faces[content] = append(f.faces[content], facematch.Face{
		BBox:      []float64{0, 0, 10, 10},
		Embedding: emb,
		DetScore:  0.9,
	})
}

func (f *fakeExtractor) DetectFaces(_ context.Context, image []byte) ([]facematch.Face, error) {
	f.calls++
	if string(image) == "corrupt" {
		return nil, errors.New("cannot decode image")
	}
	return f.faces[string(image)], nil
}

// writeFile creates a file with content under dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "dataset"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}
