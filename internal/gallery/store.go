// Package gallery manages enrolled reference images and turns them into the
// per-round matching gallery.
//
// Layout on disk is one directory per identity holding sequentially numbered
// images: <dataset>/<identity>/<identity>_<n>.<ext>.
package gallery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ErrReferenceExists is returned when the next sequence number is still taken
// on disk after the count was reloaded.
var ErrReferenceExists = errors.New("reference image already exists")

// imageExtensions lists the file types accepted as reference images.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// IsImageExtension reports whether ext (with leading dot) is an accepted reference type.
func IsImageExtension(ext string) bool {
	return imageExtensions[strings.ToLower(ext)]
}

// Reference is one stored reference image.
type Reference struct {
	Identity string
	Seq      int
	Path     string
}

// Store is the file-backed gallery store. It keeps a registry of reference
// counts per identity, seeded from the directory listing, so sequence numbers
// are assigned under a lock instead of racing on directory listings.
type Store struct {
	dir string

	mu     sync.Mutex
	counts map[string]int
}

// NewStore opens (and creates if needed) a gallery store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("dataset directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating dataset directory: %w", err)
	}
	return &Store{
		dir:    dir,
		counts: make(map[string]int),
	}, nil
}

// Dir returns the dataset root.
func (s *Store) Dir() string {
	return s.dir
}

// Identities returns every identity bucket in the store, sorted.
func (s *Store) Identities() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading dataset directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

// References returns all reference images, grouped by identity (sorted) and
// ordered by sequence number within each identity.
func (s *Store) References() ([]Reference, error) {
	ids, err := s.Identities()
	if err != nil {
		return nil, err
	}

	var refs []Reference
	for _, id := range ids {
		idRefs, err := s.listBucket(id)
		if err != nil {
			return nil, err
		}
		refs = append(refs, idRefs...)
	}
	return refs, nil
}

// Count returns the number of references stored for identity.
func (s *Store) Count(identity string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(identity)
}

// Counts returns the reference count of every identity.
func (s *Store) Counts() (map[string]int, error) {
	ids, err := s.Identities()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int, len(ids))
	for _, id := range ids {
		n, err := s.countLocked(id)
		if err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, nil
}

// Add stores data as the next reference for identity. ext is the file
// extension including the leading dot. The image is written to a hidden
// temporary file and renamed into place, so readers never see a partial file.
func (s *Store) Add(identity string, data []byte, ext string) (Reference, error) {
	identity, err := ValidateIdentity(identity)
	if err != nil {
		return Reference{}, err
	}
	ext = strings.ToLower(ext)
	if !IsImageExtension(ext) {
		return Reference{}, fmt.Errorf("unsupported image type %q", ext)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.countLocked(identity)
	if err != nil {
		return Reference{}, err
	}

	bucket := filepath.Join(s.dir, identity)
	if err := os.MkdirAll(bucket, 0o755); err != nil {
		return Reference{}, fmt.Errorf("creating identity directory: %w", err)
	}

	seq := n + 1
	if seqTaken(bucket, identity, seq) {
		// Files were copied into the bucket behind the store's back.
		n, seq, err = s.reseedLocked(identity)
		if err != nil {
			return Reference{}, err
		}
		if seqTaken(bucket, identity, seq) {
			return Reference{}, fmt.Errorf("%w: %s #%d", ErrReferenceExists, identity, seq)
		}
	}
	dest := filepath.Join(bucket, fmt.Sprintf("%s_%d%s", identity, seq, ext))

	tmp, err := os.CreateTemp(bucket, ".enroll-*")
	if err != nil {
		return Reference{}, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return Reference{}, fmt.Errorf("writing reference image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return Reference{}, fmt.Errorf("closing reference image: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return Reference{}, fmt.Errorf("storing reference image: %w", err)
	}

	s.counts[identity] = n + 1
	return Reference{Identity: identity, Seq: seq, Path: dest}, nil
}

// reseedLocked reloads the count of identity from disk and returns it along
// with the first sequence number above every numbered reference.
func (s *Store) reseedLocked(identity string) (count, next int, err error) {
	refs, err := s.listBucket(identity)
	if err != nil {
		return 0, 0, err
	}
	next = len(refs) + 1
	for _, r := range refs {
		if r.Seq != unnumbered && r.Seq >= next {
			next = r.Seq + 1
		}
	}
	s.counts[identity] = len(refs)
	return len(refs), next, nil
}

// seqTaken reports whether a reference numbered seq exists under any accepted
// extension.
func seqTaken(bucket, identity string, seq int) bool {
	for ext := range imageExtensions {
		for _, e := range []string{ext, strings.ToUpper(ext)} {
			name := fmt.Sprintf("%s_%d%s", identity, seq, e)
			if _, err := os.Stat(filepath.Join(bucket, name)); err == nil {
				return true
			}
		}
	}
	return false
}

// countLocked returns the registry count, seeding it from disk on first use.
func (s *Store) countLocked(identity string) (int, error) {
	if n, ok := s.counts[identity]; ok {
		return n, nil
	}
	refs, err := s.listBucket(identity)
	if err != nil {
		return 0, err
	}
	s.counts[identity] = len(refs)
	return len(refs), nil
}

// listBucket lists the reference files of one identity. Hidden files
// (in-flight enrollments) are skipped.
func (s *Store) listBucket(identity string) ([]Reference, error) {
	bucket := filepath.Join(s.dir, identity)
	entries, err := os.ReadDir(bucket)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading identity directory %s: %w", identity, err)
	}

	refs := make([]Reference, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		refs = append(refs, Reference{
			Identity: identity,
			Seq:      parseSeq(identity, e.Name()),
			Path:     filepath.Join(bucket, e.Name()),
		})
	}

	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].Seq != refs[j].Seq {
			return refs[i].Seq < refs[j].Seq
		}
		return refs[i].Path < refs[j].Path
	})
	return refs, nil
}

// unnumbered is the sequence given to files outside the naming scheme.
const unnumbered = int(^uint(0) >> 1)

// parseSeq extracts n from "<identity>_<n>.<ext>". Files that do not follow
// the naming scheme sort after numbered ones.
func parseSeq(identity, name string) int {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	rest, ok := strings.CutPrefix(base, identity+"_")
	if !ok {
		return unnumbered
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		return unnumbered
	}
	return n
}
