package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var frameExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

// DirSource plays back the image files of a directory in name order.
type DirSource struct {
	dir      string
	interval time.Duration
}

// NewDirSource creates a source replaying images from dir, one every interval.
func NewDirSource(dir string, interval time.Duration) *DirSource {
	return &DirSource{dir: dir, interval: interval}
}

func (s *DirSource) Name() string { return "dir:" + s.dir }

// Open lists the directory. A missing or unreadable directory is an error;
// an empty one yields a stream that ends immediately.
func (s *DirSource) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("opening frame directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if frameExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(s.dir, e.Name()))
		}
	}
	sort.Strings(files)

	return &dirStream{files: files, interval: s.interval}, nil
}

type dirStream struct {
	files    []string
	next     int
	interval time.Duration
	closed   bool
}

func (d *dirStream) Read(ctx context.Context) (Frame, error) {
	if d.closed || d.next >= len(d.files) {
		return Frame{}, io.EOF
	}
	if d.next > 0 {
		if err := sleepCtx(ctx, d.interval); err != nil {
			return Frame{}, err
		}
	} else if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	path := d.files[d.next]
	d.next++
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the directory listing
	if err != nil {
		return Frame{}, fmt.Errorf("reading frame %s: %w", filepath.Base(path), err)
	}
	return Frame{Data: data, Seq: d.next, CapturedAt: time.Now()}, nil
}

func (d *dirStream) Close() error {
	d.closed = true
	return nil
}
