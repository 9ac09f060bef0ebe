// Package capture provides camera frame sources for attendance rounds.
package capture

import (
	"context"
	"fmt"
	"time"
)

// Camera modes accepted by New.
const (
	ModeMJPEG    = "mjpeg"
	ModeSnapshot = "snapshot"
	ModeDir      = "dir"
)

// Frame is one encoded image pulled from a source.
type Frame struct {
	Data       []byte
	Seq        int
	CapturedAt time.Time
}

// Source opens frame streams. A source may be opened once per round.
type Source interface {
	Open(ctx context.Context) (Stream, error)
	Name() string
}

// Stream yields frames until it is closed or exhausted. Read returns io.EOF
// at the end of the stream.
type Stream interface {
	Read(ctx context.Context) (Frame, error)
	Close() error
}

// Options selects and configures a frame source.
type Options struct {
	Mode     string
	URL      string // stream or snapshot URL, or a directory path in dir mode
	Username string
	Password string
	Interval time.Duration
}

// New creates the frame source described by opts.
func New(opts Options) (Source, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("camera %s: no URL configured", opts.Mode)
	}
	switch opts.Mode {
	case ModeMJPEG, "":
		return NewMJPEGSource(opts.URL, opts.Username, opts.Password), nil
	case ModeSnapshot:
		return NewSnapshotSource(opts.URL, opts.Username, opts.Password, opts.Interval), nil
	case ModeDir:
		return NewDirSource(opts.URL, opts.Interval), nil
	default:
		return nil, fmt.Errorf("unknown camera mode %q (want %s, %s or %s)", opts.Mode, ModeMJPEG, ModeSnapshot, ModeDir)
	}
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
