package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxFrameBytes caps a single downloaded frame.
const maxFrameBytes = 32 << 20

// SnapshotSource polls a still-image URL, such as a Hikvision
// /ISAPI/Streaming/channels/101/picture endpoint.
type SnapshotSource struct {
	url      string
	username string
	password string
	interval time.Duration
	client   *http.Client
}

// NewSnapshotSource creates a polling source fetching url every interval.
func NewSnapshotSource(url, username, password string, interval time.Duration) *SnapshotSource {
	return &SnapshotSource{
		url:      url,
		username: username,
		password: password,
		interval: interval,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SnapshotSource) Name() string { return "snapshot:" + redactURL(s.url) }

// Open fetches one snapshot to confirm the camera is reachable; that frame is
// returned by the first Read.
func (s *SnapshotSource) Open(ctx context.Context) (Stream, error) {
	data, err := s.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot source: %w", err)
	}
	return &snapshotStream{src: s, pending: data, last: time.Now()}, nil
}

func (s *SnapshotSource) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camera error (status %d)", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("camera returned an empty snapshot")
	}
	return data, nil
}

type snapshotStream struct {
	src     *SnapshotSource
	pending []byte
	last    time.Time
	seq     int
	closed  bool
}

func (s *snapshotStream) Read(ctx context.Context) (Frame, error) {
	if s.closed {
		return Frame{}, io.EOF
	}

	data := s.pending
	s.pending = nil
	if data == nil {
		if err := sleepCtx(ctx, s.src.interval-time.Since(s.last)); err != nil {
			return Frame{}, err
		}
		var err error
		if data, err = s.src.fetch(ctx); err != nil {
			return Frame{}, err
		}
		s.last = time.Now()
	}

	s.seq++
	return Frame{Data: data, Seq: s.seq, CapturedAt: s.last}, nil
}

func (s *snapshotStream) Close() error {
	s.closed = true
	return nil
}
