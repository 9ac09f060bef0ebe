package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MJPEGSource reads a multipart/x-mixed-replace stream as served by most IP
// cameras and webcam bridges.
type MJPEGSource struct {
	url      string
	username string
	password string
	client   *http.Client
}

// NewMJPEGSource creates a source for the MJPEG stream at url.
func NewMJPEGSource(url, username, password string) *MJPEGSource {
	return &MJPEGSource{
		url:      url,
		username: username,
		password: password,
		client:   &http.Client{},
	}
}

func (s *MJPEGSource) Name() string { return "mjpeg:" + redactURL(s.url) }

// Open connects to the stream. The connection lives until Close or until ctx
// is cancelled.
func (s *MJPEGSource) Open(ctx context.Context) (Stream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, s.url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connecting to stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("camera error (status %d)", resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("not an MJPEG stream (content type %q)", resp.Header.Get("Content-Type"))
	}

	return &mjpegStream{
		body:   resp.Body,
		reader: multipart.NewReader(resp.Body, strings.TrimPrefix(params["boundary"], "--")),
		cancel: cancel,
	}, nil
}

type mjpegStream struct {
	body   io.ReadCloser
	reader *multipart.Reader
	cancel context.CancelFunc
	seq    int
}

func (m *mjpegStream) Read(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	part, err := m.reader.NextPart()
	if err != nil {
		if ctx.Err() != nil {
			return Frame{}, ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("reading stream part: %w", err)
	}
	defer part.Close()

	data, err := io.ReadAll(io.LimitReader(part, maxFrameBytes))
	if err != nil {
		return Frame{}, fmt.Errorf("reading frame: %w", err)
	}

	m.seq++
	return Frame{Data: data, Seq: m.seq, CapturedAt: time.Now()}, nil
}

func (m *mjpegStream) Close() error {
	m.cancel()
	return m.body.Close()
}

// redactURL drops credentials embedded in a camera URL.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
