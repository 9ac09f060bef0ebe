// Package embedding talks to the face embedding server that detects faces in
// an image and returns one embedding per face.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/rollcall/internal/facematch"
)

const defaultEmbeddingURL = "http://localhost:8000"

// ErrUnexpectedDimension is returned when the server answers with embeddings
// of a different size than the client was configured for.
var ErrUnexpectedDimension = errors.New("unexpected embedding dimension")

// Client detects faces through the embedding server's /embed/face endpoint.
// It implements facematch.Extractor.
type Client struct {
	baseURL string
	dim     int
	maxSize int
	client  *http.Client
}

// NewClient creates a new embedding client. A dim of 0 accepts any embedding
// size the server returns.
func NewClient(baseURL string, dim int) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		dim:     dim,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// WithMaxSize makes the client downscale images larger than maxSize pixels on
// their longest side before upload. Zero disables downscaling.
func (c *Client) WithMaxSize(maxSize int) *Client {
	c.maxSize = maxSize
	return c
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// DetectFaces returns one Face per detected face, in the order the server
// reports them. An image without faces yields an empty slice and no error.
func (c *Client) DetectFaces(ctx context.Context, image []byte) ([]facematch.Face, error) {
	if c.maxSize > 0 {
		resized, err := PrepareFrame(image, c.maxSize)
		if err != nil {
			return nil, err
		}
		image = resized
	}

	resp, err := c.ComputeFaceEmbeddings(ctx, image)
	if err != nil {
		return nil, err
	}

	detected := make([]facematch.Face, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.Embedding) == 0 {
			return nil, fmt.Errorf("face %d: empty embedding returned", f.FaceIndex)
		}
		if c.dim > 0 && len(f.Embedding) != c.dim {
			return nil, fmt.Errorf("%w: face %d has %d values, want %d",
				ErrUnexpectedDimension, f.FaceIndex, len(f.Embedding), c.dim)
		}
		detected = append(detected, facematch.Face{
			BBox:      f.BBox,
			Embedding: toEmbedding(f.Embedding),
			DetScore:  f.DetScore,
		})
	}
	return detected, nil
}

// ComputeFaceEmbeddings detects faces and computes their embeddings
func (c *Client) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &faceResp, nil
}

// postMultipartImage constructs a multipart form with the image data and posts
// it to the given endpoint. The part carries a Content-Type detected from the
// image's magic bytes.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

func toEmbedding(v []float32) facematch.Embedding {
	out := make(facematch.Embedding, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
