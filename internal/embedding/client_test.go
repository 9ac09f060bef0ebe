package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newFaceServer(t *testing.T, resp FaceResponse, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/embed/face" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if len(data) == 0 {
			http.Error(w, "empty file", http.StatusBadRequest)
			return
		}
		w.Header().Set("X-Part-Content-Type", header.Header.Get("Content-Type"))
		if status != http.StatusOK {
			http.Error(w, "model not loaded", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDetectFaces(t *testing.T) {
	srv := newFaceServer(t, FaceResponse{
		FacesCount: 2,
		Faces: []FaceDetection{
			{FaceIndex: 0, Dim: 3, Embedding: []float32{0.5, 0.25, 0}, BBox: []float64{1, 2, 3, 4}, DetScore: 0.98},
			{FaceIndex: 1, Dim: 3, Embedding: []float32{1, 0, 0}, BBox: []float64{5, 6, 7, 8}, DetScore: 0.7},
		},
		Model: "buffalo_l",
	}, http.StatusOK)

	detected, err := NewClient(srv.URL+"/", 3).DetectFaces(context.Background(), encodeJPEG(createTestImage(20, 20, color.White)))
	if err != nil {
		t.Fatalf("DetectFaces failed: %v", err)
	}
	if len(detected) != 2 {
		t.Fatalf("expected 2 faces, got %d", len(detected))
	}
	if detected[0].Embedding[0] != 0.5 || detected[0].Embedding[1] != 0.25 {
		t.Errorf("unexpected embedding %v", detected[0].Embedding)
	}
	if detected[1].BBox[0] != 5 || detected[1].DetScore != 0.7 {
		t.Errorf("unexpected second face %+v", detected[1])
	}
}

func TestDetectFaces_NoFaces(t *testing.T) {
	srv := newFaceServer(t, FaceResponse{FacesCount: 0}, http.StatusOK)

	detected, err := NewClient(srv.URL, 512).DetectFaces(context.Background(), []byte("not an image at all"))
	if err != nil {
		t.Fatalf("DetectFaces failed: %v", err)
	}
	if len(detected) != 0 {
		t.Errorf("expected no faces, got %d", len(detected))
	}
}

func TestDetectFaces_DimensionMismatch(t *testing.T) {
	srv := newFaceServer(t, FaceResponse{
		FacesCount: 1,
		Faces:      []FaceDetection{{Embedding: []float32{1, 2}}},
	}, http.StatusOK)

	_, err := NewClient(srv.URL, 512).DetectFaces(context.Background(), []byte("img"))
	if !errors.Is(err, ErrUnexpectedDimension) {
		t.Errorf("expected ErrUnexpectedDimension, got %v", err)
	}
}

func TestDetectFaces_EmptyEmbedding(t *testing.T) {
	srv := newFaceServer(t, FaceResponse{
		FacesCount: 1,
		Faces:      []FaceDetection{{FaceIndex: 0}},
	}, http.StatusOK)

	if _, err := NewClient(srv.URL, 0).DetectFaces(context.Background(), []byte("img")); err == nil {
		t.Error("expected error for empty embedding, got nil")
	}
}

func TestDetectFaces_ServerError(t *testing.T) {
	srv := newFaceServer(t, FaceResponse{}, http.StatusServiceUnavailable)

	if _, err := NewClient(srv.URL, 0).DetectFaces(context.Background(), []byte("img")); err == nil {
		t.Error("expected error for 503 response, got nil")
	}
}

func TestDetectFaces_Cancelled(t *testing.T) {
	srv := newFaceServer(t, FaceResponse{}, http.StatusOK)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewClient(srv.URL, 0).DetectFaces(ctx, []byte("img")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDetectFaces_DownscalesLargeImages(t *testing.T) {
	var uploaded []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		uploaded, _ = io.ReadAll(file)
		json.NewEncoder(w).Encode(FaceResponse{})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 0).WithMaxSize(50)
	if _, err := client.DetectFaces(context.Background(), encodeJPEG(createTestImage(200, 100, color.Black))); err != nil {
		t.Fatalf("DetectFaces failed: %v", err)
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(uploaded))
	if err != nil {
		t.Fatalf("uploaded image is not a JPEG: %v", err)
	}
	if cfg.Width != 50 || cfg.Height != 25 {
		t.Errorf("expected 50x25 upload, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"bmp", []byte{0x42, 0x4D, 0, 0, 0, 0, 0, 0}, "image/bmp"},
		{"short", []byte{0xFF, 0xD8}, "application/octet-stream"},
		{"unknown", []byte("plain text"), "application/octet-stream"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := detectMIMEType(tc.data); got != tc.expected {
				t.Errorf("detectMIMEType() = %q; want %q", got, tc.expected)
			}
		})
	}
}

// Helper functions

func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(img image.Image) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}
