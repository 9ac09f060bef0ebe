package embedding

import (
	"bytes"
	"image/color"
	"image/jpeg"
	"testing"
)

func TestPrepareFrame(t *testing.T) {
	tests := []struct {
		name       string
		width      int
		height     int
		maxSize    int
		wantWidth  int
		wantHeight int
	}{
		{"landscape", 400, 200, 100, 100, 50},
		{"portrait", 200, 400, 100, 50, 100},
		{"square", 300, 300, 150, 150, 150},
		{"thin strip", 1000, 2, 100, 100, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := PrepareFrame(encodeJPEG(createTestImage(tc.width, tc.height, color.White)), tc.maxSize)
			if err != nil {
				t.Fatalf("PrepareFrame failed: %v", err)
			}
			cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
			if err != nil {
				t.Fatalf("output is not a JPEG: %v", err)
			}
			if cfg.Width != tc.wantWidth || cfg.Height != tc.wantHeight {
				t.Errorf("got %dx%d; want %dx%d", cfg.Width, cfg.Height, tc.wantWidth, tc.wantHeight)
			}
		})
	}
}

func TestPrepareFrame_SmallImageUntouched(t *testing.T) {
	data := encodeJPEG(createTestImage(40, 30, color.Black))

	out, err := PrepareFrame(data, 100)
	if err != nil {
		t.Fatalf("PrepareFrame failed: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("image within bounds must be returned unchanged")
	}
}

func TestPrepareFrame_InvalidImage(t *testing.T) {
	if _, err := PrepareFrame([]byte("garbage"), 100); err == nil {
		t.Error("expected decode error, got nil")
	}
}
