package capture

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// FrameFilter drops frames that are near-duplicates of the last frame it let
// through, so a static scene is not sent to the extractor every tick.
type FrameFilter struct {
	threshold int
	last      uint64
	has       bool
}

// NewFrameFilter creates a filter treating frames whose difference hashes are
// within threshold bits as duplicates. A negative threshold disables
// filtering.
func NewFrameFilter(threshold int) *FrameFilter {
	return &FrameFilter{threshold: threshold}
}

// Duplicate reports whether data repeats the previous kept frame. Frames that
// cannot be decoded are never reported as duplicates.
func (f *FrameFilter) Duplicate(data []byte) bool {
	if f == nil || f.threshold < 0 {
		return false
	}
	h, err := DifferenceHash(data)
	if err != nil {
		return false
	}
	if f.has && HammingDistance(f.last, h) <= f.threshold {
		return true
	}
	f.last = h
	f.has = true
	return false
}

// Reset forgets the last kept frame.
func (f *FrameFilter) Reset() {
	if f != nil {
		f.has = false
	}
}

// DifferenceHash computes a 64-bit difference hash of an encoded image.
func DifferenceHash(data []byte) (uint64, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to decode image: %w", err)
	}
	return computeDHash(img), nil
}

// HammingDistance computes the Hamming distance between two 64-bit hashes.
func HammingDistance(hash1, hash2 uint64) int {
	xor := hash1 ^ hash2
	distance := 0
	for xor != 0 {
		distance++
		xor &= xor - 1 // Clear lowest set bit
	}
	return distance
}

// computeDHash compares horizontally adjacent pixels of a 9x8 grayscale
// thumbnail, one bit per comparison.
func computeDHash(img image.Image) uint64 {
	small := image.NewRGBA(image.Rect(0, 0, 9, 8))
	draw.BiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Over, nil)
	gray := toGrayscale(small)

	var hash uint64
	bit := 63
	for y := range 8 {
		for x := range 8 {
			if gray[x][y] > gray[x+1][y] {
				hash |= 1 << bit
			}
			bit--
		}
	}

	return hash
}

// toGrayscale converts an image to a 2D array of grayscale values (0-255).
func toGrayscale(img *image.RGBA) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := make([][]float64, width)
	for x := range width {
		gray[x] = make([]float64, height)
		for y := range height {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma formula.
			gray[x][y] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}

	return gray
}
