package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

// SolidImage returns a w x h image filled with c.
func SolidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// PNGBytes encodes a solid w x h image as PNG.
func PNGBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, SolidImage(w, h, c)); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// JPEGBytes encodes a solid w x h image as JPEG.
func JPEGBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, SolidImage(w, h, c), nil); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// GIFBytes encodes a solid w x h image as GIF, a format the classifier rejects.
func GIFBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := gif.Encode(&buf, SolidImage(w, h, c), nil); err != nil {
		t.Fatalf("failed to encode gif: %v", err)
	}
	return buf.Bytes()
}

// Dish colours used as recognisable fixtures.
var (
	Red   = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	Green = color.RGBA{R: 30, G: 200, B: 30, A: 255}
	Blue  = color.RGBA{R: 30, G: 30, B: 200, A: 255}
)
