package render

import (
	"bytes"
	"image"
	"image/png"
	"testing"
)

func TestRasterizeHTMLProducesValidPNG(t *testing.T) {
	out, err := RasterizeHTML("<p>Hello from the rasterizer</p>")
	if err != nil {
		t.Fatalf("RasterizeHTML: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected non-empty PNG bytes")
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		t.Errorf("cropped image has non-positive dimensions: %v", b)
	}
	if b.Dx() >= canvasWidth && b.Dy() >= canvasHeight {
		t.Errorf("expected crop to shrink from full canvas, got %v", b)
	}
}

func TestRasterizeEmptyHTMLReturnsBlankCanvas(t *testing.T) {
	out, err := RasterizeHTML("")
	if err != nil {
		t.Fatalf("RasterizeHTML: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if got := img.Bounds(); got != image.Rect(0, 0, canvasWidth, canvasHeight) {
		t.Errorf("blank canvas bounds = %v, want full %dx%d", got, canvasWidth, canvasHeight)
	}
}
