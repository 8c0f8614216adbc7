// Package render rasterizes HTML into a 1200x1000 PNG cropped to the
// inverse-color content bounding box, laying text out on a canvas with
// golang.org/x/image/font/basicfont and cropping/encoding with stdlib
// image/draw and image/png.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"mailwatch/internal/decoder"
)

const (
	canvasWidth  = 1200
	canvasHeight = 1000
	marginX      = 24
	marginY      = 24
	lineHeight   = 16
)

var (
	bg = color.White
	fg = color.Black
)

// RasterizeHTML renders an HTML document (as produced by decoder.RenderHTML)
// to a PNG image cropped to the bounding box of its non-background content.
// If the document has no renderable content, it returns the uncropped
// blank canvas encoded as PNG.
func RasterizeHTML(html string) ([]byte, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, canvasWidth, canvasHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(fg),
		Face: face,
	}

	text := decoder.PlainText(html)
	lines := wrapText(drawer, text, canvasWidth-2*marginX)

	y := marginY + lineHeight
	for _, line := range lines {
		if y > canvasHeight-marginY {
			break
		}
		drawer.Dot = fixed.Point26_6{X: fixed.I(marginX), Y: fixed.I(y)}
		drawer.DrawString(line)
		y += lineHeight
	}

	cropped := cropToContent(canvas, bg)
	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// wrapText greedily wraps words to fit maxWidth pixels using drawer's face
// metrics, splitting on explicit newlines first.
func wrapText(drawer *font.Drawer, text string, maxWidth int) []string {
	var out []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		var line string
		for _, w := range words {
			candidate := w
			if line != "" {
				candidate = line + " " + w
			}
			if drawer.MeasureString(candidate).Ceil() > maxWidth && line != "" {
				out = append(out, line)
				line = w
				continue
			}
			line = candidate
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// cropToContent finds the bounding box of every pixel whose color differs
// from bg and returns a new image cropped to it. If no such pixel exists,
// it returns img unchanged.
func cropToContent(img *image.RGBA, bg color.Color) image.Image {
	bounds := img.Bounds()
	bgR, bgG, bgB, bgA := bg.RGBA()

	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X, bounds.Min.Y
	found := false

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			if r == bgR && g == bgG && b == bgB && a == bgA {
				continue
			}
			found = true
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if !found {
		return img
	}
	// Give the cropped content a small margin so glyph descenders aren't clipped.
	rect := image.Rect(
		clamp(minX-4, bounds.Min.X, bounds.Max.X),
		clamp(minY-4, bounds.Min.Y, bounds.Max.Y),
		clamp(maxX+4, bounds.Min.X, bounds.Max.X),
		clamp(maxY+4, bounds.Min.Y, bounds.Max.Y),
	)
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
