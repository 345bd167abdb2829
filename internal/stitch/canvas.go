package stitch

import (
	"image"
	"image/color"
	stddraw "image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
)

// CanvasSpec bounds the display copies of a composite.
type CanvasSpec struct {
	// MaxSide caps the larger side of the scaled copy.
	MaxSide int
	// Background fills the square canvas around the centered image.
	Background color.Color
}

// DefaultCanvas matches the legacy 2000 px viewer bound with a white
// fill.
func DefaultCanvas() CanvasSpec {
	return CanvasSpec{MaxSide: 2000, Background: color.White}
}

// Pad returns an aspect-preserving copy whose larger side is bounded by
// spec.MaxSide (bilinear resampling, left untouched when already small
// enough) and a centered square-padded copy for thumbnailing. The
// square's side is min(max(w, h), spec.MaxSide).
func Pad(img *image.RGBA, spec CanvasSpec) (scaled, square *image.RGBA) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	longest := w
	if h > longest {
		longest = h
	}

	nw, nh := w, h
	if spec.MaxSide > 0 && longest > spec.MaxSide {
		if w >= h {
			nw = spec.MaxSide
			nh = int(math.Round(float64(h) * float64(spec.MaxSide) / float64(w)))
		} else {
			nh = spec.MaxSide
			nw = int(math.Round(float64(w) * float64(spec.MaxSide) / float64(h)))
		}
		if nw < 1 {
			nw = 1
		}
		if nh < 1 {
			nh = 1
		}
		scaled = image.NewRGBA(image.Rect(0, 0, nw, nh))
		xdraw.BiLinear.Scale(scaled, scaled.Bounds(), img, b, xdraw.Src, nil)
	} else {
		scaled = image.NewRGBA(image.Rect(0, 0, w, h))
		stddraw.Draw(scaled, scaled.Bounds(), img, b.Min, stddraw.Src)
	}

	side := nw
	if nh > side {
		side = nh
	}
	square = image.NewRGBA(image.Rect(0, 0, side, side))
	stddraw.Draw(square, square.Bounds(), image.NewUniform(fill(spec.Background)), image.Point{}, stddraw.Src)
	at := image.Pt((side-nw)/2, (side-nh)/2)
	stddraw.Draw(square, image.Rectangle{Min: at, Max: at.Add(image.Pt(nw, nh))}, scaled, image.Point{}, stddraw.Src)
	return scaled, square
}
