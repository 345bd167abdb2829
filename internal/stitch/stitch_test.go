package stitch

import (
	"bytes"
	"errors"
	"image"
	"image/draw"
	"math/rand"
	"testing"
)

// textureImage builds a deterministic noise raster. Noise gives the
// correlation search a single unambiguous peak.
func textureImage(seed int64, w, h int) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i+0] = uint8(rng.Intn(256))
			img.Pix[i+1] = uint8(rng.Intn(256))
			img.Pix[i+2] = uint8(rng.Intn(256))
			img.Pix[i+3] = 255
		}
	}
	return img
}

func crop(img *image.RGBA, r image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}

func samePix(a, b *image.RGBA) bool {
	return a.Bounds().Dx() == b.Bounds().Dx() &&
		a.Bounds().Dy() == b.Bounds().Dy() &&
		bytes.Equal(a.Pix, b.Pix)
}

// splitWithOverlap carves a source image into two halves sharing k
// columns, the way a two-pass scan of one page would.
func splitWithOverlap(src *image.RGBA, splitAt, k int) (left, right *image.RGBA) {
	b := src.Bounds()
	left = crop(src, image.Rect(0, 0, splitAt+k, b.Dy()))
	right = crop(src, image.Rect(splitAt, 0, b.Dx(), b.Dy()))
	return left, right
}

func TestProcessEndToEnd(t *testing.T) {
	const (
		srcW    = 900
		srcH    = 400
		overlap = 120
	)
	src := textureImage(7, srcW, srcH)
	left, right := splitWithOverlap(src, 390, overlap)

	opt := Options{
		Band:   Band{Fraction: 0.3, VerticalMargin: 50, MaxShear: 4, MinConfidence: 0.15},
		Levels: &Range{Low: 0, High: 255},
		Canvas: CanvasSpec{MaxSide: 2000},
	}
	res, err := Process(left, Rotate180(right), opt)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if res.Offset.DX != overlap {
		t.Fatalf("recovered overlap %d, want %d", res.Offset.DX, overlap)
	}
	if res.Offset.DY != 0 {
		t.Fatalf("recovered shear %d, want 0", res.Offset.DY)
	}
	if got := res.Composite.Bounds().Dx(); got != srcW {
		t.Fatalf("composite width %d, want %d", got, srcW)
	}

	// The overlap regions are identical, so blending must reproduce the
	// source with no visible seam artifact.
	if !samePix(res.Composite, src) {
		maxDelta := 0
		for i := range src.Pix {
			d := int(src.Pix[i]) - int(res.Composite.Pix[i])
			if d < 0 {
				d = -d
			}
			if d > maxDelta {
				maxDelta = d
			}
		}
		if maxDelta > 1 {
			t.Fatalf("seam artifact: max per-pixel delta %d", maxDelta)
		}
	}

	if side := res.Square.Bounds().Dx(); side != srcW || res.Square.Bounds().Dy() != srcW {
		t.Fatalf("square canvas %dx%d, want %dx%d", res.Square.Bounds().Dx(), res.Square.Bounds().Dy(), srcW, srcW)
	}
}

func TestProcessUnrelatedHalvesFailClosed(t *testing.T) {
	left := textureImage(21, 400, 400)
	right := textureImage(22, 400, 400)

	opt := DefaultOptions()
	opt.Band = Band{Fraction: 0.1, VerticalMargin: 20, MaxShear: 2, MinConfidence: 0.3}

	_, err := Process(left, right, opt)
	var alignErr *AlignmentError
	if !errors.As(err, &alignErr) {
		t.Fatalf("expected AlignmentError, got %v", err)
	}
	if alignErr.Best >= alignErr.Threshold {
		t.Fatalf("reported best %.3f not below threshold %.3f", alignErr.Best, alignErr.Threshold)
	}
}

func TestProcessDoesNotMutateInputs(t *testing.T) {
	src := textureImage(9, 600, 300)
	left, right := splitWithOverlap(src, 260, 80)
	second := Rotate180(right)

	leftCopy := append([]uint8(nil), left.Pix...)
	secondCopy := append([]uint8(nil), second.Pix...)

	opt := DefaultOptions()
	opt.Band = Band{Fraction: 0.35, VerticalMargin: 30, MaxShear: 2, MinConfidence: 0.15}
	if _, err := Process(left, second, opt); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if !bytes.Equal(left.Pix, leftCopy) {
		t.Fatal("left input mutated")
	}
	if !bytes.Equal(second.Pix, secondCopy) {
		t.Fatal("second input mutated")
	}
}
