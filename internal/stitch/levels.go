package stitch

import (
	"fmt"
	"image"
	"math"
)

// Range holds the low/high intensity bounds used to rescale a composite.
type Range struct {
	Low  uint8
	High uint8
}

// FullRange leaves intensities untouched.
func FullRange() Range { return Range{Low: 0, High: 255} }

// AutoRange derives per-image bounds from the luminance histogram: the
// intensities at loPct and hiPct cumulative mass. Deterministic for a
// given input; degenerate histograms fall back to the full range.
func AutoRange(img *image.RGBA, loPct, hiPct float64) Range {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return FullRange()
	}

	var hist [256]int
	for y := 0; y < h; y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			v := int(math.Round(luma(img.Pix[off+x*4 : off+x*4+3])))
			if v > 255 {
				v = 255
			}
			hist[v]++
		}
	}

	total := w * h
	loCount := int(loPct * float64(total))
	hiCount := int(hiPct * float64(total))
	if loCount < 1 {
		loCount = 1
	}
	if hiCount < loCount {
		hiCount = loCount
	}

	low, high := 0, 255
	cum := 0
	for v := 0; v < 256; v++ {
		cum += hist[v]
		if cum >= loCount {
			low = v
			break
		}
	}
	cum = 0
	for v := 0; v < 256; v++ {
		cum += hist[v]
		if cum >= hiCount {
			high = v
			break
		}
	}
	if high <= low {
		return FullRange()
	}
	return Range{Low: uint8(low), High: uint8(high)}
}

// Normalize rescales every color channel so [r.Low, r.High] maps onto
// the full output range, improving scan contrast. Purely tonal:
// geometry is untouched and alpha passes through. Identity when r is
// the full range.
func Normalize(img *image.RGBA, r Range) (*image.RGBA, error) {
	if r.High <= r.Low {
		return nil, &LevelsError{Reason: fmt.Sprintf("invalid range [%d, %d]", r.Low, r.High)}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 || len(img.Pix) == 0 {
		return nil, &LevelsError{Reason: "empty image"}
	}

	var lut [256]uint8
	scale := 255.0 / float64(int(r.High)-int(r.Low))
	for v := 0; v < 256; v++ {
		m := math.Round(float64(v-int(r.Low)) * scale)
		if m < 0 {
			m = 0
		}
		if m > 255 {
			m = 255
		}
		lut[v] = uint8(m)
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := img.PixOffset(b.Min.X, b.Min.Y+y)
		dst := out.PixOffset(0, y)
		for x := 0; x < w; x++ {
			si, di := src+x*4, dst+x*4
			out.Pix[di+0] = lut[img.Pix[si+0]]
			out.Pix[di+1] = lut[img.Pix[si+1]]
			out.Pix[di+2] = lut[img.Pix[si+2]]
			out.Pix[di+3] = img.Pix[si+3]
		}
	}
	return out, nil
}

// luma is the Rec.601 luminance of an RGB triple.
func luma(p []uint8) float64 {
	return 0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])
}
