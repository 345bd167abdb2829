package stitch

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
)

// Blend composites the two oriented halves into one canvas. Regions
// outside the overlap band are copied verbatim; inside it the halves
// are cross-faded with a weight ramping linearly from the left image to
// the right one so no seam line is visible. A non-zero off.DY shifts
// the right half vertically; anything left uncovered takes the
// background fill.
func Blend(left, right *image.RGBA, off Offset, bg color.Color) (*image.RGBA, error) {
	lb, rb := left.Bounds(), right.Bounds()
	lw, lh := lb.Dx(), lb.Dy()
	rw, rh := rb.Dx(), rb.Dy()

	if off.DX <= 0 {
		return nil, &BlendError{Reason: "non-positive overlap width"}
	}
	if off.DX > lw || off.DX > rw {
		return nil, &BlendError{Reason: fmt.Sprintf("overlap %d wider than input halves (%d, %d)", off.DX, lw, rw)}
	}

	outW := lw + rw - off.DX
	outH := lh
	if rh > outH {
		outH = rh
	}
	out := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.Draw(out, out.Bounds(), image.NewUniform(fill(bg)), image.Point{}, draw.Src)

	// Verbatim regions on either side of the band.
	draw.Draw(out, image.Rect(0, 0, lw-off.DX, lh), left, lb.Min, draw.Src)
	draw.Draw(out, image.Rect(lw, off.DY, outW, off.DY+rh), right, rb.Min.Add(image.Pt(off.DX, 0)), draw.Src)

	for x := lw - off.DX; x < lw; x++ {
		i := x - (lw - off.DX)
		wl := 0.5
		if off.DX > 1 {
			wl = float64(off.DX-1-i) / float64(off.DX-1)
		}
		for y := 0; y < outH; y++ {
			ry := y - off.DY
			inLeft := y < lh
			inRight := ry >= 0 && ry < rh
			oi := out.PixOffset(x, y)
			switch {
			case inLeft && inRight:
				li := left.PixOffset(lb.Min.X+x, lb.Min.Y+y)
				ri := right.PixOffset(rb.Min.X+i, rb.Min.Y+ry)
				for c := 0; c < 4; c++ {
					v := wl*float64(left.Pix[li+c]) + (1-wl)*float64(right.Pix[ri+c])
					out.Pix[oi+c] = uint8(math.Round(v))
				}
			case inLeft:
				li := left.PixOffset(lb.Min.X+x, lb.Min.Y+y)
				copy(out.Pix[oi:oi+4], left.Pix[li:li+4])
			case inRight:
				ri := right.PixOffset(rb.Min.X+i, rb.Min.Y+ry)
				copy(out.Pix[oi:oi+4], right.Pix[ri:ri+4])
			}
		}
	}
	return out, nil
}

func fill(c color.Color) color.Color {
	if c == nil {
		return color.White
	}
	return c
}
