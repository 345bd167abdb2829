package stitch

import "image"

// Rotate180 returns a copy of img rotated 180 degrees: row and column
// order reversed, pixel values unchanged. Applying it twice yields the
// original image.
func Rotate180(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := img.PixOffset(b.Min.X, b.Min.Y+y)
		dst := out.PixOffset(0, h-1-y)
		for x := 0; x < w; x++ {
			si := src + x*4
			di := dst + (w-1-x)*4
			copy(out.Pix[di:di+4], img.Pix[si:si+4])
		}
	}
	return out
}
