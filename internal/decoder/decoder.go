// Package decoder renders source documents into in-memory rasters and
// writes the pipeline's image artifacts back to disk. It is the only
// package that talks to ImageMagick; everything downstream works on
// stdlib image buffers.
package decoder

import (
	"fmt"
	"image"

	"gopkg.in/gographics/imagick.v3/imagick"
)

// ExtractionError reports a source document with the wrong page count.
// Not recoverable: the document is skipped.
type ExtractionError struct {
	Path  string
	Pages int
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: expected a 2-page document, got %d page(s)", e.Path, e.Pages)
}

// PagePair renders the document at dpi and returns its two pages as
// RGBA rasters in document order. When we scan an A3 document in an A4
// scanner we get two files of about A4 size; the second page comes out
// inverted 180 degrees, which the stitch pipeline undoes.
func PagePair(path string, dpi float64) (first, second *image.RGBA, err error) {
	imagick.Initialize()
	defer imagick.Terminate()

	mw := imagick.NewMagickWand()
	defer mw.Destroy()

	if err := mw.SetResolution(dpi, dpi); err != nil {
		return nil, nil, fmt.Errorf("set render resolution: %w", err)
	}
	if err := mw.ReadImage(path); err != nil {
		return nil, nil, fmt.Errorf("read document %s: %w", path, err)
	}

	n := int(mw.GetNumberImages())
	if n != 2 {
		return nil, nil, &ExtractionError{Path: path, Pages: n}
	}

	pages := make([]*image.RGBA, 0, n)
	for i := 0; i < n; i++ {
		mw.SetIteratorIndex(i)
		page, err := wandToRGBA(mw)
		if err != nil {
			return nil, nil, fmt.Errorf("export page %d of %s: %w", i+1, path, err)
		}
		pages = append(pages, page)
	}
	return pages[0], pages[1], nil
}

// WritePNG encodes img to path through ImageMagick.
func WritePNG(img *image.RGBA, path string) error {
	imagick.Initialize()
	defer imagick.Terminate()

	mw := imagick.NewMagickWand()
	defer mw.Destroy()

	b := img.Bounds()
	if err := mw.ConstituteImage(uint(b.Dx()), uint(b.Dy()), "RGBA", imagick.PIXEL_CHAR, img.Pix); err != nil {
		return fmt.Errorf("constitute %s: %w", path, err)
	}
	if err := mw.SetImageFormat("png"); err != nil {
		return fmt.Errorf("set png format: %w", err)
	}
	if err := mw.WriteImage(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func wandToRGBA(mw *imagick.MagickWand) (*image.RGBA, error) {
	w := mw.GetImageWidth()
	h := mw.GetImageHeight()
	pixels, err := mw.ExportImagePixels(0, 0, w, h, "RGBA", imagick.PIXEL_CHAR)
	if err != nil {
		return nil, err
	}
	raw, ok := pixels.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected pixel export type %T", pixels)
	}

	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	copy(img.Pix, raw)
	return img, nil
}
