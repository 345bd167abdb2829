// Package stitch reassembles an oversized document scanned in two
// overlapping halves into one contiguous raster image. Every stage is a
// pure function over raster buffers; nothing here touches the
// filesystem or retains state across documents.
package stitch

import "image"

// Options configures a single document stitch.
type Options struct {
	Band Band
	// Levels selects fixed normalization bounds when non-nil, matching
	// legacy scanner calibration; otherwise bounds come from the
	// per-image luminance percentiles below.
	Levels         *Range
	LowPercentile  float64
	HighPercentile float64
	Canvas         CanvasSpec
}

// DefaultOptions returns the calibration used for A4 feeds at 300 DPI.
func DefaultOptions() Options {
	return Options{
		Band:           DefaultBand(),
		LowPercentile:  0.01,
		HighPercentile: 0.99,
		Canvas:         DefaultCanvas(),
	}
}

// Result carries every artifact produced for one document.
type Result struct {
	Composite *image.RGBA
	Scaled    *image.RGBA
	Square    *image.RGBA
	// Left and Right are the orientation-normalized halves, retained so
	// the orchestrator can persist the pre-blend images when asked to.
	Left   *image.RGBA
	Right  *image.RGBA
	Offset Offset
	Levels Range
}

// Process runs the full pipeline over a decoded page pair: the second
// page is rotated 180 degrees to undo the scanner feed inversion, the
// halves are aligned and blended, the composite tonally normalized and
// finally padded for display. No stage mutates the images it was
// handed; every failure carries its stage's typed error.
func Process(first, second *image.RGBA, opt Options) (*Result, error) {
	right := Rotate180(second)

	off, err := Estimate(first, right, opt.Band)
	if err != nil {
		return nil, err
	}

	composite, err := Blend(first, right, off, opt.Canvas.Background)
	if err != nil {
		return nil, err
	}

	rng := FullRange()
	if opt.Levels != nil {
		rng = *opt.Levels
	} else if opt.LowPercentile > 0 || opt.HighPercentile > 0 {
		rng = AutoRange(composite, opt.LowPercentile, opt.HighPercentile)
	}
	normalized, err := Normalize(composite, rng)
	if err != nil {
		return nil, err
	}

	scaled, square := Pad(normalized, opt.Canvas)
	return &Result{
		Composite: normalized,
		Scaled:    scaled,
		Square:    square,
		Left:      first,
		Right:     right,
		Offset:    off,
		Levels:    rng,
	}, nil
}
