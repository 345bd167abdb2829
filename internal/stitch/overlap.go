package stitch

import (
	"image"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// Band describes the edge region of each half searched for alignment.
type Band struct {
	// Fraction of the page width used as the search strip on each
	// facing edge. The recovered overlap can never exceed this strip.
	Fraction float64
	// VerticalMargin excludes rows at the top and bottom of the strip
	// where scanner-edge artifacts accumulate.
	VerticalMargin int
	// MaxShear is the vertical shift range searched to absorb feed skew.
	MaxShear int
	// MinConfidence rejects alignments whose best correlation falls
	// below this value.
	MinConfidence float64
}

// DefaultBand matches an A4 feed scanned at 300 DPI.
func DefaultBand() Band {
	return Band{
		Fraction:       0.10,
		VerticalMargin: 50,
		MaxShear:       8,
		MinConfidence:  0.15,
	}
}

// Offset describes how the right half aligns against the left half. DX
// is the overlap width in pixels between the left image's trailing edge
// and the right image's leading edge. DY is the vertical shift applied
// to the right half (positive moves it down). Confidence is the winning
// correlation clamped to [0, 1].
type Offset struct {
	DX         int
	DY         int
	Confidence float64
}

// maxSampleRows bounds the number of strip rows entering each
// correlation so search cost stays independent of scan resolution.
const maxSampleRows = 512

// Estimate finds the overlap between left's trailing edge and right's
// leading edge. Halves of differing heights are clipped to the common
// height before searching. Candidate shifts are scored with Pearson
// correlation over the overlapping strip sub-regions; the winner must
// clear band.MinConfidence or the estimate fails with *AlignmentError.
func Estimate(left, right *image.RGBA, band Band) (Offset, error) {
	lb, rb := left.Bounds(), right.Bounds()
	lw, rw := lb.Dx(), rb.Dx()
	h := lb.Dy()
	if rh := rb.Dy(); rh < h {
		h = rh
	}

	minW := lw
	if rw < minW {
		minW = rw
	}
	bandW := int(band.Fraction * float64(minW))
	if bandW < 2 {
		bandW = 2
	}
	if bandW > minW {
		bandW = minW
	}

	margin := band.VerticalMargin
	if margin < 0 || 2*margin >= h {
		margin = 0
	}
	rowStep := 1
	if n := h - 2*margin; n > maxSampleRows {
		rowStep = n / maxSampleRows
	}

	s := &searcher{
		leftCols:  lumaColumns(left, lw-bandW, bandW),
		rightCols: lumaColumns(right, 0, bandW),
		yStart:    margin,
		yEnd:      h - margin,
		yStep:     rowStep,
	}

	// Exhaustive search over the bounded (dx, dy) grid. Every candidate
	// evaluation is independent and read-only, so they fan out across
	// goroutines without changing the result.
	shear := band.MaxShear
	if shear < 0 {
		shear = 0
	}
	cands := make([]candidate, 0, (bandW-1)*(2*shear+1))
	for w := 2; w <= bandW; w++ {
		for dy := -shear; dy <= shear; dy++ {
			cands = append(cands, candidate{dx: w, dy: dy})
		}
	}
	best := s.searchParallel(cands)

	confidence := best.score
	if confidence < 0 {
		confidence = 0
	}
	if confidence < band.MinConfidence {
		return Offset{}, &AlignmentError{Best: confidence, Threshold: band.MinConfidence}
	}
	return Offset{DX: best.dx, DY: best.dy, Confidence: confidence}, nil
}

type candidate struct {
	dx, dy int
	score  float64
}

// searcher holds the two luminance strips and the sampled row window.
// Scoring is read-only, so candidates can be evaluated concurrently.
type searcher struct {
	leftCols  [][]float64
	rightCols [][]float64
	yStart    int
	yEnd      int
	yStep     int
}

func (s *searcher) searchParallel(cands []candidate) candidate {
	workers := runtime.GOMAXPROCS(0)
	if workers > len(cands) {
		workers = len(cands)
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	chunk := (len(cands) + workers - 1) / workers
	for i := 0; i < len(cands); i += chunk {
		end := i + chunk
		if end > len(cands) {
			end = len(cands)
		}
		wg.Add(1)
		go func(part []candidate) {
			defer wg.Done()
			for j := range part {
				part[j].score = s.score(part[j].dx, part[j].dy)
			}
		}(cands[i:end])
	}
	wg.Wait()

	best := candidate{dx: 0, dy: 0, score: math.Inf(-1)}
	for _, c := range cands {
		if better(c, best) {
			best = c
		}
	}
	return best
}

// better prefers the higher score; exact ties go to the smaller overlap
// and then the smaller shear, keeping the reduction deterministic no
// matter how the candidates were partitioned.
func better(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if aw, bw := abs(a.dx), abs(b.dx); aw != bw {
		return aw < bw
	}
	return abs(a.dy) < abs(b.dy)
}

// score correlates the last dx columns of the left strip against the
// first dx columns of the right strip, the right strip shifted down by
// dy. Flat or degenerate regions score -1.
func (s *searcher) score(dx, dy int) float64 {
	base := len(s.leftCols) - dx
	if base < 0 {
		return -1
	}
	rightH := len(s.rightCols[0])

	xs := make([]float64, 0, (s.yEnd-s.yStart)/s.yStep*dx+dx)
	ys := make([]float64, 0, cap(xs))
	for y := s.yStart; y < s.yEnd; y += s.yStep {
		ry := y - dy
		if ry < 0 || ry >= rightH {
			continue
		}
		for c := 0; c < dx; c++ {
			xs = append(xs, s.leftCols[base+c][y])
			ys = append(ys, s.rightCols[c][ry])
		}
	}
	if len(xs) < 8 {
		return -1
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return -1
	}
	return r
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// lumaColumns extracts n full-height luminance columns starting at x0.
func lumaColumns(img *image.RGBA, x0, n int) [][]float64 {
	b := img.Bounds()
	h := b.Dy()
	cols := make([][]float64, n)
	for c := range cols {
		cols[c] = make([]float64, h)
	}
	for y := 0; y < h; y++ {
		off := img.PixOffset(b.Min.X+x0, b.Min.Y+y)
		for c := 0; c < n; c++ {
			cols[c][y] = luma(img.Pix[off+c*4 : off+c*4+3])
		}
	}
	return cols
}
