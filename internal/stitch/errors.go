package stitch

import "fmt"

// AlignmentError reports that no candidate shift scored above the
// configured confidence threshold. The two halves likely do not overlap
// as expected: wrong page order, corrupted scan, or excessive noise.
type AlignmentError struct {
	Best      float64
	Threshold float64
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("overlap alignment failed: best confidence %.3f below threshold %.3f", e.Best, e.Threshold)
}

// BlendError reports invalid blend geometry after alignment.
type BlendError struct {
	Reason string
}

func (e *BlendError) Error() string {
	return "blend: " + e.Reason
}

// LevelsError reports a malformed levels normalization request.
type LevelsError struct {
	Reason string
}

func (e *LevelsError) Error() string {
	return "levels: " + e.Reason
}
