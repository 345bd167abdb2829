package pipeline

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"math/rand"
	"path/filepath"
	"testing"

	"pagestitch/internal/config"
	"pagestitch/internal/decoder"
	"pagestitch/internal/stitch"
)

func testConfig() *config.Config {
	return &config.Config{
		Processing: config.Processing{ParallelJobs: 1},
		Decoder:    config.Decoder{DPI: 300},
		Stitch: config.Stitch{
			BandFraction:   0.3,
			VerticalMargin: 20,
			MaxShear:       4,
			MinConfidence:  0.15,
		},
		Levels: config.Levels{Auto: false, Low: 0, High: 255},
		Canvas: config.Canvas{MaxSide: 2000, Background: 255},
	}
}

// scanHalves builds two page rasters that share an overlap band of k
// columns, the way a split two-pass scan does.
func scanHalves(seed int64, w, h, k int) (first, second *image.RGBA) {
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < len(src.Pix); i += 4 {
		v := uint8(rng.Intn(256))
		src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3] = v, v, v, 255
	}

	splitAt := w / 2
	first = crop(src, image.Rect(0, 0, splitAt+k, h))
	second = stitch.Rotate180(crop(src, image.Rect(splitAt, 0, w, h)))
	return first, second
}

func crop(src *image.RGBA, r image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			out.Set(x, y, src.At(r.Min.X+x, r.Min.Y+y))
		}
	}
	return out
}

type writeRecorder struct {
	paths []string
}

func (w *writeRecorder) write(img *image.RGBA, path string) error {
	w.paths = append(w.paths, path)
	return nil
}

func (w *writeRecorder) has(path string) bool {
	for _, p := range w.paths {
		if p == path {
			return true
		}
	}
	return false
}

func TestRouterStitchHappyPath(t *testing.T) {
	first, second := scanHalves(7, 600, 300, 80)
	rec := &writeRecorder{}
	r := &router{
		log: slog.Default(),
		cfg: testConfig(),
		decodeFn: func(path string, dpi float64) (*image.RGBA, *image.RGBA, error) {
			return first, second, nil
		},
		writeFn: rec.write,
	}

	outDir := t.TempDir()
	job := Job{ID: "stitch-1", Type: JobStitch, InputPath: "/in/scan.pdf", Output: outDir}

	res := r.Process(context.Background(), job)
	if res.Error != nil {
		t.Fatalf("expected nil error, got %v", res.Error)
	}
	if res.Meta["overlap_px"] != 80 {
		t.Fatalf("overlap_px = %v, want 80", res.Meta["overlap_px"])
	}
	if res.Meta["width"] != 600 {
		t.Fatalf("composite width = %v, want 600", res.Meta["width"])
	}
	for _, suffix := range []string{"-stitched.png", "-scaled.png", "-square.png"} {
		want := filepath.Join(outDir, "scan"+suffix)
		if !rec.has(want) {
			t.Errorf("artifact %s not written; wrote %v", want, rec.paths)
		}
	}
	if len(rec.paths) != 3 {
		t.Errorf("wrote %d artifacts, want 3 (pages not requested)", len(rec.paths))
	}
}

func TestRouterStitchKeepsPagesWhenRequested(t *testing.T) {
	first, second := scanHalves(11, 600, 300, 60)
	rec := &writeRecorder{}
	r := &router{
		log: slog.Default(),
		cfg: testConfig(),
		decodeFn: func(path string, dpi float64) (*image.RGBA, *image.RGBA, error) {
			return first, second, nil
		},
		writeFn: rec.write,
	}

	outDir := t.TempDir()
	job := Job{
		ID:        "stitch-2",
		Type:      JobStitch,
		InputPath: "/in/scan.pdf",
		Output:    outDir,
		Options:   map[string]any{"keepPages": true},
	}

	res := r.Process(context.Background(), job)
	if res.Error != nil {
		t.Fatalf("expected nil error, got %v", res.Error)
	}
	for _, name := range []string{"scan-1.png", "scan-2.png"} {
		if !rec.has(filepath.Join(outDir, name)) {
			t.Errorf("page raster %s not written", name)
		}
	}
}

func TestRouterStitchLowConfidenceFails(t *testing.T) {
	// Unrelated noise on each side; the estimator must refuse to guess.
	left, _ := scanHalves(21, 600, 300, 80)
	right, _ := scanHalves(99, 600, 300, 80)
	rec := &writeRecorder{}
	cfg := testConfig()
	cfg.Stitch.MinConfidence = 0.3
	r := &router{
		log: slog.Default(),
		cfg: cfg,
		decodeFn: func(path string, dpi float64) (*image.RGBA, *image.RGBA, error) {
			return left, stitch.Rotate180(right), nil
		},
		writeFn: rec.write,
	}

	job := Job{ID: "stitch-3", Type: JobStitch, InputPath: "/in/noise.pdf", Output: t.TempDir()}
	res := r.Process(context.Background(), job)

	var alignErr *stitch.AlignmentError
	if !errors.As(res.Error, &alignErr) {
		t.Fatalf("expected AlignmentError, got %v", res.Error)
	}
	if len(rec.paths) != 0 {
		t.Errorf("no artifacts should be written on failure, wrote %v", rec.paths)
	}
}

func TestRouterStitchPropagatesExtractionError(t *testing.T) {
	r := &router{
		log: slog.Default(),
		cfg: testConfig(),
		decodeFn: func(path string, dpi float64) (*image.RGBA, *image.RGBA, error) {
			return nil, nil, &decoder.ExtractionError{Path: path, Pages: 3}
		},
		writeFn: (&writeRecorder{}).write,
	}

	job := Job{ID: "stitch-4", Type: JobStitch, InputPath: "/in/triple.pdf", Output: t.TempDir()}
	res := r.Process(context.Background(), job)

	var exErr *decoder.ExtractionError
	if !errors.As(res.Error, &exErr) {
		t.Fatalf("expected ExtractionError, got %v", res.Error)
	}
	if exErr.Pages != 3 {
		t.Errorf("pages = %d, want 3", exErr.Pages)
	}
}

func TestRouterRejectsUnknownJobType(t *testing.T) {
	r := &router{log: slog.Default(), cfg: testConfig()}
	res := r.Process(context.Background(), Job{ID: "x", Type: JobType("transcode")})
	if res.Error == nil {
		t.Fatal("expected error for unknown job type")
	}
}

func TestPipelineIsolatesFailingDocuments(t *testing.T) {
	p := New(context.Background(), 2, slog.Default(), nil, testConfig())
	p.processor = processorFunc(func(ctx context.Context, job Job) Result {
		if job.InputPath == "/in/bad.pdf" {
			return Result{Job: job, Error: errors.New("boom")}
		}
		return Result{Job: job, Meta: map[string]any{"ok": true}}
	})

	results, unsub := p.Subscribe()
	defer unsub()

	for _, path := range []string{"/in/bad.pdf", "/in/good.pdf"} {
		if err := p.Submit(Job{ID: path, Type: JobStitch, InputPath: path}); err != nil {
			t.Fatalf("Submit(%s): %v", path, err)
		}
	}

	got := map[string]error{}
	for i := 0; i < 2; i++ {
		res := <-results
		got[res.Job.InputPath] = res.Error
	}
	p.Stop()

	if got["/in/bad.pdf"] == nil {
		t.Error("bad document should have failed")
	}
	if got["/in/good.pdf"] != nil {
		t.Errorf("good document failed: %v", got["/in/good.pdf"])
	}
}

type processorFunc func(ctx context.Context, job Job) Result

func (f processorFunc) Process(ctx context.Context, job Job) Result { return f(ctx, job) }
