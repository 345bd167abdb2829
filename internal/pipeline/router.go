package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"

	"pagestitch/internal/config"
	"pagestitch/internal/decoder"
	"pagestitch/internal/fsutil"
	"pagestitch/internal/stitch"
	"pagestitch/internal/storage"
)

// router implements Processor and routes jobs to their concrete handlers.
type router struct {
	log   *slog.Logger
	store *storage.Store
	cfg   *config.Config

	// Injected for tests; production wiring uses the decoder package.
	decodeFn func(path string, dpi float64) (first, second *image.RGBA, err error)
	writeFn  func(img *image.RGBA, path string) error
}

func newRouter(logger *slog.Logger, store *storage.Store, cfg *config.Config) Processor {
	return &router{
		log:      logger,
		store:    store,
		cfg:      cfg,
		decodeFn: decoder.PagePair,
		writeFn:  decoder.WritePNG,
	}
}

func (r *router) Process(ctx context.Context, job Job) Result {
	switch job.Type {
	case JobStitch:
		return r.handleStitch(ctx, job)
	default:
		return Result{Job: job, Error: fmt.Errorf("unknown job type: %s", job.Type)}
	}
}

func (r *router) handleStitch(ctx context.Context, job Job) Result {
	if err := ctx.Err(); err != nil {
		return Result{Job: job, Error: err}
	}

	dpi := r.cfg.Decoder.DPI
	if v, ok := job.Options["dpi"].(float64); ok && v > 0 {
		dpi = v
	}

	first, second, err := r.decodeFn(job.InputPath, dpi)
	if err != nil {
		return Result{Job: job, Error: err}
	}

	opt := r.stitchOptions(job.Options)
	res, err := stitch.Process(first, second, opt)
	if err != nil {
		return Result{Job: job, Error: err}
	}

	outDir := job.Output
	if outDir == "" {
		outDir = filepath.Dir(job.InputPath)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{Job: job, Error: fmt.Errorf("create output directory: %w", err)}
	}

	stem := fsutil.Stem(job.InputPath)
	artifacts := map[string]*image.RGBA{
		"composite": res.Composite,
		"scaled":    res.Scaled,
		"square":    res.Square,
	}
	suffix := map[string]string{
		"composite": "-stitched.png",
		"scaled":    "-scaled.png",
		"square":    "-square.png",
	}
	written := make(map[string]string, len(artifacts))
	for name, img := range artifacts {
		path := filepath.Join(outDir, stem+suffix[name])
		if err := r.writeFn(img, path); err != nil {
			return Result{Job: job, Error: fmt.Errorf("write %s: %w", name, err)}
		}
		written[name] = path
	}

	keepPages := r.cfg.Processing.KeepPages
	if v, ok := job.Options["keepPages"].(bool); ok {
		keepPages = v
	}
	if keepPages {
		for i, img := range []*image.RGBA{res.Left, res.Right} {
			path := filepath.Join(outDir, fmt.Sprintf("%s-%d.png", stem, i+1))
			if err := r.writeFn(img, path); err != nil {
				return Result{Job: job, Error: fmt.Errorf("write page %d: %w", i+1, err)}
			}
			written[fmt.Sprintf("page%d", i+1)] = path
		}
	}

	if r.store != nil {
		cb := res.Composite.Bounds()
		_ = r.store.RecordMetrics(storage.MetricsRecord{
			JobID:           job.ID,
			DocumentPath:    job.InputPath,
			OverlapPx:       res.Offset.DX,
			ShearPx:         res.Offset.DY,
			Confidence:      res.Offset.Confidence,
			CompositeWidth:  cb.Dx(),
			CompositeHeight: cb.Dy(),
			LevelsLow:       int(res.Levels.Low),
			LevelsHigh:      int(res.Levels.High),
		})
	}

	meta := map[string]any{
		"overlap_px": res.Offset.DX,
		"shear_px":   res.Offset.DY,
		"confidence": res.Offset.Confidence,
		"width":      res.Composite.Bounds().Dx(),
		"height":     res.Composite.Bounds().Dy(),
	}
	for name, path := range written {
		meta[name] = path
	}
	return Result{Job: job, Error: nil, Meta: meta}
}

func (r *router) stitchOptions(opts map[string]any) stitch.Options {
	o := stitch.DefaultOptions()

	o.Band.Fraction = r.cfg.Stitch.BandFraction
	o.Band.VerticalMargin = r.cfg.Stitch.VerticalMargin
	o.Band.MaxShear = r.cfg.Stitch.MaxShear
	o.Band.MinConfidence = r.cfg.Stitch.MinConfidence

	if !r.cfg.Levels.Auto {
		o.Levels = &stitch.Range{Low: r.cfg.Levels.Low, High: r.cfg.Levels.High}
	}
	if r.cfg.Levels.LowPercentile > 0 {
		o.LowPercentile = r.cfg.Levels.LowPercentile
	}
	if r.cfg.Levels.HighPercentile > 0 {
		o.HighPercentile = r.cfg.Levels.HighPercentile
	}

	o.Canvas.MaxSide = r.cfg.Canvas.MaxSide
	bg := r.cfg.Canvas.Background
	o.Canvas.Background = color.RGBA{R: bg, G: bg, B: bg, A: 255}

	if v, ok := opts["minConfidence"].(float64); ok {
		o.Band.MinConfidence = v
	}
	if v, ok := opts["maxSide"].(int); ok && v > 0 {
		o.Canvas.MaxSide = v
	}
	return o
}
