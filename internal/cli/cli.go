package cli

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"pagestitch/internal/config"
	"pagestitch/internal/pipeline"
	"pagestitch/internal/server"
	"pagestitch/internal/storage"
	"pagestitch/internal/watch"
)

type pipelineClient interface {
	Submit(job pipeline.Job) error
	Subscribe() (<-chan pipeline.Result, func())
}

type serveFunc func(ctx context.Context, addr string, watchDirs []string, output string, r *Root) error

func defaultServe(ctx context.Context, addr string, watchDirs []string, output string, r *Root) error {
	real, ok := r.pipeline.(*pipeline.Pipeline)
	if !ok {
		return fmt.Errorf("pipeline does not support server operation")
	}
	submit := func(path string) {
		_ = r.enqueue(ctx, r.stitchJob(path, output, nil))
	}
	srv, err := server.NewServer(addr, r.store, real, watchDirs, submit, r.log)
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}

// Root wires CLI commands to the pipeline.
type Root struct {
	pipeline pipelineClient
	cfg      *config.Config
	log      *slog.Logger
	store    *storage.Store
	serveFn  serveFunc
	watchFn  watchFunc
}

type watchFunc func(dirs []string, settle time.Duration, logger *slog.Logger, submit watch.SubmitFunc) (stopper, error)

type stopper interface {
	Stop() error
}

func defaultWatch(dirs []string, settle time.Duration, logger *slog.Logger, submit watch.SubmitFunc) (stopper, error) {
	return watch.New(dirs, settle, logger, submit)
}

// NewRoot constructs the CLI root.
func NewRoot(pl *pipeline.Pipeline, cfg *config.Config, logger *slog.Logger, store *storage.Store) *Root {
	return &Root{
		pipeline: pl,
		cfg:      cfg,
		log:      logger,
		store:    store,
		serveFn:  defaultServe,
		watchFn:  defaultWatch,
	}
}

// stitchJob builds a stitch job for one document. extra overrides are
// merged over the base options.
func (r *Root) stitchJob(input, output string, extra map[string]any) pipeline.Job {
	opts := map[string]any{"source": "cli"}
	for k, v := range extra {
		opts[k] = v
	}
	return pipeline.Job{
		ID:        newID("stitch"),
		Type:      pipeline.JobStitch,
		InputPath: input,
		Output:    output,
		Options:   opts,
	}
}

func (r *Root) enqueueAndWait(ctx context.Context, job pipeline.Job) error {
	resCh, unsubscribe := r.pipeline.Subscribe()
	defer unsubscribe()
	if err := r.enqueue(ctx, job); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res, ok := <-resCh:
			if !ok {
				return fmt.Errorf("pipeline stopped before completion")
			}
			if res.Job.ID == job.ID {
				return res.Error
			}
		}
	}
}

// enqueueAndWaitAll submits all jobs and waits for every result. A
// failed document is reported and the rest keep going; the returned
// error summarizes the failures.
func (r *Root) enqueueAndWaitAll(ctx context.Context, jobs []pipeline.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	resCh, unsubscribe := r.pipeline.Subscribe()
	defer unsubscribe()

	waiting := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		if err := r.enqueue(ctx, job); err != nil {
			return err
		}
		waiting[job.ID] = struct{}{}
	}

	failed := 0
	for len(waiting) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res, ok := <-resCh:
			if !ok {
				return fmt.Errorf("pipeline stopped with %d document(s) outstanding", len(waiting))
			}
			if _, ours := waiting[res.Job.ID]; !ours {
				continue
			}
			delete(waiting, res.Job.ID)
			if res.Error != nil {
				failed++
				r.log.Error("document failed", "input", res.Job.InputPath, "error", res.Error)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d document(s) failed", failed, len(jobs))
	}
	return nil
}

func (r *Root) enqueue(ctx context.Context, job pipeline.Job) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := r.pipeline.Submit(job); err != nil {
		return err
	}

	r.log.Info("job queued", "type", job.Type, "id", job.ID, "input", job.InputPath)
	return nil
}

func newID(prefix string) string {
	ts := time.Now().UTC().Format("20060102T150405")
	return fmt.Sprintf("%s-%s-%04d", prefix, ts, rand.Intn(10000))
}
