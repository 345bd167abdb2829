// Package watch monitors directories for newly scanned documents and
// feeds them into the processing pipeline once the scanner has
// finished writing them.
package watch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pagestitch/internal/fsutil"
)

const defaultSettle = 2 * time.Second

// SubmitFunc enqueues a document for stitching.
type SubmitFunc func(path string)

// Watcher monitors directories and submits each new document after its
// writes have settled. Scanners write large PDFs incrementally; acting
// on the first event would hand the pipeline a truncated file.
type Watcher struct {
	watcher *fsnotify.Watcher
	log     *slog.Logger
	submit  SubmitFunc
	settle  time.Duration
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a Watcher over dirs. settle is the quiet period a file
// must hold before it is submitted; zero selects the default.
func New(dirs []string, settle time.Duration, logger *slog.Logger, submit SubmitFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if settle <= 0 {
		settle = defaultSettle
	}

	w := &Watcher{
		watcher: fsw,
		log:     logger,
		submit:  submit,
		settle:  settle,
		done:    make(chan struct{}),
		pending: make(map[string]*time.Timer),
	}

	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, err
		}
		logger.Info("watching directory", "dir", dir)
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Stop terminates the watcher and cancels pending submissions.
func (w *Watcher) Stop() error {
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()

	w.mu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !fsutil.IsDocument(event.Name) {
		return
	}

	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		w.touch(event.Name)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.forget(event.Name)
	}
}

// touch (re)arms the settle timer for path. Every write pushes the
// submission out until the file has been quiet for the full period.
func (w *Watcher) touch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		w.log.Info("document settled", "path", path)
		w.submit(path)
	})
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
		delete(w.pending, path)
	}
}
