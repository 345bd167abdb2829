package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"pagestitch/internal/pipeline"
	"pagestitch/internal/storage"
	"pagestitch/internal/watch"

	"github.com/gorilla/mux"
)

// Server exposes job status and live results over HTTP while
// optionally watching directories for new documents.
type Server struct {
	addr     string
	store    *storage.Store
	pipeline *pipeline.Pipeline
	watcher  *watch.Watcher
	hub      *Hub
	log      *slog.Logger
	server   *http.Server
}

// NewServer creates a server. When watchDirs is non-empty, documents
// appearing there are submitted through submit once their writes
// settle.
func NewServer(
	addr string,
	store *storage.Store,
	pipe *pipeline.Pipeline,
	watchDirs []string,
	submit watch.SubmitFunc,
	log *slog.Logger,
) (*Server, error) {

	s := &Server{
		addr:     addr,
		store:    store,
		pipeline: pipe,
		hub:      newHub(log),
		log:      log,
	}

	if len(watchDirs) > 0 {
		watcher, err := watch.New(watchDirs, 0, log, submit)
		if err != nil {
			log.Warn("failed to set up document watcher", "error", err)
		} else {
			s.watcher = watcher
			log.Info("document watcher initialized", "dirs", watchDirs)
		}
	}

	return s, nil
}

// Start begins serving and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.run(ctx)
	go s.pumpResults(ctx)

	r := mux.NewRouter()
	s.setupRoutes(r)

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		s.log.Info("shutting down server")

		if s.watcher != nil {
			s.watcher.Stop()
		}

		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(ctxShutdown)
	}()

	s.log.Info("server starting", "addr", s.addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) setupRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/jobs", s.handleJobs).Methods("GET")
	r.HandleFunc("/jobs/{id}", s.handleJob).Methods("GET")
	r.HandleFunc("/jobs/{id}/metrics", s.handleJobMetrics).Methods("GET")
	r.HandleFunc("/stream", s.handleJobStream).Methods("GET")
	r.HandleFunc("/ws", s.hub.handleWebSocket).Methods("GET")
}

// pumpResults forwards pipeline results to websocket clients.
func (s *Server) pumpResults(ctx context.Context) {
	resCh, unsubscribe := s.pipeline.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-resCh:
			if !ok {
				return
			}
			payload, err := json.Marshal(resultPayload(res))
			if err != nil {
				continue
			}
			s.hub.broadcast <- payload
		}
	}
}

func resultPayload(res pipeline.Result) map[string]any {
	p := map[string]any{
		"id":    res.Job.ID,
		"type":  string(res.Job.Type),
		"input": res.Job.InputPath,
		"meta":  res.Meta,
	}
	if res.Error != nil {
		p["error"] = res.Error.Error()
	}
	return p
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.RecentJobs(100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recs)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	meta, err := s.store.JobMeta(id)
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(meta)
}

func (s *Server) handleJobMetrics(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	recs, err := s.store.MetricsForJob(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recs)
}

func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	resCh, unsubscribe := s.pipeline.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-r.Context().Done():
			return
		case res, ok := <-resCh:
			if !ok {
				return
			}
			payload, _ := json.Marshal(resultPayload(res))
			_, _ = w.Write([]byte("data: " + string(payload) + "\n\n"))
			flusher.Flush()
		}
	}
}
