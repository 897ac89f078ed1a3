// Package server exposes the job service over HTTP and websockets.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"ooda/pkg/jobs"
	"ooda/pkg/models"
)

// Server serves the task API.
type Server struct {
	service  *jobs.Service
	provider models.Provider
	srv      *http.Server

	mu    sync.RWMutex
	tasks map[string]*taskState
}

// taskState accumulates a job's updates so late websocket subscribers
// can replay the transcript before streaming live updates.
type taskState struct {
	mu       sync.RWMutex
	job      jobs.Job
	updates  []jobs.Update
	done     bool
	watchers map[chan struct{}]struct{}
}

// New creates a new Server.
func New(service *jobs.Service, provider models.Provider) *Server {
	return &Server{
		service:  service,
		provider: provider,
		tasks:    make(map[string]*taskState),
	}
}

// Handler builds the route table. Exposed separately from Start so
// tests can drive it with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("/api/tasks/{id}/events", s.handleTaskWebSocket)

	mux.HandleFunc("GET /api/models", s.handleListModels)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	return s.corsMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	slog.Info("starting api server", "addr", addr)
	return s.srv.ListenAndServe()
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, err error) {
	slog.Error("api error", "error", err)
	s.jsonResponse(w, status, map[string]string{"error": err.Error()})
}

// track drains a job's update stream into its state, waking watchers
// after every append.
func (s *Server) track(job *jobs.Job, updates <-chan jobs.Update) *taskState {
	st := &taskState{
		job:      *job,
		watchers: make(map[chan struct{}]struct{}),
	}

	s.mu.Lock()
	s.tasks[job.ID] = st
	s.mu.Unlock()

	go func() {
		for u := range updates {
			st.append(u)
		}
		st.finish()
	}()

	return st
}

func (s *Server) task(id string) (*taskState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.tasks[id]
	return st, ok
}

func (st *taskState) append(u jobs.Update) {
	st.mu.Lock()
	st.updates = append(st.updates, u)
	st.notifyLocked()
	st.mu.Unlock()
}

func (st *taskState) finish() {
	st.mu.Lock()
	st.done = true
	st.notifyLocked()
	st.mu.Unlock()
}

func (st *taskState) notifyLocked() {
	for ch := range st.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// snapshot returns the updates past offset and whether the job is done.
func (st *taskState) snapshot(offset int) ([]jobs.Update, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if offset >= len(st.updates) {
		return nil, st.done
	}
	tail := make([]jobs.Update, len(st.updates)-offset)
	copy(tail, st.updates[offset:])
	return tail, st.done
}

func (st *taskState) watch() (chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	st.mu.Lock()
	st.watchers[ch] = struct{}{}
	st.mu.Unlock()
	return ch, func() {
		st.mu.Lock()
		delete(st.watchers, ch)
		st.mu.Unlock()
	}
}
