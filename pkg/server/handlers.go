package server

import (
	"encoding/json"
	"errors"
	"net/http"
)

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if req.Question == "" {
		s.errorResponse(w, http.StatusBadRequest, errors.New("question is required"))
		return
	}

	job, updates, err := s.service.Submit(r.Context(), req.Question)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.track(job, updates)

	s.jsonResponse(w, http.StatusCreated, job)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	list := make([]map[string]any, 0, len(s.tasks))
	for _, st := range s.tasks {
		st.mu.RLock()
		list = append(list, map[string]any{
			"id":       st.job.ID,
			"question": st.job.Question,
			"done":     st.done,
		})
		st.mu.RUnlock()
	}
	s.mu.RUnlock()

	s.jsonResponse(w, http.StatusOK, list)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	st, ok := s.task(r.PathValue("id"))
	if !ok {
		s.errorResponse(w, http.StatusNotFound, errors.New("task not found"))
		return
	}

	updates, done := st.snapshot(0)
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"id":       st.job.ID,
		"question": st.job.Question,
		"done":     done,
		"updates":  updates,
	})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	names, err := s.provider.List(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, names)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
