package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/ability-tracker/internal/models"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := models.TaskFilters{
		Status:   models.TaskStatus(q.Get("status")),
		Category: q.Get("category"),
	}

	if dateStr := q.Get("date"); dateStr != "" {
		day, err := time.ParseInLocation("2006-01-02", dateStr, s.tracker.Location())
		if err != nil {
			respondError(w, http.StatusBadRequest, "validation_error", "date must be YYYY-MM-DD")
			return
		}
		next := day.AddDate(0, 0, 1)
		filters.From = &day
		filters.To = &next
	}

	limit, ok := queryInt(r, "limit", 50)
	if !ok || limit < 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "limit must be a non-negative integer")
		return
	}
	offset, ok := queryInt(r, "offset", 0)
	if !ok || offset < 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "offset must be a non-negative integer")
		return
	}
	filters.Limit = limit
	filters.Offset = offset

	tasks, err := s.tracker.ListTasks(r.Context(), filters)
	if err != nil {
		respondServiceError(w, err, "failed to list tasks")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"total": len(tasks),
	})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := s.tracker.CreateTask(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, "failed to create task")
		return
	}

	respondJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tracker.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, "failed to get task")
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := s.tracker.UpdateTask(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, err, "failed to update task")
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.DeleteTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err, "failed to delete task")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "task deleted",
	})
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	var req models.CompleteTaskRequest
	// an empty body completes the task at 100%
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	task, progress, err := s.tracker.CompleteTask(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, err, "failed to complete task")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"task":     task,
		"progress": progress,
	})
}
