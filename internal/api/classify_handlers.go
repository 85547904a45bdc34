package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/terra-clan/ability-tracker/internal/classifier"
	"github.com/terra-clan/ability-tracker/internal/models"
)

const maxBatchTitles = 100

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req models.ClassifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "title is required")
		return
	}

	respondJSON(w, http.StatusOK, s.classifier.Classify(r.Context(), req.Title))
}

func (s *Server) handleClassifyBatch(w http.ResponseWriter, r *http.Request) {
	var req models.ClassifyBatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Titles) == 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "titles must not be empty")
		return
	}
	if len(req.Titles) > maxBatchTitles {
		respondError(w, http.StatusBadRequest, "validation_error", "too many titles")
		return
	}

	results := s.classifier.ClassifyBatch(r.Context(), req.Titles)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"total":   len(results),
	})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	var req models.ClassifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	respondJSON(w, http.StatusOK, map[string][]string{
		"suggestions": classifier.Suggestions(req.Title),
	})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req models.ImportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "text is required")
		return
	}

	report, err := s.importer.Import(r.Context(), req.Text)
	if err != nil {
		respondServiceError(w, err, "failed to import calendar")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// Score handlers

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		day, err := time.ParseInLocation("2006-01-02", dateStr, s.tracker.Location())
		if err != nil {
			respondError(w, http.StatusBadRequest, "validation_error", "date must be YYYY-MM-DD")
			return
		}
		score, err := s.tracker.DailyScore(r.Context(), day)
		if err != nil {
			respondServiceError(w, err, "failed to compute daily score")
			return
		}
		respondJSON(w, http.StatusOK, score)
		return
	}

	days, ok := queryInt(r, "range", 7)
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "range must be an integer")
		return
	}

	scores, err := s.tracker.ListDailyScores(r.Context(), days)
	if err != nil {
		respondServiceError(w, err, "failed to list daily scores")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"scores": scores,
		"total":  len(scores),
	})
}

func (s *Server) handleScoreRules(w http.ResponseWriter, r *http.Request) {
	rules := s.tracker.Rules().Rules()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"total": len(rules),
	})
}
