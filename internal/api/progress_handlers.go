package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/ability-tracker/internal/models"
)

// Ability handlers

func (s *Server) handleListAbilities(w http.ResponseWriter, r *http.Request) {
	list, err := s.tracker.ListAbilities(r.Context())
	if err != nil {
		respondServiceError(w, err, "failed to list abilities")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"abilities": list,
		"total":     len(list),
	})
}

func (s *Server) handleSeedAbilities(w http.ResponseWriter, r *http.Request) {
	created, err := s.tracker.SeedAbilities(r.Context())
	if err != nil {
		respondServiceError(w, err, "failed to seed abilities")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"created": created})
}

func (s *Server) handleGrantExperience(w http.ResponseWriter, r *http.Request) {
	var req models.GrantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "expGain must be positive")
		return
	}

	progress, err := s.tracker.GrantExperience(r.Context(), chi.URLParam(r, "name"), req.Amount)
	if err != nil {
		respondServiceError(w, err, "failed to grant experience")
		return
	}
	respondJSON(w, http.StatusOK, progress)
}

// Reward handlers

func (s *Server) handleListRewards(w http.ResponseWriter, r *http.Request) {
	rewardList, achievementList, err := s.tracker.ListRewards(r.Context())
	if err != nil {
		respondServiceError(w, err, "failed to list rewards")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rewards":      rewardList,
		"achievements": achievementList,
	})
}

func (s *Server) handleSeedRewards(w http.ResponseWriter, r *http.Request) {
	created, err := s.tracker.SeedRewards(r.Context())
	if err != nil {
		respondServiceError(w, err, "failed to seed rewards")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"created": created})
}

func (s *Server) handleEvaluateRewards(w http.ResponseWriter, r *http.Request) {
	unlocks, err := s.tracker.EvaluateRewards(r.Context())
	if err != nil {
		respondServiceError(w, err, "failed to evaluate rewards")
		return
	}
	respondJSON(w, http.StatusOK, unlocks)
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	switch chi.URLParam(r, "kind") {
	case "rewards":
		reward, err := s.tracker.UnlockReward(r.Context(), id)
		if err != nil {
			respondServiceError(w, err, "failed to unlock reward")
			return
		}
		respondJSON(w, http.StatusOK, reward)
	case "achievements":
		achievement, err := s.tracker.UnlockAchievement(r.Context(), id)
		if err != nil {
			respondServiceError(w, err, "failed to unlock achievement")
			return
		}
		respondJSON(w, http.StatusOK, achievement)
	default:
		respondError(w, http.StatusNotFound, "not_found", "unknown unlock kind")
	}
}
