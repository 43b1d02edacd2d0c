package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"buildForgeAPI/middleware"
	"buildForgeAPI/services"
)

type LeaderboardHandler struct {
	leaderboardService *services.LeaderboardService
}

func NewLeaderboardHandler(leaderboardService *services.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboardService: leaderboardService,
	}
}

func (h *LeaderboardHandler) GetGlobalLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, ok := middleware.GetMemberID(ctx); !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	board, err := h.leaderboardService.GetGlobalLeaderboard(ctx, limit)
	if err != nil {
		respondWithServiceError(w, err, "Unable to fetch leaderboard")
		return
	}

	respondWithJSON(w, http.StatusOK, board)
}

func (h *LeaderboardHandler) UpdateScore(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	memberID, ok := middleware.GetMemberID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var body struct {
		Score  int64 `json:"score"`
		Streak int64 `json:"streak"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.leaderboardService.UpdateScore(ctx, memberID, body.Score, body.Streak); err != nil {
		respondWithServiceError(w, err, "Unable to update score")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Score updated"})
}
