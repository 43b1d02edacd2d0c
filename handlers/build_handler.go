package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"buildForgeAPI/internal/types/build"
	"buildForgeAPI/middleware"
	"buildForgeAPI/services"
)

type BuildHandler struct {
	buildService      *services.BuildService
	engagementService *services.EngagementService
}

func NewBuildHandler(buildService *services.BuildService, engagementService *services.EngagementService) *BuildHandler {
	return &BuildHandler{
		buildService:      buildService,
		engagementService: engagementService,
	}
}

func (h *BuildHandler) CreateBuild(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	memberID, ok := middleware.GetMemberID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req build.CreateBuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.buildService.CreateBuild(ctx, memberID, &req)
	if err != nil {
		respondWithServiceError(w, err, "Unable to create build")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *BuildHandler) GetBuild(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	buildID := mux.Vars(r)["buildId"]
	b, err := h.buildService.GetBuild(ctx, buildID)
	if err != nil {
		respondWithServiceError(w, err, "Unable to fetch build")
		return
	}

	respondWithJSON(w, http.StatusOK, b)
}

func (h *BuildHandler) GetPublicBuilds(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	builds, err := h.buildService.ListPublicBuilds(ctx, limit)
	if err != nil {
		respondWithServiceError(w, err, "Unable to list public builds")
		return
	}

	respondWithJSON(w, http.StatusOK, builds)
}

func (h *BuildHandler) LikeBuild(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	memberID, ok := middleware.GetMemberID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	buildID := mux.Vars(r)["buildId"]
	if err := h.engagementService.Like(ctx, buildID, memberID); err != nil {
		respondWithServiceError(w, err, "Unable to like build")
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{"message": "Build liked"})
}

func (h *BuildHandler) UnlikeBuild(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	memberID, ok := middleware.GetMemberID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	buildID := mux.Vars(r)["buildId"]
	if err := h.engagementService.Unlike(ctx, buildID, memberID); err != nil {
		respondWithServiceError(w, err, "Unable to unlike build")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Build unliked"})
}

func (h *BuildHandler) GetPopularity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	buildID := mux.Vars(r)["buildId"]
	popularity, err := h.engagementService.GetPopularity(ctx, buildID)
	if err != nil {
		respondWithServiceError(w, err, "Unable to fetch popularity")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]int64{"popularity": popularity})
}
