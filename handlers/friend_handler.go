package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"buildForgeAPI/middleware"
	"buildForgeAPI/services"
)

type FriendHandler struct {
	relationshipService *services.RelationshipService
}

func NewFriendHandler(relationshipService *services.RelationshipService) *FriendHandler {
	return &FriendHandler{
		relationshipService: relationshipService,
	}
}

func (h *FriendHandler) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	memberID, ok := middleware.GetMemberID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var body struct {
		To string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.To == "" {
		respondWithError(w, http.StatusBadRequest, "Request body must include 'to'")
		return
	}

	if err := h.relationshipService.SendRequest(ctx, memberID, body.To); err != nil {
		respondWithServiceError(w, err, "Unable to send friend request")
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{"message": "Friend request sent"})
}

func (h *FriendHandler) AcceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	memberID, ok := middleware.GetMemberID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	other := mux.Vars(r)["memberId"]
	if other == "" {
		respondWithError(w, http.StatusBadRequest, "Path parameter 'memberId' is required")
		return
	}

	if err := h.relationshipService.Accept(ctx, memberID, other); err != nil {
		respondWithServiceError(w, err, "Unable to accept friend request")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Friend request accepted"})
}

func (h *FriendHandler) DeclineFriendRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	memberID, ok := middleware.GetMemberID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	other := mux.Vars(r)["memberId"]
	if other == "" {
		respondWithError(w, http.StatusBadRequest, "Path parameter 'memberId' is required")
		return
	}

	if err := h.relationshipService.Decline(ctx, memberID, other); err != nil {
		respondWithServiceError(w, err, "Unable to decline friend request")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Friend request declined"})
}

func (h *FriendHandler) GetFriendRequests(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	memberID, ok := middleware.GetMemberID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	records, err := h.relationshipService.ListPending(ctx, memberID)
	if err != nil {
		respondWithServiceError(w, err, "Unable to list friend requests")
		return
	}

	respondWithJSON(w, http.StatusOK, records)
}

func (h *FriendHandler) GetFriends(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	memberID, ok := middleware.GetMemberID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	friends, err := h.relationshipService.ListFriends(ctx, memberID)
	if err != nil {
		respondWithServiceError(w, err, "Unable to list friends")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"friends": friends})
}

// respondWithServiceError maps the service error taxonomy onto HTTP. A
// partial multi-document write surfaces as a retryable 503, never as a
// distinct "inconsistent" state.
func respondWithServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrAlreadyFriends) || errors.Is(err, services.ErrAlreadyLiked):
		respondWithError(w, http.StatusConflict, err.Error())
	case services.IsValidation(err):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case services.IsNotFound(err):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrTransientStore):
		respondWithError(w, http.StatusServiceUnavailable, "Temporary failure, please retry")
	default:
		log.Printf("Unhandled service error: %v", err)
		respondWithError(w, http.StatusInternalServerError, fallback)
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Failed to marshal response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
