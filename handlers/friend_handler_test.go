package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildForgeAPI/internal/docstore"
	"buildForgeAPI/middleware"
	"buildForgeAPI/services"
)

func newFriendRouter() *mux.Router {
	store := docstore.NewMemoryStore()
	reconciler := services.NewReconcilerService(store)
	handler := NewFriendHandler(services.NewRelationshipService(store, reconciler))

	router := mux.NewRouter()
	router.HandleFunc("/friends/requests", handler.SendFriendRequest).Methods("POST")
	router.HandleFunc("/friends/requests", handler.GetFriendRequests).Methods("GET")
	router.HandleFunc("/friends/requests/{memberId}/accept", handler.AcceptFriendRequest).Methods("POST")
	router.HandleFunc("/friends/requests/{memberId}/decline", handler.DeclineFriendRequest).Methods("POST")
	router.HandleFunc("/friends", handler.GetFriends).Methods("GET")
	return router
}

func doAs(t *testing.T, router *mux.Router, memberID, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(middleware.WithMemberID(req.Context(), memberID))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestFriendRequestLifecycleOverHTTP(t *testing.T) {
	router := newFriendRouter()

	rec := doAs(t, router, "u1", "POST", "/friends/requests", `{"to":"u2"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doAs(t, router, "u2", "GET", "/friends/requests", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, "u1", pending[0]["counterpart"])
	assert.Equal(t, "pending", pending[0]["status"])

	rec = doAs(t, router, "u2", "POST", "/friends/requests/u1/accept", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, member := range []string{"u1", "u2"} {
		rec = doAs(t, router, member, "GET", "/friends", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Friends []string `json:"friends"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Len(t, body.Friends, 1)
	}
}

func TestSendFriendRequestValidation(t *testing.T) {
	router := newFriendRouter()

	rec := doAs(t, router, "u1", "POST", "/friends/requests", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doAs(t, router, "u1", "POST", "/friends/requests", `{"to":"u1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAcceptUnknownRequestReturnsNotFound(t *testing.T) {
	router := newFriendRouter()

	rec := doAs(t, router, "u2", "POST", "/friends/requests/u9/accept", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDuplicateFriendshipReturnsConflict(t *testing.T) {
	router := newFriendRouter()

	doAs(t, router, "u1", "POST", "/friends/requests", `{"to":"u2"}`)
	doAs(t, router, "u2", "POST", "/friends/requests/u1/accept", "")

	rec := doAs(t, router, "u1", "POST", "/friends/requests", `{"to":"u2"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeclineOverHTTP(t *testing.T) {
	router := newFriendRouter()

	doAs(t, router, "u1", "POST", "/friends/requests", `{"to":"u2"}`)
	rec := doAs(t, router, "u2", "POST", "/friends/requests/u1/decline", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doAs(t, router, "u2", "GET", "/friends", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Friends []string `json:"friends"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Friends)
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	router := newFriendRouter()

	req := httptest.NewRequest("GET", "/friends", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
