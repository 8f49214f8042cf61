package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server/internal/domain"
)

func getJSON(t *testing.T, srv *httptest.Server, path string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer token")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestGetUserCreations(t *testing.T) {
	wf := &stubWorkflows{list: []domain.Creation{
		{ID: "c1", OwnerID: "user_prem", Kind: domain.KindArticle, Result: "text", Likes: []string{}, CreatedAt: time.Now()},
		{ID: "c2", OwnerID: "user_prem", Kind: domain.KindImage, Result: "https://cdn/x.png", Likes: []string{"u2"}, CreatedAt: time.Now()},
	}}
	srv := newTestServer(t, wf, premiumSess())

	resp, body := getJSON(t, srv, "/api/user/get-user-creation")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	data, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 2)
	first, ok := data[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "c1", first["id"])
	assert.Equal(t, "article", first["type"])
}

func TestGetPublishedCreations(t *testing.T) {
	wf := &stubWorkflows{list: []domain.Creation{
		{ID: "p1", Kind: domain.KindImage, Published: true, Likes: []string{"u1", "u2"}},
	}}
	srv := newTestServer(t, wf, premiumSess())

	resp, body := getJSON(t, srv, "/api/user/get-publish-creation")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 1)
}

func TestToggleLikeCreation(t *testing.T) {
	wf := &stubWorkflows{likes: &domain.LikeState{Liked: true, TotalLikes: 3, Likes: []string{"a", "b", "user_prem"}}}
	srv := newTestServer(t, wf, premiumSess())

	resp, body := postJSON(t, srv, "/api/user/toggle-like-creation", map[string]any{"id": "c1"})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["liked"])
	assert.Equal(t, float64(3), body["totalLikes"])
	likes, ok := body["likes"].([]any)
	require.True(t, ok)
	assert.Len(t, likes, 3)
}

func TestToggleLikeUnknownCreation(t *testing.T) {
	wf := &stubWorkflows{err: fmt.Errorf("lookup: %w", domain.ErrNotFound)}
	srv := newTestServer(t, wf, premiumSess())

	resp, body := postJSON(t, srv, "/api/user/toggle-like-creation", map[string]any{"id": "ghost"})

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Creation not found", body["message"])
}

func TestTogglePublishCreation(t *testing.T) {
	wf := &stubWorkflows{pub: true}
	srv := newTestServer(t, wf, premiumSess())

	resp, body := postJSON(t, srv, "/api/user/toggle-publish-creation", map[string]any{"id": "c1"})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["published"])
}

func TestInternalErrorHidesDetailInProduction(t *testing.T) {
	wf := &stubWorkflows{err: fmt.Errorf("pg: connection reset")}
	srv := newTestServerEnv(t, wf, premiumSess(), "production")

	resp, body := postJSON(t, srv, "/api/user/toggle-like-creation", map[string]any{"id": "c1"})

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Something went wrong", body["message"])
	_, leaked := body["error"]
	assert.False(t, leaked, "internal detail must not leak in production")
}

func TestInternalErrorShowsDetailOutsideProduction(t *testing.T) {
	wf := &stubWorkflows{err: fmt.Errorf("pg: connection reset")}
	srv := newTestServer(t, wf, premiumSess())

	resp, body := postJSON(t, srv, "/api/user/toggle-like-creation", map[string]any{"id": "c1"})

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body["error"], "connection reset")
}
