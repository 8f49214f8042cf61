package handlers

import (
	"encoding/json"
	"net/http"
)

type creationIDRequest struct {
	ID string `json:"id"`
}

func (a *App) GetUserCreations(w http.ResponseWriter, r *http.Request) {
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	items, err := a.Workflows.ListMine(r.Context(), sess)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "data": items})
}

func (a *App) GetPublishedCreations(w http.ResponseWriter, r *http.Request) {
	if sess := a.session(w, r); sess == nil {
		return
	}
	items, err := a.Workflows.ListPublished(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "data": items})
}

func (a *App) ToggleLikeCreation(w http.ResponseWriter, r *http.Request) {
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	var req creationIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.json(w, http.StatusBadRequest, failBody{Success: false, Message: "invalid payload"})
		return
	}
	state, err := a.Workflows.ToggleLike(r.Context(), sess, req.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"success":    true,
		"liked":      state.Liked,
		"totalLikes": state.TotalLikes,
		"likes":      state.Likes,
	})
}

func (a *App) TogglePublishCreation(w http.ResponseWriter, r *http.Request) {
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	var req creationIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.json(w, http.StatusBadRequest, failBody{Success: false, Message: "invalid payload"})
		return
	}
	published, err := a.Workflows.TogglePublish(r.Context(), sess, req.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "published": published})
}
