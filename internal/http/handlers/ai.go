package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"server/internal/domain"
	"server/internal/workflow"
)

type generateArticleRequest struct {
	Prompt string `json:"prompt"`
	Length int    `json:"length"`
}

type generateBlogTitleRequest struct {
	Prompt   string `json:"prompt"`
	Category string `json:"category"`
}

type generateImageRequest struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style"`
}

func (a *App) GenerateArticle(w http.ResponseWriter, r *http.Request) {
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	var req generateArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.json(w, http.StatusBadRequest, failBody{Success: false, Message: "invalid payload"})
		return
	}
	creation, err := a.Workflows.GenerateArticle(r.Context(), sess, req.Prompt, req.Length)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"success":   true,
		"content":   creation.Result,
		"articleId": creation.ID,
	})
}

func (a *App) GenerateBlogTitle(w http.ResponseWriter, r *http.Request) {
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	var req generateBlogTitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.json(w, http.StatusBadRequest, failBody{Success: false, Message: "invalid payload"})
		return
	}
	creation, err := a.Workflows.GenerateBlogTitles(r.Context(), sess, req.Prompt, req.Category)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"titles":      creation.Result,
			"blogTitleId": creation.ID,
		},
	})
}

func (a *App) GenerateImage(w http.ResponseWriter, r *http.Request) {
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	var req generateImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.json(w, http.StatusBadRequest, failBody{Success: false, Message: "invalid payload"})
		return
	}
	creation, err := a.Workflows.GenerateImage(r.Context(), sess, req.Prompt, req.Style)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"success": true,
		"content": creation.Result,
		"imageId": creation.ID,
	})
}

func (a *App) RemoveImageBackground(w http.ResponseWriter, r *http.Request) {
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	up, ok := a.readUpload(w, r, "image")
	if !ok {
		return
	}
	creation, err := a.Workflows.RemoveBackground(r.Context(), sess, up)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "data": creation})
}

func (a *App) RemoveImageObject(w http.ResponseWriter, r *http.Request) {
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	up, ok := a.readUpload(w, r, "image")
	if !ok {
		return
	}
	object := r.FormValue("Object")
	creation, err := a.Workflows.RemoveObject(r.Context(), sess, up, object)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "data": creation})
}

func (a *App) ReviewResume(w http.ResponseWriter, r *http.Request) {
	sess := a.session(w, r)
	if sess == nil {
		return
	}
	up, ok := a.readUpload(w, r, "resume")
	if !ok {
		return
	}
	creation, err := a.Workflows.ReviewResume(r.Context(), sess, up)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"success": true,
		"review":  creation.Result,
		"data":    creation,
	})
}

// readUpload pulls one multipart file out of the request. The size cap is
// enforced from the part header before the file content is consumed, so an
// oversized upload is rejected without buffering it.
func (a *App) readUpload(w http.ResponseWriter, r *http.Request, field string) (workflow.Upload, bool) {
	maxBytes := a.Workflows.MaxUploadBytes()
	// Allow some slack for the multipart framing and text fields.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	if err := r.ParseMultipartForm(maxBytes + 1<<20); err != nil {
		a.fail(w, r, fmt.Errorf("upload too large or malformed: %w", domain.ErrInvalidInput))
		return workflow.Upload{}, false
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		a.fail(w, r, fmt.Errorf("no %s uploaded: %w", field, domain.ErrInvalidInput))
		return workflow.Upload{}, false
	}
	defer func() {
		_ = file.Close()
	}()
	if header.Size > maxBytes {
		a.fail(w, r, fmt.Errorf("file exceeds %d bytes: %w", maxBytes, domain.ErrInvalidInput))
		return workflow.Upload{}, false
	}
	data, err := io.ReadAll(io.LimitReader(file, maxBytes))
	if err != nil {
		a.fail(w, r, fmt.Errorf("read upload: %w", domain.ErrInvalidInput))
		return workflow.Upload{}, false
	}
	return workflow.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Data:        data,
	}, true
}
