package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/identity"
	"server/internal/middleware"
	"server/internal/providers"
	"server/internal/workflow"
)

// Workflows is the feature surface the HTTP layer dispatches into.
type Workflows interface {
	GenerateArticle(ctx context.Context, sess *identity.Session, prompt string, length int) (*domain.Creation, error)
	GenerateBlogTitles(ctx context.Context, sess *identity.Session, prompt, category string) (*domain.Creation, error)
	GenerateImage(ctx context.Context, sess *identity.Session, prompt, style string) (*domain.Creation, error)
	RemoveBackground(ctx context.Context, sess *identity.Session, up workflow.Upload) (*domain.Creation, error)
	RemoveObject(ctx context.Context, sess *identity.Session, up workflow.Upload, object string) (*domain.Creation, error)
	ReviewResume(ctx context.Context, sess *identity.Session, up workflow.Upload) (*domain.Creation, error)
	ListMine(ctx context.Context, sess *identity.Session) ([]domain.Creation, error)
	ListPublished(ctx context.Context) ([]domain.Creation, error)
	ToggleLike(ctx context.Context, sess *identity.Session, creationID string) (*domain.LikeState, error)
	TogglePublish(ctx context.Context, sess *identity.Session, creationID string) (bool, error)
	MaxUploadBytes() int64
}

// App is the handler container.
type App struct {
	Workflows Workflows
	Logger    zerolog.Logger
	AppEnv    string
}

func NewApp(workflows Workflows, logger zerolog.Logger, appEnv string) *App {
	return &App{Workflows: workflows, Logger: logger, AppEnv: appEnv}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// session returns the authenticated caller or writes a 401.
func (a *App) session(w http.ResponseWriter, r *http.Request) *identity.Session {
	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		a.json(w, http.StatusUnauthorized, failBody{Success: false, Message: "unauthorized"})
	}
	return sess
}

type failBody struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter,omitempty"`
	Error      string `json:"error,omitempty"`
}

// fail maps a workflow error onto the response taxonomy. Raw error detail
// is only attached outside production.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	body := failBody{Success: false, Message: msg}
	if secs, ok := providers.RetryAfterHint(err); ok {
		body.RetryAfter = secs
	}
	if status >= 500 {
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		if a.AppEnv != "production" {
			body.Error = err.Error()
		}
	}
	a.json(w, status, body)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusForbidden, "Limit reached. Upgrade to continue."
	case errors.Is(err, domain.ErrPlanRequired):
		return http.StatusForbidden, "This feature is only available for premium users."
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, inputMessage(err)
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Creation not found"
	case errors.Is(err, domain.ErrProviderRateLimited):
		return http.StatusTooManyRequests, "AI service is currently busy. Please wait a moment and try again."
	case errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, "AI service is currently unavailable. Please try again in a moment."
	default:
		return http.StatusInternalServerError, "Something went wrong"
	}
}

// inputMessage keeps the actionable part of a validation error and drops
// the sentinel suffix.
func inputMessage(err error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+domain.ErrInvalidInput.Error())
	if msg == "" || msg == domain.ErrInvalidInput.Error() {
		return "invalid request"
	}
	return msg
}
