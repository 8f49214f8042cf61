package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

// Options carries the router configuration.
type Options struct {
	App             *handlers.App
	Auth            middleware.Authenticator
	Logger          zerolog.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
}

// NewRouter mounts the API surface: a public health probe plus the
// authenticated /api/ai and /api/user groups.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	app := opts.App

	r.Get("/health", app.Health)

	// The limiter keys on the session, so it must sit behind Auth. One
	// limiter instance serves both groups: the per-user budget covers the
	// whole API, not each group separately.
	auth := middleware.Auth(opts.Auth)
	var limit func(http.Handler) http.Handler
	if opts.RateLimitPerMin > 0 {
		limit = middleware.RateLimit(opts.RateLimitPerMin, time.Minute)
	}
	protected := func(r chi.Router) {
		r.Use(auth)
		if limit != nil {
			r.Use(limit)
		}
	}

	r.Route("/api/ai", func(r chi.Router) {
		protected(r)
		r.Post("/generate-article", app.GenerateArticle)
		r.Post("/generate-blog-title", app.GenerateBlogTitle)
		r.Post("/generate-image", app.GenerateImage)
		r.Post("/remove-image-background", app.RemoveImageBackground)
		r.Post("/remove-image-object", app.RemoveImageObject)
		r.Post("/review-resume", app.ReviewResume)
	})

	r.Route("/api/user", func(r chi.Router) {
		protected(r)
		r.Get("/get-user-creation", app.GetUserCreations)
		r.Get("/get-publish-creation", app.GetPublishedCreations)
		r.Post("/toggle-like-creation", app.ToggleLikeCreation)
		r.Post("/toggle-publish-creation", app.TogglePublishCreation)
	})

	return r
}
