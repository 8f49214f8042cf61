// Package workflow orchestrates the generation features: resolve the
// caller, gate by plan or quota, validate input, invoke the provider,
// persist the result, then bump the free-usage counter. All state lives in
// the repository and the identity service; the orchestrator itself is
// stateless across requests.
package workflow

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/identity"
	"server/internal/pdftext"
	"server/internal/providers/cloudinary"
	"server/internal/providers/llm"
)

const (
	articleSystemPrompt = "You are a professional article writer. Write comprehensive, well-structured articles with engaging content."
	titlesSystemPrompt  = "Generate catchy blog titles."
	resumeSystemPrompt  = "You are a professional resume reviewer."

	// DefaultMaxUploadBytes caps multipart uploads at 5 MB.
	DefaultMaxUploadBytes = 5 << 20

	bgRemovedFolder = "bg-removed"
	generatedFolder = "generated"
)

var imageUploadTypes = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/webp": {},
}

var resumeUploadTypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/png":       {},
}

// TextCompleter is the language-generation collaborator.
type TextCompleter interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (string, error)
}

// ImageGenerator is the text-to-image collaborator.
type ImageGenerator interface {
	TextToImage(ctx context.Context, prompt string) ([]byte, error)
}

// ImageStore uploads and transforms images on the CDN.
type ImageStore interface {
	UploadImage(ctx context.Context, data []byte, contentType string, params cloudinary.UploadParams) (*cloudinary.UploadResult, error)
	DeliveryURL(publicID, format, transformation string) string
}

// UsageCounter persists the per-user free-usage count on the identity
// record.
type UsageCounter interface {
	IncrementFreeUsage(ctx context.Context, userID string, next int) error
}

// Upload is a validated multipart file as received from the HTTP boundary.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// Options wires the service dependencies.
type Options struct {
	Text           TextCompleter
	Images         ImageGenerator
	Store          ImageStore
	Repo           domain.CreationRepository
	Usage          UsageCounter
	Logger         zerolog.Logger
	FreeLimit      int
	MaxUploadBytes int64
}

// Service runs one workflow per feature, all sharing the same shape.
type Service struct {
	text           TextCompleter
	images         ImageGenerator
	store          ImageStore
	repo           domain.CreationRepository
	usage          UsageCounter
	logger         zerolog.Logger
	freeLimit      int
	maxUploadBytes int64
}

func NewService(opts Options) *Service {
	freeLimit := opts.FreeLimit
	if freeLimit <= 0 {
		freeLimit = domain.DefaultFreeLimit
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &Service{
		text:           opts.Text,
		images:         opts.Images,
		store:          opts.Store,
		repo:           opts.Repo,
		usage:          opts.Usage,
		logger:         opts.Logger,
		freeLimit:      freeLimit,
		maxUploadBytes: maxUpload,
	}
}

// MaxUploadBytes reports the upload cap enforced at the boundary.
func (s *Service) MaxUploadBytes() int64 { return s.maxUploadBytes }

// GenerateArticle writes an article for the prompt. Quota-gated: free-plan
// callers consume one unit of free usage on success.
func (s *Service) GenerateArticle(ctx context.Context, sess *identity.Session, prompt string, length int) (*domain.Creation, error) {
	if err := s.checkQuota(sess); err != nil {
		return nil, err
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("prompt is required: %w", domain.ErrInvalidInput)
	}
	user := prompt
	if length > 0 {
		user = fmt.Sprintf("%s\n\nWrite approximately %d words.", prompt, length)
	}
	content, err := s.text.Complete(ctx, llm.CompletionRequest{
		System:      articleSystemPrompt,
		User:        user,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, err
	}
	return s.persistAndCount(ctx, sess, &domain.Creation{
		OwnerID: sess.UserID,
		Kind:    domain.KindArticle,
		Prompt:  prompt,
		Result:  content,
		Plan:    sess.Plan,
	}, true)
}

// GenerateBlogTitles produces a batch of title suggestions. Quota-gated.
func (s *Service) GenerateBlogTitles(ctx context.Context, sess *identity.Session, prompt, category string) (*domain.Creation, error) {
	if err := s.checkQuota(sess); err != nil {
		return nil, err
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("prompt is required: %w", domain.ErrInvalidInput)
	}
	user := prompt
	if category = strings.TrimSpace(category); category != "" {
		user = fmt.Sprintf("Generate blog titles about %q in the %s category.", prompt, category)
	}
	titles, err := s.text.Complete(ctx, llm.CompletionRequest{
		System: titlesSystemPrompt,
		User:   user,
	})
	if err != nil {
		return nil, err
	}
	return s.persistAndCount(ctx, sess, &domain.Creation{
		OwnerID: sess.UserID,
		Kind:    domain.KindBlogTitles,
		Prompt:  prompt,
		Result:  titles,
		Plan:    sess.Plan,
	}, true)
}

// GenerateImage renders the prompt through the text-to-image provider and
// stores the bytes on the CDN. Premium-only, regardless of counters.
func (s *Service) GenerateImage(ctx context.Context, sess *identity.Session, prompt, style string) (*domain.Creation, error) {
	if err := requirePremium(sess); err != nil {
		return nil, err
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("prompt is required: %w", domain.ErrInvalidInput)
	}
	rendered := prompt
	if style = strings.TrimSpace(style); style != "" && style != "realistic" {
		rendered = fmt.Sprintf("%s, in %s style", prompt, style)
	}
	data, err := s.images.TextToImage(ctx, rendered)
	if err != nil {
		return nil, err
	}
	uploaded, err := s.store.UploadImage(ctx, data, "image/png", cloudinary.UploadParams{Folder: generatedFolder})
	if err != nil {
		return nil, err
	}
	return s.persistAndCount(ctx, sess, &domain.Creation{
		OwnerID: sess.UserID,
		Kind:    domain.KindImage,
		Prompt:  prompt,
		Result:  uploaded.SecureURL,
		Plan:    sess.Plan,
	}, false)
}

// RemoveBackground strips the background from an uploaded image via the CDN
// transformation. Premium-only.
func (s *Service) RemoveBackground(ctx context.Context, sess *identity.Session, up Upload) (*domain.Creation, error) {
	if err := requirePremium(sess); err != nil {
		return nil, err
	}
	if err := s.validateUpload(up, imageUploadTypes); err != nil {
		return nil, err
	}
	uploaded, err := s.store.UploadImage(ctx, up.Data, up.effectiveType(), cloudinary.UploadParams{
		Folder:         bgRemovedFolder,
		Transformation: cloudinary.TransformBackgroundRemoval,
	})
	if err != nil {
		return nil, err
	}
	return s.persistAndCount(ctx, sess, &domain.Creation{
		OwnerID: sess.UserID,
		Kind:    domain.KindBackgroundRemoval,
		Prompt:  "Background removed image",
		Result:  uploaded.SecureURL,
		Plan:    sess.Plan,
	}, false)
}

// RemoveObject uploads the image and returns a delivery URL applying the
// generative object-removal transformation. Premium-only.
func (s *Service) RemoveObject(ctx context.Context, sess *identity.Session, up Upload, object string) (*domain.Creation, error) {
	if err := requirePremium(sess); err != nil {
		return nil, err
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return nil, fmt.Errorf("object description is required: %w", domain.ErrInvalidInput)
	}
	if err := s.validateUpload(up, imageUploadTypes); err != nil {
		return nil, err
	}
	uploaded, err := s.store.UploadImage(ctx, up.Data, up.effectiveType(), cloudinary.UploadParams{})
	if err != nil {
		return nil, err
	}
	url := s.store.DeliveryURL(uploaded.PublicID, uploaded.Format, cloudinary.ObjectRemovalTransform(object))
	return s.persistAndCount(ctx, sess, &domain.Creation{
		OwnerID: sess.UserID,
		Kind:    domain.KindObjectRemoval,
		Prompt:  fmt.Sprintf("Removed %s from image", object),
		Result:  url,
		Plan:    sess.Plan,
	}, false)
}

// ReviewResume extracts the resume text and asks the language model for
// structured feedback. Premium-only; the review text is the creation
// result.
func (s *Service) ReviewResume(ctx context.Context, sess *identity.Session, up Upload) (*domain.Creation, error) {
	if err := requirePremium(sess); err != nil {
		return nil, err
	}
	if err := s.validateUpload(up, resumeUploadTypes); err != nil {
		return nil, err
	}
	if up.effectiveType() != "application/pdf" {
		return nil, fmt.Errorf("resume must be a PDF with extractable text: %w", domain.ErrInvalidInput)
	}
	text, err := pdftext.Extract(up.Data)
	if err != nil {
		return nil, err
	}
	review, err := s.text.Complete(ctx, llm.CompletionRequest{
		System:      resumeSystemPrompt,
		User:        "Review the following resume and provide constructive feedback on its strengths, weaknesses, and areas for improvement.\n\nResume Content:\n" + text,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, err
	}
	return s.persistAndCount(ctx, sess, &domain.Creation{
		OwnerID: sess.UserID,
		Kind:    domain.KindResumeReview,
		Prompt:  "Resume review: " + truncate(text, 200),
		Result:  review,
		Plan:    sess.Plan,
	}, false)
}

// ListMine returns the caller's creations, newest first.
func (s *Service) ListMine(ctx context.Context, sess *identity.Session) ([]domain.Creation, error) {
	return s.repo.ListByOwner(ctx, sess.UserID)
}

// ListPublished returns the public gallery, newest first.
func (s *Service) ListPublished(ctx context.Context) ([]domain.Creation, error) {
	return s.repo.ListPublished(ctx)
}

// ToggleLike flips the caller's like on a creation.
func (s *Service) ToggleLike(ctx context.Context, sess *identity.Session, creationID string) (*domain.LikeState, error) {
	if strings.TrimSpace(creationID) == "" {
		return nil, fmt.Errorf("creation id is required: %w", domain.ErrInvalidInput)
	}
	return s.repo.ToggleLike(ctx, creationID, sess.UserID)
}

// TogglePublish flips gallery visibility on one of the caller's creations.
func (s *Service) TogglePublish(ctx context.Context, sess *identity.Session, creationID string) (bool, error) {
	if strings.TrimSpace(creationID) == "" {
		return false, fmt.Errorf("creation id is required: %w", domain.ErrInvalidInput)
	}
	return s.repo.TogglePublish(ctx, creationID, sess.UserID)
}

// persistAndCount stores the successful result and, for gated features,
// bumps the free-usage counter afterwards. Persist failures abort before
// the counter moves; a counter failure is logged but never hides the
// generated artifact.
func (s *Service) persistAndCount(ctx context.Context, sess *identity.Session, c *domain.Creation, gated bool) (*domain.Creation, error) {
	created, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	if gated && sess.Plan != domain.PlanPremium {
		if err := s.usage.IncrementFreeUsage(ctx, sess.UserID, sess.FreeUsage+1); err != nil {
			s.logger.Warn().Err(err).Str("user_id", sess.UserID).Msg("free usage increment failed")
		}
	}
	return created, nil
}

func (s *Service) checkQuota(sess *identity.Session) error {
	if !domain.AllowGeneration(sess.Plan, sess.FreeUsage, s.freeLimit) {
		return fmt.Errorf("limit reached, upgrade to continue: %w", domain.ErrQuotaExceeded)
	}
	return nil
}

func requirePremium(sess *identity.Session) error {
	if sess.Plan != domain.PlanPremium {
		return fmt.Errorf("this feature is only available for premium users: %w", domain.ErrPlanRequired)
	}
	return nil
}

func (s *Service) validateUpload(up Upload, allowed map[string]struct{}) error {
	if len(up.Data) == 0 {
		return fmt.Errorf("no file uploaded: %w", domain.ErrInvalidInput)
	}
	if up.Size > s.maxUploadBytes {
		return fmt.Errorf("file exceeds %d bytes: %w", s.maxUploadBytes, domain.ErrInvalidInput)
	}
	if _, ok := allowed[up.effectiveType()]; !ok {
		return fmt.Errorf("unsupported file type %s: %w", up.effectiveType(), domain.ErrInvalidInput)
	}
	return nil
}

// effectiveType prefers the declared content type and falls back to
// sniffing when the client sent none or a generic one.
func (u Upload) effectiveType() string {
	ct := strings.TrimSpace(u.ContentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	return http.DetectContentType(u.Data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
