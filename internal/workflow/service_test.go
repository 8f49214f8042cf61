package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server/internal/domain"
	"server/internal/identity"
	"server/internal/providers"
	"server/internal/providers/cloudinary"
	"server/internal/providers/llm"
)

type stubCompleter struct {
	text  string
	err   error
	calls int
	last  llm.CompletionRequest
}

func (s *stubCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	s.calls++
	s.last = req
	return s.text, s.err
}

type stubImages struct {
	data  []byte
	err   error
	calls int
}

func (s *stubImages) TextToImage(_ context.Context, _ string) ([]byte, error) {
	s.calls++
	return s.data, s.err
}

type stubStore struct {
	result  *cloudinary.UploadResult
	err     error
	uploads int
	lastCT  string
	lastP   cloudinary.UploadParams
}

func (s *stubStore) UploadImage(_ context.Context, _ []byte, contentType string, params cloudinary.UploadParams) (*cloudinary.UploadResult, error) {
	s.uploads++
	s.lastCT = contentType
	s.lastP = params
	return s.result, s.err
}

func (s *stubStore) DeliveryURL(publicID, format, transformation string) string {
	return fmt.Sprintf("https://cdn.test/%s/%s.%s", transformation, publicID, format)
}

type memRepo struct {
	mu        sync.Mutex
	items     []domain.Creation
	createErr error
}

func (m *memRepo) Create(_ context.Context, c *domain.Creation) (*domain.Creation, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = fmt.Sprintf("c%d", len(m.items)+1)
	m.items = append(m.items, *c)
	return c, nil
}

func (m *memRepo) ListByOwner(_ context.Context, ownerID string) ([]domain.Creation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Creation
	for i := len(m.items) - 1; i >= 0; i-- {
		if m.items[i].OwnerID == ownerID {
			out = append(out, m.items[i])
		}
	}
	return out, nil
}

func (m *memRepo) ListPublished(_ context.Context) ([]domain.Creation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Creation
	for i := len(m.items) - 1; i >= 0; i-- {
		if m.items[i].Published {
			out = append(out, m.items[i])
		}
	}
	return out, nil
}

func (m *memRepo) ToggleLike(_ context.Context, creationID, userID string) (*domain.LikeState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID != creationID {
			continue
		}
		c := &m.items[i]
		if c.LikedBy(userID) {
			next := c.Likes[:0]
			for _, id := range c.Likes {
				if id != userID {
					next = append(next, id)
				}
			}
			c.Likes = next
		} else {
			c.Likes = append(c.Likes, userID)
		}
		return &domain.LikeState{Liked: c.LikedBy(userID), TotalLikes: len(c.Likes), Likes: append([]string{}, c.Likes...)}, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memRepo) TogglePublish(_ context.Context, creationID, ownerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == creationID && m.items[i].OwnerID == ownerID {
			m.items[i].Published = !m.items[i].Published
			return m.items[i].Published, nil
		}
	}
	return false, domain.ErrNotFound
}

type stubUsage struct {
	calls []int
	err   error
}

func (s *stubUsage) IncrementFreeUsage(_ context.Context, _ string, next int) error {
	s.calls = append(s.calls, next)
	return s.err
}

type fixture struct {
	svc    *Service
	text   *stubCompleter
	images *stubImages
	store  *stubStore
	repo   *memRepo
	usage  *stubUsage
}

func newFixture() *fixture {
	f := &fixture{
		text:   &stubCompleter{text: "generated text"},
		images: &stubImages{data: []byte{0x89, 'P', 'N', 'G'}},
		store: &stubStore{result: &cloudinary.UploadResult{
			PublicID:  "generated/abc",
			SecureURL: "https://cdn.test/generated/abc.png",
			Format:    "png",
		}},
		repo:  &memRepo{},
		usage: &stubUsage{},
	}
	f.svc = NewService(Options{
		Text:   f.text,
		Images: f.images,
		Store:  f.store,
		Repo:   f.repo,
		Usage:  f.usage,
		Logger: zerolog.Nop(),
	})
	return f
}

func freeSession(used int) *identity.Session {
	return &identity.Session{UserID: "user_free", Plan: domain.PlanFree, FreeUsage: used}
}

func premiumSession() *identity.Session {
	return &identity.Session{UserID: "user_prem", Plan: domain.PlanPremium}
}

func pngUpload(size int) Upload {
	data := make([]byte, size)
	copy(data, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
	return Upload{Filename: "photo.png", ContentType: "image/png", Size: int64(size), Data: data}
}

func pdfUpload(size int) Upload {
	data := make([]byte, size)
	copy(data, []byte("%PDF-1.4"))
	return Upload{Filename: "resume.pdf", ContentType: "application/pdf", Size: int64(size), Data: data}
}

func TestGenerateArticlePremiumSkipsCounter(t *testing.T) {
	f := newFixture()

	c, err := f.svc.GenerateArticle(context.Background(), premiumSession(), "future of AI", 800)
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "generated text", c.Result)
	assert.Equal(t, domain.PlanPremium, c.Plan)
	assert.Contains(t, f.text.last.User, "800 words")
	assert.Empty(t, f.usage.calls, "premium generation must not touch the counter")
}

func TestGenerateArticleFreeIncrementsOnce(t *testing.T) {
	f := newFixture()

	_, err := f.svc.GenerateArticle(context.Background(), freeSession(4), "future of AI", 0)
	require.NoError(t, err)
	assert.Equal(t, []int{5}, f.usage.calls)
}

func TestGenerateArticleQuotaDeniedWithoutProviderCall(t *testing.T) {
	f := newFixture()

	_, err := f.svc.GenerateArticle(context.Background(), freeSession(10), "prompt", 0)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Zero(t, f.text.calls, "denied request must not reach the provider")
	assert.Empty(t, f.repo.items)
	assert.Empty(t, f.usage.calls)
}

func TestGenerateArticleTenthSucceedsEleventhDenied(t *testing.T) {
	f := newFixture()

	_, err := f.svc.GenerateArticle(context.Background(), freeSession(9), "prompt", 0)
	require.NoError(t, err, "tenth gated generation is still allowed")

	_, err = f.svc.GenerateArticle(context.Background(), freeSession(10), "prompt", 0)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
}

func TestGenerateArticleFailCleanOnProviderError(t *testing.T) {
	kinds := []error{
		domain.ErrProviderUnavailable,
		domain.ErrInvalidInput,
		&providers.RateLimitError{Provider: "llm", RetryAfter: 30},
	}
	for _, kind := range kinds {
		f := newFixture()
		f.text.err = fmt.Errorf("boom: %w", kind)

		_, err := f.svc.GenerateArticle(context.Background(), freeSession(0), "prompt", 0)
		require.Error(t, err)
		assert.Empty(t, f.repo.items, "failed provider call must not persist a creation")
		assert.Empty(t, f.usage.calls, "failed provider call must not increment usage")
	}
}

func TestGenerateArticlePersistFailureSkipsCounter(t *testing.T) {
	f := newFixture()
	f.repo.createErr = errors.New("db down")

	_, err := f.svc.GenerateArticle(context.Background(), freeSession(0), "prompt", 0)
	require.Error(t, err)
	assert.Empty(t, f.usage.calls, "failed persist must not increment usage")
}

func TestGenerateArticleCounterFailureStillSucceeds(t *testing.T) {
	f := newFixture()
	f.usage.err = errors.New("identity outage")

	c, err := f.svc.GenerateArticle(context.Background(), freeSession(0), "prompt", 0)
	require.NoError(t, err, "a failed counter update never hides the artifact")
	assert.NotEmpty(t, c.ID)
}

func TestGenerateArticleEmptyPrompt(t *testing.T) {
	f := newFixture()
	_, err := f.svc.GenerateArticle(context.Background(), premiumSession(), "   ", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, f.text.calls)
}

func TestGenerateBlogTitlesGatedAndStored(t *testing.T) {
	f := newFixture()
	f.text.text = "1. Title one\n2. Title two"

	c, err := f.svc.GenerateBlogTitles(context.Background(), freeSession(0), "gardening", "lifestyle")
	require.NoError(t, err)
	assert.Equal(t, domain.KindBlogTitles, c.Kind)
	assert.Contains(t, f.text.last.User, "lifestyle")
	assert.Equal(t, []int{1}, f.usage.calls)
}

func TestGenerateImageRequiresPremium(t *testing.T) {
	f := newFixture()

	_, err := f.svc.GenerateImage(context.Background(), freeSession(0), "a cat", "anime")
	assert.ErrorIs(t, err, domain.ErrPlanRequired)
	assert.Zero(t, f.images.calls, "denied request must not reach the provider")
	assert.Empty(t, f.repo.items)
}

func TestGenerateImageUploadsAndPersists(t *testing.T) {
	f := newFixture()

	c, err := f.svc.GenerateImage(context.Background(), premiumSession(), "a cat", "anime")
	require.NoError(t, err)
	assert.Equal(t, 1, f.images.calls)
	assert.Equal(t, 1, f.store.uploads)
	assert.Equal(t, "https://cdn.test/generated/abc.png", c.Result)
	assert.Empty(t, f.usage.calls, "premium-only features never touch the counter")
}

func TestGenerateImageUploadFailureIsFailClean(t *testing.T) {
	f := newFixture()
	f.store.err = fmt.Errorf("cdn down: %w", domain.ErrProviderUnavailable)

	_, err := f.svc.GenerateImage(context.Background(), premiumSession(), "a cat", "")
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Empty(t, f.repo.items)
}

func TestRemoveBackgroundAppliesTransformation(t *testing.T) {
	f := newFixture()

	c, err := f.svc.RemoveBackground(context.Background(), premiumSession(), pngUpload(1024))
	require.NoError(t, err)
	assert.Equal(t, cloudinary.TransformBackgroundRemoval, f.store.lastP.Transformation)
	assert.Equal(t, "bg-removed", f.store.lastP.Folder)
	assert.Equal(t, domain.KindBackgroundRemoval, c.Kind)
}

func TestRemoveBackgroundRejectsNonImage(t *testing.T) {
	f := newFixture()
	up := Upload{Filename: "notes.txt", ContentType: "text/plain", Size: 10, Data: []byte("plain text")}

	_, err := f.svc.RemoveBackground(context.Background(), premiumSession(), up)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, f.store.uploads)
}

func TestRemoveObjectBuildsDeliveryURL(t *testing.T) {
	f := newFixture()

	c, err := f.svc.RemoveObject(context.Background(), premiumSession(), pngUpload(512), "coffee cup")
	require.NoError(t, err)
	assert.Contains(t, c.Result, "e_gen_remove:prompt_coffee%20cup")
	assert.Equal(t, domain.KindObjectRemoval, c.Kind)
}

func TestRemoveObjectRequiresDescription(t *testing.T) {
	f := newFixture()

	_, err := f.svc.RemoveObject(context.Background(), premiumSession(), pngUpload(512), "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, f.store.uploads)
}

func TestReviewResumeSizeBoundary(t *testing.T) {
	f := newFixture()

	_, err := f.svc.ReviewResume(context.Background(), premiumSession(), pdfUpload(DefaultMaxUploadBytes+1))
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "5 MB + 1 byte must be rejected")
	assert.Zero(t, f.text.calls, "oversized upload must be rejected before any provider call")

	// Exactly 5 MB passes the size gate; this synthetic PDF then fails at
	// text extraction, which is still before the provider.
	_, err = f.svc.ReviewResume(context.Background(), premiumSession(), pdfUpload(DefaultMaxUploadBytes))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, f.text.calls)
}

func TestReviewResumeRequiresPremium(t *testing.T) {
	f := newFixture()

	_, err := f.svc.ReviewResume(context.Background(), freeSession(0), pdfUpload(128))
	assert.ErrorIs(t, err, domain.ErrPlanRequired)
}

func TestReviewResumeRejectsImageResume(t *testing.T) {
	f := newFixture()
	up := pngUpload(128)
	up.Filename = "resume.png"

	_, err := f.svc.ReviewResume(context.Background(), premiumSession(), up)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, f.text.calls)
}

func TestPublishRoundTrip(t *testing.T) {
	f := newFixture()
	sess := premiumSession()

	c, err := f.svc.GenerateArticle(context.Background(), sess, "prompt", 0)
	require.NoError(t, err)

	gallery, err := f.svc.ListPublished(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gallery, "unpublished creations stay out of the gallery")

	published, err := f.svc.TogglePublish(context.Background(), sess, c.ID)
	require.NoError(t, err)
	assert.True(t, published)

	gallery, err = f.svc.ListPublished(context.Background())
	require.NoError(t, err)
	require.Len(t, gallery, 1)
	assert.Equal(t, c.ID, gallery[0].ID)
}

func TestToggleLikeTwoUsersBothRegister(t *testing.T) {
	f := newFixture()
	owner := premiumSession()
	c, err := f.svc.GenerateArticle(context.Background(), owner, "prompt", 0)
	require.NoError(t, err)

	userA := &identity.Session{UserID: "user_a", Plan: domain.PlanFree}
	userB := &identity.Session{UserID: "user_b", Plan: domain.PlanFree}

	var wg sync.WaitGroup
	for _, sess := range []*identity.Session{userA, userB} {
		wg.Add(1)
		go func(s *identity.Session) {
			defer wg.Done()
			_, err := f.svc.ToggleLike(context.Background(), s, c.ID)
			assert.NoError(t, err)
		}(sess)
	}
	wg.Wait()

	state, err := f.svc.ToggleLike(context.Background(), owner, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, state.TotalLikes)
	assert.Contains(t, state.Likes, "user_a")
	assert.Contains(t, state.Likes, "user_b")
}

func TestToggleLikeDoubleToggleSameUserNetsToZero(t *testing.T) {
	f := newFixture()
	owner := premiumSession()
	c, err := f.svc.GenerateArticle(context.Background(), owner, "prompt", 0)
	require.NoError(t, err)

	liker := &identity.Session{UserID: "user_x", Plan: domain.PlanFree}
	_, err = f.svc.ToggleLike(context.Background(), liker, c.ID)
	require.NoError(t, err)
	state, err := f.svc.ToggleLike(context.Background(), liker, c.ID)
	require.NoError(t, err)
	assert.False(t, state.Liked)
	assert.Zero(t, state.TotalLikes, "double toggle never leaves a duplicate like")
}

func TestToggleLikeUnknownCreation(t *testing.T) {
	f := newFixture()
	_, err := f.svc.ToggleLike(context.Background(), premiumSession(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
