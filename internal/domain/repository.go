package domain

import "context"

// LikeState is the post-toggle membership state returned by ToggleLike.
type LikeState struct {
	Liked      bool
	TotalLikes int
	Likes      []string
}

// CreationRepository persists creations and the like/publish mutations on
// them. Implementations must apply ToggleLike as an atomic read-modify-write
// keyed by (creationID, userID): concurrent toggles by different users must
// both land, and a user can never appear twice in the likes set.
type CreationRepository interface {
	Create(ctx context.Context, c *Creation) (*Creation, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Creation, error)
	ListPublished(ctx context.Context) ([]Creation, error)
	ToggleLike(ctx context.Context, creationID, userID string) (*LikeState, error)
	TogglePublish(ctx context.Context, creationID, ownerID string) (bool, error)
}
