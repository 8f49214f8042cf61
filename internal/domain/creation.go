package domain

import "time"

// Plan enumerates billing plans.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// CreationKind enumerates the supported generation workflows.
type CreationKind string

const (
	KindArticle           CreationKind = "article"
	KindBlogTitles        CreationKind = "blog-titles"
	KindImage             CreationKind = "image"
	KindBackgroundRemoval CreationKind = "background-removal"
	KindObjectRemoval     CreationKind = "object-removal"
	KindResumeReview      CreationKind = "resume-review"
)

// Creation is one persisted generation or transformation request together
// with its provider result. Plan records the tier in effect when the result
// was produced; it is never updated when the owner changes plans later.
type Creation struct {
	ID        string       `json:"id"`
	OwnerID   string       `json:"userId"`
	Kind      CreationKind `json:"type"`
	Prompt    string       `json:"prompt"`
	Result    string       `json:"result"`
	Plan      Plan         `json:"plan"`
	Published bool         `json:"published"`
	Likes     []string     `json:"likes"`
	CreatedAt time.Time    `json:"createdAt"`
}

// LikedBy reports whether userID is a member of the likes set.
func (c *Creation) LikedBy(userID string) bool {
	for _, id := range c.Likes {
		if id == userID {
			return true
		}
	}
	return false
}
