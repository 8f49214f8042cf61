package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"server/internal/domain"
	"server/internal/sqlinline"
)

// DB is the pgx query surface the repository needs. Both *pgxpool.Pool and
// the pgxmock pool satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CreationRepositoryPG implements domain.CreationRepository on PostgreSQL.
type CreationRepositoryPG struct {
	db DB
}

// NewCreationRepository constructs a new creation repository instance.
func NewCreationRepository(db DB) *CreationRepositoryPG {
	return &CreationRepositoryPG{db: db}
}

// Create assigns the id and timestamp and persists the record. Records with
// missing required fields are rejected before touching the database: a
// creation without a result must never exist.
func (r *CreationRepositoryPG) Create(ctx context.Context, c *domain.Creation) (*domain.Creation, error) {
	if c == nil {
		return nil, fmt.Errorf("nil creation: %w", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(c.OwnerID) == "" || c.Kind == "" {
		return nil, fmt.Errorf("creation owner and kind are required: %w", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(c.Result) == "" {
		return nil, fmt.Errorf("creation result must be non-empty: %w", domain.ErrInvalidInput)
	}
	if c.Plan == "" {
		c.Plan = domain.PlanFree
	}
	c.ID = uuid.NewString()
	c.Published = false
	c.Likes = []string{}

	row := r.db.QueryRow(ctx, sqlinline.QInsertCreation, c.ID, c.OwnerID, string(c.Kind), c.Prompt, c.Result, string(c.Plan))
	if err := row.Scan(&c.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert creation: %w", err)
	}
	return c, nil
}

// ListByOwner returns the caller's creations, newest first.
func (r *CreationRepositoryPG) ListByOwner(ctx context.Context, ownerID string) ([]domain.Creation, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListCreationsByOwner, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list creations: %w", err)
	}
	defer rows.Close()
	return scanCreations(rows)
}

// ListPublished returns every creation visible in the public gallery,
// newest first.
func (r *CreationRepositoryPG) ListPublished(ctx context.Context) ([]domain.Creation, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListPublishedCreations)
	if err != nil {
		return nil, fmt.Errorf("list published creations: %w", err)
	}
	defer rows.Close()
	return scanCreations(rows)
}

// ToggleLike flips the user's membership in the likes set atomically and
// returns the post-toggle state.
func (r *CreationRepositoryPG) ToggleLike(ctx context.Context, creationID, userID string) (*domain.LikeState, error) {
	if uuid.Validate(creationID) != nil {
		return nil, fmt.Errorf("creation %s: %w", creationID, domain.ErrNotFound)
	}
	row := r.db.QueryRow(ctx, sqlinline.QToggleCreationLike, creationID, userID)
	var state domain.LikeState
	if err := row.Scan(&state.Liked, &state.TotalLikes, &state.Likes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("creation %s: %w", creationID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("toggle like: %w", err)
	}
	if state.Likes == nil {
		state.Likes = []string{}
	}
	return &state, nil
}

// TogglePublish flips gallery visibility. Only the owner may publish or
// unpublish, so a wrong owner reads as not found.
func (r *CreationRepositoryPG) TogglePublish(ctx context.Context, creationID, ownerID string) (bool, error) {
	if uuid.Validate(creationID) != nil {
		return false, fmt.Errorf("creation %s: %w", creationID, domain.ErrNotFound)
	}
	row := r.db.QueryRow(ctx, sqlinline.QToggleCreationPublish, creationID, ownerID)
	var published bool
	if err := row.Scan(&published); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("creation %s: %w", creationID, domain.ErrNotFound)
		}
		return false, fmt.Errorf("toggle publish: %w", err)
	}
	return published, nil
}

func scanCreations(rows pgx.Rows) ([]domain.Creation, error) {
	var items []domain.Creation
	for rows.Next() {
		var c domain.Creation
		var kind, plan string
		if err := rows.Scan(&c.ID, &c.OwnerID, &kind, &c.Prompt, &c.Result, &plan, &c.Published, &c.Likes, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan creation: %w", err)
		}
		c.Kind = domain.CreationKind(kind)
		c.Plan = domain.Plan(plan)
		if c.Likes == nil {
			c.Likes = []string{}
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate creations: %w", err)
	}
	return items, nil
}

var _ domain.CreationRepository = (*CreationRepositoryPG)(nil)
