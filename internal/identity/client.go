// Package identity resolves inbound credentials against the external
// identity service. The bearer token is a shared-secret JWT carrying the
// subject and plan; the free-usage counter lives on the identity record and
// is read and written over the service's metadata endpoints.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"server/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Session is the resolved caller: who they are, which tier was active on
// the token, and how many free generations they have consumed so far.
type Session struct {
	UserID    string
	Plan      domain.Plan
	FreeUsage int
}

// Claims are the token claims issued by the identity service.
type Claims struct {
	Plan string `json:"plan"`
	jwt.RegisteredClaims
}

type Options struct {
	JWTSecret  string
	BaseURL    string
	ServiceKey string
	HTTPClient *http.Client
}

type Client struct {
	secret     []byte
	baseURL    string
	serviceKey string
	client     *http.Client
}

type metadataPayload struct {
	FreeUsage int `json:"free_usage"`
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.JWTSecret) == "" {
		return nil, errors.New("identity jwt secret is required")
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("identity base url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		secret:     []byte(opts.JWTSecret),
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		serviceKey: strings.TrimSpace(opts.ServiceKey),
		client:     client,
	}, nil
}

// Verify validates the bearer token and resolves the caller session. The
// usage counter is only consulted for non-premium plans: premium callers
// never touch it.
func (c *Client) Verify(ctx context.Context, token string) (*Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("verify token: %w", domain.ErrUnauthenticated)
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return nil, fmt.Errorf("token missing subject: %w", domain.ErrUnauthenticated)
	}
	plan := domain.Plan(claims.Plan)
	if plan != domain.PlanPremium {
		plan = domain.PlanFree
	}
	sess := &Session{UserID: sub, Plan: plan}
	if plan == domain.PlanPremium {
		return sess, nil
	}
	usage, err := c.fetchFreeUsage(ctx, sub)
	if err != nil {
		return nil, err
	}
	sess.FreeUsage = usage
	return sess, nil
}

// IncrementFreeUsage persists the post-generation counter value. The
// counter only moves forward; there is no decrement path.
func (c *Client) IncrementFreeUsage(ctx context.Context, userID string, next int) error {
	body, err := json.Marshal(metadataPayload{FreeUsage: next})
	if err != nil {
		return fmt.Errorf("encode usage payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.metadataURL(userID), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build usage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("update usage: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("update usage: identity status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) fetchFreeUsage(ctx context.Context, userID string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.metadataURL(userID), nil)
	if err != nil {
		return 0, fmt.Errorf("build metadata request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch metadata: %v: %w", err, domain.ErrProviderUnavailable)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("unknown identity %s: %w", userID, domain.ErrUnauthenticated)
	}
	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("fetch metadata: identity status %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	}
	var payload metadataPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode metadata: %v: %w", err, domain.ErrProviderUnavailable)
	}
	return payload.FreeUsage, nil
}

func (c *Client) metadataURL(userID string) string {
	return fmt.Sprintf("%s/v1/users/%s/metadata", c.baseURL, userID)
}

func (c *Client) authorize(req *http.Request) {
	if c.serviceKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	}
}
