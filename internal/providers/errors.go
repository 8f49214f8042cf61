// Package providers holds the failure taxonomy shared by all upstream
// adapter packages. Adapters classify upstream failures here so the
// workflow layer can react uniformly regardless of which provider raised
// them.
package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"server/internal/domain"
)

// DefaultRetryAfterSeconds is the backoff hint surfaced when a rate-limited
// upstream does not provide one.
const DefaultRetryAfterSeconds = 60

// RateLimitError reports an upstream 429 together with the retry hint, in
// seconds, taken from the Retry-After header when present.
type RateLimitError struct {
	Provider   string
	RetryAfter int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited, retry after %ds", e.Provider, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return domain.ErrProviderRateLimited }

// RetryAfterHint extracts the retry hint from err, if err carries one.
func RetryAfterHint(err error) (int, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

// ClassifyStatus maps a non-2xx upstream HTTP status to the shared taxonomy.
// 429 becomes a RateLimitError, 400 means the provider rejected our payload
// (caller input problem), everything else counts as the provider being
// unavailable.
func ClassifyStatus(provider string, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{Provider: provider, RetryAfter: retryAfterSeconds(resp)}
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%s: upstream rejected request: %w", provider, domain.ErrInvalidInput)
	default:
		return fmt.Errorf("%s: upstream status %d: %w", provider, resp.StatusCode, domain.ErrProviderUnavailable)
	}
}

// Unavailable wraps err as a provider-unavailable failure. Transport errors
// and timeouts land here: they must never be treated as success.
func Unavailable(provider string, err error) error {
	return fmt.Errorf("%s: %v: %w", provider, err, domain.ErrProviderUnavailable)
}

// EmptyPayload reports an upstream 2xx whose body carried no usable result.
func EmptyPayload(provider string) error {
	return fmt.Errorf("%s: empty upstream payload: %w", provider, domain.ErrProviderUnavailable)
}

func retryAfterSeconds(resp *http.Response) int {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return secs
		}
	}
	return DefaultRetryAfterSeconds
}
