// Package clipdrop wraps the ClipDrop text-to-image endpoint. The API takes
// a multipart form with a single prompt field and answers with raw image
// bytes.
package clipdrop

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"server/internal/providers"
)

const (
	defaultTimeout = 60 * time.Second
	defaultBaseURL = "https://clipdrop-api.co"

	providerName = "clipdrop"

	// maxImageBytes guards against a runaway upstream body.
	maxImageBytes = 32 << 20
)

type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("clipdrop api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: baseURL,
		client:  client,
	}, nil
}

// TextToImage renders prompt into a PNG and returns the raw bytes.
func (c *Client) TextToImage(ctx context.Context, prompt string) ([]byte, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("prompt", prompt); err != nil {
		return nil, providers.Unavailable(providerName, err)
	}
	if err := form.Close(); err != nil {
		return nil, providers.Unavailable(providerName, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/text-to-image/v1", &body)
	if err != nil {
		return nil, providers.Unavailable(providerName, err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, providers.Unavailable(providerName, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return nil, providers.ClassifyStatus(providerName, resp)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, providers.Unavailable(providerName, err)
	}
	if len(data) == 0 {
		return nil, providers.EmptyPayload(providerName)
	}
	return data, nil
}
