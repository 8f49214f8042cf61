// Package cloudinary implements the small slice of the Cloudinary upload
// API this service needs: signed image uploads (optionally with an incoming
// transformation such as background removal) and delivery-URL construction
// for generative transformations applied at fetch time.
package cloudinary

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"server/internal/domain"
	"server/internal/providers"
)

const (
	defaultTimeout = 30 * time.Second
	defaultAPIBase = "https://api.cloudinary.com/v1_1"
	defaultCDNBase = "https://res.cloudinary.com"

	providerName = "cloudinary"

	// TransformBackgroundRemoval strips the background during upload.
	TransformBackgroundRemoval = "e_background_removal"
)

type Options struct {
	CloudName  string
	APIKey     string
	APISecret  string
	APIBaseURL string
	CDNBaseURL string
	HTTPClient *http.Client
	Now        func() time.Time
}

type Client struct {
	cloudName string
	apiKey    string
	apiSecret string
	apiBase   string
	cdnBase   string
	client    *http.Client
	now       func() time.Time
}

// UploadParams are the signed parameters sent along with the file.
type UploadParams struct {
	Folder         string
	Transformation string
}

// UploadResult is the subset of the upload response the workflows consume.
type UploadResult struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	Format    string `json:"format"`
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.CloudName) == "" {
		return nil, errors.New("cloudinary cloud name is required")
	}
	if strings.TrimSpace(opts.APIKey) == "" || strings.TrimSpace(opts.APISecret) == "" {
		return nil, errors.New("cloudinary api credentials are required")
	}
	apiBase := strings.TrimRight(opts.APIBaseURL, "/")
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	cdnBase := strings.TrimRight(opts.CDNBaseURL, "/")
	if cdnBase == "" {
		cdnBase = defaultCDNBase
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		cloudName: strings.TrimSpace(opts.CloudName),
		apiKey:    strings.TrimSpace(opts.APIKey),
		apiSecret: strings.TrimSpace(opts.APISecret),
		apiBase:   apiBase,
		cdnBase:   cdnBase,
		client:    client,
		now:       now,
	}, nil
}

// UploadImage uploads raw image bytes as a base64 data URI and returns the
// stored asset. contentType must be an image MIME type.
func (c *Client) UploadImage(ctx context.Context, data []byte, contentType string, params UploadParams) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cloudinary: empty image payload: %w", domain.ErrInvalidInput)
	}
	dataURI := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))

	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	signed := map[string]string{"timestamp": timestamp}
	if params.Folder != "" {
		signed["folder"] = params.Folder
	}
	if params.Transformation != "" {
		signed["transformation"] = params.Transformation
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	fields := map[string]string{
		"file":      dataURI,
		"api_key":   c.apiKey,
		"signature": c.sign(signed),
	}
	for k, v := range signed {
		fields[k] = v
	}
	for k, v := range fields {
		if err := form.WriteField(k, v); err != nil {
			return nil, providers.Unavailable(providerName, err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, providers.Unavailable(providerName, err)
	}

	endpoint := fmt.Sprintf("%s/%s/image/upload", c.apiBase, c.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, providers.Unavailable(providerName, err)
	}
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
	var out UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, providers.Unavailable(providerName, err)
	}
	if out.SecureURL == "" {
		return nil, providers.EmptyPayload(providerName)
	}
	return &out, nil
}

// DeliveryURL builds a CDN URL applying transformation to a stored asset.
func (c *Client) DeliveryURL(publicID, format, transformation string) string {
	path := publicID
	if format != "" {
		path = publicID + "." + format
	}
	if transformation == "" {
		return fmt.Sprintf("%s/%s/image/upload/%s", c.cdnBase, c.cloudName, path)
	}
	return fmt.Sprintf("%s/%s/image/upload/%s/%s", c.cdnBase, c.cloudName, transformation, path)
}

// ObjectRemovalTransform builds the generative-remove directive for the
// described object, e.g. "e_gen_remove:prompt_chair".
func ObjectRemovalTransform(object string) string {
	cleaned := strings.TrimSpace(strings.ToLower(object))
	cleaned = strings.ReplaceAll(cleaned, " ", "%20")
	return "e_gen_remove:prompt_" + cleaned
}

// sign produces the Cloudinary request signature: the signed parameters
// sorted by key, joined as key=value with '&', concatenated with the API
// secret and hashed with SHA-1.
func (c *Client) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + c.apiSecret))
	return hex.EncodeToString(sum[:])
}
