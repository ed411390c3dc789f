package unipile

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrNotConfigured is returned when provider-API fetches are attempted
// without a DSN/key pair.
var ErrNotConfigured = fmt.Errorf("unipile client not configured")

type Config struct {
	DSN    string // provider API base URL
	APIKey string
}

// Client is a minimal Unipile REST client. It only covers what ingestion
// needs: downloading attachment bytes, either from the ephemeral URL the
// webhook carried or from the provider attachment endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Fetch downloads from a direct URL. Returns the body and content type.
func (c *Client) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building fetch request: %w", err)
	}

	return c.do(req)
}

// FetchAttachment downloads attachment bytes through the provider API, for
// attachments whose webhook payload carried no direct URL.
func (c *Client) FetchAttachment(ctx context.Context, messageID, attachmentID string) (io.ReadCloser, string, error) {
	if c.cfg.DSN == "" || c.cfg.APIKey == "" {
		return nil, "", ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/api/v1/messages/%s/attachments/%s",
		c.cfg.DSN, url.PathEscape(messageID), url.PathEscape(attachmentID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building attachment request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.cfg.APIKey)
	req.Header.Set("Accept", "*/*")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (io.ReadCloser, string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching %s: %w", req.URL.Host, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, "", fmt.Errorf("fetching %s: unexpected status %d", req.URL.Host, resp.StatusCode)
	}

	return resp.Body, resp.Header.Get("Content-Type"), nil
}
