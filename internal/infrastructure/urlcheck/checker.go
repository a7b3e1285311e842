// Package urlcheck probes image URLs with HEAD requests.
package urlcheck

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Checker issues HEAD requests against image URLs
type Checker struct {
	httpClient *http.Client
}

// NewChecker creates a new checker. A nil client gets a 15 second timeout.
func NewChecker(httpClient *http.Client) *Checker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Checker{httpClient: httpClient}
}

// ValidateImage requires a 2xx answer with an image/* content type
func (c *Checker) ValidateImage(ctx context.Context, url string) error {
	resp, err := c.head(ctx, url, "image/*")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("URL validation failed: %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("URL validation failed: invalid content type %q", contentType)
	}
	return nil
}

// IsValidImage is ValidateImage reduced to a bool
func (c *Checker) IsValidImage(ctx context.Context, url string) bool {
	return c.ValidateImage(ctx, url) == nil
}

// RequireOK accepts any 2xx answer regardless of content type
func (c *Checker) RequireOK(ctx context.Context, url string) error {
	resp, err := c.head(ctx, url, "image/*")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("URL validation failed: %d", resp.StatusCode)
	}
	return nil
}

// Reachable is the lenient probe used for lazily rendered images: any answer below 400
// counts, since the host may still be rendering or redirecting.
func (c *Checker) Reachable(ctx context.Context, url string) error {
	resp, err := c.head(ctx, url, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("image host returned %d", resp.StatusCode)
	}
	return nil
}

func (c *Checker) head(ctx context.Context, url, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}
