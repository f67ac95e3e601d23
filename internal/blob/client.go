// Package blob is the blob storage client. Objects live behind the media
// gateway; downloads are public, writes carry the caller's id token.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Error codes, rendered as "storage/<code>".
const (
	CodeUnauthorized   = "unauthorized"
	CodeObjectNotFound = "object-not-found"
	CodeTooLarge       = "too-large"
	CodeRateLimited    = "retry-limit-exceeded"
	CodeUnknown        = "unknown"
)

// Error is returned for every non-2xx gateway response.
type Error struct {
	Code       string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("storage/%s: %s", e.Code, e.Message)
	}
	return "storage/" + e.Code
}

// TokenSource returns the id token to authorize writes with.
type TokenSource func() string

// Client talks to the media gateway at a base URL.
type Client struct {
	base  string
	http  *http.Client
	token TokenSource
}

// New returns a client for the gateway at baseURL. A nil httpClient gets a
// 30 second timeout.
func New(baseURL string, token TokenSource, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("internal/blob: invalid media URL %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		base:  strings.TrimSuffix(u.String(), "/"),
		http:  httpClient,
		token: token,
	}, nil
}

// ObjectURL is the public fetch URL of key. It does not check that the
// object exists; URL does.
func (c *Client) ObjectURL(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.base + "/blobs/" + strings.Join(segments, "/")
}

// Upload stores data under key, replacing any existing object.
func (c *Client) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.ObjectURL(key), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("internal/blob: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.authorize(req)

	return c.do(req)
}

// URL resolves the public fetch URL of an existing object.
func (c *Client) URL(ctx context.Context, key string) (string, error) {
	u := c.ObjectURL(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return "", fmt.Errorf("internal/blob: %w", err)
	}
	if err := c.do(req); err != nil {
		return "", err
	}
	return u, nil
}

// Delete removes key.
func (c *Client) Delete(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.ObjectURL(key), nil)
	if err != nil {
		return fmt.Errorf("internal/blob: %w", err)
	}
	c.authorize(req)

	return c.do(req)
}

func (c *Client) authorize(req *http.Request) {
	if c.token == nil {
		return
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
}

func (c *Client) do(req *http.Request) error {
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("internal/blob: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	e := &Error{StatusCode: res.StatusCode, Message: strings.TrimSpace(string(body))}
	switch res.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		e.Code = CodeUnauthorized
	case http.StatusNotFound:
		e.Code = CodeObjectNotFound
	case http.StatusRequestEntityTooLarge:
		e.Code = CodeTooLarge
	case http.StatusTooManyRequests:
		e.Code = CodeRateLimited
	default:
		e.Code = CodeUnknown
	}
	return e
}
