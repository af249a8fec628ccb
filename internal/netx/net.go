// Package netx is the REST client shared by the replay transport and the
// remote user source: bearer authentication, a per-request id, and
// structured errors for non-2xx responses.
package netx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/offlinekit/internal/common"
	"github.com/google/uuid"
)

const (
	RequestIDHeader  = "X-Request-Id"
	DefaultTimeout   = 30 * time.Second
	maxErrorBodySize = 4 << 10
)

// TokenSource supplies the bearer credential; "" sends no Authorization header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// HTTPError is returned for any response outside 2xx.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error formats the status and, when the server sent one, its error code.
func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// Client is the REST client shared by the remote source and the sync queue
// transport. Every request carries the current bearer token, the configured
// User-Agent and a fresh X-Request-Id. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	userAgent  string
}

// NewClient returns a client for baseURL. A non-positive timeout falls back
// to DefaultTimeout.
func NewClient(baseURL string, tokens TokenSource, timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		userAgent:  userAgent,
	}
}

// BaseURL is the normalized base URL, without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Do sends body (raw JSON, may be nil) to baseURL+path and decodes a 2xx
// response into out when out is non-nil and the body is not empty.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if c.userAgent != "" {
		req.Header.Set(common.UserAgentHeader, c.userAgent)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("read credential: %w", err)
		}
		if token != "" {
			req.Header.Set(common.AuthorizationHeader, common.BearerPrefix+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if len(bytes.TrimSpace(payload)) == 0 {
			return nil
		}
		return json.Unmarshal(payload, out)
	}

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	var errPayload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(payload, &errPayload)
	if errPayload.Message == "" {
		errPayload.Message = strings.TrimSpace(string(payload))
	}
	if errPayload.Message == "" {
		errPayload.Message = http.StatusText(resp.StatusCode)
	}
	return &HTTPError{StatusCode: resp.StatusCode, Code: errPayload.Code, Message: errPayload.Message}
}
