package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/tutaexport/tutaexport/internal/apierrors"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultBlobCeiling = 64 << 20
)

// Client handles HTTP communication with the mail service's REST-like
// API. It owns the bearer access token issued at login, refreshes it
// once on a 401 via the callback installed by [WithReauthenticator],
// and retries transient failures
// with [RetryConfig]'s exponential backoff.
type Client struct {
	httpClient *http.Client
	baseURL    string
	// blobBaseURL is the separate storage host blob downloads use; it
	// defaults to baseURL when not set via [WithBlobBaseURL].
	blobBaseURL string
	retry       *RetryConfig
	blobCeiling int

	mu             sync.RWMutex
	accessToken    string
	reauthenticate func(ctx context.Context) (string, error)
}

// Option configures a [Client].
type Option func(*Client)

// New creates an API client. baseURL is required; all other settings
// have defaults matching the service's observed behavior.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	c := &Client{
		baseURL:     baseURL,
		blobBaseURL: baseURL,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		retry:       DefaultRetryConfig(),
		blobCeiling: DefaultBlobCeiling,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// WithBlobBaseURL sets the host blob downloads are fetched from, when
// it differs from the main API host.
func WithBlobBaseURL(url string) Option {
	return func(c *Client) { c.blobBaseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

// WithRetryConfig overrides the default retry behavior.
func WithRetryConfig(cfg *RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithBlobCeiling caps how many bytes [Client.FetchBlob] will buffer
// for a single blob.
func WithBlobCeiling(n int) Option {
	return func(c *Client) { c.blobCeiling = n }
}

// WithReauthenticator installs the callback [Client.Do] invokes after
// a single 401 response, to obtain a fresh access token. The root
// session controller wires this to re-run the login state machine.
func WithReauthenticator(fn func(ctx context.Context) (string, error)) Option {
	return func(c *Client) { c.reauthenticate = fn }
}

// SetAccessToken installs the bearer token used on every subsequent
// request. Called once after login succeeds, and again after a
// successful reauthenticate.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// Do executes an authenticated JSON request against the main API host,
// retrying transient failures and re-authenticating once on a single
// 401.
func (c *Client) Do(ctx context.Context, method, path string, body, result any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	reauthed := false
	var lastErr error

	for attempt := 0; ; attempt++ {
		resp, err := c.do(ctx, method, c.baseURL+path, payload)
		if err != nil {
			lastErr = &apierrors.NetworkError{Err: err}
			if attempt >= c.retry.MaxRetries {
				return lastErr
			}
			if werr := c.retry.Wait(ctx, attempt, 0); werr != nil {
				return werr
			}
			continue
		}

		if resp.StatusCode == http.StatusUnauthorized && c.reauthenticate != nil && !reauthed {
			resp.Body.Close()
			reauthed = true
			token, rerr := c.reauthenticate(ctx)
			if rerr != nil {
				return fmt.Errorf("reauthenticate: %w", rerr)
			}
			c.SetAccessToken(token)
			continue
		}

		if c.retry.ShouldRetry(attempt, resp.StatusCode) {
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			resp.Body.Close()
			lastErr = &apierrors.APIError{StatusCode: resp.StatusCode}
			if werr := c.retry.Wait(ctx, attempt, retryAfter); werr != nil {
				return werr
			}
			continue
		}

		if resp.StatusCode >= 400 {
			defer resp.Body.Close()
			return parseErrorResponse(resp)
		}

		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNoContent || result == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.httpClient.Do(req)
}

// FetchBlob downloads a blob from the storage host, bounding the
// response to blobCeiling bytes so a misreported content length can't
// exhaust memory.
func (c *Client) FetchBlob(ctx context.Context, blobID string) ([]byte, error) {
	path := "/rest/file/blob/" + blobID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.blobBaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &apierrors.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, apierrors.WithResourceType(parseErrorResponse(resp), apierrors.ResourceBlob)
	}

	limited := io.LimitReader(resp.Body, int64(c.blobCeiling)+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	if len(data) > c.blobCeiling {
		return nil, fmt.Errorf("blob exceeds %d byte ceiling", c.blobCeiling)
	}
	return data, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		return time.Until(when)
	}
	return 0
}

// parseErrorResponse extracts error information from an HTTP error
// response, following the "error"/"message"/"request_id" JSON
// convention; a non-JSON body is used as the message verbatim.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error     string `json:"error"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	}

	if err := json.Unmarshal(body, &errResp); err == nil {
		msg := errResp.Error
		if msg == "" {
			msg = errResp.Message
		}
		if msg == "" {
			msg = string(body)
		}
		return &apierrors.APIError{StatusCode: resp.StatusCode, Message: msg, RequestID: errResp.RequestID}
	}

	return &apierrors.APIError{StatusCode: resp.StatusCode, Message: string(body)}
}
