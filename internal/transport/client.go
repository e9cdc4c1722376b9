package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/agentstation/studiosync/pkg/constants"
	"github.com/agentstation/studiosync/pkg/errors"
)

// Client provides HTTP client functionality with authentication and retry.
// One Client talks to one remote service.
type Client struct {
	name    string
	http    *http.Client
	auth    Authenticator
	apiKey  string
	retry   RetryPolicy
	timeout time.Duration
	agent   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRetry overrides the retry policy.
func WithRetry(p RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// WithTimeout forces one per-attempt timeout for every call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(c *Client) {
		c.agent = agent
	}
}

// New creates a transport client. name identifies the remote in errors and logs.
func New(name string, auth Authenticator, apiKey string, opts ...Option) *Client {
	c := &Client{
		name:   name,
		http:   &http.Client{},
		auth:   auth,
		apiKey: apiKey,
		retry:  DefaultRetryPolicy(),
		agent:  "studiosync",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the remote name used in errors.
func (c *Client) Name() string {
	return c.name
}

// DoWithContext performs an HTTP request with authentication applied.
// It makes exactly one attempt.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	if c.auth != nil && c.apiKey != "" {
		c.auth.Apply(req, c.apiKey)
	}

	req.Header.Set("Accept", "application/json")
	if c.agent != "" {
		req.Header.Set("User-Agent", c.agent)
	}
	if req.Method == http.MethodPost || req.Method == http.MethodPut || req.Method == http.MethodPatch {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == context.Canceled {
			return nil, errors.Join(errors.ErrCanceled, err)
		}
		return nil, &errors.APIError{Registry: c.name, Message: err.Error(), Err: err}
	}
	return resp, nil
}

// GetJSON fetches url and decodes the JSON answer into target, retrying
// transient failures.
func (c *Client) GetJSON(ctx context.Context, url string, timeout time.Duration, target any) error {
	return c.doJSON(ctx, http.MethodGet, url, nil, timeout, target)
}

// PostJSON posts body as JSON and decodes the answer into target, retrying
// transient failures.
func (c *Client) PostJSON(ctx context.Context, url string, body any, timeout time.Duration, target any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.WrapParse("json", "request", err)
	}
	return c.doJSON(ctx, http.MethodPost, url, payload, timeout, target)
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload []byte, timeout time.Duration, target any) error {
	if c.timeout > 0 {
		timeout = c.timeout
	}
	if timeout <= 0 {
		timeout = constants.QueryTimeout
	}
	_, err := Retry(ctx, c.retry, method+" "+url, func(ctx context.Context) (struct{}, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(attemptCtx, method, url, body)
		if err != nil {
			return struct{}{}, errors.WrapResource("create", "request", method+" "+url, err)
		}
		resp, err := c.DoWithContext(attemptCtx, req)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, DecodeResponse(c.name, resp, target)
	})
	return err
}
