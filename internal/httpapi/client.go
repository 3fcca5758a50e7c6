// Package httpapi holds the JSON-over-HTTP plumbing shared by the helpdesk
// and messaging gateway clients.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxBodyBytes = 1 << 20

// Doer is the subset of *http.Client used by Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is a fully read HTTP response. Bodies longer than 1 MiB are cut
// at the limit and flagged as Truncated.
type Response struct {
	StatusCode int
	Body       []byte
	Truncated  bool
}

// Raw returns the body exactly as received.
func (r Response) Raw() string {
	return string(r.Body)
}

// Text returns the body as a trimmed string.
func (r Response) Text() string {
	return strings.TrimSpace(string(r.Body))
}

// Option customizes a Client.
type Option func(*Client)

// WithBasicAuth sets HTTP basic credentials on every request.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
		c.basicAuth = true
	}
}

// WithDoer replaces the underlying HTTP client.
func WithDoer(doer Doer) Option {
	return func(c *Client) {
		if doer != nil {
			c.doer = doer
		}
	}
}

// WithDefaultQuery adds query parameters sent with every request.
func WithDefaultQuery(values url.Values) Option {
	return func(c *Client) {
		for key, vals := range values {
			for _, v := range vals {
				c.query.Add(key, v)
			}
		}
	}
}

// Client issues JSON requests against a single base URL.
type Client struct {
	baseURL   string
	doer      Doer
	query     url.Values
	username  string
	password  string
	basicAuth bool
}

// NewClient constructs a Client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(parsed.String(), "/"),
		doer:    &http.Client{Timeout: timeout},
		query:   url.Values{},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Get issues a GET request for path with query.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (Response, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil)
}

// Post issues a POST request with a JSON payload.
func (c *Client) Post(ctx context.Context, path string, payload interface{}) (Response, error) {
	return c.Do(ctx, http.MethodPost, path, nil, payload)
}

// Put issues a PUT request with a JSON payload.
func (c *Client) Put(ctx context.Context, path string, payload interface{}) (Response, error) {
	return c.Do(ctx, http.MethodPut, path, nil, payload)
}

// Do sends a single request and reads the whole response. Only transport
// failures are returned as errors; any status code yields a Response.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, payload interface{}) (Response, error) {
	if ctx == nil {
		return Response{}, errors.New("context is required")
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Response{}, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.basicAuth {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return Response{}, &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return Response{}, &TransportError{Op: "read " + path, Err: err}
	}

	truncated := len(data) > maxBodyBytes
	if truncated {
		data = data[:maxBodyBytes]
	}

	return Response{StatusCode: resp.StatusCode, Body: data, Truncated: truncated}, nil
}

// Expect returns a StatusError unless resp carries one of the accepted codes.
func Expect(resp Response, accepted ...int) error {
	for _, code := range accepted {
		if resp.StatusCode == code {
			return nil
		}
	}
	return &StatusError{Code: resp.StatusCode, Body: resp.Raw()}
}

// DecodeJSON unmarshals the response body into v, reporting a ShapeError on
// failure.
func DecodeJSON(resp Response, v interface{}) error {
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return &ShapeError{Body: resp.Raw(), Err: err}
	}
	return nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")

	merged := url.Values{}
	for key, vals := range c.query {
		merged[key] = append(merged[key], vals...)
	}
	for key, vals := range query {
		merged[key] = append(merged[key], vals...)
	}
	if len(merged) > 0 {
		endpoint += "?" + merged.Encode()
	}

	return endpoint
}
