// Package plex implements the HTTP transport used to talk to a Plex Media
// Server: identity headers, request building with per-call timeouts and the
// response decoding shared by the higher-level packages.
package plex

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds control calls (negotiation, status polls, queue
// management). Data-transfer calls disable it explicitly.
const DefaultTimeout = 30 * time.Second

// Client talks to a single Plex server. It is safe for concurrent use; the
// only shared state is the underlying connection pool.
type Client struct {
	baseURL *url.URL
	httpc   *http.Client
	timeout time.Duration
	strict  bool
	logger  zerolog.Logger

	token string

	// X-Plex-* identity headers sent with every request.
	Provides               string
	Platform               string
	PlatformVersion        string
	Product                string
	Version                string
	Device                 string
	DeviceName             string
	ClientIdentifier       string
	SyncVersion            string
	Model                  string
	Features               string
	TargetClientIdentifier string
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the X-Plex-Token authentication header.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithClientIdentifier overrides the generated device identifier. The server
// scopes download queues per (user, client identifier) pair, so use a stable
// value to get the same queue across runs.
func WithClientIdentifier(id string) Option {
	return func(c *Client) { c.ClientIdentifier = id }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// WithTimeout overrides the default control-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithProduct sets the product name and version reported to the server.
func WithProduct(name, version string) Option {
	return func(c *Client) {
		c.Product = name
		c.Version = version
	}
}

// WithStrictDecoding makes JSON decoding fail on unrecognised fields. Used by
// tests to catch schema drift; production callers should leave it off.
func WithStrictDecoding() Option {
	return func(c *Client) { c.strict = true }
}

// NewClient creates a client for the server at baseURL. The defaults map to
// Plex's Generic profile, which carries no transcoding quirks of its own.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL: u,
		// No client-level timeout: per-request deadlines are managed via
		// context so individual calls can disable them.
		httpc:            &http.Client{},
		timeout:          DefaultTimeout,
		logger:           zerolog.Nop(),
		Provides:         "controller",
		Platform:         "Generic",
		PlatformVersion:  runtime.GOOS,
		Product:          "plexfetch",
		Version:          "unknown",
		Device:           runtime.GOOS,
		DeviceName:       "plexfetch",
		ClientIdentifier: uuid.NewString(),
		SyncVersion:      "2",
		Model:            "hosted",
		Features:         "external-media,indirect-media,hub-style-list",
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "plex").Logger()

	return c, nil
}

// IsAuthenticated reports whether the client carries an auth token.
func (c *Client) IsAuthenticated() bool {
	return c.token != ""
}

// BaseURL returns the configured server URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Get begins building a GET request for the given path.
func (c *Client) Get(path string) *Request { return c.newRequest(http.MethodGet, path) }

// Post begins building a POST request for the given path.
func (c *Client) Post(path string) *Request { return c.newRequest(http.MethodPost, path) }

// Put begins building a PUT request for the given path.
func (c *Client) Put(path string) *Request { return c.newRequest(http.MethodPut, path) }

// Delete begins building a DELETE request for the given path.
func (c *Client) Delete(path string) *Request { return c.newRequest(http.MethodDelete, path) }

// Head begins building a HEAD request for the given path.
func (c *Client) Head(path string) *Request { return c.newRequest(http.MethodHead, path) }

func (c *Client) newRequest(method, path string) *Request {
	return &Request{
		client:  c,
		method:  method,
		path:    path,
		query:   url.Values{},
		headers: http.Header{},
		timeout: c.timeout,
	}
}

func (c *Client) identityHeaders(h http.Header) {
	h.Set("X-Plex-Provides", c.Provides)
	h.Set("X-Plex-Platform", c.Platform)
	h.Set("X-Plex-Platform-Version", c.PlatformVersion)
	h.Set("X-Plex-Product", c.Product)
	h.Set("X-Plex-Version", c.Version)
	h.Set("X-Plex-Device", c.Device)
	h.Set("X-Plex-Device-Name", c.DeviceName)
	h.Set("X-Plex-Sync-Version", c.SyncVersion)
	h.Set("X-Plex-Model", c.Model)
	h.Set("X-Plex-Features", c.Features)
	h.Set("X-Plex-Client-Identifier", c.ClientIdentifier)
	if c.TargetClientIdentifier != "" {
		h.Set("X-Plex-Target-Client-Identifier", c.TargetClientIdentifier)
	}
	if c.token != "" {
		h.Set("X-Plex-Token", c.token)
	}
}

// Request is a builder for a single round-trip. Methods return the receiver
// for chaining.
type Request struct {
	client    *Client
	method    string
	path      string
	query     url.Values
	headers   http.Header
	body      io.Reader
	timeout   time.Duration
	noTimeout bool
	err       error
}

// Param adds a single query parameter.
func (r *Request) Param(key, value string) *Request {
	r.query.Set(key, value)
	return r
}

// Query merges the given values into the request's query parameters.
func (r *Request) Query(values url.Values) *Request {
	for k, vs := range values {
		for _, v := range vs {
			r.query.Add(k, v)
		}
	}
	return r
}

// Header adds a request header.
func (r *Request) Header(key, value string) *Request {
	r.headers.Set(key, value)
	return r
}

// Timeout overrides the timeout for this request.
func (r *Request) Timeout(d time.Duration) *Request {
	r.timeout = d
	r.noTimeout = false
	return r
}

// NoTimeout disables the timeout entirely. Transcodes can produce bytes
// slowly, so download calls must be able to keep the connection open for as
// long as the server needs.
func (r *Request) NoTimeout() *Request {
	r.noTimeout = true
	return r
}

// Body sets a raw request body.
func (r *Request) Body(body []byte) *Request {
	r.body = bytes.NewReader(body)
	return r
}

// JSONBody marshals v as the request body and sets the content type.
func (r *Request) JSONBody(v any) *Request {
	data, err := json.Marshal(v)
	if err != nil {
		r.err = err
		return r
	}
	r.headers.Set("Content-Type", "application/json")
	r.body = bytes.NewReader(data)
	return r
}

// FormBody encodes the values as a form body and sets the content type.
func (r *Request) FormBody(values url.Values) *Request {
	r.headers.Set("Content-Type", "application/x-www-form-urlencoded")
	r.body = strings.NewReader(values.Encode())
	return r
}

// Send executes the request. The caller owns the returned response and must
// finish it with one of JSON, XML, CopyTo, Consume or Close.
func (r *Request) Send(ctx context.Context) (*Response, error) {
	if r.err != nil {
		return nil, r.err
	}

	u := *r.client.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + r.path
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	cancel := func() {}
	if !r.noTimeout && r.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), r.body)
	if err != nil {
		cancel()
		return nil, err
	}
	r.client.identityHeaders(req.Header)
	for k, vs := range r.headers {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	r.client.logger.Trace().
		Str("method", r.method).
		Str("path", r.path).
		Msg("Sending request")

	resp, err := r.client.httpc.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		body:       resp.Body,
		cancel:     cancel,
		strict:     r.client.strict,
	}, nil
}

// JSON sends the request and decodes a successful JSON response into out.
func (r *Request) JSON(ctx context.Context, out any) error {
	resp, err := r.Header("Accept", "application/json").Send(ctx)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return ResponseError(resp)
	}
	return resp.JSON(out)
}

// XML sends the request and decodes a successful XML response into out. The
// server exposes the same documents in both encodings; JSON is the primary
// path and XML is kept for parity.
func (r *Request) XML(ctx context.Context, out any) error {
	resp, err := r.Header("Accept", "application/xml").Send(ctx)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return ResponseError(resp)
	}
	return resp.XML(out)
}

// Consume sends the request, requires a 200 and discards the body.
func (r *Request) Consume(ctx context.Context) error {
	resp, err := r.Header("Accept", "application/json").Send(ctx)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return ResponseError(resp)
	}
	return resp.Consume()
}
