// Package registry talks to an npm-compatible package registry.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sambabib/depconfusion/pkg/errdefs"
)

const (
	// DefaultURL is the public npm registry.
	DefaultURL = "https://registry.npmjs.org"

	auditPath        = "/-/npm/v1/security/audits"
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "depcheck"
)

// Status is the outcome of looking a package up.
type Status int

const (
	StatusFound Status = iota
	StatusNotFound
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// LookupResult describes what the registry knows about one package.
// Latest is set for StatusFound, StatusCode for StatusUnknown.
type LookupResult struct {
	Status     Status
	Latest     string
	StatusCode int
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different registry.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header for registry requests.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// Client queries package metadata and security audits.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
}

// New creates a Client for the public registry unless overridden by opts.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultURL,
		timeout:   defaultTimeout,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	return c
}

// BaseURL returns the registry root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type packument struct {
	DistTags struct {
		Latest string `json:"latest"`
	} `json:"dist-tags"`
}

// Latest looks up the "latest" dist-tag of a package. A 404 is reported as
// StatusNotFound and any other non-200 status as StatusUnknown; neither is an error.
// Transport failures and undecodable bodies return an ErrNetwork error.
func (c *Client) Latest(ctx context.Context, name string) (LookupResult, error) {
	endpoint := c.baseURL + "/" + escapeName(name)
	resp, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return LookupResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return LookupResult{Status: StatusNotFound, StatusCode: resp.StatusCode}, nil
	default:
		io.Copy(io.Discard, resp.Body)
		return LookupResult{Status: StatusUnknown, StatusCode: resp.StatusCode}, nil
	}

	var doc packument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return LookupResult{}, fmt.Errorf("%w: decoding %s: %v", errdefs.ErrNetwork, name, err)
	}
	return LookupResult{Status: StatusFound, Latest: doc.DistTags.Latest, StatusCode: resp.StatusCode}, nil
}

// Audit submits a security audit request and decodes the response.
func (c *Client) Audit(ctx context.Context, req AuditRequest) (*AuditResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding audit request: %v", errdefs.ErrEnrichment, err)
	}
	resp, err := c.do(ctx, http.MethodPost, c.baseURL+auditPath, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrEnrichment, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: audit of %s returned status %d", errdefs.ErrEnrichment, req.Name, resp.StatusCode)
	}
	var out AuditResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding audit of %s: %v", errdefs.ErrEnrichment, req.Name, err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, r)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", errdefs.ErrInvalidInput, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		if ctx.Err() == context.Canceled {
			return nil, fmt.Errorf("%w: %v", errdefs.ErrInterrupted, err)
		}
		return nil, fmt.Errorf("%w: %s %s: %v", errdefs.ErrNetwork, method, endpoint, err)
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelBody releases the request context once the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// escapeName keeps scoped names ("@scope/pkg") as a single path segment.
func escapeName(name string) string {
	return url.PathEscape(name)
}
