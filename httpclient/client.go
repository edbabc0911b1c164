package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	clienterrors "github.com/jrsteele09/revalytiq-client/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultTimeout = 15 * time.Second

// Request describes one logical backend call. It is turned into a new http.Request for
// every attempt, so a replay never reuses headers or cookies from the failed attempt.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Body      any  // JSON encoded when not nil
	Anonymous bool // public endpoint, skip proactive refresh
}

// Response is a successful (2xx) backend response.
type Response struct {
	Status  int
	Header  http.Header
	Body    []byte
	Retried bool
}

// Refresher renews the access credential.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Client is the single egress point for backend calls. Outgoing attempts pass through
// the request stages; failed responses pass through the recovery rule
// (RefreshEligible → refresh → replay once).
type Client struct {
	baseURL *url.URL
	http    *http.Client
	headers http.Header
	logger  zerolog.Logger

	mu        sync.RWMutex
	stages    []RequestStage
	refresher Refresher
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithJar sets the cookie jar: cookie credential mode.
func WithJar(jar http.CookieJar) Option {
	return func(c *Client) {
		c.http.Jar = jar
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithTransport sets the round tripper. It is still wrapped for tracing.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.Transport = otelhttp.NewTransport(rt)
	}
}

// WithRefresher sets the refresher used by response recovery.
func WithRefresher(r Refresher) Option {
	return func(c *Client) {
		c.refresher = r
	}
}

// WithRequestStage appends an outgoing stage.
func WithRequestStage(stage RequestStage) Option {
	return func(c *Client) {
		c.stages = append(c.stages, stage)
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, options ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("[httpclient.New] invalid base url %q", baseURL)
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")

	c := &Client{
		baseURL: base,
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		headers: headers,
		logger:  log.Logger,
	}
	c.stages = []RequestStage{DefaultHeadersStage(headers), RequestIDStage()}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Jar returns the cookie jar, if any.
func (c *Client) Jar() http.CookieJar {
	return c.http.Jar
}

// UseRefresher installs the refresher after construction; the refresher usually
// needs the client itself to reach the refresh endpoint.
func (c *Client) UseRefresher(r Refresher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresher = r
}

// Use appends an outgoing stage.
func (c *Client) Use(stage RequestStage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stages = append(c.stages, stage)
}

// Do sends req and decodes a JSON success body into out (when out is not nil).
func (c *Client) Do(ctx context.Context, req *Request, out any) (*Response, error) {
	payload, err := encodeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("[Client.Do] %s %s: %w", req.Method, req.Path, err)
	}

	retried := false
	for {
		resp, err := c.send(ctx, req, payload, retried)
		if err == nil {
			resp.Retried = retried
			if out != nil && len(bytes.TrimSpace(resp.Body)) > 0 {
				if err := json.Unmarshal(resp.Body, out); err != nil {
					return nil, fmt.Errorf("[Client.Do] %s %s: %w: %v", req.Method, req.Path, clienterrors.ErrUnexpectedBody, err)
				}
			}
			return resp, nil
		}

		refresher := c.currentRefresher()
		if refresher == nil || !RefreshEligible(req.Path, StatusCode(err), retried) {
			return nil, err
		}

		retried = true
		c.logger.Debug().Str("method", req.Method).Str("path", req.Path).Msg("unauthorized, refreshing before retry")
		if refreshErr := refresher.Refresh(ctx); refreshErr != nil {
			if EndsSession(refreshErr) {
				c.logger.Info().Err(refreshErr).Str("path", req.Path).Msg("refresh rejected, session ended")
			} else {
				c.logger.Warn().Err(refreshErr).Str("path", req.Path).Msg("refresh did not complete")
			}
			return nil, &RecoveryError{Original: err, Refresh: refreshErr}
		}
	}
}

// Get is Do with GET.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	_, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query}, out)
	return err
}

// Post is Do with POST.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	_, err := c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body}, out)
	return err
}

// Patch is Do with PATCH.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	_, err := c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body}, out)
	return err
}

func (c *Client) currentRefresher() Refresher {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refresher
}

func (c *Client) currentStages() []RequestStage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]RequestStage(nil), c.stages...)
}

func (c *Client) send(ctx context.Context, call *Request, payload []byte, retry bool) (*Response, error) {
	target := c.baseURL.ResolveReference(&url.URL{Path: call.Path})
	if len(call.Query) > 0 {
		target.RawQuery = call.Query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, call.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("[Client.send] new request: %w", err)
	}

	attempt := &Attempt{Call: call, HTTP: httpReq, Retry: retry}
	for _, stage := range c.currentStages() {
		if err := stage(ctx, attempt); err != nil {
			return nil, fmt.Errorf("[Client.send] request stage: %w", err)
		}
	}

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("[Client.send] %s %s: %w: %v", call.Method, call.Path, clienterrors.ErrRequestFailed, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("[Client.send] read body: %w: %v", clienterrors.ErrRequestFailed, err)
	}

	c.logger.Debug().
		Str("method", call.Method).
		Str("path", call.Path).
		Int("status", httpResp.StatusCode).
		Bool("retry", retry).
		Str("request_id", httpReq.Header.Get(RequestIDHeader)).
		Dur("duration", time.Since(start)).
		Msg("backend call")

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, newAPIError(call.Method, call.Path, httpResp.StatusCode, respBody)
	}
	return &Response{Status: httpResp.StatusCode, Header: httpResp.Header, Body: respBody}, nil
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if raw, ok := body.(json.RawMessage); ok {
		return raw, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return payload, nil
}
