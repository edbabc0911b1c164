package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/jrsteele09/revalytiq-client/httpclient"
	clienterrors "github.com/jrsteele09/revalytiq-client/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultPath is the backend's refresh endpoint.
const DefaultPath = "/api/auth/token/refresh/"

const flightKey = "refresh"

// Doer sends backend calls. *httpclient.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, req *httpclient.Request, out any) (*httpclient.Response, error)
}

// CredentialCheck reports whether a refresh credential is available at all.
type CredentialCheck func() bool

// Coordinator guarantees at most one refresh request is in flight. Callers arriving
// while one is pending wait for it and share its outcome.
type Coordinator struct {
	client        Doer
	path          string
	hasCredential CredentialCheck
	onRefreshed   func()
	logger        zerolog.Logger

	group singleflight.Group
	sent  atomic.Int64
}

var _ httpclient.Refresher = (*Coordinator)(nil)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithCredentialCheck makes Refresh fail fast, without a network call, when the
// check reports no refresh credential.
func WithCredentialCheck(check CredentialCheck) Option {
	return func(c *Coordinator) {
		c.hasCredential = check
	}
}

// WithOnRefreshed registers a hook run after every successful refresh.
func WithOnRefreshed(fn func()) Option {
	return func(c *Coordinator) {
		c.onRefreshed = fn
	}
}

// WithPath overrides the refresh endpoint.
func WithPath(path string) Option {
	return func(c *Coordinator) {
		c.path = path
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func New(client Doer, options ...Option) *Coordinator {
	c := &Coordinator{
		client: client,
		path:   DefaultPath,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Refresh renews the access credential. The shared request is detached from the
// caller's cancellation so one caller giving up does not fail the others; the caller
// itself still returns as soon as ctx is done.
func (c *Coordinator) Refresh(ctx context.Context) error {
	if c.hasCredential != nil && !c.hasCredential() {
		return fmt.Errorf("[Coordinator.Refresh] %w", clienterrors.ErrNoRefreshCredential)
	}

	ch := c.group.DoChan(flightKey, func() (any, error) {
		return nil, c.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// Sent returns how many refresh requests reached the transport.
func (c *Coordinator) Sent() int64 {
	return c.sent.Load()
}

func (c *Coordinator) refresh(ctx context.Context) error {
	c.sent.Add(1)
	resp, err := c.client.Do(ctx, &httpclient.Request{
		Method:    http.MethodPost,
		Path:      c.path,
		Body:      json.RawMessage(`{}`),
		Anonymous: true,
	}, nil)
	if err != nil {
		c.logger.Info().Err(err).Msg("token refresh rejected")
		return fmt.Errorf("[Coordinator.Refresh] %w: %w", clienterrors.ErrRefreshFailed, err)
	}
	if resp.Status != http.StatusOK && resp.Status != http.StatusNoContent {
		return fmt.Errorf("[Coordinator.Refresh] %w: status %d", clienterrors.ErrRefreshFailed, resp.Status)
	}

	c.logger.Debug().Msg("access token refreshed")
	if c.onRefreshed != nil {
		c.onRefreshed()
	}
	return nil
}
