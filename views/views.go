package views

import (
	"context"

	"github.com/jrsteele09/revalytiq-client/api"
	"github.com/jrsteele09/revalytiq-client/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Backend is the part of api.Service the views call.
type Backend interface {
	Login(ctx context.Context, username, password string) (*api.LoginResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.User, error)
	ForgotPassword(ctx context.Context, email string) (*api.ForgotPasswordResponse, error)
	ResetPassword(ctx context.Context, req api.ResetPasswordRequest) (*api.DetailResponse, error)
	Me(ctx context.Context) (*api.User, error)
	UpdateProfile(ctx context.Context, update api.ProfileUpdate) (*api.User, error)
	Logout(ctx context.Context) error
	FetchOrders(ctx context.Context) (*api.OrdersPayload, error)
	FetchKPIs(ctx context.Context, window api.KPIRange) (*api.KPISummary, error)
}

var _ Backend = (*api.Service)(nil)

// CredentialResetter drops locally held credentials. *cookies.Jar satisfies it.
type CredentialResetter interface {
	Reset() error
}

// Outcome is the user-facing result of a form submission.
type Outcome struct {
	Error    string // shown inline; empty on success
	Notice   string // shown as a toast
	Redirect Route  // empty to stay on the page
	Cause    error  // classified failure behind Error, e.g. ErrMissingFields
}

func failed(cause error, message string) Outcome {
	return Outcome{Error: message, Cause: cause}
}

// OK reports whether the submission succeeded.
func (o Outcome) OK() bool {
	return o.Error == ""
}

// Pages holds the presentation logic of every screen. It decides messages and
// navigation; rendering is left to the caller.
type Pages struct {
	backend     Backend
	store       *session.Store
	credentials CredentialResetter
	logger      zerolog.Logger
}

type Option func(*Pages)

// WithCredentialResetter makes Logout also drop the local credentials.
func WithCredentialResetter(r CredentialResetter) Option {
	return func(p *Pages) {
		p.credentials = r
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pages) {
		p.logger = logger
	}
}

func New(backend Backend, store *session.Store, options ...Option) *Pages {
	p := &Pages{
		backend: backend,
		store:   store,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}
