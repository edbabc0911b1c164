package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jrsteele09/revalytiq-client/httpclient"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Backend endpoints. Every path carries the /api prefix.
const (
	EndpointLogin          = "/api/auth/token/"
	EndpointRefresh        = "/api/auth/token/refresh/"
	EndpointRegister       = "/api/auth/register/"
	EndpointForgotPassword = "/api/auth/password/forgot/"
	EndpointResetPassword  = "/api/auth/password/reset/"
	EndpointMe             = "/api/auth/me/"
	EndpointProfile        = "/api/auth/profile/"
	EndpointLogout         = "/api/auth/logout/"
	EndpointOrders         = "/api/analytics/orders/"
	EndpointKPIs           = "/api/analytics/kpis/"
)

// Doer sends backend calls. *httpclient.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, req *httpclient.Request, out any) (*httpclient.Response, error)
}

// Service is a thin typed facade over the backend. It never touches the session
// store; callers decide what a response means for the session.
type Service struct {
	client Doer
	logger zerolog.Logger
}

type Option func(*Service)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(client Doer, options ...Option) *Service {
	s := &Service{client: client, logger: log.Logger}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Login exchanges credentials. In cookie mode the backend sets the credential
// cookies on the response and the body only carries a detail message.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var out LoginResponse
	if err := s.call(ctx, http.MethodPost, EndpointLogin, nil, LoginRequest{Username: username, Password: password}, true, &out); err != nil {
		return nil, fmt.Errorf("[Service.Login] %w", err)
	}
	return &out, nil
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	var out User
	if err := s.call(ctx, http.MethodPost, EndpointRegister, nil, req, true, &out); err != nil {
		return nil, fmt.Errorf("[Service.Register] %w", err)
	}
	return &out, nil
}

func (s *Service) ForgotPassword(ctx context.Context, email string) (*ForgotPasswordResponse, error) {
	var out ForgotPasswordResponse
	body := map[string]string{"email": email}
	if err := s.call(ctx, http.MethodPost, EndpointForgotPassword, nil, body, true, &out); err != nil {
		return nil, fmt.Errorf("[Service.ForgotPassword] %w", err)
	}
	return &out, nil
}

func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) (*DetailResponse, error) {
	var out DetailResponse
	if err := s.call(ctx, http.MethodPost, EndpointResetPassword, nil, req, true, &out); err != nil {
		return nil, fmt.Errorf("[Service.ResetPassword] %w", err)
	}
	return &out, nil
}

// Me returns the identity bound to the current credentials.
func (s *Service) Me(ctx context.Context) (*User, error) {
	var out User
	if err := s.call(ctx, http.MethodGet, EndpointMe, nil, nil, false, &out); err != nil {
		return nil, fmt.Errorf("[Service.Me] %w", err)
	}
	return &out, nil
}

func (s *Service) UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	var out User
	if err := s.call(ctx, http.MethodPatch, EndpointProfile, nil, update, false, &out); err != nil {
		return nil, fmt.Errorf("[Service.UpdateProfile] %w", err)
	}
	return &out, nil
}

// Logout asks the backend to revoke the refresh credential and clear the cookies.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.call(ctx, http.MethodPost, EndpointLogout, nil, nil, false, nil); err != nil {
		return fmt.Errorf("[Service.Logout] %w", err)
	}
	return nil
}

func (s *Service) FetchOrders(ctx context.Context) (*OrdersPayload, error) {
	var out OrdersPayload
	if err := s.call(ctx, http.MethodGet, EndpointOrders, nil, nil, false, &out); err != nil {
		return nil, fmt.Errorf("[Service.FetchOrders] %w", err)
	}
	return &out, nil
}

func (s *Service) FetchKPIs(ctx context.Context, window KPIRange) (*KPISummary, error) {
	query := url.Values{}
	if !window.Start.IsZero() {
		query.Set("start", window.Start.Format(kpiDateLayout))
	}
	if !window.End.IsZero() {
		query.Set("end", window.End.Format(kpiDateLayout))
	}

	var out KPISummary
	if err := s.call(ctx, http.MethodGet, EndpointKPIs, query, nil, false, &out); err != nil {
		return nil, fmt.Errorf("[Service.FetchKPIs] %w", err)
	}
	return &out, nil
}

func (s *Service) call(ctx context.Context, method, path string, query url.Values, body any, anonymous bool, out any) error {
	if body == nil && method != http.MethodGet {
		body = json.RawMessage(`{}`)
	}
	_, err := s.client.Do(ctx, &httpclient.Request{
		Method:    method,
		Path:      path,
		Query:     query,
		Body:      body,
		Anonymous: anonymous,
	}, out)
	if err != nil {
		s.logger.Debug().Err(err).Str("path", path).Msg("backend call failed")
	}
	return err
}
