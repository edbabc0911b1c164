package views

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/revalytiq-client/api"
	"github.com/jrsteele09/revalytiq-client/httpclient"
	clienterrors "github.com/jrsteele09/revalytiq-client/internal/errors"
	"github.com/jrsteele09/revalytiq-client/session"
)

const (
	msgLoginMissingFields  = "Please enter both username and password."
	msgInvalidCredentials  = "Invalid credentials."
	msgLoginFailed         = "Login failed."
	msgUnexpectedError     = "Unexpected error occurred."
	msgWelcomeBack         = "Welcome back!"
	msgSignupMissingFields = "All fields are required."
	msgPasswordMismatch    = "Passwords do not match."
	msgSignupFailed        = "Unable to sign up. Please try again."
	msgAccountCreated      = "Account created! Please sign in."
	msgResetMissingFields  = "Please fill all fields."
)

type LoginForm struct {
	Username string
	Password string
}

type SignupForm struct {
	Username  string
	Email     string
	Password  string
	Password2 string
}

type ForgotPasswordForm struct {
	Email string
}

type ResetPasswordForm struct {
	Email        string
	UID          string
	Token        string
	NewPassword  string
	NewPassword2 string
}

// ForgotPasswordOutcome adds the demo reset token the backend may hand back.
type ForgotPasswordOutcome struct {
	Outcome
	Token string
	UID   string
}

// Login authenticates, resolves the identity and stores it.
func (p *Pages) Login(ctx context.Context, form LoginForm) Outcome {
	username := strings.TrimSpace(form.Username)
	password := strings.TrimSpace(form.Password)
	if username == "" || password == "" {
		return failed(clienterrors.Wrapf(clienterrors.ErrMissingFields, "[Pages.Login]"), msgLoginMissingFields)
	}

	if _, err := p.backend.Login(ctx, username, password); err != nil {
		return p.loginFailure(err)
	}
	user, err := p.backend.Me(ctx)
	if err != nil {
		return p.loginFailure(err)
	}

	p.store.Set(session.State{User: user, Initialized: true})
	p.logger.Info().Str("username", user.Username).Msg("logged in")
	return Outcome{Notice: msgWelcomeBack, Redirect: RouteDashboard}
}

func (p *Pages) loginFailure(err error) Outcome {
	p.logger.Debug().Err(err).Msg("login failed")
	switch {
	case httpclient.StatusCode(err) == http.StatusUnauthorized:
		return failed(clienterrors.Wrapf(err, "[Pages.Login] %w", clienterrors.ErrInvalidCredentials), msgInvalidCredentials)
	case clienterrors.Is(err, clienterrors.ErrRequestFailed):
		return failed(err, msgLoginFailed)
	case httpclient.StatusCode(err) != 0:
		return failed(clienterrors.Wrapf(err, "[Pages.Login] %w", clienterrors.ErrRequestFailed), msgLoginFailed)
	default:
		return failed(err, msgUnexpectedError)
	}
}

// Signup registers an account. Field checks run before anything is sent.
func (p *Pages) Signup(ctx context.Context, form SignupForm) Outcome {
	username := strings.TrimSpace(form.Username)
	email := strings.TrimSpace(form.Email)
	if username == "" || email == "" || strings.TrimSpace(form.Password) == "" || strings.TrimSpace(form.Password2) == "" {
		return failed(clienterrors.Wrapf(clienterrors.ErrMissingFields, "[Pages.Signup]"), msgSignupMissingFields)
	}
	if form.Password != form.Password2 {
		return failed(clienterrors.Wrapf(clienterrors.ErrPasswordMismatch, "[Pages.Signup]"), msgPasswordMismatch)
	}

	_, err := p.backend.Register(ctx, api.RegisterRequest{
		Username:  username,
		Email:     email,
		Password:  form.Password,
		Password2: form.Password2,
	})
	if err != nil {
		p.logger.Debug().Err(err).Msg("signup rejected")
		if messages := api.JoinValidationErrors(err); messages != "" {
			return failed(clienterrors.Wrapf(err, "[Pages.Signup] %w", clienterrors.ErrValidation), messages)
		}
		return failed(err, msgSignupFailed)
	}
	return Outcome{Notice: msgAccountCreated, Redirect: RouteLogin}
}

// ForgotPassword requests a reset token for email.
func (p *Pages) ForgotPassword(ctx context.Context, form ForgotPasswordForm) (ForgotPasswordOutcome, error) {
	resp, err := p.backend.ForgotPassword(ctx, strings.TrimSpace(form.Email))
	if err != nil {
		return ForgotPasswordOutcome{}, err
	}
	return ForgotPasswordOutcome{
		Outcome: Outcome{Notice: resp.Detail},
		Token:   resp.Token,
		UID:     resp.UID,
	}, nil
}

// ResetPassword sets a new password with a token from ForgotPassword. Backend
// rejections are returned as errors matching ErrValidation; their messages are in
// api.ValidationErrors.
func (p *Pages) ResetPassword(ctx context.Context, form ResetPasswordForm) (Outcome, error) {
	if form.Email == "" || form.Token == "" || form.NewPassword == "" || form.NewPassword2 == "" {
		return failed(clienterrors.Wrapf(clienterrors.ErrMissingFields, "[Pages.ResetPassword]"), msgResetMissingFields), nil
	}

	resp, err := p.backend.ResetPassword(ctx, api.ResetPasswordRequest{
		Email:        form.Email,
		UID:          form.UID,
		Token:        form.Token,
		NewPassword:  form.NewPassword,
		NewPassword2: form.NewPassword2,
	})
	if err != nil {
		if len(api.ValidationErrors(err)) > 0 {
			return Outcome{}, clienterrors.Wrapf(err, "[Pages.ResetPassword] %w", clienterrors.ErrValidation)
		}
		return Outcome{}, err
	}
	return Outcome{Notice: resp.Detail}, nil
}
