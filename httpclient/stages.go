package httpclient

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// TokenPathPrefix covers the login and refresh endpoints, which are never retried
	TokenPathPrefix = "/api/auth/token/"

	// RequestIDHeader correlates client attempts with backend logs
	RequestIDHeader = "X-Request-ID"
)

// Attempt is one send of a Request. Replays get a new Attempt with a new http.Request.
type Attempt struct {
	Call  *Request
	HTTP  *http.Request
	Retry bool
}

// RequestStage augments an outgoing attempt before it reaches the transport.
type RequestStage func(ctx context.Context, attempt *Attempt) error

// IsExemptPath reports whether path belongs to the authentication endpoints that
// must never trigger refresh-and-retry.
func IsExemptPath(path string) bool {
	return strings.Contains(path, TokenPathPrefix)
}

// RefreshEligible is the response-recovery rule: a 401 on a non-token endpoint that
// has not been retried yet.
func RefreshEligible(path string, status int, retried bool) bool {
	return status == http.StatusUnauthorized && !retried && !IsExemptPath(path)
}

// DefaultHeadersStage sets the JSON headers every backend call carries.
func DefaultHeadersStage(headers http.Header) RequestStage {
	return func(_ context.Context, attempt *Attempt) error {
		for k, values := range headers {
			if attempt.HTTP.Header.Get(k) != "" {
				continue
			}
			for _, v := range values {
				attempt.HTTP.Header.Add(k, v)
			}
		}
		return nil
	}
}

// RequestIDStage tags each attempt with a fresh request id.
func RequestIDStage() RequestStage {
	return func(_ context.Context, attempt *Attempt) error {
		attempt.HTTP.Header.Set(RequestIDHeader, uuid.New().String())
		return nil
	}
}

// StaleCheck reports whether the stored access credential is about to be rejected.
type StaleCheck func(now time.Time) bool

// ProactiveRefreshStage refreshes before sending when the access credential is known
// to be stale, so the common case avoids a 401 round trip. It goes through the same
// Refresher as recovery, so concurrent callers still share one refresh. A failed
// proactive refresh is logged at debug level and is not fatal; the request is sent and
// recovery takes over.
func ProactiveRefreshStage(stale StaleCheck, refresher Refresher, now func() time.Time, logger zerolog.Logger) RequestStage {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, attempt *Attempt) error {
		if attempt.Retry || attempt.Call.Anonymous || IsExemptPath(attempt.Call.Path) {
			return nil
		}
		if !stale(now()) {
			return nil
		}
		if err := refresher.Refresh(ctx); err != nil {
			logger.Debug().Err(err).Str("path", attempt.Call.Path).Msg("proactive refresh failed, sending anyway")
		}
		return nil
	}
}
