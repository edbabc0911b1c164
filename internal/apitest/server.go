package apitest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

const (
	AccessCookie  = "revalyt_access"
	RefreshCookie = "revalyt_refresh"

	AccessLifetime  = 5 * time.Minute
	RefreshLifetime = 7 * 24 * time.Hour

	PageSize = 50

	DemoUserID   = 42
	DemoUsername = "demo"
	DemoEmail    = "demo@example.com"
	DemoPassword = "s3cret"
)

// Server is an in-process stand-in for the dashboard backend. It speaks the same
// JSON and cookie contract and adds counters and fault hooks for tests.
type Server struct {
	users  *userRepo
	orders *orderRepo
	tokens *tokenIssuer
	resets *resetTokens
	logger zerolog.Logger
	router chi.Router

	plainOrders  atomic.Bool
	failRefresh  atomic.Bool
	failLogout   atomic.Bool
	refreshDelay atomic.Int64

	refreshes atomic.Int64
	hitsMu    sync.Mutex
	hits      map[string]int

	barrierMu sync.Mutex
	barrier   *barrier
}

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithOrders replaces the demo orders.
func WithOrders(orders []Order) Option {
	return func(s *Server) {
		s.orders = newOrderRepo(orders)
	}
}

// WithSecret sets the HS256 signing secret.
func WithSecret(secret string) Option {
	return func(s *Server) {
		s.tokens.secret = []byte(secret)
	}
}

// WithLifetimes overrides the access and refresh token lifetimes.
func WithLifetimes(access, refresh time.Duration) Option {
	return func(s *Server) {
		s.tokens.accessExpiry = access
		s.tokens.refreshExpiry = refresh
	}
}

// New creates a backend seeded with the demo user and demo orders.
func New(options ...Option) *Server {
	s := &Server{
		users:  newUserRepo(),
		orders: newOrderRepo(DemoOrders(NowTimeFunc())),
		tokens: newTokenIssuer([]byte("revalytiq-fake-secret"), AccessLifetime, RefreshLifetime),
		resets: newResetTokens(),
		logger: log.Logger,
		hits:   make(map[string]int),
	}
	for _, opt := range options {
		opt(s)
	}
	if _, err := s.users.Create(DemoUserID, DemoUsername, DemoEmail, DemoPassword); err != nil {
		s.logger.Fatal().Err(err).Msg("failed to seed demo user")
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves the backend on a local port. The caller closes it.
func (s *Server) Start() *httptest.Server {
	return httptest.NewServer(s)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-ID"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", duration).
			Msg("fake backend request")
	}))
	r.Use(s.countHits)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register/", s.handleRegister)
		r.Post("/token/", s.handleLogin)
		r.Post("/token/refresh/", s.handleRefresh)
		r.Post("/password/forgot/", s.handleForgotPassword)
		r.Post("/password/reset/", s.handleResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticated)
			r.Get("/me/", s.handleMe)
			r.Patch("/profile/", s.handleProfile)
			r.Put("/profile/", s.handleProfile)
			r.Post("/logout/", s.handleLogout)
		})
	})

	r.Route("/api/analytics", func(r chi.Router) {
		r.Use(s.authenticated)
		r.Get("/orders/", s.handleOrders)
		r.Get("/kpis/", s.handleKPIs)
	})

	r.Get("/health/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

// AddUser registers an extra account.
func (s *Server) AddUser(username, email, password string) (User, error) {
	return s.users.Create(0, username, email, password)
}

// ExpireAccessTokens makes every access token issued so far fail with 401.
func (s *Server) ExpireAccessTokens() {
	s.tokens.ExpireAccessTokens()
}

// RevokeRefreshTokens makes every refresh token issued so far unusable.
func (s *Server) RevokeRefreshTokens() {
	s.tokens.RevokeAllRefresh()
}

// FailRefresh makes the refresh endpoint answer 401.
func (s *Server) FailRefresh(fail bool) {
	s.failRefresh.Store(fail)
}

// FailLogout makes the logout endpoint answer 500.
func (s *Server) FailLogout(fail bool) {
	s.failLogout.Store(fail)
}

// ServePlainOrders switches the orders endpoint between a bare array and the
// paginated envelope.
func (s *Server) ServePlainOrders(plain bool) {
	s.plainOrders.Store(plain)
}

// DelayRefresh holds every refresh response for d.
func (s *Server) DelayRefresh(d time.Duration) {
	s.refreshDelay.Store(int64(d))
}

// HoldUnauthorized makes the next n rejected protected requests wait for each
// other before answering 401, so they reach the client at the same time.
func (s *Server) HoldUnauthorized(n int) {
	s.barrierMu.Lock()
	defer s.barrierMu.Unlock()
	s.barrier = newBarrier(n)
}

// Refreshes counts refresh requests, successful or not.
func (s *Server) Refreshes() int64 {
	return s.refreshes.Load()
}

// Hits counts requests for "METHOD /path".
func (s *Server) Hits(method, path string) int {
	s.hitsMu.Lock()
	defer s.hitsMu.Unlock()
	return s.hits[method+" "+path]
}

func (s *Server) countHits(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hitsMu.Lock()
		s.hits[r.Method+" "+r.URL.Path]++
		s.hitsMu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) waitAtBarrier() {
	s.barrierMu.Lock()
	b := s.barrier
	if b != nil && b.arrive() {
		s.barrier = nil
	}
	s.barrierMu.Unlock()
	if b != nil {
		b.wait(5 * time.Second)
	}
}

// barrier releases its waiters once n of them have arrived.
type barrier struct {
	remaining int
	release   chan struct{}
}

func newBarrier(n int) *barrier {
	return &barrier{remaining: n, release: make(chan struct{})}
}

// arrive registers one waiter and reports whether it was the last one. Callers
// hold the server's barrier lock.
func (b *barrier) arrive() bool {
	b.remaining--
	if b.remaining <= 0 {
		close(b.release)
		return true
	}
	return false
}

func (b *barrier) wait(timeout time.Duration) {
	select {
	case <-b.release:
	case <-time.After(timeout):
	}
}
