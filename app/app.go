package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/revalytiq-client/api"
	"github.com/jrsteele09/revalytiq-client/bootstrap"
	"github.com/jrsteele09/revalytiq-client/httpclient"
	"github.com/jrsteele09/revalytiq-client/internal/config"
	"github.com/jrsteele09/revalytiq-client/refresh"
	"github.com/jrsteele09/revalytiq-client/session"
	"github.com/jrsteele09/revalytiq-client/session/cookies"
	"github.com/jrsteele09/revalytiq-client/views"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// App is the wired client: one store, one HTTP client and one refresh coordinator
// per process.
type App struct {
	Config       config.Config
	Store        *session.Store
	Jar          *cookies.Jar
	Client       *httpclient.Client
	Refresh      *refresh.Coordinator
	API          *api.Service
	Bootstrapper *bootstrap.Bootstrapper
	Pages        *views.Pages
	logger       zerolog.Logger
}

type settings struct {
	repo       cookies.Repo
	httpClient *http.Client
	logger     zerolog.Logger
	now        func() time.Time
}

type Option func(*settings)

// WithCookieRepo replaces the OS keychain as the durable cookie store.
func WithCookieRepo(repo cookies.Repo) Option {
	return func(s *settings) {
		s.repo = repo
	}
}

// WithHTTPClient replaces the underlying http.Client. Its Jar is overwritten.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) {
		s.httpClient = hc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithClock sets the clock used to decide whether the access cookie is stale.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

// New wires jar → HTTP client → refresh coordinator → API → store → bootstrapper.
func New(cfg config.Config, options ...Option) (*App, error) {
	s := &settings{logger: log.Logger, now: time.Now}
	for _, opt := range options {
		opt(s)
	}
	if s.repo == nil {
		s.repo = cookies.NewKeyringRepo(cfg.GetKeyringService(), cfg.GetKeyringAccount())
	}

	baseURL := cfg.GetAPIURL()
	jar, err := cookies.NewJar(baseURL, s.repo, cookies.WithJarLogger(s.logger))
	if err != nil {
		return nil, fmt.Errorf("[app.New] %w", err)
	}

	clientOptions := []httpclient.Option{}
	if s.httpClient != nil {
		clientOptions = append(clientOptions, httpclient.WithHTTPClient(s.httpClient))
	}
	clientOptions = append(clientOptions,
		httpclient.WithJar(jar),
		httpclient.WithTimeout(cfg.GetHTTPTimeout()),
		httpclient.WithLogger(s.logger),
	)
	client, err := httpclient.New(baseURL, clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("[app.New] %w", err)
	}

	accessName, refreshName := cfg.GetAccessCookieName(), cfg.GetRefreshCookieName()
	coordinator := refresh.New(client,
		refresh.WithCredentialCheck(func() bool { return jar.Has(refreshName) }),
		refresh.WithLogger(s.logger),
	)
	client.UseRefresher(coordinator)
	if cfg.GetProactiveRefresh() {
		skew := cfg.GetRefreshSkew()
		stale := func(now time.Time) bool {
			return jar.Credentials(accessName, refreshName).Stale(now, skew)
		}
		client.Use(httpclient.ProactiveRefreshStage(stale, coordinator, s.now, s.logger))
	}

	service := api.New(client, api.WithLogger(s.logger))
	store := session.NewStore(session.WithLogger(s.logger))

	return &App{
		Config:       cfg,
		Store:        store,
		Jar:          jar,
		Client:       client,
		Refresh:      coordinator,
		API:          service,
		Bootstrapper: bootstrap.New(service, store, bootstrap.WithLogger(s.logger)),
		Pages:        views.New(service, store, views.WithCredentialResetter(jar), views.WithLogger(s.logger)),
		logger:       s.logger,
	}, nil
}

// Start resolves the initial session state. Protected views stay pending until it
// returns.
func (a *App) Start(ctx context.Context) error {
	if err := a.Bootstrapper.Run(ctx); err != nil {
		return fmt.Errorf("[App.Start] %w", err)
	}
	state := a.Store.Current()
	a.logger.Debug().Bool("logged_in", state.LoggedIn()).Msg("session bootstrapped")
	return nil
}
