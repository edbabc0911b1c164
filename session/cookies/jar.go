package cookies

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Jar is an http.CookieJar that mirrors the backend's cookies into a Repo.
// Cookies for other hosts are kept in memory only.
type Jar struct {
	mu       sync.Mutex
	inner    *cookiejar.Jar
	base     *url.URL
	repo     Repo
	expiries map[string]time.Time
	logger   zerolog.Logger
}

var _ http.CookieJar = (*Jar)(nil)

// JarOption configures a Jar.
type JarOption func(*Jar)

// WithJarLogger sets the logger for persistence failures.
func WithJarLogger(logger zerolog.Logger) JarOption {
	return func(j *Jar) {
		j.logger = logger
	}
}

// NewJar creates a jar for baseURL and restores any unexpired cookies saved in repo.
func NewJar(baseURL string, repo Repo, options ...JarOption) (*Jar, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("[cookies.NewJar] invalid base url %q", baseURL)
	}
	if repo == nil {
		return nil, fmt.Errorf("[cookies.NewJar] repo is required")
	}
	inner, err := newInnerJar()
	if err != nil {
		return nil, err
	}

	j := &Jar{
		inner:    inner,
		base:     &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/"},
		repo:     repo,
		expiries: make(map[string]time.Time),
		logger:   log.Logger,
	}
	for _, opt := range options {
		opt(j)
	}

	if err := j.restore(); err != nil {
		return nil, err
	}
	return j, nil
}

func newInnerJar() (*cookiejar.Jar, error) {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("[cookies.NewJar] cookiejar.New: %w", err)
	}
	return inner, nil
}

func (j *Jar) restore() error {
	stored, err := j.repo.Load()
	if err != nil {
		return fmt.Errorf("[cookies.NewJar] repo.Load: %w", err)
	}

	now := NowTimeFunc()
	restored := make([]*http.Cookie, 0, len(stored))
	for _, sc := range stored {
		if !sc.Expires.IsZero() && !sc.Expires.After(now) {
			continue
		}
		restored = append(restored, &http.Cookie{
			Name:    sc.Name,
			Value:   sc.Value,
			Path:    "/",
			Expires: sc.Expires,
		})
		if !sc.Expires.IsZero() {
			j.expiries[sc.Name] = sc.Expires
		}
	}
	if len(restored) > 0 {
		j.inner.SetCookies(j.base, restored)
		j.logger.Debug().Int("count", len(restored)).Msg("restored session cookies")
	}
	return nil
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.inner.SetCookies(u, cookies)
	if !j.isBackend(u) {
		return
	}

	now := NowTimeFunc()
	for _, c := range cookies {
		switch {
		case c.MaxAge < 0:
			delete(j.expiries, c.Name)
		case c.MaxAge > 0:
			j.expiries[c.Name] = now.Add(time.Duration(c.MaxAge) * time.Second)
		case !c.Expires.IsZero():
			j.expiries[c.Name] = c.Expires
		default:
			delete(j.expiries, c.Name)
		}
	}
	j.persistLocked()
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inner.Cookies(u)
}

// Value returns the backend cookie called name.
func (j *Jar) Value(name string) (string, bool) {
	for _, c := range j.Cookies(j.base) {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// Has reports whether the backend cookie called name is present.
func (j *Jar) Has(name string) bool {
	_, ok := j.Value(name)
	return ok
}

// Reset drops every cookie from memory and from the repo.
func (j *Jar) Reset() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	inner, err := newInnerJar()
	if err != nil {
		return err
	}
	j.inner = inner
	j.expiries = make(map[string]time.Time)
	if err := j.repo.Delete(); err != nil {
		return fmt.Errorf("[Jar.Reset] repo.Delete: %w", err)
	}
	return nil
}

func (j *Jar) persistLocked() {
	current := j.inner.Cookies(j.base)
	stored := make([]StoredCookie, 0, len(current))
	for _, c := range current {
		stored = append(stored, StoredCookie{Name: c.Name, Value: c.Value, Expires: j.expiries[c.Name]})
	}
	sort.Slice(stored, func(a, b int) bool { return stored[a].Name < stored[b].Name })

	var err error
	if len(stored) == 0 {
		err = j.repo.Delete()
	} else {
		err = j.repo.Save(stored)
	}
	if err != nil {
		// The in-memory jar stays authoritative for this run.
		j.logger.Warn().Err(err).Msg("failed to persist session cookies")
	}
}

func (j *Jar) isBackend(u *url.URL) bool {
	return u != nil && strings.EqualFold(u.Hostname(), j.base.Hostname())
}
