package bootstrap

import (
	"context"
	"sync"

	"github.com/jrsteele09/revalytiq-client/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// IdentityChecker resolves the identity bound to the stored credentials.
type IdentityChecker interface {
	Me(ctx context.Context) (*session.User, error)
}

// Bootstrapper resolves the initial session state before protected views decide
// anything.
type Bootstrapper struct {
	identity IdentityChecker
	store    *session.Store
	logger   zerolog.Logger
}

type Option func(*Bootstrapper)

func WithLogger(logger zerolog.Logger) Option {
	return func(b *Bootstrapper) {
		b.logger = logger
	}
}

func New(identity IdentityChecker, store *session.Store, options ...Option) *Bootstrapper {
	b := &Bootstrapper{
		identity: identity,
		store:    store,
		logger:   log.Logger,
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Mount is one in-flight identity check owned by a consumer. Once the consumer
// unmounts, the check's result is dropped instead of written to the store.
type Mount struct {
	mu     sync.Mutex
	alive  bool
	cancel context.CancelFunc
	done   chan struct{}
}

// Mount starts the identity check in the background.
func (b *Bootstrapper) Mount(ctx context.Context) *Mount {
	ctx, cancel := context.WithCancel(ctx)
	m := &Mount{
		alive:  true,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(m.done)
		defer cancel()
		b.resolve(ctx, m)
	}()
	return m
}

// Run mounts and waits for the check to settle. It only fails when ctx ends first.
func (b *Bootstrapper) Run(ctx context.Context) error {
	m := b.Mount(ctx)
	if err := m.Wait(ctx); err != nil {
		m.Unmount()
		return err
	}
	return nil
}

func (b *Bootstrapper) resolve(ctx context.Context, m *Mount) {
	user, err := b.identity.Me(ctx)
	if err != nil {
		b.logger.Debug().Err(err).Msg("no existing session")
		user = nil
	}

	wrote := m.whileAlive(func() {
		b.store.SetUser(user)
		b.store.SetInitialized(true)
	})
	if !wrote {
		b.logger.Debug().Msg("session check settled after unmount, result dropped")
		return
	}
	if user != nil {
		b.logger.Info().Str("username", user.Username).Msg("session restored")
	}
}

// Unmount suppresses any store write the check has not made yet. It is safe to call
// more than once.
func (m *Mount) Unmount() {
	m.mu.Lock()
	m.alive = false
	m.mu.Unlock()
	m.cancel()
}

// Done is closed once the check has settled.
func (m *Mount) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until the check settles or ctx ends.
func (m *Mount) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mount) whileAlive(write func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.alive {
		return false
	}
	write()
	return true
}
