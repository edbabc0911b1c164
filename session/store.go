package session

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Listener receives every new state snapshot.
type Listener func(State)

// Store is the single source of truth for "who is logged in". Every mutation replaces
// the whole state and notifies subscribers with a copy.
type Store struct {
	mu        sync.RWMutex
	state     State
	listeners map[int]Listener
	nextID    int
	logger    zerolog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for state transitions.
func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithInitialState seeds the store, mostly for tests.
func WithInitialState(state State) StoreOption {
	return func(s *Store) {
		s.state = state.clone()
	}
}

// NewStore returns a store in the "not yet checked" state.
func NewStore(options ...StoreOption) *Store {
	s := &Store{
		listeners: make(map[int]Listener),
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Current returns a snapshot of the state.
func (s *Store) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Set replaces the state.
func (s *Store) Set(state State) {
	s.replace(func(State) State { return state.clone() })
}

// SetUser replaces the identity, keeping the initialized flag.
func (s *Store) SetUser(user *User) {
	var u *User
	if user != nil {
		cp := *user
		u = &cp
	}
	s.replace(func(old State) State {
		return State{User: u, Initialized: old.Initialized}
	})
}

// SetInitialized marks whether the startup check has completed.
func (s *Store) SetInitialized(initialized bool) {
	s.replace(func(old State) State {
		return State{User: old.User, Initialized: initialized}
	})
}

// Clear logs out locally. A cleared store counts as checked.
func (s *Store) Clear() {
	s.replace(func(State) State {
		return State{Initialized: true}
	})
}

// Subscribe registers a listener and returns a function removing it.
func (s *Store) Subscribe(listener Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) replace(next func(State) State) {
	s.mu.Lock()
	s.state = next(s.state)
	snapshot := s.state
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	s.logger.Debug().
		Bool("initialized", snapshot.Initialized).
		Bool("logged_in", snapshot.LoggedIn()).
		Msg("session state replaced")

	for _, l := range listeners {
		l(snapshot.clone())
	}
}
