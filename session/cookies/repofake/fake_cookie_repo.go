package cookierepofake

import (
	"sync"

	"github.com/jrsteele09/revalytiq-client/session/cookies"
)

var _ cookies.Repo = (*FakeCookieRepo)(nil)

// FakeCookieRepo is an in-memory cookies.Repo that counts writes.
type FakeCookieRepo struct {
	lock    sync.RWMutex
	cookies []cookies.StoredCookie
	saves   int
	deletes int
	LoadErr error
	SaveErr error
}

func NewFakeCookieRepo(seed ...cookies.StoredCookie) *FakeCookieRepo {
	return &FakeCookieRepo{cookies: append([]cookies.StoredCookie(nil), seed...)}
}

func (r *FakeCookieRepo) Load() ([]cookies.StoredCookie, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.LoadErr != nil {
		return nil, r.LoadErr
	}
	return append([]cookies.StoredCookie(nil), r.cookies...), nil
}

func (r *FakeCookieRepo) Save(stored []cookies.StoredCookie) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.SaveErr != nil {
		return r.SaveErr
	}
	r.saves++
	r.cookies = append([]cookies.StoredCookie(nil), stored...)
	return nil
}

func (r *FakeCookieRepo) Delete() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.deletes++
	r.cookies = nil
	return nil
}

// Get returns the saved value of a cookie.
func (r *FakeCookieRepo) Get(name string) (string, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, c := range r.cookies {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

func (r *FakeCookieRepo) Saves() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.saves
}

func (r *FakeCookieRepo) Deletes() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.deletes
}
