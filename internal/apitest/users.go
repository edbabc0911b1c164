package apitest

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// User is an account of the fake backend.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// userRepo is an in-memory account store. Lookups by username and email are
// case-insensitive, like the Django backend's uniqueness checks.
type userRepo struct {
	mu     sync.RWMutex
	users  map[int64]User
	nextID int64
}

func newUserRepo() *userRepo {
	return &userRepo{users: make(map[int64]User), nextID: 1}
}

func (r *userRepo) Create(id int64, username, email, password string) (User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id == 0 {
		id = r.nextID
	}
	if _, exists := r.users[id]; exists {
		return User{}, fmt.Errorf("user %d already exists", id)
	}
	if id >= r.nextID {
		r.nextID = id + 1
	}
	u := User{ID: id, Username: username, Email: email, PasswordHash: hash}
	r.users[id] = u
	return u, nil
}

func (r *userRepo) Get(id int64) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	return u, ok
}

func (r *userRepo) ByUsername(username string) (User, bool) {
	return r.find(func(u User) bool { return strings.EqualFold(u.Username, username) })
}

func (r *userRepo) ByEmail(email string) (User, bool) {
	return r.find(func(u User) bool { return strings.EqualFold(u.Email, email) })
}

// Update replaces the stored user.
func (r *userRepo) Update(u User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

func (r *userRepo) SetPassword(id int64, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user %d not found", id)
	}
	u.PasswordHash = hash
	r.users[id] = u
	return nil
}

func (r *userRepo) find(match func(User) bool) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if match(r.users[id]) {
			return r.users[id], true
		}
	}
	return User{}, false
}
