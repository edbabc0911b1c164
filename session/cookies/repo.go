package cookies

import "time"

// StoredCookie is the durable form of a credential cookie. Expires is zero for
// cookies that only live as long as the process.
type StoredCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitempty"`
}

// Repo persists the backend's cookies between runs so a restart can rehydrate the
// session without logging in again.
type Repo interface {
	// Load returns the saved cookies, or nothing when none were saved
	Load() ([]StoredCookie, error)

	// Save replaces the saved cookies
	Save(cookies []StoredCookie) error

	// Delete removes every saved cookie
	Delete() error
}
