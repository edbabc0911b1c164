package session

// User is the identity returned by /api/auth/me/ and /api/auth/profile/.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// State is the process-wide authentication state.
//
// Initialized separates "not checked yet" (false) from "checked, nobody logged in"
// (true with a nil User). Protected views must not redirect while it is false.
type State struct {
	User        *User
	Initialized bool
}

// LoggedIn reports whether the state carries a resolved identity.
func (s State) LoggedIn() bool {
	return s.User != nil
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}
