package apitest

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"sync"
	"time"
)

const minPasswordLength = 8

type ctxKey int

const userKey ctxKey = 0

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func decodeBody(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}

// fieldErrors collects per-field validation messages.
type fieldErrors map[string][]string

func (f fieldErrors) add(field, msg string) {
	f[field] = append(f[field], msg)
}

func (s *Server) setAuthCookies(w http.ResponseWriter, pair tokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookie,
		Value:    pair.Access,
		Path:     "/",
		MaxAge:   int(s.tokens.accessExpiry.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    pair.Refresh,
		Path:     "/",
		MaxAge:   int(s.tokens.refreshExpiry.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	}
}

// authenticated accepts the access cookie, or a bearer header for non-browser clients.
func (s *Server) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := ""
		if c, err := r.Cookie(AccessCookie); err == nil {
			raw = c.Value
		} else if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			raw = strings.TrimPrefix(h, "Bearer ")
		}
		if raw == "" {
			s.rejectUnauthorized(w, "Authentication credentials were not provided.")
			return
		}

		userID, err := s.tokens.ValidateAccess(raw)
		if err != nil {
			s.rejectUnauthorized(w, "Given token not valid for any token type")
			return
		}
		user, ok := s.users.Get(userID)
		if !ok {
			s.rejectUnauthorized(w, "User not found")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func (s *Server) rejectUnauthorized(w http.ResponseWriter, detail string) {
	s.waitAtBarrier()
	writeDetail(w, http.StatusUnauthorized, detail)
}

func currentUser(r *http.Request) User {
	u, _ := r.Context().Value(userKey).(User)
	return u
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		Password2 string `json:"password2"`
	}
	if !decodeBody(r, &req) {
		writeDetail(w, http.StatusBadRequest, "Malformed request.")
		return
	}

	errs := fieldErrors{}
	switch {
	case strings.TrimSpace(req.Username) == "":
		errs.add("username", "This field may not be blank.")
	default:
		if _, exists := s.users.ByUsername(req.Username); exists {
			errs.add("username", "A user with that username already exists.")
		}
	}
	switch {
	case strings.TrimSpace(req.Email) == "":
		errs.add("email", "This field may not be blank.")
	default:
		if _, err := mail.ParseAddress(req.Email); err != nil {
			errs.add("email", "Enter a valid email address.")
		} else if _, exists := s.users.ByEmail(req.Email); exists {
			errs.add("email", "A user with that email already exists.")
		}
	}
	if len(req.Password) < minPasswordLength {
		errs.add("password", "Ensure this field has at least 8 characters.")
	}
	if req.Password2 != "" && req.Password2 != req.Password {
		errs.add("password2", "Passwords do not match.")
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Validation error.", "errors": errs})
		return
	}

	user, err := s.users.Create(0, strings.TrimSpace(req.Username), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("register failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"detail": "Unexpected error.",
			"errors": fieldErrors{"non_field_errors": {"We could not complete your registration. Please try again."}},
		})
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeBody(r, &req) {
		writeDetail(w, http.StatusBadRequest, "Malformed request.")
		return
	}

	user, ok := s.users.ByUsername(req.Username)
	if !ok || !CheckPasswordHash(req.Password, user.PasswordHash) {
		writeDetail(w, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}

	pair, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.logger.Error().Err(err).Msg("issue tokens")
		writeDetail(w, http.StatusInternalServerError, "Unexpected error.")
		return
	}
	s.setAuthCookies(w, pair)
	writeDetail(w, http.StatusOK, "Login successful.")
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshes.Add(1)
	if d := time.Duration(s.refreshDelay.Load()); d > 0 {
		time.Sleep(d)
	}
	if s.failRefresh.Load() {
		writeDetail(w, http.StatusUnauthorized, "Token is invalid or expired")
		return
	}

	var req struct {
		Refresh string `json:"refresh"`
	}
	_ = decodeBody(r, &req)
	raw := req.Refresh
	if raw == "" {
		if c, err := r.Cookie(RefreshCookie); err == nil {
			raw = c.Value
		}
	}
	if raw == "" {
		writeDetail(w, http.StatusUnauthorized, "Refresh token is missing.")
		return
	}

	pair, err := s.tokens.Rotate(raw)
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "Token is invalid or expired")
		return
	}
	s.setAuthCookies(w, pair)
	writeDetail(w, http.StatusOK, "Token refreshed.")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username *string `json:"username"`
		Email    *string `json:"email"`
	}
	if !decodeBody(r, &req) {
		writeDetail(w, http.StatusBadRequest, "Malformed request.")
		return
	}

	user := currentUser(r)
	errs := fieldErrors{}
	if req.Username != nil {
		name := strings.TrimSpace(*req.Username)
		if other, exists := s.users.ByUsername(name); name == "" {
			errs.add("username", "This field may not be blank.")
		} else if exists && other.ID != user.ID {
			errs.add("username", "A user with that username already exists.")
		} else {
			user.Username = name
		}
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if _, err := mail.ParseAddress(email); err != nil {
			errs.add("email", "Enter a valid email address.")
		} else if other, exists := s.users.ByEmail(email); exists && other.ID != user.ID {
			errs.add("email", "A user with that email already exists.")
		} else {
			user.Email = email
		}
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	s.users.Update(user)
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.failLogout.Load() {
		writeDetail(w, http.StatusInternalServerError, "Logout failed.")
		return
	}
	if c, err := r.Cookie(RefreshCookie); err == nil {
		s.tokens.Revoke(c.Value)
	}
	clearAuthCookies(w)
	writeDetail(w, http.StatusResetContent, "Logged out.")
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.orders.List()
	if s.plainOrders.Load() {
		writeJSON(w, http.StatusOK, orders)
		return
	}

	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	start := (page - 1) * PageSize
	if start > len(orders) {
		writeDetail(w, http.StatusNotFound, "Invalid page.")
		return
	}
	end := min(start+PageSize, len(orders))

	var next, previous *string
	if end < len(orders) {
		link := pageLink(r, page+1)
		next = &link
	}
	if page > 1 {
		link := pageLink(r, page-1)
		previous = &link
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(orders),
		"next":     next,
		"previous": previous,
		"results":  orders[start:end],
	})
}

func pageLink(r *http.Request, page int) string {
	u := *r.URL
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	start, end := parseRange(r.URL.Query().Get("start"), r.URL.Query().Get("end"), NowTimeFunc())
	writeJSON(w, http.StatusOK, s.orders.KPIs(start, end))
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeBody(r, &req) || strings.TrimSpace(req.Email) == "" {
		writeJSON(w, http.StatusBadRequest, fieldErrors{"email": {"This field is required."}})
		return
	}

	body := map[string]string{"detail": "If an account exists for that email, a reset link has been sent."}
	if user, ok := s.users.ByEmail(strings.TrimSpace(req.Email)); ok {
		uid, token := s.resets.Issue(user.ID)
		body["uid"] = uid
		body["token"] = token
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email        string `json:"email"`
		UID          string `json:"uid"`
		Token        string `json:"token"`
		NewPassword  string `json:"new_password"`
		NewPassword2 string `json:"new_password2"`
	}
	if !decodeBody(r, &req) {
		writeDetail(w, http.StatusBadRequest, "Malformed request.")
		return
	}
	if req.NewPassword != req.NewPassword2 {
		writeJSON(w, http.StatusBadRequest, fieldErrors{"new_password2": {"Passwords do not match."}})
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		writeJSON(w, http.StatusBadRequest, fieldErrors{"new_password": {"Ensure this field has at least 8 characters."}})
		return
	}

	user, ok := s.users.ByEmail(req.Email)
	if !ok || !s.resets.Consume(user.ID, req.UID, req.Token) {
		writeDetail(w, http.StatusBadRequest, "Invalid or expired token.")
		return
	}
	if err := s.users.SetPassword(user.ID, req.NewPassword); err != nil {
		s.logger.Error().Err(err).Msg("reset password")
		writeDetail(w, http.StatusInternalServerError, "Unexpected error.")
		return
	}
	writeDetail(w, http.StatusOK, "Password has been reset.")
}

// resetTokens holds one single-use reset token per user.
type resetTokens struct {
	mu     sync.Mutex
	tokens map[int64]string
}

func newResetTokens() *resetTokens {
	return &resetTokens{tokens: make(map[int64]string)}
}

func (t *resetTokens) Issue(userID int64) (uid, token string) {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	token = hex.EncodeToString(buf)

	t.mu.Lock()
	t.tokens[userID] = token
	t.mu.Unlock()
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(userID, 10))), token
}

// Consume checks the token and burns it. An empty uid skips the uid check.
func (t *resetTokens) Consume(userID int64, uid, token string) bool {
	if uid != "" {
		decoded, err := base64.RawURLEncoding.DecodeString(uid)
		if err != nil || string(decoded) != strconv.FormatInt(userID, 10) {
			return false
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if expected, ok := t.tokens[userID]; !ok || expected != token || token == "" {
		return false
	}
	delete(t.tokens, userID)
	return true
}
