package apitest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenRotation(t *testing.T) {
	issuer := newTokenIssuer([]byte("secret"), time.Minute, time.Hour)

	pair, err := issuer.Issue(7)
	require.NoError(t, err)
	userID, err := issuer.ValidateAccess(pair.Access)
	require.NoError(t, err)
	require.EqualValues(t, 7, userID)

	_, err = issuer.ValidateAccess(pair.Refresh)
	require.Error(t, err, "a refresh token is not an access token")

	rotated, err := issuer.Rotate(pair.Refresh)
	require.NoError(t, err)
	_, err = issuer.Rotate(pair.Refresh)
	require.Error(t, err, "a rotated refresh token is blacklisted")

	issuer.ExpireAccessTokens()
	_, err = issuer.ValidateAccess(rotated.Access)
	require.Error(t, err)
}

func TestTokenExpiry(t *testing.T) {
	issuer := newTokenIssuer([]byte("secret"), time.Minute, time.Hour)
	pair, err := issuer.Issue(1)
	require.NoError(t, err)

	NowTimeFunc = func() time.Time { return time.Now().Add(2 * time.Minute) }
	defer func() { NowTimeFunc = time.Now }()

	_, err = issuer.ValidateAccess(pair.Access)
	require.Error(t, err)
}

func TestKPIs(t *testing.T) {
	now := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	repo := newOrderRepo([]Order{
		{ID: 1, Amount: "100.00", Status: StatusPaid, CreatedAt: now.Add(-time.Hour)},
		{ID: 2, Amount: "50.50", Status: StatusPaid, CreatedAt: now.Add(-48 * time.Hour)},
		{ID: 3, Amount: "999.00", Status: StatusPending, CreatedAt: now.Add(-time.Hour)},
		{ID: 4, Amount: "10.00", Status: StatusPaid, CreatedAt: now.Add(-40 * 24 * time.Hour)},
	})

	start, end := parseRange("", "", now)
	require.Equal(t, KPIs{Revenue: 150.5, Orders: 2, AOV: 75.25}, repo.KPIs(start, end))

	start, end = parseRange("2025-03-30", "not-a-date", now)
	require.Equal(t, KPIs{Revenue: 100, Orders: 1, AOV: 100}, repo.KPIs(start, end))

	require.Equal(t, KPIs{}, repo.KPIs(now.Add(time.Hour), now.Add(2*time.Hour)))
}

func TestRegisterValidation(t *testing.T) {
	s := New()
	body := `{"username":"demo","email":"nope","password":"short","password2":"other"}`
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register/", strings.NewReader(body)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"detail":"Validation error.","errors":{
		"username":["A user with that username already exists."],
		"email":["Enter a valid email address."],
		"password":["Ensure this field has at least 8 characters."],
		"password2":["Passwords do not match."]}}`, rec.Body.String())
}

func TestProtectedEndpointsRequireCredentials(t *testing.T) {
	s := New()
	for _, path := range []string{"/api/auth/me/", "/api/analytics/orders/", "/api/analytics/kpis/"} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestLoginSetsCookies(t *testing.T) {
	s := New()
	rec := httptest.NewRecorder()
	body := `{"username":"demo","password":"s3cret"}`
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/token/", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"detail":"Login successful."}`, rec.Body.String())

	names := map[string]int{}
	for _, c := range rec.Result().Cookies() {
		names[c.Name] = c.MaxAge
	}
	require.Equal(t, map[string]int{AccessCookie: 300, RefreshCookie: 604800}, names)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"id":42,"username":"demo","email":"demo@example.com"}`, rec.Body.String())
}

func TestOrdersPagination(t *testing.T) {
	now := time.Now()
	orders := make([]Order, 0, PageSize+5)
	for i := 0; i < PageSize+5; i++ {
		orders = append(orders, Order{ID: int64(i + 1), Amount: "1.00", Status: StatusPaid, CreatedAt: now.Add(-time.Duration(i) * time.Minute)})
	}
	s := New(WithOrders(orders))
	pair, err := s.tokens.Issue(DemoUserID)
	require.NoError(t, err)

	get := func(target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.AddCookie(&http.Cookie{Name: AccessCookie, Value: pair.Access})
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		return rec
	}

	first := get("/api/analytics/orders/")
	require.Equal(t, http.StatusOK, first.Code)
	require.Contains(t, first.Body.String(), `"count":55`)
	require.Contains(t, first.Body.String(), `"next":"/api/analytics/orders/?page=2"`)

	require.Equal(t, http.StatusOK, get("/api/analytics/orders/?page=2").Code)
	require.Equal(t, http.StatusNotFound, get("/api/analytics/orders/?page=9").Code)

	s.ServePlainOrders(true)
	require.True(t, strings.HasPrefix(get("/api/analytics/orders/").Body.String(), "["))
}
