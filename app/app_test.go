package app_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/revalytiq-client/api"
	"github.com/jrsteele09/revalytiq-client/app"
	"github.com/jrsteele09/revalytiq-client/httpclient"
	"github.com/jrsteele09/revalytiq-client/internal/apitest"
	"github.com/jrsteele09/revalytiq-client/internal/config"
	clienterrors "github.com/jrsteele09/revalytiq-client/internal/errors"
	"github.com/jrsteele09/revalytiq-client/session"
	cookierepofake "github.com/jrsteele09/revalytiq-client/session/cookies/repofake"
	"github.com/jrsteele09/revalytiq-client/views"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	backend *apitest.Server
	url     string
	repo    *cookierepofake.FakeCookieRepo
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	backend := apitest.New()
	server := backend.Start()
	t.Cleanup(server.Close)

	t.Setenv("REVALYTIQ_API_URL", server.URL+"/api")
	return &testFixture{backend: backend, url: server.URL, repo: cookierepofake.NewFakeCookieRepo()}
}

func (f *testFixture) newApp(t *testing.T, options ...app.Option) *app.App {
	t.Helper()
	a, err := app.New(config.New(), append([]app.Option{app.WithCookieRepo(f.repo)}, options...)...)
	require.NoError(t, err)
	return a
}

func login(t *testing.T, a *app.App) {
	t.Helper()
	outcome := a.Pages.Login(context.Background(), views.LoginForm{Username: apitest.DemoUsername, Password: apitest.DemoPassword})
	require.True(t, outcome.OK(), outcome.Error)
}

func TestLoginThenDashboard(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newApp(t)
	require.Equal(t, f.url, a.Client.BaseURL())

	outcome := a.Pages.Login(context.Background(), views.LoginForm{Username: "demo", Password: "s3cret"})
	require.Equal(t, views.RouteDashboard, outcome.Redirect)
	require.Equal(t, session.State{
		User:        &session.User{ID: 42, Username: "demo", Email: apitest.DemoEmail},
		Initialized: true,
	}, a.Store.Current())

	decision, data := a.Pages.Dashboard(context.Background(), views.DashboardOptions{})
	require.Equal(t, views.DecisionAllow, decision.Kind)
	require.Empty(t, data.Error)
	require.NotEmpty(t, data.Orders)
	require.NotEmpty(t, data.Revenue)
	require.NotNil(t, data.KPIs)

	_, ok := f.repo.Get(apitest.RefreshCookie)
	require.True(t, ok)
}

func TestLogin_InvalidCredentialsNeverRefresh(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newApp(t)

	outcome := a.Pages.Login(context.Background(), views.LoginForm{Username: "demo", Password: "wrong"})
	require.Equal(t, "Invalid credentials.", outcome.Error)
	require.Zero(t, f.backend.Refreshes())
}

func TestStart_RestoresSessionFromStoredCookies(t *testing.T) {
	f := setupTestFixture(t)
	login(t, f.newApp(t))

	restarted := f.newApp(t)
	require.Equal(t, views.DecisionPending, views.Guard(restarted.Store.Current()).Kind)
	require.NoError(t, restarted.Start(context.Background()))
	require.Equal(t, views.DecisionAllow, views.Guard(restarted.Store.Current()).Kind)
	require.Equal(t, "demo", restarted.Store.Current().User.Username)
}

func TestStart_WithoutCookiesIsLoggedOutAndSendsNoRefresh(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newApp(t)

	require.NoError(t, a.Start(context.Background()))
	require.Equal(t, session.State{Initialized: true}, a.Store.Current())
	require.Equal(t, views.Decision{Kind: views.DecisionRedirect, To: views.RouteLogin}, views.Guard(a.Store.Current()))
	require.Zero(t, f.backend.Refreshes())
}

func TestStart_ExpiredAccessIsRecovered(t *testing.T) {
	f := setupTestFixture(t)
	login(t, f.newApp(t))
	f.backend.ExpireAccessTokens()

	before := f.backend.Hits(http.MethodGet, api.EndpointMe)
	restarted := f.newApp(t)
	require.NoError(t, restarted.Start(context.Background()))
	require.True(t, restarted.Store.Current().LoggedIn())
	require.EqualValues(t, 1, f.backend.Refreshes())
	require.Equal(t, before+2, f.backend.Hits(http.MethodGet, api.EndpointMe))
}

func TestConcurrentUnauthorizedRequestsShareOneRefresh(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newApp(t)
	login(t, a)

	const requests = 6
	f.backend.ExpireAccessTokens()
	f.backend.HoldUnauthorized(requests)
	f.backend.DelayRefresh(100 * time.Millisecond)

	var wg sync.WaitGroup
	errs := make(chan error, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.API.FetchOrders(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, f.backend.Refreshes())
	require.EqualValues(t, 1, a.Refresh.Sent())
	require.Equal(t, 2*requests, f.backend.Hits(http.MethodGet, api.EndpointOrders))
}

func TestRefreshFailureEndsSession(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newApp(t)
	login(t, a)

	f.backend.ExpireAccessTokens()
	f.backend.FailRefresh(true)

	_, err := a.API.FetchOrders(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, clienterrors.ErrSessionEnded))
	require.Equal(t, http.StatusUnauthorized, httpclient.StatusCode(err))
	require.Equal(t, 1, f.backend.Hits(http.MethodGet, api.EndpointOrders))

	decision, data := a.Pages.Dashboard(context.Background(), views.DashboardOptions{})
	require.Nil(t, data)
	require.Equal(t, views.Decision{Kind: views.DecisionRedirect, To: views.RouteLogin}, decision)
	require.False(t, a.Store.Current().LoggedIn())
}

func TestDashboard_AbandonedRefreshKeepsSession(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newApp(t)
	login(t, a)

	f.backend.ExpireAccessTokens()
	f.backend.DelayRefresh(300 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	decision, data := a.Pages.Dashboard(ctx, views.DashboardOptions{})
	require.Equal(t, views.DecisionAllow, decision.Kind)
	require.Equal(t, "Failed to load data. Please refresh.", data.Error)
	require.True(t, a.Store.Current().LoggedIn())

	user, err := a.API.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, apitest.DemoUsername, user.Username)
	require.EqualValues(t, 1, f.backend.Refreshes())
	require.True(t, a.Store.Current().LoggedIn())
}

func TestProactiveRefreshAvoidsUnauthorizedRoundTrip(t *testing.T) {
	f := setupTestFixture(t)
	clock := func() time.Time { return time.Now().Add(apitest.AccessLifetime) }
	a := f.newApp(t, app.WithClock(clock))
	login(t, a)
	before := f.backend.Refreshes()

	_, err := a.API.FetchOrders(context.Background())
	require.NoError(t, err)
	require.Equal(t, before+1, f.backend.Refreshes())
	require.Equal(t, 1, f.backend.Hits(http.MethodGet, api.EndpointOrders))
}

func TestProactiveRefreshCanBeDisabled(t *testing.T) {
	f := setupTestFixture(t)
	t.Setenv("REVALYTIQ_PROACTIVE_REFRESH", "false")
	clock := func() time.Time { return time.Now().Add(apitest.AccessLifetime) }
	a := f.newApp(t, app.WithClock(clock))
	login(t, a)

	_, err := a.API.FetchOrders(context.Background())
	require.NoError(t, err)
	require.Zero(t, f.backend.Refreshes())
}

func TestLogoutClearsSessionEvenWhenServerFails(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newApp(t)
	login(t, a)
	f.backend.FailLogout(true)

	outcome := a.Pages.Logout(context.Background())
	require.Equal(t, views.RouteLogin, outcome.Redirect)
	require.Equal(t, session.State{Initialized: true}, a.Store.Current())
	require.False(t, a.Jar.Has(apitest.RefreshCookie))
	_, ok := f.repo.Get(apitest.RefreshCookie)
	require.False(t, ok)

	restarted := f.newApp(t)
	require.NoError(t, restarted.Start(context.Background()))
	require.False(t, restarted.Store.Current().LoggedIn())
}

func TestSignupForgotAndResetPassword(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newApp(t)
	ctx := context.Background()

	outcome := a.Pages.Signup(ctx, views.SignupForm{Username: "new", Email: "new@example.com", Password: "Passw0rd!", Password2: "Passw0rd!"})
	require.Equal(t, "Account created! Please sign in.", outcome.Notice)

	outcome = a.Pages.Signup(ctx, views.SignupForm{Username: "new", Email: "other@example.com", Password: "Passw0rd!", Password2: "Passw0rd!"})
	require.Equal(t, "A user with that username already exists.", outcome.Error)

	forgot, err := a.Pages.ForgotPassword(ctx, views.ForgotPasswordForm{Email: "new@example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, forgot.Token)

	reset, err := a.Pages.ResetPassword(ctx, views.ResetPasswordForm{
		Email: "new@example.com", UID: forgot.UID, Token: forgot.Token, NewPassword: "N3wPassw0rd", NewPassword2: "N3wPassw0rd",
	})
	require.NoError(t, err)
	require.Equal(t, "Password has been reset.", reset.Notice)

	signedIn := a.Pages.Login(ctx, views.LoginForm{Username: "new", Password: "N3wPassw0rd"})
	require.True(t, signedIn.OK())

	_, err = a.Pages.ResetPassword(ctx, views.ResetPasswordForm{
		Email: "new@example.com", UID: forgot.UID, Token: forgot.Token, NewPassword: "An0therPass", NewPassword2: "An0therPass",
	})
	require.Error(t, err)
	require.Equal(t, []string{"Invalid or expired token."}, api.ValidationErrors(err))
}

func TestSaveProfile(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newApp(t)
	login(t, a)

	_, form := a.Pages.ProfileDraft()
	form.Username = "demo-renamed"
	outcome := a.Pages.SaveProfile(context.Background(), form)
	require.Equal(t, "Profile updated", outcome.Notice)
	require.Equal(t, "demo-renamed", a.Store.Current().User.Username)
}
