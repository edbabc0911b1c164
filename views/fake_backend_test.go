package views_test

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/revalytiq-client/api"
)

// fakeBackend answers with canned values and records what it was asked
type fakeBackend struct {
	mu sync.Mutex

	loginErr    error
	user        *api.User
	meErr       error
	registerErr error
	forgot      *api.ForgotPasswordResponse
	resetErr    error
	updated     *api.User
	updateErr   error
	logoutErr   error
	orders      *api.OrdersPayload
	ordersErr   error
	kpis        *api.KPISummary
	kpisErr     error
	kpisDelay   time.Duration

	logins   int
	register []api.RegisterRequest
	updates  []api.ProfileUpdate
	logouts  int
}

func (f *fakeBackend) Login(_ context.Context, _, _ string) (*api.LoginResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &api.LoginResponse{Detail: "Login successful."}, nil
}

func (f *fakeBackend) Register(_ context.Context, req api.RegisterRequest) (*api.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.register = append(f.register, req)
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &api.User{ID: 2, Username: req.Username, Email: req.Email}, nil
}

func (f *fakeBackend) ForgotPassword(context.Context, string) (*api.ForgotPasswordResponse, error) {
	return f.forgot, nil
}

func (f *fakeBackend) ResetPassword(context.Context, api.ResetPasswordRequest) (*api.DetailResponse, error) {
	if f.resetErr != nil {
		return nil, f.resetErr
	}
	return &api.DetailResponse{Detail: "Password has been reset."}, nil
}

func (f *fakeBackend) Me(context.Context) (*api.User, error) {
	if f.meErr != nil {
		return nil, f.meErr
	}
	return f.user, nil
}

func (f *fakeBackend) UpdateProfile(_ context.Context, update api.ProfileUpdate) (*api.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.updated, nil
}

func (f *fakeBackend) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	return f.logoutErr
}

func (f *fakeBackend) FetchOrders(context.Context) (*api.OrdersPayload, error) {
	if f.ordersErr != nil {
		return nil, f.ordersErr
	}
	return f.orders, nil
}

func (f *fakeBackend) FetchKPIs(context.Context, api.KPIRange) (*api.KPISummary, error) {
	time.Sleep(f.kpisDelay)
	if f.kpisErr != nil {
		return nil, f.kpisErr
	}
	return f.kpis, nil
}

type fakeResetter struct {
	resets int
}

func (r *fakeResetter) Reset() error {
	r.resets++
	return nil
}
