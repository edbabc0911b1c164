package refresh_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/revalytiq-client/httpclient"
	clienterrors "github.com/jrsteele09/revalytiq-client/internal/errors"
	"github.com/jrsteele09/revalytiq-client/refresh"
	"github.com/stretchr/testify/require"
)

type backend struct {
	hits    atomic.Int32
	status  atomic.Int32
	release chan struct{}
	server  *httptest.Server
}

// newBackend serves the refresh endpoint. A held backend blocks every refresh until
// release is closed.
func newBackend(t *testing.T, status int, held bool) *backend {
	t.Helper()
	b := &backend{release: make(chan struct{})}
	b.status.Store(int32(status))
	if !held {
		close(b.release)
	}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != refresh.DefaultPath || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		b.hits.Add(1)
		<-b.release
		w.WriteHeader(int(b.status.Load()))
	}))
	t.Cleanup(b.server.Close)
	return b
}

func newCoordinator(t *testing.T, b *backend, options ...refresh.Option) *refresh.Coordinator {
	t.Helper()
	client, err := httpclient.New(b.server.URL)
	require.NoError(t, err)
	return refresh.New(client, options...)
}

func TestRefresh_Succeeds(t *testing.T) {
	b := newBackend(t, http.StatusOK, false)
	var notified atomic.Int32
	c := newCoordinator(t, b, refresh.WithOnRefreshed(func() { notified.Add(1) }))

	require.NoError(t, c.Refresh(context.Background()))
	require.EqualValues(t, 1, b.hits.Load())
	require.EqualValues(t, 1, notified.Load())
	require.EqualValues(t, 1, c.Sent())
}

func TestRefresh_NoContentIsSuccess(t *testing.T) {
	b := newBackend(t, http.StatusNoContent, false)
	c := newCoordinator(t, b)
	require.NoError(t, c.Refresh(context.Background()))
}

func TestRefresh_ConcurrentCallersShareOneRequest(t *testing.T) {
	b := newBackend(t, http.StatusOK, true)
	c := newCoordinator(t, b)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.Refresh(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return b.hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(b.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, b.hits.Load())
}

func TestRefresh_FailureIsSharedAndForgotten(t *testing.T) {
	b := newBackend(t, http.StatusUnauthorized, false)
	var notified atomic.Int32
	c := newCoordinator(t, b, refresh.WithOnRefreshed(func() { notified.Add(1) }))

	err := c.Refresh(context.Background())
	require.True(t, errors.Is(err, clienterrors.ErrRefreshFailed))
	require.Equal(t, http.StatusUnauthorized, httpclient.StatusCode(err))
	require.Zero(t, notified.Load())

	// a settled failure does not poison the next attempt
	b.status.Store(http.StatusOK)
	require.NoError(t, c.Refresh(context.Background()))
	require.EqualValues(t, 2, b.hits.Load())
}

func TestRefresh_FailsFastWithoutCredential(t *testing.T) {
	b := newBackend(t, http.StatusOK, false)
	c := newCoordinator(t, b, refresh.WithCredentialCheck(func() bool { return false }))

	err := c.Refresh(context.Background())
	require.True(t, errors.Is(err, clienterrors.ErrNoRefreshCredential))
	require.Zero(t, b.hits.Load())
	require.Zero(t, c.Sent())
}

func TestRefresh_CallerCancellationDoesNotCancelSharedCall(t *testing.T) {
	b := newBackend(t, http.StatusOK, true)
	c := newCoordinator(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	impatient := make(chan error, 1)
	go func() { impatient <- c.Refresh(ctx) }()
	require.Eventually(t, func() bool { return b.hits.Load() == 1 }, time.Second, 5*time.Millisecond)

	patient := make(chan error, 1)
	go func() { patient <- c.Refresh(context.Background()) }()

	cancel()
	require.ErrorIs(t, <-impatient, context.Canceled)

	time.Sleep(50 * time.Millisecond)
	close(b.release)
	require.NoError(t, <-patient)
	require.EqualValues(t, 1, b.hits.Load())
}
