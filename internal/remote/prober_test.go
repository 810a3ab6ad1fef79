package remote

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSleeper struct{ total time.Duration }

func (s *recordingSleeper) Sleep(d time.Duration) { s.total += d }

func TestProber_RetriesUntilConnected(t *testing.T) {
	calls := 0
	sl := &recordingSleeper{}
	p := newProber(func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("no route")
		}
		return nil
	}, sl, discardLogger())

	assert.True(t, p.Connected(context.Background()))
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2*DefaultProbeDelay, sl.total)
}

func TestProber_BoundedBudget(t *testing.T) {
	calls := 0
	sl := &recordingSleeper{}
	p := newProber(func(context.Context) error {
		calls++
		return errors.New("no route")
	}, sl, discardLogger())
	p.Attempts = 4
	p.Delay = 10 * time.Millisecond

	assert.False(t, p.Connected(context.Background()))
	assert.Equal(t, 4, calls)
	assert.Equal(t, 30*time.Millisecond, sl.total)
}

func TestProber_StopsOnCancelledContext(t *testing.T) {
	calls := 0
	p := newProber(func(context.Context) error {
		calls++
		return errors.New("no route")
	}, &recordingSleeper{}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, p.Connected(ctx))
	assert.Equal(t, 0, calls)
}

func TestNewProber_DialsServerHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	p, err := NewProber(srv.URL+"/api", &recordingSleeper{}, discardLogger())
	require.NoError(t, err)
	assert.True(t, p.Connected(context.Background()))

	srv.Close()
	p.Attempts = 2
	assert.False(t, p.Connected(context.Background()))
}

func TestNewProber_InvalidURL(t *testing.T) {
	_, err := NewProber("not a url", &recordingSleeper{}, discardLogger())
	assert.Error(t, err)

	_, err = NewProber("://bad", &recordingSleeper{}, discardLogger())
	assert.Error(t, err)
}

func TestNewProber_DefaultPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	p, err := NewProber("http://"+ln.Addr().String(), &recordingSleeper{}, discardLogger())
	require.NoError(t, err)
	assert.True(t, p.Connected(context.Background()))
}
