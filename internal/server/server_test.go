package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestShutdownManager_ReverseOrderAndErrors(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string, err error) Resource {
		return NewCustomResource(name, func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return err
		})
	}

	sm := NewShutdownManager(&ShutdownConfig{Logger: quietLogger(), Timeout: time.Second})
	sm.Register(record("store", nil))
	sm.Register(record("cache", errors.New("broken pipe")))
	sm.Register(record("http", nil))

	err := sm.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache: broken pipe")
	assert.Equal(t, []string{"http", "cache", "store"}, order)

	assert.Equal(t, err, sm.Shutdown(context.Background()), "second call is a no-op")
	assert.Len(t, order, 3)
}

func TestCloserResource_Timeout(t *testing.T) {
	release := make(chan struct{})
	r := CloserResource("slow", func() error {
		<-release
		return nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, r.Close(ctx), context.DeadlineExceeded)
	close(release)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	cfg := DefaultConfig("127.0.0.1:0")
	cfg.Logger = quietLogger()
	cfg.ShutdownTimeout = time.Second

	closed := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, http.NotFoundHandler(), cfg, NewCustomResource("store", func(context.Context) error {
			close(closed)
			return nil
		}))
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	_, ok := <-closed
	assert.False(t, ok, "resources are closed on shutdown")
}

func TestRun_ListenError(t *testing.T) {
	cfg := DefaultConfig("256.0.0.1:99999")
	cfg.Logger = quietLogger()
	err := Run(context.Background(), http.NotFoundHandler(), cfg)
	assert.Error(t, err)
}
