package api

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer_Defaults(t *testing.T) {
	store, _ := newTestStore(t)
	s := NewServer(store, ServerConfig{}, nil, nil)

	assert.Equal(t, defaultMaxPageSize, s.config.MaxPageSize)
	assert.Equal(t, int64(defaultMaxBodyBytes), s.config.MaxBodyBytes)
	assert.Equal(t, []string{"*"}, s.config.AllowedOrigins)
	assert.NotNil(t, s.metrics)
	assert.NotNil(t, s.logger)
}

func TestListenAndServe_Shutdown(t *testing.T) {
	store, _ := newTestStore(t)
	s := NewServer(store, ServerConfig{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestListenAndServe_AddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	store, _ := newTestStore(t)
	s := NewServer(store, ServerConfig{Addr: ln.Addr().String()}, nil, nil)

	err = s.ListenAndServe(context.Background())
	assert.Error(t, err)
}
