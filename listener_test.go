package mcp_test

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcp "github.com/agentsmithers/go-mcp-bridge"
)

func TestServeShutsDownOnContextCancel(t *testing.T) {
	srv := mcp.NewServer(mcp.Info{Name: "test-server", Version: "1.0.0"}, testRegistry(nil),
		mcp.WithShutdownTimeout(5*time.Second))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- srv.Serve(ctx, ln)
	}()

	baseURL := "http://" + ln.Addr().String()
	c := connect(t, baseURL, "/sse")
	resp := c.call(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	require.Nil(t, resp.Error)

	cancel()

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	select {
	case _, ok := <-c.events:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("stream still open after shutdown")
	}

	_, err = http.Get(baseURL + "/sse")
	assert.Error(t, err)
}

func TestListenAndServeBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := mcp.NewServer(mcp.Info{Name: "test-server", Version: "1.0.0"}, nil)

	done := make(chan error, 1)
	go func() {
		done <- srv.ListenAndServe(context.Background(), ln.Addr().String())
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to listen on")
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe did not fail on an occupied address")
	}
}
