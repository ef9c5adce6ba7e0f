package mcp_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcp "github.com/agentsmithers/go-mcp-bridge"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("stdin broken") }

func TestServeStdio(t *testing.T) {
	srv := mcp.NewServer(mcp.Info{Name: "test-server", Version: "1.0.0"}, testRegistry(nil))

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`garbage`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"Echo","arguments":{"message":"hi"}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"nope"}`,
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, srv.ServeStdio(context.Background(), strings.NewReader(input), &out))

	byID := make(map[string]rpcResponse)
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var resp rpcResponse
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp), scanner.Text())
		byID[string(resp.ID)] = resp
	}
	require.Len(t, byID, 3)

	assert.Contains(t, string(byID["1"].Result), `"serverInfo":{"name":"test-server","version":"1.0.0"}`)
	text, _ := toolText(t, byID["2"])
	assert.Equal(t, "Echo: hi", text)
	require.NotNil(t, byID["3"].Error)
	assert.Equal(t, -32601, byID["3"].Error.Code)
	assert.NotContains(t, byID, "null")
}

func TestServeStdioStopsOnCancel(t *testing.T) {
	srv := mcp.NewServer(mcp.Info{Name: "test-server"}, nil)

	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.ServeStdio(ctx, pr, io.Discard)
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ServeStdio did not return after cancellation")
	}
}

func TestServeStdioReadError(t *testing.T) {
	srv := mcp.NewServer(mcp.Info{Name: "test-server"}, nil)

	err := srv.ServeStdio(context.Background(), failingReader{}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stdin broken")
}
