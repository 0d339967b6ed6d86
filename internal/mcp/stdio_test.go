// ABOUTME: Tests for the stdio MCP transport.
// ABOUTME: Feeds newline-delimited requests and checks one response per request.

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStdioServer(t *testing.T) (*StdioServer, *recordingObserver) {
	t.Helper()
	obs := &recordingObserver{}
	s, err := NewStdioServer(StdioConfig{
		Registry: setupTestRegistry(t),
		Sessions: newTestManager(),
		Info:     ServerInfo{Name: "rendezvous-mcp", Version: "test"},
		Logger:   slog.Default(),
		Observer: obs,
	})
	require.NoError(t, err)
	return s, obs
}

func readResponses(t *testing.T, out *bytes.Buffer) []JSONRPCResponse {
	t.Helper()
	var responses []JSONRPCResponse
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		var resp JSONRPCResponse
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp), scanner.Text())
		responses = append(responses, resp)
	}
	return responses
}

func TestStdioServer_Session(t *testing.T) {
	s, obs := newTestStdioServer(t)

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26"}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"pay","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"whoami"}}`,
		`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"fail","arguments":{}}}`,
		`garbage`,
	}, "\n") + "\n"

	var out bytes.Buffer
	require.NoError(t, s.Serve(context.Background(), strings.NewReader(input), &out))

	responses := readResponses(t, &out)
	require.Len(t, responses, 6, "notifications and blank lines get no reply")

	initResult := responses[0].Result.(map[string]any)
	assert.Equal(t, "2025-03-26", initResult["protocolVersion"])

	tools := responses[1].Result.(map[string]any)["tools"].([]any)
	assert.Len(t, tools, 4)

	whoami := responses[3].Result.(map[string]any)["content"].([]any)[0].(map[string]any)["text"].(string)
	assert.Contains(t, whoami, `"credentials":true`, "credentials persist for the process session")

	failed := responses[4].Result.(map[string]any)
	assert.Equal(t, true, failed["isError"])
	assert.Equal(t, OutcomeError, obs.outcomes["fail"])

	require.NotNil(t, responses[5].Error)
	assert.Equal(t, JSONRPCParseError, responses[5].Error.Code)

	assert.Equal(t, 0, s.sessions.Count(), "session discarded when input closes")
}

func TestStdioServer_ContextCancel(t *testing.T) {
	s, _ := newTestStdioServer(t)
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, pr, io.Discard) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestNewStdioServer_Validation(t *testing.T) {
	_, err := NewStdioServer(StdioConfig{Sessions: newTestManager()})
	assert.Error(t, err)
	_, err = NewStdioServer(StdioConfig{Registry: setupTestRegistry(t)})
	assert.Error(t, err)
}

func TestStdioServer_OversizedLine(t *testing.T) {
	s, _ := newTestStdioServer(t)

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"pay","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":9,"method":"ping","params":"` + strings.Repeat("x", MaxRequestBodySize) + `"}`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"whoami"}}`,
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, s.Serve(context.Background(), strings.NewReader(input), &out))

	responses := readResponses(t, &out)
	require.Len(t, responses, 4)

	require.NotNil(t, responses[1].Error)
	assert.Equal(t, JSONRPCInvalidRequest, responses[1].Error.Code)
	assert.Equal(t, "request body too large", responses[1].Error.Message)

	assert.JSONEq(t, `2`, string(responses[2].ID))
	assert.Nil(t, responses[2].Error)

	whoami := responses[3].Result.(map[string]any)["content"].([]any)[0].(map[string]any)["text"].(string)
	assert.Contains(t, whoami, `"credentials":true`, "session survives an oversized line")
}

func TestReadLine(t *testing.T) {
	r := bufio.NewReaderSize(strings.NewReader("short\r\n"+strings.Repeat("y", 40)+"\nlast"), 16)

	line, err := readLine(r, 32)
	require.NoError(t, err)
	assert.Equal(t, "short", string(line.data))
	assert.False(t, line.tooLong)

	line, err = readLine(r, 32)
	require.NoError(t, err)
	assert.True(t, line.tooLong)
	assert.Empty(t, line.data)

	line, err = readLine(r, 32)
	require.NoError(t, err)
	assert.Equal(t, "last", string(line.data), "final line without newline")

	_, err = readLine(r, 32)
	assert.ErrorIs(t, err, io.EOF)
}
