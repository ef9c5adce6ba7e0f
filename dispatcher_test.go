package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcp "github.com/agentsmithers/go-mcp-bridge"
)

type rpcResponse struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Result  json.RawMessage   `json:"result"`
	Error   *mcp.JSONRPCError `json:"error"`
}

type explodingPrompts struct{}

func (explodingPrompts) List() []mcp.Prompt { panic("provider exploded") }

func (explodingPrompts) Lookup(string) (mcp.PromptTemplate, bool) { return mcp.PromptTemplate{}, false }

func testRegistry(calls *atomic.Int32) *mcp.Registry {
	reg := mcp.NewRegistry()
	reg.MustRegister(
		mcp.Command{
			Name:        "Echo",
			Description: "Echoes back the input",
			Params:      []mcp.Param{{Name: "message", Type: mcp.Scalar(mcp.KindString)}},
			Handler: func(_ context.Context, args mcp.Args) (any, error) {
				if calls != nil {
					calls.Add(1)
				}
				return "Echo: " + args.String("message"), nil
			},
		},
		mcp.Command{
			Name: "Add",
			Params: []mcp.Param{
				{Name: "a", Type: mcp.Scalar(mcp.KindInt64)},
				{Name: "b", Type: mcp.Scalar(mcp.KindInt64)},
			},
			Handler: func(_ context.Context, args mcp.Args) (any, error) {
				return args.Int64("a") + args.Int64("b"), nil
			},
		},
		mcp.Command{
			Name: "Fail",
			Handler: func(context.Context, mcp.Args) (any, error) {
				return nil, errors.New("boom")
			},
		},
		mcp.Command{
			Name: "Panic",
			Handler: func(context.Context, mcp.Args) (any, error) {
				panic("oops")
			},
		},
		mcp.Command{
			Name:    "Nil",
			Handler: func(context.Context, mcp.Args) (any, error) { return nil, nil },
		},
		mcp.Command{
			Name: "Rich",
			Handler: func(context.Context, mcp.Args) (any, error) {
				return mcp.CallToolResult{Content: []mcp.Content{
					{Type: mcp.ContentTypeText, Text: "one"},
					{Type: mcp.ContentTypeText, Text: "two"},
				}}, nil
			},
		},
	)
	return reg
}

func testDispatcher(t *testing.T, calls *atomic.Int32) *mcp.Dispatcher {
	t.Helper()

	resources := mcp.NewResourceCatalog()
	require.NoError(t, resources.AddResource(mcp.Resource{URI: "/files/config.json", Name: "Configuration File", MimeType: "application/json"}))
	require.NoError(t, resources.AddTemplate(mcp.ResourceTemplate{URITemplate: "/logs/{date}", Name: "Log File by Date", MimeType: "text/plain"}))

	return mcp.NewDispatcher(mcp.DispatcherConfig{
		Info:         mcp.Info{Name: "test-server", Version: "1.0.0"},
		Instructions: "Welcome!",
		Registry:     testRegistry(calls),
		Prompts:      mcp.NewPromptSet(queryPrompt()),
		Resources:    resources,
	})
}

func dispatch(t *testing.T, d *mcp.Dispatcher, body string) rpcResponse {
	t.Helper()

	out := d.Handle(context.Background(), []byte(body))
	require.NotNil(t, out, "expected a response for %s", body)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, mcp.JSONRPCVersion, resp.JSONRPC)
	return resp
}

func toolText(t *testing.T, resp rpcResponse) (string, bool) {
	t.Helper()

	require.Nil(t, resp.Error)
	var res mcp.CallToolResult
	require.NoError(t, json.Unmarshal(resp.Result, &res))
	require.Len(t, res.Content, 1)
	assert.Equal(t, mcp.ContentTypeText, res.Content[0].Type)
	return res.Content[0].Text, res.IsError
}

func TestDispatcherInitialize(t *testing.T) {
	d := testDispatcher(t, nil)

	resp := dispatch(t, d, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"c","version":"0"}}}`)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `1`, string(resp.ID))
	assert.JSONEq(t, `{
		"protocolVersion": "2024-11-05",
		"capabilities": {"tools": {}, "prompts": {}, "resources": {}},
		"serverInfo": {"name": "test-server", "version": "1.0.0"},
		"instructions": "Welcome!"
	}`, string(resp.Result))
}

func TestDispatcherEchoesIDVerbatim(t *testing.T) {
	d := testDispatcher(t, nil)

	for _, id := range []string{`"abc"`, `0`, `-3`, `12345678901234567890`, `1.0`} {
		t.Run(id, func(t *testing.T) {
			resp := dispatch(t, d, `{"jsonrpc":"2.0","id":`+id+`,"method":"tools/list"}`)
			assert.Equal(t, id, string(resp.ID))
		})
	}
}

func TestDispatcherToolsList(t *testing.T) {
	d := testDispatcher(t, nil)

	for _, method := range []string{"tools/list", "rpc.discover"} {
		t.Run(method, func(t *testing.T) {
			resp := dispatch(t, d, `{"jsonrpc":"2.0","id":"x","method":"`+method+`"}`)
			require.Nil(t, resp.Error)

			var res mcp.ListToolsResult
			require.NoError(t, json.Unmarshal(resp.Result, &res))
			var names []string
			for _, tool := range res.Tools {
				names = append(names, tool.Name)
			}
			assert.Equal(t, []string{"Add", "Echo", "Fail", "Nil", "Panic", "Rich"}, names)
			assert.Equal(t, "Echoes back the input", res.Tools[1].Description)
			assert.Equal(t, []string{"a", "b"}, res.Tools[0].InputSchema.Required)
		})
	}
}

func TestDispatcherToolsCall(t *testing.T) {
	tests := []struct {
		name      string
		params    string
		wantText  string
		wantError bool
	}{
		{
			name:     "echo",
			params:   `{"name":"Echo","arguments":{"message":"hi"}}`,
			wantText: "Echo: hi",
		},
		{
			name:     "case-insensitive name",
			params:   `{"name":"echo","arguments":{"message":"hi"}}`,
			wantText: "Echo: hi",
		},
		{
			name:     "numeric result",
			params:   `{"name":"Add","arguments":{"a":2,"b":"3"}}`,
			wantText: "5",
		},
		{
			name:     "nil result",
			params:   `{"name":"Nil"}`,
			wantText: "Nil executed successfully.",
		},
		{
			name:      "unknown tool",
			params:    `{"name":"nope","arguments":{}}`,
			wantText:  "Tool 'nope' not found.",
			wantError: true,
		},
		{
			name:      "missing argument",
			params:    `{"name":"Add","arguments":{"a":1}}`,
			wantText:  "Error processing tool call for 'Add': missing required argument: 'b' for tool 'Add'",
			wantError: true,
		},
		{
			name:      "unconvertible argument",
			params:    `{"name":"Add","arguments":{"a":1,"b":"two"}}`,
			wantText:  "Error processing tool call for 'Add': cannot convert value 'two' (type: string) to required type 'Int64' for parameter 'b'",
			wantError: true,
		},
		{
			name:      "non-object arguments",
			params:    `{"name":"Echo","arguments":"oops"}`,
			wantText:  "Error processing tool call for 'Echo': missing required argument: 'message' for tool 'Echo'",
			wantError: true,
		},
		{
			name:     "array arguments",
			params:   `{"name":"Nil","arguments":[1,2]}`,
			wantText: "Nil executed successfully.",
		},
		{
			name:      "handler error",
			params:    `{"name":"Fail"}`,
			wantText:  "Error executing tool 'Fail': boom",
			wantError: true,
		},
		{
			name:      "handler panic",
			params:    `{"name":"Panic"}`,
			wantText:  "Error executing tool 'Panic': panic: oops",
			wantError: true,
		},
	}

	d := testDispatcher(t, nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := dispatch(t, d, `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":`+tc.params+`}`)
			text, isError := toolText(t, resp)
			if tc.wantError {
				assert.Contains(t, text, tc.wantText)
			} else {
				assert.Equal(t, tc.wantText, text)
			}
			assert.Equal(t, tc.wantError, isError)
		})
	}
}

func TestDispatcherToolResultWireFormat(t *testing.T) {
	d := testDispatcher(t, nil)

	raw := d.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"Echo","arguments":{"message":"hi"}}}`))
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"Echo: hi"}],"isError":false}}`, string(raw))

	raw = d.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"Echo","arguments":"oops"}}`))
	assert.Contains(t, string(raw), `"isError":true`)

	b, err := json.Marshal(mcp.Content{Type: mcp.ContentTypeText})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"text","text":""}`, string(b))
}

func TestDispatcherToolsCallRichResult(t *testing.T) {
	d := testDispatcher(t, nil)

	resp := dispatch(t, d, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"Rich"}}`)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"content":[{"type":"text","text":"one"},{"type":"text","text":"two"}],"isError":false}`, string(resp.Result))
}

func TestDispatcherPrompts(t *testing.T) {
	d := testDispatcher(t, nil)

	resp := dispatch(t, d, `{"jsonrpc":"2.0","id":1,"method":"prompts/list"}`)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"prompts":[{
		"name":"Query-a-client-name",
		"description":"Query the client database",
		"arguments":[{"name":"text","required":true},{"name":"maxLength","required":false}]
	}]}`, string(resp.Result))

	resp = dispatch(t, d, `{"jsonrpc":"2.0","id":2,"method":"prompts/get","params":{"name":"query-a-client-name","arguments":{"text":"Smith","maxLength":5}}}`)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{
		"description":"Query the client database",
		"messages":[{"role":"user","content":{"type":"text","text":"Query the client database for names containing: \"Smith\" (max length: 5)."}}]
	}`, string(resp.Result))
}

func TestDispatcherResources(t *testing.T) {
	d := testDispatcher(t, nil)

	resp := dispatch(t, d, `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"resources":[{"uri":"/files/config.json","name":"Configuration File","mimeType":"application/json"}]}`, string(resp.Result))

	resp = dispatch(t, d, `{"jsonrpc":"2.0","id":2,"method":"resources/templates/list"}`)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"resourceTemplates":[{"uriTemplate":"/logs/{date}","name":"Log File by Date","mimeType":"text/plain"}]}`, string(resp.Result))
}

func TestDispatcherErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantID     string
		wantCode   int
		wantPrefix string
	}{
		{
			name:       "parse error with recoverable id",
			body:       `{"jsonrpc":"2.0","id":9,"method":`,
			wantID:     `9`,
			wantCode:   -32700,
			wantPrefix: "Parse error: Invalid JSON received. (",
		},
		{
			name:       "missing method",
			body:       `{"jsonrpc":"2.0","id":3}`,
			wantID:     `3`,
			wantCode:   -32600,
			wantPrefix: "Invalid JSON RPC: Missing or invalid 'method'.",
		},
		{
			name:       "non-string method",
			body:       `{"jsonrpc":"2.0","id":3,"method":42}`,
			wantID:     `3`,
			wantCode:   -32600,
			wantPrefix: "Invalid JSON RPC: Missing or invalid 'method'.",
		},
		{
			name:       "unknown method",
			body:       `{"jsonrpc":"2.0","id":4,"method":"foo/bar"}`,
			wantID:     `4`,
			wantCode:   -32601,
			wantPrefix: "Method not found: foo/bar",
		},
		{
			name:       "direct command call",
			body:       `{"jsonrpc":"2.0","id":5,"method":"echo","params":{"message":"x"}}`,
			wantID:     `5`,
			wantCode:   -32601,
			wantPrefix: "Direct command calls are deprecated. Use 'tools/call' for method 'echo'.",
		},
		{
			name:       "tools/call without params",
			body:       `{"jsonrpc":"2.0","id":6,"method":"tools/call"}`,
			wantID:     `6`,
			wantCode:   -32602,
			wantPrefix: "Invalid params: missing 'params' object",
		},
		{
			name:       "tools/call without name",
			body:       `{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"arguments":{}}}`,
			wantID:     `6`,
			wantCode:   -32602,
			wantPrefix: "Invalid params: missing or invalid 'name'",
		},
		{
			name:       "prompts/get without name",
			body:       `{"jsonrpc":"2.0","id":7,"method":"prompts/get","params":{}}`,
			wantID:     `7`,
			wantCode:   -32602,
			wantPrefix: "Invalid parameters: missing or invalid 'name'",
		},
		{
			name:       "unknown prompt",
			body:       `{"jsonrpc":"2.0","id":8,"method":"prompts/get","params":{"name":"x"}}`,
			wantID:     `8`,
			wantCode:   -32601,
			wantPrefix: "Prompt not found: x",
		},
		{
			name:       "prompt missing required argument",
			body:       `{"jsonrpc":"2.0","id":8,"method":"prompts/get","params":{"name":"Query-a-client-name","arguments":{}}}`,
			wantID:     `8`,
			wantCode:   -32602,
			wantPrefix: "Invalid parameters: missing required argument 'text' for prompt 'Query-a-client-name'",
		},
	}

	d := testDispatcher(t, nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := dispatch(t, d, tc.body)
			assert.Equal(t, tc.wantID, string(resp.ID))
			assert.Nil(t, resp.Result)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.wantCode, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, tc.wantPrefix)
		})
	}
}

func TestDispatcherInternalError(t *testing.T) {
	d := mcp.NewDispatcher(mcp.DispatcherConfig{Prompts: explodingPrompts{}})

	resp := dispatch(t, d, `{"jsonrpc":"2.0","id":1,"method":"prompts/list"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32603, resp.Error.Code)
	assert.Equal(t, "Internal error processing method 'prompts/list': provider exploded", resp.Error.Message)
}

func TestDispatcherSilentCases(t *testing.T) {
	var calls atomic.Int32
	d := testDispatcher(t, &calls)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"whitespace body", " \n "},
		{"invalid json without id", `not json`},
		{"json array", `[1,2,3]`},
		{"json null", `null`},
		{"missing method without id", `{"jsonrpc":"2.0"}`},
		{"object id", `{"jsonrpc":"2.0","id":{"a":1},"method":"tools/list"}`},
		{"initialized notification", `{"jsonrpc":"2.0","method":"notifications/initialized"}`},
		{"notification with id", `{"jsonrpc":"2.0","id":1,"method":"notifications/cancelled"}`},
		{"null id", `{"jsonrpc":"2.0","id":null,"method":"tools/list"}`},
		{"unknown method without id", `{"jsonrpc":"2.0","method":"foo"}`},
		{"tool call without id", `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"Echo","arguments":{"message":"x"}}}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Nil(t, d.Handle(context.Background(), []byte(tc.body)))
		})
	}

	// The tool still runs for a request that expects no reply.
	assert.Equal(t, int32(1), calls.Load())
}
