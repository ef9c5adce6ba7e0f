package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"
)

// ClientOption is a function that configures a client.
type ClientOption func(*Client)

// Client talks to a bridge over the SSE + POST transport. It opens the event stream,
// learns the message endpoint from the "endpoint" event, POSTs requests there and
// matches the responses arriving on the stream to their requests by id.
//
// A Client must be created using NewClient and requires Connect to be called before any
// request can be made. It should be closed using Close when it's no longer needed.
type Client struct {
	baseURL    string
	info       Info
	httpClient *http.Client
	logger     *slog.Logger

	endpoint     string
	serverInfo   Info
	instructions string

	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	pending map[string]chan clientResponse
	closed  bool
}

type clientResponse struct {
	ID     ID              `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *JSONRPCError   `json:"error"`
}

// ErrClientClosed is returned for requests made on, or still pending when, the event
// stream of a Client ends.
var ErrClientClosed = errors.New("client closed")

// NewClient creates a client for the bridge mounted at baseURL, e.g.
// "http://127.0.0.1:3003" or "http://127.0.0.1:3003/mcp" for a prefixed server.
func NewClient(baseURL string, info Info, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		info:       info,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
		pending:    make(map[string]chan clientResponse),
	}
	for _, opt := range options {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("package", "go-mcp-bridge"), slog.String("component", "client"))
	return c
}

// WithHTTPClient sets the HTTP client used for the event stream and the POSTs. It must
// not impose a total request timeout, which would cut the event stream.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithClientLogger sets the logger for the client.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// Connect opens the event stream and performs the initialize handshake. ctx bounds the
// handshake only; the stream stays open until Close.
func (c *Client) Connect(ctx context.Context) error {
	streamCtx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.baseURL+"/sse", nil)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		cancel()
		return fmt.Errorf("failed to open event stream: unexpected status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	c.cancel = cancel
	c.done = make(chan struct{})
	endpoint := make(chan string, 1)
	go c.listen(resp.Body, endpoint)

	select {
	case ep, ok := <-endpoint:
		if !ok {
			c.Close()
			return fmt.Errorf("failed to receive endpoint: %w", ErrClientClosed)
		}
		if c.endpoint, err = c.resolve(ep); err != nil {
			c.Close()
			return err
		}
	case <-ctx.Done():
		c.Close()
		return fmt.Errorf("failed to receive endpoint: %w", ctx.Err())
	}

	var result initializeResult
	if err := c.call(ctx, MethodInitialize, map[string]any{
		"protocolVersion": ProtocolVersion,
		"clientInfo":      c.info,
		"capabilities":    struct{}{},
	}, &result); err != nil {
		c.Close()
		return fmt.Errorf("failed to initialize: %w", err)
	}
	c.serverInfo = result.ServerInfo
	c.instructions = result.Instructions

	if err := c.Notify(ctx, MethodInitialized, nil); err != nil {
		c.Close()
		return fmt.Errorf("failed to send initialized notification: %w", err)
	}
	return nil
}

// ServerInfo returns the server's info announced during Connect.
func (c *Client) ServerInfo() Info { return c.serverInfo }

// Instructions returns the instructions announced during Connect.
func (c *Client) Instructions() string { return c.instructions }

// Call sends a request and waits for its result. Protocol errors are returned as
// *JSONRPCError.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := ID(strconv.Quote(uuid.New().String()))
	ch := make(chan clientResponse, 1)

	c.mu.Lock()
	if c.closed || c.done == nil {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	c.pending[id.String()] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id.String())
		c.mu.Unlock()
	}()

	if err := c.post(ctx, id, method, params); err != nil {
		return nil, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrClientClosed
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Notify sends a message without an id. The server never answers it.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	c.mu.Lock()
	closed := c.closed || c.done == nil
	c.mu.Unlock()
	if closed {
		return ErrClientClosed
	}
	return c.post(ctx, nil, method, params)
}

// ListTools lists the tools of the server.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	var result ListToolsResult
	if err := c.call(ctx, MethodToolsList, nil, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// CallTool invokes a tool. A failing tool is reported through the result's IsError,
// not as an error.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (CallToolResult, error) {
	var result CallToolResult
	err := c.call(ctx, MethodToolsCall, CallToolParams{Name: name, Arguments: args}, &result)
	return result, err
}

// ListPrompts lists the prompt templates of the server.
func (c *Client) ListPrompts(ctx context.Context) ([]Prompt, error) {
	var result ListPromptsResult
	if err := c.call(ctx, MethodPromptsList, nil, &result); err != nil {
		return nil, err
	}
	return result.Prompts, nil
}

// GetPrompt renders a prompt template.
func (c *Client) GetPrompt(ctx context.Context, name string, args map[string]any) (GetPromptResult, error) {
	var result GetPromptResult
	err := c.call(ctx, MethodPromptsGet, GetPromptParams{Name: name, Arguments: args}, &result)
	return result, err
}

// ListResources lists the static resources of the server.
func (c *Client) ListResources(ctx context.Context) ([]Resource, error) {
	var result ListResourcesResult
	if err := c.call(ctx, MethodResourcesList, nil, &result); err != nil {
		return nil, err
	}
	return result.Resources, nil
}

// ListResourceTemplates lists the resource templates of the server.
func (c *Client) ListResourceTemplates(ctx context.Context) ([]ResourceTemplate, error) {
	var result ListResourceTemplatesResult
	if err := c.call(ctx, MethodResourcesTemplatesList, nil, &result); err != nil {
		return nil, err
	}
	return result.ResourceTemplates, nil
}

// Close ends the event stream and fails every pending request with ErrClientClosed.
func (c *Client) Close() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

func (c *Client) call(ctx context.Context, method string, params, out any) error {
	raw, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, id ID, method string, params any) error {
	msg := Request{JSONRPC: JSONRPCVersion, ID: id, Method: method}
	if params != nil {
		bs, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to marshal params: %w", err)
		}
		msg.Params = bs
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post %s: %w", method, err)
	}
	defer resp.Body.Close()

	text, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("failed to post %s: unexpected status %d: %s",
			method, resp.StatusCode, strings.TrimSpace(string(text)))
	}
	return nil
}

func (c *Client) listen(body io.ReadCloser, endpoint chan<- string) {
	defer close(c.done)
	defer body.Close()
	defer close(endpoint)

	for ev, err := range sse.Read(body, nil) {
		if err != nil {
			c.logger.Debug("event stream ended", slog.String("err", err.Error()))
			break
		}

		switch ev.Type {
		case "endpoint":
			select {
			case endpoint <- ev.Data:
			default:
			}
		case "", "message":
			var resp clientResponse
			if err := json.Unmarshal([]byte(ev.Data), &resp); err != nil {
				c.logger.Warn("failed to decode response", slog.String("err", err.Error()))
				continue
			}
			c.deliver(resp)
		default:
			c.logger.Debug("ignoring event", slog.String("type", ev.Type))
		}
	}

	c.mu.Lock()
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
}

func (c *Client) deliver(resp clientResponse) {
	c.mu.Lock()
	ch, ok := c.pending[resp.ID.String()]
	delete(c.pending, resp.ID.String())
	c.mu.Unlock()
	if !ok {
		c.logger.Warn("dropping response to unknown request", slog.String("id", resp.ID.String()))
		return
	}
	ch <- resp
}

func (c *Client) resolve(endpoint string) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", c.baseURL, err)
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	return base.ResolveReference(ref).String(), nil
}
