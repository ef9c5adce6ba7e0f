package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Dispatcher turns one raw JSON-RPC message into at most one encoded response. It holds
// no per-session state, so a single Dispatcher serves every session concurrently.
type Dispatcher struct {
	info         Info
	instructions string

	registry  *Registry
	prompts   PromptProvider
	resources ResourceProvider

	metrics *Metrics
	logger  *slog.Logger
}

// DispatcherConfig lists the collaborators of a Dispatcher. Nil catalogs are treated as empty.
type DispatcherConfig struct {
	Info         Info
	Instructions string
	Registry     *Registry
	Prompts      PromptProvider
	Resources    ResourceProvider
	Metrics      *Metrics
	Logger       *slog.Logger
}

var errMissingParams = errors.New("missing 'params' object")

// NewDispatcher creates a Dispatcher from cfg.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		info:         cfg.Info,
		instructions: cfg.Instructions,
		registry:     cfg.Registry,
		prompts:      cfg.Prompts,
		resources:    cfg.Resources,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
	if d.registry == nil {
		d.registry = NewRegistry()
	}
	if d.prompts == nil {
		d.prompts = NewPromptSet()
	}
	if d.resources == nil {
		d.resources = NewResourceCatalog()
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.logger = d.logger.With(slog.String("package", "go-mcp-bridge"), slog.String("component", "dispatcher"))
	return d
}

// Handle processes one message body and returns the encoded response, or nil when no
// response is due: notifications, requests without an id, and unparseable bodies whose
// id cannot be recovered.
func (d *Dispatcher) Handle(ctx context.Context, body []byte) []byte {
	req, rpcErr := parseRequest(body)
	if rpcErr != nil {
		d.logger.Warn("failed to parse request",
			slog.String("id", req.ID.String()), slog.String("err", rpcErr.Message))
		if req.ID.IsNull() {
			d.metrics.request("invalid", OutcomeDropped)
			return nil
		}
		d.metrics.request("invalid", OutcomeError)
		return d.encode(Response{JSONRPC: JSONRPCVersion, ID: req.ID, Error: rpcErr})
	}

	logger := d.logger.With(slog.String("method", req.Method), slog.String("id", req.ID.String()))
	logger.Debug("handling request")

	label := d.methodLabel(req.Method)
	result, rpcErr := d.route(ctx, req)

	if req.ID.IsNull() || strings.HasPrefix(req.Method, notificationsPrefix) {
		if rpcErr != nil {
			logger.Warn("notification failed", slog.String("err", rpcErr.Message))
		}
		d.metrics.request(label, OutcomeNotification)
		return nil
	}

	if rpcErr != nil {
		logger.Warn("request failed", slog.Int("code", rpcErr.Code), slog.String("err", rpcErr.Message))
		d.metrics.request(label, OutcomeError)
		return d.encode(Response{JSONRPC: JSONRPCVersion, ID: req.ID, Error: rpcErr})
	}

	d.metrics.request(label, OutcomeResult)
	return d.encode(Response{JSONRPC: JSONRPCVersion, ID: req.ID, Result: result})
}

func (d *Dispatcher) route(ctx context.Context, req Request) (result any, rpcErr *JSONRPCError) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic while handling request",
				slog.String("method", req.Method), slog.String("panic", fmt.Sprint(r)))
			result = nil
			rpcErr = &JSONRPCError{
				Code:    jsonRPCInternalErrorCode,
				Message: fmt.Sprintf("Internal error processing method '%s': %v", req.Method, r),
			}
		}
	}()

	switch req.Method {
	case MethodInitialize:
		return d.handleInitialize(req)
	case MethodInitialized:
		return nil, nil
	case MethodToolsList, MethodRPCDiscover:
		return ListToolsResult{Tools: d.registry.Tools()}, nil
	case MethodToolsCall:
		return d.handleCallTool(ctx, req)
	case MethodPromptsList:
		return ListPromptsResult{Prompts: d.prompts.List()}, nil
	case MethodPromptsGet:
		return d.handleGetPrompt(req)
	case MethodResourcesList:
		return ListResourcesResult{Resources: d.resources.Resources()}, nil
	case MethodResourcesTemplatesList:
		return ListResourceTemplatesResult{ResourceTemplates: d.resources.Templates()}, nil
	}

	if _, ok := d.registry.Lookup(req.Method); ok {
		return nil, &JSONRPCError{
			Code:    jsonRPCMethodNotFoundCode,
			Message: fmt.Sprintf("Direct command calls are deprecated. Use 'tools/call' for method '%s'.", req.Method),
		}
	}
	return nil, &JSONRPCError{
		Code:    jsonRPCMethodNotFoundCode,
		Message: fmt.Sprintf("Method not found: %s", req.Method),
	}
}

func (d *Dispatcher) handleInitialize(req Request) (any, *JSONRPCError) {
	var params struct {
		ProtocolVersion string `json:"protocolVersion"`
		ClientInfo      Info   `json:"clientInfo"`
	}
	if err := decodeParams(req.Params, &params); err == nil {
		d.logger.Info("client initializing",
			slog.String("clientName", params.ClientInfo.Name),
			slog.String("clientVersion", params.ClientInfo.Version),
			slog.String("protocolVersion", params.ProtocolVersion))
	}

	return initializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapabilities{
			Tools:     &struct{}{},
			Prompts:   &struct{}{},
			Resources: &struct{}{},
		},
		ServerInfo:   d.info,
		Instructions: d.instructions,
	}, nil
}

// callToolRequest keeps arguments raw so that a non-object value binds as no arguments
// and surfaces as a tool-level error instead of failing the request.
type callToolRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (r callToolRequest) arguments() map[string]any {
	var args map[string]any
	dec := json.NewDecoder(bytes.NewReader(r.Arguments))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}

func (d *Dispatcher) handleCallTool(ctx context.Context, req Request) (any, *JSONRPCError) {
	var params callToolRequest
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, &JSONRPCError{
			Code:    jsonRPCInvalidParamsCode,
			Message: fmt.Sprintf("Invalid params: %s", err),
		}
	}
	if params.Name == "" {
		return nil, &JSONRPCError{
			Code:    jsonRPCInvalidParamsCode,
			Message: "Invalid params: missing or invalid 'name' in tools/call params",
		}
	}

	cmd, ok := d.registry.Lookup(params.Name)
	if !ok {
		d.metrics.toolCall("unknown", ToolStatusNotFound, 0)
		return textResult(fmt.Sprintf("Tool '%s' not found.", params.Name), true), nil
	}

	logger := d.logger.With(slog.String("tool", cmd.Name))

	args, err := cmd.Bind(params.arguments())
	if err != nil {
		logger.Warn("failed to bind arguments", slog.String("err", err.Error()))
		d.metrics.toolCall(cmd.Name, ToolStatusError, 0)
		return textResult(fmt.Sprintf("Error processing tool call for '%s': %s", cmd.Name, err), true), nil
	}

	start := time.Now()
	res, err := cmd.Invoke(ctx, args)
	elapsed := time.Since(start)
	if err != nil {
		logger.Warn("tool failed", slog.String("err", err.Error()))
		d.metrics.toolCall(cmd.Name, ToolStatusError, elapsed)
		return textResult(fmt.Sprintf("Error executing tool '%s': %s", cmd.Name, err), true), nil
	}
	d.metrics.toolCall(cmd.Name, ToolStatusOK, elapsed)

	switch res := res.(type) {
	case nil:
		return textResult(fmt.Sprintf("%s executed successfully.", cmd.Name), false), nil
	case CallToolResult:
		return res, nil
	default:
		return textResult(formatValue(res), false), nil
	}
}

func (d *Dispatcher) handleGetPrompt(req Request) (any, *JSONRPCError) {
	var params GetPromptParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, &JSONRPCError{
			Code:    jsonRPCInvalidParamsCode,
			Message: fmt.Sprintf("Invalid parameters: %s", err),
		}
	}
	if params.Name == "" {
		return nil, &JSONRPCError{
			Code:    jsonRPCInvalidParamsCode,
			Message: "Invalid parameters: missing or invalid 'name' in prompts/get params",
		}
	}

	tmpl, ok := d.prompts.Lookup(params.Name)
	if !ok {
		return nil, &JSONRPCError{
			Code:    jsonRPCMethodNotFoundCode,
			Message: fmt.Sprintf("Prompt not found: %s", params.Name),
		}
	}

	res, err := tmpl.Render(params.Arguments)
	if err != nil {
		return nil, &JSONRPCError{
			Code:    jsonRPCInvalidParamsCode,
			Message: fmt.Sprintf("Invalid parameters: %s", err),
		}
	}
	return res, nil
}

func (d *Dispatcher) methodLabel(method string) string {
	switch method {
	case MethodInitialize, MethodInitialized, MethodToolsList, MethodRPCDiscover, MethodToolsCall,
		MethodPromptsList, MethodPromptsGet, MethodResourcesList, MethodResourcesTemplatesList:
		return method
	}
	if _, ok := d.registry.Lookup(method); ok {
		return "direct_call"
	}
	return "unknown"
}

func (d *Dispatcher) encode(resp Response) []byte {
	bs, err := json.Marshal(resp)
	if err == nil {
		return bs
	}

	d.logger.Error("failed to marshal response", slog.String("id", resp.ID.String()), slog.String("err", err.Error()))
	bs, err = json.Marshal(Response{
		JSONRPC: JSONRPCVersion,
		ID:      resp.ID,
		Error: &JSONRPCError{
			Code:    jsonRPCInternalErrorCode,
			Message: fmt.Sprintf("Internal error: failed to encode result: %s", err),
		},
	})
	if err != nil {
		return nil
	}
	return bs
}

// parseRequest decodes the envelope. On failure the returned Request carries whatever id
// could be recovered so the caller can decide whether an error response is due.
func parseRequest(body []byte) (Request, *JSONRPCError) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Request{}, parseError("empty request body")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return Request{ID: salvageID(body)}, parseError(err.Error())
	}
	if fields == nil {
		return Request{}, parseError("request is not a JSON object")
	}

	var req Request
	if raw, ok := fields["id"]; ok {
		if err := req.ID.UnmarshalJSON(raw); err != nil {
			return Request{}, &JSONRPCError{
				Code:    jsonRPCInvalidRequestCode,
				Message: fmt.Sprintf("Invalid JSON RPC: %s", err),
			}
		}
	}
	if raw, ok := fields["jsonrpc"]; ok {
		_ = json.Unmarshal(raw, &req.JSONRPC)
	}

	raw, ok := fields["method"]
	if !ok || json.Unmarshal(raw, &req.Method) != nil || req.Method == "" {
		return req, &JSONRPCError{
			Code:    jsonRPCInvalidRequestCode,
			Message: "Invalid JSON RPC: Missing or invalid 'method'.",
		}
	}
	req.Params = fields["params"]
	return req, nil
}

func parseError(detail string) *JSONRPCError {
	return &JSONRPCError{
		Code:    jsonRPCParseErrorCode,
		Message: fmt.Sprintf("Parse error: Invalid JSON received. (%s)", detail),
	}
}

// salvageID scans the top-level members of a possibly malformed object for a valid id.
func salvageID(body []byte) ID {
	dec := json.NewDecoder(bytes.NewReader(body))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil
		}
		if key != "id" {
			continue
		}
		var id ID
		if err := id.UnmarshalJSON(raw); err != nil {
			return nil
		}
		return id
	}
	return nil
}

// decodeParams decodes a params object, keeping numbers as json.Number so integer
// arguments survive without a float round-trip.
func decodeParams(raw json.RawMessage, out any) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return errMissingParams
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("failed to decode params: %w", err)
	}
	return nil
}
