package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is a JSON-RPC request identifier. It holds the raw JSON token exactly as the
// caller sent it (number, string or null) so the response can echo it back verbatim.
type ID json.RawMessage

// Request is the decoded form of an incoming JSON-RPC 2.0 message.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is an outgoing JSON-RPC 2.0 message. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      ID            `json:"id"`
	Result  any           `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// JSONRPCError represents an error response in the JSON-RPC 2.0 protocol.
// It follows the standard error object format defined in the JSON-RPC 2.0 specification.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Info contains metadata about a server, announced during initialization.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerCapabilities represents the capability groups a server announces. Every group
// this server supports is announced as an empty object.
type ServerCapabilities struct {
	Tools     *struct{} `json:"tools,omitempty"`
	Prompts   *struct{} `json:"prompts,omitempty"`
	Resources *struct{} `json:"resources,omitempty"`
}

// Tool is the advertised description of a Command, derived from its declared parameters.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema is the JSON-Schema-like object describing a tool's arguments.
type InputSchema struct {
	Title       string                    `json:"title,omitempty"`
	Description string                    `json:"description,omitempty"`
	Type        string                    `json:"type"`
	Properties  map[string]PropertySchema `json:"properties"`
	Required    []string                  `json:"required"`
}

// PropertySchema describes a single tool argument.
type PropertySchema struct {
	Type        string      `json:"type"`
	Description string      `json:"description,omitempty"`
	Format      string      `json:"format,omitempty"`
	Enum        []string    `json:"enum,omitempty"`
	Items       *ItemSchema `json:"items,omitempty"`
	Default     any         `json:"default,omitempty"`
}

// ItemSchema describes the element type of an array argument.
type ItemSchema struct {
	Type   string   `json:"type"`
	Format string   `json:"format,omitempty"`
	Enum   []string `json:"enum,omitempty"`
}

// Content represents a content block of a tool result or prompt message.
type Content struct {
	Type ContentType `json:"type"`
	Text string      `json:"text"`
}

// ContentType represents the type of content.
type ContentType string

// Role represents the role of a prompt message author.
type Role string

// Prompt is the listed form of a PromptTemplate.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptArgument declares a named argument of a prompt.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// PromptMessage is a single rendered message of a prompt.
type PromptMessage struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

// Resource is a static resource descriptor.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceTemplate is a parameterized resource descriptor using an RFC 6570 URI template.
type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// CallToolParams contains the parameters of a tools/call request.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// CallToolResult is the result of a tools/call request. Tool-level failures are
// reported here with IsError set, never as protocol errors.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

// GetPromptParams contains the parameters of a prompts/get request.
type GetPromptParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// GetPromptResult is the result of a prompts/get request.
type GetPromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// ListToolsResult is the result of tools/list and rpc.discover.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// ListPromptsResult is the result of prompts/list.
type ListPromptsResult struct {
	Prompts []Prompt `json:"prompts"`
}

// ListResourcesResult is the result of resources/list.
type ListResourcesResult struct {
	Resources []Resource `json:"resources"`
}

// ListResourceTemplatesResult is the result of resources/templates/list.
type ListResourceTemplatesResult struct {
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
}

type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Info               `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

type discoverEntry struct {
	Name       string   `json:"name"`
	Parameters []string `json:"parameters"`
}

const (
	// JSONRPCVersion specifies the JSON-RPC protocol version used for communication.
	JSONRPCVersion = "2.0"

	// MethodInitialize is the handshake method.
	MethodInitialize = "initialize"
	// MethodInitialized is the notification a client sends after the handshake.
	MethodInitialized = "notifications/initialized"
	// MethodToolsList lists the registered commands as tools.
	MethodToolsList = "tools/list"
	// MethodRPCDiscover is a legacy alias of MethodToolsList.
	MethodRPCDiscover = "rpc.discover"
	// MethodToolsCall invokes a command.
	MethodToolsCall = "tools/call"
	// MethodPromptsList lists the prompt templates.
	MethodPromptsList = "prompts/list"
	// MethodPromptsGet renders a prompt template.
	MethodPromptsGet = "prompts/get"
	// MethodResourcesList lists the static resources.
	MethodResourcesList = "resources/list"
	// MethodResourcesTemplatesList lists the resource templates.
	MethodResourcesTemplatesList = "resources/templates/list"

	// ContentTypeText is the text content block type.
	ContentTypeText ContentType = "text"

	// RoleUser is the role of messages authored by the user.
	RoleUser Role = "user"
	// RoleAssistant is the role of messages authored by the model.
	RoleAssistant Role = "assistant"

	// ProtocolVersion is the MCP revision announced by initialize.
	ProtocolVersion = "2024-11-05"

	notificationsPrefix = "notifications/"

	jsonRPCParseErrorCode     = -32700
	jsonRPCInvalidRequestCode = -32600
	jsonRPCMethodNotFoundCode = -32601
	jsonRPCInvalidParamsCode  = -32602
	jsonRPCInternalErrorCode  = -32603
)

// IsNull reports whether the id is absent or the JSON literal null. Requests with
// such an id never receive a response.
func (id ID) IsNull() bool {
	t := bytes.TrimSpace(id)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// String returns the raw JSON text of the id.
func (id ID) String() string {
	if id.IsNull() {
		return "null"
	}
	return string(bytes.TrimSpace(id))
}

// MarshalJSON implements json.Marshaler. An empty id encodes as null.
func (id ID) MarshalJSON() ([]byte, error) {
	if len(bytes.TrimSpace(id)) == 0 {
		return []byte("null"), nil
	}
	return bytes.TrimSpace(id), nil
}

// UnmarshalJSON implements json.Unmarshaler. Only numbers, strings and null are
// valid identifiers.
func (id *ID) UnmarshalJSON(data []byte) error {
	t := bytes.TrimSpace(data)
	if len(t) == 0 {
		*id = nil
		return nil
	}
	switch t[0] {
	case '"', 'n', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
	default:
		return fmt.Errorf("invalid id %s: must be a string, number or null", t)
	}
	*id = append((*id)[:0], t...)
	return nil
}

func (j JSONRPCError) Error() string {
	return fmt.Sprintf("request error, code: %d, message: %s", j.Code, j.Message)
}

func textResult(text string, isError bool) CallToolResult {
	return CallToolResult{
		Content: []Content{{Type: ContentTypeText, Text: text}},
		IsError: isError,
	}
}
