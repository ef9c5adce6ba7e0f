package mcp

import "context"

// Handler is the function invoked for a tools/call. The returned value is stringified
// into the tool result, except a CallToolResult which is returned as is. A nil value
// yields a generic success message; a non-nil error is reported as a failed tool result.
type Handler func(ctx context.Context, args Args) (any, error)

// CommandSource is implemented by anything that contributes a set of commands, such as a
// package of related tools.
type CommandSource interface {
	Commands() []Command
}

// PromptProvider supplies the prompt templates served by prompts/list and prompts/get.
type PromptProvider interface {
	// List returns the listed form of every prompt.
	List() []Prompt

	// Lookup finds a prompt template by name. Implementations should match names
	// case-insensitively.
	Lookup(name string) (PromptTemplate, bool)
}

// ResourceProvider supplies the descriptors served by resources/list and
// resources/templates/list.
type ResourceProvider interface {
	Resources() []Resource
	Templates() []ResourceTemplate
}
