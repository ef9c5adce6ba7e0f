package mcp

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// Kind enumerates the parameter types a Command can declare.
type Kind int

// Type describes the declared type of a command parameter.
type Type struct {
	Kind Kind
	// Elem is the element kind of an Array.
	Elem Kind
	// Values lists the member names of an Enum, or of an array of Enum.
	Values []string
	// Nullable allows an explicit null for value kinds.
	Nullable bool
}

// Param declares a single command parameter.
type Param struct {
	Name        string
	Description string
	Type        Type
	Optional    bool
	// Default is bound when an optional parameter is omitted.
	Default any
}

// Command is a named, introspectable callable exposed as a tool.
type Command struct {
	Name        string
	Description string
	Params      []Param
	Handler     Handler
}

// Registry maps case-insensitive command names to commands. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
	logger   *slog.Logger
}

// RegistryOption represents the options for the Registry.
type RegistryOption func(*Registry)

// Parameter kinds. KindAny accepts any JSON value unchanged.
const (
	KindAny Kind = iota
	KindString
	KindBool
	KindInt
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindUUID
	KindEnum
	KindArray
	KindObject
)

var kindNames = map[Kind]string{
	KindAny:     "Object",
	KindString:  "String",
	KindBool:    "Boolean",
	KindInt:     "Int",
	KindInt8:    "SByte",
	KindInt16:   "Int16",
	KindInt32:   "Int32",
	KindInt64:   "Int64",
	KindUint:    "UInt",
	KindUint8:   "Byte",
	KindUint16:  "UInt16",
	KindUint32:  "UInt32",
	KindUint64:  "UInt64",
	KindFloat32: "Single",
	KindFloat64: "Double",
	KindUUID:    "Guid",
	KindEnum:    "Enum",
	KindArray:   "Array",
	KindObject:  "Object",
}

// NewRegistry creates an empty command registry.
func NewRegistry(options ...RegistryOption) *Registry {
	r := &Registry{
		commands: make(map[string]Command),
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(r)
	}
	r.logger = r.logger.With(slog.String("package", "go-mcp-bridge"), slog.String("component", "registry"))
	return r
}

// WithRegistryLogger sets the logger of the registry.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// Scalar returns the Type of a non-array, non-enum kind.
func Scalar(kind Kind) Type {
	return Type{Kind: kind}
}

// ArrayOf returns the Type of an array whose elements are of the given kind.
func ArrayOf(elem Kind) Type {
	return Type{Kind: KindArray, Elem: elem}
}

// EnumOf returns the Type of an enumeration with the given member names.
func EnumOf(values ...string) Type {
	return Type{Kind: KindEnum, Values: values}
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) isInteger() bool {
	return k >= KindInt && k <= KindUint64
}

func (k Kind) isUnsigned() bool {
	return k >= KindUint && k <= KindUint64
}

func (k Kind) isFloat() bool {
	return k == KindFloat32 || k == KindFloat64
}

// isReference reports whether an explicit null is a valid value of the kind.
func (k Kind) isReference() bool {
	switch k {
	case KindString, KindArray, KindObject, KindAny:
		return true
	}
	return false
}

func (k Kind) jsonType() string {
	switch {
	case k == KindString, k == KindUUID, k == KindEnum:
		return "string"
	case k.isInteger():
		return "integer"
	case k.isFloat():
		return "number"
	case k == KindBool:
		return "boolean"
	case k == KindArray:
		return "array"
	default:
		return "object"
	}
}

// String returns the type name used by the discovery listing, e.g. "Int32" or "String[]".
func (t Type) String() string {
	if t.Kind == KindArray {
		return t.Elem.String() + "[]"
	}
	return t.Kind.String()
}

func (t Type) elem() Type {
	return Type{Kind: t.Elem, Values: t.Values}
}

// Register adds commands to the registry. A command whose name matches an existing one
// case-insensitively replaces it.
func (r *Registry) Register(cmds ...Command) error {
	for _, c := range cmds {
		if err := c.validate(); err != nil {
			return fmt.Errorf("failed to register command %q: %w", c.Name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range cmds {
		key := strings.ToLower(c.Name)
		if prev, ok := r.commands[key]; ok {
			r.logger.Warn("command already registered, overwriting",
				slog.String("name", c.Name), slog.String("previous", prev.Name))
		}
		c.Params = slices.Clone(c.Params)
		r.commands[key] = c
	}
	return nil
}

// RegisterSource registers every command the source provides.
func (r *Registry) RegisterSource(src CommandSource) error {
	return r.Register(src.Commands()...)
}

// MustRegister is like Register but panics on an invalid command.
func (r *Registry) MustRegister(cmds ...Command) {
	if err := r.Register(cmds...); err != nil {
		panic(err)
	}
}

// Lookup finds a command by case-insensitive name.
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.commands[strings.ToLower(name)]
	return c, ok
}

// List returns a snapshot of all commands sorted by case-insensitive name.
func (r *Registry) List() []Command {
	r.mu.RLock()
	cmds := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		cmds = append(cmds, c)
	}
	r.mu.RUnlock()

	slices.SortFunc(cmds, func(a, b Command) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return cmds
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Tools returns the tool descriptions of all commands, in List order.
func (r *Registry) Tools() []Tool {
	cmds := r.List()
	tools := make([]Tool, len(cmds))
	for i, c := range cmds {
		tools[i] = c.Tool()
	}
	return tools
}

// Tool derives the advertised tool description of the command.
func (c Command) Tool() Tool {
	desc := c.Description
	if desc == "" {
		desc = fmt.Sprintf("Executes the %s command.", c.Name)
	}

	schema := InputSchema{
		Title:       c.Name,
		Description: fmt.Sprintf("Input schema for %s.", c.Name),
		Type:        "object",
		Properties:  make(map[string]PropertySchema, len(c.Params)),
		Required:    []string{},
	}
	if c.Description != "" {
		schema.Description = c.Description
	}

	for _, p := range c.Params {
		prop := PropertySchema{
			Type:        p.Type.Kind.jsonType(),
			Description: p.Description,
		}
		if prop.Description == "" {
			prop.Description = fmt.Sprintf("Parameter '%s' for %s", p.Name, c.Name)
		}
		switch p.Type.Kind {
		case KindUUID:
			prop.Format = "uuid"
		case KindEnum:
			prop.Enum = p.Type.Values
		case KindArray:
			item := &ItemSchema{Type: p.Type.Elem.jsonType()}
			switch p.Type.Elem {
			case KindUUID:
				item.Format = "uuid"
			case KindEnum:
				item.Enum = p.Type.Values
			}
			prop.Items = item
		}
		if p.Optional {
			prop.Default = p.Default
		} else {
			schema.Required = append(schema.Required, p.Name)
		}
		schema.Properties[p.Name] = prop
	}

	return Tool{
		Name:        c.Name,
		Description: desc,
		InputSchema: schema,
	}
}

func (c Command) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("empty command name")
	}
	if c.Handler == nil {
		return errors.New("nil handler")
	}
	seen := make(map[string]struct{}, len(c.Params))
	for _, p := range c.Params {
		if p.Name == "" {
			return errors.New("empty parameter name")
		}
		if _, ok := seen[p.Name]; ok {
			return fmt.Errorf("duplicate parameter %q", p.Name)
		}
		seen[p.Name] = struct{}{}

		if p.Type.Kind == KindArray && p.Type.Elem == KindArray {
			return fmt.Errorf("parameter %q: nested arrays are not supported", p.Name)
		}
		isEnum := p.Type.Kind == KindEnum || (p.Type.Kind == KindArray && p.Type.Elem == KindEnum)
		if isEnum && len(p.Type.Values) == 0 {
			return fmt.Errorf("parameter %q: enum without values", p.Name)
		}
	}
	return nil
}
