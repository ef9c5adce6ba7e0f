package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

// Args holds the coerced arguments of a single invocation, in declaration order.
type Args struct {
	names  []string
	values map[string]any
}

// NewArgs builds Args from already-typed values, mainly for calling handlers directly.
func NewArgs(values map[string]any) Args {
	a := Args{values: make(map[string]any, len(values))}
	for k, v := range values {
		a.names = append(a.names, k)
		a.values[k] = v
	}
	return a
}

// Bind coerces raw JSON-decoded arguments into the command's declared parameters.
// An omitted optional parameter takes its declared default; an omitted or null
// required parameter fails before the handler runs.
func (c Command) Bind(raw map[string]any) (Args, error) {
	args := Args{
		names:  make([]string, 0, len(c.Params)),
		values: make(map[string]any, len(c.Params)),
	}
	for _, p := range c.Params {
		v, present := raw[p.Name]
		var bound any
		switch {
		case present && (v != nil || p.Type.Nullable):
			var err error
			if bound, err = Coerce(v, p.Type, p.Name); err != nil {
				return Args{}, err
			}
		case p.Optional:
			bound = p.Default
		default:
			return Args{}, &ArgumentError{
				Param: p.Name,
				Msg:   fmt.Sprintf("missing required argument: '%s' for tool '%s'", p.Name, c.Name),
			}
		}
		args.names = append(args.names, p.Name)
		args.values[p.Name] = bound
	}
	return args, nil
}

// Invoke runs the handler, converting a panic into an error.
func (c Command) Invoke(ctx context.Context, args Args) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.Handler(ctx, args)
}

// Len returns the number of bound arguments.
func (a Args) Len() int { return len(a.names) }

// Names returns the bound parameter names in declaration order.
func (a Args) Names() []string { return a.names }

// Value returns the bound value of name and whether it was bound.
func (a Args) Value(name string) (any, bool) {
	v, ok := a.values[name]
	return v, ok
}

// Has reports whether name is bound to a non-nil value.
func (a Args) Has(name string) bool {
	v, ok := a.values[name]
	return ok && v != nil
}

// String returns the value of a string parameter, or "" when unset.
func (a Args) String(name string) string { return Arg[string](a, name) }

// Bool returns the value of a bool parameter.
func (a Args) Bool(name string) bool { return Arg[bool](a, name) }

// Int returns the value of an Int parameter.
func (a Args) Int(name string) int { return Arg[int](a, name) }

// Int64 returns the value of an Int64 parameter.
func (a Args) Int64(name string) int64 { return Arg[int64](a, name) }

// Float64 returns the value of a Float64 parameter.
func (a Args) Float64(name string) float64 { return Arg[float64](a, name) }

// UUID returns the value of a UUID parameter.
func (a Args) UUID(name string) uuid.UUID { return Arg[uuid.UUID](a, name) }

// Strings returns the value of a string array parameter.
func (a Args) Strings(name string) []string { return Arg[[]string](a, name) }

// Decode decodes the value of name into out, which is typically a pointer to a struct
// for Object parameters.
func (a Args) Decode(name string, out any) error {
	v, ok := a.values[name]
	if !ok {
		return fmt.Errorf("argument %q is not bound", name)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "json",
		DecodeHook:       mapstructure.TextUnmarshallerHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode argument %q: %w", name, err)
	}
	return nil
}

// Arg returns the bound value of name as T, or the zero T when unbound or of a different type.
func Arg[T any](a Args, name string) T {
	var zero T
	v, ok := a.values[name]
	if !ok || v == nil {
		return zero
	}
	t, ok := v.(T)
	if !ok {
		return zero
	}
	return t
}

// formatValue renders a value for tool results and prompt substitution.
func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(v)
	case []byte:
		return string(v)
	case map[string]any, []any:
		bs, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(bs)
	}
	return fmt.Sprint(v)
}
