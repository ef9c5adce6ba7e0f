package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

// ArgumentError reports a tool argument that is missing, null where a value is required,
// or not convertible to the declared parameter type.
type ArgumentError struct {
	Param string
	Msg   string
	Err   error
}

var (
	errOutOfRange  = errors.New("value out of range")
	errNotSequence = errors.New("value is not an array")
	errNull        = errors.New("null value")
)

func (e *ArgumentError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Msg, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// Coerce converts a decoded JSON value into the Go representation of the declared type.
//
// A null is only accepted for reference-like kinds (String, Array, Object, Any) or
// Nullable types. Values that already have the target representation pass through.
// Numbers convert between numeric kinds, rounding half-to-even when a fraction meets an
// integer kind and failing when the value does not fit. Bool, Enum and UUID have their
// own parsers. Arrays are converted element by element into a typed slice. Anything else
// goes through a weakly-typed decode.
func Coerce(raw any, t Type, param string) (any, error) {
	if raw == nil {
		if t.Nullable || t.Kind.isReference() {
			return nil, nil
		}
		return nil, &ArgumentError{
			Param: param,
			Msg:   fmt.Sprintf("null provided for non-nullable parameter '%s' of type '%s'", param, t),
		}
	}

	if t.Kind == KindArray {
		return coerceArray(raw, t, param)
	}

	v, err := convertScalar(raw, t)
	if err != nil {
		return nil, &ArgumentError{
			Param: param,
			Msg:   fmt.Sprintf("cannot convert value '%v' (type: %T) to required type '%s' for parameter '%s'", raw, raw, t, param),
			Err:   err,
		}
	}
	return v, nil
}

func coerceArray(raw any, t Type, param string) (any, error) {
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, &ArgumentError{
			Param: param,
			Msg:   fmt.Sprintf("cannot convert value '%v' (type: %T) to required type '%s' for parameter '%s'", raw, raw, t, param),
			Err:   errNotSequence,
		}
	}

	elems := make([]any, rv.Len())
	for i := range elems {
		el := rv.Index(i).Interface()
		if el == nil {
			if t.Elem.isReference() {
				continue
			}
			return nil, &ArgumentError{
				Param: param,
				Msg:   fmt.Sprintf("cannot convert array element 'null' to type '%s' for parameter '%s'", t.Elem, param),
				Err:   errNull,
			}
		}
		v, err := convertScalar(el, t.elem())
		if err != nil {
			return nil, &ArgumentError{
				Param: param,
				Msg:   fmt.Sprintf("cannot convert array element '%v' to type '%s' for parameter '%s'", el, t.Elem, param),
				Err:   err,
			}
		}
		elems[i] = v
	}
	return typedSlice(t.Elem, elems), nil
}

func convertScalar(raw any, t Type) (any, error) {
	if v, ok := passthrough(raw, t.Kind); ok {
		return v, nil
	}

	switch {
	case t.Kind.isInteger():
		return toInteger(raw, t.Kind)
	case t.Kind.isFloat():
		return toFloat(raw, t.Kind)
	}

	switch t.Kind {
	case KindBool:
		return toBool(raw)
	case KindEnum:
		return toEnum(raw, t.Values)
	case KindUUID:
		return toUUID(raw)
	case KindString:
		return toString(raw)
	case KindObject:
		var m map[string]any
		if err := mapstructure.Decode(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	}
	return raw, nil
}

func passthrough(raw any, k Kind) (any, bool) {
	switch k {
	case KindAny:
		return raw, true
	case KindString:
		return is[string](raw)
	case KindBool:
		return is[bool](raw)
	case KindInt:
		return is[int](raw)
	case KindInt8:
		return is[int8](raw)
	case KindInt16:
		return is[int16](raw)
	case KindInt32:
		return is[int32](raw)
	case KindInt64:
		return is[int64](raw)
	case KindUint:
		return is[uint](raw)
	case KindUint8:
		return is[uint8](raw)
	case KindUint16:
		return is[uint16](raw)
	case KindUint32:
		return is[uint32](raw)
	case KindUint64:
		return is[uint64](raw)
	case KindFloat32:
		return is[float32](raw)
	case KindFloat64:
		return is[float64](raw)
	case KindUUID:
		return is[uuid.UUID](raw)
	case KindObject:
		return is[map[string]any](raw)
	}
	return nil, false
}

func is[T any](raw any) (any, bool) {
	v, ok := raw.(T)
	return v, ok
}

func toInteger(raw any, k Kind) (any, error) {
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fromInt64(rv.Int(), k)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return fromUint64(rv.Uint(), k)
	case reflect.Float32, reflect.Float64:
		return fromFloat(rv.Float(), k)
	case reflect.Bool:
		if rv.Bool() {
			return fromInt64(1, k)
		}
		return fromInt64(0, k)
	case reflect.String:
		// json.Number lands here as well.
		return parseInteger(strings.TrimSpace(rv.String()), k)
	}
	return nil, fmt.Errorf("unsupported source type %T", raw)
}

func parseInteger(s string, k Kind) (any, error) {
	if k.isUnsigned() {
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return fromUint64(u, k)
		}
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromInt64(i, k)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return fromFloat(f, k)
}

func intBits(k Kind) int {
	switch k {
	case KindInt8, KindUint8:
		return 8
	case KindInt16, KindUint16:
		return 16
	case KindInt32, KindUint32:
		return 32
	case KindInt64, KindUint64:
		return 64
	}
	return strconv.IntSize
}

func fromFloat(f float64, k Kind) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %v does not fit %s", errOutOfRange, f, k)
	}
	r := math.RoundToEven(f)
	bits := intBits(k)
	if k.isUnsigned() {
		if r < 0 || r >= math.Ldexp(1, bits) {
			return nil, fmt.Errorf("%w: %v does not fit %s", errOutOfRange, f, k)
		}
		return fromUint64(uint64(r), k)
	}
	limit := math.Ldexp(1, bits-1)
	if r < -limit || r >= limit {
		return nil, fmt.Errorf("%w: %v does not fit %s", errOutOfRange, f, k)
	}
	return fromInt64(int64(r), k)
}

func fromInt64(i int64, k Kind) (any, error) {
	if k.isUnsigned() {
		if i < 0 {
			return nil, fmt.Errorf("%w: %d does not fit %s", errOutOfRange, i, k)
		}
		return fromUint64(uint64(i), k)
	}
	if bits := intBits(k); bits < 64 {
		lo, hi := int64(-1)<<(bits-1), int64(1)<<(bits-1)-1
		if i < lo || i > hi {
			return nil, fmt.Errorf("%w: %d does not fit %s", errOutOfRange, i, k)
		}
	}
	switch k {
	case KindInt:
		return int(i), nil
	case KindInt8:
		return int8(i), nil
	case KindInt16:
		return int16(i), nil
	case KindInt32:
		return int32(i), nil
	}
	return i, nil
}

func fromUint64(u uint64, k Kind) (any, error) {
	if !k.isUnsigned() {
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("%w: %d does not fit %s", errOutOfRange, u, k)
		}
		return fromInt64(int64(u), k)
	}
	if bits := intBits(k); bits < 64 && u > uint64(1)<<bits-1 {
		return nil, fmt.Errorf("%w: %d does not fit %s", errOutOfRange, u, k)
	}
	switch k {
	case KindUint:
		return uint(u), nil
	case KindUint8:
		return uint8(u), nil
	case KindUint16:
		return uint16(u), nil
	case KindUint32:
		return uint32(u), nil
	}
	return u, nil
}

func toFloat(raw any, k Kind) (any, error) {
	var f float64
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f = float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		f = float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		f = rv.Float()
	case reflect.Bool:
		if rv.Bool() {
			f = 1
		}
	case reflect.String:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(rv.String()), 64); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported source type %T", raw)
	}

	if k == KindFloat32 {
		if math.Abs(f) > math.MaxFloat32 && !math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %v does not fit %s", errOutOfRange, f, k)
		}
		return float32(f), nil
	}
	return f, nil
}

func toBool(raw any) (any, error) {
	switch v := raw.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, err
		}
		return f != 0, nil
	case string:
		s := strings.TrimSpace(v)
		switch {
		case strings.EqualFold(s, "true"):
			return true, nil
		case strings.EqualFold(s, "false"):
			return false, nil
		}
		return nil, fmt.Errorf("%q is not a boolean", v)
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0, nil
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0, nil
	}
	return nil, fmt.Errorf("unsupported source type %T", raw)
}

// toEnum matches a member name case-insensitively and returns its canonical spelling.
// An integral value selects the member by ordinal.
func toEnum(raw any, values []string) (any, error) {
	s := strings.TrimSpace(fmt.Sprint(raw))
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return v, nil
		}
	}

	idx, err := toInteger(raw, KindInt)
	if err == nil {
		if i := idx.(int); i >= 0 && i < len(values) {
			return values[i], nil
		}
	}
	return nil, fmt.Errorf("'%s' is not one of: %s", s, strings.Join(values, ", "))
}

func toUUID(raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return uuid.Parse(strings.TrimSpace(v))
	case [16]byte:
		return uuid.UUID(v), nil
	}
	return nil, fmt.Errorf("unsupported source type %T", raw)
}

func toString(raw any) (any, error) {
	if b, ok := raw.(bool); ok {
		return strconv.FormatBool(b), nil
	}
	var s string
	if err := mapstructure.WeakDecode(raw, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func typedSlice(elem Kind, vals []any) any {
	switch elem {
	case KindString, KindEnum:
		return collect[string](vals)
	case KindBool:
		return collect[bool](vals)
	case KindInt:
		return collect[int](vals)
	case KindInt8:
		return collect[int8](vals)
	case KindInt16:
		return collect[int16](vals)
	case KindInt32:
		return collect[int32](vals)
	case KindInt64:
		return collect[int64](vals)
	case KindUint:
		return collect[uint](vals)
	case KindUint8:
		return collect[uint8](vals)
	case KindUint16:
		return collect[uint16](vals)
	case KindUint32:
		return collect[uint32](vals)
	case KindUint64:
		return collect[uint64](vals)
	case KindFloat32:
		return collect[float32](vals)
	case KindFloat64:
		return collect[float64](vals)
	case KindUUID:
		return collect[uuid.UUID](vals)
	case KindObject:
		return collect[map[string]any](vals)
	}
	return vals
}

func collect[T any](vals []any) []T {
	out := make([]T, len(vals))
	for i, v := range vals {
		if v != nil {
			out[i] = v.(T)
		}
	}
	return out
}
