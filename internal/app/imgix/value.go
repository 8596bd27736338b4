package imgix

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrUnsupportedValue is returned by ValueOf for types that have no URL rendering.
var ErrUnsupportedValue = errors.New("unsupported parameter value")

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a single URL parameter value.
//
// The zero Value is null. Null and false values are never rendered into a URL;
// every other value is, including 0 and the empty string.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
}

func String(s string) Value { return Value{kind: KindString, s: s} }

func Int(i int64) Value { return Value{kind: KindInt, i: i} }

func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Null() Value { return Value{} }

func (v Value) Kind() Kind { return v.kind }

// Suppressed reports whether the parameter must be left out of the URL.
func (v Value) Suppressed() bool {
	return v.kind == KindNull || (v.kind == KindBool && !v.b)
}

// String renders the value the way it appears in the query string before escaping.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// ValueOf converts a dynamically typed value, as decoded from JSON or passed by
// callers holding map[string]any, into a Value.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return unsigned(uint64(t)), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return unsigned(t), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q", ErrUnsupportedValue, t.String())
		}
		return Float(f), nil
	case fmt.Stringer:
		return String(t.String()), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, x)
	}
}

// uint64 values above MaxInt64 keep their exact decimal form.
func unsigned(u uint64) Value {
	if u > 1<<63-1 {
		return String(strconv.FormatUint(u, 10))
	}
	return Int(int64(u))
}

// EncodingError names the parameter whose value could not be converted.
type EncodingError struct {
	Key string
	Err error
}

func (e *EncodingError) Error() string {
	return "encode parameter " + strconv.Quote(e.Key) + ": " + e.Err.Error()
}

func (e *EncodingError) Unwrap() error { return e.Err }

// Params maps parameter keys to values. Iteration order never affects output.
type Params map[string]Value

// ParamsFromMap converts dynamically typed parameters. The first failing key
// in ascending order is reported.
func ParamsFromMap(m map[string]any) (Params, error) {
	params := make(Params, len(m))
	for _, key := range sortedKeys(m) {
		v, err := ValueOf(m[key])
		if err != nil {
			return nil, &EncodingError{Key: key, Err: err}
		}
		params[key] = v
	}
	return params, nil
}
