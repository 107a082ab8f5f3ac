// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind is the dynamic type of an argument value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is one decoded tool argument. Exactly one of the payload fields is
// meaningful, selected by Kind.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	raw  any
}

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// ValueOf converts a JSON-decoded value into a Value.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Value{kind: KindNull}
	case string:
		return String(x)
	case bool:
		return Bool(x)
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return String(x.String())
		}
		return Number(f)
	case map[string]any:
		return Value{kind: KindObject, raw: x}
	case []any:
		return Value{kind: KindArray, raw: x}
	default:
		return Value{kind: KindObject, raw: x}
	}
}

// Kind reports the dynamic type of v.
func (v Value) Kind() Kind { return v.kind }

// IsEmpty reports whether v is null or the empty string.
func (v Value) IsEmpty() bool {
	return v.kind == KindNull || (v.kind == KindString && v.str == "")
}

// Str returns the string payload and whether v is a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Num returns the numeric payload and whether v is a number.
func (v Value) Num() (float64, bool) { return v.num, v.kind == KindNumber }

// Boolean returns the boolean payload and whether v is a boolean.
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == KindBool }

// Text renders v for building request text.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNull:
		return ""
	default:
		return fmt.Sprint(v.raw)
	}
}

// matches reports whether v satisfies a declared JSON-schema type.
// Undeclared or unrecognised types always match.
func (v Value) matches(declared string) bool {
	switch declared {
	case "string":
		return v.kind == KindString
	case "number":
		return v.kind == KindNumber
	case "boolean":
		return v.kind == KindBool
	default:
		return true
	}
}

// Arguments are the decoded arguments of one tools/call.
type Arguments map[string]Value

// DecodeArguments converts a JSON-decoded object into Arguments.
func DecodeArguments(raw map[string]any) Arguments {
	args := make(Arguments, len(raw))
	for k, v := range raw {
		args[k] = ValueOf(v)
	}
	return args
}

// Text returns the text of argument name, or "" when absent.
func (a Arguments) Text(name string) string {
	v, ok := a[name]
	if !ok {
		return ""
	}
	return v.Text()
}
