package gguf

// Kind discriminates the closed set of metadata value variants.
// The thirteen GGUF wire types fold into this set: unsigned integers
// become Uint, signed integers Int, both float widths Float, and
// arrays of uint8/int8 become Bytes.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindBytes
	KindArray
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindArray:
		return "array"
	default:
		return "invalid"
	}
}

// Value is one decoded metadata value. Only the field matching Kind
// is meaningful; the rest stay at their zero value.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Uint  uint64
	Float float64
	Str   string
	Bytes []byte
	Array []Value
}

// Record is one key/value pair in container order.
type Record struct {
	Key   string
	Value Value
}

// BoolValue wraps a bool.
func BoolValue(v bool) Value { return Value{Kind: KindBool, Bool: v} }

// IntValue wraps a signed integer.
func IntValue(v int64) Value { return Value{Kind: KindInt, Int: v} }

// UintValue wraps an unsigned integer.
func UintValue(v uint64) Value { return Value{Kind: KindUint, Uint: v} }

// FloatValue wraps a float.
func FloatValue(v float64) Value { return Value{Kind: KindFloat, Float: v} }

// StringValue wraps a string.
func StringValue(v string) Value { return Value{Kind: KindString, Str: v} }

// BytesValue wraps a raw byte payload.
func BytesValue(v []byte) Value { return Value{Kind: KindBytes, Bytes: v} }

// ArrayValue wraps a list of values.
func ArrayValue(v ...Value) Value { return Value{Kind: KindArray, Array: v} }
