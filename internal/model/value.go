package model

import "strconv"

// ValueType mirrors the supported attribute value types.
type ValueType uint8

const (
	UnknownType ValueType = iota
	StringType
	Int64Type
	Float64Type
	BoolType
)

// Value is a typed attribute value. Construction is allocation-free for all
// supported types: integers and booleans share the Integer slot, the same
// layout zap uses for its fields.
type Value struct {
	Type      ValueType
	Integer   int64
	StringVal string
	Float     float64
}

// StringValue creates a string value.
func StringValue(v string) Value {
	return Value{Type: StringType, StringVal: v}
}

// Int64Value creates an integer value.
func Int64Value(v int64) Value {
	return Value{Type: Int64Type, Integer: v}
}

// Float64Value creates a float value.
func Float64Value(v float64) Value {
	return Value{Type: Float64Type, Float: v}
}

// BoolValue creates a boolean value.
func BoolValue(v bool) Value {
	var i int64
	if v {
		i = 1
	}
	return Value{Type: BoolType, Integer: i}
}

// Bool reports the boolean slot.
func (v Value) Bool() bool {
	return v.Integer == 1
}

// Any unpacks the value for JSON serialization and logging.
func (v Value) Any() any {
	switch v.Type {
	case StringType:
		return v.StringVal
	case Int64Type:
		return v.Integer
	case Float64Type:
		return v.Float
	case BoolType:
		return v.Bool()
	default:
		return nil
	}
}

// String renders the value for diagnostics.
func (v Value) String() string {
	switch v.Type {
	case StringType:
		return v.StringVal
	case Int64Type:
		return strconv.FormatInt(v.Integer, 10)
	case Float64Type:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case BoolType:
		return strconv.FormatBool(v.Bool())
	default:
		return ""
	}
}

// Attr is a key plus a typed value.
type Attr struct {
	Key   string
	Value Value
}
