package gotcc

import (
	"strconv"
)

// ValueKind tells which native representation a decoded Value carries.
type ValueKind uint8

const (
	KindNone ValueKind = iota
	KindFloat
	KindInt
	KindBool
)

// Value is a decoded parameter reading. The zero Value has KindNone and is
// what a query returns for a parameter that has never been received.
type Value struct {
	kind ValueKind
	num  float64
}

func floatValue(f float64) Value {
	return Value{kind: KindFloat, num: f}
}

func intValue(i int64) Value {
	return Value{kind: KindInt, num: float64(i)}
}

func boolValue(b bool) Value {
	if b {
		return Value{kind: KindBool, num: 1}
	}
	return Value{kind: KindBool}
}

func (v Value) Kind() ValueKind {
	return v.kind
}

// Float64 returns the reading as a float regardless of kind.
func (v Value) Float64() float64 {
	return v.num
}

func (v Value) Int() int64 {
	return int64(v.num)
}

func (v Value) Bool() bool {
	return v.num != 0
}

func (v Value) String() string {
	switch v.kind {
	case KindNone:
		return "none"
	case KindBool:
		return strconv.FormatBool(v.num != 0)
	case KindInt:
		return strconv.FormatInt(int64(v.num), 10)
	default:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	}
}
