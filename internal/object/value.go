// Package object implements the Ela runtime value model: the tagged value
// representation, the per-kind trait carriers and the polymorphic dispatch
// over them.
package object

import (
	"math"
)

// Value is a tagged union of a 32-bit inline slot and a heap carrier.
//
// Inline kinds (unit, int, single, bool, char) keep their payload in bits and
// leave ref nil; their behaviour comes from the static carrier table.
// Out-of-line kinds always set ref, and ref is the dispatch target.
// The zero Value is unit.
type Value struct {
	kind Kind
	bits uint32
	ref  Behavior
}

// inline is the static dispatch table for inline kinds. The carriers are
// stateless.
var inline = [kindCount]Behavior{
	KindUnit:   unitCarrier{},
	KindInt:    intCarrier{},
	KindSingle: singleCarrier{},
	KindBool:   boolCarrier{},
	KindChar:   charCarrier{},
}

// Constructors

func Unit() Value {
	return Value{kind: KindUnit}
}

func Int(v int32) Value {
	return Value{kind: KindInt, bits: uint32(v)}
}

func Long(v int64) Value {
	return Value{kind: KindLong, ref: &LongObject{Value: v}}
}

func Single(v float32) Value {
	return Value{kind: KindSingle, bits: math.Float32bits(v)}
}

func Double(v float64) Value {
	return Value{kind: KindDouble, ref: &DoubleObject{Value: v}}
}

func Bool(v bool) Value {
	var bits uint32
	if v {
		bits = 1
	}
	return Value{kind: KindBool, bits: bits}
}

func Char(v rune) Value {
	return Value{kind: KindChar, bits: uint32(v)}
}

func String(s string) Value {
	return Value{kind: KindString, ref: &StringObject{Value: s}}
}

// FromObject wraps a heap carrier.
func FromObject(obj Behavior) Value {
	if obj == nil {
		return Unit()
	}
	return Value{kind: obj.Kind(), ref: obj}
}

// Accessors. They do not check the kind; callers dispatch on Kind first.

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsInt() int32 { return int32(v.bits) }

func (v Value) AsLong() int64 {
	if o, ok := v.ref.(*LongObject); ok {
		return o.Value
	}
	return int64(int32(v.bits))
}

func (v Value) AsSingle() float32 { return math.Float32frombits(v.bits) }

func (v Value) AsDouble() float64 {
	if o, ok := v.ref.(*DoubleObject); ok {
		return o.Value
	}
	return 0
}

func (v Value) AsBool() bool { return v.bits == 1 }

func (v Value) AsChar() rune { return rune(v.bits) }

func (v Value) AsString() string {
	if o, ok := v.ref.(*StringObject); ok {
		return o.Value
	}
	return ""
}

// Object returns the heap carrier, or nil for inline kinds.
func (v Value) Object() Behavior { return v.ref }

// behavior returns the carrier that implements v's trait operations.
// It never returns nil.
func (v Value) behavior() Behavior {
	if v.ref != nil {
		return v.ref
	}
	return inline[v.kind]
}

// Type checking helpers

func (v Value) IsUnit() bool   { return v.kind == KindUnit }
func (v Value) IsLazy() bool   { return v.kind == KindLazy }
func (v Value) IsString() bool { return v.kind == KindString }

// Truthy reports whether v is the boolean true.
func (v Value) Truthy() bool {
	return v.kind == KindBool && v.bits == 1
}

// String renders v with default options. Thunks are not forced.
func (v Value) String() string {
	s, err := Show(&Context{}, v)
	if err != nil {
		return "<" + v.kind.String() + ">"
	}
	return s
}
