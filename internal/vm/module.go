package vm

import (
	"fmt"
	"math"

	"github.com/funvibe/ela/internal/match"
	"github.com/funvibe/ela/internal/object"
)

// Const is a serializable constant pool entry.
type Const struct {
	Kind  object.Kind `cbor:"1,keyasint"`
	Int   int64       `cbor:"2,keyasint,omitempty"`
	Float float64     `cbor:"3,keyasint,omitempty"`
	Str   string      `cbor:"4,keyasint,omitempty"`
}

// ConstOf converts a scalar value to a pool entry.
func ConstOf(v object.Value) (Const, error) {
	switch v.Kind() {
	case object.KindUnit:
		return Const{Kind: object.KindUnit}, nil
	case object.KindInt:
		return Const{Kind: object.KindInt, Int: int64(v.AsInt())}, nil
	case object.KindLong:
		return Const{Kind: object.KindLong, Int: v.AsLong()}, nil
	case object.KindSingle:
		return Const{Kind: object.KindSingle, Float: float64(v.AsSingle())}, nil
	case object.KindDouble:
		return Const{Kind: object.KindDouble, Float: v.AsDouble()}, nil
	case object.KindBool:
		var n int64
		if v.AsBool() {
			n = 1
		}
		return Const{Kind: object.KindBool, Int: n}, nil
	case object.KindChar:
		return Const{Kind: object.KindChar, Int: int64(v.AsChar())}, nil
	case object.KindString:
		return Const{Kind: object.KindString, Str: v.AsString()}, nil
	}
	return Const{}, fmt.Errorf("%s cannot be a constant", v.Kind())
}

// Value materializes the constant.
func (c Const) Value() (object.Value, error) {
	switch c.Kind {
	case object.KindUnit:
		return object.Unit(), nil
	case object.KindInt:
		if c.Int < math.MinInt32 || c.Int > math.MaxInt32 {
			return object.Value{}, fmt.Errorf("int constant %d out of range", c.Int)
		}
		return object.Int(int32(c.Int)), nil
	case object.KindLong:
		return object.Long(c.Int), nil
	case object.KindSingle:
		return object.Single(float32(c.Float)), nil
	case object.KindDouble:
		return object.Double(c.Float), nil
	case object.KindBool:
		return object.Bool(c.Int != 0), nil
	case object.KindChar:
		return object.Char(rune(c.Int)), nil
	case object.KindString:
		return object.String(c.Str), nil
	}
	return object.Value{}, fmt.Errorf("bad constant kind %d", c.Kind)
}

// FuncDef describes a compiled function of a module.
type FuncDef struct {
	Name     string `cbor:"1,keyasint"`
	Entry    int    `cbor:"2,keyasint"`
	Arity    int    `cbor:"3,keyasint"`
	Locals   int    `cbor:"4,keyasint"`
	Variadic bool   `cbor:"5,keyasint,omitempty"`
}

// MatchArm is a compiled arm with the address of its body. Guard is the
// index of a function taking the arm's bindings, or -1.
type MatchArm struct {
	match.Arm `cbor:"1,keyasint"`
	Body      int `cbor:"2,keyasint"`
	Guard     int `cbor:"3,keyasint"`
}

// MatchDef is a match table. Bindings of the selected arm are stored in the
// locals starting at Base.
type MatchDef struct {
	Arms []MatchArm `cbor:"1,keyasint"`
	Base int        `cbor:"2,keyasint"`
}

// Import names a module this module depends on.
type Import struct {
	Module string `cbor:"1,keyasint"`
}

// Extern is a reference to an export of an imported module.
type Extern struct {
	Import int    `cbor:"1,keyasint"`
	Name   string `cbor:"2,keyasint"`
}

// Module is a unit of compiled code: the CodeFrame produced by the
// compiler. It is never modified after the assembly is linked.
type Module struct {
	Name    string         `cbor:"1,keyasint"`
	Code    []Instr        `cbor:"2,keyasint"`
	Consts  []Const        `cbor:"3,keyasint,omitempty"`
	Strings []string       `cbor:"4,keyasint,omitempty"`
	Funcs   []FuncDef      `cbor:"5,keyasint,omitempty"`
	Matches []MatchDef     `cbor:"6,keyasint,omitempty"`
	Exports map[string]int `cbor:"7,keyasint,omitempty"`
	Imports []Import       `cbor:"8,keyasint,omitempty"`
	Externs []Extern       `cbor:"9,keyasint,omitempty"`
	Globals int            `cbor:"10,keyasint,omitempty"`
	Locals  int            `cbor:"11,keyasint,omitempty"` // locals of the top-level code
	Debug   *DebugInfo     `cbor:"12,keyasint,omitempty"`
	Entry   int            `cbor:"13,keyasint,omitempty"` // start of the top-level code

	// Filled by Link.
	consts  []object.Value
	imports []int
	externs []externRef
	arms    [][]match.Arm

	// Initial globals of native modules.
	preset []object.Value
}

type externRef struct {
	module int
	slot   int
}

// String returns string pool entry i.
func (m *Module) String(i int32) (string, bool) {
	if i < 0 || int(i) >= len(m.Strings) {
		return "", false
	}
	return m.Strings[i], true
}

// Constant returns the materialized constant i.
func (m *Module) Constant(i int32) (object.Value, bool) {
	if i < 0 || int(i) >= len(m.consts) {
		return object.Value{}, false
	}
	return m.consts[i], true
}

// IsNative reports whether the module was built from host functions.
func (m *Module) IsNative() bool {
	return m.preset != nil
}
