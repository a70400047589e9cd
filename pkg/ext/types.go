// Package ext exposes the types needed to write native modules and to
// build images from outside this module.
package ext

import (
	"github.com/funvibe/ela/internal/diagnostics"
	"github.com/funvibe/ela/internal/object"
	"github.com/funvibe/ela/internal/vm"
)

// Value types aliases
type Value = object.Value
type Kind = object.Kind
type Context = object.Context
type NativeFunc = object.NativeFunc
type Function = object.Function

// Code and image aliases
type Module = vm.Module
type NativeDef = vm.NativeDef
type Image = vm.Image
type Builder = vm.Builder
type Opcode = vm.Opcode
type MatchCase = vm.MatchCase
type Options = vm.Options

// Error aliases
type Error = diagnostics.Error
type Code = diagnostics.Code

// Kinds accepted in NativeDef.Kinds.
const (
	KindAny    = object.KindAny
	KindInt    = object.KindInt
	KindLong   = object.KindLong
	KindSingle = object.KindSingle
	KindDouble = object.KindDouble
	KindBool   = object.KindBool
	KindChar   = object.KindChar
	KindString = object.KindString
	KindList   = object.KindList
	KindTuple  = object.KindTuple
	KindRecord = object.KindRecord
)

// Error codes a native function may fail with.
const (
	InvalidType      = diagnostics.InvalidType
	ConversionFailed = diagnostics.ConversionFailed
	IndexOutOfRange  = diagnostics.IndexOutOfRange
	UserError        = diagnostics.UserError
)

// NewModule builds a native module from host functions.
func NewModule(name string, defs ...NativeDef) *Module {
	return vm.NewNativeModule(name, defs...)
}

// NewBuilder starts a compiled module.
func NewBuilder(name string) *Builder { return vm.NewBuilder(name) }

// Helpers for creating values
func Unit() Value                { return object.Unit() }
func Int(v int32) Value          { return object.Int(v) }
func Long(v int64) Value         { return object.Long(v) }
func Double(v float64) Value     { return object.Double(v) }
func Bool(v bool) Value          { return object.Bool(v) }
func String(s string) Value      { return object.String(s) }
func List(elems ...Value) Value  { return object.NewList(elems...) }
func Tuple(elems ...Value) Value { return object.NewTuple(elems...) }

// OpcodeByName looks up an instruction by its disassembly name, e.g. "CALL".
func OpcodeByName(name string) (Opcode, bool) {
	for op, n := range vm.OpcodeNames {
		if n == name {
			return op, true
		}
	}
	return 0, false
}

// Force evaluates v if it is a thunk.
func Force(ctx *Context, v Value) (Value, error) { return object.Force(ctx, v) }

// Show renders v the way print does.
func Show(ctx *Context, v Value) (string, error) { return object.Show(ctx, v) }

// ToHost converts a forced value to its plain Go counterpart.
func ToHost(v Value) (interface{}, error) { return object.ToHost(v) }
