package vm

import (
	"fmt"
	"io"

	"github.com/funvibe/ela/internal/diagnostics"
	"github.com/funvibe/ela/internal/object"
)

// NativeDef declares one host function of a native module.
type NativeDef struct {
	Name     string
	Arity    int
	Variadic bool
	Kinds    []object.Kind
	Fn       object.NativeFunc
}

// NewNativeModule builds a module without code whose exports are host
// functions. It links like any other module, so compiled code reaches the
// functions through ordinary externs.
func NewNativeModule(name string, defs ...NativeDef) *Module {
	m := &Module{
		Name:    name,
		Exports: make(map[string]int, len(defs)),
		Globals: len(defs),
		preset:  make([]object.Value, len(defs)),
	}
	for i, d := range defs {
		m.Exports[d.Name] = i
		m.preset[i] = object.FromObject(&object.Function{
			Name:     name + "." + d.Name,
			Arity:    d.Arity,
			Variadic: d.Variadic,
			Native:   d.Fn,
			ArgKinds: d.Kinds,
		})
	}
	return m
}

// Export adds or replaces a host value exported by native module m.
// Workers created afterwards see it; running workers keep their copy.
func (m *Module) Export(name string, v object.Value) error {
	if !m.IsNative() {
		return fmt.Errorf("module %s is not native", m.Name)
	}
	if slot, ok := m.Exports[name]; ok {
		m.preset[slot] = v
		return nil
	}
	m.Exports[name] = m.Globals
	m.Globals++
	m.preset = append(m.preset, v)
	return nil
}

// CoreModuleName is the name compiled code imports the builtins under.
const CoreModuleName = "core"

// Builtins returns the core native module. print writes to out.
func Builtins(out io.Writer) *Module {
	return NewNativeModule(CoreModuleName,
		NativeDef{Name: "show", Arity: 1, Fn: func(ctx *object.Context, args []object.Value) (object.Value, error) {
			s, err := object.Show(ctx, args[0])
			if err != nil {
				return object.Value{}, err
			}
			return object.String(s), nil
		}},
		NativeDef{Name: "print", Arity: 1, Fn: func(ctx *object.Context, args []object.Value) (object.Value, error) {
			v, err := object.Force(ctx, args[0])
			if err != nil {
				return object.Value{}, err
			}
			s := v.AsString()
			if !v.IsString() {
				if s, err = object.Show(ctx, v); err != nil {
					return object.Value{}, err
				}
			}
			fmt.Fprintln(out, s)
			return object.Unit(), nil
		}},
		NativeDef{Name: "typeOf", Arity: 1, Fn: func(ctx *object.Context, args []object.Value) (object.Value, error) {
			v, err := object.Force(ctx, args[0])
			if err != nil {
				return object.Value{}, err
			}
			return object.TypeOf(v), nil
		}},
		NativeDef{Name: "read", Arity: 1, Kinds: []object.Kind{object.KindString}, Fn: func(ctx *object.Context, args []object.Value) (object.Value, error) {
			v, err := object.Read(args[0].AsString())
			if err != nil {
				if de, ok := err.(*diagnostics.Error); ok {
					return object.Value{}, ctx.FailWith(de)
				}
				return object.Value{}, ctx.Fail(diagnostics.ConversionFailed, "%v", err)
			}
			return v, nil
		}},
		NativeDef{Name: "force", Arity: 1, Fn: func(ctx *object.Context, args []object.Value) (object.Value, error) {
			return object.Force(ctx, args[0])
		}},
		NativeDef{Name: "length", Arity: 1, Fn: func(ctx *object.Context, args []object.Value) (object.Value, error) {
			return object.Len(ctx, args[0])
		}},
		NativeDef{Name: "error", Arity: 1, Kinds: []object.Kind{object.KindString}, Fn: func(ctx *object.Context, args []object.Value) (object.Value, error) {
			return object.Value{}, ctx.Fail(diagnostics.UserError, "%s", args[0].AsString())
		}},
		// apply hands the call back to the dispatch loop instead of running it
		// on the host stack.
		NativeDef{Name: "apply", Arity: 1, Variadic: true, Fn: func(ctx *object.Context, args []object.Value) (object.Value, error) {
			rest, ok := args[1].Object().(*object.List)
			if !ok {
				return object.Value{}, ctx.Fail(diagnostics.InternalFatal, "apply: bad argument list")
			}
			return object.Value{}, ctx.SetDeferred(args[0], rest.Slice()...)
		}},
		NativeDef{Name: "toList", Arity: 1, Fn: func(ctx *object.Context, args []object.Value) (object.Value, error) {
			return object.Convert(ctx, args[0], object.KindList)
		}},
	)
}
