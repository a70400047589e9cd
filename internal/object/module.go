package object

import (
	"github.com/funvibe/ela/internal/diagnostics"
)

// Namespace resolves exported bindings of a loaded module.
type Namespace interface {
	Lookup(name string) (Value, bool)
	Names() []string
}

// Module is a first-class reference to a linked module.
type Module struct {
	Base
	Name   string
	Handle int
	ns     Namespace
}

// NewModule wraps a namespace.
func NewModule(name string, handle int, ns Namespace) Value {
	return FromObject(&Module{Name: name, Handle: handle, ns: ns})
}

func (*Module) Kind() Kind { return KindModule }

func (*Module) Equal(ctx *Context, a, b Value) (bool, error) {
	m, ok := b.ref.(*Module)
	return ok && m.Handle == a.ref.(*Module).Handle, nil
}

func (*Module) Field(ctx *Context, v Value, name string) (Value, error) {
	m := v.ref.(*Module)
	if m.ns != nil {
		if val, ok := m.ns.Lookup(name); ok {
			return val, nil
		}
	}
	return Value{}, ctx.Fail(diagnostics.UndefinedVariable, "module %s does not export %s", m.Name, name)
}

func (*Module) Len(ctx *Context, v Value) (Value, error) {
	m := v.ref.(*Module)
	if m.ns == nil {
		return Int(0), nil
	}
	return Int(int32(len(m.ns.Names()))), nil
}

func (*Module) Show(ctx *Context, p *Printer, v Value) error {
	p.WriteString("<module ")
	p.WriteString(v.ref.(*Module).Name)
	p.WriteString(">")
	return nil
}
