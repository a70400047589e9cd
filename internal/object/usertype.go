package object

import (
	"github.com/funvibe/ela/internal/diagnostics"
)

// UserTypeDesc describes a host-registered type and its operator overloads.
// Register overloads before any value of the type is used; the descriptor is
// read-only afterwards.
type UserTypeDesc struct {
	Name      string
	overloads [opCount]Value
	has       [opCount]bool
}

// NewUserType creates a type descriptor with no overloads.
func NewUserType(name string) *UserTypeDesc {
	return &UserTypeDesc{Name: name}
}

// Overload registers fn as the implementation of op.
func (d *UserTypeDesc) Overload(op Op, fn Value) *UserTypeDesc {
	d.overloads[op] = fn
	d.has[op] = true
	return d
}

// Lookup returns the overload registered for op.
func (d *UserTypeDesc) Lookup(op Op) (Value, bool) {
	if op >= opCount {
		return Value{}, false
	}
	return d.overloads[op], d.has[op]
}

// New creates a value of the type wrapping payload.
func (d *UserTypeDesc) New(payload Value) Value {
	return FromObject(&UserType{Desc: d, Payload: payload})
}

// UserType is a value of a host-registered type. Operators with a
// registered overload are turned into deferred calls of the overload.
type UserType struct {
	Base
	Desc    *UserTypeDesc
	Payload Value
}

func (*UserType) Kind() Kind { return KindUser }

func userDesc(v Value) *UserTypeDesc {
	if u, ok := v.ref.(*UserType); ok {
		return u.Desc
	}
	return nil
}

// overloadOf finds the overload of op on whichever operand is a user type,
// first operand first.
func overloadOf(op Op, a, b Value) (Value, bool) {
	if d := userDesc(a); d != nil {
		if fn, ok := d.Lookup(op); ok {
			return fn, true
		}
	}
	if d := userDesc(b); d != nil {
		return d.Lookup(op)
	}
	return Value{}, false
}

func (*UserType) Arith(ctx *Context, op Op, a, b Value) (Value, error) {
	if fn, ok := overloadOf(op, a, b); ok {
		if op == OpNeg {
			return Value{}, ctx.SetDeferred(fn, a)
		}
		return Value{}, ctx.SetDeferred(fn, a, b)
	}
	return Value{}, noOverload2(ctx, op.String(), a, b)
}

func (*UserType) Bitwise(ctx *Context, op Op, a, b Value) (Value, error) {
	if fn, ok := overloadOf(op, a, b); ok {
		if op == OpBitNot {
			return Value{}, ctx.SetDeferred(fn, a)
		}
		return Value{}, ctx.SetDeferred(fn, a, b)
	}
	return Value{}, noOverload2(ctx, op.String(), a, b)
}

func (*UserType) Concat(ctx *Context, a, b Value) (Value, error) {
	if fn, ok := overloadOf(OpConcat, a, b); ok {
		return Value{}, ctx.SetDeferred(fn, a, b)
	}
	return Value{}, noOverload2(ctx, OpConcat.String(), a, b)
}

// Equal without an overload compares type identity and payload.
func (*UserType) Equal(ctx *Context, a, b Value) (bool, error) {
	if fn, ok := overloadOf(OpEq, a, b); ok {
		return false, ctx.SetDeferred(fn, a, b)
	}
	x, _ := a.ref.(*UserType)
	y, ok := b.ref.(*UserType)
	if x == nil || !ok || x.Desc != y.Desc {
		return false, nil
	}
	return Equals(ctx, x.Payload, y.Payload)
}

// Compare has no structural default: ordering user values requires an
// overload, which the comparison dispatch resolves before reaching here.
func (*UserType) Compare(ctx *Context, a, b Value) (Ordering, error) {
	return Unordered, noOverload2(ctx, "compare", a, b)
}

func (*UserType) Show(ctx *Context, p *Printer, v Value) error {
	u := v.ref.(*UserType)
	if fn, ok := u.Desc.Lookup(OpShow); ok {
		s, err := ctx.Invoke(fn, v)
		if err != nil {
			return err
		}
		if s.kind != KindString {
			return ctx.Fail(diagnostics.InvalidType, "show overload of %s returned %s", u.Desc.Name, s.kind)
		}
		p.WriteString(s.AsString())
		return nil
	}
	p.WriteString("<")
	p.WriteString(u.Desc.Name)
	if !u.Payload.IsUnit() {
		p.WriteString(" ")
		if err := p.Value(ctx, u.Payload); err != nil {
			return err
		}
	}
	p.WriteString(">")
	return nil
}

func (*UserType) Field(ctx *Context, v Value, name string) (Value, error) {
	u := v.ref.(*UserType)
	if fn, ok := u.Desc.Lookup(OpField); ok {
		return Value{}, ctx.SetDeferred(fn, v, String(name))
	}
	return Field(ctx, u.Payload, name)
}

func (*UserType) Len(ctx *Context, v Value) (Value, error) {
	u := v.ref.(*UserType)
	if fn, ok := u.Desc.Lookup(OpLen); ok {
		return Value{}, ctx.SetDeferred(fn, v)
	}
	return Value{}, noOverload(ctx, OpLen.String(), v)
}

// TypeInfo is the runtime reflection of a kind descriptor.
type TypeInfo struct {
	Base
	Desc *TypeDesc
	User *UserTypeDesc
}

func (*TypeInfo) Kind() Kind { return KindTypeInfo }

// TypeOf returns the type descriptor value of v. Thunks are not forced.
func TypeOf(v Value) Value {
	return FromObject(&TypeInfo{Desc: Descriptor(v.kind), User: userDesc(v)})
}

// Name is the user type name for user values, the kind name otherwise.
func (t *TypeInfo) Name() string {
	if t.User != nil {
		return t.User.Name
	}
	return t.Desc.Name
}

func (*TypeInfo) Equal(ctx *Context, a, b Value) (bool, error) {
	x := a.ref.(*TypeInfo)
	y, ok := b.ref.(*TypeInfo)
	return ok && x.Desc == y.Desc && x.User == y.User, nil
}

func (*TypeInfo) Field(ctx *Context, v Value, name string) (Value, error) {
	t := v.ref.(*TypeInfo)
	switch name {
	case "name":
		return String(t.Name()), nil
	case "kind":
		return Int(int32(t.Desc.Kind)), nil
	case "numeric":
		return Bool(t.Desc.Numeric), nil
	}
	return Value{}, ctx.Fail(diagnostics.UnknownField, "type descriptor has no field %s", name)
}

func (*TypeInfo) Show(ctx *Context, p *Printer, v Value) error {
	p.WriteString("<type ")
	p.WriteString(v.ref.(*TypeInfo).Name())
	p.WriteString(">")
	return nil
}
