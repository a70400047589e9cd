package object

import (
	"strconv"

	"github.com/funvibe/ela/internal/diagnostics"
)

// Tuple is a fixed-size slot array with an optional constructor tag.
type Tuple struct {
	Base
	Tag      string
	Elements []Value
}

// NewTuple creates an untagged tuple.
func NewTuple(elems ...Value) Value {
	return FromObject(&Tuple{Elements: elems})
}

// NewTaggedTuple creates a tuple built by a named constructor.
func NewTaggedTuple(tag string, elems ...Value) Value {
	return FromObject(&Tuple{Tag: tag, Elements: elems})
}

func (*Tuple) Kind() Kind { return KindTuple }

func asTuple(v Value) (*Tuple, bool) {
	t, ok := v.ref.(*Tuple)
	return t, ok
}

func (*Tuple) Equal(ctx *Context, a, b Value) (bool, error) {
	x, _ := asTuple(a)
	y, ok := asTuple(b)
	if !ok || x.Tag != y.Tag || len(x.Elements) != len(y.Elements) {
		return false, nil
	}
	for i := range x.Elements {
		eq, err := Equals(ctx, x.Elements[i], y.Elements[i])
		if err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}

func (*Tuple) Compare(ctx *Context, a, b Value) (Ordering, error) {
	x, _ := asTuple(a)
	y, ok := asTuple(b)
	if !ok || x.Tag != y.Tag {
		return Unordered, nil
	}
	for i := 0; i < len(x.Elements) && i < len(y.Elements); i++ {
		o, err := Compare(ctx, x.Elements[i], y.Elements[i])
		if err != nil || o != Equal {
			return o, err
		}
	}
	return orderInts(int64(len(x.Elements)), int64(len(y.Elements))), nil
}

func (*Tuple) Show(ctx *Context, p *Printer, v Value) error {
	t, _ := asTuple(v)
	if t.Tag != "" {
		p.WriteString(t.Tag)
		p.WriteString(" ")
	}
	if len(t.Elements) == 1 {
		p.WriteString("(")
		if err := p.Value(ctx, t.Elements[0]); err != nil {
			return err
		}
		p.WriteString(",)")
		return nil
	}
	return p.Sequence(ctx, "(", ")", func(yield func(Value) bool) {
		for _, e := range t.Elements {
			if !yield(e) {
				return
			}
		}
	})
}

func (*Tuple) Convert(ctx *Context, v Value, to Kind) (Value, error) {
	t, _ := asTuple(v)
	if to == KindList {
		return NewList(t.Elements...), nil
	}
	return Base{}.Convert(ctx, v, to)
}

func (*Tuple) Index(ctx *Context, v, index Value) (Value, error) {
	t, _ := asTuple(v)
	i, err := indexOf(ctx, index)
	if err != nil {
		return Value{}, err
	}
	if i < 0 || i >= len(t.Elements) {
		return Value{}, ctx.Fail(diagnostics.IndexOutOfRange, "index %d out of range for tuple of length %d", i, len(t.Elements))
	}
	return t.Elements[i], nil
}

func (*Tuple) Len(ctx *Context, v Value) (Value, error) {
	t, _ := asTuple(v)
	return Int(int32(len(t.Elements))), nil
}

// Record keeps field names and values in parallel, in declaration order.
type Record struct {
	Base
	names  []string
	values []Value
}

// NewRecord creates a record. names and values must have the same length.
func NewRecord(names []string, values []Value) Value {
	return FromObject(&Record{names: names, values: values})
}

func (*Record) Kind() Kind { return KindRecord }

func (r *Record) Names() []string { return r.names }
func (r *Record) Values() []Value { return r.values }

// Lookup returns the field index of name, or -1.
func (r *Record) Lookup(name string) int {
	for i, n := range r.names {
		if n == name {
			return i
		}
	}
	return -1
}

// Get returns the value of a field.
func (r *Record) Get(name string) (Value, bool) {
	if i := r.Lookup(name); i >= 0 {
		return r.values[i], true
	}
	return Value{}, false
}

// With returns a copy with name set to v, appending the field if missing.
func (r *Record) With(name string, v Value) *Record {
	out := &Record{
		names:  append([]string(nil), r.names...),
		values: append([]Value(nil), r.values...),
	}
	if i := out.Lookup(name); i >= 0 {
		out.values[i] = v
	} else {
		out.names = append(out.names, name)
		out.values = append(out.values, v)
	}
	return out
}

func asRecord(v Value) (*Record, bool) {
	r, ok := v.ref.(*Record)
	return r, ok
}

func (*Record) Equal(ctx *Context, a, b Value) (bool, error) {
	x, _ := asRecord(a)
	y, ok := asRecord(b)
	if !ok || len(x.names) != len(y.names) {
		return false, nil
	}
	for i, name := range x.names {
		if y.names[i] != name {
			return false, nil
		}
		eq, err := Equals(ctx, x.values[i], y.values[i])
		if err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}

func (*Record) Compare(ctx *Context, a, b Value) (Ordering, error) {
	x, _ := asRecord(a)
	y, ok := asRecord(b)
	if !ok || len(x.names) != len(y.names) {
		return Unordered, nil
	}
	for i, name := range x.names {
		if y.names[i] != name {
			return Unordered, nil
		}
		o, err := Compare(ctx, x.values[i], y.values[i])
		if err != nil || o != Equal {
			return o, err
		}
	}
	return Equal, nil
}

func (*Record) Show(ctx *Context, p *Printer, v Value) error {
	r, _ := asRecord(v)
	p.WriteString("{")
	for i, name := range r.names {
		if i > 0 {
			p.WriteString(",")
		}
		if p.opts.MaxElements > 0 && i >= p.opts.MaxElements {
			p.WriteString(Ellipsis)
			break
		}
		if isIdent(name) {
			p.WriteString(name)
		} else {
			p.WriteString(strconv.Quote(name))
		}
		p.WriteString("=")
		if err := p.Value(ctx, r.values[i]); err != nil {
			return err
		}
	}
	p.WriteString("}")
	return nil
}

func (*Record) Field(ctx *Context, v Value, name string) (Value, error) {
	r, _ := asRecord(v)
	if val, ok := r.Get(name); ok {
		return val, nil
	}
	return Value{}, ctx.Fail(diagnostics.UnknownField, "record has no field %s", name)
}

func (rec *Record) Index(ctx *Context, v, index Value) (Value, error) {
	if index.kind == KindString {
		return rec.Field(ctx, v, index.AsString())
	}
	r, _ := asRecord(v)
	i, err := indexOf(ctx, index)
	if err != nil {
		return Value{}, err
	}
	if i < 0 || i >= len(r.values) {
		return Value{}, ctx.Fail(diagnostics.IndexOutOfRange, "index %d out of range for record of length %d", i, len(r.values))
	}
	return r.values[i], nil
}

func (*Record) Len(ctx *Context, v Value) (Value, error) {
	r, _ := asRecord(v)
	return Int(int32(len(r.values))), nil
}

// Variant is an algebraic constructor: a tag wrapping one value.
type Variant struct {
	Base
	Tag     string
	Payload Value
}

// NewVariant creates a variant. A unit payload means a bare tag.
func NewVariant(tag string, payload Value) Value {
	return FromObject(&Variant{Tag: tag, Payload: payload})
}

func (*Variant) Kind() Kind { return KindVariant }

func (*Variant) Equal(ctx *Context, a, b Value) (bool, error) {
	x := a.ref.(*Variant)
	y, ok := b.ref.(*Variant)
	if !ok || x.Tag != y.Tag {
		return false, nil
	}
	return Equals(ctx, x.Payload, y.Payload)
}

func (*Variant) Compare(ctx *Context, a, b Value) (Ordering, error) {
	x := a.ref.(*Variant)
	y, ok := b.ref.(*Variant)
	if !ok {
		return Unordered, nil
	}
	if x.Tag != y.Tag {
		if x.Tag < y.Tag {
			return Less, nil
		}
		return Greater, nil
	}
	return Compare(ctx, x.Payload, y.Payload)
}

func (*Variant) Show(ctx *Context, p *Printer, v Value) error {
	x := v.ref.(*Variant)
	p.WriteString(x.Tag)
	if x.Payload.kind == KindUnit {
		return nil
	}
	p.WriteString(" ")
	if inner, ok := x.Payload.ref.(*Variant); ok && inner.Payload.kind != KindUnit {
		p.WriteString("(")
		if err := p.Value(ctx, x.Payload); err != nil {
			return err
		}
		p.WriteString(")")
		return nil
	}
	return p.Value(ctx, x.Payload)
}

func (*Variant) Field(ctx *Context, v Value, name string) (Value, error) {
	x := v.ref.(*Variant)
	return Field(ctx, x.Payload, name)
}
