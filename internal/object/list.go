package object

import (
	"iter"
	"strings"

	"github.com/funvibe/ela/internal/diagnostics"
)

// List is a persistent cons cell. Prepending is O(1) and tails are shared.
type List struct {
	Base
	head   Value
	tail   *List
	length int
}

// emptyList is read-only; every empty list value points at it.
var emptyList = &List{}

// EmptyList returns the empty list value.
func EmptyList() Value {
	return FromObject(emptyList)
}

// NewList builds a list of elems in order.
func NewList(elems ...Value) Value {
	return FromObject(ListOf(elems))
}

// ListOf builds a list carrier from a slice.
func ListOf(elems []Value) *List {
	l := emptyList
	for i := len(elems) - 1; i >= 0; i-- {
		l = l.Prepend(elems[i])
	}
	return l
}

func (*List) Kind() Kind { return KindList }

// Prepend returns a new cell with v in front of l.
func (l *List) Prepend(v Value) *List {
	return &List{head: v, tail: l, length: l.length + 1}
}

func (l *List) IsEmpty() bool { return l.length == 0 }
func (l *List) Length() int   { return l.length }
func (l *List) Head() Value   { return l.head }

// Tail returns the rest of a non-empty list, or the empty list.
func (l *List) Tail() *List {
	if l.tail == nil {
		return emptyList
	}
	return l.tail
}

// All iterates the elements in order.
func (l *List) All() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		for c := l; c.length > 0; c = c.tail {
			if !yield(c.head) {
				return
			}
		}
	}
}

// Slice copies the elements into a slice.
func (l *List) Slice() []Value {
	out := make([]Value, 0, l.length)
	for v := range l.All() {
		out = append(out, v)
	}
	return out
}

func (l *List) reverse() *List {
	r := emptyList
	for v := range l.All() {
		r = r.Prepend(v)
	}
	return r
}

func asList(v Value) (*List, bool) {
	l, ok := v.ref.(*List)
	return l, ok
}

func (*List) Equal(ctx *Context, a, b Value) (bool, error) {
	x, _ := asList(a)
	y, ok := asList(b)
	if !ok || x.length != y.length {
		return false, nil
	}
	for ; x.length > 0; x, y = x.tail, y.tail {
		eq, err := Equals(ctx, x.head, y.head)
		if err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}

func (*List) Compare(ctx *Context, a, b Value) (Ordering, error) {
	x, _ := asList(a)
	y, ok := asList(b)
	if !ok {
		return Unordered, nil
	}
	for ; x.length > 0 && y.length > 0; x, y = x.tail, y.tail {
		o, err := Compare(ctx, x.head, y.head)
		if err != nil || o != Equal {
			return o, err
		}
	}
	return orderInts(int64(x.length), int64(y.length)), nil
}

func (*List) Concat(ctx *Context, a, b Value) (Value, error) {
	x, _ := asList(a)
	y, ok := asList(b)
	if !ok {
		return Value{}, noOverload2(ctx, "concat", a, b)
	}
	if y.length == 0 {
		return a, nil
	}
	out := y
	elems := x.Slice()
	for i := len(elems) - 1; i >= 0; i-- {
		out = out.Prepend(elems[i])
	}
	return FromObject(out), nil
}

func (*List) Show(ctx *Context, p *Printer, v Value) error {
	l, _ := asList(v)
	return p.Sequence(ctx, "[", "]", l.All())
}

func (*List) Convert(ctx *Context, v Value, to Kind) (Value, error) {
	l, _ := asList(v)
	switch to {
	case KindList, KindAny:
		return v, nil
	case KindTuple:
		return NewTuple(l.Slice()...), nil
	case KindString:
		var sb strings.Builder
		for e := range l.All() {
			if e.kind != KindChar {
				return Base{}.Convert(ctx, v, to)
			}
			sb.WriteRune(e.AsChar())
		}
		return String(sb.String()), nil
	}
	return Value{}, ctx.Fail(diagnostics.ConversionFailed, "cannot convert %s to %s", v.kind, to)
}

func (*List) Index(ctx *Context, v, index Value) (Value, error) {
	l, _ := asList(v)
	i, err := indexOf(ctx, index)
	if err != nil {
		return Value{}, err
	}
	if i < 0 || i >= l.length {
		return Value{}, ctx.Fail(diagnostics.IndexOutOfRange, "index %d out of range for list of length %d", i, l.length)
	}
	c := l
	for ; i > 0; i-- {
		c = c.tail
	}
	return c.head, nil
}

func (*List) Len(ctx *Context, v Value) (Value, error) {
	l, _ := asList(v)
	return Int(int32(l.length)), nil
}

// Generate accumulates in reverse; GenerateFinish restores the order.
func (*List) Generate(ctx *Context, seq, elem Value) (Value, error) {
	l, _ := asList(seq)
	return FromObject(l.Prepend(elem)), nil
}

func (*List) GenerateFinish(ctx *Context, seq Value) (Value, error) {
	l, _ := asList(seq)
	return FromObject(l.reverse()), nil
}
