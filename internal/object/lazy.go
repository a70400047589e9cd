package object

import (
	"github.com/funvibe/ela/internal/diagnostics"
)

// LazyState is the state of a thunk cell.
type LazyState uint8

const (
	Unevaluated LazyState = iota
	InProgress
	Done
)

func (s LazyState) String() string {
	switch s {
	case Unevaluated:
		return "unevaluated"
	case InProgress:
		return "in progress"
	default:
		return "done"
	}
}

// Lazy is a memoized thunk: a callable with a snapshot of its arguments.
// It is owned by the worker that created it and is not safe for concurrent
// forcing.
type Lazy struct {
	Base
	fn    Value
	args  []Value
	state LazyState
	value Value
}

// NewLazy creates an unevaluated thunk.
func NewLazy(fn Value, args ...Value) *Lazy {
	return &Lazy{fn: fn, args: args}
}

// NewForced creates a thunk that is already evaluated.
func NewForced(v Value) *Lazy {
	return &Lazy{state: Done, value: v}
}

func (*Lazy) Kind() Kind { return KindLazy }

func (l *Lazy) State() LazyState { return l.state }

// Value returns the memoized value once the thunk is done.
func (l *Lazy) Value() (Value, bool) {
	return l.value, l.state == Done
}

// Eval runs the thunk at most once. A failed evaluation leaves the thunk
// unevaluated so a later force retries it. Thunks evaluating to thunks are
// forced through and the final value is memoized.
func (l *Lazy) Eval(ctx *Context) (Value, error) {
	switch l.state {
	case Done:
		return l.value, nil
	case InProgress:
		return Value{}, ctx.Fail(diagnostics.CircularForce, "thunk forced while it is being evaluated")
	}
	l.state = InProgress
	v, err := ctx.Invoke(l.fn, l.args...)
	for err == nil && v.kind == KindLazy {
		v, err = v.ref.(*Lazy).Eval(ctx)
	}
	if err != nil {
		l.state = Unevaluated
		return Value{}, err
	}
	l.value = v
	l.state = Done
	l.fn = Value{}
	l.args = nil
	return v, nil
}

func (*Lazy) Force(ctx *Context, v Value) (Value, error) {
	return v.ref.(*Lazy).Eval(ctx)
}

func (*Lazy) Show(ctx *Context, p *Printer, v Value) error {
	if val, ok := v.ref.(*Lazy).Value(); ok {
		return p.Value(ctx, val)
	}
	p.WriteString("<thunk>")
	return nil
}
