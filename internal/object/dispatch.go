package object

import (
	"errors"

	"github.com/funvibe/ela/internal/diagnostics"
)

// Package-level dispatch. Every function forces lazy operands, applies the
// cross-kind rules and then calls the first operand's carrier. A user-type
// second operand gets the call when the first operand is built in, so
// `1 + money` reaches the overload of money.

// Force evaluates v if it is a thunk.
func Force(ctx *Context, v Value) (Value, error) {
	if v.kind != KindLazy {
		return v, nil
	}
	return v.ref.Force(ctx, v)
}

func force2(ctx *Context, a, b Value) (Value, Value, error) {
	a, err := Force(ctx, a)
	if err != nil {
		return a, b, err
	}
	b, err = Force(ctx, b)
	return a, b, err
}

// target picks the carrier of a binary operation.
func target(a, b Value) Behavior {
	if b.kind == KindUser && a.kind != KindUser {
		return b.ref
	}
	return a.behavior()
}

// Arith dispatches a binary arithmetic operation.
func Arith(ctx *Context, op Op, a, b Value) (Value, error) {
	a, b, err := force2(ctx, a, b)
	if err != nil {
		return Value{}, err
	}
	return target(a, b).Arith(ctx, op, a, b)
}

func Add(ctx *Context, a, b Value) (Value, error) { return Arith(ctx, OpAdd, a, b) }
func Sub(ctx *Context, a, b Value) (Value, error) { return Arith(ctx, OpSub, a, b) }
func Mul(ctx *Context, a, b Value) (Value, error) { return Arith(ctx, OpMul, a, b) }
func Div(ctx *Context, a, b Value) (Value, error) { return Arith(ctx, OpDiv, a, b) }
func Rem(ctx *Context, a, b Value) (Value, error) { return Arith(ctx, OpRem, a, b) }
func Pow(ctx *Context, a, b Value) (Value, error) { return Arith(ctx, OpPow, a, b) }

func Negate(ctx *Context, a Value) (Value, error) {
	a, err := Force(ctx, a)
	if err != nil {
		return Value{}, err
	}
	return a.behavior().Arith(ctx, OpNeg, a, Value{})
}

// Bitwise dispatches a binary bitwise operation.
func Bitwise(ctx *Context, op Op, a, b Value) (Value, error) {
	a, b, err := force2(ctx, a, b)
	if err != nil {
		return Value{}, err
	}
	return target(a, b).Bitwise(ctx, op, a, b)
}

func BitAnd(ctx *Context, a, b Value) (Value, error)     { return Bitwise(ctx, OpAnd, a, b) }
func BitOr(ctx *Context, a, b Value) (Value, error)      { return Bitwise(ctx, OpOr, a, b) }
func BitXor(ctx *Context, a, b Value) (Value, error)     { return Bitwise(ctx, OpXor, a, b) }
func ShiftLeft(ctx *Context, a, b Value) (Value, error)  { return Bitwise(ctx, OpShl, a, b) }
func ShiftRight(ctx *Context, a, b Value) (Value, error) { return Bitwise(ctx, OpShr, a, b) }

func BitNot(ctx *Context, a Value) (Value, error) {
	a, err := Force(ctx, a)
	if err != nil {
		return Value{}, err
	}
	return a.behavior().Bitwise(ctx, OpBitNot, a, Value{})
}

func Concat(ctx *Context, a, b Value) (Value, error) {
	a, b, err := force2(ctx, a, b)
	if err != nil {
		return Value{}, err
	}
	return target(a, b).Concat(ctx, a, b)
}

// relatable reports whether a and b may be handed to a carrier's Equal or
// Compare. Other pairs are never equal and unordered.
func relatable(a, b Value) bool {
	if a.kind == b.kind {
		return true
	}
	if a.kind.IsNumeric() && b.kind.IsNumeric() {
		return true
	}
	return a.kind == KindUser || b.kind == KindUser
}

// Equals compares two values for equality. Nested user-type overloads are
// run to completion, so the result is always final.
func Equals(ctx *Context, a, b Value) (bool, error) {
	a, b, err := force2(ctx, a, b)
	if err != nil {
		return false, err
	}
	if !relatable(a, b) {
		return false, nil
	}
	eq, err := target(a, b).Equal(ctx, a, b)
	if err != nil {
		v, err := resolve(ctx, err)
		return v.Truthy(), err
	}
	return eq, nil
}

// Compare orders two values. Built-in kinds that cannot be compared are
// Unordered; user types order through their lesser overload.
func Compare(ctx *Context, a, b Value) (Ordering, error) {
	a, b, err := force2(ctx, a, b)
	if err != nil {
		return Unordered, err
	}
	if !relatable(a, b) {
		return Unordered, nil
	}
	if fn, ok := overloadOf(OpLt, a, b); ok {
		return orderBy(ctx, fn, a, b)
	}
	return target(a, b).Compare(ctx, a, b)
}

func orderBy(ctx *Context, lt Value, a, b Value) (Ordering, error) {
	r, err := ctx.Invoke(lt, a, b)
	if err != nil {
		return Unordered, err
	}
	if r.Truthy() {
		return Less, nil
	}
	if r, err = ctx.Invoke(lt, b, a); err != nil {
		return Unordered, err
	}
	if r.Truthy() {
		return Greater, nil
	}
	return Equal, nil
}

// resolve runs a deferred call synchronously. Used where the result feeds a
// larger computation instead of being the result of the instruction.
func resolve(ctx *Context, err error) (Value, error) {
	for {
		var req *CallRequest
		if !errors.As(err, &req) {
			return Value{}, err
		}
		ctx.TakeDeferred()
		var v Value
		if v, err = ctx.Invoke(req.Fn, req.Args...); err != nil || req.Then == nil {
			return v, err
		}
		if v, err = req.Then(ctx, v); err == nil {
			return v, nil
		}
	}
}

// ResolveThen applies a continuation to v. A call it defers is run
// synchronously.
func ResolveThen(ctx *Context, then Continuation, v Value) (Value, error) {
	r, err := then(ctx, v)
	if err != nil {
		return resolve(ctx, err)
	}
	return r, nil
}

// Eq and the ordering operators below produce Bool values for the
// interpreter. A user-type overload for the exact operator is requested as a
// deferred call.
func Eq(ctx *Context, a, b Value) (Value, error) {
	a, b, err := force2(ctx, a, b)
	if err != nil {
		return Value{}, err
	}
	if fn, ok := overloadOf(OpEq, a, b); ok {
		return Value{}, ctx.SetDeferred(fn, a, b)
	}
	eq, err := Equals(ctx, a, b)
	return Bool(eq), err
}

func Neq(ctx *Context, a, b Value) (Value, error) {
	a, b, err := force2(ctx, a, b)
	if err != nil {
		return Value{}, err
	}
	if fn, ok := overloadOf(OpEq, a, b); ok {
		return Value{}, ctx.SetDeferredThen(Not, fn, a, b)
	}
	eq, err := Equals(ctx, a, b)
	return Bool(!eq), err
}

func Lt(ctx *Context, a, b Value) (Value, error) { return compareOp(ctx, OpLt, a, b) }
func Gt(ctx *Context, a, b Value) (Value, error) { return compareOp(ctx, OpGt, a, b) }
func Le(ctx *Context, a, b Value) (Value, error) { return compareOp(ctx, OpLe, a, b) }
func Ge(ctx *Context, a, b Value) (Value, error) { return compareOp(ctx, OpGe, a, b) }

func compareOp(ctx *Context, op Op, a, b Value) (Value, error) {
	a, b, err := force2(ctx, a, b)
	if err != nil {
		return Value{}, err
	}
	if fn, ok := overloadOf(op, a, b); ok {
		return Value{}, ctx.SetDeferred(fn, a, b)
	}
	// The other orderings derive from lesser: a > b is b < a and a <= b is
	// not (b < a). The call goes back to the dispatch loop.
	if lt, ok := overloadOf(OpLt, a, b); ok {
		switch op {
		case OpGt:
			return Value{}, ctx.SetDeferred(lt, b, a)
		case OpLe:
			return Value{}, ctx.SetDeferredThen(Not, lt, b, a)
		case OpGe:
			return Value{}, ctx.SetDeferredThen(Not, lt, a, b)
		}
	}
	o, err := Compare(ctx, a, b)
	if err != nil {
		return Value{}, err
	}
	switch op {
	case OpLt:
		return Bool(o == Less), nil
	case OpGt:
		return Bool(o == Greater), nil
	case OpLe:
		return Bool(o == Less || o == Equal), nil
	default:
		return Bool(o == Greater || o == Equal), nil
	}
}

// Not negates a boolean.
func Not(ctx *Context, v Value) (Value, error) {
	v, err := Force(ctx, v)
	if err != nil {
		return Value{}, err
	}
	if v.kind != KindBool {
		return Value{}, ctx.Fail(diagnostics.InvalidType, "expected bool, got %s", v.kind)
	}
	return Bool(!v.AsBool()), nil
}

// Cons prepends head to a list. The tail is forced.
func Cons(ctx *Context, head, tail Value) (Value, error) {
	tail, err := Force(ctx, tail)
	if err != nil {
		return Value{}, err
	}
	l, ok := asList(tail)
	if !ok {
		return Value{}, ctx.Fail(diagnostics.InvalidType, "cannot cons onto %s", tail.kind)
	}
	return FromObject(l.Prepend(head)), nil
}

func Convert(ctx *Context, v Value, to Kind) (Value, error) {
	v, err := Force(ctx, v)
	if err != nil {
		return Value{}, err
	}
	return v.behavior().Convert(ctx, v, to)
}

func Field(ctx *Context, v Value, name string) (Value, error) {
	v, err := Force(ctx, v)
	if err != nil {
		return Value{}, err
	}
	return v.behavior().Field(ctx, v, name)
}

func Index(ctx *Context, v, index Value) (Value, error) {
	v, index, err := force2(ctx, v, index)
	if err != nil {
		return Value{}, err
	}
	return v.behavior().Index(ctx, v, index)
}

func Len(ctx *Context, v Value) (Value, error) {
	v, err := Force(ctx, v)
	if err != nil {
		return Value{}, err
	}
	return v.behavior().Len(ctx, v)
}

// Generate appends elem to a sequence under construction. The element is
// not forced.
func Generate(ctx *Context, seq, elem Value) (Value, error) {
	seq, err := Force(ctx, seq)
	if err != nil {
		return Value{}, err
	}
	return seq.behavior().Generate(ctx, seq, elem)
}

func GenerateFinish(ctx *Context, seq Value) (Value, error) {
	seq, err := Force(ctx, seq)
	if err != nil {
		return Value{}, err
	}
	return seq.behavior().GenerateFinish(ctx, seq)
}
