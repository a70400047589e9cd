package object

import (
	"github.com/funvibe/ela/internal/diagnostics"
)

// Op names the operators that go through trait dispatch. The names are also
// the keys user types register overloads under.
type Op uint8

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpRem
	OpPow
	OpNeg
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpBitNot
	OpConcat
	OpEq
	OpLt
	OpGt
	OpLe
	OpGe
	OpShow
	OpLen
	OpField
	opCount
)

var opNames = [opCount]string{
	OpAdd:    "add",
	OpSub:    "subtract",
	OpMul:    "multiply",
	OpDiv:    "divide",
	OpRem:    "remainder",
	OpPow:    "power",
	OpNeg:    "negate",
	OpAnd:    "bitwiseand",
	OpOr:     "bitwiseor",
	OpXor:    "bitwisexor",
	OpShl:    "shiftleft",
	OpShr:    "shiftright",
	OpBitNot: "bitwisenot",
	OpConcat: "concat",
	OpEq:     "equal",
	OpLt:     "lesser",
	OpGt:     "greater",
	OpLe:     "lesserequal",
	OpGe:     "greaterequal",
	OpShow:   "show",
	OpLen:    "length",
	OpField:  "field",
}

func (op Op) String() string {
	if op < opCount {
		return opNames[op]
	}
	return "unknown"
}

// OpByName resolves an operator by its overload name.
func OpByName(name string) (Op, bool) {
	for i, n := range opNames {
		if n == name {
			return Op(i), true
		}
	}
	return 0, false
}

// Ordering is the result of a comparison.
type Ordering int8

const (
	Less      Ordering = -1
	Equal     Ordering = 0
	Greater   Ordering = 1
	Unordered Ordering = 2
)

// Behavior is the closed set of trait operations every runtime kind carries.
//
// Operations report failure through the returned error, which is always the
// descriptor recorded in ctx (a *diagnostics.Error, or a *CallRequest when the
// operation asks the dispatch loop to call a function for it). On failure the
// returned Value is unspecified and must not be used.
type Behavior interface {
	Kind() Kind
	Equal(ctx *Context, a, b Value) (bool, error)
	Compare(ctx *Context, a, b Value) (Ordering, error)
	Arith(ctx *Context, op Op, a, b Value) (Value, error)
	Bitwise(ctx *Context, op Op, a, b Value) (Value, error)
	Concat(ctx *Context, a, b Value) (Value, error)
	Show(ctx *Context, p *Printer, v Value) error
	Convert(ctx *Context, v Value, to Kind) (Value, error)
	Force(ctx *Context, v Value) (Value, error)
	Field(ctx *Context, v Value, name string) (Value, error)
	Index(ctx *Context, v, index Value) (Value, error)
	Len(ctx *Context, v Value) (Value, error)
	Generate(ctx *Context, seq, elem Value) (Value, error)
	GenerateFinish(ctx *Context, seq Value) (Value, error)
}

// Base provides the default for every operation except Kind: it signals
// NoOverload. Carriers embed it and override what they support.
type Base struct{}

// Equal defaults to identity.
func (Base) Equal(ctx *Context, a, b Value) (bool, error) {
	return a.kind == b.kind && a.bits == b.bits && a.ref == b.ref, nil
}

func (Base) Compare(ctx *Context, a, b Value) (Ordering, error) {
	return Unordered, noOverload(ctx, "compare", a)
}

func (Base) Arith(ctx *Context, op Op, a, b Value) (Value, error) {
	return Value{}, noOverload(ctx, op.String(), a)
}

func (Base) Bitwise(ctx *Context, op Op, a, b Value) (Value, error) {
	return Value{}, noOverload(ctx, op.String(), a)
}

func (Base) Concat(ctx *Context, a, b Value) (Value, error) {
	return Value{}, noOverload(ctx, "concat", a)
}

func (Base) Show(ctx *Context, p *Printer, v Value) error {
	return noOverload(ctx, "show", v)
}

// Convert defaults to identity for the same kind and to Show for string.
func (Base) Convert(ctx *Context, v Value, to Kind) (Value, error) {
	switch to {
	case v.kind, KindAny:
		return v, nil
	case KindString:
		s, err := Show(ctx, v)
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	}
	return Value{}, ctx.Fail(diagnostics.ConversionFailed, "cannot convert %s to %s", v.kind, to)
}

// Force of a non-lazy value is the value itself.
func (Base) Force(ctx *Context, v Value) (Value, error) {
	return v, nil
}

func (Base) Field(ctx *Context, v Value, name string) (Value, error) {
	return Value{}, noOverload(ctx, "field", v)
}

func (Base) Index(ctx *Context, v, index Value) (Value, error) {
	return Value{}, noOverload(ctx, "index", v)
}

func (Base) Len(ctx *Context, v Value) (Value, error) {
	return Value{}, noOverload(ctx, "length", v)
}

func (Base) Generate(ctx *Context, seq, elem Value) (Value, error) {
	return Value{}, noOverload(ctx, "generate", seq)
}

func (Base) GenerateFinish(ctx *Context, seq Value) (Value, error) {
	return Value{}, noOverload(ctx, "generate", seq)
}

func noOverload(ctx *Context, op string, v Value) error {
	return ctx.Fail(diagnostics.NoOverload, "operation %s is not supported by %s", op, v.kind)
}

func noOverload2(ctx *Context, op string, a, b Value) error {
	return ctx.Fail(diagnostics.NoOverload, "operation %s is not supported by %s and %s", op, a.kind, b.kind)
}
