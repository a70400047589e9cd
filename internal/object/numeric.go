package object

import (
	"math"
	"strconv"
	"strings"

	"github.com/funvibe/ela/internal/diagnostics"
)

// Numeric carriers. Int and Single live inline; Long and Double are boxed.

type intCarrier struct{ numeric }

func (intCarrier) Kind() Kind { return KindInt }

func (intCarrier) Show(ctx *Context, p *Printer, v Value) error {
	p.WriteString(strconv.FormatInt(int64(v.AsInt()), 10))
	return nil
}

// LongObject is the carrier of 64-bit integers.
type LongObject struct {
	numeric
	Value int64
}

func (*LongObject) Kind() Kind { return KindLong }

func (*LongObject) Show(ctx *Context, p *Printer, v Value) error {
	p.WriteString(strconv.FormatInt(v.AsLong(), 10))
	p.WriteString("L")
	return nil
}

type singleCarrier struct{ numeric }

func (singleCarrier) Kind() Kind { return KindSingle }

func (singleCarrier) Show(ctx *Context, p *Printer, v Value) error {
	p.WriteString(formatFloat(float64(v.AsSingle()), 32))
	p.WriteString("f")
	return nil
}

// DoubleObject is the carrier of 64-bit floats.
type DoubleObject struct {
	numeric
	Value float64
}

func (*DoubleObject) Kind() Kind { return KindDouble }

func (*DoubleObject) Show(ctx *Context, p *Printer, v Value) error {
	p.WriteString(formatFloat(v.AsDouble(), 64))
	return nil
}

// formatFloat keeps a decimal point so the text reads back as a float.
func formatFloat(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, bitSize)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// numeric holds the operations shared by the four numeric carriers. Mixed
// operands are widened to the wider kind of the two.
type numeric struct{ Base }

func widest(a, b Value) Kind {
	if a.kind > b.kind {
		return a.kind
	}
	return b.kind
}

func toLong(v Value) int64 {
	switch v.kind {
	case KindInt:
		return int64(v.AsInt())
	case KindLong:
		return v.AsLong()
	case KindSingle:
		return int64(v.AsSingle())
	case KindDouble:
		return int64(v.AsDouble())
	}
	return 0
}

func toSingle(v Value) float32 {
	switch v.kind {
	case KindInt:
		return float32(v.AsInt())
	case KindLong:
		return float32(v.AsLong())
	case KindSingle:
		return v.AsSingle()
	case KindDouble:
		return float32(v.AsDouble())
	}
	return 0
}

func toDouble(v Value) float64 {
	switch v.kind {
	case KindInt:
		return float64(v.AsInt())
	case KindLong:
		return float64(v.AsLong())
	case KindSingle:
		return float64(v.AsSingle())
	case KindDouble:
		return v.AsDouble()
	}
	return 0
}

func (numeric) Equal(ctx *Context, a, b Value) (bool, error) {
	if !b.kind.IsNumeric() {
		return false, nil
	}
	switch widest(a, b) {
	case KindInt:
		return a.AsInt() == b.AsInt(), nil
	case KindLong:
		return toLong(a) == toLong(b), nil
	case KindSingle:
		return toSingle(a) == toSingle(b), nil
	default:
		return toDouble(a) == toDouble(b), nil
	}
}

func (numeric) Compare(ctx *Context, a, b Value) (Ordering, error) {
	if !b.kind.IsNumeric() {
		return Unordered, nil
	}
	switch widest(a, b) {
	case KindInt:
		return orderInts(int64(a.AsInt()), int64(b.AsInt())), nil
	case KindLong:
		return orderInts(toLong(a), toLong(b)), nil
	default:
		return orderFloats(toDouble(a), toDouble(b)), nil
	}
}

func orderInts(x, y int64) Ordering {
	switch {
	case x < y:
		return Less
	case x > y:
		return Greater
	}
	return Equal
}

func orderFloats(x, y float64) Ordering {
	switch {
	case x < y:
		return Less
	case x > y:
		return Greater
	case x == y:
		return Equal
	}
	return Unordered
}

func (numeric) Arith(ctx *Context, op Op, a, b Value) (Value, error) {
	if op == OpNeg {
		return negate(a), nil
	}
	if !b.kind.IsNumeric() {
		return Value{}, noOverload2(ctx, op.String(), a, b)
	}
	switch widest(a, b) {
	case KindInt:
		r, err := intArith(ctx, op, int64(a.AsInt()), int64(b.AsInt()))
		return Int(int32(r)), err
	case KindLong:
		r, err := intArith(ctx, op, toLong(a), toLong(b))
		return Long(r), err
	case KindSingle:
		return Single(float32(floatArith(op, float64(toSingle(a)), float64(toSingle(b))))), nil
	default:
		return Double(floatArith(op, toDouble(a), toDouble(b))), nil
	}
}

func negate(a Value) Value {
	switch a.kind {
	case KindInt:
		return Int(-a.AsInt())
	case KindLong:
		return Long(-a.AsLong())
	case KindSingle:
		return Single(-a.AsSingle())
	default:
		return Double(-a.AsDouble())
	}
}

// intArith computes in 64 bits; Int results are truncated back to 32 bits by
// the caller, which gives wrapping semantics for both widths.
func intArith(ctx *Context, op Op, x, y int64) (int64, error) {
	switch op {
	case OpAdd:
		return x + y, nil
	case OpSub:
		return x - y, nil
	case OpMul:
		return x * y, nil
	case OpDiv:
		if y == 0 {
			return 0, ctx.Fail(diagnostics.DivideByZero, "division by zero")
		}
		if y == -1 {
			return -x, nil
		}
		return x / y, nil
	case OpRem:
		if y == 0 {
			return 0, ctx.Fail(diagnostics.DivideByZero, "division by zero")
		}
		if y == -1 {
			return 0, nil
		}
		return x % y, nil
	case OpPow:
		return intPow(ctx, x, y)
	}
	return 0, ctx.Fail(diagnostics.NoOverload, "operation %s is not supported by integers", op)
}

// intPow truncates negative exponents toward zero like integer division.
func intPow(ctx *Context, base, exp int64) (int64, error) {
	if exp < 0 {
		switch base {
		case 0:
			return 0, ctx.Fail(diagnostics.DivideByZero, "zero raised to a negative power")
		case 1:
			return 1, nil
		case -1:
			if exp%2 == 0 {
				return 1, nil
			}
			return -1, nil
		}
		return 0, nil
	}
	result := int64(1)
	for exp > 0 {
		if exp%2 == 1 {
			result *= base
		}
		base *= base
		exp /= 2
	}
	return result, nil
}

func floatArith(op Op, x, y float64) float64 {
	switch op {
	case OpAdd:
		return x + y
	case OpSub:
		return x - y
	case OpMul:
		return x * y
	case OpDiv:
		return x / y
	case OpRem:
		return math.Mod(x, y)
	default:
		return math.Pow(x, y)
	}
}

// Bitwise operations are defined on Int and Long only.
func (numeric) Bitwise(ctx *Context, op Op, a, b Value) (Value, error) {
	if a.kind != KindInt && a.kind != KindLong {
		return Value{}, noOverload(ctx, op.String(), a)
	}
	if op == OpBitNot {
		if a.kind == KindInt {
			return Int(^a.AsInt()), nil
		}
		return Long(^a.AsLong()), nil
	}
	if b.kind != KindInt && b.kind != KindLong {
		return Value{}, noOverload2(ctx, op.String(), a, b)
	}
	if op == OpShl || op == OpShr {
		n := toLong(b)
		if n < 0 {
			return Value{}, ctx.Fail(diagnostics.InvalidType, "negative shift count %d", n)
		}
		if a.kind == KindInt {
			if op == OpShl {
				return Int(a.AsInt() << uint64(n)), nil
			}
			return Int(a.AsInt() >> uint64(n)), nil
		}
		if op == OpShl {
			return Long(a.AsLong() << uint64(n)), nil
		}
		return Long(a.AsLong() >> uint64(n)), nil
	}
	x, y := toLong(a), toLong(b)
	var r int64
	switch op {
	case OpAnd:
		r = x & y
	case OpOr:
		r = x | y
	case OpXor:
		r = x ^ y
	default:
		return Value{}, noOverload(ctx, op.String(), a)
	}
	if widest(a, b) == KindInt {
		return Int(int32(r)), nil
	}
	return Long(r), nil
}

func (numeric) Convert(ctx *Context, v Value, to Kind) (Value, error) {
	switch to {
	case v.kind, KindAny:
		return v, nil
	case KindInt:
		return Int(int32(toLong(v))), nil
	case KindLong:
		return Long(toLong(v)), nil
	case KindSingle:
		return Single(toSingle(v)), nil
	case KindDouble:
		return Double(toDouble(v)), nil
	case KindChar:
		if v.kind == KindInt || v.kind == KindLong {
			return Char(rune(toLong(v))), nil
		}
	case KindBool:
		if v.kind == KindInt || v.kind == KindLong {
			return Bool(toLong(v) != 0), nil
		}
	case KindString:
		switch v.kind {
		case KindInt, KindLong:
			return String(strconv.FormatInt(toLong(v), 10)), nil
		case KindSingle:
			return String(strconv.FormatFloat(float64(v.AsSingle()), 'g', -1, 32)), nil
		default:
			return String(strconv.FormatFloat(v.AsDouble(), 'g', -1, 64)), nil
		}
	}
	return Value{}, ctx.Fail(diagnostics.ConversionFailed, "cannot convert %s to %s", v.kind, to)
}
