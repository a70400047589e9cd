package object

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/funvibe/ela/internal/diagnostics"
)

type unitCarrier struct{ Base }

func (unitCarrier) Kind() Kind { return KindUnit }

func (unitCarrier) Equal(ctx *Context, a, b Value) (bool, error) {
	return b.kind == KindUnit, nil
}

func (unitCarrier) Compare(ctx *Context, a, b Value) (Ordering, error) {
	if b.kind == KindUnit {
		return Equal, nil
	}
	return Unordered, nil
}

func (unitCarrier) Show(ctx *Context, p *Printer, v Value) error {
	p.WriteString("()")
	return nil
}

type boolCarrier struct{ Base }

func (boolCarrier) Kind() Kind { return KindBool }

func (boolCarrier) Equal(ctx *Context, a, b Value) (bool, error) {
	return b.kind == KindBool && a.bits == b.bits, nil
}

func (boolCarrier) Compare(ctx *Context, a, b Value) (Ordering, error) {
	if b.kind != KindBool {
		return Unordered, nil
	}
	return orderInts(int64(a.bits), int64(b.bits)), nil
}

func (boolCarrier) Show(ctx *Context, p *Printer, v Value) error {
	p.WriteString(strconv.FormatBool(v.AsBool()))
	return nil
}

func (boolCarrier) Convert(ctx *Context, v Value, to Kind) (Value, error) {
	switch to {
	case KindBool, KindAny:
		return v, nil
	case KindInt:
		return Int(int32(v.bits)), nil
	case KindLong:
		return Long(int64(v.bits)), nil
	case KindString:
		return String(strconv.FormatBool(v.AsBool())), nil
	}
	return Value{}, ctx.Fail(diagnostics.ConversionFailed, "cannot convert %s to %s", v.kind, to)
}

func (boolCarrier) Bitwise(ctx *Context, op Op, a, b Value) (Value, error) {
	if op == OpBitNot {
		return Bool(!a.AsBool()), nil
	}
	if b.kind != KindBool {
		return Value{}, noOverload2(ctx, op.String(), a, b)
	}
	switch op {
	case OpAnd:
		return Bool(a.AsBool() && b.AsBool()), nil
	case OpOr:
		return Bool(a.AsBool() || b.AsBool()), nil
	case OpXor:
		return Bool(a.AsBool() != b.AsBool()), nil
	}
	return Value{}, noOverload(ctx, op.String(), a)
}

type charCarrier struct{ Base }

func (charCarrier) Kind() Kind { return KindChar }

func (charCarrier) Equal(ctx *Context, a, b Value) (bool, error) {
	return b.kind == KindChar && a.bits == b.bits, nil
}

func (charCarrier) Compare(ctx *Context, a, b Value) (Ordering, error) {
	if b.kind != KindChar {
		return Unordered, nil
	}
	return orderInts(int64(a.AsChar()), int64(b.AsChar())), nil
}

func (charCarrier) Show(ctx *Context, p *Printer, v Value) error {
	p.WriteString(strconv.QuoteRune(v.AsChar()))
	return nil
}

func (charCarrier) Convert(ctx *Context, v Value, to Kind) (Value, error) {
	switch to {
	case KindChar, KindAny:
		return v, nil
	case KindInt:
		return Int(int32(v.AsChar())), nil
	case KindLong:
		return Long(int64(v.AsChar())), nil
	case KindString:
		return String(string(v.AsChar())), nil
	}
	return Value{}, ctx.Fail(diagnostics.ConversionFailed, "cannot convert %s to %s", v.kind, to)
}

func (charCarrier) Concat(ctx *Context, a, b Value) (Value, error) {
	switch b.kind {
	case KindChar:
		return String(string(a.AsChar()) + string(b.AsChar())), nil
	case KindString:
		return String(string(a.AsChar()) + b.AsString()), nil
	}
	return Value{}, noOverload2(ctx, "concat", a, b)
}

// StringObject is the carrier of strings.
type StringObject struct {
	Base
	Value string
}

func (*StringObject) Kind() Kind { return KindString }

func (*StringObject) Equal(ctx *Context, a, b Value) (bool, error) {
	return b.kind == KindString && a.AsString() == b.AsString(), nil
}

func (*StringObject) Compare(ctx *Context, a, b Value) (Ordering, error) {
	if b.kind != KindString {
		return Unordered, nil
	}
	return Ordering(strings.Compare(a.AsString(), b.AsString())), nil
}

func (*StringObject) Concat(ctx *Context, a, b Value) (Value, error) {
	switch b.kind {
	case KindString:
		return String(a.AsString() + b.AsString()), nil
	case KindChar:
		return String(a.AsString() + string(b.AsChar())), nil
	}
	return Value{}, noOverload2(ctx, "concat", a, b)
}

func (*StringObject) Show(ctx *Context, p *Printer, v Value) error {
	p.Quoted(v.AsString())
	return nil
}

func (*StringObject) Convert(ctx *Context, v Value, to Kind) (Value, error) {
	s := strings.TrimSpace(v.AsString())
	switch to {
	case KindString, KindAny:
		return v, nil
	case KindInt:
		if n, err := strconv.ParseInt(s, 10, 32); err == nil {
			return Int(int32(n)), nil
		}
	case KindLong:
		if n, err := strconv.ParseInt(strings.TrimSuffix(s, "L"), 10, 64); err == nil {
			return Long(n), nil
		}
	case KindSingle:
		if f, err := strconv.ParseFloat(strings.TrimSuffix(s, "f"), 32); err == nil {
			return Single(float32(f)), nil
		}
	case KindDouble:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Double(f), nil
		}
	case KindBool:
		if b, err := strconv.ParseBool(s); err == nil {
			return Bool(b), nil
		}
	case KindChar:
		if utf8.RuneCountInString(v.AsString()) == 1 {
			r, _ := utf8.DecodeRuneInString(v.AsString())
			return Char(r), nil
		}
	case KindList:
		runes := []rune(v.AsString())
		elems := make([]Value, len(runes))
		for i, r := range runes {
			elems[i] = Char(r)
		}
		return NewList(elems...), nil
	}
	return Value{}, ctx.Fail(diagnostics.ConversionFailed, "cannot convert string %q to %s", v.AsString(), to)
}

func (*StringObject) Index(ctx *Context, v, index Value) (Value, error) {
	i, err := indexOf(ctx, index)
	if err != nil {
		return Value{}, err
	}
	runes := []rune(v.AsString())
	if i < 0 || i >= len(runes) {
		return Value{}, ctx.Fail(diagnostics.IndexOutOfRange, "index %d out of range for string of length %d", i, len(runes))
	}
	return Char(runes[i]), nil
}

func (*StringObject) Len(ctx *Context, v Value) (Value, error) {
	return Int(int32(utf8.RuneCountInString(v.AsString()))), nil
}

func (*StringObject) Generate(ctx *Context, seq, elem Value) (Value, error) {
	switch elem.kind {
	case KindChar:
		return String(seq.AsString() + string(elem.AsChar())), nil
	case KindString:
		return String(seq.AsString() + elem.AsString()), nil
	}
	return Value{}, ctx.Fail(diagnostics.InvalidType, "cannot add %s to a string builder", elem.kind)
}

func (*StringObject) GenerateFinish(ctx *Context, seq Value) (Value, error) {
	return seq, nil
}

// indexOf validates an index operand.
func indexOf(ctx *Context, index Value) (int, error) {
	switch index.kind {
	case KindInt:
		return int(index.AsInt()), nil
	case KindLong:
		return int(index.AsLong()), nil
	}
	return 0, ctx.Fail(diagnostics.InvalidIndexType, "index must be int or long, got %s", index.kind)
}
