package object

import (
	"errors"
	"testing"

	"github.com/funvibe/ela/internal/diagnostics"
)

// directInvoker calls native functions without an interpreter.
type directInvoker struct{ ctx *Context }

func (d *directInvoker) Invoke(fn Value, args []Value) (Value, error) {
	f, ok := fn.Object().(*Function)
	if !ok || f.Native == nil {
		return Value{}, d.ctx.Fail(diagnostics.InvalidType, "not a native function: %s", fn.Kind())
	}
	return f.Native(d.ctx, append(append([]Value(nil), f.Applied...), args...))
}

func newTestContext() *Context {
	ctx := NewContext(nil, ShowOptions{})
	ctx.SetInvoker(&directInvoker{ctx: ctx})
	return ctx
}

func testIntValue(t *testing.T, v Value, expected int32) {
	t.Helper()
	if v.Kind() != KindInt {
		t.Fatalf("value is not int. got=%s (%s)", v.Kind(), v)
	}
	if v.AsInt() != expected {
		t.Errorf("value has wrong value. got=%d, want=%d", v.AsInt(), expected)
	}
}

func testCode(t *testing.T, err error, expected diagnostics.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got no error", expected)
	}
	if got := diagnostics.CodeOf(err); got != expected {
		t.Errorf("wrong error code. got=%s, want=%s (%v)", got, expected, err)
	}
}

func TestNumericPromotion(t *testing.T) {
	tests := []struct {
		name     string
		op       func(*Context, Value, Value) (Value, error)
		a, b     Value
		kind     Kind
		expected string
	}{
		{"int+double", Add, Int(2), Double(3.5), KindDouble, "5.5"},
		{"long+int", Add, Long(10), Int(5), KindLong, "15L"},
		{"int+long", Add, Int(5), Long(10), KindLong, "15L"},
		{"int*single", Mul, Int(3), Single(1.5), KindSingle, "4.5f"},
		{"long-double", Sub, Long(1), Double(0.5), KindDouble, "0.5"},
		{"single/double", Div, Single(1), Double(4), KindDouble, "0.25"},
		{"int wraps", Add, Int(2147483647), Int(1), KindInt, "-2147483648"},
		{"int div truncates", Div, Int(7), Int(2), KindInt, "3"},
		{"int rem", Rem, Int(-7), Int(3), KindInt, "-1"},
		{"min int / -1", Div, Int(-2147483648), Int(-1), KindInt, "-2147483648"},
		{"pow", Pow, Int(2), Int(10), KindInt, "1024"},
		{"pow negative exponent", Pow, Int(2), Int(-1), KindInt, "0"},
		{"pow one negative exponent", Pow, Int(-1), Int(-3), KindInt, "-1"},
		{"double pow", Pow, Double(2), Int(-1), KindDouble, "0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext()
			v, err := tt.op(ctx, tt.a, tt.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Kind() != tt.kind {
				t.Errorf("wrong kind. got=%s, want=%s", v.Kind(), tt.kind)
			}
			if v.String() != tt.expected {
				t.Errorf("wrong value. got=%s, want=%s", v, tt.expected)
			}
		})
	}
}

func TestDivideByZero(t *testing.T) {
	ctx := newTestContext()
	_, err := Div(ctx, Int(1), Int(0))
	testCode(t, err, diagnostics.DivideByZero)
	_, err = Pow(ctx, Long(0), Int(-1))
	testCode(t, err, diagnostics.DivideByZero)

	ctx.Reset()
	v, err := Div(ctx, Double(1), Int(0))
	if err != nil {
		t.Fatalf("float division failed: %v", err)
	}
	if v.String() != "Inf" {
		t.Errorf("got %s, want Inf", v)
	}
}

func TestNumericOrdering(t *testing.T) {
	tests := []struct {
		a, b     Value
		expected Ordering
	}{
		{Int(1), Double(1.5), Less},
		{Long(3), Single(2.5), Greater},
		{Int(2), Double(2.0), Equal},
		{Single(-1), Long(-1), Equal},
		{Long(1 << 40), Int(1), Greater},
		{Double(0), Double(-0.0), Equal},
	}

	for _, tt := range tests {
		ctx := newTestContext()
		got, err := Compare(ctx, tt.a, tt.b)
		if err != nil {
			t.Fatalf("Compare(%s, %s) failed: %v", tt.a, tt.b, err)
		}
		if got != tt.expected {
			t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.expected)
		}
	}
}

func TestStringAddIsNoOverload(t *testing.T) {
	ctx := newTestContext()
	_, err := Add(ctx, String("a"), String("b"))
	testCode(t, err, diagnostics.NoOverload)
	if !ctx.Failed() {
		t.Error("context should be failed")
	}
	if ctx.Err() == nil || ctx.Err().Code != diagnostics.NoOverload {
		t.Errorf("context error = %v", ctx.Err())
	}
	if !errors.Is(err, diagnostics.ErrNoOverload) {
		t.Errorf("errors.Is(%v, ErrNoOverload) = false", err)
	}

	ctx.Reset()
	if ctx.Failed() || ctx.Err() != nil {
		t.Error("Reset should clear the context")
	}
}

func TestCrossKindEquality(t *testing.T) {
	ctx := newTestContext()
	eq, err := Equals(ctx, Int(1), String("1"))
	if err != nil || eq {
		t.Errorf("Equals(1, \"1\") = %v, %v", eq, err)
	}
	o, err := Compare(ctx, NewList(), Int(1))
	if err != nil || o != Unordered {
		t.Errorf("Compare([], 1) = %d, %v", o, err)
	}
	lt, err := Lt(ctx, Int(1), String("x"))
	if err != nil || lt.Truthy() {
		t.Errorf("1 < \"x\" = %s, %v", lt, err)
	}
	if ctx.Failed() {
		t.Error("incompatible comparisons must not fail")
	}
}

func TestStructuralEquality(t *testing.T) {
	ctx := newTestContext()
	tests := []struct {
		a, b     Value
		expected bool
	}{
		{NewList(Int(1), Int(2)), NewList(Int(1), Int(2)), true},
		{NewList(Int(1), Int(2)), NewList(Int(1)), false},
		{NewTuple(Int(1), Long(2)), NewTuple(Int(1), Int(2)), true},
		{NewRecord([]string{"a"}, []Value{Int(1)}), NewRecord([]string{"a"}, []Value{Int(1)}), true},
		{NewRecord([]string{"a"}, []Value{Int(1)}), NewRecord([]string{"b"}, []Value{Int(1)}), false},
		{NewVariant("Some", Int(1)), NewVariant("Some", Int(1)), true},
		{NewVariant("Some", Int(1)), NewVariant("None", Unit()), false},
		{String("x"), String("x"), true},
		{Char('x'), Char('x'), true},
		{Unit(), Unit(), true},
	}

	for _, tt := range tests {
		got, err := Equals(ctx, tt.a, tt.b)
		if err != nil {
			t.Fatalf("Equals(%s, %s) failed: %v", tt.a, tt.b, err)
		}
		if got != tt.expected {
			t.Errorf("Equals(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.expected)
		}
	}
}

func TestListOperations(t *testing.T) {
	ctx := newTestContext()
	l := NewList(Int(1), Int(2))

	joined, err := Concat(ctx, l, NewList(Int(3)))
	if err != nil {
		t.Fatalf("Concat failed: %v", err)
	}
	if joined.String() != "[1,2,3]" {
		t.Errorf("Concat = %s", joined)
	}

	n, _ := Len(ctx, joined)
	testIntValue(t, n, 3)

	second, err := Index(ctx, joined, Int(1))
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	testIntValue(t, second, 2)

	_, err = Index(ctx, joined, Int(3))
	testCode(t, err, diagnostics.IndexOutOfRange)
	_, err = Index(ctx, joined, String("0"))
	testCode(t, err, diagnostics.InvalidIndexType)

	consed, err := Cons(ctx, Int(0), l)
	if err != nil {
		t.Fatalf("Cons failed: %v", err)
	}
	if consed.String() != "[0,1,2]" || l.String() != "[1,2]" {
		t.Errorf("Cons = %s, original = %s", consed, l)
	}
	_, err = Cons(ctx, Int(0), Int(1))
	testCode(t, err, diagnostics.InvalidType)
}

func TestGenerate(t *testing.T) {
	ctx := newTestContext()
	seq := EmptyList()
	for i := int32(1); i <= 3; i++ {
		var err error
		if seq, err = Generate(ctx, seq, Int(i)); err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
	}
	out, err := GenerateFinish(ctx, seq)
	if err != nil {
		t.Fatalf("GenerateFinish failed: %v", err)
	}
	if out.String() != "[1,2,3]" {
		t.Errorf("generated %s", out)
	}

	s := String("")
	for _, c := range "abc" {
		s, _ = Generate(ctx, s, Char(c))
	}
	if s.AsString() != "abc" {
		t.Errorf("string builder produced %q", s.AsString())
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		v        Value
		to       Kind
		expected string
	}{
		{Int(42), KindString, `"42"`},
		{Long(42), KindString, `"42"`},
		{String("17"), KindInt, "17"},
		{String("2.5"), KindDouble, "2.5"},
		{Double(2.9), KindInt, "2"},
		{Int(65), KindChar, "'A'"},
		{Char('A'), KindInt, "65"},
		{String("hi"), KindList, "['h','i']"},
		{NewList(Char('o'), Char('k')), KindString, `"ok"`},
		{NewTuple(Int(1), Int(2)), KindList, "[1,2]"},
		{NewList(Int(1), Int(2)), KindTuple, "(1,2)"},
		{NewRecord([]string{"a"}, []Value{Int(1)}), KindString, `"{a=1}"`},
	}

	for _, tt := range tests {
		ctx := newTestContext()
		got, err := Convert(ctx, tt.v, tt.to)
		if err != nil {
			t.Fatalf("Convert(%s, %s) failed: %v", tt.v, tt.to, err)
		}
		if got.String() != tt.expected {
			t.Errorf("Convert(%s, %s) = %s, want %s", tt.v, tt.to, got, tt.expected)
		}
	}

	ctx := newTestContext()
	_, err := Convert(ctx, String("abc"), KindInt)
	testCode(t, err, diagnostics.ConversionFailed)
}

func TestRecordFields(t *testing.T) {
	ctx := newTestContext()
	r := NewRecord([]string{"x", "y"}, []Value{Int(1), Int(2)})

	y, err := Field(ctx, r, "y")
	if err != nil {
		t.Fatalf("Field failed: %v", err)
	}
	testIntValue(t, y, 2)

	byName, err := Index(ctx, r, String("x"))
	if err != nil {
		t.Fatalf("Index by name failed: %v", err)
	}
	testIntValue(t, byName, 1)

	_, err = Field(ctx, r, "z")
	testCode(t, err, diagnostics.UnknownField)

	updated := r.Object().(*Record).With("z", Int(3))
	if FromObject(updated).String() != "{x=1,y=2,z=3}" || r.String() != "{x=1,y=2}" {
		t.Errorf("With = %s, original = %s", FromObject(updated), r)
	}
}

func TestUserTypeOverloadIsDeferred(t *testing.T) {
	ctx := newTestContext()
	add := NewNative("money.add", 2, func(ctx *Context, args []Value) (Value, error) {
		return Unit(), nil
	})
	money := NewUserType("Money").Overload(OpAdd, add)
	a := money.New(Int(5))

	_, err := Add(ctx, a, Int(1))
	var req *CallRequest
	if !errors.As(err, &req) {
		t.Fatalf("expected a call request, got %v", err)
	}
	if req.Fn.Object() != add.Object() || len(req.Args) != 2 {
		t.Errorf("request = %+v", req)
	}
	if ctx.Deferred() != req {
		t.Error("context should hold the request")
	}
	if got := ctx.TakeDeferred(); got != req || ctx.Failed() {
		t.Error("TakeDeferred should clear the context")
	}

	// the overload is found on the second operand too
	_, err = Add(ctx, Int(1), a)
	if !errors.As(err, &req) {
		t.Fatalf("expected a call request for 1 + money, got %v", err)
	}
	ctx.Reset()

	_, err = Sub(ctx, a, Int(1))
	testCode(t, err, diagnostics.NoOverload)
}

func TestUserTypeOrderingWithoutOverload(t *testing.T) {
	ctx := newTestContext()
	point := NewUserType("Point")
	_, err := Compare(ctx, point.New(Int(1)), point.New(Int(2)))
	testCode(t, err, diagnostics.NoOverload)

	ctx.Reset()
	eq, err := Equals(ctx, point.New(Int(1)), point.New(Int(1)))
	if err != nil || !eq {
		t.Errorf("structural equality of user values = %v, %v", eq, err)
	}
}

func TestUserTypeOrderingWithLesser(t *testing.T) {
	ctx := newTestContext()
	lesser := NewNative("lesser", 2, func(ctx *Context, args []Value) (Value, error) {
		a := args[0].Object().(*UserType).Payload
		b := args[1].Object().(*UserType).Payload
		return Bool(a.AsInt() > b.AsInt()), nil // reversed order
	})
	rev := NewUserType("Rev").Overload(OpLt, lesser)

	o, err := Compare(ctx, rev.New(Int(1)), rev.New(Int(2)))
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if o != Greater {
		t.Errorf("Compare = %d, want Greater", o)
	}
}

func TestDerivedOrderingIsDeferred(t *testing.T) {
	lesser := NewNative("lesser", 2, func(ctx *Context, args []Value) (Value, error) {
		return Unit(), nil
	})
	ver := NewUserType("Ver").Overload(OpLt, lesser)
	a, b := ver.New(Int(1)), ver.New(Int(2))

	tests := []struct {
		name    string
		op      func(*Context, Value, Value) (Value, error)
		first   Value
		negated bool
	}{
		{"lt", Lt, a, false},
		{"gt", Gt, b, false},
		{"le", Le, b, true},
		{"ge", Ge, a, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext()
			_, err := tt.op(ctx, a, b)
			var req *CallRequest
			if !errors.As(err, &req) {
				t.Fatalf("expected a call request, got %v", err)
			}
			if req.Fn.Object() != lesser.Object() || req.Args[0].Object() != tt.first.Object() {
				t.Errorf("request = %+v", req)
			}
			if (req.Then != nil) != tt.negated {
				t.Fatalf("continuation = %v, want negated %v", req.Then != nil, tt.negated)
			}
			if req.Then != nil {
				v, err := req.Then(ctx, Bool(true))
				if err != nil || v.Truthy() {
					t.Errorf("continuation(true) = %s, %v", v, err)
				}
			}
		})
	}
}

func TestTypeOf(t *testing.T) {
	ctx := newTestContext()
	ti := TypeOf(Long(1))
	name, err := Field(ctx, ti, "name")
	if err != nil || name.AsString() != "long" {
		t.Errorf("name = %s, %v", name, err)
	}
	numeric, _ := Field(ctx, ti, "numeric")
	if !numeric.Truthy() {
		t.Error("long should be numeric")
	}
	if TypeOf(NewUserType("Money").New(Unit())).String() != "<type Money>" {
		t.Errorf("user type name not reflected")
	}
	if Descriptor(KindAny) != nil {
		t.Error("KindAny has no descriptor")
	}
}
