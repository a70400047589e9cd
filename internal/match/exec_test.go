package match

import (
	"testing"

	"github.com/funvibe/ela/internal/diagnostics"
	"github.com/funvibe/ela/internal/object"
)

type testEnv struct {
	Tables
	guard  func(arm int, bindings []object.Value) (bool, error)
	guards int
}

func (e *testEnv) Guard(arm int, bindings []object.Value) (bool, error) {
	e.guards++
	if e.guard == nil {
		return true, nil
	}
	return e.guard(arm, bindings)
}

func compileArms(env *testEnv, guarded map[int]bool, patterns ...Pattern) []Arm {
	arms := make([]Arm, len(patterns))
	for i, p := range patterns {
		arms[i] = Compile(p, &env.Tables, guarded[i])
	}
	return arms
}

func TestArmsFallThroughWithoutLeakingBindings(t *testing.T) {
	env := &testEnv{}
	arms := compileArms(env, nil,
		Tuple{Elems: []Pattern{Lit{V: object.Int(1)}, Bind{Slot: 0}}},
		Tuple{Elems: []Pattern{Bind{Slot: 0}, Lit{V: object.Int(1)}}},
		Wild{},
	)

	ctx := object.NewContext(nil, object.ShowOptions{})
	arm, bindings, err := Exec(ctx, object.NewTuple(object.Int(2), object.Int(3)), arms, env)
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if arm != 2 {
		t.Fatalf("matched arm %d, want 2", arm)
	}
	if len(bindings) != 0 {
		t.Errorf("wildcard arm has bindings %v", bindings)
	}
}

func TestDestructuring(t *testing.T) {
	tests := []struct {
		name      string
		pattern   Pattern
		scrutinee object.Value
		expected  []string // shown bindings, nil for no match
	}{
		{
			"tuple",
			Tuple{Elems: []Pattern{Bind{Slot: 0}, Bind{Slot: 1}}},
			object.NewTuple(object.Int(1), object.String("a")),
			[]string{"1", `"a"`},
		},
		{
			"tuple arity",
			Tuple{Elems: []Pattern{Bind{Slot: 0}}},
			object.NewTuple(object.Int(1), object.Int(2)),
			nil,
		},
		{
			"cons",
			Cons{Head: Bind{Slot: 0}, Tail: Bind{Slot: 1}},
			object.NewList(object.Int(1), object.Int(2), object.Int(3)),
			[]string{"1", "[2,3]"},
		},
		{
			"cons on empty",
			Cons{Head: Bind{Slot: 0}, Tail: Wild{}},
			object.NewList(),
			nil,
		},
		{
			"nested cons",
			Cons{Head: Bind{Slot: 0}, Tail: Cons{Head: Bind{Slot: 1}, Tail: Nil{}}},
			object.NewList(object.Int(1), object.Int(2)),
			[]string{"1", "2"},
		},
		{
			"nil",
			Nil{},
			object.NewList(),
			[]string{},
		},
		{
			"record",
			Record{Names: []string{"y", "x"}, Fields: []Pattern{Bind{Slot: 0}, Bind{Slot: 1}}},
			object.NewRecord([]string{"x", "y", "z"}, []object.Value{object.Int(1), object.Int(2), object.Int(3)}),
			[]string{"2", "1"},
		},
		{
			"record missing field",
			Record{Names: []string{"w"}, Fields: []Pattern{Wild{}}},
			object.NewRecord([]string{"x"}, []object.Value{object.Int(1)}),
			nil,
		},
		{
			"variant",
			Variant{Tag: "Some", Payload: Bind{Slot: 0}},
			object.NewVariant("Some", object.Int(5)),
			[]string{"5"},
		},
		{
			"variant tag",
			Variant{Tag: "Some", Payload: Bind{Slot: 0}},
			object.NewVariant("None", object.Unit()),
			nil,
		},
		{
			"kind",
			Kind{K: object.KindString, Inner: Bind{Slot: 0}},
			object.String("s"),
			[]string{`"s"`},
		},
		{
			"kind mismatch",
			Kind{K: object.KindString},
			object.Int(1),
			nil,
		},
		{
			"literal widens",
			Lit{V: object.Long(2)},
			object.Int(2),
			[]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := &testEnv{}
			arms := compileArms(env, nil, tt.pattern)
			ctx := object.NewContext(nil, object.ShowOptions{})
			_, bindings, err := Exec(ctx, tt.scrutinee, arms, env)
			if tt.expected == nil {
				if diagnostics.CodeOf(err) != diagnostics.MatchFailed {
					t.Fatalf("expected MatchFailed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Exec failed: %v", err)
			}
			if len(bindings) != len(tt.expected) {
				t.Fatalf("got %d bindings, want %d", len(bindings), len(tt.expected))
			}
			for i, want := range tt.expected {
				if got := bindings[i].String(); got != want {
					t.Errorf("binding %d = %s, want %s", i, got, want)
				}
			}
		})
	}
}

func TestGuardRejectionFallsThrough(t *testing.T) {
	env := &testEnv{}
	var seen []object.Value
	env.guard = func(arm int, bindings []object.Value) (bool, error) {
		seen = bindings
		return bindings[0].AsInt() > 10, nil
	}
	arms := compileArms(env, map[int]bool{0: true},
		Bind{Slot: 0},
		Bind{Slot: 0},
	)

	ctx := object.NewContext(nil, object.ShowOptions{})
	arm, bindings, err := Exec(ctx, object.Int(5), arms, env)
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if arm != 1 {
		t.Fatalf("matched arm %d, want 1", arm)
	}
	if env.guards != 1 {
		t.Errorf("guard ran %d times, want 1", env.guards)
	}
	if &seen[0] == &bindings[0] {
		t.Error("guard-rejected bindings must not be reused by the next arm")
	}
}

func TestGuardErrorPropagates(t *testing.T) {
	env := &testEnv{}
	env.guard = func(arm int, bindings []object.Value) (bool, error) {
		return false, diagnostics.NewError(diagnostics.DivideByZero, "boom")
	}
	arms := compileArms(env, map[int]bool{0: true}, Wild{}, Wild{})

	ctx := object.NewContext(nil, object.ShowOptions{})
	_, _, err := Exec(ctx, object.Int(1), arms, env)
	if diagnostics.CodeOf(err) != diagnostics.DivideByZero {
		t.Errorf("expected the guard error, got %v", err)
	}
}

func TestMatchFailed(t *testing.T) {
	env := &testEnv{}
	arms := compileArms(env, nil, Nil{})
	ctx := object.NewContext(nil, object.ShowOptions{})
	_, _, err := Exec(ctx, object.Int(1), arms, env)
	if diagnostics.CodeOf(err) != diagnostics.MatchFailed {
		t.Fatalf("expected MatchFailed, got %v", err)
	}
	if !ctx.Failed() {
		t.Error("context should record the failure")
	}
}

func TestMalformedProgram(t *testing.T) {
	env := &testEnv{}
	arms := []Arm{{Tests: []Test{{Op: TestSkip}, {Op: TestSkip}}}}
	ctx := object.NewContext(nil, object.ShowOptions{})
	_, _, err := Exec(ctx, object.Int(1), arms, env)
	if diagnostics.CodeOf(err) != diagnostics.InternalFatal {
		t.Errorf("expected InternalFatal, got %v", err)
	}
}

func TestBindKeepsThunksLazy(t *testing.T) {
	env := &testEnv{}
	arms := compileArms(env, nil, Bind{Slot: 0})
	thunk := object.FromObject(object.NewLazy(object.Unit()))

	// no invoker: forcing would fail
	ctx := object.NewContext(nil, object.ShowOptions{})
	_, bindings, err := Exec(ctx, thunk, arms, env)
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if !bindings[0].IsLazy() {
		t.Error("bound value should still be a thunk")
	}
}
