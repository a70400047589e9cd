package vm

import (
	"sort"
	"strings"
	"testing"
)

func TestFindLine(t *testing.T) {
	d := &DebugInfo{Lines: []LineSym{
		{Offset: 0, Line: 1, Column: 1},
		{Offset: 4, Line: 2, Column: 3},
		{Offset: 9, Line: 5, Column: 1},
	}}

	tests := []struct {
		offset int
		line   int
		ok     bool
	}{
		{0, 1, true},
		{3, 1, true},
		{4, 2, true},
		{8, 2, true},
		{100, 5, true},
		{-1, 0, false},
	}
	for _, tt := range tests {
		sym, ok := d.FindLine(tt.offset)
		if ok != tt.ok || sym.Line != tt.line {
			t.Errorf("FindLine(%d) = %d, %v; want %d, %v", tt.offset, sym.Line, ok, tt.line, tt.ok)
		}
	}

	var missing *DebugInfo
	if _, ok := missing.FindLine(0); ok {
		t.Error("nil debug info resolved a line")
	}
}

func TestFindFunctionPrefersInnermost(t *testing.T) {
	d := &DebugInfo{Functions: []FunSym{
		{Name: "outer", Start: 0, End: 100},
		{Name: "inner", Start: 10, End: 50},
	}}

	tests := []struct {
		offset int
		name   string
	}{
		{30, "inner"},
		{5, "outer"},
		{60, "outer"},
		{10, "outer"},
	}
	for _, tt := range tests {
		fn, ok := d.FindFunction(tt.offset)
		if !ok || fn.Name != tt.name {
			t.Errorf("FindFunction(%d) = %q, %v; want %q", tt.offset, fn.Name, ok, tt.name)
		}
	}
	if _, ok := d.FindFunction(100); ok {
		t.Error("end offset is outside the function")
	}
}

func TestFindVarsShadowing(t *testing.T) {
	d := &DebugInfo{
		Scopes: []ScopeSym{
			{Index: 0, Parent: 0, Start: 0, End: 20},
			{Index: 1, Parent: 0, Start: 5, End: 15},
		},
		Vars: []VarSym{
			{Name: "x", Scope: 0, Slot: 0},
			{Name: "y", Scope: 0, Slot: 1},
			{Name: "x", Scope: 1, Slot: 2},
		},
	}

	scope, ok := d.FindScope(7)
	if !ok || scope.Index != 1 {
		t.Fatalf("FindScope(7) = %d, %v; want 1", scope.Index, ok)
	}

	vars := d.FindVars(scope.Index)
	slots := make(map[string]int)
	for _, v := range vars {
		slots[v.Name] = v.Slot
	}
	if len(vars) != 2 || slots["x"] != 2 || slots["y"] != 1 {
		t.Errorf("visible vars = %v", vars)
	}

	outer := d.FindVars(0)
	names := make([]string, 0, len(outer))
	for _, v := range outer {
		names = append(names, v.Name)
	}
	sort.Strings(names)
	if strings.Join(names, ",") != "x,y" || outer[0].Slot != 0 {
		t.Errorf("outer vars = %v", outer)
	}
}

func TestDisassemble(t *testing.T) {
	b := NewBuilder("demo")
	b.Line(1, 1)
	f := exportFunc(b, "twice", 1, 1, false, func() {
		b.Emit(OP_GET_LOCAL, 0)
		b.Emit(OP_DUP)
		b.Emit(OP_ADD)
		b.Emit(OP_RETURN)
	})
	b.Main()
	b.Line(3, 1)
	b.Emit(OP_CLOSURE, f, 0)
	b.Emit(OP_PUSH_STR, b.Str("hi"))
	b.Emit(OP_RETURN)
	m := mustBuild(t, b)

	out := Disassemble(m)
	for _, want := range []string{
		"== demo ==",
		"-- twice/1 --",
		"-- main --",
		"0000    1 GET_LOCAL          0",
		"0001    | DUP",
		"0004    3 CLOSURE            0 <fun twice> captures 0",
		`PUSH_STR           0 "hi"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly lacks %q:\n%s", want, out)
		}
	}
}
