package ela_test

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/funvibe/ela/internal/diagnostics"
	"github.com/funvibe/ela/internal/object"
	"github.com/funvibe/ela/internal/vm"
	ela "github.com/funvibe/ela/pkg/embed"
)

// User is converted to and from a record.
type User struct {
	Name  string
	Score int `ela:"score"`
}

// buildApp compiles a module exporting
//
//	quadruple x = host.double (host.double x)
//	greet u     = host.status u
//	pair a b    = (a, b)
//	bonus       = host.bonus
func buildApp(t *testing.T) *vm.Image {
	t.Helper()
	b := vm.NewBuilder("app")
	host := b.Import(ela.HostModuleName)
	double := b.Extern(host, "double")
	status := b.Extern(host, "status")
	bonus := b.Extern(host, "bonus")
	fail := b.Extern(host, "fail")

	quad := b.Func("quadruple", 1, 1, false)
	b.Emit(vm.OP_GET_EXTERN, double)
	b.Emit(vm.OP_GET_EXTERN, double)
	b.Emit(vm.OP_GET_LOCAL, 0)
	b.Emit(vm.OP_CALL, 1)
	b.Emit(vm.OP_CALL, 1)
	b.Emit(vm.OP_RETURN)
	b.EndFunc(quad)

	greet := b.Func("greet", 1, 1, false)
	b.Emit(vm.OP_GET_EXTERN, status)
	b.Emit(vm.OP_GET_LOCAL, 0)
	b.Emit(vm.OP_CALL, 1)
	b.Emit(vm.OP_RETURN)
	b.EndFunc(greet)

	pair := b.Func("pair", 2, 2, false)
	b.Emit(vm.OP_GET_LOCAL, 0)
	b.Emit(vm.OP_GET_LOCAL, 1)
	b.Emit(vm.OP_MAKE_TUPLE, 2)
	b.Emit(vm.OP_RETURN)
	b.EndFunc(pair)

	check := b.Func("check", 1, 1, false)
	b.Emit(vm.OP_GET_EXTERN, fail)
	b.Emit(vm.OP_GET_LOCAL, 0)
	b.Emit(vm.OP_CALL, 1)
	b.Emit(vm.OP_RETURN)
	b.EndFunc(check)

	b.Main()
	for name, f := range map[string]int32{"quadruple": quad, "greet": greet, "pair": pair, "check": check} {
		g := b.Global(name, true)
		b.Emit(vm.OP_CLOSURE, f, 0)
		b.Emit(vm.OP_SET_GLOBAL, g)
	}
	g := b.Global("bonus", true)
	b.Emit(vm.OP_GET_EXTERN, bonus)
	b.Emit(vm.OP_SET_GLOBAL, g)
	b.Emit(vm.OP_PUSH_UNIT)
	b.Emit(vm.OP_RETURN)

	m, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return &vm.Image{
		Modules:   []*vm.Module{m},
		Entry:     "app",
		Resources: map[string][]byte{"motd.txt": []byte("welcome")},
	}
}

func newMachine(t *testing.T) *ela.VM {
	t.Helper()
	machine := ela.New()
	machine.SetOutput(&bytes.Buffer{})
	binds := map[string]interface{}{
		"double": func(x int) int { return x * 2 },
		"status": func(u User) string { return fmt.Sprintf("User %s has %d points", u.Name, u.Score) },
		"bonus":  []int32{1, 2, 3},
		"fail": func(code int32) (int32, error) {
			if code != 0 {
				return 0, fmt.Errorf("code %d", code)
			}
			return code, nil
		},
	}
	for name, val := range binds {
		if err := machine.Bind(name, val); err != nil {
			t.Fatalf("Bind %s: %v", name, err)
		}
	}
	return machine
}

func TestEmbedAPI(t *testing.T) {
	machine := newMachine(t)
	if err := machine.LoadImage(buildApp(t)); err != nil {
		t.Fatalf("LoadImage: %v", err)
	}

	res, err := machine.Call("quadruple", 5)
	if err != nil {
		t.Fatalf("quadruple: %v", err)
	}
	if res != int32(20) {
		t.Errorf("quadruple(5) = %v (%T), want 20", res, res)
	}

	res, err = machine.Call("greet", User{Name: "Alice", Score: 10})
	if err != nil {
		t.Fatalf("greet: %v", err)
	}
	if res != "User Alice has 10 points" {
		t.Errorf("greet = %q", res)
	}

	res, err = machine.Call("pair", "a", 1.5)
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	if !reflect.DeepEqual(res, []interface{}{"a", 1.5}) {
		t.Errorf("pair = %#v", res)
	}

	bonus, err := machine.Get("bonus")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(bonus, []interface{}{int32(1), int32(2), int32(3)}) {
		t.Errorf("bonus = %#v", bonus)
	}

	if data, ok := machine.Resource("motd.txt"); !ok || string(data) != "welcome" {
		t.Errorf("resource = %q, %v", data, ok)
	}
}

func TestEmbedErrors(t *testing.T) {
	machine := newMachine(t)
	if _, err := machine.Call("quadruple", 1); err == nil {
		t.Error("call before load should fail")
	}
	if err := machine.LoadImage(buildApp(t)); err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if err := machine.Bind("late", 1); err == nil {
		t.Error("bind after load should fail")
	}

	_, err := machine.Call("check", int32(7))
	if diagnostics.CodeOf(err) != diagnostics.UserError {
		t.Fatalf("got %v, want UserError", err)
	}
	var de *diagnostics.Error
	if errors.As(err, &de) && de.Message != "code 7" {
		t.Errorf("message = %q", de.Message)
	}

	// the machine recovers and keeps working
	res, err := machine.Call("check", int32(0))
	if err != nil || res != int32(0) {
		t.Errorf("check(0) = %v, %v", res, err)
	}

	_, err = machine.Call("greet", "not a record")
	if diagnostics.CodeOf(err) != diagnostics.InvalidType {
		t.Errorf("got %v, want InvalidType", err)
	}

	if _, err := machine.Call("missing"); err == nil {
		t.Error("unknown export should fail")
	}
}

func TestCallInto(t *testing.T) {
	machine := newMachine(t)
	if err := machine.LoadImage(buildApp(t)); err != nil {
		t.Fatalf("LoadImage: %v", err)
	}

	var n int64
	if err := machine.CallInto(&n, "quadruple", 3); err != nil {
		t.Fatalf("CallInto: %v", err)
	}
	if n != 12 {
		t.Errorf("n = %d, want 12", n)
	}

	var pair []string
	if err := machine.CallInto(&pair, "pair", "x", "y"); err != nil {
		t.Fatalf("CallInto: %v", err)
	}
	if !reflect.DeepEqual(pair, []string{"x", "y"}) {
		t.Errorf("pair = %v", pair)
	}
}

func TestLoadFile(t *testing.T) {
	data, err := buildApp(t).Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	dir := t.TempDir()
	plain := filepath.Join(dir, "app.elai")
	if err := os.WriteFile(plain, data, 0644); err != nil {
		t.Fatal(err)
	}
	packed, err := vm.PackSelfContained([]byte("host"), buildApp(t))
	if err != nil {
		t.Fatal(err)
	}
	bundled := filepath.Join(dir, "app")
	if err := os.WriteFile(bundled, packed, 0755); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{plain, bundled} {
		machine := newMachine(t)
		if err := machine.LoadFile(path); err != nil {
			t.Fatalf("LoadFile(%s): %v", path, err)
		}
		res, err := machine.Call("quadruple", 1)
		if err != nil || res != int32(4) {
			t.Errorf("%s: quadruple(1) = %v, %v", path, res, err)
		}
	}
}

// Glyph carries one rune as an int and one as a char.
type Glyph struct {
	Code   rune `ela:"code"`
	Symbol rune `ela:"symbol,char"`
}

func TestMarshallerChars(t *testing.T) {
	m := ela.NewMarshaller()

	v, err := m.ToValue(ela.Char('x'))
	if err != nil || v.Kind() != object.KindChar || v.AsChar() != 'x' {
		t.Errorf("Char = %v (%s), %v", v, v.Kind(), err)
	}
	if v, _ = m.ToValue('x'); v.Kind() != object.KindInt {
		t.Errorf("rune became %s, want int", v.Kind())
	}
	if v, _ = m.ToValue(object.Char('y')); v.Kind() != object.KindChar {
		t.Errorf("object.Value passthrough gave %s", v.Kind())
	}

	rec, err := m.ToValue(Glyph{Code: 'a', Symbol: 'b'})
	if err != nil {
		t.Fatalf("ToValue: %v", err)
	}
	if s := rec.String(); s != "{code=97,symbol='b'}" {
		t.Errorf("record = %s", s)
	}
	back, err := m.FromValue(object.NewContext(nil, object.ShowOptions{}), rec, reflect.TypeOf(Glyph{}))
	if err != nil {
		t.Fatalf("FromValue: %v", err)
	}
	if g := back.(Glyph); g.Code != 'a' || g.Symbol != 'b' {
		t.Errorf("glyph = %+v", g)
	}

	if _, err := m.ToValue(struct {
		Name string `ela:"name,char"`
	}{}); err == nil {
		t.Error("char option on a string field should fail")
	}
}

func TestMarshallerUnsignedRange(t *testing.T) {
	m := ela.NewMarshaller()
	tests := []struct {
		in   interface{}
		want string
	}{
		{uint32(math.MaxInt32), "2147483647"},
		{uint32(math.MaxUint32), "4294967295L"},
		{uint64(math.MaxInt64), "9223372036854775807L"},
	}
	for _, tt := range tests {
		v, err := m.ToValue(tt.in)
		if err != nil || v.String() != tt.want {
			t.Errorf("ToValue(%v) = %s, %v; want %s", tt.in, v, err, tt.want)
		}
	}

	for _, in := range []interface{}{uint64(math.MaxInt64) + 1, uint64(math.MaxUint64), []uint64{1, math.MaxUint64}} {
		if v, err := m.ToValue(in); err == nil {
			t.Errorf("ToValue(%v) = %s, want an overflow error", in, v)
		}
	}
}
