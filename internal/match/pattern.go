// Package match executes compiled pattern-match sequences.
//
// A pattern compiles to a straight-line list of primitive tests run over a
// work stack that starts with the scrutinee. A test either succeeds and
// reshapes the stack or fails, which moves execution to the next arm.
package match

import (
	"fmt"

	"github.com/funvibe/ela/internal/object"
)

// TestOp is a primitive pattern test.
type TestOp uint8

const (
	TestKind    TestOp = iota // top has kind Arg
	TestTuple                 // top is a tuple of arity Arg; replaced by its elements, first on top
	TestField                 // top is a record with field Strings[Arg]; the field value is pushed
	TestDrop                  // discard top
	TestCons                  // top is a non-empty list; replaced by tail, then head on top
	TestNil                   // top is the empty list; popped
	TestVariant               // top is a variant tagged Strings[Arg]; replaced by its payload
	TestLiteral               // top equals Consts[Arg]; popped
	TestBind                  // pop top into binding slot Arg
	TestSkip                  // wildcard; popped
)

var testNames = [...]string{
	TestKind:    "KIND",
	TestTuple:   "TUPLE",
	TestField:   "FIELD",
	TestDrop:    "DROP",
	TestCons:    "CONS",
	TestNil:     "NIL",
	TestVariant: "VARIANT",
	TestLiteral: "LITERAL",
	TestBind:    "BIND",
	TestSkip:    "SKIP",
}

func (op TestOp) String() string {
	if int(op) < len(testNames) {
		return testNames[op]
	}
	return fmt.Sprintf("TEST_%d", uint8(op))
}

// Test is one instruction of a compiled pattern.
type Test struct {
	Op  TestOp `cbor:"1,keyasint"`
	Arg int32  `cbor:"2,keyasint"`
}

func (t Test) String() string {
	switch t.Op {
	case TestDrop, TestCons, TestNil, TestSkip:
		return t.Op.String()
	}
	return fmt.Sprintf("%s %d", t.Op, t.Arg)
}

// Arm is a compiled match arm.
type Arm struct {
	Tests    []Test `cbor:"1,keyasint"`
	Bindings int    `cbor:"2,keyasint"`
	Guarded  bool   `cbor:"3,keyasint"`
}

// Pool interns the strings and constants a pattern refers to.
type Pool interface {
	Str(s string) int32
	Const(v object.Value) int32
}

// Pattern is the source form of a pattern, used by code generators and tests.
type Pattern interface {
	compile(c *compiler)
}

type (
	// Wild matches anything without binding.
	Wild struct{}
	// Bind matches anything and stores it in binding slot Slot.
	Bind struct{ Slot int }
	// Lit matches a value equal to V.
	Lit struct{ V object.Value }
	// Kind matches values of a runtime kind, then Inner (nil means wildcard).
	Kind struct {
		K     object.Kind
		Inner Pattern
	}
	// Tuple matches a tuple of exactly len(Elems) elements.
	Tuple struct{ Elems []Pattern }
	// Record matches a record having every named field.
	Record struct {
		Names  []string
		Fields []Pattern
	}
	// Cons matches a non-empty list.
	Cons struct{ Head, Tail Pattern }
	// Nil matches the empty list.
	Nil struct{}
	// Variant matches a variant by tag.
	Variant struct {
		Tag     string
		Payload Pattern
	}
)

type compiler struct {
	pool  Pool
	tests []Test
	slots int
}

func (c *compiler) emit(op TestOp, arg int32) {
	c.tests = append(c.tests, Test{Op: op, Arg: arg})
}

func (c *compiler) sub(p Pattern) {
	if p == nil {
		c.emit(TestSkip, 0)
		return
	}
	p.compile(c)
}

func (Wild) compile(c *compiler) { c.emit(TestSkip, 0) }

func (b Bind) compile(c *compiler) {
	c.emit(TestBind, int32(b.Slot))
	if b.Slot+1 > c.slots {
		c.slots = b.Slot + 1
	}
}

func (l Lit) compile(c *compiler) { c.emit(TestLiteral, c.pool.Const(l.V)) }

func (k Kind) compile(c *compiler) {
	c.emit(TestKind, int32(k.K))
	c.sub(k.Inner)
}

func (t Tuple) compile(c *compiler) {
	c.emit(TestTuple, int32(len(t.Elems)))
	for _, e := range t.Elems {
		c.sub(e)
	}
}

func (r Record) compile(c *compiler) {
	for i, name := range r.Names {
		c.emit(TestField, c.pool.Str(name))
		c.sub(r.Fields[i])
	}
	c.emit(TestDrop, 0)
}

func (l Cons) compile(c *compiler) {
	c.emit(TestCons, 0)
	c.sub(l.Head)
	c.sub(l.Tail)
}

func (Nil) compile(c *compiler) { c.emit(TestNil, 0) }

func (v Variant) compile(c *compiler) {
	c.emit(TestVariant, c.pool.Str(v.Tag))
	c.sub(v.Payload)
}

// Compile turns a pattern into an arm.
func Compile(p Pattern, pool Pool, guarded bool) Arm {
	c := &compiler{pool: pool}
	c.sub(p)
	return Arm{Tests: c.tests, Bindings: c.slots, Guarded: guarded}
}

// Tables is an in-memory Pool that also resolves indices for Exec.
type Tables struct {
	Strings []string
	Consts  []object.Value
}

func (t *Tables) Str(s string) int32 {
	for i, x := range t.Strings {
		if x == s {
			return int32(i)
		}
	}
	t.Strings = append(t.Strings, s)
	return int32(len(t.Strings) - 1)
}

func (t *Tables) Const(v object.Value) int32 {
	t.Consts = append(t.Consts, v)
	return int32(len(t.Consts) - 1)
}

func (t *Tables) String(i int32) (string, bool) {
	if i < 0 || int(i) >= len(t.Strings) {
		return "", false
	}
	return t.Strings[i], true
}

func (t *Tables) Constant(i int32) (object.Value, bool) {
	if i < 0 || int(i) >= len(t.Consts) {
		return object.Value{}, false
	}
	return t.Consts[i], true
}
