package match

import (
	"github.com/funvibe/ela/internal/diagnostics"
	"github.com/funvibe/ela/internal/object"
)

// Env resolves operands of tests and evaluates guards.
type Env interface {
	String(i int32) (string, bool)
	Constant(i int32) (object.Value, bool)
	// Guard evaluates the guard of arm against its tentative bindings.
	Guard(arm int, bindings []object.Value) (bool, error)
}

// Exec matches scrutinee against arms in order and returns the index of the
// first arm whose tests and guard succeed, with its bindings. Each attempt
// binds into a fresh slice, so a failed or guard-rejected arm leaves nothing
// behind. Errors from forcing, guards or a malformed program are returned
// as is; running out of arms fails with MatchFailed.
func Exec(ctx *object.Context, scrutinee object.Value, arms []Arm, env Env) (int, []object.Value, error) {
	m := &machine{ctx: ctx, env: env}
	for i := range arms {
		arm := &arms[i]
		bindings := make([]object.Value, arm.Bindings)
		ok, err := m.run(arm, scrutinee, bindings)
		if err != nil {
			return -1, nil, err
		}
		if !ok {
			continue
		}
		if arm.Guarded {
			pass, err := env.Guard(i, bindings)
			if err != nil {
				return -1, nil, err
			}
			if !pass {
				continue
			}
		}
		return i, bindings, nil
	}
	return -1, nil, ctx.Fail(diagnostics.MatchFailed, "no pattern matches %s", object.ShowString(ctx, scrutinee))
}

type machine struct {
	ctx   *object.Context
	env   Env
	stack []object.Value
}

func (m *machine) push(v object.Value) {
	m.stack = append(m.stack, v)
}

func (m *machine) pop() object.Value {
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v
}

// top forces the value on top of the stack in place.
func (m *machine) top() (object.Value, error) {
	v, err := object.Force(m.ctx, m.stack[len(m.stack)-1])
	if err != nil {
		return v, err
	}
	m.stack[len(m.stack)-1] = v
	return v, nil
}

func (m *machine) malformed(t Test, format string, args ...interface{}) error {
	err := diagnostics.NewError(diagnostics.InternalFatal, format, args...)
	err.Message = "pattern test " + t.String() + ": " + err.Message
	return m.ctx.FailWith(err)
}

// run executes one arm. It reports false when a test fails.
func (m *machine) run(arm *Arm, scrutinee object.Value, bindings []object.Value) (bool, error) {
	m.stack = append(m.stack[:0], scrutinee)
	for _, t := range arm.Tests {
		if len(m.stack) == 0 {
			return false, m.malformed(t, "work stack underflow")
		}
		// binding and skipping keep thunks unevaluated
		var v object.Value
		switch t.Op {
		case TestBind, TestSkip, TestDrop:
		default:
			var err error
			if v, err = m.top(); err != nil {
				return false, err
			}
		}

		switch t.Op {
		case TestKind:
			if v.Kind() != object.Kind(t.Arg) {
				return false, nil
			}

		case TestTuple:
			tup, ok := v.Object().(*object.Tuple)
			if !ok || len(tup.Elements) != int(t.Arg) {
				return false, nil
			}
			m.pop()
			for i := len(tup.Elements) - 1; i >= 0; i-- {
				m.push(tup.Elements[i])
			}

		case TestField:
			rec, ok := v.Object().(*object.Record)
			if !ok {
				return false, nil
			}
			name, ok := m.env.String(t.Arg)
			if !ok {
				return false, m.malformed(t, "bad string index")
			}
			field, ok := rec.Get(name)
			if !ok {
				return false, nil
			}
			m.push(field)

		case TestDrop, TestSkip:
			m.pop()

		case TestCons:
			l, ok := v.Object().(*object.List)
			if !ok || l.IsEmpty() {
				return false, nil
			}
			m.pop()
			m.push(object.FromObject(l.Tail()))
			m.push(l.Head())

		case TestNil:
			l, ok := v.Object().(*object.List)
			if !ok || !l.IsEmpty() {
				return false, nil
			}
			m.pop()

		case TestVariant:
			vr, ok := v.Object().(*object.Variant)
			if !ok {
				return false, nil
			}
			tag, ok := m.env.String(t.Arg)
			if !ok {
				return false, m.malformed(t, "bad string index")
			}
			if vr.Tag != tag {
				return false, nil
			}
			m.pop()
			m.push(vr.Payload)

		case TestLiteral:
			lit, ok := m.env.Constant(t.Arg)
			if !ok {
				return false, m.malformed(t, "bad constant index")
			}
			eq, err := object.Equals(m.ctx, v, lit)
			if err != nil {
				return false, err
			}
			if !eq {
				return false, nil
			}
			m.pop()

		case TestBind:
			if t.Arg < 0 || int(t.Arg) >= len(bindings) {
				return false, m.malformed(t, "binding slot out of range")
			}
			bindings[t.Arg] = m.pop()

		default:
			return false, m.malformed(t, "unknown test")
		}
	}
	return true, nil
}
