package vm

import (
	"errors"
	"fmt"

	"github.com/funvibe/ela/internal/diagnostics"
	"github.com/funvibe/ela/internal/match"
	"github.com/funvibe/ela/internal/object"
)

// execute runs instructions until the frame entered at depth stopDepth
// returns to EndOfProgram or the program halts.
func (w *Worker) execute(stopDepth int) (object.Value, error) {
	saved := w.boundary
	w.boundary = stopDepth
	defer func() { w.boundary = saved }()

	for {
		done, v, err := w.step()
		if err != nil {
			return object.Value{}, err
		}
		if done {
			return v, nil
		}
	}
}

// step executes one instruction. Stack discipline violations raised as
// panics by push/pop are turned into InternalFatal errors here.
func (w *Worker) step() (done bool, result object.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = w.stackFault(r)
		}
	}()

	m := w.module
	if m == nil || w.ip < 0 || w.ip >= len(m.Code) {
		return false, object.Value{}, w.ctx.Fail(diagnostics.InternalFatal, "instruction pointer %d out of range", w.ip)
	}
	in := m.Code[w.ip]
	w.ip++
	w.stats.Instructions++

	done, result, err = w.dispatch(m, in)
	if err == nil {
		return done, result, nil
	}
	var req *object.CallRequest
	if errors.As(err, &req) {
		return false, object.Value{}, w.trampoline(req)
	}
	return false, object.Value{}, err
}

// stackFault converts a panic raised by the stack primitives into an error
// and re-panics anything else.
func (w *Worker) stackFault(r interface{}) error {
	e, ok := r.(error)
	if !ok {
		panic(r)
	}
	switch {
	case errors.Is(e, errStackOverflow):
		return w.ctx.Fail(diagnostics.StackOverflow, "operand stack exceeds %d values", w.opts.MaxStack)
	case errors.Is(e, errStackUnderflow), errors.Is(e, errBadOperand):
		return w.ctx.Fail(diagnostics.InternalFatal, "%v", e)
	}
	panic(r)
}

func (w *Worker) dispatch(m *Module, in Instr) (bool, object.Value, error) {
	ctx := w.ctx
	switch in.Op {
	case OP_NOP:

	case OP_PUSH_INT:
		w.push(object.Int(in.A))
	case OP_PUSH_CONST:
		w.push(m.consts[in.A])
	case OP_PUSH_STR:
		w.push(object.String(m.Strings[in.A]))
	case OP_PUSH_UNIT:
		w.push(object.Unit())
	case OP_PUSH_TRUE:
		w.push(object.Bool(true))
	case OP_PUSH_FALSE:
		w.push(object.Bool(false))
	case OP_POP:
		w.pop()
	case OP_DUP:
		w.push(w.peek())
	case OP_SWAP:
		b := w.pop()
		a := w.pop()
		w.push(b)
		w.push(a)

	case OP_GET_LOCAL:
		locals := w.frame().locals
		if in.A < 0 || int(in.A) >= len(locals) {
			panic(fmt.Errorf("%w: local %d", errBadOperand, in.A))
		}
		w.push(locals[in.A])
	case OP_SET_LOCAL:
		locals := w.frame().locals
		if in.A < 0 || int(in.A) >= len(locals) {
			panic(fmt.Errorf("%w: local %d", errBadOperand, in.A))
		}
		locals[in.A] = w.pop()
	case OP_GET_CAPTURE:
		fn := w.frame().fn
		if fn == nil || in.A < 0 || int(in.A) >= len(fn.Captures) {
			panic(fmt.Errorf("%w: capture %d", errBadOperand, in.A))
		}
		w.push(fn.Captures[in.A])
	case OP_GET_GLOBAL:
		w.push(w.globals[w.handle][in.A])
	case OP_SET_GLOBAL:
		w.globals[w.handle][in.A] = w.pop()
	case OP_GET_EXTERN:
		ref := m.externs[in.A]
		w.push(w.globals[ref.module][ref.slot])

	case OP_ADD, OP_SUB, OP_MUL, OP_DIV, OP_REM, OP_POW:
		b := w.pop()
		a := w.pop()
		return w.result(object.Arith(ctx, arithOps[in.Op], a, b))
	case OP_NEG:
		return w.result(object.Negate(ctx, w.pop()))

	case OP_BAND, OP_BOR, OP_BXOR, OP_LSHIFT, OP_RSHIFT:
		b := w.pop()
		a := w.pop()
		return w.result(object.Bitwise(ctx, bitwiseOps[in.Op], a, b))
	case OP_BNOT:
		return w.result(object.BitNot(ctx, w.pop()))

	case OP_EQ, OP_NE, OP_LT, OP_LE, OP_GT, OP_GE:
		b := w.pop()
		a := w.pop()
		return w.result(compareOps[in.Op](ctx, a, b))
	case OP_NOT:
		return w.result(object.Not(ctx, w.pop()))

	case OP_CONCAT:
		b := w.pop()
		a := w.pop()
		return w.result(object.Concat(ctx, a, b))
	case OP_CONS:
		tail := w.pop()
		head := w.pop()
		return w.result(object.Cons(ctx, head, tail))
	case OP_LEN:
		return w.result(object.Len(ctx, w.pop()))
	case OP_FORCE:
		return w.result(object.Force(ctx, w.pop()))
	case OP_SHOW:
		s, err := object.Show(ctx, w.pop())
		if err != nil {
			return false, object.Value{}, err
		}
		w.push(object.String(s))
	case OP_CONVERT:
		return w.result(object.Convert(ctx, w.pop(), object.Kind(in.A)))
	case OP_GET_FIELD:
		return w.result(object.Field(ctx, w.pop(), m.Strings[in.A]))
	case OP_GET_INDEX:
		idx := w.pop()
		seq := w.pop()
		return w.result(object.Index(ctx, seq, idx))
	case OP_GENERATE:
		elem := w.pop()
		seq := w.pop()
		return w.result(object.Generate(ctx, seq, elem))
	case OP_GEN_FINISH:
		return w.result(object.GenerateFinish(ctx, w.pop()))

	case OP_MAKE_LIST:
		w.push(object.FromObject(object.ListOf(w.popN(int(in.A)))))
	case OP_MAKE_TUPLE:
		w.push(object.NewTuple(w.popN(int(in.A))...))
	case OP_MAKE_RECORD:
		pairs := w.popN(2 * int(in.A))
		names := make([]string, in.A)
		values := make([]object.Value, in.A)
		for i := range names {
			name := pairs[2*i]
			if !name.IsString() {
				return false, object.Value{}, ctx.Fail(diagnostics.InvalidType, "record field name must be a string, got %s", name.Kind())
			}
			names[i] = name.AsString()
			values[i] = pairs[2*i+1]
		}
		w.push(object.NewRecord(names, values))
	case OP_MAKE_VARIANT:
		w.push(object.NewVariant(m.Strings[in.A], w.pop()))
	case OP_MAKE_LAZY:
		args := w.popN(int(in.A))
		fn := w.pop()
		w.push(object.FromObject(object.NewLazy(fn, args...)))
	case OP_CLOSURE:
		def := m.Funcs[in.A]
		captures := w.popN(int(in.B))
		w.push(object.FromObject(&object.Function{
			Name:     def.Name,
			Arity:    def.Arity,
			Variadic: def.Variadic,
			Module:   w.handle,
			Entry:    def.Entry,
			Locals:   def.Locals,
			Captures: captures,
		}))

	case OP_JUMP:
		w.ip = int(in.A)
	case OP_JUMP_IF_TRUE, OP_JUMP_IF_FALSE:
		cond, err := object.Force(ctx, w.pop())
		if err != nil {
			return false, object.Value{}, err
		}
		if cond.Kind() != object.KindBool {
			return false, object.Value{}, ctx.Fail(diagnostics.InvalidType, "condition must be bool, got %s", cond.Kind())
		}
		if cond.AsBool() == (in.Op == OP_JUMP_IF_TRUE) {
			w.ip = int(in.A)
		}

	case OP_CALL, OP_TAIL_CALL:
		args := w.popN(int(in.A))
		callee := w.pop()
		return false, object.Value{}, w.callValue(callee, args, in.Op == OP_TAIL_CALL)
	case OP_RETURN:
		return w.ret()
	case OP_MATCH:
		return false, object.Value{}, w.match(m, int(in.A), w.pop())
	case OP_FAIL:
		v, err := object.Force(ctx, w.pop())
		if err != nil {
			return false, object.Value{}, err
		}
		msg := v.AsString()
		if !v.IsString() {
			if msg, err = object.Show(ctx, v); err != nil {
				return false, object.Value{}, err
			}
		}
		return false, object.Value{}, ctx.Fail(diagnostics.UserError, "%s", msg)
	case OP_HALT:
		return w.halt()

	default:
		return false, object.Value{}, ctx.Fail(diagnostics.InternalFatal, "unknown opcode %d", in.Op)
	}
	return false, object.Value{}, nil
}

var arithOps = map[Opcode]object.Op{
	OP_ADD: object.OpAdd,
	OP_SUB: object.OpSub,
	OP_MUL: object.OpMul,
	OP_DIV: object.OpDiv,
	OP_REM: object.OpRem,
	OP_POW: object.OpPow,
}

var bitwiseOps = map[Opcode]object.Op{
	OP_BAND:   object.OpAnd,
	OP_BOR:    object.OpOr,
	OP_BXOR:   object.OpXor,
	OP_LSHIFT: object.OpShl,
	OP_RSHIFT: object.OpShr,
}

var compareOps = map[Opcode]func(*object.Context, object.Value, object.Value) (object.Value, error){
	OP_EQ: object.Eq,
	OP_NE: object.Neq,
	OP_LT: object.Lt,
	OP_LE: object.Le,
	OP_GT: object.Gt,
	OP_GE: object.Ge,
}

// result pushes the value of a trait operation. A deferred call is passed
// through for step to trampoline; its result lands where v would have.
func (w *Worker) result(v object.Value, err error) (bool, object.Value, error) {
	if err != nil {
		return false, object.Value{}, err
	}
	w.push(v)
	return false, object.Value{}, nil
}

// ret pops the current frame and resumes the caller. Returning to
// EndOfProgram ends the running evaluation.
func (w *Worker) ret() (bool, object.Value, error) {
	v := w.pop()
	cp := w.frames[len(w.frames)-1]
	w.frames[len(w.frames)-1] = CallPoint{}
	w.frames = w.frames[:len(w.frames)-1]
	clear(w.stack[cp.base:])
	w.stack = w.stack[:cp.base]

	w.ip = cp.ReturnAddress
	w.switchTo(cp.ModuleHandle)
	if cp.ReturnAddress == EndOfProgram {
		if cp.then != nil {
			v, err := object.ResolveThen(w.ctx, cp.then, v)
			return true, v, err
		}
		return true, v, nil
	}
	if cp.then != nil {
		return false, object.Value{}, w.continueWith(cp.then, v)
	}
	w.push(v)
	return false, object.Value{}, nil
}

// halt stops the running evaluation, dropping every frame above it.
func (w *Worker) halt() (bool, object.Value, error) {
	v := object.Unit()
	if len(w.stack) > w.frameBase() {
		v = w.pop()
	}
	stop := w.boundary
	if stop >= len(w.frames) {
		stop = len(w.frames) - 1
	}
	entry := w.frames[stop]
	clear(w.frames[stop:])
	w.frames = w.frames[:stop]
	clear(w.stack[entry.base:])
	w.stack = w.stack[:entry.base]
	w.ip = entry.ReturnAddress
	w.switchTo(entry.ModuleHandle)
	return true, v, nil
}

// match runs match table idx against scrutinee and continues at the body of
// the selected arm with its bindings stored in the frame's locals.
func (w *Worker) match(m *Module, idx int, scrutinee object.Value) error {
	def := &m.Matches[idx]
	env := &matchEnv{w: w, m: m, handle: w.handle, def: def}
	arm, bindings, err := match.Exec(w.ctx, scrutinee, m.arms[idx], env)
	if err != nil {
		return err
	}
	locals := w.frame().locals
	if def.Base < 0 || def.Base+len(bindings) > len(locals) {
		return w.ctx.Fail(diagnostics.InternalFatal, "match %d binds %d values at local %d of %d", idx, len(bindings), def.Base, len(locals))
	}
	copy(locals[def.Base:], bindings)
	w.ip = def.Arms[arm].Body
	return nil
}

// matchEnv exposes a module's pools to the pattern machine and runs guards
// as nested calls of the guard function with the arm's bindings.
type matchEnv struct {
	w      *Worker
	m      *Module
	handle int
	def    *MatchDef
}

func (e *matchEnv) String(i int32) (string, bool)         { return e.m.String(i) }
func (e *matchEnv) Constant(i int32) (object.Value, bool) { return e.m.Constant(i) }

func (e *matchEnv) Guard(arm int, bindings []object.Value) (bool, error) {
	g := e.def.Arms[arm].Guard
	if g < 0 {
		return true, nil
	}
	def := e.m.Funcs[g]
	var captures []object.Value
	if fn := e.w.frame().fn; fn != nil {
		captures = fn.Captures
	}
	guard := object.FromObject(&object.Function{
		Name:     def.Name,
		Arity:    def.Arity,
		Module:   e.handle,
		Entry:    def.Entry,
		Locals:   def.Locals,
		Captures: captures,
	})
	v, err := e.w.Invoke(guard, bindings)
	if err != nil {
		return false, err
	}
	if v, err = object.Force(e.w.ctx, v); err != nil {
		return false, err
	}
	if v.Kind() != object.KindBool {
		return false, e.w.ctx.Fail(diagnostics.InvalidType, "guard must return bool, got %s", v.Kind())
	}
	return v.AsBool(), nil
}
