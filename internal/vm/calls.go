package vm

import (
	"errors"

	"github.com/funvibe/ela/internal/diagnostics"
	"github.com/funvibe/ela/internal/object"
)

// callValue calls callee with args. Short calls build a partial application,
// natives run immediately and push their result, compiled functions get a
// new frame (or reuse the current one for a tail call) and continue in the
// dispatch loop.
func (w *Worker) callValue(callee object.Value, args []object.Value, tail bool) error {
	callee, err := object.Force(w.ctx, callee)
	if err != nil {
		return err
	}
	fn, ok := callee.Object().(*object.Function)
	if !ok {
		return w.ctx.Fail(diagnostics.InvalidType, "value of kind %s is not callable", callee.Kind())
	}
	w.stats.Calls++

	if len(fn.Applied)+len(args) < fn.Arity {
		w.push(object.FromObject(fn.Apply(args)))
		return nil
	}
	all := args
	if len(fn.Applied) > 0 {
		all = make([]object.Value, 0, len(fn.Applied)+len(args))
		all = append(all, fn.Applied...)
		all = append(all, args...)
	}
	if fn.Variadic {
		rest := object.FromObject(object.ListOf(all[fn.Arity:]))
		all = append(all[:fn.Arity:fn.Arity], rest)
	} else if len(all) > fn.Arity {
		return w.ctx.Fail(diagnostics.TooManyParameters, "%s takes %d argument(s), got %d", fnName(fn), fn.Arity, len(all))
	}

	if fn.IsNative() {
		return w.callNative(fn, all)
	}
	return w.enter(fn, all, tail)
}

func (w *Worker) callNative(fn *object.Function, args []object.Value) error {
	for i := range args {
		want := fn.ArgKind(i)
		if want == object.KindAny {
			continue
		}
		v, err := object.Force(w.ctx, args[i])
		if err != nil {
			return err
		}
		if v.Kind() != want {
			return w.ctx.Fail(diagnostics.InvalidType, "%s: argument %d must be %s, got %s", fnName(fn), i+1, want, v.Kind())
		}
		args[i] = v
	}

	v, err := fn.Native(w.ctx, args)
	if err != nil {
		var req *object.CallRequest
		if errors.As(err, &req) {
			return w.trampoline(req)
		}
		return err
	}
	w.push(v)
	return nil
}

// trampoline performs a deferred call in place of the operation that
// requested it. A continuation is attached to the frame the call pushes, or
// applied at once when the callee completed without one.
func (w *Worker) trampoline(req *object.CallRequest) error {
	w.ctx.TakeDeferred()
	depth := len(w.frames)
	if err := w.callValue(req.Fn, req.Args, false); err != nil || req.Then == nil {
		return err
	}
	if len(w.frames) > depth {
		w.frames[len(w.frames)-1].then = req.Then
		return nil
	}
	return w.continueWith(req.Then, w.pop())
}

// continueWith pushes then(v), trampolining again if it defers.
func (w *Worker) continueWith(then object.Continuation, v object.Value) error {
	r, err := then(w.ctx, v)
	if err != nil {
		var req *object.CallRequest
		if errors.As(err, &req) {
			return w.trampoline(req)
		}
		return err
	}
	w.push(r)
	return nil
}

// enter pushes a frame for a compiled function and jumps to its entry.
func (w *Worker) enter(fn *object.Function, args []object.Value, tail bool) error {
	if w.asm.Module(fn.Module) == nil {
		return w.ctx.Fail(diagnostics.InternalFatal, "%s refers to module %d", fnName(fn), fn.Module)
	}
	n := max(fn.Locals, len(args))
	locals := make([]object.Value, n)
	copy(locals, args)

	if tail && len(w.frames) > 0 && w.frame().fn != nil {
		top := w.frame()
		clear(w.stack[top.base:])
		w.stack = w.stack[:top.base]
		top.fn = fn
		top.locals = locals
	} else {
		if len(w.frames) >= w.opts.MaxCallDepth {
			return w.ctx.Fail(diagnostics.StackOverflow, "call depth exceeds %d", w.opts.MaxCallDepth)
		}
		w.frames = append(w.frames, CallPoint{
			ReturnAddress: w.ip,
			ModuleHandle:  w.handle,
			fn:            fn,
			locals:        locals,
			base:          len(w.stack),
			origin:        EndOfProgram,
		})
		w.stats.MaxDepth = max(w.stats.MaxDepth, len(w.frames))
	}
	w.switchTo(fn.Module)
	w.ip = fn.Entry
	return nil
}

// Invoke runs a saturated call of fn to completion and returns its value.
// It is reentrant: trait operations use it to force thunks and call user
// overloads from inside the dispatch loop. On failure the frames and stack
// slots the call pushed are discarded and the caller's position restored.
func (w *Worker) Invoke(fn object.Value, args []object.Value) (object.Value, error) {
	fn, err := object.Force(w.ctx, fn)
	if err != nil {
		return object.Value{}, err
	}
	f, ok := fn.Object().(*object.Function)
	if !ok {
		return object.Value{}, w.ctx.Fail(diagnostics.InvalidType, "value of kind %s is not callable", fn.Kind())
	}
	if len(f.Applied)+len(args) < f.Arity {
		return object.Value{}, w.ctx.Fail(diagnostics.TooFewParameters, "%s needs %d argument(s), got %d", fnName(f), f.Remaining(), len(args))
	}

	savedIP, savedHandle := w.ip, w.handle
	depth, height := len(w.frames), len(w.stack)

	result, err := w.invoke(fn, args, depth)

	if err != nil {
		w.annotate(err)
		clear(w.frames[depth:])
		w.frames = w.frames[:depth]
		if len(w.stack) > height {
			clear(w.stack[height:])
			w.stack = w.stack[:height]
		}
	}
	w.ip = savedIP
	w.switchTo(savedHandle)
	return result, err
}

func (w *Worker) invoke(fn object.Value, args []object.Value, depth int) (result object.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = w.stackFault(r)
		}
	}()

	origin := w.ip
	w.ip = EndOfProgram
	if err := w.callValue(fn, args, false); err != nil {
		return object.Value{}, err
	}
	if len(w.frames) > depth {
		w.frames[depth].origin = origin
		return w.execute(depth)
	}
	return w.pop(), nil
}

// fail turns err into the structured error reported at the host boundary
// and marks the worker as needing recovery.
func (w *Worker) fail(err error) error {
	var de *diagnostics.Error
	if !errors.As(err, &de) {
		var req *object.CallRequest
		if errors.As(err, &req) {
			de = diagnostics.NewError(diagnostics.InternalFatal, "unresolved %v", req)
		} else {
			de = diagnostics.NewError(diagnostics.InternalFatal, "%v", err)
		}
	}
	w.annotate(de)
	w.broken = true
	w.log.Debug("evaluation failed", "code", de.Code.String(), "error", de.Message)
	return de
}

// annotate attaches the position and trace of the failing instruction once.
func (w *Worker) annotate(err error) {
	var de *diagnostics.Error
	if !errors.As(err, &de) || de.Trace != nil {
		return
	}
	de.Trace = BuildTrace(w.asm, w.CallStackSnapshot())
	if len(de.Trace) > 0 {
		top := de.Trace[0]
		de.Module = top.Module
		de.Line = top.Line
		de.Column = top.Column
	}
}

func fnName(fn *object.Function) string {
	if fn.Name == "" {
		return "lambda"
	}
	return fn.Name
}
