package object

import (
	"fmt"

	"github.com/funvibe/ela/internal/diagnostics"
)

// Invoker runs a callable to completion on behalf of a trait operation that
// cannot return control to the dispatch loop (forcing a thunk, evaluating a
// guard). The interpreter implements it.
type Invoker interface {
	Invoke(fn Value, args []Value) (Value, error)
}

// CallRequest asks the dispatch loop to call Fn with Args and use the result
// as the result of the operation that returned it. It is returned as an error
// so the check-and-propagate discipline stays uniform, but it is not a
// failure: the loop trampolines it instead of reporting it.
//
// Then, when set, post-processes the result of the call before it becomes
// the result of the operation. It may defer again.
type CallRequest struct {
	Fn   Value
	Args []Value
	Then Continuation
}

// Continuation maps the result of a deferred call to the operation's result.
type Continuation func(ctx *Context, v Value) (Value, error)

func (r *CallRequest) Error() string {
	return fmt.Sprintf("deferred call of %s with %d argument(s)", r.Fn.kind, len(r.Args))
}

// Context is the per-worker signal channel trait operations report through.
// It is owned by one interpreter instance and never shared.
type Context struct {
	Options ShowOptions

	invoker  Invoker
	failed   bool
	err      *diagnostics.Error
	deferred *CallRequest
}

// NewContext creates a context bound to an invoker.
func NewContext(inv Invoker, opts ShowOptions) *Context {
	return &Context{invoker: inv, Options: opts}
}

// SetInvoker binds the context to an interpreter.
func (c *Context) SetInvoker(inv Invoker) {
	c.invoker = inv
}

// Fail records a failure and returns it.
func (c *Context) Fail(code diagnostics.Code, format string, args ...interface{}) error {
	return c.FailWith(diagnostics.NewError(code, format, args...))
}

// FailWith records an existing error descriptor and returns it.
func (c *Context) FailWith(err *diagnostics.Error) error {
	c.failed = true
	c.err = err
	return err
}

// SetDeferred records a request for the dispatch loop to call fn with args
// and returns it.
func (c *Context) SetDeferred(fn Value, args ...Value) error {
	req := &CallRequest{Fn: fn, Args: args}
	c.failed = true
	c.deferred = req
	return req
}

// SetDeferredThen is SetDeferred with a continuation applied to the result.
func (c *Context) SetDeferredThen(then Continuation, fn Value, args ...Value) error {
	err := c.SetDeferred(fn, args...)
	c.deferred.Then = then
	return err
}

// Failed reports whether an operation has signalled since the last reset.
func (c *Context) Failed() bool { return c.failed }

// Err returns the recorded error descriptor, if any.
func (c *Context) Err() *diagnostics.Error { return c.err }

// Deferred returns the pending call request, if any.
func (c *Context) Deferred() *CallRequest { return c.deferred }

// TakeDeferred clears and returns the pending call request.
func (c *Context) TakeDeferred() *CallRequest {
	req := c.deferred
	c.deferred = nil
	c.failed = c.err != nil
	return req
}

// Reset clears every signal. Show options and the invoker are kept.
func (c *Context) Reset() {
	c.failed = false
	c.err = nil
	c.deferred = nil
}

// Invoke runs fn through the bound interpreter.
func (c *Context) Invoke(fn Value, args ...Value) (Value, error) {
	if c.invoker == nil {
		return Value{}, c.Fail(diagnostics.InternalFatal, "no interpreter bound to context")
	}
	v, err := c.invoker.Invoke(fn, args)
	if err != nil {
		if de, ok := err.(*diagnostics.Error); ok && c.err != de {
			c.FailWith(de)
		}
		return Value{}, err
	}
	return v, nil
}
