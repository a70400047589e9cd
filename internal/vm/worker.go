package vm

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/funvibe/ela/internal/diagnostics"
	"github.com/funvibe/ela/internal/object"
)

var errStackUnderflow = errors.New("stack underflow")
var errStackOverflow = errors.New("stack overflow")
var errBadOperand = errors.New("bad operand")
var errNeedsRecovery = errors.New("worker failed; call Recover before running again")

// EndOfProgram is the return address of a frame entered from the host. A
// return to it ends the running evaluation and hands the value back.
const EndOfProgram = -1

// Maximum call stack depth to prevent infinite recursion
const DefaultMaxCallDepth = 4096

// Maximum operand stack size to prevent OOM
const DefaultMaxStack = 1024 * 1024 // 1M elements

// CallPoint is one entry of the call stack: where to return to, in which
// module, and the locals of the function running above it.
type CallPoint struct {
	ReturnAddress int
	ModuleHandle  int

	fn     *object.Function
	locals []object.Value
	base   int // operand stack height at entry
	origin int // caller address of a nested invocation, or EndOfProgram
	then   object.Continuation
}

// Options configures a worker.
type Options struct {
	MaxCallDepth int
	MaxStack     int
	Show         object.ShowOptions
	Logger       *slog.Logger
}

// Stats counts work done by a worker.
type Stats struct {
	Instructions uint64
	Calls        uint64
	MaxDepth     int
}

// Worker is one interpreter instance. It owns its operand stack, call stack,
// module globals and execution context, and must be used from a single
// goroutine. Several workers may share one linked Assembly.
type Worker struct {
	ID string

	asm  *Assembly
	opts Options
	log  *slog.Logger
	ctx  *object.Context

	stack  []object.Value
	frames []CallPoint

	ip       int
	handle   int
	module   *Module
	boundary int // call depth at which the running execute loop stops

	globals     [][]object.Value
	initialized []bool
	broken      bool

	stats Stats
}

// NewWorker creates a worker over a linked assembly.
func NewWorker(asm *Assembly, opts Options) (*Worker, error) {
	if !asm.linked {
		return nil, fmt.Errorf("assembly is not linked")
	}
	if opts.MaxCallDepth <= 0 {
		opts.MaxCallDepth = DefaultMaxCallDepth
	}
	if opts.MaxStack <= 0 {
		opts.MaxStack = DefaultMaxStack
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	w := &Worker{
		ID:          uuid.NewString(),
		asm:         asm,
		opts:        opts,
		stack:       make([]object.Value, 0, 256),
		frames:      make([]CallPoint, 0, 64),
		handle:      -1,
		globals:     make([][]object.Value, asm.Len()),
		initialized: make([]bool, asm.Len()),
	}
	w.log = opts.Logger.With("worker", w.ID)
	w.ctx = object.NewContext(w, opts.Show)

	for h, m := range asm.modules {
		w.globals[h] = make([]object.Value, m.Globals)
		copy(w.globals[h], m.preset)
		if len(m.Code) == 0 {
			w.initialized[h] = true
		}
	}
	return w, nil
}

// Context returns the worker's execution context.
func (w *Worker) Context() *object.Context { return w.ctx }

// Assembly returns the assembly the worker runs.
func (w *Worker) Assembly() *Assembly { return w.asm }

// IP returns the address of the next instruction.
func (w *Worker) IP() int { return w.ip }

// ModuleHandle returns the handle of the module being executed, or -1.
func (w *Worker) ModuleHandle() int { return w.handle }

// Depth returns the number of frames on the call stack.
func (w *Worker) Depth() int { return len(w.frames) }

func (w *Worker) Stats() Stats { return w.stats }

// Run initializes the imports of module h, then runs its top-level code and
// returns the value it produces. A module's top-level code runs at most once
// per worker; running it again returns unit.
func (w *Worker) Run(h int) (object.Value, error) {
	depth, ip := len(w.frames), w.ip
	started, err := w.begin(h)
	if err != nil || !started {
		return object.Unit(), err
	}
	v, err := w.execute(depth)
	if err != nil {
		return object.Value{}, w.fail(err)
	}
	w.ip = ip
	return v, nil
}

// Start prepares module h for step-wise execution with Step. Imports are
// initialized eagerly.
func (w *Worker) Start(h int) error {
	_, err := w.begin(h)
	return err
}

func (w *Worker) begin(h int) (bool, error) {
	if w.broken {
		return false, errNeedsRecovery
	}
	m := w.asm.Module(h)
	if m == nil {
		return false, diagnostics.NewError(diagnostics.InternalFatal, "no module with handle %d", h)
	}
	for _, dep := range m.imports {
		if err := w.initModule(dep); err != nil {
			return false, err
		}
	}
	if w.initialized[h] {
		return false, nil
	}
	w.initialized[h] = true
	w.log.Debug("run module", "module", m.Name, "handle", h)
	w.frames = append(w.frames, CallPoint{
		ReturnAddress: EndOfProgram,
		ModuleHandle:  w.handle,
		locals:        make([]object.Value, m.Locals),
		base:          len(w.stack),
		origin:        EndOfProgram,
	})
	w.switchTo(h)
	w.ip = m.Entry
	return true, nil
}

func (w *Worker) initModule(h int) error {
	if w.initialized[h] {
		return nil
	}
	_, err := w.Run(h)
	return err
}

// Step executes a single instruction of the evaluation set up by Start. It
// reports done when the top-level code has returned, with its value.
func (w *Worker) Step() (bool, object.Value, error) {
	if w.broken {
		return false, object.Value{}, errNeedsRecovery
	}
	if len(w.frames) == 0 {
		return true, object.Unit(), nil
	}
	w.boundary = 0
	done, v, err := w.step()
	if err != nil {
		return false, object.Value{}, w.fail(err)
	}
	return done, v, nil
}

// Call calls fn with args from the host and returns its result. The call
// must be saturated.
func (w *Worker) Call(fn object.Value, args ...object.Value) (object.Value, error) {
	if w.broken {
		return object.Value{}, errNeedsRecovery
	}
	v, err := w.Invoke(fn, args)
	if err != nil {
		return object.Value{}, w.fail(err)
	}
	return v, nil
}

// Recover resets the execution context, operand stack and call stack after
// a failure so the worker can run again. Globals and initialized modules are
// kept, which lets a REPL continue its session.
func (w *Worker) Recover() {
	w.ctx.Reset()
	clear(w.stack)
	w.stack = w.stack[:0]
	w.frames = w.frames[:0]
	w.ip = 0
	w.handle = -1
	w.module = nil
	w.boundary = 0
	w.broken = false
}

// Global returns the value of an exported binding of module h.
func (w *Worker) Global(h int, name string) (object.Value, bool) {
	m := w.asm.Module(h)
	if m == nil {
		return object.Value{}, false
	}
	slot, ok := m.Exports[name]
	if !ok {
		return object.Value{}, false
	}
	return w.globals[h][slot], true
}

// ModuleValue returns module h as a first-class value.
func (w *Worker) ModuleValue(h int) object.Value {
	m := w.asm.Module(h)
	if m == nil {
		return object.Unit()
	}
	return object.NewModule(m.Name, h, moduleView{w: w, h: h})
}

type moduleView struct {
	w *Worker
	h int
}

func (v moduleView) Lookup(name string) (object.Value, bool) {
	return v.w.Global(v.h, name)
}

func (v moduleView) Names() []string {
	m := v.w.asm.Module(v.h)
	names := make([]string, 0, len(m.Exports))
	for name := range m.Exports {
		names = append(names, name)
	}
	return names
}

func (w *Worker) switchTo(h int) {
	w.handle = h
	w.module = w.asm.Module(h)
}

// Stack operations

func (w *Worker) push(v object.Value) {
	if len(w.stack) >= w.opts.MaxStack {
		panic(errStackOverflow)
	}
	w.stack = append(w.stack, v)
}

func (w *Worker) pop() object.Value {
	n := len(w.stack)
	if n <= w.frameBase() {
		panic(errStackUnderflow)
	}
	v := w.stack[n-1]
	w.stack[n-1] = object.Value{}
	w.stack = w.stack[:n-1]
	return v
}

// popN pops n values into a new slice, deepest first.
func (w *Worker) popN(n int) []object.Value {
	if n < 0 || len(w.stack)-n < w.frameBase() {
		panic(errStackUnderflow)
	}
	out := make([]object.Value, n)
	copy(out, w.stack[len(w.stack)-n:])
	clear(w.stack[len(w.stack)-n:])
	w.stack = w.stack[:len(w.stack)-n]
	return out
}

func (w *Worker) peek() object.Value {
	if len(w.stack) <= w.frameBase() {
		panic(errStackUnderflow)
	}
	return w.stack[len(w.stack)-1]
}

func (w *Worker) frameBase() int {
	if len(w.frames) == 0 {
		return 0
	}
	return w.frames[len(w.frames)-1].base
}

func (w *Worker) frame() *CallPoint {
	return &w.frames[len(w.frames)-1]
}
