package vm

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/funvibe/ela/internal/object"
)

// ErrQuit is returned by Debugger.Run when the session is ended early.
var ErrQuit = errors.New("debugging session ended")

// DebuggerMode represents the current debugging mode
type DebuggerMode int

const (
	// ModeRun - normal execution (no debugging)
	ModeRun DebuggerMode = iota
	// ModeStep - stop at the next source line
	ModeStep
	// ModeStepOver - step over function calls
	ModeStepOver
	// ModeStepOut - step out of current function
	ModeStepOut
	// ModeContinue - continue until next breakpoint
	ModeContinue
)

// Breakpoint represents a breakpoint location
type Breakpoint struct {
	Module string
	Line   int
}

// Location is a resolved source position of a worker.
type Location struct {
	Module string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.Line > 0 {
		return fmt.Sprintf("%s:%d:%d", l.Module, l.Line, l.Column)
	}
	return l.Module
}

// Debugger drives a worker instruction by instruction and stops at
// breakpoints and line boundaries.
type Debugger struct {
	mode DebuggerMode

	// Breakpoints map: module -> line -> Breakpoint
	breakpoints map[string]map[int]*Breakpoint

	// depth of the call stack when step over / step out started
	startDepth int
	last       Location
	quit       bool

	Output io.Writer

	// OnStop is called when the debugger stops. It picks the next mode by
	// calling Step, StepOver, StepOut, Continue or Detach.
	OnStop func(*Debugger, *Worker)
}

// NewDebugger creates a new debugger instance that stops at the first line.
func NewDebugger(out io.Writer) *Debugger {
	return &Debugger{
		mode:        ModeStep,
		breakpoints: make(map[string]map[int]*Breakpoint),
		Output:      out,
	}
}

// SetBreakpoint sets a breakpoint at the given module and line
func (d *Debugger) SetBreakpoint(module string, line int) *Breakpoint {
	if d.breakpoints[module] == nil {
		d.breakpoints[module] = make(map[int]*Breakpoint)
	}
	bp := &Breakpoint{Module: module, Line: line}
	d.breakpoints[module][line] = bp
	return bp
}

// RemoveBreakpoint removes a breakpoint at the given module and line
func (d *Debugger) RemoveBreakpoint(module string, line int) {
	if d.breakpoints[module] != nil {
		delete(d.breakpoints[module], line)
		if len(d.breakpoints[module]) == 0 {
			delete(d.breakpoints, module)
		}
	}
}

// Breakpoints returns all breakpoints ordered by module and line
func (d *Debugger) Breakpoints() []*Breakpoint {
	var result []*Breakpoint
	for _, lines := range d.breakpoints {
		for _, bp := range lines {
			result = append(result, bp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Module != result[j].Module {
			return result[i].Module < result[j].Module
		}
		return result[i].Line < result[j].Line
	})
	return result
}

func (d *Debugger) Step() { d.mode = ModeStep }

func (d *Debugger) StepOver(w *Worker) {
	d.mode = ModeStepOver
	d.startDepth = w.Depth()
}

func (d *Debugger) StepOut(w *Worker) {
	d.mode = ModeStepOut
	d.startDepth = w.Depth()
}

func (d *Debugger) Continue() { d.mode = ModeContinue }

// Detach runs the rest of the program without stopping.
func (d *Debugger) Detach() { d.mode = ModeRun }

// Quit abandons the program at the current stop.
func (d *Debugger) Quit() {
	d.mode = ModeRun
	d.quit = true
}

// Run executes module h under the debugger.
func (d *Debugger) Run(w *Worker, h int) (object.Value, error) {
	if err := w.Start(h); err != nil {
		return object.Value{}, err
	}
	d.last = Location{}
	d.quit = false
	for {
		if d.shouldBreak(w) && d.OnStop != nil {
			d.OnStop(d, w)
			if d.quit {
				w.Recover()
				return object.Value{}, ErrQuit
			}
		}
		done, v, err := w.Step()
		if err != nil || done {
			return v, err
		}
	}
}

// shouldBreak checks if execution should stop before the next instruction.
// Stops happen only when the source line changes.
func (d *Debugger) shouldBreak(w *Worker) bool {
	if d.mode == ModeRun {
		return false
	}
	loc := d.Location(w)
	if loc.Line == 0 || loc == d.last {
		return false
	}
	prev := d.last
	d.last = loc

	if lines := d.breakpoints[loc.Module]; lines != nil && lines[loc.Line] != nil && loc.Line != prev.Line {
		return true
	}
	switch d.mode {
	case ModeStep:
		return true
	case ModeStepOver:
		return w.Depth() <= d.startDepth
	case ModeStepOut:
		return w.Depth() < d.startDepth
	}
	return false
}

// Location returns the source position of the next instruction.
func (d *Debugger) Location(w *Worker) Location {
	m := w.asm.Module(w.handle)
	if m == nil {
		return Location{}
	}
	loc := Location{Module: m.Name}
	if sym, ok := m.Debug.FindLine(w.ip); ok {
		loc.Line, loc.Column = sym.Line, sym.Column
	}
	return loc
}

// Locals returns the named locals visible at the next instruction. Slots
// without debug names are listed as slotN.
func (d *Debugger) Locals(w *Worker) map[string]object.Value {
	locals := make(map[string]object.Value)
	if len(w.frames) == 0 {
		return locals
	}
	slots := w.frame().locals
	m := w.asm.Module(w.handle)
	named := false
	if m != nil {
		if scope, ok := m.Debug.FindScope(w.ip); ok {
			for _, v := range m.Debug.FindVars(scope.Index) {
				if v.Slot >= 0 && v.Slot < len(slots) {
					locals[v.Name] = slots[v.Slot]
					named = true
				}
			}
		}
	}
	if !named {
		for i, v := range slots {
			locals[fmt.Sprintf("slot%d", i)] = v
		}
	}
	return locals
}

// PrintLocation prints the current location
func (d *Debugger) PrintLocation(w *Worker) {
	fmt.Fprintf(d.Output, "Stopped at %s\n", d.Location(w))
}

// PrintCallStack prints the call stack
func (d *Debugger) PrintCallStack(w *Worker) {
	fmt.Fprintf(d.Output, "Call stack:\n")
	snap := w.CallStackSnapshot()
	if len(snap) > 0 {
		// stopped before the instruction at ip, not after it
		snap[0].Offset = w.ip
	}
	for i, f := range BuildTrace(w.asm, snap) {
		indent := strings.Repeat("  ", i)
		fmt.Fprintf(d.Output, "%s%d. %s\n", indent, i+1, f)
	}
}

// PrintLocals prints local variables
func (d *Debugger) PrintLocals(w *Worker) {
	locals := d.Locals(w)
	if len(locals) == 0 {
		fmt.Fprintf(d.Output, "No local variables in current scope.\n")
		return
	}
	fmt.Fprintf(d.Output, "Local variables:\n")
	names := make([]string, 0, len(locals))
	for name := range locals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(d.Output, "  %s = %s\n", name, object.ShowString(w.ctx, locals[name]))
	}
}

// PrintStack prints the operand stack of the current frame
func (d *Debugger) PrintStack(w *Worker) {
	fmt.Fprintf(d.Output, "Stack (top to bottom):\n")
	base := w.frameBase()
	for i := len(w.stack) - 1; i >= base; i-- {
		fmt.Fprintf(d.Output, "  [%d] %s\n", i-base, object.ShowString(w.ctx, w.stack[i]))
	}
}
