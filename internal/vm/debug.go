package vm

import (
	"sort"

	"github.com/funvibe/ela/internal/diagnostics"
)

// LineSym maps the instruction at Offset, and those after it up to the next
// entry, to a source position. Lines are sorted by Offset.
type LineSym struct {
	Offset int `cbor:"1,keyasint"`
	Line   int `cbor:"2,keyasint"`
	Column int `cbor:"3,keyasint"`
}

// ScopeSym is a lexical scope covering offsets [Start, End).
type ScopeSym struct {
	Index  int `cbor:"1,keyasint"`
	Parent int `cbor:"2,keyasint"`
	Start  int `cbor:"3,keyasint"`
	End    int `cbor:"4,keyasint"`
}

// VarSym names a local slot within a scope.
type VarSym struct {
	Name  string `cbor:"1,keyasint"`
	Scope int    `cbor:"2,keyasint"`
	Slot  int    `cbor:"3,keyasint"`
}

// FunSym is a function body covering offsets (Start, End).
type FunSym struct {
	Name  string `cbor:"1,keyasint"`
	Start int    `cbor:"2,keyasint"`
	End   int    `cbor:"3,keyasint"`
}

// DebugInfo holds the optional debug symbols of a module.
type DebugInfo struct {
	File      string     `cbor:"1,keyasint,omitempty"`
	Lines     []LineSym  `cbor:"2,keyasint,omitempty"`
	Scopes    []ScopeSym `cbor:"3,keyasint,omitempty"`
	Vars      []VarSym   `cbor:"4,keyasint,omitempty"`
	Functions []FunSym   `cbor:"5,keyasint,omitempty"`
}

// FindLine returns the line entry with the greatest offset not after offset.
func (d *DebugInfo) FindLine(offset int) (LineSym, bool) {
	if d == nil {
		return LineSym{}, false
	}
	i := sort.Search(len(d.Lines), func(i int) bool { return d.Lines[i].Offset > offset })
	if i == 0 {
		return LineSym{}, false
	}
	return d.Lines[i-1], true
}

// FindFunction returns the function whose body strictly contains offset.
// When several do, the one recorded last wins, which is the innermost for
// symbols emitted in nesting order.
func (d *DebugInfo) FindFunction(offset int) (FunSym, bool) {
	if d == nil {
		return FunSym{}, false
	}
	var found FunSym
	ok := false
	for _, f := range d.Functions {
		if f.Start < offset && offset < f.End {
			found, ok = f, true
		}
	}
	return found, ok
}

// FindScope returns the innermost scope containing offset.
func (d *DebugInfo) FindScope(offset int) (ScopeSym, bool) {
	if d == nil {
		return ScopeSym{}, false
	}
	var found ScopeSym
	ok := false
	for _, s := range d.Scopes {
		if s.Start <= offset && offset < s.End {
			if !ok || s.End-s.Start <= found.End-found.Start {
				found, ok = s, true
			}
		}
	}
	return found, ok
}

// FindVars returns the variables visible in scope, walking outwards through
// parent scopes. Inner names shadow outer ones.
func (d *DebugInfo) FindVars(scope int) []VarSym {
	if d == nil {
		return nil
	}
	parents := make(map[int]int, len(d.Scopes))
	for _, s := range d.Scopes {
		parents[s.Index] = s.Parent
	}

	var out []VarSym
	seen := make(map[string]bool)
	for s, depth := scope, 0; depth <= len(d.Scopes); depth++ {
		for _, v := range d.Vars {
			if v.Scope == s && !seen[v.Name] {
				seen[v.Name] = true
				out = append(out, v)
			}
		}
		p, ok := parents[s]
		if !ok || p == s {
			break
		}
		s = p
	}
	return out
}

// Position is one entry of a call stack snapshot.
type Position struct {
	Module   int
	Offset   int
	Function string
}

// CallStackSnapshot returns the positions of the running call chain,
// innermost first. Frames entered from the host contribute no caller.
func (w *Worker) CallStackSnapshot() []Position {
	if len(w.frames) == 0 || w.handle < 0 {
		return nil
	}
	out := make([]Position, 0, len(w.frames))
	module, offset := w.handle, w.ip-1
	for i := len(w.frames) - 1; i >= 0; i-- {
		cp := &w.frames[i]
		name := ""
		if cp.fn != nil {
			name = fnName(cp.fn)
		}
		if module >= 0 {
			out = append(out, Position{Module: module, Offset: offset, Function: name})
		}
		caller := cp.ReturnAddress
		if caller == EndOfProgram {
			caller = cp.origin
		}
		if caller == EndOfProgram {
			module = -1
			continue
		}
		module, offset = cp.ModuleHandle, caller-1
	}
	return out
}

// BuildTrace resolves positions against the debug symbols of their modules.
func BuildTrace(asm *Assembly, snapshot []Position) []diagnostics.Frame {
	trace := make([]diagnostics.Frame, 0, len(snapshot))
	for _, pos := range snapshot {
		m := asm.Module(pos.Module)
		if m == nil {
			continue
		}
		f := diagnostics.Frame{Module: m.Name, Offset: pos.Offset, Function: pos.Function}
		if line, ok := m.Debug.FindLine(pos.Offset); ok {
			f.Line, f.Column = line.Line, line.Column
		}
		if fn, ok := m.Debug.FindFunction(pos.Offset); ok {
			f.Function = fn.Name
		}
		trace = append(trace, f)
	}
	return trace
}
