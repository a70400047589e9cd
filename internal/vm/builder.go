package vm

import (
	"errors"
	"fmt"

	"github.com/funvibe/ela/internal/match"
	"github.com/funvibe/ela/internal/object"
)

// Builder assembles a module instruction by instruction. It is what a code
// generator drives, and what tests use to write programs by hand.
type Builder struct {
	m       *Module
	strings map[string]int32
	open    map[int]int // function index -> debug symbol index
	err     error
}

func NewBuilder(name string) *Builder {
	return &Builder{
		m:       &Module{Name: name, Exports: make(map[string]int), Debug: &DebugInfo{}},
		strings: make(map[string]int32),
		open:    make(map[int]int),
	}
}

// Here is the address of the next instruction.
func (b *Builder) Here() int { return len(b.m.Code) }

// Emit appends an instruction and returns its address.
func (b *Builder) Emit(op Opcode, operands ...int32) int {
	in := Instr{Op: op}
	if len(operands) > 0 {
		in.A = operands[0]
	}
	if len(operands) > 1 {
		in.B = operands[1]
	}
	if len(operands) > 2 {
		b.fail(fmt.Errorf("%s: too many operands", op))
	}
	b.m.Code = append(b.m.Code, in)
	return len(b.m.Code) - 1
}

// Patch sets the A operand of the instruction at pc, for forward jumps.
func (b *Builder) Patch(pc int, a int) {
	if pc < 0 || pc >= len(b.m.Code) {
		b.fail(fmt.Errorf("patch of missing instruction %d", pc))
		return
	}
	b.m.Code[pc].A = int32(a)
}

// Line records that code emitted from here on comes from line:col.
func (b *Builder) Line(line, col int) *Builder {
	lines := b.m.Debug.Lines
	if n := len(lines); n > 0 && lines[n-1].Offset == b.Here() {
		lines[n-1].Line, lines[n-1].Column = line, col
		return b
	}
	b.m.Debug.Lines = append(lines, LineSym{Offset: b.Here(), Line: line, Column: col})
	return b
}

// File sets the source file name recorded in the debug info.
func (b *Builder) File(name string) *Builder {
	b.m.Debug.File = name
	return b
}

// Const adds a scalar constant and returns its index.
func (b *Builder) Const(v object.Value) int32 {
	c, err := ConstOf(v)
	if err != nil {
		b.fail(err)
		return 0
	}
	for i, have := range b.m.Consts {
		if have == c {
			return int32(i)
		}
	}
	b.m.Consts = append(b.m.Consts, c)
	return int32(len(b.m.Consts) - 1)
}

// Str interns a string and returns its index.
func (b *Builder) Str(s string) int32 {
	if i, ok := b.strings[s]; ok {
		return i
	}
	i := int32(len(b.m.Strings))
	b.m.Strings = append(b.m.Strings, s)
	b.strings[s] = i
	return i
}

// Global allocates a global slot, exporting it under name when export is
// set.
func (b *Builder) Global(name string, export bool) int32 {
	slot := b.m.Globals
	b.m.Globals++
	if export {
		b.m.Exports[name] = slot
	}
	return int32(slot)
}

// Main marks the current address as the start of the top-level code.
func (b *Builder) Main() *Builder {
	b.m.Entry = b.Here()
	return b
}

// Locals sets the number of local slots of the top-level code.
func (b *Builder) Locals(n int) *Builder {
	b.m.Locals = n
	return b
}

// Import declares a dependency and returns its import index.
func (b *Builder) Import(module string) int {
	for i, imp := range b.m.Imports {
		if imp.Module == module {
			return i
		}
	}
	b.m.Imports = append(b.m.Imports, Import{Module: module})
	return len(b.m.Imports) - 1
}

// Extern declares a reference to export name of import imp.
func (b *Builder) Extern(imp int, name string) int32 {
	for i, ext := range b.m.Externs {
		if ext.Import == imp && ext.Name == name {
			return int32(i)
		}
	}
	b.m.Externs = append(b.m.Externs, Extern{Import: imp, Name: name})
	return int32(len(b.m.Externs) - 1)
}

// Func starts a function at the current address and returns its index.
// Code for it follows until EndFunc.
func (b *Builder) Func(name string, arity, locals int, variadic bool) int32 {
	b.m.Funcs = append(b.m.Funcs, FuncDef{Name: name, Entry: b.Here(), Arity: arity, Locals: locals, Variadic: variadic})
	idx := len(b.m.Funcs) - 1
	// the symbol starts one before the entry so the entry itself is inside
	b.m.Debug.Functions = append(b.m.Debug.Functions, FunSym{Name: name, Start: b.Here() - 1, End: -1})
	b.open[idx] = len(b.m.Debug.Functions) - 1
	return int32(idx)
}

// EndFunc closes the debug symbol of function idx at the current address.
func (b *Builder) EndFunc(idx int32) {
	sym, ok := b.open[int(idx)]
	if !ok {
		b.fail(fmt.Errorf("function %d is not open", idx))
		return
	}
	delete(b.open, int(idx))
	b.m.Debug.Functions[sym].End = b.Here()
}

// Scope records a lexical scope and its variables.
func (b *Builder) Scope(index, parent, start, end int, vars ...VarSym) {
	b.m.Debug.Scopes = append(b.m.Debug.Scopes, ScopeSym{Index: index, Parent: parent, Start: start, End: end})
	for _, v := range vars {
		v.Scope = index
		b.m.Debug.Vars = append(b.m.Debug.Vars, v)
	}
}

// Match compiles a match table whose bindings land in locals from base.
// Arm bodies are patched in later with ArmBody.
func (b *Builder) Match(base int, arms ...MatchCase) int32 {
	def := MatchDef{Base: base}
	for _, c := range arms {
		guard := -1
		if c.Guard != nil {
			guard = int(*c.Guard)
		}
		def.Arms = append(def.Arms, MatchArm{
			Arm:   match.Compile(c.Pattern, b, c.Guard != nil),
			Body:  c.Body,
			Guard: guard,
		})
	}
	b.m.Matches = append(b.m.Matches, def)
	return int32(len(b.m.Matches) - 1)
}

// ArmBody sets the body address of arm of match table idx.
func (b *Builder) ArmBody(idx int32, arm, body int) {
	b.m.Matches[idx].Arms[arm].Body = body
}

// MatchCase is one source-level arm handed to Match.
type MatchCase struct {
	Pattern match.Pattern
	Guard   *int32
	Body    int
}

// Guarded returns a pointer to the guard function index g.
func Guarded(g int32) *int32 { return &g }

func (b *Builder) fail(err error) { b.err = errors.Join(b.err, err) }

// Build returns the module, or the misuses recorded while building.
func (b *Builder) Build() (*Module, error) {
	if len(b.open) > 0 {
		b.fail(fmt.Errorf("%d function(s) not closed", len(b.open)))
	}
	if b.err != nil {
		return nil, fmt.Errorf("module %s: %w", b.m.Name, b.err)
	}
	return b.m, nil
}
