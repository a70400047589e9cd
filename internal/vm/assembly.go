package vm

import (
	"fmt"

	"github.com/funvibe/ela/internal/diagnostics"
	"github.com/funvibe/ela/internal/match"
	"github.com/funvibe/ela/internal/object"
)

// Assembly is the set of modules a program consists of, addressed by handle.
// After Link it is immutable and may be shared by any number of workers.
type Assembly struct {
	modules []*Module
	byName  map[string]int
	order   []int
	linked  bool
}

func NewAssembly() *Assembly {
	return &Assembly{byName: make(map[string]int)}
}

// Add registers a module and returns its handle.
func (a *Assembly) Add(m *Module) (int, error) {
	if a.linked {
		return -1, fmt.Errorf("assembly is already linked")
	}
	if _, dup := a.byName[m.Name]; dup {
		return -1, fmt.Errorf("duplicate module %s", m.Name)
	}
	a.modules = append(a.modules, m)
	a.byName[m.Name] = len(a.modules) - 1
	return len(a.modules) - 1, nil
}

// Module returns the module with handle h.
func (a *Assembly) Module(h int) *Module {
	if h < 0 || h >= len(a.modules) {
		return nil
	}
	return a.modules[h]
}

// Lookup finds a module handle by name.
func (a *Assembly) Lookup(name string) (int, bool) {
	h, ok := a.byName[name]
	return h, ok
}

// Len is the number of modules.
func (a *Assembly) Len() int { return len(a.modules) }

// Order is the initialization order: every module after its imports.
func (a *Assembly) Order() []int { return a.order }

// Link resolves import names to handles and extern references to global
// slots once, and materializes constant pools. Name lookups never happen
// while code runs.
func (a *Assembly) Link() error {
	if a.linked {
		return nil
	}
	for h, m := range a.modules {
		if err := a.linkModule(h, m); err != nil {
			return err
		}
	}
	order, err := a.initOrder()
	if err != nil {
		return err
	}
	a.order = order
	a.linked = true
	return nil
}

func (a *Assembly) linkModule(h int, m *Module) error {
	if err := validateHeader(m); err != nil {
		return err
	}
	m.consts = make([]object.Value, len(m.Consts))
	for i, c := range m.Consts {
		v, err := c.Value()
		if err != nil {
			return fmt.Errorf("module %s: constant %d: %w", m.Name, i, err)
		}
		m.consts[i] = v
	}

	m.imports = make([]int, len(m.Imports))
	for i, imp := range m.Imports {
		target, ok := a.byName[imp.Module]
		if !ok {
			return diagnostics.NewError(diagnostics.UndefinedVariable, "module %s imports unknown module %s", m.Name, imp.Module)
		}
		m.imports[i] = target
	}

	m.externs = make([]externRef, len(m.Externs))
	for i, ext := range m.Externs {
		if ext.Import < 0 || ext.Import >= len(m.imports) {
			return diagnostics.NewError(diagnostics.InternalFatal, "module %s: extern %d refers to import %d", m.Name, i, ext.Import)
		}
		target := a.modules[m.imports[ext.Import]]
		slot, ok := target.Exports[ext.Name]
		if !ok {
			return diagnostics.NewError(diagnostics.UndefinedVariable, "module %s does not export %s", target.Name, ext.Name)
		}
		m.externs[i] = externRef{module: m.imports[ext.Import], slot: slot}
	}

	m.arms = make([][]match.Arm, len(m.Matches))
	for i, md := range m.Matches {
		m.arms[i] = make([]match.Arm, len(md.Arms))
		for j, arm := range md.Arms {
			m.arms[i][j] = arm.Arm
		}
	}

	for name, slot := range m.Exports {
		if slot < 0 || slot >= m.Globals {
			return diagnostics.NewError(diagnostics.InternalFatal, "module %s: export %s has bad slot %d", m.Name, name, slot)
		}
	}
	return validate(m)
}

// initOrder sorts modules so imports come first. Import cycles are rejected.
func (a *Assembly) initOrder() ([]int, error) {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make([]int, len(a.modules))
	order := make([]int, 0, len(a.modules))
	var visit func(h int) error
	visit = func(h int) error {
		switch state[h] {
		case visiting:
			return fmt.Errorf("import cycle through module %s", a.modules[h].Name)
		case visited:
			return nil
		}
		state[h] = visiting
		for _, dep := range a.modules[h].imports {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[h] = visited
		order = append(order, h)
		return nil
	}
	for h := range a.modules {
		if err := visit(h); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// validateHeader checks the counts workers size frames and globals from.
func validateHeader(m *Module) error {
	bad := func(format string, args ...interface{}) error {
		err := diagnostics.NewError(diagnostics.InternalFatal, format, args...)
		err.Module = m.Name
		return err
	}
	if m.Globals < 0 {
		return bad("module %s has %d globals", m.Name, m.Globals)
	}
	if m.Locals < 0 {
		return bad("module %s has %d top-level locals", m.Name, m.Locals)
	}
	for i, f := range m.Funcs {
		if f.Arity < 0 || f.Locals < 0 {
			return bad("function %d (%s) has arity %d and %d locals", i, f.Name, f.Arity, f.Locals)
		}
	}
	for i, md := range m.Matches {
		if md.Base < 0 {
			return bad("match %d binds at local %d", i, md.Base)
		}
		for _, arm := range md.Arms {
			if arm.Guard < -1 {
				return bad("match %d has bad guard %d", i, arm.Guard)
			}
		}
	}
	return nil
}

// validate checks operands that can be checked statically.
func validate(m *Module) error {
	bad := func(pc int, format string, args ...interface{}) error {
		err := diagnostics.NewError(diagnostics.InternalFatal, format, args...)
		err.Module = m.Name
		err.Message = fmt.Sprintf("%s at %04d", err.Message, pc)
		return err
	}
	for pc, in := range m.Code {
		if in.Op >= opcodeCount {
			return bad(pc, "unknown opcode %d", in.Op)
		}
		switch in.Op {
		case OP_JUMP, OP_JUMP_IF_TRUE, OP_JUMP_IF_FALSE:
			if in.A < 0 || int(in.A) >= len(m.Code) {
				return bad(pc, "jump target %d out of range", in.A)
			}
		case OP_PUSH_CONST:
			if in.A < 0 || int(in.A) >= len(m.Consts) {
				return bad(pc, "constant index %d out of range", in.A)
			}
		case OP_PUSH_STR, OP_GET_FIELD, OP_MAKE_VARIANT:
			if in.A < 0 || int(in.A) >= len(m.Strings) {
				return bad(pc, "string index %d out of range", in.A)
			}
		case OP_CLOSURE:
			if in.A < 0 || int(in.A) >= len(m.Funcs) {
				return bad(pc, "function index %d out of range", in.A)
			}
		case OP_MATCH:
			if in.A < 0 || int(in.A) >= len(m.Matches) {
				return bad(pc, "match index %d out of range", in.A)
			}
		case OP_GET_EXTERN:
			if in.A < 0 || int(in.A) >= len(m.Externs) {
				return bad(pc, "extern index %d out of range", in.A)
			}
		case OP_GET_GLOBAL, OP_SET_GLOBAL:
			if in.A < 0 || int(in.A) >= m.Globals {
				return bad(pc, "global slot %d out of range", in.A)
			}
		}
	}
	if len(m.Code) > 0 && (m.Entry < 0 || m.Entry >= len(m.Code)) {
		return bad(m.Entry, "entry %d out of range", m.Entry)
	}
	for i, f := range m.Funcs {
		if f.Entry < 0 || f.Entry >= len(m.Code) {
			return bad(f.Entry, "function %d (%s) has bad entry", i, f.Name)
		}
	}
	for i, md := range m.Matches {
		for _, arm := range md.Arms {
			if arm.Body < 0 || arm.Body >= len(m.Code) {
				return bad(arm.Body, "match %d has bad arm body", i)
			}
			if arm.Guard >= len(m.Funcs) {
				return bad(arm.Body, "match %d has bad guard %d", i, arm.Guard)
			}
		}
	}
	return nil
}
