package vm

import (
	"fmt"
	"strings"

	"github.com/funvibe/ela/internal/object"
)

// Disassemble returns a human-readable representation of the module's
// bytecode.
func Disassemble(m *Module) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("== %s ==\n", m.Name))
	for i, imp := range m.Imports {
		sb.WriteString(fmt.Sprintf("import %d %s\n", i, imp.Module))
	}

	entries := make(map[int]FuncDef, len(m.Funcs))
	for _, f := range m.Funcs {
		entries[f.Entry] = f
	}

	prevLine := -1
	for offset := range m.Code {
		if offset == m.Entry && len(m.Funcs) > 0 {
			sb.WriteString("-- main --\n")
		}
		if f, ok := entries[offset]; ok {
			variadic := ""
			if f.Variadic {
				variadic = "+"
			}
			sb.WriteString(fmt.Sprintf("-- %s/%d%s --\n", f.Name, f.Arity, variadic))
		}
		line := 0
		if sym, ok := m.Debug.FindLine(offset); ok {
			line = sym.Line
		}
		prevLine = disassembleInstruction(&sb, m, offset, line, prevLine)
	}

	return sb.String()
}

func disassembleInstruction(sb *strings.Builder, m *Module, offset, line, prevLine int) int {
	sb.WriteString(fmt.Sprintf("%04d ", offset))

	// Print line number
	if line == prevLine {
		sb.WriteString("   | ")
	} else {
		sb.WriteString(fmt.Sprintf("%4d ", line))
	}

	in := m.Code[offset]
	sb.WriteString(fmt.Sprintf("%-16s", in.Op))

	switch in.Op {
	case OP_PUSH_CONST:
		sb.WriteString(fmt.Sprintf("%4d '%s'", in.A, constantText(m, in.A)))
	case OP_PUSH_STR, OP_GET_FIELD, OP_MAKE_VARIANT:
		s, _ := m.String(in.A)
		sb.WriteString(fmt.Sprintf("%4d %q", in.A, s))
	case OP_GET_EXTERN:
		if int(in.A) < len(m.Externs) {
			ext := m.Externs[in.A]
			target := "?"
			if ext.Import >= 0 && ext.Import < len(m.Imports) {
				target = m.Imports[ext.Import].Module
			}
			sb.WriteString(fmt.Sprintf("%4d %s.%s", in.A, target, ext.Name))
		}
	case OP_CLOSURE:
		if int(in.A) < len(m.Funcs) {
			sb.WriteString(fmt.Sprintf("%4d <fun %s> captures %d", in.A, m.Funcs[in.A].Name, in.B))
		}
	case OP_CONVERT:
		sb.WriteString(fmt.Sprintf("%4d %s", in.A, object.Kind(in.A)))
	case OP_JUMP, OP_JUMP_IF_TRUE, OP_JUMP_IF_FALSE:
		sb.WriteString(fmt.Sprintf("%4d -> %d", offset, in.A))
	case OP_MATCH:
		if int(in.A) < len(m.Matches) {
			md := m.Matches[in.A]
			bodies := make([]string, len(md.Arms))
			for i, arm := range md.Arms {
				bodies[i] = fmt.Sprint(arm.Body)
			}
			sb.WriteString(fmt.Sprintf("%4d arms -> [%s]", in.A, strings.Join(bodies, " ")))
		}
	case OP_PUSH_INT, OP_GET_LOCAL, OP_SET_LOCAL, OP_GET_CAPTURE, OP_GET_GLOBAL, OP_SET_GLOBAL,
		OP_MAKE_LIST, OP_MAKE_TUPLE, OP_MAKE_RECORD, OP_MAKE_LAZY, OP_CALL, OP_TAIL_CALL:
		sb.WriteString(fmt.Sprintf("%4d", in.A))
	}
	sb.WriteString("\n")
	return line
}

func constantText(m *Module, i int32) string {
	if int(i) >= len(m.Consts) {
		return "?"
	}
	v, err := m.Consts[i].Value()
	if err != nil {
		return "?"
	}
	return v.String()
}

// DisassembleMatch lists the test programs of match table idx.
func DisassembleMatch(m *Module, idx int) string {
	var sb strings.Builder
	md := m.Matches[idx]
	sb.WriteString(fmt.Sprintf("== match %d (bindings at %d) ==\n", idx, md.Base))
	for i, arm := range md.Arms {
		guard := ""
		if arm.Guard >= 0 {
			guard = fmt.Sprintf(" when %s", m.Funcs[arm.Guard].Name)
		}
		sb.WriteString(fmt.Sprintf("arm %d -> %04d%s\n", i, arm.Body, guard))
		for _, t := range arm.Tests {
			sb.WriteString(fmt.Sprintf("    %s\n", t))
		}
	}
	return sb.String()
}
