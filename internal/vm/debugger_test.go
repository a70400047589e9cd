package vm

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// buildDebuggee compiles
//
//	1: x = 5
//	2: inc x
//	3: return
//	10: inc n = n + 1
func buildDebuggee(t *testing.T) *Assembly {
	b := NewBuilder("main")
	b.Line(10, 1)
	f := exportFunc(b, "inc", 1, 1, false, func() {
		b.Emit(OP_GET_LOCAL, 0)
		b.Emit(OP_PUSH_INT, 1)
		b.Emit(OP_ADD)
		b.Emit(OP_RETURN)
	})
	b.Scope(1, 1, 0, 4, VarSym{Name: "n", Slot: 0})
	b.Main().Locals(1)
	b.Line(1, 1)
	b.Emit(OP_PUSH_INT, 5)
	b.Emit(OP_SET_LOCAL, 0)
	b.Line(2, 1)
	b.Emit(OP_CLOSURE, f, 0)
	b.Emit(OP_GET_LOCAL, 0)
	b.Emit(OP_CALL, 1)
	b.Line(3, 1)
	b.Emit(OP_RETURN)
	b.Scope(0, 0, 4, 10, VarSym{Name: "x", Slot: 0})
	return assemble(t, mustBuild(t, b))
}

func runScript(t *testing.T, dbg *Debugger, script string) (*Worker, string, error) {
	t.Helper()
	var out bytes.Buffer
	NewDebuggerCLI(dbg, strings.NewReader(script), &out)
	w := newTestWorker(t, buildDebuggee(t), Options{})
	v, err := dbg.Run(w, 0)
	if err == nil {
		out.WriteString("result " + v.String() + "\n")
	}
	return w, out.String(), err
}

func TestDebuggerSession(t *testing.T) {
	script := strings.Join([]string{
		"break main:10",
		"list",
		"continue",
		"locals",
		"bt",
		"print n",
		"finish",
		"print x",
		"continue",
	}, "\n")

	_, out, err := runScript(t, NewDebugger(nil), script)
	if err != nil {
		t.Fatalf("debugged run failed: %v\n%s", err, out)
	}

	for _, want := range []string{
		"Stopped at main:1:1",
		"Breakpoint set at main:10",
		"  1. main:10",
		"Stopped at main:10:1",
		"  n = 5",
		"Call stack:",
		"(inc)",
		"Stopped at main:3:1",
		"result 6",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Stopped at main:2:1") {
		t.Errorf("continue stopped on a line without a breakpoint:\n%s", out)
	}
}

func TestDebuggerStepVisitsEveryLine(t *testing.T) {
	_, out, err := runScript(t, NewDebugger(nil), "s\ns\ns\ns\ns\n")
	if err != nil {
		t.Fatalf("debugged run failed: %v\n%s", err, out)
	}
	want := []string{"main:1:1", "main:2:1", "main:10:1", "main:3:1"}
	last := -1
	for _, loc := range want {
		i := strings.Index(out, "Stopped at "+loc)
		if i < 0 || i < last {
			t.Fatalf("expected stops in order %v:\n%s", want, out)
		}
		last = i
	}
}

func TestDebuggerStepOverSkipsCalls(t *testing.T) {
	_, out, err := runScript(t, NewDebugger(nil), "n\nn\nn\n")
	if err != nil {
		t.Fatalf("debugged run failed: %v\n%s", err, out)
	}
	if strings.Contains(out, "main:10:1") {
		t.Errorf("next entered the called function:\n%s", out)
	}
	if !strings.Contains(out, "Stopped at main:3:1") {
		t.Errorf("next did not reach line 3:\n%s", out)
	}
}

func TestDebuggerQuit(t *testing.T) {
	for _, script := range []string{"q\n", ""} {
		w, out, err := runScript(t, NewDebugger(nil), script)
		if !errors.Is(err, ErrQuit) {
			t.Fatalf("script %q: got %v, want ErrQuit\n%s", script, err, out)
		}
		if w.Depth() != 0 {
			t.Errorf("script %q left %d frames", script, w.Depth())
		}
	}
}
