package vm

import (
	"context"
	"errors"
	"testing"

	"github.com/funvibe/ela/internal/diagnostics"
	"github.com/funvibe/ela/internal/object"
)

func buildSquares(t *testing.T) *Assembly {
	b := NewBuilder("squares")
	sq := exportFunc(b, "square", 1, 1, false, func() {
		b.Emit(OP_GET_LOCAL, 0)
		b.Emit(OP_DUP)
		b.Emit(OP_MUL)
		b.Emit(OP_RETURN)
	})
	div := exportFunc(b, "divide", 2, 2, false, func() {
		b.Emit(OP_GET_LOCAL, 0)
		b.Emit(OP_GET_LOCAL, 1)
		b.Emit(OP_DIV)
		b.Emit(OP_RETURN)
	})
	finishMain(b, map[string]int32{"square": sq, "divide": div})
	return assemble(t, mustBuild(t, b))
}

func TestRunUnits(t *testing.T) {
	asm := buildSquares(t)
	units := make([]Unit, 0, 20)
	for i := range 20 {
		units = append(units, Unit{Module: "squares", Function: "square", Args: []object.Value{object.Int(int32(i))}})
	}
	units = append(units, Unit{Module: "squares", Function: "divide", Args: []object.Value{object.Int(1), object.Int(0)}})
	units = append(units, Unit{Module: "squares", Function: "square", Args: []object.Value{object.Int(7)}})

	results, err := RunUnits(context.Background(), asm, Options{}, 4, units)
	if err != nil {
		t.Fatalf("RunUnits: %v", err)
	}
	if len(results) != len(units) {
		t.Fatalf("got %d results, want %d", len(results), len(units))
	}
	for i := range 20 {
		if results[i].Err != nil {
			t.Fatalf("unit %d: %v", i, results[i].Err)
		}
		testIntValue(t, results[i].Value, int32(i*i))
		if results[i].Worker == "" {
			t.Errorf("unit %d has no worker id", i)
		}
	}
	testCode(t, results[20].Err, diagnostics.DivideByZero)
	// a failed unit must not poison the next unit on the same worker
	if results[21].Err != nil {
		t.Fatalf("unit after failure: %v", results[21].Err)
	}
	testIntValue(t, results[21].Value, 49)
}

func TestRunUnitsUnknownExport(t *testing.T) {
	results, err := RunUnits(context.Background(), buildSquares(t), Options{}, 1, []Unit{
		{Module: "nowhere"},
		{Module: "squares", Function: "cube"},
		{Module: "squares"},
	})
	if err != nil {
		t.Fatalf("RunUnits: %v", err)
	}
	if results[0].Err == nil || results[1].Err == nil {
		t.Errorf("expected lookup errors, got %v and %v", results[0].Err, results[1].Err)
	}
	if results[2].Err != nil {
		t.Errorf("running the module: %v", results[2].Err)
	}
}

func TestRunUnitsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	units := []Unit{{Module: "squares", Function: "square", Args: []object.Value{object.Int(2)}}}
	_, err := RunUnits(ctx, buildSquares(t), Options{}, 2, units)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
