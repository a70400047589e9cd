// Package vm implements the Ela bytecode interpreter
package vm

import "fmt"

// Opcode represents a single VM instruction
type Opcode uint8

const (
	OP_NOP Opcode = iota

	// Stack manipulation
	OP_PUSH_INT   // Push A as int
	OP_PUSH_CONST // Push constant A
	OP_PUSH_STR   // Push string A
	OP_PUSH_UNIT  // Push ()
	OP_PUSH_TRUE  // Push true
	OP_PUSH_FALSE // Push false
	OP_POP        // Discard top of stack
	OP_DUP        // Duplicate top of stack
	OP_SWAP       // Swap the two top values

	// Variables
	OP_GET_LOCAL   // Push local A
	OP_SET_LOCAL   // Pop into local A
	OP_GET_CAPTURE // Push captured value A of the running closure
	OP_GET_GLOBAL  // Push global A of the current module
	OP_SET_GLOBAL  // Pop into global A of the current module
	OP_GET_EXTERN  // Push the export bound to extern A

	// Arithmetic
	OP_ADD // +
	OP_SUB // -
	OP_MUL // *
	OP_DIV // /
	OP_REM // %
	OP_POW // **
	OP_NEG // Unary minus

	// Bitwise operations
	OP_BAND   // &&&
	OP_BOR    // |||
	OP_BXOR   // ^^^
	OP_BNOT   // ~~~ (unary)
	OP_LSHIFT // <<<
	OP_RSHIFT // >>>

	// Comparison
	OP_EQ // ==
	OP_NE // <>
	OP_LT // <
	OP_LE // <=
	OP_GT // >
	OP_GE // >=
	OP_NOT

	// Sequences and conversions
	OP_CONCAT     // ++
	OP_CONS       // ::  [head, tail] -> [list]
	OP_LEN        // length
	OP_FORCE      // Evaluate a thunk
	OP_SHOW       // Render to string
	OP_CONVERT    // Convert to kind A
	OP_GET_FIELD  // Get field named by string A
	OP_GET_INDEX  // [seq, index] -> [elem]
	OP_GENERATE   // [seq, elem] -> [seq]
	OP_GEN_FINISH // [seq] -> [seq]

	// Constructors
	OP_MAKE_LIST    // Pop A values into a list
	OP_MAKE_TUPLE   // Pop A values into a tuple
	OP_MAKE_RECORD  // Pop A (name, value) pairs into a record
	OP_MAKE_VARIANT // Wrap top in a variant tagged by string A
	OP_MAKE_LAZY    // [fn, args...] with A arguments -> [thunk]
	OP_CLOSURE      // Function A capturing B values

	// Control flow
	OP_JUMP          // Jump to A
	OP_JUMP_IF_TRUE  // Pop; jump to A if true
	OP_JUMP_IF_FALSE // Pop; jump to A if false
	OP_CALL          // [fn, args...] with A arguments
	OP_TAIL_CALL     // Call reusing the current frame
	OP_RETURN        // Return top of stack to the caller
	OP_MATCH         // Pop scrutinee and run match table A
	OP_FAIL          // Pop a value and fail with it
	OP_HALT          // Stop execution

	opcodeCount
)

// OpcodeNames maps opcodes to their string names (for debugging)
var OpcodeNames = map[Opcode]string{
	OP_NOP:        "NOP",
	OP_PUSH_INT:   "PUSH_INT",
	OP_PUSH_CONST: "PUSH_CONST",
	OP_PUSH_STR:   "PUSH_STR",
	OP_PUSH_UNIT:  "PUSH_UNIT",
	OP_PUSH_TRUE:  "PUSH_TRUE",
	OP_PUSH_FALSE: "PUSH_FALSE",
	OP_POP:        "POP",
	OP_DUP:        "DUP",
	OP_SWAP:       "SWAP",

	OP_GET_LOCAL:   "GET_LOCAL",
	OP_SET_LOCAL:   "SET_LOCAL",
	OP_GET_CAPTURE: "GET_CAPTURE",
	OP_GET_GLOBAL:  "GET_GLOBAL",
	OP_SET_GLOBAL:  "SET_GLOBAL",
	OP_GET_EXTERN:  "GET_EXTERN",

	OP_ADD: "ADD",
	OP_SUB: "SUB",
	OP_MUL: "MUL",
	OP_DIV: "DIV",
	OP_REM: "REM",
	OP_POW: "POW",
	OP_NEG: "NEG",

	OP_BAND:   "BAND",
	OP_BOR:    "BOR",
	OP_BXOR:   "BXOR",
	OP_BNOT:   "BNOT",
	OP_LSHIFT: "LSHIFT",
	OP_RSHIFT: "RSHIFT",

	OP_EQ:  "EQ",
	OP_NE:  "NE",
	OP_LT:  "LT",
	OP_LE:  "LE",
	OP_GT:  "GT",
	OP_GE:  "GE",
	OP_NOT: "NOT",

	OP_CONCAT:     "CONCAT",
	OP_CONS:       "CONS",
	OP_LEN:        "LEN",
	OP_FORCE:      "FORCE",
	OP_SHOW:       "SHOW",
	OP_CONVERT:    "CONVERT",
	OP_GET_FIELD:  "GET_FIELD",
	OP_GET_INDEX:  "GET_INDEX",
	OP_GENERATE:   "GENERATE",
	OP_GEN_FINISH: "GEN_FINISH",

	OP_MAKE_LIST:    "MAKE_LIST",
	OP_MAKE_TUPLE:   "MAKE_TUPLE",
	OP_MAKE_RECORD:  "MAKE_RECORD",
	OP_MAKE_VARIANT: "MAKE_VARIANT",
	OP_MAKE_LAZY:    "MAKE_LAZY",
	OP_CLOSURE:      "CLOSURE",

	OP_JUMP:          "JUMP",
	OP_JUMP_IF_TRUE:  "JUMP_IF_TRUE",
	OP_JUMP_IF_FALSE: "JUMP_IF_FALSE",
	OP_CALL:          "CALL",
	OP_TAIL_CALL:     "TAIL_CALL",
	OP_RETURN:        "RETURN",
	OP_MATCH:         "MATCH",
	OP_FAIL:          "FAIL",
	OP_HALT:          "HALT",
}

func (op Opcode) String() string {
	if name, ok := OpcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OP_%d", uint8(op))
}

// Instr is a fixed-shape instruction: an opcode and two operand words.
type Instr struct {
	Op Opcode `cbor:"1,keyasint"`
	A  int32  `cbor:"2,keyasint,omitempty"`
	B  int32  `cbor:"3,keyasint,omitempty"`
}

func (i Instr) String() string {
	return fmt.Sprintf("%-14s %d %d", i.Op, i.A, i.B)
}
