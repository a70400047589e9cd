// Package diagnostics defines the single structured error type surfaced by the
// Ela runtime to its host.
package diagnostics

import (
	"errors"
	"fmt"
	"strings"
)

// Category groups error codes by who is at fault.
type Category uint8

const (
	// Runtime errors are caused by the program being executed.
	Runtime Category = iota
	// Internal errors are producer defects (malformed bytecode, broken images).
	Internal
)

func (c Category) String() string {
	switch c {
	case Runtime:
		return "Runtime"
	case Internal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Code enumerates every failure the core can report.
type Code uint16

const (
	NoOverload Code = iota + 1
	DivideByZero
	ConversionFailed
	InvalidIndexType
	IndexOutOfRange
	InvalidType
	MatchFailed
	UndefinedVariable
	UnknownField
	TooManyParameters
	TooFewParameters
	CircularForce
	StackOverflow
	UserError
	InternalFatal
)

var codeNames = map[Code]string{
	NoOverload:        "NoOverload",
	DivideByZero:      "DivideByZero",
	ConversionFailed:  "ConversionFailed",
	InvalidIndexType:  "InvalidIndexType",
	IndexOutOfRange:   "IndexOutOfRange",
	InvalidType:       "InvalidType",
	MatchFailed:       "MatchFailed",
	UndefinedVariable: "UndefinedVariable",
	UnknownField:      "UnknownField",
	TooManyParameters: "TooManyParameters",
	TooFewParameters:  "TooFewParameters",
	CircularForce:     "CircularForce",
	StackOverflow:     "StackOverflow",
	UserError:         "UserError",
	InternalFatal:     "InternalFatal",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", uint16(c))
}

// Category returns the category a code belongs to.
func (c Code) Category() Category {
	if c == InternalFatal {
		return Internal
	}
	return Runtime
}

// Sentinel errors usable with errors.Is against any *Error.
var (
	ErrNoOverload        = &Error{Code: NoOverload}
	ErrDivideByZero      = &Error{Code: DivideByZero}
	ErrConversionFailed  = &Error{Code: ConversionFailed}
	ErrInvalidIndexType  = &Error{Code: InvalidIndexType}
	ErrIndexOutOfRange   = &Error{Code: IndexOutOfRange}
	ErrInvalidType       = &Error{Code: InvalidType}
	ErrMatchFailed       = &Error{Code: MatchFailed}
	ErrUndefinedVariable = &Error{Code: UndefinedVariable}
	ErrUnknownField      = &Error{Code: UnknownField}
	ErrTooManyParameters = &Error{Code: TooManyParameters}
	ErrTooFewParameters  = &Error{Code: TooFewParameters}
	ErrCircularForce     = &Error{Code: CircularForce}
	ErrStackOverflow     = &Error{Code: StackOverflow}
	ErrUserError         = &Error{Code: UserError}
	ErrInternalFatal     = &Error{Code: InternalFatal}
)

// Frame is one resolved entry of a stack trace.
type Frame struct {
	Module   string
	Function string
	Offset   int
	Line     int
	Column   int
}

func (f Frame) String() string {
	fn := f.Function
	if fn == "" {
		fn = "<top>"
	}
	if f.Line > 0 {
		return fmt.Sprintf("at %s:%d:%d (%s)", f.Module, f.Line, f.Column, fn)
	}
	return fmt.Sprintf("at %s+%04d (%s)", f.Module, f.Offset, fn)
}

// Error is the structured error reported at the top-level boundary.
type Error struct {
	Category Category
	Code     Code
	Message  string

	// Location is filled only when debug symbols are present.
	Module string
	Line   int
	Column int

	Trace []Frame
}

// NewError creates an error for code with a formatted message.
func NewError(code Code, format string, args ...interface{}) *Error {
	return &Error{
		Category: code.Category(),
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
	}
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ELA%03d %s: %s", uint16(e.Code), e.Code, e.Message))
	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf(" (%s:%d:%d)", e.Module, e.Line, e.Column))
	} else if e.Module != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", e.Module))
	}
	return sb.String()
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// StackTrace renders the attached trace, innermost frame first.
func (e *Error) StackTrace() string {
	var sb strings.Builder
	for _, f := range e.Trace {
		sb.WriteString("\n  ")
		sb.WriteString(f.String())
	}
	return sb.String()
}

// CodeOf extracts the code from err, or 0 when err is not a diagnostics error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return 0
}
