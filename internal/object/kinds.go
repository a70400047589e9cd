package object

// Kind is the runtime kind id of a value.
//
// The numeric kinds form a contiguous band ordered by width
// (KindInt < KindLong < KindSingle < KindDouble). Mixed arithmetic widens to
// the operand with the larger id, so the order of these constants must not
// change.
type Kind uint8

const (
	KindUnit Kind = iota
	KindInt
	KindLong
	KindSingle
	KindDouble
	KindBool
	KindChar
	KindString
	KindList
	KindTuple
	KindRecord
	KindVariant
	KindFunction
	KindLazy
	KindModule
	KindTypeInfo
	KindUser

	kindCount

	// KindAny is only used in native argument declarations.
	KindAny Kind = 0xFF
)

// IsNumeric reports whether k lies in the numeric band.
func (k Kind) IsNumeric() bool {
	return k >= KindInt && k <= KindDouble
}

// IsInline reports whether values of kind k keep their payload in the
// inline slot and dispatch through the static carrier table.
func (k Kind) IsInline() bool {
	switch k {
	case KindUnit, KindInt, KindSingle, KindBool, KindChar:
		return true
	}
	return false
}

func (k Kind) String() string {
	if k == KindAny {
		return "any"
	}
	if k < kindCount {
		return descriptors[k].Name
	}
	return "unknown"
}

// TypeDesc describes a runtime kind. Descriptors are built once and never
// mutated.
type TypeDesc struct {
	Kind    Kind
	Name    string
	Numeric bool
	Inline  bool
}

var descriptors = func() [kindCount]TypeDesc {
	names := [kindCount]string{
		KindUnit:     "unit",
		KindInt:      "int",
		KindLong:     "long",
		KindSingle:   "single",
		KindDouble:   "double",
		KindBool:     "bool",
		KindChar:     "char",
		KindString:   "string",
		KindList:     "list",
		KindTuple:    "tuple",
		KindRecord:   "record",
		KindVariant:  "variant",
		KindFunction: "fun",
		KindLazy:     "lazy",
		KindModule:   "module",
		KindTypeInfo: "typeinfo",
		KindUser:     "object",
	}
	var table [kindCount]TypeDesc
	for i := range table {
		k := Kind(i)
		table[i] = TypeDesc{
			Kind:    k,
			Name:    names[i],
			Numeric: k.IsNumeric(),
			Inline:  k.IsInline(),
		}
	}
	return table
}()

// Descriptor returns the descriptor for k, or nil for KindAny and unknown ids.
func Descriptor(k Kind) *TypeDesc {
	if k >= kindCount {
		return nil
	}
	return &descriptors[k]
}

// KindByName resolves a kind by its descriptor name.
func KindByName(name string) (Kind, bool) {
	for i := range descriptors {
		if descriptors[i].Name == name {
			return descriptors[i].Kind, true
		}
	}
	if name == "any" {
		return KindAny, true
	}
	return 0, false
}
