package object

// NativeFunc is the signature of host-implemented callables. It reports
// failures through ctx like any trait operation.
type NativeFunc func(ctx *Context, args []Value) (Value, error)

// Function is a callable: either compiled code in a module or a native
// implementation. Applied holds the arguments of a partial application.
type Function struct {
	Base
	Name     string
	Arity    int
	Variadic bool

	// Native callables
	Native   NativeFunc
	ArgKinds []Kind

	// Compiled callables
	Module   int
	Entry    int
	Locals   int
	Captures []Value

	Applied []Value
}

// NewNative wraps a host function. kinds may be shorter than arity; missing
// entries accept any kind.
func NewNative(name string, arity int, fn NativeFunc, kinds ...Kind) Value {
	return FromObject(&Function{Name: name, Arity: arity, Native: fn, ArgKinds: kinds})
}

func (*Function) Kind() Kind { return KindFunction }

func (f *Function) IsNative() bool { return f.Native != nil }

// Remaining is the number of arguments still needed for a saturated call.
func (f *Function) Remaining() int {
	return f.Arity - len(f.Applied)
}

// Apply returns a partial application of f with args appended.
func (f *Function) Apply(args []Value) *Function {
	out := *f
	out.Applied = make([]Value, 0, len(f.Applied)+len(args))
	out.Applied = append(out.Applied, f.Applied...)
	out.Applied = append(out.Applied, args...)
	return &out
}

// ArgKind returns the declared kind of argument i.
func (f *Function) ArgKind(i int) Kind {
	if i < len(f.ArgKinds) {
		return f.ArgKinds[i]
	}
	return KindAny
}

func (*Function) Show(ctx *Context, p *Printer, v Value) error {
	f := v.ref.(*Function)
	name := f.Name
	if name == "" {
		name = "lambda"
	}
	p.WriteString("<fun ")
	p.WriteString(name)
	p.WriteString(">")
	return nil
}
