// Package ela embeds the Ela execution core in Go programs.
//
// A host binds Go functions and values into the "host" native module,
// loads a compiled image and then calls its exports with Go arguments:
//
//	machine := ela.New()
//	machine.Bind("double", func(x int) int { return x * 2 })
//	if err := machine.LoadFile("app.elai"); err != nil { ... }
//	res, err := machine.Call("main", 21)
package ela

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"

	"github.com/funvibe/ela/internal/diagnostics"
	"github.com/funvibe/ela/internal/object"
	"github.com/funvibe/ela/internal/vm"
)

// HostModuleName is the module compiled code imports host bindings from.
const HostModuleName = "host"

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// VM wraps a worker over a loaded image and provides a high-level embedding
// API. It is not safe for concurrent use; create one VM per goroutine or
// use RunUnits.
type VM struct {
	host       *vm.Module
	natives    []*vm.Module
	marshaller *Marshaller
	opts       vm.Options
	out        io.Writer

	asm    *vm.Assembly
	entry  int
	worker *vm.Worker
	image  *vm.Image
}

// New creates a VM with default options writing program output to stdout.
func New() *VM {
	return &VM{
		host:       vm.NewNativeModule(HostModuleName),
		marshaller: NewMarshaller(),
		out:        os.Stdout,
	}
}

// SetOptions replaces the worker options. It applies to the next load.
func (v *VM) SetOptions(opts vm.Options) { v.opts = opts }

// SetOutput redirects print of the core module. It applies to the next load.
func (v *VM) SetOutput(w io.Writer) { v.out = w }

// SetLogger sets the logger handed to workers.
func (v *VM) SetLogger(l *slog.Logger) { v.opts.Logger = l }

// Use links extra native modules, such as ones built with ext.NewModule,
// into the next load.
func (v *VM) Use(modules ...*vm.Module) error {
	for _, m := range modules {
		if !m.IsNative() {
			return fmt.Errorf("use %s: not a native module", m.Name)
		}
		if m.Name == HostModuleName || m.Name == vm.CoreModuleName {
			return fmt.Errorf("use %s: name is reserved", m.Name)
		}
	}
	v.natives = append(v.natives, modules...)
	return nil
}

// Bind registers a Go function or value in the host module. Functions
// become native callables with one parameter per Go parameter; a trailing
// error result is reported as UserError. Other values are converted once.
// Bindings must be made before the image is loaded.
func (v *VM) Bind(name string, val interface{}) error {
	if v.asm != nil {
		return fmt.Errorf("bind %s: image already loaded", name)
	}
	fn := reflect.ValueOf(val)
	if fn.Kind() != reflect.Func {
		obj, err := v.marshaller.ToValue(val)
		if err != nil {
			return fmt.Errorf("bind %s: %w", name, err)
		}
		return v.host.Export(name, obj)
	}

	t := fn.Type()
	arity := t.NumIn()
	if t.IsVariadic() {
		arity--
	}
	native := &object.Function{
		Name:     HostModuleName + "." + name,
		Arity:    arity,
		Variadic: t.IsVariadic(),
		ArgKinds: argKinds(t, arity),
		Native: func(ctx *object.Context, args []object.Value) (object.Value, error) {
			return v.hostCall(ctx, fn, args)
		},
	}
	return v.host.Export(name, object.FromObject(native))
}

// argKinds declares the kinds of parameters with an exact Ela counterpart
// so the interpreter checks them before the call.
func argKinds(t reflect.Type, arity int) []object.Kind {
	kinds := make([]object.Kind, arity)
	for i := range arity {
		if t.In(i) == charType {
			kinds[i] = object.KindChar
			continue
		}
		switch t.In(i).Kind() {
		case reflect.Int32:
			kinds[i] = object.KindInt
		case reflect.Int64:
			kinds[i] = object.KindLong
		case reflect.Float32:
			kinds[i] = object.KindSingle
		case reflect.Float64:
			kinds[i] = object.KindDouble
		case reflect.Bool:
			kinds[i] = object.KindBool
		case reflect.String:
			kinds[i] = object.KindString
		default:
			kinds[i] = object.KindAny
		}
	}
	return kinds
}

func (v *VM) hostCall(ctx *object.Context, fn reflect.Value, args []object.Value) (object.Value, error) {
	fnType := fn.Type()
	numIn := fnType.NumIn()

	if fnType.IsVariadic() {
		// the surplus arrives as a list in the last slot
		rest, ok := args[numIn-1].Object().(*object.List)
		if !ok {
			return object.Value{}, ctx.Fail(diagnostics.InternalFatal, "variadic arguments are not a list")
		}
		args = append(args[:numIn-1:numIn-1], rest.Slice()...)
	}

	goArgs := make([]reflect.Value, len(args))
	for i, arg := range args {
		targetType := fnType.In(min(i, numIn-1))
		if fnType.IsVariadic() && i >= numIn-1 {
			targetType = fnType.In(numIn - 1).Elem()
		}
		rv, err := v.marshaller.fromValue(ctx, arg, targetType)
		if err != nil {
			if de, ok := err.(*diagnostics.Error); ok {
				return object.Value{}, ctx.FailWith(de)
			}
			return object.Value{}, ctx.Fail(diagnostics.InvalidType, "argument %d: %v", i+1, err)
		}
		goArgs[i] = rv
	}

	results := fn.Call(goArgs)

	if n := len(results); n > 0 && fnType.Out(n-1) == errorType {
		if err, _ := results[n-1].Interface().(error); err != nil {
			return object.Value{}, ctx.Fail(diagnostics.UserError, "%v", err)
		}
		results = results[:n-1]
	}
	switch len(results) {
	case 0:
		return object.Unit(), nil
	case 1:
		return v.toValue(ctx, results[0].Interface())
	}
	// Multiple returns -> Tuple
	elements := make([]object.Value, len(results))
	for i, res := range results {
		val, err := v.toValue(ctx, res.Interface())
		if err != nil {
			return object.Value{}, err
		}
		elements[i] = val
	}
	return object.NewTuple(elements...), nil
}

func (v *VM) toValue(ctx *object.Context, x interface{}) (object.Value, error) {
	val, err := v.marshaller.ToValue(x)
	if err != nil {
		return object.Value{}, ctx.Fail(diagnostics.ConversionFailed, "%v", err)
	}
	return val, nil
}

// LoadFile loads an image file, or a self-contained binary carrying one,
// and runs its entry module.
func (v *VM) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	img, err := vm.ExtractEmbeddedImage(data)
	if err != nil {
		return err
	}
	if img == nil {
		if img, err = vm.DeserializeImage(data); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return v.LoadImage(img)
}

// LoadBytes loads a serialized image.
func (v *VM) LoadBytes(data []byte) error {
	img, err := vm.DeserializeImage(data)
	if err != nil {
		return err
	}
	return v.LoadImage(img)
}

// LoadImage links img with the core and host modules and runs its entry
// module.
func (v *VM) LoadImage(img *vm.Image) error {
	natives := append([]*vm.Module{vm.Builtins(v.out), v.host}, v.natives...)
	asm, entry, err := img.Assemble(natives...)
	if err != nil {
		return err
	}
	w, err := vm.NewWorker(asm, v.opts)
	if err != nil {
		return err
	}
	if _, err := w.Run(entry); err != nil {
		return err
	}
	v.asm, v.entry, v.worker, v.image = asm, entry, w, img
	return nil
}

// Resource returns a file embedded in the loaded image.
func (v *VM) Resource(path string) ([]byte, bool) {
	if v.image == nil {
		return nil, false
	}
	data, ok := v.image.Resources[path]
	return bytes.Clone(data), ok
}

// Get retrieves an export of the entry module.
func (v *VM) Get(name string) (interface{}, error) {
	val, err := v.lookup(name)
	if err != nil {
		return nil, err
	}
	out, err := v.marshaller.FromValue(v.worker.Context(), val, nil)
	if err != nil {
		v.worker.Recover()
	}
	return out, err
}

// Call calls an export of the entry module by name.
func (v *VM) Call(funcName string, args ...interface{}) (interface{}, error) {
	fn, err := v.lookup(funcName)
	if err != nil {
		return nil, err
	}

	elaArgs := make([]object.Value, len(args))
	for i, arg := range args {
		val, err := v.marshaller.ToValue(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		elaArgs[i] = val
	}

	result, err := v.worker.Call(fn, elaArgs...)
	if err != nil {
		v.worker.Recover()
		return nil, err
	}
	out, err := v.marshaller.FromValue(v.worker.Context(), result, nil)
	if err != nil {
		v.worker.Recover()
	}
	return out, err
}

// CallInto is Call with the result converted to the type out points to.
func (v *VM) CallInto(out interface{}, funcName string, args ...interface{}) error {
	ptr := reflect.ValueOf(out)
	if ptr.Kind() != reflect.Ptr || ptr.IsNil() {
		return fmt.Errorf("CallInto needs a non-nil pointer, got %T", out)
	}
	fn, err := v.lookup(funcName)
	if err != nil {
		return err
	}
	elaArgs := make([]object.Value, len(args))
	for i, arg := range args {
		if elaArgs[i], err = v.marshaller.ToValue(arg); err != nil {
			return fmt.Errorf("argument %d: %w", i+1, err)
		}
	}
	result, err := v.worker.Call(fn, elaArgs...)
	if err != nil {
		v.worker.Recover()
		return err
	}
	rv, err := v.marshaller.fromValue(v.worker.Context(), result, ptr.Type().Elem())
	if err != nil {
		v.worker.Recover()
		return err
	}
	ptr.Elem().Set(rv)
	return nil
}

func (v *VM) lookup(name string) (object.Value, error) {
	if v.worker == nil {
		return object.Value{}, fmt.Errorf("no image loaded")
	}
	val, ok := v.worker.Global(v.entry, name)
	if !ok {
		return object.Value{}, fmt.Errorf("'%s' is not exported by %s", name, v.asm.Module(v.entry).Name)
	}
	return val, nil
}
