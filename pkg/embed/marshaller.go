package ela

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"

	"github.com/funvibe/ela/internal/object"
)

var (
	valueType = reflect.TypeOf(object.Value{})
	charType  = reflect.TypeOf(Char(0))
)

// Char is a rune that crosses into Ela as a char. A plain rune is an int32
// and becomes Int; struct fields can also ask for a char with `ela:",char"`.
type Char rune

// Marshaller handles conversion between Go and Ela values.
type Marshaller struct{}

func NewMarshaller() *Marshaller {
	return &Marshaller{}
}

// ToValue converts a Go value to an Ela value.
// Integers that fit in 32 bits become Int, wider ones Long; an unsigned
// value above the long range fails. Structs and maps with string keys
// become records, slices and arrays become lists. An object.Value passes
// through unchanged.
func (m *Marshaller) ToValue(val interface{}) (object.Value, error) {
	if val == nil {
		return object.Unit(), nil
	}
	if v, ok := val.(object.Value); ok {
		return v, nil
	}
	return m.toValue(reflect.ValueOf(val))
}

func (m *Marshaller) toValue(v reflect.Value) (object.Value, error) {
	if v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return object.Unit(), nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return object.Unit(), nil
	}
	switch v.Type() {
	case valueType:
		return v.Interface().(object.Value), nil
	case charType:
		return object.Char(rune(v.Int())), nil
	}

	switch v.Kind() {
	case reflect.Int32:
		return object.Int(int32(v.Int())), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int64:
		n := v.Int()
		if n == int64(int32(n)) && v.Kind() != reflect.Int64 {
			return object.Int(int32(n)), nil
		}
		return object.Long(n), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := v.Uint()
		switch {
		case n <= math.MaxInt32:
			return object.Int(int32(n)), nil
		case n > math.MaxInt64:
			return object.Value{}, fmt.Errorf("%d overflows long", n)
		}
		return object.Long(int64(n)), nil
	case reflect.Float32:
		return object.Single(float32(v.Float())), nil
	case reflect.Float64:
		return object.Double(v.Float()), nil
	case reflect.Bool:
		return object.Bool(v.Bool()), nil
	case reflect.String:
		return object.String(v.String()), nil
	case reflect.Slice, reflect.Array:
		return m.sliceToList(v)
	case reflect.Map:
		return m.mapToRecord(v)
	case reflect.Struct:
		return m.structToRecord(v)
	}
	return object.Value{}, fmt.Errorf("unsupported Go type %s", v.Type())
}

func (m *Marshaller) sliceToList(v reflect.Value) (object.Value, error) {
	elements := make([]object.Value, v.Len())
	for i := range v.Len() {
		val, err := m.toValue(v.Index(i))
		if err != nil {
			return object.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		elements[i] = val
	}
	return object.NewList(elements...), nil
}

func (m *Marshaller) mapToRecord(v reflect.Value) (object.Value, error) {
	if v.Type().Key().Kind() != reflect.String {
		return object.Value{}, fmt.Errorf("map keys must be strings, got %s", v.Type().Key())
	}
	names := make([]string, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		names = append(names, iter.Key().String())
	}
	slices.Sort(names)

	values := make([]object.Value, len(names))
	for i, name := range names {
		val, err := m.toValue(v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key())))
		if err != nil {
			return object.Value{}, fmt.Errorf("field %s: %w", name, err)
		}
		values[i] = val
	}
	return object.NewRecord(names, values), nil
}

func (m *Marshaller) structToRecord(v reflect.Value) (object.Value, error) {
	t := v.Type()
	var names []string
	var values []object.Value
	for i := range t.NumField() {
		field := t.Field(i)
		if field.PkgPath != "" { // Skip unexported fields
			continue
		}
		name, asChar := parseTag(field)
		var val object.Value
		var err error
		if asChar {
			val, err = charField(v.Field(i))
		} else {
			val, err = m.toValue(v.Field(i))
		}
		if err != nil {
			return object.Value{}, fmt.Errorf("field %s: %w", field.Name, err)
		}
		names = append(names, name)
		values = append(values, val)
	}
	return object.NewRecord(names, values), nil
}

// parseTag reads the ela tag of a struct field: the record field name
// (the Go name when empty) and whether the char option is set.
func parseTag(f reflect.StructField) (name string, asChar bool) {
	name, opts, _ := strings.Cut(f.Tag.Get("ela"), ",")
	if name == "" {
		name = f.Name
	}
	return name, opts == "char"
}

func charField(v reflect.Value) (object.Value, error) {
	switch v.Kind() {
	case reflect.Int32, reflect.Uint8, reflect.Uint16:
		return object.Char(rune(v.Convert(reflect.TypeOf(rune(0))).Int())), nil
	}
	return object.Value{}, fmt.Errorf("char option on %s field", v.Type())
}

// FromValue converts a forced Ela value to a Go value.
// targetType is optional; without it the natural host representation is
// returned (see object.ToHost).
func (m *Marshaller) FromValue(ctx *object.Context, val object.Value, targetType reflect.Type) (interface{}, error) {
	val, err := object.Force(ctx, val)
	if err != nil {
		return nil, err
	}
	if targetType == nil || targetType.Kind() == reflect.Interface {
		if targetType == valueType {
			return val, nil
		}
		return m.toHost(ctx, val)
	}
	if targetType == valueType {
		return val, nil
	}
	rv, err := m.fromValue(ctx, val, targetType)
	if err != nil {
		return nil, err
	}
	return rv.Interface(), nil
}

// toHost forces nested thunks before handing over to object.ToHost.
func (m *Marshaller) toHost(ctx *object.Context, val object.Value) (interface{}, error) {
	switch o := val.Object().(type) {
	case *object.List:
		out := make([]interface{}, 0, o.Length())
		for e := range o.All() {
			x, err := m.FromValue(ctx, e, nil)
			if err != nil {
				return nil, err
			}
			out = append(out, x)
		}
		return out, nil
	case *object.Tuple:
		out := make([]interface{}, len(o.Elements))
		for i, e := range o.Elements {
			x, err := m.FromValue(ctx, e, nil)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	case *object.Record:
		out := make(map[string]interface{}, len(o.Names()))
		for i, name := range o.Names() {
			x, err := m.FromValue(ctx, o.Values()[i], nil)
			if err != nil {
				return nil, err
			}
			out[name] = x
		}
		return out, nil
	}
	return object.ToHost(val)
}

func (m *Marshaller) fromValue(ctx *object.Context, val object.Value, t reflect.Type) (reflect.Value, error) {
	val, err := object.Force(ctx, val)
	if err != nil {
		return reflect.Value{}, err
	}
	if t == valueType {
		return reflect.ValueOf(val), nil
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		switch val.Kind() {
		case object.KindInt:
			n = int64(val.AsInt())
		case object.KindLong:
			n = val.AsLong()
		case object.KindChar:
			n = int64(val.AsChar())
		default:
			return reflect.Value{}, mismatch(val, t)
		}
		rv := reflect.New(t).Elem()
		if rv.OverflowInt(n) {
			return reflect.Value{}, fmt.Errorf("%d overflows %s", n, t)
		}
		rv.SetInt(n)
		return rv, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n int64
		switch val.Kind() {
		case object.KindInt:
			n = int64(val.AsInt())
		case object.KindLong:
			n = val.AsLong()
		default:
			return reflect.Value{}, mismatch(val, t)
		}
		rv := reflect.New(t).Elem()
		if n < 0 || rv.OverflowUint(uint64(n)) {
			return reflect.Value{}, fmt.Errorf("%d overflows %s", n, t)
		}
		rv.SetUint(uint64(n))
		return rv, nil
	case reflect.Float32, reflect.Float64:
		var f float64
		switch val.Kind() {
		case object.KindInt:
			f = float64(val.AsInt())
		case object.KindLong:
			f = float64(val.AsLong())
		case object.KindSingle:
			f = float64(val.AsSingle())
		case object.KindDouble:
			f = val.AsDouble()
		default:
			return reflect.Value{}, mismatch(val, t)
		}
		rv := reflect.New(t).Elem()
		rv.SetFloat(f)
		return rv, nil
	case reflect.Bool:
		if val.Kind() != object.KindBool {
			return reflect.Value{}, mismatch(val, t)
		}
		return reflect.ValueOf(val.AsBool()).Convert(t), nil
	case reflect.String:
		if val.Kind() != object.KindString {
			return reflect.Value{}, mismatch(val, t)
		}
		return reflect.ValueOf(val.AsString()).Convert(t), nil
	case reflect.Slice:
		return m.listToSlice(ctx, val, t)
	case reflect.Map:
		return m.recordToMap(ctx, val, t)
	case reflect.Struct:
		return m.recordToStruct(ctx, val, t)
	case reflect.Ptr:
		if val.Kind() == object.KindUnit {
			return reflect.Zero(t), nil
		}
		elem, err := m.fromValue(ctx, val, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	case reflect.Interface:
		x, err := m.FromValue(ctx, val, nil)
		if err != nil {
			return reflect.Value{}, err
		}
		if x == nil {
			return reflect.Zero(t), nil
		}
		return reflect.ValueOf(x), nil
	}
	return reflect.Value{}, fmt.Errorf("unsupported Go type %s", t)
}

func (m *Marshaller) listToSlice(ctx *object.Context, val object.Value, t reflect.Type) (reflect.Value, error) {
	var elems []object.Value
	switch o := val.Object().(type) {
	case *object.List:
		elems = o.Slice()
	case *object.Tuple:
		elems = o.Elements
	default:
		return reflect.Value{}, mismatch(val, t)
	}
	slice := reflect.MakeSlice(t, len(elems), len(elems))
	for i, e := range elems {
		rv, err := m.fromValue(ctx, e, t.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		slice.Index(i).Set(rv)
	}
	return slice, nil
}

func (m *Marshaller) recordToMap(ctx *object.Context, val object.Value, t reflect.Type) (reflect.Value, error) {
	rec, ok := val.Object().(*object.Record)
	if !ok || t.Key().Kind() != reflect.String {
		return reflect.Value{}, mismatch(val, t)
	}
	out := reflect.MakeMapWithSize(t, len(rec.Names()))
	for i, name := range rec.Names() {
		rv, err := m.fromValue(ctx, rec.Values()[i], t.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("field %s: %w", name, err)
		}
		out.SetMapIndex(reflect.ValueOf(name).Convert(t.Key()), rv)
	}
	return out, nil
}

// recordToStruct fills exported fields from record fields of the same name.
// Fields missing from the record keep their zero value.
func (m *Marshaller) recordToStruct(ctx *object.Context, val object.Value, t reflect.Type) (reflect.Value, error) {
	rec, ok := val.Object().(*object.Record)
	if !ok {
		return reflect.Value{}, mismatch(val, t)
	}
	out := reflect.New(t).Elem()
	for i := range t.NumField() {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}
		name, _ := parseTag(field)
		fv, ok := rec.Get(name)
		if !ok {
			continue
		}
		rv, err := m.fromValue(ctx, fv, field.Type)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("field %s: %w", field.Name, err)
		}
		out.Field(i).Set(rv)
	}
	return out, nil
}

func mismatch(val object.Value, t reflect.Type) error {
	return fmt.Errorf("cannot convert %s to %s", val.Kind(), t)
}
