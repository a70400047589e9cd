package object

import (
	"fmt"
	"maps"
	"slices"

	"github.com/funvibe/ela/internal/diagnostics"
)

// FromHost converts a host primitive or generic container to a value.
// Supported: nil, bool, rune, int32, int, int64, float32, float64, string,
// []interface{}, map[string]interface{} and Value itself.
func FromHost(x interface{}) (Value, error) {
	switch x := x.(type) {
	case nil:
		return Unit(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case int32:
		return Int(x), nil
	case int:
		if int(int32(x)) == x {
			return Int(int32(x)), nil
		}
		return Long(int64(x)), nil
	case int64:
		return Long(x), nil
	case float32:
		return Single(x), nil
	case float64:
		return Double(x), nil
	case string:
		return String(x), nil
	case []interface{}:
		elems := make([]Value, len(x))
		for i, e := range x {
			v, err := FromHost(e)
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return NewList(elems...), nil
	case map[string]interface{}:
		names := slices.Sorted(maps.Keys(x))
		values := make([]Value, len(names))
		for i, n := range names {
			v, err := FromHost(x[n])
			if err != nil {
				return Value{}, err
			}
			values[i] = v
		}
		return NewRecord(names, values), nil
	}
	return Value{}, diagnostics.NewError(diagnostics.ConversionFailed, "cannot convert host value of type %T", x)
}

// ToHost converts a value to its natural host representation. Chars become
// rune (int32), so use AsChar to tell them apart from ints. Thunks must be
// forced first.
func ToHost(v Value) (interface{}, error) {
	switch v.kind {
	case KindUnit:
		return nil, nil
	case KindInt:
		return v.AsInt(), nil
	case KindLong:
		return v.AsLong(), nil
	case KindSingle:
		return v.AsSingle(), nil
	case KindDouble:
		return v.AsDouble(), nil
	case KindBool:
		return v.AsBool(), nil
	case KindChar:
		return v.AsChar(), nil
	case KindString:
		return v.AsString(), nil
	case KindList:
		l := v.ref.(*List)
		return hostSlice(l.Slice())
	case KindTuple:
		return hostSlice(v.ref.(*Tuple).Elements)
	case KindRecord:
		r := v.ref.(*Record)
		out := make(map[string]interface{}, len(r.names))
		for i, n := range r.names {
			x, err := ToHost(r.values[i])
			if err != nil {
				return nil, err
			}
			out[n] = x
		}
		return out, nil
	}
	return nil, diagnostics.NewError(diagnostics.ConversionFailed, "cannot convert %s to a host value", v.kind)
}

func hostSlice(elems []Value) ([]interface{}, error) {
	out := make([]interface{}, len(elems))
	for i, e := range elems {
		x, err := ToHost(e)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = x
	}
	return out, nil
}
