// Package valueconv converts socket values and canvas constants into the Go
// types declared by bound members. go-cty is the common currency: anything
// that is not directly assignable is lifted into a cty.Value, converted to
// the cty type implied by the target and decoded back.
package valueconv

import (
	"context"
	"fmt"
	"reflect"

	"github.com/vk/actiongraph/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

var ctyValueType = reflect.TypeFor[cty.Value]()

// Convert returns v as a value of type to. A nil v yields the zero value.
func Convert(ctx context.Context, v any, to reflect.Type) (reflect.Value, error) {
	if to == nil {
		return reflect.Value{}, fmt.Errorf("cannot convert %T to a nil type", v)
	}
	if v == nil {
		return reflect.Zero(to), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(to) {
		if to.Kind() == reflect.Interface {
			out := reflect.New(to).Elem()
			out.Set(rv)
			return out, nil
		}
		return rv, nil
	}
	if rv.Kind() == to.Kind() && rv.Type().ConvertibleTo(to) && to.Kind() != reflect.Interface {
		return rv.Convert(to), nil
	}
	if cv, ok := v.(cty.Value); ok {
		return FromCty(ctx, cv, to)
	}

	cv, err := ToCty(v)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("cannot convert %T to %s: %w", v, to, err)
	}
	return FromCty(ctx, cv, to)
}

// ToCty converts a native Go value into its corresponding cty.Value.
func ToCty(v any) (cty.Value, error) {
	if v == nil {
		return cty.NilVal, nil
	}
	if cv, ok := v.(cty.Value); ok {
		return cv, nil
	}
	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unable to infer cty.Type: %w", err)
	}
	return gocty.ToCtyValue(v, ty)
}

// FromCty decodes val into a new value of type to.
func FromCty(ctx context.Context, val cty.Value, to reflect.Type) (reflect.Value, error) {
	logger := ctxlog.FromContext(ctx).With("go_type", to.String())

	if to == ctyValueType {
		return reflect.ValueOf(val), nil
	}
	if val.IsNull() || !val.IsKnown() {
		logger.Debug("Null or unknown value decodes to zero.")
		return reflect.Zero(to), nil
	}

	if to.Kind() == reflect.Interface {
		native, err := ToNative(val)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(to).Elem()
		if native != nil {
			nv := reflect.ValueOf(native)
			if !nv.Type().AssignableTo(to) {
				return reflect.Value{}, fmt.Errorf("cty %s decodes to %s, which does not implement %s", val.Type().FriendlyName(), nv.Type(), to)
			}
			out.Set(nv)
		}
		return out, nil
	}

	want, err := gocty.ImpliedType(reflect.Zero(to).Interface())
	if err != nil {
		return reflect.Value{}, fmt.Errorf("cannot imply cty type for %s: %w", to, err)
	}
	converted, err := convert.Convert(val, want)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("cannot convert value of type %s to %s: %w", val.Type().FriendlyName(), want.FriendlyName(), err)
	}
	out := reflect.New(to)
	if err := gocty.FromCtyValue(converted, out.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return out.Elem(), nil
}

// ToNative recursively converts a cty.Value to its most natural Go
// counterpart: string, float64, bool, []any or map[string]any.
func ToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("could not convert cty.Number to float64: %w", err)
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		slice := make([]any, 0, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			_, elem := it.Element()
			native, err := ToNative(elem)
			if err != nil {
				return nil, err
			}
			slice = append(slice, native)
		}
		return slice, nil

	case ty.IsObjectType() || ty.IsMapType():
		m := make(map[string]any)
		it := v.ElementIterator()
		for it.Next() {
			key, elem := it.Element()
			native, err := ToNative(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute '%s': %w", key.AsString(), err)
			}
			m[key.AsString()] = native
		}
		return m, nil
	}
	return nil, fmt.Errorf("unsupported cty type for native conversion: %s", ty.FriendlyName())
}
