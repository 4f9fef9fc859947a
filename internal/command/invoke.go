package command

import (
	"fmt"
	"reflect"

	"github.com/vk/actiongraph/internal/errdefs"
)

// methodInvoker calls instance methods by name on the receiver, or a
// registered function value for static commands.
type methodInvoker struct {
	static reflect.Value
	hasErr bool
}

func newMethod(declaring reflect.Type, name string, fn reflect.Type, skip int, static reflect.Value, names []string) *Command {
	params, ret, hasErr := signature(fn, skip, names)
	return &Command{
		DeclaringType: declaring,
		Kind:          KindMethod,
		Name:          name,
		Static:        static.IsValid(),
		Params:        params,
		Return:        ret,
		Variadic:      fn.IsVariadic(),
		inv:           &methodInvoker{static: static, hasErr: hasErr},
	}
}

func (m *methodInvoker) call(c *Command, recv reflect.Value, args []reflect.Value) (Result, error) {
	fn := m.static
	if !c.Static {
		var err error
		if fn, err = boundMethod(recv, c.Name); err != nil {
			return Result{}, err
		}
	}

	in, err := prepareArgs(c, fn.Type(), args)
	if err != nil {
		return Result{}, err
	}

	var outs []reflect.Value
	if c.Variadic {
		outs = fn.CallSlice(in)
	} else {
		outs = fn.Call(in)
	}

	if m.hasErr {
		errV := outs[len(outs)-1]
		outs = outs[:len(outs)-1]
		if !errV.IsNil() {
			return Result{}, fmt.Errorf("%w: %s: %w", errdefs.ErrInvocation, c.Name, errV.Interface().(error))
		}
	}

	res := Result{Params: make([]reflect.Value, len(c.Params))}
	if c.Return != nil && len(outs) > 0 {
		res.Return = outs[0]
	}
	argIdx, outIdx := 0, 1
	for i, p := range c.Params {
		switch p.Dir {
		case In:
			argIdx++
		case Ref:
			if ptr := in[argIdx]; !ptr.IsNil() {
				res.Params[i] = ptr.Elem()
			}
			argIdx++
		case Out:
			if outIdx < len(outs) {
				res.Params[i] = outs[outIdx]
			}
			outIdx++
		}
	}
	return res, nil
}

// prepareArgs checks the caller-supplied arguments against the function's
// actual inputs. Missing values become zero values; missing Ref targets are
// allocated so the callee has somewhere to write.
func prepareArgs(c *Command, fn reflect.Type, args []reflect.Value) ([]reflect.Value, error) {
	want := c.InputCount()
	if len(args) != want {
		return nil, fmt.Errorf("%w: %s expects %d arguments, got %d", errdefs.ErrInvalidArgument, c.Name, want, len(args))
	}
	if fn.NumIn() != want {
		return nil, fmt.Errorf("%w: %s resolved to a function with %d inputs, expected %d", errdefs.ErrBinding, c.Name, fn.NumIn(), want)
	}

	in := make([]reflect.Value, want)
	for i, arg := range args {
		pt := fn.In(i)
		switch {
		case !arg.IsValid() && pt.Kind() == reflect.Pointer && isRefParam(pt):
			arg = reflect.New(pt.Elem())
		case !arg.IsValid():
			arg = reflect.Zero(pt)
		case !arg.Type().AssignableTo(pt):
			return nil, fmt.Errorf("%w: argument %d of %s: %s is not assignable to %s", errdefs.ErrInvalidArgument, i, c.Name, arg.Type(), pt)
		}
		in[i] = arg
	}
	return in, nil
}

// boundMethod returns the method value called name on recv. Pointer-receiver
// methods are reached through a copy when recv is not addressable.
func boundMethod(recv reflect.Value, name string) (reflect.Value, error) {
	if IsNil(recv) {
		return reflect.Value{}, fmt.Errorf("%w: method %s needs a receiver", errdefs.ErrInvalidOperation, name)
	}
	v := recv
	for v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if m := v.MethodByName(name); m.IsValid() {
		return m, nil
	}
	if v.Kind() != reflect.Pointer {
		var p reflect.Value
		if v.CanAddr() {
			p = v.Addr()
		} else {
			p = reflect.New(v.Type())
			p.Elem().Set(v)
		}
		if m := p.MethodByName(name); m.IsValid() {
			return m, nil
		}
	}
	return reflect.Value{}, fmt.Errorf("%w: receiver of type %s has no method %s", errdefs.ErrBinding, v.Type(), name)
}

// fieldInvoker reads a struct field on the receiver, or a registered
// variable for static commands.
type fieldInvoker struct {
	static reflect.Value
}

func newField(declaring reflect.Type, name string, t reflect.Type, static reflect.Value) *Command {
	return &Command{
		DeclaringType: declaring,
		Kind:          KindField,
		Name:          name,
		Static:        static.IsValid(),
		Return:        t,
		inv:           &fieldInvoker{static: static},
	}
}

func (f *fieldInvoker) call(c *Command, recv reflect.Value, args []reflect.Value) (Result, error) {
	if len(args) > 0 {
		return Result{}, fmt.Errorf("%w: field %s takes no arguments", errdefs.ErrInvalidArgument, c.Name)
	}
	if c.Static {
		return Result{Return: f.static.Elem()}, nil
	}

	if IsNil(recv) {
		return Result{}, fmt.Errorf("%w: field %s needs a receiver", errdefs.ErrInvalidOperation, c.Name)
	}
	v := recv
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return Result{}, fmt.Errorf("%w: field %s read through a nil pointer", errdefs.ErrInvocation, c.Name)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return Result{}, fmt.Errorf("%w: receiver of type %s has no field %s", errdefs.ErrBinding, v.Type(), c.Name)
	}
	sf, ok := v.Type().FieldByName(c.Name)
	if !ok || !sf.IsExported() {
		return Result{}, fmt.Errorf("%w: receiver of type %s has no field %s", errdefs.ErrBinding, v.Type(), c.Name)
	}
	fv, err := v.FieldByIndexErr(sf.Index)
	if err != nil {
		return Result{}, fmt.Errorf("%w: field %s: %w", errdefs.ErrInvocation, c.Name, err)
	}
	return Result{Return: fv}, nil
}

// IsNil reports whether v carries no object: it is invalid, or a nil
// pointer, interface, map, slice, func or channel.
func IsNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
