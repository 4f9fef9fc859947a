package command

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/vk/actiongraph/internal/errdefs"
	"github.com/vk/actiongraph/internal/typeref"
)

var errorType = reflect.TypeFor[error]()

// Kind distinguishes method commands from field commands.
type Kind int

const (
	// KindMethod is an instance method or a registered static function.
	KindMethod Kind = iota
	// KindField is a struct field or a registered static variable.
	KindField
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k == KindField {
		return "field"
	}
	return "method"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "method", "":
		return KindMethod, nil
	case "field":
		return KindField, nil
	}
	return KindMethod, fmt.Errorf("%w: unknown member kind %q", errdefs.ErrInvalidArgument, s)
}

// Direction describes how a parameter moves data.
type Direction int

const (
	// In is an ordinary argument supplied by the caller.
	In Direction = iota
	// Ref is a pointer argument the callee writes through.
	Ref
	// Out is an extra result value beyond the return value.
	Out
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case Ref:
		return "ref"
	case Out:
		return "out"
	default:
		return "in"
	}
}

// Param is one entry of a command's parameter list.
type Param struct {
	Name string
	Type reflect.Type
	Dir  Direction
}

// Result carries the values produced by one invocation.
type Result struct {
	// Return is the return value; invalid for void commands.
	Return reflect.Value
	// Params is parallel to Command.Params. Ref and Out entries hold the
	// produced values; In entries are invalid.
	Params []reflect.Value
}

// invoker is the closed interface behind which the two member variants live.
type invoker interface {
	call(c *Command, recv reflect.Value, args []reflect.Value) (Result, error)
}

// Command is a uniform description of one callable member.
type Command struct {
	// DeclaringType is the type the command was discovered on.
	DeclaringType reflect.Type
	Kind          Kind
	Name          string
	// Static is true for registered package-level functions and variables.
	Static bool
	Params []Param
	// Return is nil for commands without a return value.
	Return reflect.Type
	// Variadic is true when the last In parameter is variadic.
	Variadic bool

	inv invoker
}

// IsImplicit reports whether the command takes no parameters and returns a
// value, which makes it eligible as an intermediate link of a chain.
func (c *Command) IsImplicit() bool {
	return len(c.Params) == 0 && c.Return != nil
}

// ArgTypes returns the types of all parameters, in order.
func (c *Command) ArgTypes() []reflect.Type {
	out := make([]reflect.Type, len(c.Params))
	for i, p := range c.Params {
		out[i] = p.Type
	}
	return out
}

// InputCount returns the number of arguments the caller has to supply
// (In and Ref parameters).
func (c *Command) InputCount() int {
	n := 0
	for _, p := range c.Params {
		if p.Dir != Out {
			n++
		}
	}
	return n
}

// InvokeImplicit invokes a zero-argument method or reads a field on receiver.
func (c *Command) InvokeImplicit(receiver reflect.Value) (reflect.Value, error) {
	if !c.IsImplicit() {
		return reflect.Value{}, fmt.Errorf("%w: cannot implicitly call %s, it takes parameters or returns nothing", errdefs.ErrInvalidOperation, c.Name)
	}
	res, err := c.Call(receiver, nil)
	if err != nil {
		return reflect.Value{}, err
	}
	return res.Return, nil
}

// Invoke invokes a parameterized command with args. Implicit commands must
// be invoked through InvokeImplicit.
func (c *Command) Invoke(receiver reflect.Value, args []reflect.Value) (Result, error) {
	if c.IsImplicit() {
		return Result{}, fmt.Errorf("%w: cannot call implicit command %s with parameters", errdefs.ErrInvalidOperation, c.Name)
	}
	return c.Call(receiver, args)
}

// Call invokes the command without the implicit/explicit guard. args holds
// one value per In or Ref parameter, in order.
func (c *Command) Call(receiver reflect.Value, args []reflect.Value) (res Result, err error) {
	if c.inv == nil {
		return Result{}, fmt.Errorf("%w: command %s has no invoker", errdefs.ErrInvalidOperation, c.Name)
	}
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = fmt.Errorf("%w: %s panicked: %v", errdefs.ErrInvocation, c.Name, r)
		}
	}()
	return c.inv.call(c, receiver, args)
}

// DisplayName returns "<ReturnTypeName> <MemberName>". Accessor prefixes
// get_ and set_ are stripped from method names.
func (c *Command) DisplayName() string {
	name := c.Name
	if c.Kind == KindMethod {
		for _, prefix := range []string{"get_", "set_"} {
			if strings.HasPrefix(name, prefix) {
				name = name[len(prefix):]
				break
			}
		}
	}
	return typeref.ShortName(c.Return) + " " + name
}

// String implements fmt.Stringer.
func (c *Command) String() string {
	var sb strings.Builder
	if c.Static {
		sb.WriteString("static ")
	}
	sb.WriteString(typeref.ShortName(c.DeclaringType))
	sb.WriteString(".")
	sb.WriteString(c.Name)
	if c.Kind == KindMethod {
		sb.WriteString("(")
		for i, p := range c.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			if p.Dir != In {
				sb.WriteString(p.Dir.String())
				sb.WriteString(" ")
			}
			sb.WriteString(p.Name)
			sb.WriteString(" ")
			sb.WriteString(typeref.ShortName(p.Type))
		}
		sb.WriteString(")")
	}
	sb.WriteString(" ")
	sb.WriteString(typeref.ShortName(c.Return))
	return sb.String()
}

// isRefParam reports whether a parameter of type t is written through by
// the callee: a pointer to a primitive or a string.
func isRefParam(t reflect.Type) bool {
	if t.Kind() != reflect.Pointer {
		return false
	}
	elem := t.Elem()
	return typeref.IsPrimitive(elem) || elem.Kind() == reflect.String
}

// signature splits a function type into parameters and a return type. skip
// is the number of leading inputs to ignore (1 for method expressions).
func signature(fn reflect.Type, skip int, names []string) ([]Param, reflect.Type, bool) {
	var params []Param
	for i := skip; i < fn.NumIn(); i++ {
		t := fn.In(i)
		dir := In
		if isRefParam(t) {
			dir = Ref
		}
		params = append(params, Param{Name: paramName(names, len(params), fmt.Sprintf("arg%d", i-skip)), Type: t, Dir: dir})
	}

	outs := fn.NumOut()
	hasErr := outs > 0 && fn.Out(outs-1) == errorType
	if hasErr {
		outs--
	}
	var ret reflect.Type
	if outs > 0 {
		ret = fn.Out(0)
	}
	for j := 1; j < outs; j++ {
		params = append(params, Param{Name: paramName(names, len(params), fmt.Sprintf("out%d", j)), Type: fn.Out(j), Dir: Out})
	}
	return params, ret, hasErr
}

func paramName(names []string, i int, fallback string) string {
	if i < len(names) && names[i] != "" {
		return names[i]
	}
	return fallback
}
