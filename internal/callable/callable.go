// Package callable implements the serializable function handle stored by
// action nodes.
//
// A Func is split in two halves. The persisted half (target type, target
// object, member name, return and argument types) is pure data and round
// trips through Spec. The live half is a *command.Command resolved lazily
// from those names on first use and dropped whenever the binding changes.
package callable

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/vk/actiongraph/internal/command"
	"github.com/vk/actiongraph/internal/ctxlog"
	"github.com/vk/actiongraph/internal/errdefs"
	"github.com/vk/actiongraph/internal/typeref"
)

// Env is what a Func needs to turn persisted names back into a member.
// *registry.Registry implements it.
type Env interface {
	typeref.Resolver
	command.Source
}

// Objects maps named target instances to persisted references and back.
// *registry.Registry implements it.
type Objects interface {
	Object(name string) (any, bool)
	ObjectName(obj any) (string, bool)
}

// Spec is the persisted form of a Func.
type Spec struct {
	TargetType string   `hcl:"target_type"`
	Target     string   `hcl:"target,optional"`
	Member     string   `hcl:"member,optional"`
	Kind       string   `hcl:"kind,optional"`
	Static     bool     `hcl:"static,optional"`
	ReturnType string   `hcl:"return_type,optional"`
	ArgTypes   []string `hcl:"arg_types,optional"`
}

// Func is a bound callable.
type Func struct {
	targetType *typeref.Descriptor
	target     any
	member     string
	kind       command.Kind
	static     bool
	returnType *typeref.Descriptor
	argTypes   []*typeref.Descriptor

	live *command.Command
}

// New returns an empty, incomplete Func.
func New() *Func {
	return &Func{}
}

// FromCommand binds cmd as found on its declaring type. target may be nil;
// chain links are stored without a target and receive theirs at execution.
func FromCommand(cmd *command.Command, target any) (*Func, error) {
	if cmd == nil {
		return nil, fmt.Errorf("%w: command is nil", errdefs.ErrInvalidArgument)
	}
	tt, err := typeref.Of(cmd.DeclaringType)
	if err != nil {
		return nil, fmt.Errorf("cannot bind %s: %w", cmd.Name, err)
	}
	var rt *typeref.Descriptor
	if cmd.Return != nil {
		if rt, err = typeref.Of(cmd.Return); err != nil {
			return nil, fmt.Errorf("cannot bind %s: return type: %w", cmd.Name, err)
		}
	}
	args := make([]*typeref.Descriptor, len(cmd.Params))
	for i, p := range cmd.Params {
		if args[i], err = typeref.Of(p.Type); err != nil {
			return nil, fmt.Errorf("cannot bind %s: parameter %s: %w", cmd.Name, p.Name, err)
		}
	}
	return &Func{
		targetType: tt,
		target:     target,
		member:     cmd.Name,
		kind:       cmd.Kind,
		static:     cmd.Static,
		returnType: rt,
		argTypes:   args,
		live:       cmd,
	}, nil
}

// FromSpec rebuilds a Func from its persisted form. Type names are not
// resolved until first use. A target reference that no longer names a
// registered object is dropped with a warning instead of failing the load.
func FromSpec(ctx context.Context, s Spec, objs Objects) (*Func, error) {
	kind, err := command.ParseKind(s.Kind)
	if err != nil {
		return nil, err
	}
	f := &Func{
		member: s.Member,
		kind:   kind,
		static: s.Static,
	}
	if s.TargetType != "" {
		f.targetType = typeref.Named(s.TargetType)
	}
	if s.ReturnType != "" {
		f.returnType = typeref.Named(s.ReturnType)
	}
	for _, name := range s.ArgTypes {
		f.argTypes = append(f.argTypes, typeref.Named(name))
	}
	if s.Target != "" {
		if objs == nil {
			ctxlog.FromContext(ctx).Warn("Dropping target reference, no object source.", "target", s.Target)
		} else if obj, ok := objs.Object(s.Target); ok {
			f.target = obj
		} else {
			ctxlog.FromContext(ctx).Warn("Dropping unknown target reference.", "target", s.Target, "member", s.Member)
		}
	}
	return f, nil
}

// Spec returns the persisted form. A target that is not a registered
// object cannot be persisted.
func (f *Func) Spec(objs Objects) (Spec, error) {
	s := Spec{
		TargetType: f.targetType.Name(),
		Member:     f.member,
		Static:     f.static,
		ReturnType: f.returnType.Name(),
	}
	if f.member != "" {
		s.Kind = f.kind.String()
	}
	for _, a := range f.argTypes {
		s.ArgTypes = append(s.ArgTypes, a.Name())
	}
	if f.target != nil {
		var name string
		var ok bool
		if objs != nil {
			name, ok = objs.ObjectName(f.target)
		}
		if !ok {
			return Spec{}, fmt.Errorf("%w: target of %s is not a registered object", errdefs.ErrInvalidArgument, f.member)
		}
		s.Target = name
	}
	return s, nil
}

// IsDefinitionComplete reports whether a member is bound.
func (f *Func) IsDefinitionComplete() bool { return f.member != "" }

// IsInstanceMethod reports whether a target object is bound.
func (f *Func) IsInstanceMethod() bool { return f.target != nil }

// IsStatic reports whether the bound member needs no receiver.
func (f *Func) IsStatic() bool { return f.static }

// Member returns the bound member name.
func (f *Func) Member() string { return f.member }

// Kind returns the bound member kind.
func (f *Func) Kind() command.Kind { return f.kind }

// Target returns the bound target object, or nil.
func (f *Func) Target() any { return f.target }

// TargetTypeName returns the persisted target type name.
func (f *Func) TargetTypeName() string { return f.targetType.Name() }

// TargetType resolves the target type. It returns nil when none is set.
func (f *Func) TargetType(env typeref.Resolver) reflect.Type {
	return f.targetType.Resolve(env)
}

// ReturnType resolves the return type. It returns nil for void members.
func (f *Func) ReturnType(env typeref.Resolver) reflect.Type {
	return f.returnType.Resolve(env)
}

// ArgCount returns the number of stored parameter types.
func (f *Func) ArgCount() int { return len(f.argTypes) }

// ArgTypes resolves the stored parameter types.
func (f *Func) ArgTypes(env typeref.Resolver) []reflect.Type {
	out := make([]reflect.Type, len(f.argTypes))
	for i, a := range f.argTypes {
		out[i] = a.Resolve(env)
	}
	return out
}

// String implements fmt.Stringer.
func (f *Func) String() string {
	if !f.IsDefinitionComplete() {
		return "<unbound>"
	}
	name := f.targetType.Name()
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return name + "." + f.member
}

// RebindTarget replaces the target object. A non-nil target also retargets
// the type. When the bound member no longer resolves, or is static while a
// target is set, the member binding is cleared. A nil target keeps instance
// members since their receiver may be supplied at invocation.
func (f *Func) RebindTarget(ctx context.Context, env Env, obj any) {
	if obj != nil {
		if err := f.RebindType(ctx, env, reflect.TypeOf(obj)); err != nil {
			ctxlog.FromContext(ctx).Warn("Target object has no bindable type.", "type", reflect.TypeOf(obj).String(), "error", err)
			return
		}
	}
	f.target = obj
	f.live = nil
	if !f.IsDefinitionComplete() {
		return
	}
	if f.static && obj != nil {
		ctxlog.FromContext(ctx).Debug("Cleared static member after retargeting to an object.", "member", f.member)
		f.clearMember()
		return
	}
	if _, err := f.Resolve(env); err != nil {
		ctxlog.FromContext(ctx).Debug("Cleared member after retargeting.", "member", f.member, "error", err)
		f.clearMember()
	}
}

// RebindType replaces the target type. If t is not compatible with the
// current target type the whole binding, target object included, is wiped.
func (f *Func) RebindType(ctx context.Context, env typeref.Resolver, t reflect.Type) error {
	d, err := typeref.Of(t)
	if err != nil {
		return err
	}
	old := f.targetType.Resolve(env)
	if !f.targetType.Validate() || f.targetType.IsFallback() || !Compatible(old, t) {
		ctxlog.FromContext(ctx).Debug("Wiping binding for new target type.", "from", f.targetType.Name(), "to", d.Name())
		f.target = nil
		f.clearMember()
	}
	f.targetType = d
	f.live = nil
	return nil
}

// RebindMember binds a different member on the current target type. The
// call is a no-op when name, kind and receiver-ness are unchanged. A member
// that does not resolve leaves the Func without a member and fails with
// errdefs.ErrBinding.
func (f *Func) RebindMember(env Env, name string, kind command.Kind, static bool, ret reflect.Type, args []reflect.Type) error {
	if name == f.member && kind == f.kind && static == f.static {
		return nil
	}
	if name == "" {
		f.clearMember()
		return nil
	}
	var rt *typeref.Descriptor
	if ret != nil {
		var err error
		if rt, err = typeref.Of(ret); err != nil {
			return err
		}
	}
	descs := make([]*typeref.Descriptor, len(args))
	for i, a := range args {
		d, err := typeref.Of(a)
		if err != nil {
			return err
		}
		descs[i] = d
	}

	f.member, f.kind, f.static = name, kind, static
	f.returnType, f.argTypes = rt, descs
	f.live = nil
	if _, err := f.Resolve(env); err != nil {
		f.clearMember()
		return err
	}
	return nil
}

func (f *Func) clearMember() {
	f.member = ""
	f.kind = command.KindMethod
	f.static = false
	f.returnType = nil
	f.argTypes = nil
	f.live = nil
}

// Resolve returns the live command, looking it up by name on first use.
// The target type's hierarchy is searched from the most derived type. A
// candidate matches when its return type and parameter types equal the
// stored ones, stored types that degraded to typeref.Fallback match
// anything, and primitive-ness agrees pairwise.
func (f *Func) Resolve(env Env) (*command.Command, error) {
	if f.live != nil {
		return f.live, nil
	}
	if !f.IsDefinitionComplete() {
		return nil, fmt.Errorf("%w: no member bound", errdefs.ErrBinding)
	}
	t := f.targetType.Resolve(env)
	if t == nil || f.targetType.IsFallback() {
		return nil, fmt.Errorf("%w: target type %q of %s does not resolve", errdefs.ErrBinding, f.targetType.Name(), f.member)
	}
	ret := f.returnType.Resolve(env)
	args := f.ArgTypes(env)

	for _, candidate := range Hierarchy(t) {
		cmd, ok := command.Find(env, candidate, f.member, f.kind, f.static)
		if !ok || !f.matches(cmd, ret, args) {
			continue
		}
		f.live = cmd
		return cmd, nil
	}
	return nil, fmt.Errorf("%w: no %s %s matching the stored signature on %s", errdefs.ErrBinding, f.kind, f.member, t)
}

func (f *Func) matches(cmd *command.Command, ret reflect.Type, args []reflect.Type) bool {
	if !sameType(ret, cmd.Return, f.returnType.IsFallback()) {
		return false
	}
	if len(args) != len(cmd.Params) {
		return false
	}
	for i, p := range cmd.Params {
		if !sameType(args[i], p.Type, f.argTypes[i].IsFallback()) {
			return false
		}
		if !f.argTypes[i].IsFallback() && typeref.IsPrimitive(args[i]) != typeref.IsPrimitive(p.Type) {
			return false
		}
	}
	return true
}

func sameType(stored, actual reflect.Type, degraded bool) bool {
	if stored == nil || actual == nil {
		return stored == actual
	}
	return degraded || stored == actual
}

// Invoke calls the bound member. Instance members use receiver, or the
// bound target when receiver is invalid; static members ignore both. The
// receiver is used for this call only and never rebinds the Func.
func (f *Func) Invoke(env Env, receiver reflect.Value, args []reflect.Value) (command.Result, error) {
	cmd, err := f.Resolve(env)
	if err != nil {
		return command.Result{}, err
	}
	if f.static {
		return cmd.Call(reflect.Value{}, args)
	}
	if !receiver.IsValid() && f.target != nil {
		receiver = reflect.ValueOf(f.target)
	}
	return cmd.Call(receiver, args)
}

// Compatible reports whether a binding made against old survives a switch
// to next: next is old, assignable to it, or its pointer/value counterpart.
func Compatible(old, next reflect.Type) bool {
	switch {
	case old == nil || next == nil:
		return false
	case old == next, next.AssignableTo(old):
		return true
	case next.Kind() == reflect.Pointer && next.Elem() == old:
		return true
	case old.Kind() == reflect.Pointer && old.Elem() == next:
		return true
	}
	return false
}

// Hierarchy lists t followed by its pointer or value counterpart and then
// the types it embeds, breadth first.
func Hierarchy(t reflect.Type) []reflect.Type {
	var out []reflect.Type
	seen := make(map[reflect.Type]bool)
	add := func(x reflect.Type) {
		if x != nil && !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}

	queue := []reflect.Type{t}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		add(cur)

		base := cur
		switch cur.Kind() {
		case reflect.Pointer:
			base = cur.Elem()
			add(base)
		case reflect.Interface:
		default:
			add(reflect.PointerTo(cur))
		}
		if base.Kind() != reflect.Struct {
			continue
		}
		for i := 0; i < base.NumField(); i++ {
			if sf := base.Field(i); sf.Anonymous {
				queue = append(queue, sf.Type)
			}
		}
	}
	return out
}
