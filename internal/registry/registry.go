package registry

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/vk/actiongraph/internal/typeref"
)

// Module is the interface that all bindable modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// MemberKind distinguishes registered static functions from static variables.
type MemberKind int

const (
	// FuncMember is a package-level function exposed as a static method.
	FuncMember MemberKind = iota
	// VarMember is a pointer to a package-level variable exposed as a static field.
	VarMember
)

// Member is a static member attached to an owner type.
type Member struct {
	Owner reflect.Type
	Name  string
	Kind  MemberKind
	// Value is the function value for FuncMember or the variable pointer for VarMember.
	Value reflect.Value
}

type memberKey struct {
	owner reflect.Type
	name  string
}

// Registry holds all the registered types, static members, objects and
// parameter descriptions for a single application session.
type Registry struct {
	mu      sync.RWMutex
	types   map[string]reflect.Type
	names   map[reflect.Type]string
	statics map[reflect.Type][]Member
	objects map[string]any
	params  map[memberKey][]string
}

// New creates and initializes a new Registry instance with all predeclared
// types registered.
func New() *Registry {
	r := &Registry{
		types:   make(map[string]reflect.Type),
		names:   make(map[reflect.Type]string),
		statics: make(map[reflect.Type][]Member),
		objects: make(map[string]any),
		params:  make(map[memberKey][]string),
	}
	for _, t := range builtins {
		r.RegisterType(t)
	}
	return r
}

var builtins = []reflect.Type{
	reflect.TypeFor[bool](),
	reflect.TypeFor[int](),
	reflect.TypeFor[int8](),
	reflect.TypeFor[int16](),
	reflect.TypeFor[int32](),
	reflect.TypeFor[int64](),
	reflect.TypeFor[uint](),
	reflect.TypeFor[uint8](),
	reflect.TypeFor[uint16](),
	reflect.TypeFor[uint32](),
	reflect.TypeFor[uint64](),
	reflect.TypeFor[uintptr](),
	reflect.TypeFor[float32](),
	reflect.TypeFor[float64](),
	reflect.TypeFor[complex64](),
	reflect.TypeFor[complex128](),
	reflect.TypeFor[string](),
	reflect.TypeFor[error](),
	typeref.Fallback,
}

// Register is a generic convenience wrapper around RegisterType.
func Register[T any](r *Registry) {
	r.RegisterType(reflect.TypeFor[T]())
}

// RegisterType registers t (or its element type when t is a pointer) under
// its qualified name. Registering the same type twice is a no-op; binding a
// name to a different type panics.
func (r *Registry) RegisterType(t reflect.Type) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name, err := typeref.QualifiedName(t)
	if err != nil {
		panic(fmt.Sprintf("cannot register type %s: %v", t, err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.types[name]; ok {
		if existing != t {
			panic(fmt.Sprintf("type name '%s' already registered to %s", name, existing))
		}
		return
	}
	r.types[name] = t
	r.names[t] = name
	slog.Debug("Registering type.", "name", name)
}

// RegisterFunc attaches a package-level function to owner as a static method.
func (r *Registry) RegisterFunc(owner reflect.Type, name string, fn any) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		panic(fmt.Sprintf("static function '%s' on %s is not a function", name, owner))
	}
	r.addStatic(owner, Member{Owner: owner, Name: name, Kind: FuncMember, Value: v})
}

// RegisterVar attaches a package-level variable (passed by pointer) to owner
// as a static field.
func (r *Registry) RegisterVar(owner reflect.Type, name string, ptr any) {
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		panic(fmt.Sprintf("static variable '%s' on %s must be a non-nil pointer", name, owner))
	}
	r.addStatic(owner, Member{Owner: owner, Name: name, Kind: VarMember, Value: v})
}

func (r *Registry) addStatic(owner reflect.Type, m Member) {
	r.RegisterType(owner)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.statics[owner] {
		if existing.Name == m.Name {
			panic(fmt.Sprintf("static member '%s' already registered on %s", m.Name, owner))
		}
	}
	slog.Debug("Registering static member.", "owner", owner.String(), "name", m.Name)
	r.statics[owner] = append(r.statics[owner], m)
}

// StaticMembers returns the static members registered for t, in
// registration order.
func (r *Registry) StaticMembers(t reflect.Type) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Member(nil), r.statics[t]...)
}

// RegisterObject registers a named instance that canvases can reference as
// a target object. The object's type is registered as well.
func (r *Registry) RegisterObject(name string, obj any) {
	if obj == nil {
		panic(fmt.Sprintf("object '%s' is nil", name))
	}
	r.RegisterType(reflect.TypeOf(obj))

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.objects[name]; exists {
		panic(fmt.Sprintf("object with name '%s' already registered", name))
	}
	slog.Debug("Registering object.", "name", name, "type", reflect.TypeOf(obj).String())
	r.objects[name] = obj
}

// Object returns the instance registered under name.
func (r *Registry) Object(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.objects[name]
	return obj, ok
}

// ObjectName returns the name an instance was registered under.
func (r *Registry) ObjectName(obj any) (string, bool) {
	if obj == nil || !reflect.TypeOf(obj).Comparable() {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, candidate := range r.objects {
		if reflect.TypeOf(candidate) == reflect.TypeOf(obj) && candidate == obj {
			return name, true
		}
	}
	return "", false
}

// DescribeParams records display names for the parameters of a member,
// in signature order (declared parameters first, then extra results).
func (r *Registry) DescribeParams(owner reflect.Type, member string, names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.params[memberKey{owner: owner, name: member}] = append([]string(nil), names...)
}

// ParamNames returns the names recorded by DescribeParams, if any. A pointer
// owner falls back to the names recorded for its element type.
func (r *Registry) ParamNames(owner reflect.Type, member string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if names, ok := r.params[memberKey{owner: owner, name: member}]; ok {
		return names
	}
	if owner != nil && owner.Kind() == reflect.Pointer {
		return r.params[memberKey{owner: owner.Elem(), name: member}]
	}
	return nil
}

// LookupType resolves a tidied qualified name, including derived pointer,
// slice, array and map forms of registered types.
func (r *Registry) LookupType(name string) (reflect.Type, bool) {
	name = typeref.Tidy(name)
	if name == "" {
		return nil, false
	}

	r.mu.RLock()
	t, ok := r.types[name]
	r.mu.RUnlock()
	if ok {
		return t, true
	}

	switch {
	case strings.HasPrefix(name, "*"):
		elem, ok := r.LookupType(name[1:])
		if !ok {
			return nil, false
		}
		return reflect.PointerTo(elem), true
	case strings.HasPrefix(name, "[]"):
		elem, ok := r.LookupType(name[2:])
		if !ok {
			return nil, false
		}
		return reflect.SliceOf(elem), true
	case strings.HasPrefix(name, "["):
		end := strings.IndexByte(name, ']')
		if end < 0 {
			return nil, false
		}
		n, err := strconv.Atoi(name[1:end])
		if err != nil || n < 0 {
			return nil, false
		}
		elem, ok := r.LookupType(name[end+1:])
		if !ok {
			return nil, false
		}
		return reflect.ArrayOf(n, elem), true
	case strings.HasPrefix(name, "map["):
		end := matchingBracket(name, len("map"))
		if end < 0 {
			return nil, false
		}
		key, ok := r.LookupType(name[len("map["):end])
		if !ok || !key.Comparable() {
			return nil, false
		}
		elem, ok := r.LookupType(name[end+1:])
		if !ok {
			return nil, false
		}
		return reflect.MapOf(key, elem), true
	}
	return nil, false
}

// matchingBracket returns the index of the ']' closing the '[' at open.
func matchingBracket(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// TypeName returns the registered name of t, if t is registered.
func (r *Registry) TypeName(t reflect.Type) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[t]
	return name, ok
}

// Types returns all registered named types that live in a package, sorted
// by qualified name. Predeclared types are omitted.
func (r *Registry) Types() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name, t := range r.types {
		if t.PkgPath() == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]reflect.Type, 0, len(names))
	for _, name := range names {
		out = append(out, r.types[name])
	}
	return out
}
