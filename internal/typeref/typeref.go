// Package typeref provides a serializable, name-based handle to a runtime
// type. The persisted name is the only source of truth; the live
// reflect.Type is a cache that is re-derived from the name on first access
// and degrades to Fallback when the name no longer resolves.
package typeref

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/vk/actiongraph/internal/errdefs"
)

// Fallback is the type substituted for names that fail to resolve.
var Fallback = reflect.TypeFor[any]()

// Resolver maps a tidied qualified name back to a runtime type.
type Resolver interface {
	LookupType(name string) (reflect.Type, bool)
}

// Descriptor is a serializable handle to a runtime type.
type Descriptor struct {
	name string
	live reflect.Type
}

// Of creates a descriptor for t. It fails with errdefs.ErrInvalidArgument when
// t is nil or has no stable qualified name.
func Of(t reflect.Type) (*Descriptor, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: type is nil", errdefs.ErrInvalidArgument)
	}
	name, err := QualifiedName(t)
	if err != nil {
		return nil, err
	}
	return &Descriptor{name: name, live: t}, nil
}

// MustOf is like Of but panics on failure. Intended for types known at compile time.
func MustOf(t reflect.Type) *Descriptor {
	d, err := Of(t)
	if err != nil {
		panic(err)
	}
	return d
}

// Named creates an unresolved descriptor from a persisted name. The name is
// tidied; resolution is deferred to the first Resolve call.
func Named(name string) *Descriptor {
	return &Descriptor{name: Tidy(name)}
}

// Name returns the tidied, persisted name.
func (d *Descriptor) Name() string {
	if d == nil {
		return ""
	}
	return d.name
}

// Validate reports whether the descriptor carries a non-empty name.
func (d *Descriptor) Validate() bool {
	return d != nil && d.name != ""
}

// Resolve returns the cached live type, resolving it by name on first use.
// A name that no longer resolves yields Fallback rather than an error. A
// descriptor without a name resolves to nil.
func (d *Descriptor) Resolve(r Resolver) reflect.Type {
	if !d.Validate() {
		return nil
	}
	if d.live != nil {
		return d.live
	}
	if r != nil {
		if t, ok := r.LookupType(d.name); ok {
			d.live = t
			return t
		}
	}
	d.live = Fallback
	return d.live
}

// IsFallback reports whether the descriptor degraded to Fallback on resolution.
func (d *Descriptor) IsFallback() bool {
	return d != nil && d.live == Fallback && d.name != "any"
}

// String implements fmt.Stringer.
func (d *Descriptor) String() string {
	return d.Name()
}

// Tidy strips the qualifier suffix (everything from the first comma outside
// brackets) from a persisted type name so that minor version differences do
// not break loading. Commas between generic type arguments are kept.
func Tidy(name string) string {
	depth := 0
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth <= 0 {
				return strings.TrimSpace(name[:i])
			}
		}
	}
	return strings.TrimSpace(name)
}

// QualifiedName returns the stable name of t: "<import path>.<Name>" for
// named types, the bare name for predeclared ones, and derived forms for
// pointers, slices, arrays and maps.
func QualifiedName(t reflect.Type) (string, error) {
	if t == nil {
		return "", fmt.Errorf("%w: type is nil", errdefs.ErrInvalidArgument)
	}
	if t == Fallback {
		return "any", nil
	}
	if t.Name() != "" {
		if t.PkgPath() == "" {
			return t.Name(), nil
		}
		return t.PkgPath() + "." + t.Name(), nil
	}
	switch t.Kind() {
	case reflect.Pointer:
		elem, err := QualifiedName(t.Elem())
		if err != nil {
			return "", err
		}
		return "*" + elem, nil
	case reflect.Slice:
		elem, err := QualifiedName(t.Elem())
		if err != nil {
			return "", err
		}
		return "[]" + elem, nil
	case reflect.Array:
		elem, err := QualifiedName(t.Elem())
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("[%d]%s", t.Len(), elem), nil
	case reflect.Map:
		key, err := QualifiedName(t.Key())
		if err != nil {
			return "", err
		}
		elem, err := QualifiedName(t.Elem())
		if err != nil {
			return "", err
		}
		return "map[" + key + "]" + elem, nil
	}
	return "", fmt.Errorf("%w: type %s has no stable qualified name", errdefs.ErrInvalidArgument, t)
}

// ShortName returns a display name for t without the import path, e.g.
// "*Response" or "[]string". Nil renders as "void".
func ShortName(t reflect.Type) string {
	if t == nil {
		return "void"
	}
	if t == Fallback {
		return "any"
	}
	if t.Name() != "" {
		return t.Name()
	}
	switch t.Kind() {
	case reflect.Pointer:
		return "*" + ShortName(t.Elem())
	case reflect.Slice:
		return "[]" + ShortName(t.Elem())
	case reflect.Array:
		return fmt.Sprintf("[%d]%s", t.Len(), ShortName(t.Elem()))
	case reflect.Map:
		return "map[" + ShortName(t.Key()) + "]" + ShortName(t.Elem())
	}
	return t.String()
}

// IsPrimitive reports whether t is a boolean or numeric kind. Strings,
// pointers and composite kinds are reference-like for binding purposes.
func IsPrimitive(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}
