package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/vk/actiongraph/internal/ctxlog"
)

// Validate performs a consistency check between registered static members,
// objects and parameter descriptions. It is meant to run once at startup.
func (r *Registry) Validate(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for owner, members := range r.statics {
		for _, m := range members {
			switch m.Kind {
			case FuncMember:
				if m.Value.Kind() != reflect.Func {
					errs = append(errs, fmt.Sprintf("static '%s' on %s: expected a function, got %s", m.Name, owner, m.Value.Kind()))
				}
			case VarMember:
				if m.Value.Kind() != reflect.Pointer {
					errs = append(errs, fmt.Sprintf("static '%s' on %s: expected a variable pointer, got %s", m.Name, owner, m.Value.Kind()))
				}
			}
		}
	}

	for key, names := range r.params {
		arity, ok := r.memberArity(key)
		if !ok {
			errs = append(errs, fmt.Sprintf("parameter names for '%s' on %s: member not found", key.name, key.owner))
			continue
		}
		if len(names) > arity {
			errs = append(errs, fmt.Sprintf("parameter names for '%s' on %s: %d names for %d parameters", key.name, key.owner, len(names), arity))
		}
		if len(names) < arity {
			logger.Warn("Member has fewer parameter names than parameters; the rest get generated names.", "owner", key.owner.String(), "member", key.name)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// memberArity returns an upper bound on the number of parameters a member
// exposes: its declared inputs plus every non-error result beyond the first.
func (r *Registry) memberArity(key memberKey) (int, bool) {
	var fn reflect.Type
	skipRecv := 0
	for _, m := range r.statics[key.owner] {
		if m.Name == key.name && m.Kind == FuncMember {
			fn = m.Value.Type()
		}
	}
	if fn == nil {
		candidates := []reflect.Type{key.owner}
		if key.owner.Kind() != reflect.Pointer && key.owner.Kind() != reflect.Interface {
			candidates = append(candidates, reflect.PointerTo(key.owner))
		}
		for _, t := range candidates {
			if method, ok := t.MethodByName(key.name); ok {
				fn = method.Type
				if t.Kind() != reflect.Interface {
					skipRecv = 1
				}
				break
			}
		}
	}
	if fn == nil {
		return 0, false
	}

	outs := fn.NumOut()
	if outs > 0 && fn.Out(outs-1) == reflect.TypeFor[error]() {
		outs--
	}
	extra := 0
	if outs > 1 {
		extra = outs - 1
	}
	return fn.NumIn() - skipRecv + extra, true
}
