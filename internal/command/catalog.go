package command

import (
	"context"
	"fmt"
	"go/token"
	"reflect"
	"sync"

	"github.com/vk/actiongraph/internal/ctxlog"
	"github.com/vk/actiongraph/internal/errdefs"
	"github.com/vk/actiongraph/internal/registry"
)

// Source supplies the registered knowledge reflection cannot provide:
// static members and parameter names. *registry.Registry implements it.
type Source interface {
	StaticMembers(t reflect.Type) []registry.Member
	ParamNames(owner reflect.Type, member string) []string
}

// Catalog holds every command of one type matching one binding filter.
type Catalog struct {
	Type     reflect.Type
	Binding  Binding
	Commands []*Command
}

// Lookup returns the command called name, if present.
func (c *Catalog) Lookup(name string) (*Command, bool) {
	for _, cmd := range c.Commands {
		if cmd.Name == name {
			return cmd, true
		}
	}
	return nil, false
}

type catalogKey struct {
	t reflect.Type
	b Binding
}

// Cache materializes at most one Catalog per (type, binding) pair. Entries
// are never evicted: type shapes do not change within a process.
type Cache struct {
	src      Source
	mu       sync.Mutex
	catalogs map[catalogKey]*Catalog
}

// NewCache creates an empty cache backed by src. src may be nil, in which
// case only reflected instance members are catalogued.
func NewCache(src Source) *Cache {
	return &Cache{
		src:      src,
		catalogs: make(map[catalogKey]*Catalog),
	}
}

// Len returns the number of materialized catalogs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.catalogs)
}

// GetOrBuild returns the cached catalog for (t, b), building it by
// reflection on first request.
func (c *Cache) GetOrBuild(ctx context.Context, t reflect.Type, b Binding) (*Catalog, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: cannot build a catalog for a nil type", errdefs.ErrInvalidArgument)
	}
	key := catalogKey{t: t, b: b}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cat, ok := c.catalogs[key]; ok {
		return cat, nil
	}

	cat := &Catalog{Type: t, Binding: b, Commands: c.build(t, b)}
	c.catalogs[key] = cat
	ctxlog.FromContext(ctx).Debug("Built command catalog.", "type", t.String(), "binding", b.String(), "commands", len(cat.Commands))
	return cat, nil
}

func (c *Cache) build(t reflect.Type, b Binding) []*Command {
	var cmds []*Command
	if b.Has(Instance) && b.Has(Public) {
		cmds = append(cmds, c.instanceMethods(t)...)
		cmds = append(cmds, instanceFields(t)...)
	}
	if b.Has(Static) {
		cmds = append(cmds, c.statics(t, b)...)
	}
	return cmds
}

// methodSet returns the type whose method set is catalogued for t: the
// pointer method set for concrete non-pointer types, t itself otherwise.
func methodSet(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
		return t
	}
	return reflect.PointerTo(t)
}

func (c *Cache) instanceMethods(t reflect.Type) []*Command {
	mt := methodSet(t)
	skip := 1
	if mt.Kind() == reflect.Interface {
		skip = 0
	}
	var cmds []*Command
	for i := 0; i < mt.NumMethod(); i++ {
		m := mt.Method(i)
		if !m.IsExported() {
			continue
		}
		cmds = append(cmds, newMethod(t, m.Name, m.Type, skip, reflect.Value{}, c.paramNames(t, m.Name)))
	}
	return cmds
}

func instanceFields(t reflect.Type) []*Command {
	st := t
	for st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return nil
	}
	var cmds []*Command
	for _, f := range reflect.VisibleFields(st) {
		if !f.IsExported() {
			continue
		}
		cmds = append(cmds, newField(t, f.Name, f.Type, reflect.Value{}))
	}
	return cmds
}

func (c *Cache) statics(t reflect.Type, b Binding) []*Command {
	if c.src == nil {
		return nil
	}
	var cmds []*Command
	for _, m := range c.staticMembers(t) {
		exported := token.IsExported(m.Name)
		if (exported && !b.Has(Public)) || (!exported && !b.Has(NonPublic)) {
			continue
		}
		cmds = append(cmds, staticCommand(t, m, c.paramNames(t, m.Name)))
	}
	return cmds
}

// staticMembers returns members registered on t or, for pointer types, on
// the element type.
func (c *Cache) staticMembers(t reflect.Type) []registry.Member {
	members := c.src.StaticMembers(t)
	if t.Kind() == reflect.Pointer {
		members = append(members, c.src.StaticMembers(t.Elem())...)
	}
	return members
}

func staticCommand(t reflect.Type, m registry.Member, names []string) *Command {
	if m.Kind == registry.VarMember {
		return newField(t, m.Name, m.Value.Type().Elem(), m.Value)
	}
	return newMethod(t, m.Name, m.Value.Type(), 0, m.Value, names)
}

func (c *Cache) paramNames(t reflect.Type, member string) []string {
	if c.src == nil {
		return nil
	}
	return c.src.ParamNames(t, member)
}

// Find looks up a single member on t without consulting or populating the
// catalog cache. It returns false when t has no member of that name, kind
// and receiver-ness.
func Find(src Source, t reflect.Type, name string, kind Kind, static bool) (*Command, bool) {
	if t == nil || name == "" {
		return nil, false
	}
	var names []string
	if src != nil {
		names = src.ParamNames(t, name)
	}

	if static {
		if src == nil {
			return nil, false
		}
		c := &Cache{src: src}
		for _, m := range c.staticMembers(t) {
			if m.Name != name {
				continue
			}
			if (kind == KindField) != (m.Kind == registry.VarMember) {
				continue
			}
			return staticCommand(t, m, names), true
		}
		return nil, false
	}

	switch kind {
	case KindMethod:
		mt := methodSet(t)
		m, ok := mt.MethodByName(name)
		if !ok || !m.IsExported() {
			return nil, false
		}
		skip := 1
		if mt.Kind() == reflect.Interface {
			skip = 0
		}
		return newMethod(t, name, m.Type, skip, reflect.Value{}, names), true
	case KindField:
		st := t
		for st.Kind() == reflect.Pointer {
			st = st.Elem()
		}
		if st.Kind() != reflect.Struct {
			return nil, false
		}
		f, ok := st.FieldByName(name)
		if !ok || !f.IsExported() {
			return nil, false
		}
		return newField(t, name, f.Type, reflect.Value{}), true
	}
	return nil, false
}
