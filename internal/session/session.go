// Package session owns the state shared by every node of one editing or
// evaluation session: the type registry and the command catalog cache.
// Nothing in it is global, so independent sessions (and tests) never see
// each other's catalogs.
package session

import (
	"context"
	"reflect"

	"github.com/vk/actiongraph/internal/command"
	"github.com/vk/actiongraph/internal/ctxlog"
	"github.com/vk/actiongraph/internal/registry"
)

// Session bundles the session-owned collaborators of the binding core. It
// satisfies callable.Env and callable.Objects by delegating to the registry.
type Session struct {
	Registry *registry.Registry
	Commands *command.Cache
}

// New creates a session around reg. A nil reg gets a fresh registry with
// only the predeclared types.
func New(reg *registry.Registry) *Session {
	if reg == nil {
		reg = registry.New()
	}
	return &Session{
		Registry: reg,
		Commands: command.NewCache(reg),
	}
}

// LookupType resolves a persisted type name.
func (s *Session) LookupType(name string) (reflect.Type, bool) {
	return s.Registry.LookupType(name)
}

// StaticMembers returns the static members registered for t.
func (s *Session) StaticMembers(t reflect.Type) []registry.Member {
	return s.Registry.StaticMembers(t)
}

// ParamNames returns the parameter names described for a member.
func (s *Session) ParamNames(owner reflect.Type, member string) []string {
	return s.Registry.ParamNames(owner, member)
}

// Object returns the registered instance called name.
func (s *Session) Object(name string) (any, bool) {
	return s.Registry.Object(name)
}

// ObjectName returns the name obj was registered under.
func (s *Session) ObjectName(obj any) (string, bool) {
	return s.Registry.ObjectName(obj)
}

// Close releases the session. Catalogs are dropped with it.
func (s *Session) Close(ctx context.Context) error {
	ctxlog.FromContext(ctx).Debug("Session closed.", "catalogs", s.Commands.Len())
	return nil
}
