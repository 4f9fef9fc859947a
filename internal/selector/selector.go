// Package selector builds the hierarchical command-chain menu offered to the
// user when configuring an action node.
//
// The menu is never materialized up front. Entries yields every path lazily
// in depth-first order and Children expands exactly one layer, so a host UI
// can render as much of the tree as it needs. Picking an entry hands the
// ordered command list to the callback supplied at Build time.
package selector

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"strings"

	"github.com/vk/actiongraph/internal/command"
	"github.com/vk/actiongraph/internal/ctxlog"
	"github.com/vk/actiongraph/internal/errdefs"
)

// PathSeparator joins the display names of an entry's path into its label.
const PathSeparator = "/"

// Entry is one selectable path through the menu.
type Entry struct {
	// Path holds the display name of every command on the path.
	Path []string
	// Commands is parallel to Path. Every command but the last is implicit.
	Commands []*command.Command
}

// Label renders the entry's path, e.g. "*Response Get/int StatusCode".
func (e Entry) Label() string {
	return strings.Join(e.Path, PathSeparator)
}

// Terminal returns the last command of the path.
func (e Entry) Terminal() *command.Command {
	if len(e.Commands) == 0 {
		return nil
	}
	return e.Commands[len(e.Commands)-1]
}

// Menu is a lazily expanded selection tree rooted at one type.
type Menu struct {
	cache      *command.Cache
	root       reflect.Type
	binding    command.Binding
	maxDepth   int
	onSelected func([]*command.Command)
}

// Build prepares a menu rooted at root. maxDepth bounds the path length; a
// value below 1 yields an empty menu. Layers below the root list instance
// members, since the previous link's result becomes their receiver.
func Build(cache *command.Cache, root reflect.Type, binding command.Binding, maxDepth int, onSelected func([]*command.Command)) (*Menu, error) {
	if cache == nil {
		return nil, fmt.Errorf("%w: selector needs a command cache", errdefs.ErrInvalidArgument)
	}
	if root == nil {
		return nil, fmt.Errorf("%w: selector needs a root type", errdefs.ErrInvalidArgument)
	}
	return &Menu{
		cache:      cache,
		root:       root,
		binding:    binding,
		maxDepth:   maxDepth,
		onSelected: onSelected,
	}, nil
}

// Root returns the type the menu is rooted at.
func (m *Menu) Root() reflect.Type { return m.root }

// Entries yields every path of the menu in depth-first order. Iteration
// stops early when the consumer stops pulling.
func (m *Menu) Entries(ctx context.Context) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		m.walk(ctx, Entry{}, m.root, m.binding, m.maxDepth, yield)
	}
}

func (m *Menu) walk(ctx context.Context, parent Entry, t reflect.Type, b command.Binding, levels int, yield func(Entry) bool) bool {
	if levels < 1 {
		return true
	}
	cat, err := m.cache.GetOrBuild(ctx, t, b)
	if err != nil {
		ctxlog.FromContext(ctx).Debug("Skipping menu layer.", "type", fmt.Sprint(t), "error", err)
		return true
	}
	for _, cmd := range cat.Commands {
		e := extend(parent, cmd)
		if !yield(e) {
			return false
		}
		if cmd.IsImplicit() && levels > 1 {
			if !m.walk(ctx, e, cmd.Return, nestedBinding(b), levels-1, yield) {
				return false
			}
		}
	}
	return true
}

// Children returns the entries directly below parent. The zero Entry
// addresses the root layer. Parents ending in a parameterized command, or
// already at the maximum depth, have no children.
func (m *Menu) Children(ctx context.Context, parent Entry) []Entry {
	t, b := m.root, m.binding
	if last := parent.Terminal(); last != nil {
		if !last.IsImplicit() {
			return nil
		}
		t, b = last.Return, nestedBinding(m.binding)
	}
	if len(parent.Commands) >= m.maxDepth {
		return nil
	}
	cat, err := m.cache.GetOrBuild(ctx, t, b)
	if err != nil {
		return nil
	}
	out := make([]Entry, 0, len(cat.Commands))
	for _, cmd := range cat.Commands {
		out = append(out, extend(parent, cmd))
	}
	return out
}

// Select finds the entry with the given label and hands its commands to the
// callback. An empty or unknown label fails with errdefs.ErrInvalidArgument;
// hosts treat that as a cancelled selection.
func (m *Menu) Select(ctx context.Context, label string) error {
	if label == "" {
		return fmt.Errorf("%w: empty selection", errdefs.ErrInvalidArgument)
	}
	for e := range m.Entries(ctx) {
		if e.Label() == label {
			return m.SelectEntry(e)
		}
	}
	return fmt.Errorf("%w: no menu entry %q", errdefs.ErrInvalidArgument, label)
}

// SelectEntry hands e's commands to the callback.
func (m *Menu) SelectEntry(e Entry) error {
	if len(e.Commands) == 0 {
		return fmt.Errorf("%w: empty selection", errdefs.ErrInvalidArgument)
	}
	for _, c := range e.Commands {
		if c == nil {
			return fmt.Errorf("%w: selection contains a nil command", errdefs.ErrInvalidArgument)
		}
	}
	if m.onSelected != nil {
		m.onSelected(append([]*command.Command(nil), e.Commands...))
	}
	return nil
}

func extend(parent Entry, cmd *command.Command) Entry {
	path := make([]string, len(parent.Path), len(parent.Path)+1)
	copy(path, parent.Path)
	cmds := make([]*command.Command, len(parent.Commands), len(parent.Commands)+1)
	copy(cmds, parent.Commands)
	return Entry{
		Path:     append(path, cmd.DisplayName()),
		Commands: append(cmds, cmd),
	}
}

func nestedBinding(b command.Binding) command.Binding {
	return b&^command.Static | command.Instance
}
