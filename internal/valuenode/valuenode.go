// Package valuenode implements a constant source node. It publishes one typed
// value on its only output, typically to feed an action node's parameters.
package valuenode

import (
	"context"
	"fmt"
	"reflect"

	"github.com/vk/actiongraph/internal/errdefs"
	"github.com/vk/actiongraph/internal/node"
	"github.com/vk/actiongraph/internal/typeref"
	"github.com/vk/actiongraph/internal/valueconv"
)

const (
	// Kind identifies value nodes in persisted canvases.
	Kind = "value"
	// Title is the default caption of a value node.
	Title = "Value"
)

// Node holds a constant.
type Node struct {
	node.Base

	typ   reflect.Type
	value any
}

var _ node.Node = (*Node)(nil)

// New creates a value node of type t holding v converted to t. A nil t
// makes an untyped node that accepts any value.
func New(ctx context.Context, id string, t reflect.Type, v any) (*Node, error) {
	if t == nil {
		t = typeref.Fallback
	}
	n := &Node{typ: t}
	n.Init(id, Title)
	n.CreateOutput(typeref.ShortName(t)+" value", t)
	if err := n.Set(ctx, v); err != nil {
		return nil, err
	}
	return n, nil
}

// Kind implements node.Node.
func (n *Node) Kind() string { return Kind }

// Type returns the declared type of the value.
func (n *Node) Type() reflect.Type { return n.typ }

// Value returns the held value.
func (n *Node) Value() any { return n.value }

// Set replaces the held value. It fails when v cannot be converted to the
// node's type.
func (n *Node) Set(ctx context.Context, v any) error {
	if n.typ == typeref.Fallback {
		n.value = v
		return nil
	}
	rv, err := valueconv.Convert(ctx, v, n.typ)
	if err != nil {
		return fmt.Errorf("%w: value node %s: %w", errdefs.ErrInvalidArgument, n.ID(), err)
	}
	n.value = rv.Interface()
	return nil
}

// Calculate publishes the value.
func (n *Node) Calculate(ctx context.Context) bool {
	n.Output(0).SetValue(n.value)
	return true
}
