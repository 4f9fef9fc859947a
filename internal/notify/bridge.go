// Package notify mirrors canvas activity to a live editor over socket.io.
// A Bridge observes socket changes of every node and reports evaluation
// results; the transport behind it is any Emitter, normally a Client from
// Dial.
package notify

import (
	"context"
	"errors"

	"github.com/vk/actiongraph/internal/actionnode"
	"github.com/vk/actiongraph/internal/canvas"
	"github.com/vk/actiongraph/internal/ctxlog"
	"github.com/vk/actiongraph/internal/node"
	"github.com/vk/actiongraph/internal/typeref"
)

// Event names emitted by the bridge.
const (
	EventSocketAdded   = "socket_added"
	EventSocketRemoved = "socket_removed"
	EventNodeEvaluated = "node_evaluated"
)

// Emitter sends one named event with a payload.
type Emitter interface {
	Emit(event string, args ...any)
}

// SocketEvent is the payload of socket_added and socket_removed.
type SocketEvent struct {
	Node      string `json:"node"`
	Direction string `json:"direction"`
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Type      string `json:"type"`
}

// NodeEvent is the payload of node_evaluated.
type NodeEvent struct {
	Node       string `json:"node"`
	Kind       string `json:"kind"`
	Calculated bool   `json:"calculated"`
	OK         bool   `json:"ok"`
	Label      string `json:"label,omitempty"`
	State      string `json:"state,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Bridge forwards canvas activity to an Emitter.
type Bridge struct {
	emitter Emitter
}

var _ node.Observer = (*Bridge)(nil)

// NewBridge creates a bridge emitting through e.
func NewBridge(e Emitter) (*Bridge, error) {
	if e == nil {
		return nil, errors.New("notify: emitter is nil")
	}
	return &Bridge{emitter: e}, nil
}

// SocketAdded implements node.Observer.
func (b *Bridge) SocketAdded(s *node.Socket) {
	b.emitter.Emit(EventSocketAdded, socketEvent(s))
}

// SocketRemoved implements node.Observer.
func (b *Bridge) SocketRemoved(s *node.Socket) {
	b.emitter.Emit(EventSocketRemoved, socketEvent(s))
}

func socketEvent(s *node.Socket) SocketEvent {
	return SocketEvent{
		Node:      s.NodeID(),
		Direction: s.Direction.String(),
		Index:     s.Index,
		Name:      s.Name,
		Type:      typeref.ShortName(s.Type),
	}
}

// Report emits one node_evaluated event per result. Action nodes add their
// label, final state and abort reason.
func (b *Bridge) Report(ctx context.Context, c *canvas.Canvas, results []canvas.Result) {
	for _, r := range results {
		ev := NodeEvent{Node: r.NodeID, Calculated: r.Calculated, OK: r.OK}
		if n, ok := c.Node(r.NodeID); ok {
			ev.Kind = n.Kind()
			if a, ok := n.(*actionnode.Node); ok {
				ev.Label = a.Label()
				ev.State = a.State().String()
				if err := a.Err(); err != nil {
					ev.Error = err.Error()
				}
			}
		}
		b.emitter.Emit(EventNodeEvaluated, ev)
	}
	ctxlog.FromContext(ctx).Debug("Reported evaluation to editor.", "nodes", len(results))
}
