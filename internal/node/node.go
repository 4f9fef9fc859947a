// Package node provides the socket substrate shared by all canvas nodes:
// typed sockets, the embeddable Base with socket bookkeeping, and observer
// notifications for socket changes.
package node

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/vk/actiongraph/internal/typeref"
)

// Node is a single element of a canvas. The canvas supplies input values
// through connections and calls Calculate once per evaluation pass.
type Node interface {
	// ID is the unique identifier of the node within its canvas.
	ID() string
	// Kind names the node implementation, e.g. "action" or "value".
	Kind() string
	// Title is the human-readable caption.
	Title() string
	Inputs() []*Socket
	Outputs() []*Socket
	// Calculate evaluates the node. It returns true when the outputs are
	// valid; failures inside the node are logged, not returned.
	Calculate(ctx context.Context) bool
	// AddObserver subscribes o to socket changes of this node.
	AddObserver(o Observer)
}

// Observer is notified when a node adds or removes sockets, e.g. when an
// action node rebuilds its sockets after a new command selection.
type Observer interface {
	SocketAdded(s *Socket)
	SocketRemoved(s *Socket)
}

// Base carries the socket bookkeeping shared by all node kinds. Embed it and
// call Init before use.
type Base struct {
	id    string
	title string

	mu        sync.RWMutex
	inputs    []*Socket
	outputs   []*Socket
	observers []Observer
}

// Init sets the identity of the node.
func (b *Base) Init(id, title string) {
	b.id = id
	b.title = title
}

// ID returns the node identifier.
func (b *Base) ID() string { return b.id }

// Title returns the node caption.
func (b *Base) Title() string { return b.title }

// Inputs returns a snapshot of the input sockets in creation order.
func (b *Base) Inputs() []*Socket {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]*Socket(nil), b.inputs...)
}

// Outputs returns a snapshot of the output sockets in creation order.
func (b *Base) Outputs() []*Socket {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]*Socket(nil), b.outputs...)
}

// Input returns the input socket at index i, or nil.
func (b *Base) Input(i int) *Socket {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i < 0 || i >= len(b.inputs) {
		return nil
	}
	return b.inputs[i]
}

// Output returns the output socket at index i, or nil.
func (b *Base) Output(i int) *Socket {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i < 0 || i >= len(b.outputs) {
		return nil
	}
	return b.outputs[i]
}

// AddObserver subscribes o to socket changes.
func (b *Base) AddObserver(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, o)
}

// CreateInput appends an input socket and notifies observers.
func (b *Base) CreateInput(name string, t reflect.Type) *Socket {
	return b.create(name, t, Input)
}

// CreateOutput appends an output socket and notifies observers.
func (b *Base) CreateOutput(name string, t reflect.Type) *Socket {
	return b.create(name, t, Output)
}

func (b *Base) create(name string, t reflect.Type, dir Direction) *Socket {
	if t == nil {
		t = typeref.Fallback
	}
	b.mu.Lock()
	s := &Socket{Name: name, Type: t, Direction: dir, nodeID: b.id}
	if dir == Input {
		s.Index = len(b.inputs)
		b.inputs = append(b.inputs, s)
	} else {
		s.Index = len(b.outputs)
		b.outputs = append(b.outputs, s)
	}
	observers := append([]Observer(nil), b.observers...)
	b.mu.Unlock()

	for _, o := range observers {
		o.SocketAdded(s)
	}
	return s
}

// ClearSockets removes every socket, notifying observers for each.
func (b *Base) ClearSockets() {
	b.TruncateSockets(0)
}

// TruncateSockets removes every output and all inputs from index keep on,
// notifying observers for each. The first keep inputs stay connected.
func (b *Base) TruncateSockets(keep int) {
	b.mu.Lock()
	keep = max(0, min(keep, len(b.inputs)))
	removed := append(append([]*Socket(nil), b.inputs[keep:]...), b.outputs...)
	if keep == 0 {
		b.inputs = nil
	} else {
		b.inputs = b.inputs[:keep:keep]
	}
	b.outputs = nil
	observers := append([]Observer(nil), b.observers...)
	b.mu.Unlock()

	for _, s := range removed {
		s.Disconnect()
		for _, o := range observers {
			o.SocketRemoved(s)
		}
	}
}

// String implements fmt.Stringer.
func (b *Base) String() string {
	return fmt.Sprintf("%s (%s)", b.title, b.id)
}
