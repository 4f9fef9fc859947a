package node

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/vk/actiongraph/internal/typeref"
)

// Direction distinguishes input sockets from output sockets.
type Direction int

const (
	Input Direction = iota
	Output
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// Socket is a typed, named port on a node. Outputs hold the value the node
// published last; inputs read through their connection, falling back to a
// locally set value when unconnected.
type Socket struct {
	Name      string
	Type      reflect.Type
	Direction Direction
	// Index is the position of the socket among the node's inputs or outputs.
	Index int

	nodeID string

	mu         sync.RWMutex
	value      any
	set        bool
	connection *Socket
}

// NodeID returns the identifier of the node owning the socket.
func (s *Socket) NodeID() string { return s.nodeID }

// Value returns the current value and whether one is present.
func (s *Socket) Value() (any, bool) {
	s.mu.RLock()
	conn, v, ok := s.connection, s.value, s.set
	s.mu.RUnlock()
	if conn != nil {
		return conn.Value()
	}
	return v, ok
}

// HasValue reports whether Value would return a value.
func (s *Socket) HasValue() bool {
	_, ok := s.Value()
	return ok
}

// SetValue stores v on the socket.
func (s *Socket) SetValue(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value, s.set = v, true
}

// Reset clears the stored value.
func (s *Socket) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value, s.set = nil, false
}

// Connection returns the output this input is connected to, or nil.
func (s *Socket) Connection() *Socket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connection
}

// IsConnected reports whether the input has an upstream output.
func (s *Socket) IsConnected() bool { return s.Connection() != nil }

// Connect wires this input to the output from. The output type must be
// assignable to the input type; either side typed as typeref.Fallback
// accepts anything.
func (s *Socket) Connect(from *Socket) error {
	if s.Direction != Input || from == nil || from.Direction != Output {
		return fmt.Errorf("connection must run from an output to an input")
	}
	if !Accepts(s.Type, from.Type) {
		return fmt.Errorf("cannot connect %s (%s) to %s (%s)", from, typeref.ShortName(from.Type), s, typeref.ShortName(s.Type))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connection = from
	return nil
}

// Disconnect removes the upstream connection of an input.
func (s *Socket) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connection = nil
}

// String implements fmt.Stringer.
func (s *Socket) String() string {
	return fmt.Sprintf("%s.%ss[%d] %q", s.nodeID, s.Direction, s.Index, s.Name)
}

// Accepts reports whether a value of type from may flow into a socket of
// type to.
func Accepts(to, from reflect.Type) bool {
	switch {
	case to == nil || from == nil:
		return false
	case to == typeref.Fallback || from == typeref.Fallback:
		return true
	case from.AssignableTo(to):
		return true
	case typeref.IsPrimitive(to) && typeref.IsPrimitive(from):
		return true
	case to.Kind() == reflect.String && typeref.IsPrimitive(from):
		return true
	}
	return false
}
