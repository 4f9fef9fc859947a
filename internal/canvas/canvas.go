// Package canvas hosts a graph of nodes wired output to input. It validates
// connections, rejects cycles and evaluates nodes in dependency order.
package canvas

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/vk/actiongraph/internal/ctxlog"
	"github.com/vk/actiongraph/internal/dag"
	"github.com/vk/actiongraph/internal/errdefs"
	"github.com/vk/actiongraph/internal/node"
	"github.com/vk/actiongraph/internal/nodeid"
)

// Connection wires an output socket to an input socket.
type Connection struct {
	From nodeid.Address
	To   nodeid.Address
}

// String implements fmt.Stringer.
func (c Connection) String() string {
	return c.From.String() + " -> " + c.To.String()
}

// Canvas is a set of nodes and the connections between them.
type Canvas struct {
	mu    sync.RWMutex
	nodes map[string]node.Node
	order []string
	// conns is keyed by the input address; an input has at most one source.
	conns map[nodeid.Address]Connection
	graph *dag.Graph

	observers []node.Observer
}

// New creates an empty canvas.
func New() *Canvas {
	return &Canvas{
		nodes: make(map[string]node.Node),
		conns: make(map[nodeid.Address]Connection),
		graph: dag.New(),
	}
}

// NewID returns a fresh node identifier.
func NewID() string {
	return uuid.NewString()
}

// AddObserver subscribes o to socket changes of every current and future
// node of the canvas.
func (c *Canvas) AddObserver(o node.Observer) {
	c.mu.Lock()
	c.observers = append(c.observers, o)
	nodes := c.snapshot()
	c.mu.Unlock()

	for _, n := range nodes {
		n.AddObserver(o)
	}
}

// Add places n on the canvas. IDs must be unique and usable in socket
// addresses.
func (c *Canvas) Add(n node.Node) error {
	id := n.ID()
	if !nodeid.ValidNodeID(id) {
		return fmt.Errorf("%w: invalid node id %q", errdefs.ErrInvalidArgument, id)
	}

	c.mu.Lock()
	if _, exists := c.nodes[id]; exists {
		c.mu.Unlock()
		return fmt.Errorf("%w: node %q already exists", errdefs.ErrInvalidArgument, id)
	}
	c.nodes[id] = n
	c.order = append(c.order, id)
	c.graph.AddNode(id)
	observers := append([]node.Observer(nil), c.observers...)
	c.mu.Unlock()

	n.AddObserver(&socketWatcher{canvas: c})
	for _, o := range observers {
		n.AddObserver(o)
	}
	return nil
}

// Remove deletes the node id and every connection touching it.
func (c *Canvas) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.nodes[id]; !ok {
		return fmt.Errorf("%w: node %q not found", errdefs.ErrInvalidArgument, id)
	}
	for to, conn := range c.conns {
		if conn.From.Node == id || conn.To.Node == id {
			c.dropLocked(to)
		}
	}
	delete(c.nodes, id)
	for i, nid := range c.order {
		if nid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.graph.RemoveNode(id)
	return nil
}

// Node returns the node with the given id.
func (c *Canvas) Node(id string) (node.Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.nodes[id]
	return n, ok
}

// Nodes returns the nodes in the order they were added.
func (c *Canvas) Nodes() []node.Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot()
}

func (c *Canvas) snapshot() []node.Node {
	out := make([]node.Node, len(c.order))
	for i, id := range c.order {
		out[i] = c.nodes[id]
	}
	return out
}

// Connections returns every connection, grouped by target node in node
// order and by input index within a node.
func (c *Canvas) Connections() []Connection {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Connection
	for _, id := range c.order {
		n := c.nodes[id]
		for i := range n.Inputs() {
			if conn, ok := c.conns[nodeid.Input(id, i)]; ok {
				out = append(out, conn)
			}
		}
	}
	return out
}

// Connect wires the output at from to the input at to. An existing
// connection into the same input is replaced. Type mismatches and
// connections that would close a cycle are rejected.
func (c *Canvas) Connect(from, to nodeid.Address) error {
	if from.IsInput() || !to.IsInput() {
		return fmt.Errorf("%w: connections run from outputs to inputs, got %s -> %s", errdefs.ErrInvalidArgument, from, to)
	}
	if from.Node == to.Node {
		return fmt.Errorf("%w: cannot connect node %s to itself", errdefs.ErrInvalidArgument, from.Node)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	out, err := c.socketLocked(from)
	if err != nil {
		return err
	}
	in, err := c.socketLocked(to)
	if err != nil {
		return err
	}

	if err := c.graph.AddEdge(from.Node, to.Node); err != nil {
		return err
	}
	if err := c.graph.DetectCycles(); err != nil {
		c.restoreEdgeLocked(from.Node, to.Node)
		return fmt.Errorf("%w: connecting %s to %s: %w", errdefs.ErrInvalidOperation, from, to, err)
	}

	previous, replaced := c.conns[to]
	if err := in.Connect(out); err != nil {
		c.restoreEdgeLocked(from.Node, to.Node)
		return fmt.Errorf("%w: %w", errdefs.ErrInvalidArgument, err)
	}
	c.conns[to] = Connection{From: from, To: to}
	if replaced && previous.From.Node != from.Node {
		c.restoreEdgeLocked(previous.From.Node, to.Node)
	}
	return nil
}

// Disconnect removes the connection into the input at to, if any.
func (c *Canvas) Disconnect(to nodeid.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked(to)
}

func (c *Canvas) socketLocked(a nodeid.Address) (*node.Socket, error) {
	n, ok := c.nodes[a.Node]
	if !ok {
		return nil, fmt.Errorf("%w: node %q not found", errdefs.ErrInvalidArgument, a.Node)
	}
	sockets := n.Outputs()
	if a.IsInput() {
		sockets = n.Inputs()
	}
	if a.Index < 0 || a.Index >= len(sockets) {
		return nil, fmt.Errorf("%w: %s: node has %d %s", errdefs.ErrInvalidArgument, a, len(sockets), a.Side)
	}
	return sockets[a.Index], nil
}

// dropLocked removes the connection into to and disconnects the socket.
func (c *Canvas) dropLocked(to nodeid.Address) {
	conn, ok := c.conns[to]
	if !ok {
		return
	}
	delete(c.conns, to)
	if in, err := c.socketLocked(to); err == nil {
		in.Disconnect()
	}
	c.restoreEdgeLocked(conn.From.Node, conn.To.Node)
}

// restoreEdgeLocked keeps the graph edge from -> to only while some
// connection still runs between the two nodes.
func (c *Canvas) restoreEdgeLocked(from, to string) {
	for _, conn := range c.conns {
		if conn.From.Node == from && conn.To.Node == to {
			return
		}
	}
	c.graph.RemoveEdge(from, to)
}

// socketWatcher drops connections whose sockets a node removed, e.g. when
// an action node rebuilds its sockets for a new command chain.
type socketWatcher struct {
	canvas *Canvas
}

func (w *socketWatcher) SocketAdded(*node.Socket) {}

func (w *socketWatcher) SocketRemoved(s *node.Socket) {
	c := w.canvas
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.Direction == node.Input {
		c.dropLocked(nodeid.Input(s.NodeID(), s.Index))
		return
	}
	removed := nodeid.Output(s.NodeID(), s.Index)
	for to, conn := range c.conns {
		if conn.From == removed {
			c.dropLocked(to)
		}
	}
}

// Result reports what happened to one node during an evaluation pass.
type Result struct {
	NodeID string
	// Calculated is false when the node was skipped because a connected
	// input carried no value.
	Calculated bool
	// OK is the value returned by Calculate.
	OK bool
}

// Evaluate calculates every node in dependency order.
func (c *Canvas) Evaluate(ctx context.Context) ([]Result, error) {
	order, err := c.graph.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	return c.run(ctx, order), nil
}

// RecalculateFrom calculates the node id and everything downstream of it.
func (c *Canvas) RecalculateFrom(ctx context.Context, id string) ([]Result, error) {
	order, err := c.graph.Descendants(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrInvalidArgument, err)
	}
	return c.run(ctx, order), nil
}

func (c *Canvas) run(ctx context.Context, order []string) []Result {
	logger := ctxlog.FromContext(ctx)

	nodes := make([]node.Node, 0, len(order))
	c.mu.RLock()
	for _, id := range order {
		if n, ok := c.nodes[id]; ok {
			nodes = append(nodes, n)
		}
	}
	c.mu.RUnlock()

	for _, n := range nodes {
		for _, out := range n.Outputs() {
			out.Reset()
		}
	}

	results := make([]Result, 0, len(nodes))
	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			logger.Warn("Evaluation cancelled.", "error", err)
			break
		}
		res := Result{NodeID: n.ID()}
		if missing := missingInput(n); missing != nil {
			logger.Debug("Skipping node, connected input has no value.", "node", n.ID(), "socket", missing.Name)
			results = append(results, res)
			continue
		}
		res.Calculated = true
		res.OK = n.Calculate(ctx)
		logger.Debug("Node calculated.", "node", n.ID(), "kind", n.Kind(), "ok", res.OK)
		results = append(results, res)
	}
	return results
}

func missingInput(n node.Node) *node.Socket {
	for _, in := range n.Inputs() {
		if in.IsConnected() && !in.HasValue() {
			return in
		}
	}
	return nil
}
