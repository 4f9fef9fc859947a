package canvas

import (
	"context"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/actiongraph/internal/errdefs"
	"github.com/vk/actiongraph/internal/node"
	"github.com/vk/actiongraph/internal/nodeid"
)

// adder sums its int inputs into its only output.
type adder struct {
	node.Base
	calls int
}

func newAdder(id string, inputs int) *adder {
	a := &adder{}
	a.Init(id, "Adder")
	for range inputs {
		a.CreateInput("int x", reflect.TypeFor[int]())
	}
	a.CreateOutput("int sum", reflect.TypeFor[int]())
	return a
}

func (a *adder) Kind() string { return "adder" }

func (a *adder) Calculate(ctx context.Context) bool {
	a.calls++
	sum := 0
	for _, in := range a.Inputs() {
		if v, ok := in.Value(); ok {
			sum += v.(int)
		}
	}
	a.Output(0).SetValue(sum)
	return true
}

// rebuild drops and recreates all sockets.
func (a *adder) rebuild() {
	n := len(a.Inputs())
	a.ClearSockets()
	for range n {
		a.CreateInput("int x", reflect.TypeFor[int]())
	}
	a.CreateOutput("int sum", reflect.TypeFor[int]())
}

type recorder struct{ added, removed int }

func (r *recorder) SocketAdded(*node.Socket) { r.added++ }
func (r *recorder) SocketRemoved(*node.Socket) { r.removed++ }

func TestNewID(t *testing.T) {
	id := NewID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.True(t, nodeid.ValidNodeID(id))
}

func TestAdd(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(newAdder("a", 0)))
	assert.ErrorIs(t, c.Add(newAdder("a", 0)), errdefs.ErrInvalidArgument)
	assert.ErrorIs(t, c.Add(newAdder("a.b", 0)), errdefs.ErrInvalidArgument)

	require.NoError(t, c.Add(newAdder("b", 0)))
	ids := []string{}
	for _, n := range c.Nodes() {
		ids = append(ids, n.ID())
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestConnect(t *testing.T) {
	c := New()
	a, b, d, e := newAdder("a", 1), newAdder("b", 2), newAdder("d", 1), newAdder("e", 0)
	for _, n := range []node.Node{a, b, d, e} {
		require.NoError(t, c.Add(n))
	}

	require.NoError(t, c.Connect(nodeid.Output("a", 0), nodeid.Input("b", 1)))
	assert.Same(t, a.Output(0), b.Input(1).Connection())

	testCases := []struct {
		name     string
		from, to nodeid.Address
		wantErr  error
	}{
		{name: "wrong direction", from: nodeid.Input("a", 0), to: nodeid.Input("b", 0), wantErr: errdefs.ErrInvalidArgument},
		{name: "self", from: nodeid.Output("a", 0), to: nodeid.Input("a", 0), wantErr: errdefs.ErrInvalidArgument},
		{name: "unknown node", from: nodeid.Output("zz", 0), to: nodeid.Input("b", 0), wantErr: errdefs.ErrInvalidArgument},
		{name: "index out of range", from: nodeid.Output("a", 3), to: nodeid.Input("b", 0), wantErr: errdefs.ErrInvalidArgument},
		{name: "cycle", from: nodeid.Output("b", 0), to: nodeid.Input("a", 0), wantErr: errdefs.ErrInvalidOperation},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, c.Connect(tc.from, tc.to), tc.wantErr)
		})
	}

	t.Run("cycle attempt leaves no edge behind", func(t *testing.T) {
		require.NoError(t, c.Connect(nodeid.Output("b", 0), nodeid.Input("d", 0)))
		order, err := c.graph.TopologicalOrder()
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "d", "e"}, order)
	})

	t.Run("replacing a connection", func(t *testing.T) {
		require.NoError(t, c.Connect(nodeid.Output("e", 0), nodeid.Input("b", 1)))
		assert.Same(t, e.Output(0), b.Input(1).Connection())
		deps, err := c.graph.Dependencies("b")
		require.NoError(t, err)
		assert.Equal(t, []string{"e"}, deps, "the edge from the replaced source is gone")
	})
}

func TestConnect_TypeMismatch(t *testing.T) {
	c := New()
	src := &adder{}
	src.Init("src", "Strings")
	src.CreateOutput("string s", reflect.TypeFor[string]())
	require.NoError(t, c.Add(src))
	require.NoError(t, c.Add(newAdder("dst", 1)))

	err := c.Connect(nodeid.Output("src", 0), nodeid.Input("dst", 0))
	assert.ErrorIs(t, err, errdefs.ErrInvalidArgument)
	assert.Empty(t, c.Connections())
	deps, _ := c.graph.Dependencies("dst")
	assert.Empty(t, deps)
}

func TestEvaluate(t *testing.T) {
	ctx := context.Background()
	c := New()
	sink, left, right := newAdder("sink", 2), newAdder("left", 0), newAdder("right", 1)
	for _, n := range []node.Node{sink, left, right} {
		require.NoError(t, c.Add(n))
	}
	require.NoError(t, c.Connect(nodeid.Output("left", 0), nodeid.Input("right", 0)))
	require.NoError(t, c.Connect(nodeid.Output("left", 0), nodeid.Input("sink", 0)))
	require.NoError(t, c.Connect(nodeid.Output("right", 0), nodeid.Input("sink", 1)))
	left.Output(0).SetValue(99)

	results, err := c.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Result{
		{NodeID: "left", Calculated: true, OK: true},
		{NodeID: "right", Calculated: true, OK: true},
		{NodeID: "sink", Calculated: true, OK: true},
	}, results)
	v, _ := sink.Output(0).Value()
	assert.Equal(t, 0, v, "outputs are reset before a pass")

	results, err = c.RecalculateFrom(ctx, "right")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, left.calls)
	assert.Equal(t, 2, right.calls)
	assert.Equal(t, 2, sink.calls)

	_, err = c.RecalculateFrom(ctx, "nope")
	assert.ErrorIs(t, err, errdefs.ErrInvalidArgument)
}

func TestEvaluate_SkipsMissingInputs(t *testing.T) {
	ctx := context.Background()
	c := New()
	silent := &adder{}
	silent.Init("silent", "Silent")
	silent.CreateOutput("int x", reflect.TypeFor[int]())
	dst := newAdder("dst", 1)
	require.NoError(t, c.Add(silent))
	require.NoError(t, c.Add(dst))
	require.NoError(t, c.Connect(nodeid.Output("silent", 0), nodeid.Input("dst", 0)))

	results, err := c.RecalculateFrom(ctx, "dst")
	require.NoError(t, err)
	assert.Equal(t, []Result{{NodeID: "dst"}}, results)
	assert.Zero(t, dst.calls)
}

func TestSocketRemovalDropsConnections(t *testing.T) {
	c := New()
	a, b := newAdder("a", 1), newAdder("b", 1)
	require.NoError(t, c.Add(a))
	require.NoError(t, c.Add(b))
	require.NoError(t, c.Connect(nodeid.Output("a", 0), nodeid.Input("b", 0)))

	a.rebuild()
	assert.Empty(t, c.Connections())
	assert.False(t, b.Input(0).IsConnected())
	deps, err := c.graph.Dependencies("b")
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestObserversAndRemove(t *testing.T) {
	c := New()
	a := newAdder("a", 1)
	require.NoError(t, c.Add(a))
	rec := &recorder{}
	c.AddObserver(rec)
	b := newAdder("b", 1)
	require.NoError(t, c.Add(b))
	require.NoError(t, c.Connect(nodeid.Output("a", 0), nodeid.Input("b", 0)))

	a.rebuild()
	b.rebuild()
	assert.Equal(t, 4, rec.added)
	assert.Equal(t, 4, rec.removed)

	require.NoError(t, c.Connect(nodeid.Output("a", 0), nodeid.Input("b", 0)))
	require.NoError(t, c.Remove("a"))
	assert.Empty(t, c.Connections())
	_, ok := c.Node("a")
	assert.False(t, ok)
	assert.ErrorIs(t, c.Remove("a"), errdefs.ErrInvalidArgument)
}
