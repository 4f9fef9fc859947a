package notify

import (
	"context"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/actiongraph/internal/actionnode"
	"github.com/vk/actiongraph/internal/canvas"
	"github.com/vk/actiongraph/internal/command"
	"github.com/vk/actiongraph/internal/registry"
	"github.com/vk/actiongraph/internal/session"
	"github.com/vk/actiongraph/internal/valuenode"
)

type emitted struct {
	event string
	args  []any
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (f *fakeEmitter) Emit(event string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{event: event, args: args})
}

func (f *fakeEmitter) named(event string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []any
	for _, e := range f.events {
		if e.event == event {
			out = append(out, e.args[0])
		}
	}
	return out
}

func TestNewBridge(t *testing.T) {
	_, err := NewBridge(nil)
	assert.Error(t, err)
}

type lamp struct{}

func (l *lamp) Dim(level int) bool { return level > 0 }

func TestBridge_Sockets(t *testing.T) {
	ctx := context.Background()
	fake := &fakeEmitter{}
	b, err := NewBridge(fake)
	require.NoError(t, err)

	reg := registry.New()
	registry.Register[lamp](reg)
	reg.DescribeParams(reflect.TypeFor[lamp](), "Dim", "level")
	sess := session.New(reg)
	c := canvas.New()
	c.AddObserver(b)
	n := actionnode.New(sess, "a1")
	require.NoError(t, c.Add(n))

	dim, ok := command.Find(sess, reflect.TypeFor[*lamp](), "Dim", command.KindMethod, false)
	require.True(t, ok)
	require.NoError(t, n.ApplySelection(ctx, []*command.Command{dim}))
	require.NoError(t, n.ApplySelection(ctx, nil))

	want := []any{
		SocketEvent{Node: "a1", Direction: "input", Index: 1, Name: "int level", Type: "int"},
		SocketEvent{Node: "a1", Direction: "output", Index: 0, Name: "return bool", Type: "bool"},
	}
	assert.Equal(t, want, fake.named(EventSocketAdded), "the target input is kept across rebuilds")
	assert.Equal(t, want, fake.named(EventSocketRemoved))
}

func TestBridge_Report(t *testing.T) {
	ctx := context.Background()
	fake := &fakeEmitter{}
	b, err := NewBridge(fake)
	require.NoError(t, err)

	c := canvas.New()
	v, err := valuenode.New(ctx, "v1", reflect.TypeFor[int](), 1)
	require.NoError(t, err)
	require.NoError(t, c.Add(v))
	require.NoError(t, c.Add(actionnode.New(session.New(registry.New()), "a1")))

	results, err := c.Evaluate(ctx)
	require.NoError(t, err)
	b.Report(ctx, c, results)

	assert.Equal(t, []any{
		NodeEvent{Node: "v1", Kind: "value", Calculated: true, OK: true},
		NodeEvent{Node: "a1", Kind: "action", Calculated: true, OK: true, Label: actionnode.NoCommand, State: "idle"},
	}, fake.named(EventNodeEvaluated))
}

func TestDial_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Dial(ctx, Options{URL: "localhost:3000"})
	assert.Error(t, err, "missing scheme")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Dial(cancelled, Options{URL: "http://127.0.0.1:1"})
	assert.Error(t, err)
}
