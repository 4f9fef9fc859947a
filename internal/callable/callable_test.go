package callable

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/actiongraph/internal/command"
	"github.com/vk/actiongraph/internal/errdefs"
	"github.com/vk/actiongraph/internal/registry"
	"github.com/vk/actiongraph/internal/typeref"
)

type Greeter struct {
	Name string
}

func (g *Greeter) Greet(greeting string) string { return greeting + ", " + g.Name }

func (g *Greeter) Count(greeting string) int { return len(greeting) }

type LoudGreeter struct {
	Greeter
	Volume int
}

type Stranger struct{}

type Pair[K comparable, V any] struct {
	Key   K
	Value V
}

func (p *Pair[K, V]) Tag(prefix string) string { return fmt.Sprint(prefix, p.Key, "=", p.Value) }

func NewGreeter(name string) *Greeter { return &Greeter{Name: name} }

const greeterName = "github.com/vk/actiongraph/internal/callable.Greeter"

var (
	greeterType    = reflect.TypeFor[Greeter]()
	greeterPtrType = reflect.TypeFor[*Greeter]()
	stringType     = reflect.TypeFor[string]()
)

func newEnv() *registry.Registry {
	r := registry.New()
	registry.Register[Greeter](r)
	registry.Register[LoudGreeter](r)
	registry.Register[Stranger](r)
	registry.Register[Pair[string, int]](r)
	r.RegisterFunc(greeterType, "NewGreeter", NewGreeter)
	return r
}

func findCommand(t *testing.T, env *registry.Registry, typ reflect.Type, name string, static bool) *command.Command {
	t.Helper()
	cmd, ok := command.Find(env, typ, name, command.KindMethod, static)
	require.True(t, ok, name)
	return cmd
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newEnv()

	f, err := FromCommand(findCommand(t, env, greeterPtrType, "Greet", false), nil)
	require.NoError(t, err)

	spec, err := f.Spec(env)
	require.NoError(t, err)
	assert.Equal(t, Spec{
		TargetType: "*" + greeterName,
		Member:     "Greet",
		Kind:       "method",
		ReturnType: "string",
		ArgTypes:   []string{"string"},
	}, spec)

	restored, err := FromSpec(ctx, spec, env)
	require.NoError(t, err)
	res, err := restored.Invoke(env, reflect.ValueOf(&Greeter{Name: "Ann"}), []reflect.Value{reflect.ValueOf("Hi")})
	require.NoError(t, err)
	assert.Equal(t, "Hi, Ann", res.Return.String())

	// The sibling method with the same parameters is not confused with Greet.
	spec.Member = "Count"
	_, err = mustFromSpec(t, spec, env).Resolve(env)
	assert.ErrorIs(t, err, errdefs.ErrBinding)
}

func TestRoundTrip_GenericType(t *testing.T) {
	env := newEnv()
	pairPtr := reflect.TypeFor[*Pair[string, int]]()

	f, err := FromCommand(findCommand(t, env, pairPtr, "Tag", false), nil)
	require.NoError(t, err)
	spec, err := f.Spec(env)
	require.NoError(t, err)
	assert.Equal(t, "*github.com/vk/actiongraph/internal/callable.Pair[string,int]", spec.TargetType)

	restored := mustFromSpec(t, spec, env)
	assert.Equal(t, pairPtr, restored.TargetType(env))
	_, err = restored.Resolve(env)
	require.NoError(t, err)

	res, err := restored.Invoke(env, reflect.ValueOf(&Pair[string, int]{Key: "a", Value: 1}), []reflect.Value{reflect.ValueOf("#")})
	require.NoError(t, err)
	assert.Equal(t, "#a=1", res.Return.String())
}

func mustFromSpec(t *testing.T, s Spec, env *registry.Registry) *Func {
	t.Helper()
	f, err := FromSpec(context.Background(), s, env)
	require.NoError(t, err)
	return f
}

func TestResolve(t *testing.T) {
	env := newEnv()

	testCases := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{
			name: "tidied qualifier suffix",
			spec: Spec{TargetType: greeterName + ", v1.0.0", Member: "Greet", ReturnType: "string", ArgTypes: []string{"string, v2"}},
		},
		{
			name: "promoted through embedding",
			spec: Spec{TargetType: "github.com/vk/actiongraph/internal/callable.LoudGreeter", Member: "Greet", ReturnType: "string", ArgTypes: []string{"string"}},
		},
		{
			name: "field",
			spec: Spec{TargetType: greeterName, Member: "Name", Kind: "field", ReturnType: "string"},
		},
		{
			name: "static function",
			spec: Spec{TargetType: greeterName, Member: "NewGreeter", Static: true, ReturnType: "*" + greeterName, ArgTypes: []string{"string"}},
		},
		{
			name: "degraded argument type still matches",
			spec: Spec{TargetType: greeterName, Member: "Greet", ReturnType: "string", ArgTypes: []string{"Foo.Gone"}},
		},
		{
			name:    "unknown target type",
			spec:    Spec{TargetType: "Foo.Bar", Member: "Greet", ReturnType: "string", ArgTypes: []string{"string"}},
			wantErr: true,
		},
		{
			name:    "primitive argument mismatch",
			spec:    Spec{TargetType: greeterName, Member: "Greet", ReturnType: "string", ArgTypes: []string{"int"}},
			wantErr: true,
		},
		{
			name:    "wrong return type",
			spec:    Spec{TargetType: greeterName, Member: "Greet", ReturnType: "int", ArgTypes: []string{"string"}},
			wantErr: true,
		},
		{
			name:    "void where a value is returned",
			spec:    Spec{TargetType: greeterName, Member: "Greet", ArgTypes: []string{"string"}},
			wantErr: true,
		},
		{
			name:    "static flag must match",
			spec:    Spec{TargetType: greeterName, Member: "Greet", Static: true, ReturnType: "string", ArgTypes: []string{"string"}},
			wantErr: true,
		},
		{
			name:    "incomplete definition",
			spec:    Spec{TargetType: greeterName},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := mustFromSpec(t, tc.spec, env)
			cmd, err := f.Resolve(env)
			if tc.wantErr {
				assert.ErrorIs(t, err, errdefs.ErrBinding)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.spec.Member, cmd.Name)

			again, err := f.Resolve(env)
			require.NoError(t, err)
			assert.Same(t, cmd, again, "live handle is cached")
		})
	}
}

func TestResolve_FallbackType(t *testing.T) {
	env := newEnv()
	f := mustFromSpec(t, Spec{TargetType: "Foo.Bar", Member: "Baz", ReturnType: "Foo.Qux"}, env)

	assert.Equal(t, typeref.Fallback, f.TargetType(env))
	assert.Equal(t, typeref.Fallback, f.ReturnType(env))
	assert.Equal(t, "Foo.Bar", f.TargetTypeName())
	_, err := f.Resolve(env)
	assert.ErrorIs(t, err, errdefs.ErrBinding)
}

func TestInvoke(t *testing.T) {
	env := newEnv()
	ctx := context.Background()

	t.Run("bound target is the default receiver", func(t *testing.T) {
		f, err := FromCommand(findCommand(t, env, greeterPtrType, "Greet", false), &Greeter{Name: "Bob"})
		require.NoError(t, err)

		res, err := f.Invoke(env, reflect.Value{}, []reflect.Value{reflect.ValueOf("Hey")})
		require.NoError(t, err)
		assert.Equal(t, "Hey, Bob", res.Return.String())

		res, err = f.Invoke(env, reflect.ValueOf(&Greeter{Name: "Eve"}), []reflect.Value{reflect.ValueOf("Hey")})
		require.NoError(t, err)
		assert.Equal(t, "Hey, Eve", res.Return.String())
		assert.Equal(t, "Bob", f.Target().(*Greeter).Name, "receiver override is not persisted")
	})

	t.Run("static ignores the receiver", func(t *testing.T) {
		f, err := FromCommand(findCommand(t, env, greeterType, "NewGreeter", true), nil)
		require.NoError(t, err)
		assert.True(t, f.IsStatic())

		res, err := f.Invoke(env, reflect.ValueOf(&Greeter{}), []reflect.Value{reflect.ValueOf("Zed")})
		require.NoError(t, err)
		assert.Equal(t, "Zed", res.Return.Interface().(*Greeter).Name)
	})

	t.Run("unbound fails", func(t *testing.T) {
		_, err := New().Invoke(env, reflect.Value{}, nil)
		assert.ErrorIs(t, err, errdefs.ErrBinding)
	})

	t.Run("persisted target object", func(t *testing.T) {
		reg := newEnv()
		ann := &Greeter{Name: "Ann"}
		reg.RegisterObject("ann", ann)

		f, err := FromCommand(findCommand(t, reg, greeterPtrType, "Greet", false), nil)
		require.NoError(t, err)
		f.RebindTarget(ctx, reg, ann)
		require.True(t, f.IsDefinitionComplete())

		spec, err := f.Spec(reg)
		require.NoError(t, err)
		assert.Equal(t, "ann", spec.Target)

		restored := mustFromSpec(t, spec, reg)
		assert.Same(t, ann, restored.Target())
		res, err := restored.Invoke(reg, reflect.Value{}, []reflect.Value{reflect.ValueOf("Yo")})
		require.NoError(t, err)
		assert.Equal(t, "Yo, Ann", res.Return.String())

		f.RebindTarget(ctx, reg, &Greeter{})
		_, err = f.Spec(reg)
		assert.ErrorIs(t, err, errdefs.ErrInvalidArgument, "unregistered targets cannot be persisted")
	})
}

func TestRebind(t *testing.T) {
	ctx := context.Background()
	env := newEnv()

	newBound := func(t *testing.T) *Func {
		f, err := FromCommand(findCommand(t, env, greeterPtrType, "Greet", false), nil)
		require.NoError(t, err)
		return f
	}

	t.Run("instance flag tracks the target after every rebind", func(t *testing.T) {
		f := newBound(t)
		steps := []func(){
			func() { f.RebindTarget(ctx, env, &Greeter{}) },
			func() { f.RebindTarget(ctx, env, nil) },
			func() { f.RebindTarget(ctx, env, &LoudGreeter{}) },
			func() { _ = f.RebindType(ctx, env, reflect.TypeFor[Stranger]()) },
			func() { f.RebindTarget(ctx, env, &Greeter{}) },
			func() { _ = f.RebindMember(env, "Missing", command.KindMethod, false, nil, nil) },
			func() { _ = f.RebindType(ctx, env, greeterType) },
		}
		for i, step := range steps {
			step()
			assert.Equal(t, f.Target() != nil, f.IsInstanceMethod(), "step %d", i)
		}
	})

	t.Run("compatible type keeps the member", func(t *testing.T) {
		f := newBound(t)
		require.NoError(t, f.RebindType(ctx, env, greeterType))
		assert.Equal(t, "Greet", f.Member())
		assert.Equal(t, greeterName, f.TargetTypeName())
		_, err := f.Resolve(env)
		assert.NoError(t, err)
	})

	t.Run("incompatible type wipes the binding", func(t *testing.T) {
		f := newBound(t)
		f.RebindTarget(ctx, env, &Greeter{Name: "x"})
		require.True(t, f.IsInstanceMethod())

		require.NoError(t, f.RebindType(ctx, env, reflect.TypeFor[Stranger]()))
		assert.False(t, f.IsDefinitionComplete())
		assert.False(t, f.IsInstanceMethod())
	})

	t.Run("static member is cleared when a target is set", func(t *testing.T) {
		f, err := FromCommand(findCommand(t, env, greeterType, "NewGreeter", true), nil)
		require.NoError(t, err)
		require.True(t, f.IsStatic())

		f.RebindTarget(ctx, env, &Greeter{})
		assert.True(t, f.IsInstanceMethod())
		assert.False(t, f.IsStatic())
		assert.False(t, f.IsDefinitionComplete())
	})

	t.Run("static member survives a nil target", func(t *testing.T) {
		f, err := FromCommand(findCommand(t, env, greeterType, "NewGreeter", true), nil)
		require.NoError(t, err)

		f.RebindTarget(ctx, env, nil)
		assert.True(t, f.IsStatic())
		assert.Equal(t, "NewGreeter", f.Member())
	})

	t.Run("target of another type clears an unresolvable member", func(t *testing.T) {
		f := newBound(t)
		f.RebindTarget(ctx, env, &Stranger{})
		assert.True(t, f.IsInstanceMethod())
		assert.False(t, f.IsDefinitionComplete())
	})

	t.Run("member rebind", func(t *testing.T) {
		f := newBound(t)
		err := f.RebindMember(env, "Count", command.KindMethod, false, reflect.TypeFor[int](), []reflect.Type{stringType})
		require.NoError(t, err)
		res, err := f.Invoke(env, reflect.ValueOf(&Greeter{}), []reflect.Value{reflect.ValueOf("four")})
		require.NoError(t, err)
		assert.Equal(t, int64(4), res.Return.Int())

		err = f.RebindMember(env, "Missing", command.KindMethod, false, nil, nil)
		assert.ErrorIs(t, err, errdefs.ErrBinding)
		assert.False(t, f.IsDefinitionComplete())
	})

	t.Run("type without a stable name is rejected", func(t *testing.T) {
		f := newBound(t)
		err := f.RebindType(ctx, env, reflect.TypeFor[func()]())
		assert.ErrorIs(t, err, errdefs.ErrInvalidArgument)
		assert.True(t, f.IsDefinitionComplete())
	})
}

func TestHierarchy(t *testing.T) {
	got := Hierarchy(reflect.TypeFor[LoudGreeter]())
	assert.Equal(t, []reflect.Type{
		reflect.TypeFor[LoudGreeter](),
		reflect.TypeFor[*LoudGreeter](),
		greeterType,
		greeterPtrType,
	}, got)

	got = Hierarchy(reflect.TypeFor[*LoudGreeter]())
	assert.Equal(t, reflect.TypeFor[*LoudGreeter](), got[0])
	assert.Equal(t, reflect.TypeFor[LoudGreeter](), got[1])
}

func TestCompatible(t *testing.T) {
	testCases := []struct {
		name      string
		old, next reflect.Type
		want      bool
	}{
		{name: "same", old: greeterType, next: greeterType, want: true},
		{name: "pointer of old", old: greeterType, next: greeterPtrType, want: true},
		{name: "value of old", old: greeterPtrType, next: greeterType, want: true},
		{name: "assignable to interface", old: reflect.TypeFor[any](), next: greeterType, want: true},
		{name: "unrelated", old: greeterType, next: reflect.TypeFor[Stranger]()},
		{name: "embedding is not assignability", old: greeterType, next: reflect.TypeFor[LoudGreeter]()},
		{name: "nil old", old: nil, next: greeterType},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Compatible(tc.old, tc.next))
		})
	}
}
