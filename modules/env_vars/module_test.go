package env_vars

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/actiongraph/internal/command"
	"github.com/vk/actiongraph/internal/registry"
	"github.com/vk/actiongraph/internal/session"
)

func TestEnv(t *testing.T) {
	e := FromMap(map[string]string{"B": "2", "A": "1"})

	assert.Equal(t, "1", e.Get("A"))
	assert.Equal(t, "", e.Get("C"))
	v, ok := e.Lookup("B")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
	_, ok = e.Lookup("C")
	assert.False(t, ok)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, e.All())
	assert.Equal(t, []string{"A", "B"}, e.Keys())
}

func TestEnv_System(t *testing.T) {
	t.Setenv("ACTIONGRAPH_ENV_TEST", "x=y")
	e := New()
	assert.Equal(t, "x=y", e.Get("ACTIONGRAPH_ENV_TEST"))
	assert.Equal(t, "x=y", e.All()["ACTIONGRAPH_ENV_TEST"])
}

func TestModule_Register(t *testing.T) {
	r := registry.New()
	(&Module{}).Register(r)
	require.NoError(t, r.Validate(context.Background()))

	obj, ok := r.Object(ObjectName)
	require.True(t, ok)
	assert.IsType(t, &Env{}, obj)

	sess := session.New(r)
	cat, err := sess.Commands.GetOrBuild(context.Background(), reflect.TypeFor[*Env](), command.Public|command.Instance|command.Static)
	require.NoError(t, err)

	lookup, ok := cat.Lookup("Lookup")
	require.True(t, ok)
	require.Len(t, lookup.Params, 2)
	assert.Equal(t, "key", lookup.Params[0].Name)
	assert.Equal(t, command.Out, lookup.Params[1].Dir)
	assert.Equal(t, "found", lookup.Params[1].Name)

	system, ok := cat.Lookup("System")
	require.True(t, ok)
	assert.True(t, system.Static)
}
