package typeref

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/actiongraph/internal/errdefs"
)

type sample struct{}

type pair[K comparable, V any] struct {
	Key   K
	Value V
}

type mapResolver map[string]reflect.Type

func (m mapResolver) LookupType(name string) (reflect.Type, bool) {
	t, ok := m[name]
	return t, ok
}

const (
	samplePath = "github.com/vk/actiongraph/internal/typeref.sample"
	pairPath   = "github.com/vk/actiongraph/internal/typeref.pair[string,int]"
)

func TestQualifiedName(t *testing.T) {
	testCases := []struct {
		name    string
		typ     reflect.Type
		want    string
		wantErr bool
	}{
		{name: "predeclared", typ: reflect.TypeFor[int](), want: "int"},
		{name: "named", typ: reflect.TypeFor[sample](), want: samplePath},
		{name: "pointer", typ: reflect.TypeFor[*sample](), want: "*" + samplePath},
		{name: "slice", typ: reflect.TypeFor[[]string](), want: "[]string"},
		{name: "array", typ: reflect.TypeFor[[3]bool](), want: "[3]bool"},
		{name: "map", typ: reflect.TypeFor[map[string]*sample](), want: "map[string]*" + samplePath},
		{name: "generic", typ: reflect.TypeFor[*pair[string, int]](), want: "*" + pairPath},
		{name: "fallback", typ: Fallback, want: "any"},
		{name: "error", typ: reflect.TypeFor[error](), want: "error"},
		{name: "anonymous struct", typ: reflect.TypeFor[struct{ A int }](), wantErr: true},
		{name: "func", typ: reflect.TypeFor[func()](), wantErr: true},
		{name: "nil", typ: nil, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := QualifiedName(tc.typ)
			if tc.wantErr {
				assert.ErrorIs(t, err, errdefs.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestOf(t *testing.T) {
	d, err := Of(reflect.TypeFor[*sample]())
	require.NoError(t, err)
	assert.Equal(t, "*"+samplePath, d.Name())
	assert.True(t, d.Validate())
	assert.Equal(t, reflect.TypeFor[*sample](), d.Resolve(nil), "live type is cached at creation")

	_, err = Of(nil)
	assert.ErrorIs(t, err, errdefs.ErrInvalidArgument)

	assert.Panics(t, func() { MustOf(reflect.TypeFor[chan int]()) })
}

func TestDescriptor_Resolve(t *testing.T) {
	resolver := mapResolver{samplePath: reflect.TypeFor[sample]()}

	t.Run("tidied name resolves", func(t *testing.T) {
		d := Named(samplePath + ", v1.2.3")
		assert.Equal(t, samplePath, d.Name())
		assert.Equal(t, reflect.TypeFor[sample](), d.Resolve(resolver))
		assert.False(t, d.IsFallback())
	})

	t.Run("generic name with several type arguments", func(t *testing.T) {
		r := mapResolver{pairPath: reflect.TypeFor[pair[string, int]]()}
		d := Named(MustOf(reflect.TypeFor[pair[string, int]]()).Name())
		assert.Equal(t, pairPath, d.Name())
		assert.Equal(t, reflect.TypeFor[pair[string, int]](), d.Resolve(r))
		assert.False(t, d.IsFallback())
	})

	t.Run("missing type degrades to fallback", func(t *testing.T) {
		d := Named("Foo.Bar")
		assert.Equal(t, Fallback, d.Resolve(resolver))
		assert.True(t, d.IsFallback())
		assert.Equal(t, "Foo.Bar", d.Name(), "persisted name is kept")
	})

	t.Run("resolution is cached", func(t *testing.T) {
		r := mapResolver{"x.Y": reflect.TypeFor[int]()}
		d := Named("x.Y")
		require.Equal(t, reflect.TypeFor[int](), d.Resolve(r))
		delete(r, "x.Y")
		assert.Equal(t, reflect.TypeFor[int](), d.Resolve(r))
	})

	t.Run("empty descriptor", func(t *testing.T) {
		var nilDesc *Descriptor
		assert.False(t, nilDesc.Validate())
		assert.Nil(t, nilDesc.Resolve(resolver))
		assert.False(t, Named("  ").Validate())
	})
}

func TestTidy(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{in: samplePath, want: samplePath},
		{in: samplePath + ", v1.2.3", want: samplePath},
		{in: "  " + samplePath + " , Culture=neutral", want: samplePath},
		{in: pairPath, want: pairPath},
		{in: pairPath + ", v2", want: pairPath},
		{in: "*" + pairPath + ",v2", want: "*" + pairPath},
		{in: "map[string]" + pairPath, want: "map[string]" + pairPath},
		{in: "x.Pair[x.Pair[int,bool],string], v1", want: "x.Pair[x.Pair[int,bool],string]"},
		{in: "", want: ""},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, Tidy(tc.in))
		})
	}
}

func TestShortName(t *testing.T) {
	assert.Equal(t, "void", ShortName(nil))
	assert.Equal(t, "any", ShortName(Fallback))
	assert.Equal(t, "*sample", ShortName(reflect.TypeFor[*sample]()))
	assert.Equal(t, "map[string][]sample", ShortName(reflect.TypeFor[map[string][]sample]()))
}

func TestIsPrimitive(t *testing.T) {
	assert.True(t, IsPrimitive(reflect.TypeFor[int]()))
	assert.True(t, IsPrimitive(reflect.TypeFor[float32]()))
	assert.True(t, IsPrimitive(reflect.TypeFor[bool]()))
	assert.False(t, IsPrimitive(reflect.TypeFor[string]()))
	assert.False(t, IsPrimitive(reflect.TypeFor[*int]()))
	assert.False(t, IsPrimitive(nil))
}
