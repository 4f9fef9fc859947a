// Package env_vars exposes the process environment as a bindable object.
package env_vars

import (
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/vk/actiongraph/internal/registry"
)

// ObjectName is the name the process environment is registered under.
const ObjectName = "env"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Env reads environment variables.
type Env struct {
	lookup  func(string) (string, bool)
	environ func() []string
}

// New returns an Env backed by the process environment.
func New() *Env {
	return &Env{lookup: os.LookupEnv, environ: os.Environ}
}

// FromMap returns an Env backed by a fixed set of variables.
func FromMap(vars map[string]string) *Env {
	return &Env{
		lookup: func(k string) (string, bool) {
			v, ok := vars[k]
			return v, ok
		},
		environ: func() []string {
			out := make([]string, 0, len(vars))
			for k, v := range vars {
				out = append(out, k+"="+v)
			}
			return out
		},
	}
}

// Get returns the value of key, or "" when it is unset.
func (e *Env) Get(key string) string {
	v, _ := e.lookup(key)
	return v
}

// Lookup returns the value of key and whether it is set.
func (e *Env) Lookup(key string) (string, bool) {
	return e.lookup(key)
}

// All returns every variable as a map.
func (e *Env) All() map[string]string {
	envMap := make(map[string]string)
	for _, kv := range e.environ() {
		pair := strings.SplitN(kv, "=", 2)
		if len(pair) == 2 {
			envMap[pair[0]] = pair[1]
		}
	}
	return envMap
}

// Keys returns the sorted variable names.
func (e *Env) Keys() []string {
	all := e.All()
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Register registers the Env type, its System constructor and the "env"
// object.
func (m *Module) Register(r *registry.Registry) {
	t := reflect.TypeFor[Env]()
	r.RegisterFunc(t, "System", New)
	r.RegisterObject(ObjectName, New())
	r.DescribeParams(t, "Get", "key")
	r.DescribeParams(t, "Lookup", "key", "found")
}
