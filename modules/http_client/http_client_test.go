package http_client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/actiongraph/internal/command"
	"github.com/vk/actiongraph/internal/registry"
	"github.com/vk/actiongraph/internal/session"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Method", r.Method)
		switch r.URL.Path {
		case "/echo":
			body, _ := io.ReadAll(r.Body)
			fmt.Fprintf(w, "%s:%s", r.Header.Get("Content-Type"), body)
		case "/missing":
			http.NotFound(w, r)
		default:
			fmt.Fprint(w, "ok")
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient(t *testing.T) {
	srv := newServer(t)
	c, err := NewClient("5s")
	require.NoError(t, err)
	defer c.Close()

	testCases := []struct {
		name       string
		do         func() (*Response, error)
		wantStatus int
		wantBody   string
		wantMethod string
	}{
		{
			name:       "get",
			do:         func() (*Response, error) { return c.Get(srv.URL + "/") },
			wantStatus: http.StatusOK,
			wantBody:   "ok",
			wantMethod: http.MethodGet,
		},
		{
			name:       "post",
			do:         func() (*Response, error) { return c.Post(srv.URL+"/echo", "text/plain", "hi") },
			wantStatus: http.StatusOK,
			wantBody:   "text/plain:hi",
			wantMethod: http.MethodPost,
		},
		{
			name:       "not found",
			do:         func() (*Response, error) { return c.Get(srv.URL + "/missing") },
			wantStatus: http.StatusNotFound,
			wantBody:   "404 page not found\n",
			wantMethod: http.MethodGet,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := tc.do()
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, resp.StatusCode)
			assert.Equal(t, tc.wantBody, resp.Body)
			assert.Equal(t, tc.wantMethod, resp.Header("X-Method"))
			assert.Equal(t, tc.wantStatus == http.StatusOK, resp.OK())
		})
	}
}

func TestClient_Errors(t *testing.T) {
	_, err := NewClient("soon")
	assert.ErrorContains(t, err, "invalid timeout")

	c, err := NewClient("")
	require.NoError(t, err)
	_, err = c.Get("://bad")
	assert.ErrorContains(t, err, "failed to create request")
}

func TestModule_Register(t *testing.T) {
	srv := newServer(t)
	r := registry.New()
	(&Module{}).Register(r)
	require.NoError(t, r.Validate(context.Background()))

	sess := session.New(r)
	get, ok := command.Find(sess, reflect.TypeFor[*Client](), "Get", command.KindMethod, false)
	require.True(t, ok)
	assert.Equal(t, "url", get.Params[0].Name)

	obj, _ := r.Object(ObjectName)
	res, err := get.Invoke(reflect.ValueOf(obj), []reflect.Value{reflect.ValueOf(srv.URL)})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Return.Interface().(*Response).Body)

	ctor, ok := command.Find(sess, reflect.TypeFor[Client](), "NewClient", command.KindMethod, true)
	require.True(t, ok)
	_, err = ctor.Invoke(reflect.Value{}, []reflect.Value{reflect.ValueOf("bad")})
	assert.Error(t, err)
}
