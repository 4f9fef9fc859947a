// Package http_client provides a shareable HTTP client object and the
// response type its requests produce.
package http_client

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/vk/actiongraph/internal/registry"
)

const (
	// ObjectName is the name of the default client.
	ObjectName = "http"
	// DefaultTimeout applies when NewClient gets an empty timeout.
	DefaultTimeout = 30 * time.Second
)

// Module implements the registry.Module interface. It registers the Client
// and Response types, the NewClient constructor and a default client.
type Module struct{}

// Client performs HTTP requests. It is safe for concurrent use.
type Client struct {
	http *http.Client
	// UserAgent is sent with every request when set.
	UserAgent string
}

// Response is the buffered result of one request.
type Response struct {
	StatusCode int
	Body       string
	header     http.Header
}

// Header returns the first value of the named response header.
func (r *Response) Header(name string) string {
	return r.header.Get(name)
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// NewClient creates a client. timeout is a time.ParseDuration string; an
// empty one means DefaultTimeout.
func NewClient(timeout string) (*Client, error) {
	d := DefaultTimeout
	if timeout != "" {
		var err error
		d, err = time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", timeout, err)
		}
	}
	return &Client{
		http: &http.Client{
			Timeout: d,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Get issues a GET request.
func (c *Client) Get(url string) (*Response, error) {
	return c.do(http.MethodGet, url, "", nil)
}

// Post issues a POST request with body sent as contentType.
func (c *Client) Post(url, contentType, body string) (*Response, error) {
	return c.do(http.MethodPost, url, contentType, strings.NewReader(body))
}

func (c *Client) do(method, url, contentType string, body io.Reader) (*Response, error) {
	slog.Info("Making HTTP request", "method", method, "url", url)

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	slog.Info("Received HTTP response", "status", resp.Status)

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: string(bodyBytes), header: resp.Header}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Register registers the module's types, constructor and default client.
func (m *Module) Register(r *registry.Registry) {
	client, err := NewClient("")
	if err != nil {
		panic(err)
	}
	ct := reflect.TypeFor[Client]()
	r.RegisterType(reflect.TypeFor[Response]())
	r.RegisterFunc(ct, "NewClient", NewClient)
	r.RegisterObject(ObjectName, client)
	r.DescribeParams(ct, "NewClient", "timeout")
	r.DescribeParams(ct, "Get", "url")
	r.DescribeParams(ct, "Post", "url", "content_type", "body")
	r.DescribeParams(reflect.TypeFor[Response](), "Header", "name")
}
