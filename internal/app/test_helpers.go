package app

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/vk/actiongraph/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// SetupAppTest creates a new app instance for system testing. Logs go to
// the returned buffer at warn level so printed results stay readable; set
// ACTIONGRAPH_TEST_LOGS=true to dump the buffer after the test.
func SetupAppTest(t *testing.T, cfg *Config, modules ...registry.Module) (*App, *SafeBuffer) {
	t.Helper()

	outBuffer := &SafeBuffer{}
	cfg.LogLevel = "warn"
	testApp := NewApp(outBuffer, cfg, modules...)

	t.Cleanup(func() {
		if os.Getenv("ACTIONGRAPH_TEST_LOGS") == "true" {
			t.Logf("--- Full Output for %s ---\n%s", t.Name(), outBuffer.String())
		}
	})

	return testApp, outBuffer
}
