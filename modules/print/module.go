// Package print exposes a line printer that canvases can bind to.
package print

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sync"

	"github.com/vk/actiongraph/internal/registry"
)

// ObjectName is the name the module's printer is registered under.
const ObjectName = "stdout"

// Module implements the registry.Module interface for this package. Out
// defaults to os.Stdout.
type Module struct {
	Out io.Writer
}

// Printer writes lines to a writer. Lines counts what it has written.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	Prefix string
	Lines  int
}

// New creates a printer writing to w.
func New(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Println writes v on its own line. A nil value prints "(null)".
func (p *Printer) Println(value any) {
	if value == nil {
		p.write("(null)")
		return
	}
	p.write(fmt.Sprint(value))
}

// Line formats value with format, writes it and returns the written line.
func (p *Printer) Line(format string, value any) string {
	line := fmt.Sprintf(format, value)
	p.write(line)
	return line
}

func (p *Printer) write(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s%s\n", p.Prefix, s)
	p.Lines++
}

// Register registers the Printer type and the "stdout" object.
func (m *Module) Register(r *registry.Registry) {
	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	t := reflect.TypeFor[Printer]()
	r.RegisterType(t)
	r.RegisterObject(ObjectName, New(out))
	r.DescribeParams(t, "Println", "value")
	r.DescribeParams(t, "Line", "format", "value")
}
