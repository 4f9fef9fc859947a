package hcl

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/actiongraph/internal/actionnode"
	"github.com/vk/actiongraph/internal/canvas"
	"github.com/vk/actiongraph/internal/ctxlog"
	"github.com/vk/actiongraph/internal/fsutil"
	"github.com/vk/actiongraph/internal/nodeid"
	"github.com/vk/actiongraph/internal/session"
	"github.com/vk/actiongraph/internal/typeref"
	"github.com/vk/actiongraph/internal/valuenode"
	"github.com/vk/actiongraph/internal/valueconv"
)

// Loader builds canvases from documents, resolving type and object names
// through the session.
type Loader struct {
	sess *session.Session
}

// NewLoader creates a new canvas document loader.
func NewLoader(sess *session.Session) *Loader {
	return &Loader{sess: sess}
}

// LoadFile parses and builds the canvas stored at path.
func (l *Loader) LoadFile(ctx context.Context, path string) (*canvas.Canvas, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	return l.build(ctx, file.Body, path)
}

// LoadPath loads a single document, or every .hcl file below a directory
// merged into one canvas. Node IDs must be unique across the files.
func (l *Loader) LoadPath(ctx context.Context, path string) (*canvas.Canvas, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat canvas path: %w", err)
	}
	if !info.IsDir() {
		return l.LoadFile(ctx, path)
	}

	paths, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to list canvas files in %s: %w", path, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no .hcl files found in %s", path)
	}
	ctxlog.FromContext(ctx).Debug("Loading canvas directory.", "path", path, "files", len(paths))

	parser := hclparse.NewParser()
	files := make([]*hcl.File, 0, len(paths))
	for _, p := range paths {
		file, diags := parser.ParseHCLFile(p)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", p, diags)
		}
		files = append(files, file)
	}
	return l.build(ctx, hcl.MergeFiles(files), path)
}

// LoadBytes parses and builds a canvas from src. filename is used in
// diagnostics only.
func (l *Loader) LoadBytes(ctx context.Context, src []byte, filename string) (*canvas.Canvas, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	return l.build(ctx, file.Body, filename)
}

func (l *Loader) build(ctx context.Context, body hcl.Body, filename string) (*canvas.Canvas, error) {
	logger := ctxlog.FromContext(ctx).With("file", filename)
	ctx = ctxlog.WithLogger(ctx, logger)

	var root fileRoot
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	c := canvas.New()
	for _, block := range root.Nodes {
		if err := l.addNode(ctx, c, block); err != nil {
			return nil, fmt.Errorf("%s: node %q: %w", filename, block.ID, err)
		}
	}
	for _, conn := range root.Connections {
		from, err := nodeid.Parse(conn.From)
		if err != nil {
			return nil, fmt.Errorf("%s: connection from: %w", filename, err)
		}
		to, err := nodeid.Parse(conn.To)
		if err != nil {
			return nil, fmt.Errorf("%s: connection to: %w", filename, err)
		}
		if err := c.Connect(from, to); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
	}

	logger.Debug("Canvas document loaded.", "nodes", len(root.Nodes), "connections", len(root.Connections))
	return c, nil
}

func (l *Loader) addNode(ctx context.Context, c *canvas.Canvas, block *nodeBlock) error {
	switch block.Kind {
	case valuenode.Kind:
		var body valueBody
		if diags := gohcl.DecodeBody(block.Body, nil, &body); diags.HasErrors() {
			return diags
		}
		n, err := l.valueNode(ctx, block.ID, body)
		if err != nil {
			return err
		}
		return c.Add(n)

	case actionnode.Kind:
		var body actionBody
		if diags := gohcl.DecodeBody(block.Body, nil, &body); diags.HasErrors() {
			return diags
		}
		n, err := l.actionNode(ctx, block.ID, body)
		if err != nil {
			return err
		}
		return c.Add(n)
	}
	return fmt.Errorf("unknown node kind %q", block.Kind)
}

func (l *Loader) valueNode(ctx context.Context, id string, body valueBody) (*valuenode.Node, error) {
	t := typeref.Fallback
	if body.Type != "" {
		var ok bool
		if t, ok = l.sess.LookupType(body.Type); !ok {
			return nil, fmt.Errorf("unknown value type %q", body.Type)
		}
	}

	var v any
	if isExprDefined(body.Value) {
		val, diags := body.Value.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		v = val
		if t == typeref.Fallback {
			native, err := valueconv.ToNative(val)
			if err != nil {
				return nil, err
			}
			v = native
		}
	}
	return valuenode.New(ctx, id, t, v)
}

func (l *Loader) actionNode(ctx context.Context, id string, body actionBody) (*actionnode.Node, error) {
	logger := ctxlog.FromContext(ctx).With("node", id)
	n := actionnode.New(l.sess, id)

	if body.TargetType != "" {
		if t, ok := l.sess.LookupType(body.TargetType); ok {
			if err := n.SetTargetType(ctx, t); err != nil {
				return nil, err
			}
		} else {
			logger.Warn("Target type no longer resolves.", "target_type", body.TargetType)
		}
	}
	if err := n.LoadChain(ctx, body.Calls); err != nil {
		return nil, err
	}
	if body.Target != "" {
		obj, ok := l.sess.Object(body.Target)
		if !ok {
			logger.Warn("Dropping unknown target object.", "target", body.Target)
		} else {
			n.SetTargetObject(ctx, obj)
		}
	}
	return n, nil
}

// isExprDefined reports whether an optional attribute was present in the
// source. gohcl fills omitted optional expressions with a zero-width
// placeholder, so only a range with a physical size counts.
func isExprDefined(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	return r.End.Byte > r.Start.Byte
}
