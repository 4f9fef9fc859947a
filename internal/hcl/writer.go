package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/vk/actiongraph/internal/actionnode"
	"github.com/vk/actiongraph/internal/callable"
	"github.com/vk/actiongraph/internal/canvas"
	"github.com/vk/actiongraph/internal/typeref"
	"github.com/vk/actiongraph/internal/valuenode"
	"github.com/vk/actiongraph/internal/valueconv"
	"github.com/zclconf/go-cty/cty"
)

// Write renders c as a canvas document. objs names the target objects of
// action nodes; a target that is not a registered object is not persisted.
func Write(c *canvas.Canvas, objs callable.Objects) ([]byte, error) {
	f := hclwrite.NewEmptyFile()
	root := f.Body()

	for i, n := range c.Nodes() {
		if i > 0 {
			root.AppendNewline()
		}
		block := root.AppendNewBlock("node", []string{n.Kind(), n.ID()})
		var err error
		switch n := n.(type) {
		case *valuenode.Node:
			err = writeValue(block.Body(), n)
		case *actionnode.Node:
			err = writeAction(block.Body(), n, objs)
		default:
			err = fmt.Errorf("node kind %q cannot be persisted", n.Kind())
		}
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID(), err)
		}
	}

	for _, conn := range c.Connections() {
		root.AppendNewline()
		body := root.AppendNewBlock("connection", nil).Body()
		body.SetAttributeValue("from", cty.StringVal(conn.From.String()))
		body.SetAttributeValue("to", cty.StringVal(conn.To.String()))
	}
	return hclwrite.Format(f.Bytes()), nil
}

func writeValue(body *hclwrite.Body, n *valuenode.Node) error {
	if t := n.Type(); t != typeref.Fallback {
		name, err := typeref.QualifiedName(t)
		if err != nil {
			return err
		}
		body.SetAttributeValue("type", cty.StringVal(name))
	}
	if n.Value() == nil {
		return nil
	}
	val, err := valueconv.ToCty(n.Value())
	if err != nil {
		return fmt.Errorf("value cannot be written: %w", err)
	}
	body.SetAttributeValue("value", val)
	return nil
}

func writeAction(body *hclwrite.Body, n *actionnode.Node, objs callable.Objects) error {
	if obj := n.TargetObject(); obj != nil && objs != nil {
		if name, ok := objs.ObjectName(obj); ok {
			body.SetAttributeValue("target", cty.StringVal(name))
		}
	}
	if t := n.TargetType(); t != typeref.Fallback {
		name, err := typeref.QualifiedName(t)
		if err != nil {
			return err
		}
		body.SetAttributeValue("target_type", cty.StringVal(name))
	}

	specs, err := n.Specs()
	if err != nil {
		return err
	}
	for _, s := range specs {
		writeCall(body.AppendNewBlock("call", nil).Body(), s)
	}
	return nil
}

// writeCall sets only the attributes that carry a value so the document
// stays minimal and decodes back into the same callable.Spec.
func writeCall(body *hclwrite.Body, s callable.Spec) {
	body.SetAttributeValue("target_type", cty.StringVal(s.TargetType))
	for _, attr := range []struct{ name, value string }{
		{"target", s.Target},
		{"member", s.Member},
		{"kind", s.Kind},
		{"return_type", s.ReturnType},
	} {
		if attr.value != "" {
			body.SetAttributeValue(attr.name, cty.StringVal(attr.value))
		}
	}
	if s.Static {
		body.SetAttributeValue("static", cty.True)
	}
	if len(s.ArgTypes) > 0 {
		args := make([]cty.Value, len(s.ArgTypes))
		for i, a := range s.ArgTypes {
			args[i] = cty.StringVal(a)
		}
		body.SetAttributeValue("arg_types", cty.ListVal(args))
	}
}
