package hcl

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/vk/actiongraph/internal/callable"
)

// fileRoot decodes the top-level blocks of a canvas document.
type fileRoot struct {
	Nodes       []*nodeBlock       `hcl:"node,block"`
	Connections []*connectionBlock `hcl:"connection,block"`
}

// nodeBlock holds a node's labels; the body is decoded per kind.
type nodeBlock struct {
	Kind string   `hcl:"kind,label"`
	ID   string   `hcl:"id,label"`
	Body hcl.Body `hcl:",remain"`
}

type valueBody struct {
	Type  string         `hcl:"type,optional"`
	Value hcl.Expression `hcl:"value,optional"`
}

type actionBody struct {
	Target     string          `hcl:"target,optional"`
	TargetType string          `hcl:"target_type,optional"`
	Calls      []callable.Spec `hcl:"call,block"`
}

type connectionBlock struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}
