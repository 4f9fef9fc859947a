// Package actionnode implements the canvas node that executes a chain of
// bound callables against a target object.
//
// The first link of a chain is invoked on the target (or statically), each
// following link is invoked on the previous link's return value, and only
// the last link may take parameters. The node's sockets mirror that last
// link: one input per parameter, one output per by-ref or out parameter and
// one output for a non-void return value.
package actionnode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/vk/actiongraph/internal/callable"
	"github.com/vk/actiongraph/internal/command"
	"github.com/vk/actiongraph/internal/ctxlog"
	"github.com/vk/actiongraph/internal/errdefs"
	"github.com/vk/actiongraph/internal/node"
	"github.com/vk/actiongraph/internal/selector"
	"github.com/vk/actiongraph/internal/session"
	"github.com/vk/actiongraph/internal/typeref"
	"github.com/vk/actiongraph/internal/valueconv"
)

const (
	// Kind identifies action nodes in persisted canvases.
	Kind = "action"
	// Title is the default caption of an action node.
	Title = "Action Node"
	// TargetSocket is the name of the first input, which supplies the
	// receiver of the first link.
	TargetSocket = "Target Object"
	// NoCommand is the label of a node without a chain.
	NoCommand = "No command"
	// LabelSeparator joins the display names of the links in a label.
	LabelSeparator = "::"
	// MenuDepth is the default number of chain levels offered by
	// SelectionMenu.
	MenuDepth = 3
)

// State is the execution state of a node. A run starts Idle and ends either
// Completed or Aborted.
type State int

const (
	Idle State = iota
	ValidatingReceiver
	InvokingLink
	Completed
	Aborted
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case ValidatingReceiver:
		return "validating_receiver"
	case InvokingLink:
		return "invoking_link"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	default:
		return "idle"
	}
}

// Node is an action node. It is not safe for concurrent use; a canvas
// calculates its nodes one at a time.
type Node struct {
	node.Base

	sess *session.Session

	chain        []*callable.Func
	label        string
	targetType   reflect.Type
	targetObject any
	menuDepth    int

	state   State
	lastErr error
}

var _ node.Node = (*Node)(nil)

// New creates an action node with only the target input.
func New(sess *session.Session, id string) *Node {
	n := &Node{sess: sess, label: NoCommand, menuDepth: MenuDepth}
	n.Init(id, Title)
	n.CreateInput(TargetSocket, typeref.Fallback)
	return n
}

// Kind implements node.Node.
func (n *Node) Kind() string { return Kind }

// Label returns the display names of the chain joined by "::", or
// NoCommand.
func (n *Node) Label() string { return n.label }

// State returns the state the last Calculate ended in.
func (n *Node) State() State { return n.state }

// Err returns the reason of the last abort, or nil.
func (n *Node) Err() error { return n.lastErr }

// Chain returns the bound links in execution order.
func (n *Node) Chain() []*callable.Func {
	return append([]*callable.Func(nil), n.chain...)
}

// SetMenuDepth changes the number of chain levels SelectionMenu offers.
func (n *Node) SetMenuDepth(depth int) { n.menuDepth = depth }

// TargetObject returns the object set through SetTargetObject.
func (n *Node) TargetObject() any { return n.targetObject }

// TargetType returns the type menus are built on: the explicitly set type,
// else the declaring type of the first link, else typeref.Fallback.
func (n *Node) TargetType() reflect.Type {
	if n.targetType != nil {
		return n.targetType
	}
	if len(n.chain) > 0 {
		if t := n.chain[0].TargetType(n.sess); t != nil {
			return t
		}
	}
	return typeref.Fallback
}

// SetTargetObject sets the object the first link is invoked on while the
// target input is not connected. A chain bound to an incompatible type is
// cleared.
func (n *Node) SetTargetObject(ctx context.Context, obj any) {
	if obj != nil {
		n.retarget(ctx, reflect.TypeOf(obj))
	}
	n.targetObject = obj
	if in := n.Input(0); in != nil {
		if obj == nil {
			in.Reset()
		} else {
			in.SetValue(obj)
		}
	}
}

// SetTargetType sets the type menus are built on without providing an
// object. A chain bound to an incompatible type is cleared.
func (n *Node) SetTargetType(ctx context.Context, t reflect.Type) error {
	if t == nil {
		return fmt.Errorf("%w: target type is nil", errdefs.ErrInvalidArgument)
	}
	n.retarget(ctx, t)
	return nil
}

func (n *Node) retarget(ctx context.Context, t reflect.Type) {
	old := n.TargetType()
	if len(n.chain) > 0 && old != typeref.Fallback && !callable.Compatible(old, t) {
		ctxlog.FromContext(ctx).Info("Target type changed, clearing command chain.",
			"node", n.ID(), "from", typeref.ShortName(old), "to", typeref.ShortName(t))
		n.clear(ctx)
	}
	n.targetType = t
}

// hasTarget reports whether the first link gets a receiver at execution.
func (n *Node) hasTarget() bool {
	in := n.Input(0)
	return n.targetObject != nil || (in != nil && in.IsConnected())
}

// SelectionMenu builds the command menu for the current target type.
// Instance members are offered when a target is present, static members
// otherwise. Choosing an entry applies it to the node.
func (n *Node) SelectionMenu(ctx context.Context) (*selector.Menu, error) {
	binding := command.Public | command.Static
	if n.hasTarget() {
		binding = command.Public | command.Instance
	}
	return selector.Build(n.sess.Commands, n.TargetType(), binding, n.menuDepth, func(cmds []*command.Command) {
		if err := n.ApplySelection(ctx, cmds); err != nil {
			ctxlog.FromContext(ctx).Error("Failed to apply command selection.", "node", n.ID(), "error", err)
		}
	})
}

// ApplySelection binds cmds as the new chain and rebuilds the sockets. A
// nil selection clears the chain; an empty one is rejected.
func (n *Node) ApplySelection(ctx context.Context, cmds []*command.Command) error {
	if cmds == nil {
		n.clear(ctx)
		return nil
	}
	if len(cmds) == 0 {
		return fmt.Errorf("%w: empty command selection", errdefs.ErrInvalidArgument)
	}

	chain := make([]*callable.Func, len(cmds))
	names := make([]string, len(cmds))
	for i, cmd := range cmds {
		f, err := callable.FromCommand(cmd, nil)
		if err != nil {
			return fmt.Errorf("%w: link %d: %w", errdefs.ErrInvalidArgument, i, err)
		}
		chain[i] = f
		names[i] = cmd.DisplayName()
	}

	n.chain = chain
	n.label = strings.Join(names, LabelSeparator)
	if n.targetType == nil {
		n.targetType = cmds[0].DeclaringType
	}
	ctxlog.FromContext(ctx).Debug("Applied command selection.", "node", n.ID(), "label", n.label)
	n.RebuildSockets(ctx)
	return nil
}

func (n *Node) clear(ctx context.Context) {
	n.chain = nil
	n.label = NoCommand
	n.RebuildSockets(ctx)
}

// RebuildSockets recreates the sockets from the last link of the chain.
// The target input always comes first; an existing one is kept together
// with its connection and local value.
func (n *Node) RebuildSockets(ctx context.Context) {
	target := n.Input(0)
	if target != nil && target.Name == TargetSocket {
		n.TruncateSockets(1)
	} else {
		n.ClearSockets()
		target = n.CreateInput(TargetSocket, typeref.Fallback)
	}
	if n.targetObject != nil {
		target.SetValue(n.targetObject)
	}
	if len(n.chain) == 0 {
		return
	}

	last := n.chain[len(n.chain)-1]
	cmd, err := last.Resolve(n.sess)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Cannot resolve last link, node has no parameter sockets.",
			"node", n.ID(), "link", last.String(), "error", err)
		return
	}
	for _, p := range cmd.Params {
		switch p.Dir {
		case command.In:
			n.CreateInput(typeref.ShortName(p.Type)+" "+p.Name, p.Type)
		case command.Ref:
			n.CreateOutput("ref "+typeref.ShortName(p.Type.Elem())+" "+p.Name, p.Type.Elem())
		case command.Out:
			n.CreateOutput("out "+typeref.ShortName(p.Type)+" "+p.Name, p.Type)
		}
	}
	if cmd.Return != nil {
		n.CreateOutput("return "+typeref.ShortName(cmd.Return), cmd.Return)
	}
}

// Calculate executes the chain. Failures abort the run and are logged;
// Calculate itself always reports success so evaluation of the canvas
// continues.
func (n *Node) Calculate(ctx context.Context) bool {
	logger := ctxlog.FromContext(ctx).With("node", n.ID(), "label", n.label)
	n.state, n.lastErr = Idle, nil

	if len(n.chain) == 0 {
		logger.Warn("No command selected.")
		return true
	}

	if err := n.execute(ctx, logger); err != nil {
		n.state, n.lastErr = Aborted, err
		level := slog.LevelError
		if errors.Is(err, errdefs.ErrInvalidOperation) {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "Command chain aborted.", "error", err)
		return true
	}
	n.state = Completed
	return true
}

func (n *Node) execute(ctx context.Context, logger *slog.Logger) error {
	last := len(n.chain) - 1
	cmd, err := n.chain[last].Resolve(n.sess)
	if err != nil {
		return err
	}
	if !n.socketsMatch(cmd) {
		logger.Info("Sockets out of date, rebuilding.")
		n.RebuildSockets(ctx)
		if !n.socketsMatch(cmd) {
			return fmt.Errorf("%w: sockets of %s do not match the parameters of %s", errdefs.ErrBinding, n.ID(), cmd)
		}
	}
	args, err := n.arguments(ctx, cmd)
	if err != nil {
		return err
	}

	var receiver reflect.Value
	if in := n.Input(0); in != nil {
		if v, ok := in.Value(); ok && v != nil {
			receiver = reflect.ValueOf(v)
		}
	}

	var res command.Result
	for i, link := range n.chain {
		n.state = ValidatingReceiver
		if command.IsNil(receiver) != link.IsStatic() {
			if link.IsStatic() {
				return fmt.Errorf("%w: link %d (%s) is static but has a receiver", errdefs.ErrInvalidOperation, i, link)
			}
			return fmt.Errorf("%w: link %d (%s) has no receiver", errdefs.ErrInvalidOperation, i, link)
		}
		if i < last && link.ArgCount() > 0 {
			return fmt.Errorf("%w: link %d (%s) takes parameters but is not the last link", errdefs.ErrBinding, i, link)
		}

		n.state = InvokingLink
		var linkArgs []reflect.Value
		if i == last {
			linkArgs = args
		}
		if res, err = link.Invoke(n.sess, receiver, linkArgs); err != nil {
			return fmt.Errorf("link %d: %w", i, err)
		}
		receiver = res.Return
	}

	n.publish(cmd, res)
	return nil
}

// socketsMatch reports whether the sockets were built for cmd.
func (n *Node) socketsMatch(cmd *command.Command) bool {
	ins, outs := 1, 0
	for _, p := range cmd.Params {
		if p.Dir == command.In {
			ins++
		} else {
			outs++
		}
	}
	if cmd.Return != nil {
		outs++
	}
	return len(n.Inputs()) == ins && len(n.Outputs()) == outs
}

// arguments materializes one value per In or Ref parameter of cmd. In
// parameters read their input socket, in order; Ref parameters are left
// for the invoker to allocate.
func (n *Node) arguments(ctx context.Context, cmd *command.Command) ([]reflect.Value, error) {
	args := make([]reflect.Value, 0, cmd.InputCount())
	socket := 1
	for _, p := range cmd.Params {
		switch p.Dir {
		case command.In:
			in := n.Input(socket)
			socket++
			v, ok := in.Value()
			if !ok {
				args = append(args, reflect.Value{})
				continue
			}
			arg, err := valueconv.Convert(ctx, v, p.Type)
			if err != nil {
				return nil, fmt.Errorf("%w: parameter %s: %w", errdefs.ErrInvalidArgument, p.Name, err)
			}
			args = append(args, arg)
		case command.Ref:
			args = append(args, reflect.Value{})
		}
	}
	return args, nil
}

func (n *Node) publish(cmd *command.Command, res command.Result) {
	out := 0
	for i, p := range cmd.Params {
		if p.Dir == command.In {
			continue
		}
		setOutput(n.Output(out), res.Params[i])
		out++
	}
	if cmd.Return != nil {
		setOutput(n.Output(out), res.Return)
	}
}

func setOutput(s *node.Socket, v reflect.Value) {
	if s == nil {
		return
	}
	if !v.IsValid() {
		s.Reset()
		return
	}
	s.SetValue(v.Interface())
}

// Specs returns the persisted form of the chain.
func (n *Node) Specs() ([]callable.Spec, error) {
	specs := make([]callable.Spec, len(n.chain))
	for i, f := range n.chain {
		s, err := f.Spec(n.sess)
		if err != nil {
			return nil, fmt.Errorf("link %d: %w", i, err)
		}
		specs[i] = s
	}
	return specs, nil
}

// LoadChain replaces the chain with one rebuilt from specs and recomputes
// the label and sockets. Links whose types no longer resolve are kept; the
// node then aborts when calculated.
func (n *Node) LoadChain(ctx context.Context, specs []callable.Spec) error {
	chain := make([]*callable.Func, len(specs))
	for i, s := range specs {
		f, err := callable.FromSpec(ctx, s, n.sess)
		if err != nil {
			return fmt.Errorf("link %d: %w", i, err)
		}
		chain[i] = f
	}
	if len(chain) == 0 {
		n.clear(ctx)
		return nil
	}

	names := make([]string, len(chain))
	for i, f := range chain {
		if cmd, err := f.Resolve(n.sess); err == nil {
			names[i] = cmd.DisplayName()
		} else {
			names[i] = typeref.ShortName(f.ReturnType(n.sess)) + " " + f.Member()
		}
	}
	n.chain = chain
	n.label = strings.Join(names, LabelSeparator)
	if t := chain[0].TargetType(n.sess); t != nil && t != typeref.Fallback {
		n.targetType = t
	}
	n.RebuildSockets(ctx)
	return nil
}
