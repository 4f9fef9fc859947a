package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"

	"github.com/vk/actiongraph/internal/actionnode"
	"github.com/vk/actiongraph/internal/canvas"
	"github.com/vk/actiongraph/internal/canvasstore"
	"github.com/vk/actiongraph/internal/command"
	"github.com/vk/actiongraph/internal/ctxlog"
	"github.com/vk/actiongraph/internal/errdefs"
	"github.com/vk/actiongraph/internal/hcl"
	"github.com/vk/actiongraph/internal/notify"
)

// Run executes the main application logic based on the provided configuration.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")
	defer func() {
		err = errors.Join(err, a.session.Close(ctx))
	}()

	switch {
	case a.config.ListCommands != "":
		return a.listCommands(ctx, a.config.ListCommands)
	case a.config.Menu != "":
		return a.printMenu(ctx, a.config.Menu)
	case a.config.ListCanvases:
		return a.listCanvases(ctx)
	}
	return a.evaluate(ctx)
}

// resolveTarget looks name up as a registered object first and as a type
// name second.
func (a *App) resolveTarget(name string) (reflect.Type, any, error) {
	if obj, ok := a.session.Object(name); ok {
		return reflect.TypeOf(obj), obj, nil
	}
	if t, ok := a.session.LookupType(name); ok {
		return t, nil, nil
	}
	return nil, nil, fmt.Errorf("%w: %q is neither a registered object nor a known type", errdefs.ErrInvalidArgument, name)
}

// listCommands prints the catalog of a type, or the instance catalog of a
// registered object.
func (a *App) listCommands(ctx context.Context, name string) error {
	t, obj, err := a.resolveTarget(name)
	if err != nil {
		return err
	}
	binding := command.Public | command.Instance | command.Static
	if obj != nil {
		binding = command.Public | command.Instance
	}
	cat, err := a.session.Commands.GetOrBuild(ctx, t, binding)
	if err != nil {
		return err
	}
	for _, cmd := range cat.Commands {
		fmt.Fprintln(a.outW, cmd.String())
	}
	return nil
}

// printMenu prints every selectable path an action node targeting name
// would offer.
func (a *App) printMenu(ctx context.Context, name string) error {
	t, obj, err := a.resolveTarget(name)
	if err != nil {
		return err
	}
	n := actionnode.New(a.session, "menu")
	n.SetMenuDepth(a.config.MenuDepth)
	if obj != nil {
		n.SetTargetObject(ctx, obj)
	} else if err := n.SetTargetType(ctx, t); err != nil {
		return err
	}

	menu, err := n.SelectionMenu(ctx)
	if err != nil {
		return err
	}
	for e := range menu.Entries(ctx) {
		fmt.Fprintln(a.outW, e.Label())
	}
	return nil
}

func (a *App) listCanvases(ctx context.Context) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	names, err := store.List(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(a.outW, name)
	}
	return nil
}

func (a *App) evaluate(ctx context.Context) error {
	var store canvasstore.Store
	if a.config.CanvasPath == "" || a.config.Save {
		var err error
		if store, err = a.openStore(ctx); err != nil {
			return err
		}
		defer store.Close()
	}

	c, err := a.loadCanvas(ctx, store)
	if err != nil {
		return err
	}
	a.logger.Info("Canvas loaded.", "nodes", len(c.Nodes()), "connections", len(c.Connections()))

	var bridge *notify.Bridge
	if a.config.NotifyURL != "" {
		client, err := notify.Dial(ctx, notify.Options{
			URL:                a.config.NotifyURL,
			Namespace:          a.config.NotifyNamespace,
			InsecureSkipVerify: a.config.NotifyInsecure,
		})
		if err != nil {
			return fmt.Errorf("failed to connect editor bridge: %w", err)
		}
		defer client.Close()
		if bridge, err = notify.NewBridge(client); err != nil {
			return err
		}
		c.AddObserver(bridge)
	}

	a.logger.Info("🚀 Evaluating canvas...")
	results, err := c.Evaluate(ctx)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	a.logger.Info("🏁 Evaluation finished.", "nodes", len(results))
	if bridge != nil {
		bridge.Report(ctx, c, results)
	}
	a.printResults(c, results)

	if a.config.Save {
		data, err := hcl.Write(c, a.session)
		if err != nil {
			return fmt.Errorf("failed to serialize canvas: %w", err)
		}
		if err := store.Save(ctx, a.config.CanvasName, data); err != nil {
			return err
		}
		a.logger.Info("Canvas saved.", "name", a.config.CanvasName, "store", a.config.Store)
	}
	return nil
}

func (a *App) loadCanvas(ctx context.Context, store canvasstore.Store) (*canvas.Canvas, error) {
	loader := hcl.NewLoader(a.session)
	if a.config.CanvasPath != "" {
		a.logger.Debug("Loading canvas from disk.", "path", a.config.CanvasPath)
		return loader.LoadPath(ctx, a.config.CanvasPath)
	}

	data, err := store.Load(ctx, a.config.CanvasName)
	if err != nil {
		return nil, err
	}
	return loader.LoadBytes(ctx, data, a.config.CanvasName+canvasstore.FileExt)
}

// printResults writes one line per node followed by its output values.
func (a *App) printResults(c *canvas.Canvas, results []canvas.Result) {
	for _, r := range results {
		n, ok := c.Node(r.NodeID)
		if !ok {
			continue
		}
		switch {
		case !r.Calculated:
			fmt.Fprintf(a.outW, "%s [skipped]\n", r.NodeID)
			continue
		case n.Kind() == actionnode.Kind:
			an := n.(*actionnode.Node)
			fmt.Fprintf(a.outW, "%s [%s] %s\n", r.NodeID, an.State(), an.Label())
			if err := an.Err(); err != nil {
				fmt.Fprintf(a.outW, "  error: %v\n", err)
			}
		default:
			fmt.Fprintf(a.outW, "%s [%s]\n", r.NodeID, n.Kind())
		}
		for i, out := range n.Outputs() {
			if v, ok := out.Value(); ok {
				fmt.Fprintf(a.outW, "  outputs[%d] %s = %v\n", i, out.Name, v)
			}
		}
	}
}

// DefaultCanvasName derives a store name from a canvas file path.
func DefaultCanvasName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
