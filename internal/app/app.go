package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/actiongraph/internal/canvasstore"
	"github.com/vk/actiongraph/internal/ctxlog"
	"github.com/vk/actiongraph/internal/registry"
	"github.com/vk/actiongraph/internal/session"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	config  *Config
	session *session.Session
	memory  *canvasstore.MemoryStore
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App with its own logger, registry and session. Without
// modules the core modules are registered.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules(outW)
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules))

	if err := reg.Validate(ctx); err != nil {
		// This is a programmer error (mismatch between code and registration), so we panic.
		panic(fmt.Errorf("module registration is inconsistent: %w", err))
	}
	logger.Debug("Registry validation passed.")

	return &App{
		outW:    outW,
		logger:  logger,
		config:  cfg,
		session: session.New(reg),
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.session.Registry
}

// Session returns the session canvases are loaded into.
func (a *App) Session() *session.Session {
	return a.session
}
