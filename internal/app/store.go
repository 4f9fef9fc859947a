package app

import (
	"context"
	"fmt"

	"github.com/vk/actiongraph/internal/canvasstore"
	"github.com/vk/actiongraph/internal/ctxlog"
)

// openStore opens the configured canvas store. The memory store lives as
// long as the App, so a save and a later load through the same App meet.
func (a *App) openStore(ctx context.Context) (canvasstore.Store, error) {
	logger := ctxlog.FromContext(ctx)
	switch a.config.Store {
	case StoreRedis:
		logger.Debug("Opening redis canvas store.", "prefix", a.config.RedisPrefix)
		return canvasstore.NewRedisFromURL(ctx, a.config.RedisURL, a.config.RedisPrefix)
	case StoreMemory:
		if a.memory == nil {
			a.memory = canvasstore.NewMemory()
		}
		return a.memory, nil
	case StoreFile, "":
		logger.Debug("Opening file canvas store.", "dir", a.config.StoreDir)
		return canvasstore.NewFile(a.config.StoreDir)
	}
	return nil, fmt.Errorf("unknown store %q", a.config.Store)
}
