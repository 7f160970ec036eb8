// Package di wires the application together with Wire.
package di

import (
	"context"

	"familytree/application/autosave"
	"familytree/application/commands/bus"
	"familytree/application/ports"
	"familytree/application/tree"
	"familytree/infrastructure/messaging/eventbus"
	"familytree/infrastructure/observability"
	"familytree/infrastructure/persistence"
	"familytree/infrastructure/render"
	"familytree/internal/config"

	"go.uber.org/zap"
)

// Container holds every long-lived component of the process
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	LogLevel    zap.AtomicLevel
	Tracing     *Tracing
	Metrics     *observability.Collector
	Store       ports.KeyValueStore
	Events      *eventbus.Bus
	Persistence *persistence.Manager
	Renderer    *render.HeadlessRenderer
	Tree        *tree.Tree
	Commands    *bus.CommandBus
	Autosave    *autosave.Scheduler
}

// Load reads the stored tree into the container's tree
func (c *Container) Load(ctx context.Context) bool {
	loaded := c.Tree.Load(ctx)
	c.Logger.Info("Family tree ready",
		zap.Bool("loaded", loaded),
		zap.Int("persons", c.Tree.Family().Len()),
	)
	return loaded
}

// Start loads the stored tree and, when enabled, starts autosaving
func (c *Container) Start(ctx context.Context) bool {
	loaded := c.Load(ctx)
	if c.Config.Autosave.Enabled {
		c.Autosave.Start(ctx)
	}
	return loaded
}

// Shutdown stops autosaving and writes a final snapshot
func (c *Container) Shutdown(ctx context.Context) autosave.Outcome {
	c.Autosave.Stop()
	outcome := c.Autosave.Trigger(ctx, autosave.TriggerUnload)
	c.Logger.Info("Family tree shut down", zap.String("final_save", string(outcome)))
	return outcome
}

// ApplyConfig applies the settings of a reloaded configuration that can
// change without a restart.
func (c *Container) ApplyConfig(cfg *config.Config) {
	observability.SetLevel(c.LogLevel, cfg.Logging.Level, c.Logger)
}
