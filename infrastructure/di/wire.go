//go:build wireinject
// +build wireinject

package di

import (
	"familytree/application/ports"
	"familytree/application/tree"
	"familytree/infrastructure/messaging/eventbus"
	"familytree/infrastructure/notify"
	"familytree/infrastructure/persistence"
	"familytree/infrastructure/render"
	"familytree/internal/config"

	"github.com/google/wire"
)

// ConfigProviders provides configuration and logging
var ConfigProviders = wire.NewSet(
	ProvideLogLevel,
	ProvideLogger,
	ProvideDomainConfig,
)

// InfrastructureProviders provides the adapters behind the application ports
var InfrastructureProviders = wire.NewSet(
	ProvideTracing,
	ProvideCollector,
	ProvideMetrics,
	ProvideKeyValueStore,
	ProvideEventBus,
	ProvideNotifier,
	ProvideDecoder,
	ProvidePersistenceManager,
	render.NewHeadlessRenderer,
	wire.Bind(new(ports.EventPublisher), new(*eventbus.Bus)),
	wire.Bind(new(ports.Notifier), new(*notify.LogNotifier)),
	wire.Bind(new(ports.SnapshotStore), new(*persistence.Manager)),
	wire.Bind(new(ports.Renderer), new(*render.HeadlessRenderer)),
)

// ApplicationProviders provides the tree and what drives it
var ApplicationProviders = wire.NewSet(
	wire.Struct(new(tree.Deps), "*"),
	ProvideTree,
	ProvideCommandBus,
	ProvideAutosave,
)

// SuperSet combines all provider sets
var SuperSet = wire.NewSet(
	ConfigProviders,
	InfrastructureProviders,
	ApplicationProviders,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer builds the container for cfg. The cleanup releases
// storage and flushes logs and spans.
func InitializeContainer(cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
