package di

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"familytree/application/autosave"
	"familytree/application/commands"
	"familytree/application/commands/bus"
	"familytree/application/tree"
	"familytree/domain/core/valueobjects"
	"familytree/infrastructure/persistence/storage"
	"familytree/internal/config"
)

func newContainer(t *testing.T, cfg *config.Config) *Container {
	t.Helper()
	container, cleanup, err := InitializeContainer(cfg)
	require.NoError(t, err)
	require.NotNil(t, container)
	t.Cleanup(cleanup)
	return container
}

func TestInitializeContainerIntegration(t *testing.T) {
	ctx := context.Background()
	container := newContainer(t, config.Default(config.Test))

	assert.False(t, container.Start(ctx), "nothing stored yet")

	mother, err := bus.SendFor[valueobjects.PersonID](ctx, container.Commands,
		commands.AddPersonCommand{Person: tree.PersonInput{Name: "Maria", Gender: "female"}})
	require.NoError(t, err)
	child, err := bus.SendFor[valueobjects.PersonID](ctx, container.Commands,
		commands.AddPersonCommand{Person: tree.PersonInput{Name: "Ana", Gender: "female", MotherID: string(mother)}})
	require.NoError(t, err)

	assert.Equal(t, []valueobjects.Connection{
		{From: child, To: mother, Kind: valueobjects.ConnectionParent},
	}, container.Renderer.Connections())

	assert.Equal(t, autosave.OutcomeSaved, container.Shutdown(ctx))

	stored := container.Persistence.Load(ctx)
	require.NotNil(t, stored)
	assert.Len(t, stored.Persons, 2)

	families, err := container.Metrics.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestInitializeContainer_StorageKinds(t *testing.T) {
	tests := []struct {
		kind string
		path func(dir string) string
	}{
		{config.StorageMemory, func(string) string { return "" }},
		{config.StorageFile, func(dir string) string { return dir }},
		{config.StorageSQLite, func(dir string) string { return filepath.Join(dir, "tree.db") }},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			ctx := context.Background()
			cfg := config.Default(config.Test)
			cfg.Storage.Kind = tt.kind
			cfg.Storage.Path = tt.path(t.TempDir())

			container := newContainer(t, cfg)
			_, isBreaker := container.Store.(*storage.BreakerStore)
			assert.True(t, isBreaker)

			_, err := container.Tree.AddPerson(ctx, tree.PersonInput{Name: "Ion", Gender: "male"})
			require.NoError(t, err)
			require.True(t, container.Tree.Save(ctx))

			backups, err := container.Persistence.ListBackups(ctx)
			require.NoError(t, err)
			assert.Len(t, backups, 1)
		})
	}
}

func TestInitializeContainer_MetricsDisabled(t *testing.T) {
	cfg := config.Default(config.Test)
	cfg.Metrics.Enabled = false
	cfg.Breaker.Enabled = false

	container := newContainer(t, cfg)
	assert.Nil(t, container.Metrics)
	_, isBreaker := container.Store.(*storage.BreakerStore)
	assert.False(t, isBreaker)

	_, err := container.Tree.AddPerson(context.Background(), tree.PersonInput{Name: "Ion", Gender: "male"})
	assert.NoError(t, err)
}

func TestInitializeContainer_TracingExporter(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	cfg := config.Default(config.Test)
	cfg.Tracing.Enabled = true
	cfg.Tracing.Endpoint = "127.0.0.1:4317"
	cfg.Tracing.Insecure = true

	container := newContainer(t, cfg)
	assert.True(t, container.Tracing.Enabled)
	assert.True(t, container.Tracing.Exporting)
}

func TestInitializeContainer_BadLevel(t *testing.T) {
	cfg := config.Default(config.Test)
	cfg.Logging.Level = "loud"

	_, _, err := InitializeContainer(cfg)
	assert.Error(t, err)
}

func TestContainer_ApplyConfig(t *testing.T) {
	cfg := config.Default(config.Test)
	container := newContainer(t, cfg)

	next := *cfg
	next.Logging.Level = "error"
	container.ApplyConfig(&next)
	assert.Equal(t, "error", container.LogLevel.Level().String())
}
