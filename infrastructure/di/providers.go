package di

import (
	"context"
	"fmt"
	"time"

	"familytree/application/autosave"
	"familytree/application/commands"
	"familytree/application/commands/bus"
	"familytree/application/ports"
	"familytree/application/tree"
	domainconfig "familytree/domain/config"
	"familytree/infrastructure/messaging/eventbus"
	"familytree/infrastructure/notify"
	"familytree/infrastructure/observability"
	"familytree/infrastructure/persistence"
	"familytree/infrastructure/persistence/schema"
	"familytree/infrastructure/persistence/storage"
	"familytree/internal/config"

	"go.uber.org/zap"
)

// ProvideLogLevel parses the configured level. The container keeps it so a
// configuration reload can change verbosity in place.
func ProvideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	return observability.ParseLevel(cfg.Logging.Level)
}

// ProvideLogger creates the process logger
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, func(), error) {
	logger, err := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}, level)
	if err != nil {
		return nil, nil, err
	}
	logger = logger.With(zap.String("environment", string(cfg.Environment)))
	return logger, func() { _ = logger.Sync() }, nil
}

// ProvideDomainConfig maps the tree section to domain rules
func ProvideDomainConfig(cfg *config.Config) *domainconfig.DomainConfig {
	return cfg.DomainConfig()
}

// Tracing reports whether an SDK tracer provider was installed and
// whether it exports to an OTLP collector
type Tracing struct {
	Enabled   bool
	Exporting bool
}

// ProvideTracing installs the tracer provider. The cleanup flushes pending spans.
func ProvideTracing(cfg *config.Config, logger *zap.Logger) (*Tracing, func(), error) {
	shutdown, err := observability.InitTracing(context.Background(), observability.TracingConfig{
		Enabled:    cfg.Tracing.Enabled,
		SampleRate: cfg.Tracing.SampleRate,
		Endpoint:   cfg.Tracing.Endpoint,
		Insecure:   cfg.Tracing.Insecure,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Warn("Failed to shut down tracing", zap.Error(err))
		}
	}
	return &Tracing{Enabled: cfg.Tracing.Enabled, Exporting: cfg.Tracing.Enabled && cfg.Tracing.Endpoint != ""}, cleanup, nil
}

// ProvideCollector creates the prometheus collector, or nil when metrics are off
func ProvideCollector(cfg *config.Config) *observability.Collector {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return observability.NewCollector(cfg.Metrics.Namespace)
}

// ProvideMetrics adapts the collector to the application port
func ProvideMetrics(collector *observability.Collector) ports.Metrics {
	if collector == nil {
		return ports.NopMetrics{}
	}
	return collector
}

// ProvideKeyValueStore opens the configured backend and, when enabled, puts
// a circuit breaker in front of it.
func ProvideKeyValueStore(cfg *config.Config, logger *zap.Logger) (ports.KeyValueStore, func(), error) {
	var store ports.KeyValueStore
	cleanup := func() {}

	switch cfg.Storage.Kind {
	case config.StorageMemory:
		store = storage.NewMemoryStore(cfg.Storage.Quota)
	case config.StorageFile:
		fileStore, err := storage.NewFileStore(cfg.Storage.Path, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open file storage: %w", err)
		}
		store = fileStore
	case config.StorageSQLite:
		db, err := storage.OpenSQLite(cfg.Storage.Path, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		store = db
		cleanup = func() {
			if err := db.Close(); err != nil {
				logger.Warn("Failed to close sqlite storage", zap.Error(err))
			}
		}
	default:
		return nil, nil, fmt.Errorf("unknown storage kind %q", cfg.Storage.Kind)
	}

	if cfg.Breaker.Enabled {
		breaker := storage.DefaultBreakerConfig(cfg.Storage.Kind)
		if cfg.Breaker.Timeout > 0 {
			breaker.Timeout = cfg.Breaker.Timeout
		}
		if cfg.Breaker.FailureThreshold > 0 {
			breaker.FailureThreshold = cfg.Breaker.FailureThreshold
		}
		if cfg.Breaker.MinRequests > 0 {
			breaker.MinRequests = cfg.Breaker.MinRequests
		}
		store = storage.NewBreakerStore(store, breaker, logger)
	}

	logger.Info("Storage ready",
		zap.String("kind", cfg.Storage.Kind),
		zap.Bool("breaker", cfg.Breaker.Enabled),
	)
	return store, cleanup, nil
}

// ProvideEventBus creates the in-process event bus
func ProvideEventBus(logger *zap.Logger) *eventbus.Bus {
	return eventbus.New(logger)
}

// ProvideNotifier reports user-facing notifications to the log
func ProvideNotifier(logger *zap.Logger) *notify.LogNotifier {
	return notify.NewLogNotifier(logger)
}

// ProvideDecoder creates the snapshot decoder with every known migration
func ProvideDecoder(logger *zap.Logger) *schema.Decoder {
	return schema.NewDecoder(schema.NewSchemaEvolution(), logger)
}

// ProvidePersistenceManager creates the snapshot manager over the store
func ProvidePersistenceManager(
	cfg *config.Config,
	store ports.KeyValueStore,
	decoder *schema.Decoder,
	notifier ports.Notifier,
	domain *domainconfig.DomainConfig,
	publisher ports.EventPublisher,
	collector *observability.Collector,
	logger *zap.Logger,
) *persistence.Manager {
	return persistence.NewManager(store, decoder, notifier, domain, logger,
		persistence.WithKeys(persistence.Keys{
			Primary:      cfg.Storage.PrimaryKey,
			BackupPrefix: cfg.Storage.BackupPrefix,
		}),
		persistence.WithPublisher(publisher),
		persistence.WithMetrics(collector),
	)
}

// ProvideTree creates the tree application context
func ProvideTree(deps tree.Deps) *tree.Tree {
	return tree.New(deps)
}

// ProvideCommandBus creates the command bus with the tree handlers registered
func ProvideCommandBus(t *tree.Tree, logger *zap.Logger) (*bus.CommandBus, error) {
	b := bus.NewCommandBus(
		bus.RecoveryMiddleware(),
		bus.TracingMiddleware(),
		bus.LoggingMiddleware(logger.Named("commands").Sugar()),
		bus.ValidationMiddleware(),
	)
	if err := commands.NewTreeHandlers(t, logger).Register(b); err != nil {
		return nil, fmt.Errorf("failed to register command handlers: %w", err)
	}
	return b, nil
}

// ProvideAutosave creates the autosave scheduler for the tree
func ProvideAutosave(cfg *config.Config, t *tree.Tree, logger *zap.Logger) *autosave.Scheduler {
	return autosave.NewScheduler(t, autosave.Config{
		Interval: cfg.Autosave.Interval,
		MinGap:   cfg.Autosave.MinGap,
	}, logger)
}
