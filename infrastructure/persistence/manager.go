package persistence

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"familytree/application/ports"
	"familytree/domain/config"
	"familytree/domain/events"
	"familytree/domain/snapshot"
	"familytree/infrastructure/notify"
	"familytree/infrastructure/observability"
	"familytree/infrastructure/persistence/schema"
	pkgerrors "familytree/pkg/errors"
)

const (
	// DefaultPrimaryKey holds the latest snapshot
	DefaultPrimaryKey = "familyTreeData"
	// DefaultBackupPrefix is followed by the save time in unix milliseconds
	DefaultBackupPrefix = "familyTreeData_backup_"

	aggregateID = "snapshot"
)

// Keys names the store entries the manager owns
type Keys struct {
	Primary      string
	BackupPrefix string
}

// DefaultKeys returns the standard key layout
func DefaultKeys() Keys {
	return Keys{Primary: DefaultPrimaryKey, BackupPrefix: DefaultBackupPrefix}
}

// Backup describes one timestamped backup entry
type Backup struct {
	Key       string
	Timestamp time.Time
}

// Manager writes snapshots to a durable key/value store and reads them back,
// migrating and repairing whatever it finds.
type Manager struct {
	store     ports.KeyValueStore
	decoder   *schema.Decoder
	notifier  ports.Notifier
	publisher ports.EventPublisher
	metrics   *observability.Collector
	config    *config.DomainConfig
	keys      Keys
	logger    *zap.Logger
	now       func() time.Time
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithKeys overrides the key layout
func WithKeys(keys Keys) ManagerOption {
	return func(m *Manager) { m.keys = keys }
}

// WithPublisher publishes save and repair events
func WithPublisher(p ports.EventPublisher) ManagerOption {
	return func(m *Manager) { m.publisher = p }
}

// WithMetrics records save and load metrics
func WithMetrics(c *observability.Collector) ManagerOption {
	return func(m *Manager) { m.metrics = c }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a new persistence manager
func NewManager(
	store ports.KeyValueStore,
	decoder *schema.Decoder,
	notifier ports.Notifier,
	cfg *config.DomainConfig,
	logger *zap.Logger,
	opts ...ManagerOption,
) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if decoder == nil {
		decoder = schema.NewDecoder(nil, logger)
	}
	m := &Manager{
		store:    store,
		decoder:  decoder,
		notifier: notify.OrNop(notifier),
		config:   cfg,
		keys:     DefaultKeys(),
		logger:   logger.Named("persistence"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Save writes snap under the primary key and a fresh backup key, then prunes
// old backups. Payloads over the size ceiling are written in compressed form.
// Failures are logged and notified; the result tells whether the primary write landed.
func (m *Manager) Save(ctx context.Context, snap *snapshot.Snapshot) bool {
	start := m.now()
	ctx, span := observability.StartSpan(ctx, "persistence.save",
		attribute.String("key", m.keys.Primary),
		attribute.Int("persons", len(snap.Persons)))

	payload, format, err := m.encode(snap, start)
	if err == nil {
		err = m.store.Set(ctx, m.keys.Primary, payload)
	}
	if err != nil {
		observability.EndSpan(span, err)
		m.metrics.RecordSave(string(format), false, len(payload), m.now().Sub(start))
		m.saveFailed(ctx, err)
		return false
	}

	backupKey := m.keys.BackupPrefix + strconv.FormatInt(start.UnixMilli(), 10)
	if err := m.store.Set(ctx, backupKey, payload); err != nil {
		// primary is written; a lost backup generation is only logged
		m.logger.Warn("backup write failed", zap.String("key", backupKey), zap.Error(err))
		backupKey = ""
	}
	pruned := m.pruneBackups(ctx)

	span.SetAttributes(attribute.String("cache_format", string(format)), attribute.Int("bytes", len(payload)))
	observability.EndSpan(span, nil)
	m.metrics.RecordSave(string(format), true, len(payload), m.now().Sub(start))

	m.logger.Debug("snapshot saved",
		zap.String("format", string(format)),
		zap.Int("bytes", len(payload)),
		zap.Int("persons", len(snap.Persons)),
		zap.Int("pruned", pruned))
	m.publish(ctx, events.SnapshotSaved{
		BaseEvent:   events.NewBaseEvent(aggregateID, events.TypeSnapshotSaved, start),
		Key:         m.keys.Primary,
		BackupKey:   backupKey,
		CacheFormat: string(format),
		Bytes:       len(payload),
		Pruned:      pruned,
	})
	return true
}

// encode stamps and marshals a copy of snap, falling back to the compressed layout
func (m *Manager) encode(snap *snapshot.Snapshot, at time.Time) ([]byte, snapshot.CacheFormat, error) {
	out := snap.Clone()
	out.Version = snapshot.CurrentVersion
	out.Timestamp = at.UnixMilli()
	out.CacheFormat = snapshot.CacheEnhanced
	out.BuildRelationsBackup()

	payload, err := json.Marshal(out)
	if err != nil {
		return nil, out.CacheFormat, pkgerrors.NewInternalError("snapshot could not be encoded").WithCause(err)
	}
	if m.config.MaxSnapshotBytes <= 0 || len(payload) <= m.config.MaxSnapshotBytes {
		return payload, snapshot.CacheEnhanced, nil
	}

	m.logger.Warn("snapshot exceeds size ceiling, writing compressed form",
		zap.Int("bytes", len(payload)),
		zap.Int("limit", m.config.MaxSnapshotBytes))
	payload, err = json.Marshal(out.Compress())
	if err != nil {
		return nil, snapshot.CacheCompressed, pkgerrors.NewInternalError("snapshot could not be encoded").WithCause(err)
	}
	return payload, snapshot.CacheCompressed, nil
}

func (m *Manager) saveFailed(ctx context.Context, err error) {
	m.logger.Error("snapshot save failed", zap.Error(err))
	message := "Your changes could not be saved. They are kept in memory."
	if pkgerrors.IsQuotaExceeded(err) {
		message = "Storage is full. Export your tree to keep a copy."
	}
	m.notifier.Warning("Save failed", message)
	m.publish(ctx, events.SnapshotSaveFailed{
		BaseEvent: events.NewBaseEvent(aggregateID, events.TypeSnapshotSaveFailed, m.now()),
		Reason:    err.Error(),
	})
}

// Load reads the primary snapshot. It returns nil when nothing is stored or the
// payload cannot be interpreted; the latter is logged and notified.
func (m *Manager) Load(ctx context.Context) *snapshot.Snapshot {
	return m.loadKey(ctx, m.keys.Primary)
}

// LoadBackup reads one backup entry the same way Load reads the primary
func (m *Manager) LoadBackup(ctx context.Context, key string) *snapshot.Snapshot {
	if !strings.HasPrefix(key, m.keys.BackupPrefix) {
		m.logger.Warn("refusing to load non-backup key", zap.String("key", key))
		return nil
	}
	return m.loadKey(ctx, key)
}

func (m *Manager) loadKey(ctx context.Context, key string) *snapshot.Snapshot {
	ctx, span := observability.StartSpan(ctx, "persistence.load", attribute.String("key", key))

	raw, err := m.store.Get(ctx, key)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			observability.EndSpan(span, nil)
			m.logger.Debug("no stored snapshot", zap.String("key", key))
			return nil
		}
		observability.EndSpan(span, err)
		m.metrics.RecordLoad("", false)
		m.logger.Error("snapshot read failed", zap.String("key", key), zap.Error(err))
		m.notifier.Error("Load failed", "Saved data could not be read.")
		return nil
	}

	snap, err := m.decode(ctx, raw)
	observability.EndSpan(span, err)
	if err != nil {
		m.logger.Error("stored snapshot is unusable", zap.String("key", key), zap.Error(err))
		m.notifier.Error("Load failed", "Saved data is damaged and was not loaded.")
		return nil
	}
	return snap
}

// Import decodes an exported document with the same migration and repair
// steps Load uses, returning the error instead of notifying.
func (m *Manager) Import(ctx context.Context, raw []byte) (*snapshot.Snapshot, error) {
	return m.decode(ctx, raw)
}

func (m *Manager) decode(ctx context.Context, raw []byte) (*snapshot.Snapshot, error) {
	snap, result, err := m.decoder.Decode(raw)
	if err != nil {
		m.metrics.RecordLoad(string(result.Format), false)
		return nil, err
	}
	m.metrics.RecordLoad(string(result.Format), true)

	report := snap.Repair(m.config)
	if report.Changed() {
		m.logger.Warn("snapshot repaired on load",
			zap.String("format", string(result.Format)),
			zap.Int("dropped_persons", report.DroppedPersons),
			zap.Int("dropped_keys", report.DroppedKeys),
			zap.Int("restored_relations", report.RestoredRelations),
			zap.Strings("notes", report.Notes))
		m.metrics.RecordRepair("load")
		m.publish(ctx, events.SnapshotRepaired{
			BaseEvent: events.NewBaseEvent(aggregateID, events.TypeSnapshotRepaired, m.now()),
			Stage:     "load",
			Restored:  report.RestoredRelations,
			Notes:     report.Notes,
		})
	}
	if result.Compressed {
		m.logger.Info("loaded compressed snapshot; visual settings were reset to defaults")
	}
	return snap, nil
}

// Export encodes snap as an indented current-format document
func (m *Manager) Export(snap *snapshot.Snapshot) ([]byte, error) {
	out := snap.Clone()
	out.Version = snapshot.CurrentVersion
	out.CacheFormat = snapshot.CacheEnhanced
	if out.Timestamp == 0 {
		out.Timestamp = m.now().UnixMilli()
	}
	out.BuildRelationsBackup()
	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, pkgerrors.NewInternalError("snapshot could not be encoded").WithCause(err)
	}
	return payload, nil
}

// Clear removes the primary snapshot and every backup
func (m *Manager) Clear(ctx context.Context) error {
	keys, err := m.store.Keys(ctx, m.keys.BackupPrefix)
	if err != nil {
		return pkgerrors.Wrap(err, "list backups")
	}
	keys = append(keys, m.keys.Primary)
	for _, key := range keys {
		if err := m.store.Delete(ctx, key); err != nil {
			return pkgerrors.Wrapf(err, "delete %s", key)
		}
	}
	m.logger.Info("stored snapshots cleared", zap.Int("keys", len(keys)))
	return nil
}

// ListBackups returns the backups newest first
func (m *Manager) ListBackups(ctx context.Context) ([]Backup, error) {
	keys, err := m.store.Keys(ctx, m.keys.BackupPrefix)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list backups")
	}
	backups := make([]Backup, 0, len(keys))
	for _, key := range keys {
		backups = append(backups, Backup{Key: key, Timestamp: m.backupTime(key)})
	}
	sort.SliceStable(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// pruneBackups keeps the configured number of most recent backups
func (m *Manager) pruneBackups(ctx context.Context) int {
	keep := m.config.BackupsToKeep
	if keep <= 0 {
		return 0
	}
	backups, err := m.ListBackups(ctx)
	if err != nil {
		m.logger.Warn("backup pruning skipped", zap.Error(err))
		return 0
	}
	pruned := 0
	for _, b := range backups[min(keep, len(backups)):] {
		if err := m.store.Delete(ctx, b.Key); err != nil {
			m.logger.Warn("backup prune failed", zap.String("key", b.Key), zap.Error(err))
			continue
		}
		pruned++
	}
	return pruned
}

// backupTime parses the embedded timestamp; malformed keys sort as oldest
func (m *Manager) backupTime(key string) time.Time {
	ms, err := strconv.ParseInt(strings.TrimPrefix(key, m.keys.BackupPrefix), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (m *Manager) publish(ctx context.Context, event events.DomainEvent) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.Warn("event publish failed", zap.String("eventType", event.GetEventType()), zap.Error(err))
	}
}
