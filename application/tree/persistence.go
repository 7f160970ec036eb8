package tree

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"familytree/domain/core/valueobjects"
	"familytree/domain/events"
	"familytree/domain/services"
	"familytree/domain/snapshot"
	pkgerrors "familytree/pkg/errors"
)

func newSnapshotRepaired(at time.Time, stage string, restored int) events.SnapshotRepaired {
	return events.SnapshotRepaired{
		BaseEvent: events.NewBaseEvent(aggregateID, events.TypeSnapshotRepaired, at),
		Stage:     stage,
		Restored:  restored,
	}
}

// Snapshot returns the current state merged into one persistable unit
func (t *Tree) Snapshot() *snapshot.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history.Flush()
	return t.snapshotLocked()
}

// Save persists the current state. Failures are reported through the
// notifier by the store; the result tells whether the write landed.
func (t *Tree) Save(ctx context.Context) bool {
	if t.store == nil {
		return false
	}
	t.storeMu.Lock()
	defer t.storeMu.Unlock()
	snap := t.Snapshot()
	return t.store.Save(ctx, snap)
}

// Load replaces the tree with the stored snapshot. The undo history restarts
// from the loaded state. It returns false when nothing usable was stored.
func (t *Tree) Load(ctx context.Context) bool {
	if t.store == nil {
		return false
	}
	ctx, span := t.tracer.Start(ctx, "tree.load")
	defer span.End()

	t.rebuilding.Store(true)
	defer t.rebuilding.Store(false)
	t.storeMu.Lock()
	defer t.storeMu.Unlock()

	snap := t.store.Load(ctx)
	if snap == nil {
		span.SetAttributes(attribute.Bool("found", false))
		return false
	}

	t.mu.Lock()
	connections := t.applySnapshotLocked(snap)
	t.history.Reset()
	t.history.PushState("load")
	t.historyChangedLocked("load")
	t.outbox = append(t.outbox, events.SnapshotLoaded{
		BaseEvent: events.NewBaseEvent(aggregateID, events.TypeSnapshotLoaded, t.now()),
		Format:    string(snap.CacheFormat),
		Persons:   t.family.Len(),
	})
	persons := t.family.Len()
	batch := t.drainLocked()
	t.mu.Unlock()

	span.SetAttributes(attribute.Int("persons", persons), attribute.Int("connections", connections))
	t.logger.Info("tree loaded", zap.Int("persons", persons), zap.Int("connections", connections))
	t.publish(ctx, batch)
	return true
}

// RestoreSnapshot replaces the tree with snap as one undoable change,
// used for imports and backup restores.
func (t *Tree) RestoreSnapshot(ctx context.Context, snap *snapshot.Snapshot) error {
	if snap == nil {
		return pkgerrors.NewValidationError("snapshot is required")
	}
	t.rebuilding.Store(true)
	defer t.rebuilding.Store(false)

	snap = snap.Clone()
	return t.mutate(ctx, "restore", func() error {
		report := snap.Repair(t.config)
		if report.Changed() {
			t.logger.Warn("restored snapshot repaired", zap.Strings("notes", report.Notes))
			t.metrics.RecordRepair("restore")
		}
		t.applySnapshotLocked(snap)
		return nil
	})
}

// Clear empties the tree and removes every stored snapshot
func (t *Tree) Clear(ctx context.Context) error {
	err := t.mutate(ctx, "clear", func() error {
		t.family.Clear()
		t.replaceNodesLocked(nil)
		t.hidden = valueobjects.NewKeySet()
		t.lineOnly = valueobjects.NewKeySet()
		t.nextID = 1
		return nil
	})
	if err != nil || t.store == nil {
		return err
	}
	t.storeMu.Lock()
	defer t.storeMu.Unlock()
	return t.store.Clear(ctx)
}

// Generations assigns a generation to every person. Cycles in the ancestry
// are cut and reported through a GenerationCycleDetected event.
func (t *Tree) Generations(ctx context.Context) services.GenerationReport {
	t.mu.Lock()
	report := t.calculator.CalculateWithReport(t.family)
	if report.HasCycles() {
		t.outbox = append(t.outbox, events.GenerationCycleDetected{
			BaseEvent: events.NewBaseEvent(aggregateID, events.TypeGenerationCycleDetected, t.now()),
			PersonIDs: report.CycleCuts,
		})
	}
	batch := t.drainLocked()
	t.mu.Unlock()

	t.publish(ctx, batch)
	return report
}
