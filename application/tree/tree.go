package tree

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"familytree/application/history"
	"familytree/application/ports"
	"familytree/domain/config"
	"familytree/domain/core/aggregates"
	"familytree/domain/core/valueobjects"
	"familytree/domain/events"
	"familytree/domain/services"
	"familytree/domain/snapshot"
)

const aggregateID = "tree"

// Deps are the collaborators a Tree is built from. Only Renderer is required.
type Deps struct {
	Renderer  ports.Renderer
	Notifier  ports.Notifier
	Store     ports.SnapshotStore
	Publisher ports.EventPublisher
	Metrics   ports.Metrics
	Config    *config.DomainConfig
	Logger    *zap.Logger
}

// Tree is the application context of one family tree. It keeps the
// relationship store, the renderer's visual graph, the persisted snapshot and
// the undo history consistent. Every exported method is safe for concurrent use.
type Tree struct {
	mu sync.Mutex

	family      *aggregates.Family
	renderer    ports.Renderer
	notifier    ports.Notifier
	store       ports.SnapshotStore
	publisher   ports.EventPublisher
	metrics     ports.Metrics
	synthesizer *services.ConnectionSynthesizer
	calculator  *services.GenerationCalculator
	shapes      *services.ShapeManager
	history     *history.UndoManager
	config      *config.DomainConfig
	logger      *zap.Logger
	tracer      trace.Tracer

	hidden    valueobjects.KeySet
	lineOnly  valueobjects.KeySet
	settings  snapshot.Settings
	prefs     snapshot.DisplayPreferences
	nodeStyle snapshot.NodeStyle
	nextID    int

	// storeMu keeps loads and saves from reaching the store at the same time
	storeMu    sync.Mutex
	rebuilding atomic.Bool
	outbox     []events.DomainEvent
	now        func() time.Time
}

// New creates an empty tree and records its initial undo state
func New(deps Deps) *Tree {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}

	calculator := services.NewGenerationCalculator(logger)
	t := &Tree{
		family:      aggregates.NewFamily(cfg),
		renderer:    deps.Renderer,
		notifier:    notifier,
		store:       deps.Store,
		publisher:   deps.Publisher,
		metrics:     metrics,
		synthesizer: services.NewConnectionSynthesizer(logger),
		calculator:  calculator,
		shapes:      services.NewShapeManager(calculator, cfg),
		config:      cfg,
		logger:      logger.Named("tree"),
		tracer:      otel.Tracer("familytree/tree"),
		hidden:      valueobjects.NewKeySet(),
		lineOnly:    valueobjects.NewKeySet(),
		settings:    snapshot.DefaultSettings(),
		prefs:       snapshot.DefaultDisplayPreferences(),
		nodeStyle:   snapshot.NodeStyleCircle,
		nextID:      1,
		now:         time.Now,
	}
	t.history = history.NewUndoManager(stateAccessor{t}, cfg.MaxUndoSize, logger,
		history.WithLocker(&t.mu),
		history.WithMetrics(metrics))

	t.mu.Lock()
	t.history.PushState("initial")
	t.mu.Unlock()
	return t
}

// mutate runs fn under the lock and, when it succeeds, commits the result.
// Connections are regenerated and an undo state is pushed; events go out
// after the lock is released. errUnchanged skips the commit.
func (t *Tree) mutate(ctx context.Context, action string, fn func() error) error {
	ctx, span := t.tracer.Start(ctx, "tree."+action)
	defer span.End()

	t.mu.Lock()
	// a pending drag is its own undo step, taken before fn changes anything
	if t.history.Flush() {
		t.historyChangedLocked("drag")
	}
	err := fn()
	switch {
	case err == nil:
		t.commitLocked(action)
	case errors.Is(err, errUnchanged):
		span.SetAttributes(attribute.Bool("unchanged", true))
	default:
		span.RecordError(err)
	}
	batch := t.drainLocked()
	t.mu.Unlock()

	t.publish(ctx, batch)
	return err
}

func (t *Tree) commitLocked(action string) {
	t.regenerateLocked()
	t.history.PushState(action)
	t.historyChangedLocked(action)
}

// regenerateLocked rebuilds the renderer's edges from the relationship store
func (t *Tree) regenerateLocked() services.SynthesisResult {
	nodes := t.renderer.Nodes()
	existing := make(services.NodeSet, len(nodes))
	for id := range nodes {
		existing[id] = struct{}{}
	}

	result := t.synthesizer.Regenerate(t.renderer, t.family, t.hidden, t.lineOnly, existing)
	t.renderer.RequestRedraw()

	parent := result.Count(valueobjects.ConnectionParent)
	spouse := result.Count(valueobjects.ConnectionSpouse)
	lineOnly := result.Count(valueobjects.ConnectionLineOnly)
	t.metrics.RecordRegeneration(parent, spouse, lineOnly, t.family.Len())
	t.outbox = append(t.outbox, events.ConnectionsRegenerated{
		BaseEvent: events.NewBaseEvent(aggregateID, events.TypeConnectionsRegenerated, t.now()),
		Parent:    parent,
		Spouse:    spouse,
		LineOnly:  lineOnly,
		Skipped:   result.Skipped,
	})
	return result
}

func (t *Tree) historyChangedLocked(action string) {
	undo, redo := t.history.Depth()
	t.outbox = append(t.outbox, events.HistoryChanged{
		BaseEvent: events.NewBaseEvent(aggregateID, events.TypeHistoryChanged, t.now()),
		Action:    action,
		UndoDepth: undo,
		RedoDepth: redo,
	})
}

// drainLocked collects the family's uncommitted events and the tree's own
func (t *Tree) drainLocked() []events.DomainEvent {
	batch := append(t.family.GetUncommittedEvents(), t.outbox...)
	t.family.MarkEventsAsCommitted()
	t.outbox = nil
	return batch
}

func (t *Tree) publish(ctx context.Context, batch []events.DomainEvent) {
	if t.publisher == nil || len(batch) == 0 {
		return
	}
	if err := t.publisher.PublishBatch(ctx, batch); err != nil {
		t.logger.Warn("event publish failed", zap.Int("events", len(batch)), zap.Error(err))
	}
}

// Undo restores the previous state. It returns false when there is nothing to undo.
func (t *Tree) Undo(ctx context.Context) bool {
	return t.step(ctx, "undo", t.history.Undo)
}

// Redo re-applies the last undone state. It returns false when there is nothing to redo.
func (t *Tree) Redo(ctx context.Context) bool {
	return t.step(ctx, "redo", t.history.Redo)
}

func (t *Tree) step(ctx context.Context, action string, fn func() bool) bool {
	_, span := t.tracer.Start(ctx, "tree."+action)
	defer span.End()

	t.mu.Lock()
	ok := fn()
	if ok {
		t.historyChangedLocked(action)
	}
	batch := t.drainLocked()
	t.mu.Unlock()

	span.SetAttributes(attribute.Bool("applied", ok))
	t.publish(ctx, batch)
	return ok
}

// CanUndo reports whether Undo would change anything
func (t *Tree) CanUndo() bool {
	return t.history.CanUndo()
}

// CanRedo reports whether Redo would change anything
func (t *Tree) CanRedo() bool {
	return t.history.CanRedo()
}

// IsRebuilding reports whether a load is replacing the tree right now.
// It does not take the lock so autosave can poll it while a load runs.
func (t *Tree) IsRebuilding() bool {
	return t.rebuilding.Load()
}

// FlushHistory performs any pending debounced undo push
func (t *Tree) FlushHistory() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.history.Flush() {
		t.historyChangedLocked("drag")
	}
}

// Connections returns the current visual edges
func (t *Tree) Connections() []valueobjects.Connection {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.renderer.Connections()
}

// Family returns a copy of the relationship store
func (t *Tree) Family() *aggregates.Family {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.family.Clone()
}

type nopNotifier struct{}

func (nopNotifier) Success(string, string) {}
func (nopNotifier) Warning(string, string) {}
func (nopNotifier) Error(string, string)   {}
func (nopNotifier) Info(string, string)    {}
func (nopNotifier) Loading(string, string) {}
