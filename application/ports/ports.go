package ports

import (
	"context"

	"familytree/domain/core/valueobjects"
	"familytree/domain/events"
	"familytree/domain/snapshot"
)

// NodeData is the visual state the renderer keeps per person
type NodeData struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Color  string  `json:"color"`
	Radius float64 `json:"radius"`
}

// Position returns the node's position as a value object
func (n NodeData) Position() valueobjects.Position {
	return valueobjects.Position{X: n.X, Y: n.Y}
}

// Camera is the renderer viewport
type Camera struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Scale float64 `json:"scale"`
}

// DefaultCamera is the viewport of a fresh canvas
func DefaultCamera() Camera {
	return Camera{X: 0, Y: 0, Scale: 1}
}

// Renderer defines the visual graph the core keeps in sync with the relationship store.
// Drawing, hit-testing and animation are the implementation's business.
type Renderer interface {
	// SetNode creates or replaces the node for id
	SetNode(id valueobjects.PersonID, data NodeData)

	// RemoveNode drops the node for id
	RemoveNode(id valueobjects.PersonID)

	// Nodes returns a copy of every node
	Nodes() map[valueobjects.PersonID]NodeData

	// AddConnection adds one visual edge
	AddConnection(from, to valueobjects.PersonID, kind valueobjects.ConnectionKind)

	// ClearConnections drops every visual edge
	ClearConnections()

	// Connections returns a copy of the visual edges
	Connections() []valueobjects.Connection

	// SelectedNodes returns the ids currently selected by the user
	SelectedNodes() map[valueobjects.PersonID]struct{}

	// Camera returns the current viewport
	Camera() Camera

	// SetCamera moves the viewport
	SetCamera(x, y, scale float64)

	// RequestRedraw raises the redraw flag
	RequestRedraw()

	// NeedsRedraw reports whether a redraw was requested since the last frame
	NeedsRedraw() bool
}

// Notifier defines the user-facing notification sink. Calls are fire-and-forget.
type Notifier interface {
	Success(title, message string)
	Warning(title, message string)
	Error(title, message string)
	Info(title, message string)
	Loading(title, message string)
}

// KeyValueStore defines the durable store snapshots are written to
type KeyValueStore interface {
	// Get returns the value for key or a NOT_FOUND error
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Keys lists the keys starting with prefix
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// SnapshotStore persists whole-tree snapshots. Save and Load report failures
// to the user themselves and never return storage errors.
type SnapshotStore interface {
	// Save writes snap and reports whether it reached the store
	Save(ctx context.Context, snap *snapshot.Snapshot) bool

	// Load returns the stored snapshot, or nil when there is none or it is unusable
	Load(ctx context.Context) *snapshot.Snapshot

	// Clear removes every stored snapshot
	Clear(ctx context.Context) error
}

// Metrics records tree activity
type Metrics interface {
	RecordRegeneration(parent, spouse, lineOnly, persons int)
	RecordHistory(action string, depth int)
	RecordRepair(stage string)
}

// NopMetrics records nothing
type NopMetrics struct{}

func (NopMetrics) RecordRegeneration(int, int, int, int) {}
func (NopMetrics) RecordHistory(string, int)             {}
func (NopMetrics) RecordRepair(string)                   {}
