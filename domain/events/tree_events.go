package events

import (
	"time"

	"familytree/domain/core/valueobjects"
)

const (
	TypePersonSaved             = "person.saved"
	TypePersonDeleted           = "person.deleted"
	TypeConnectionsRegenerated  = "tree.connections_regenerated"
	TypeHistoryChanged          = "history.changed"
	TypeSnapshotSaved           = "snapshot.saved"
	TypeSnapshotSaveFailed      = "snapshot.save_failed"
	TypeSnapshotLoaded          = "snapshot.loaded"
	TypeSnapshotRepaired        = "snapshot.repaired"
	TypeGenerationCycleDetected = "generation.cycle_detected"
)

// PersonSaved is raised when a person record is created or replaced
type PersonSaved struct {
	BaseEvent
	PersonID valueobjects.PersonID `json:"person_id"`
	Created  bool                  `json:"created"`
}

// NewPersonSaved creates a PersonSaved event
func NewPersonSaved(familyID string, id valueobjects.PersonID, created bool, timestamp time.Time) PersonSaved {
	return PersonSaved{
		BaseEvent: NewBaseEvent(familyID, TypePersonSaved, timestamp),
		PersonID:  id,
		Created:   created,
	}
}

// PersonDeleted is raised when a person record is removed
type PersonDeleted struct {
	BaseEvent
	PersonID valueobjects.PersonID `json:"person_id"`
}

// NewPersonDeleted creates a PersonDeleted event
func NewPersonDeleted(familyID string, id valueobjects.PersonID, timestamp time.Time) PersonDeleted {
	return PersonDeleted{
		BaseEvent: NewBaseEvent(familyID, TypePersonDeleted, timestamp),
		PersonID:  id,
	}
}

// ConnectionsRegenerated is raised after the visual edge set was rebuilt
type ConnectionsRegenerated struct {
	BaseEvent
	Parent   int `json:"parent"`
	Spouse   int `json:"spouse"`
	LineOnly int `json:"line_only"`
	Skipped  int `json:"skipped"`
}

// Total returns the number of emitted connections
func (e ConnectionsRegenerated) Total() int {
	return e.Parent + e.Spouse + e.LineOnly
}

// HistoryChanged is raised when the undo or redo stack changes
type HistoryChanged struct {
	BaseEvent
	Action    string `json:"action"`
	UndoDepth int    `json:"undo_depth"`
	RedoDepth int    `json:"redo_depth"`
}

// SnapshotSaved is raised after a snapshot reached the durable store
type SnapshotSaved struct {
	BaseEvent
	Key         string `json:"key"`
	BackupKey   string `json:"backup_key"`
	CacheFormat string `json:"cache_format"`
	Bytes       int    `json:"bytes"`
	Pruned      int    `json:"pruned"`
}

// SnapshotSaveFailed is raised when a save could not be written
type SnapshotSaveFailed struct {
	BaseEvent
	Reason string `json:"reason"`
}

// SnapshotLoaded is raised after a snapshot was restored into the tree
type SnapshotLoaded struct {
	BaseEvent
	Format  string `json:"format"`
	Persons int    `json:"persons"`
}

// SnapshotRepaired is raised when the integrity step rewrote relational data
type SnapshotRepaired struct {
	BaseEvent
	Stage    string   `json:"stage"`
	Restored int      `json:"restored"`
	Notes    []string `json:"notes,omitempty"`
}

// GenerationCycleDetected is raised when ancestry data contains a cycle
type GenerationCycleDetected struct {
	BaseEvent
	PersonIDs []valueobjects.PersonID `json:"person_ids"`
}
