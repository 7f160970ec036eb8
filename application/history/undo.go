package history

import (
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"go.uber.org/zap"

	"familytree/application/ports"
	"familytree/domain/core/entities"
	"familytree/domain/core/valueobjects"
	"familytree/domain/snapshot"
)

// DefaultMaxSize bounds the undo stack when no size is configured
const DefaultMaxSize = 50

// State is one captured tree state. Each record on the stacks owns its maps
// and slices; nothing is shared with the live tree.
type State struct {
	Action             string
	Nodes              map[valueobjects.PersonID]ports.NodeData
	Persons            map[valueobjects.PersonID]entities.Person
	Hidden             []string
	LineOnly           []string
	DisplayPreferences snapshot.DisplayPreferences
	NodeStyle          snapshot.NodeStyle
	Settings           snapshot.Settings
	Camera             ports.Camera
	NextID             int
}

// Clone returns a deep copy of s
func (s State) Clone() State {
	var out State
	if err := copier.CopyWithOption(&out, &s, copier.Option{DeepCopy: true}); err != nil {
		// copier only fails on mismatched kinds, which State cannot produce
		panic(err)
	}
	return out
}

// StateAccessor reads and replaces the live tree state. Both calls happen
// with the tree's lock held.
type StateAccessor interface {
	CaptureState() State
	RestoreState(State)
}

// UndoManager keeps bounded undo and redo stacks of full tree states. The top
// of the undo stack is always the state currently shown.
type UndoManager struct {
	mu       sync.Mutex
	accessor StateAccessor
	locker   sync.Locker
	undo     []State
	redo     []State
	maxSize  int

	pending       *time.Timer
	pendingAction string
	pendingSeq    uint64

	metrics ports.Metrics
	logger  *zap.Logger
}

// Option configures an UndoManager
type Option func(*UndoManager)

// WithLocker is taken by debounced pushes before they capture state,
// so timer-driven captures serialize with the tree's own mutations.
func WithLocker(l sync.Locker) Option {
	return func(m *UndoManager) { m.locker = l }
}

// WithMetrics records stack depth and operations
func WithMetrics(metrics ports.Metrics) Option {
	return func(m *UndoManager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// NewUndoManager creates a new undo manager
func NewUndoManager(accessor StateAccessor, maxSize int, logger *zap.Logger, opts ...Option) *UndoManager {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &UndoManager{
		accessor: accessor,
		maxSize:  maxSize,
		metrics:  ports.NopMetrics{},
		logger:   logger.Named("history"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PushState captures the current state as the newest undo entry and clears redo.
// A pending debounced push is cancelled; callers that must keep it as a
// separate step call Flush before changing state.
func (m *UndoManager) PushState(action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelPendingLocked()
	m.pushLocked(action)
}

func (m *UndoManager) pushLocked(action string) {
	state := m.accessor.CaptureState().Clone()
	state.Action = action

	m.undo = append(m.undo, state)
	if over := len(m.undo) - m.maxSize; over > 0 {
		// zero the evicted entries so their maps can be collected
		for i := 0; i < over; i++ {
			m.undo[i] = State{}
		}
		m.undo = m.undo[over:]
	}
	m.redo = nil

	m.logger.Debug("state pushed", zap.String("action", action), zap.Int("depth", len(m.undo)))
	m.metrics.RecordHistory("push", len(m.undo))
}

// SchedulePush debounces a push: repeated calls within delay collapse into one
// capture taken when the timer fires, or earlier on Flush, Undo or Redo.
func (m *UndoManager) SchedulePush(action string, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pendingAction = action
	m.pendingSeq++
	seq := m.pendingSeq
	if m.pending != nil {
		m.pending.Stop()
	}
	m.pending = time.AfterFunc(delay, func() { m.fire(seq) })
}

func (m *UndoManager) fire(seq uint64) {
	if m.locker != nil {
		m.locker.Lock()
		defer m.locker.Unlock()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// a newer schedule, a flush or a direct push got here first
	if m.pending == nil || m.pendingSeq != seq {
		return
	}
	m.flushLocked()
}

// Flush performs a pending debounced push now. It reports whether one was pending.
func (m *UndoManager) Flush() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushLocked()
}

func (m *UndoManager) flushLocked() bool {
	if m.pending == nil {
		return false
	}
	action := m.pendingAction
	m.cancelPendingLocked()
	m.pushLocked(action)
	return true
}

func (m *UndoManager) cancelPendingLocked() {
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
	m.pendingAction = ""
}

// Undo restores the previous state. It returns false when there is none.
func (m *UndoManager) Undo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushLocked()

	if len(m.undo) <= 1 {
		return false
	}
	current := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = append(m.redo, current)

	m.accessor.RestoreState(m.undo[len(m.undo)-1].Clone())
	m.logger.Debug("undo", zap.String("action", current.Action), zap.Int("depth", len(m.undo)))
	m.metrics.RecordHistory("undo", len(m.undo))
	return true
}

// Redo re-applies the most recently undone state. It returns false when there is none.
func (m *UndoManager) Redo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushLocked()

	if len(m.redo) == 0 {
		return false
	}
	next := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = append(m.undo, next)

	m.accessor.RestoreState(next.Clone())
	m.logger.Debug("redo", zap.String("action", next.Action), zap.Int("depth", len(m.undo)))
	m.metrics.RecordHistory("redo", len(m.undo))
	return true
}

// CanUndo reports whether Undo would change state
func (m *UndoManager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo) > 1 || (m.pending != nil && len(m.undo) > 0)
}

// CanRedo reports whether Redo would change state
func (m *UndoManager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0 && m.pending == nil
}

// Depth returns the undo and redo stack sizes
func (m *UndoManager) Depth() (undo, redo int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo), len(m.redo)
}

// LastAction returns the label of the state currently on top of the undo stack
func (m *UndoManager) LastAction() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.undo) == 0 {
		return ""
	}
	return m.undo[len(m.undo)-1].Action
}

// Reset drops both stacks and any pending push
func (m *UndoManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelPendingLocked()
	m.undo = nil
	m.redo = nil
	m.metrics.RecordHistory("reset", 0)
}
