package render

import (
	"sync"

	"familytree/application/ports"
	"familytree/domain/core/valueobjects"
)

var _ ports.Renderer = (*HeadlessRenderer)(nil)

// HeadlessRenderer keeps the visual graph in memory without drawing it.
// The CLI and tests drive the tree through it.
type HeadlessRenderer struct {
	mu          sync.RWMutex
	nodes       map[valueobjects.PersonID]ports.NodeData
	connections []valueobjects.Connection
	selected    map[valueobjects.PersonID]struct{}
	camera      ports.Camera
	redraw      bool
}

// NewHeadlessRenderer creates an empty renderer
func NewHeadlessRenderer() *HeadlessRenderer {
	return &HeadlessRenderer{
		nodes:    make(map[valueobjects.PersonID]ports.NodeData),
		selected: make(map[valueobjects.PersonID]struct{}),
		camera:   ports.DefaultCamera(),
	}
}

func (r *HeadlessRenderer) SetNode(id valueobjects.PersonID, data ports.NodeData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[id] = data
}

func (r *HeadlessRenderer) RemoveNode(id valueobjects.PersonID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.nodes, id)
	delete(r.selected, id)
}

func (r *HeadlessRenderer) Nodes() map[valueobjects.PersonID]ports.NodeData {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[valueobjects.PersonID]ports.NodeData, len(r.nodes))
	for id, n := range r.nodes {
		out[id] = n
	}
	return out
}

func (r *HeadlessRenderer) AddConnection(from, to valueobjects.PersonID, kind valueobjects.ConnectionKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections = append(r.connections, valueobjects.Connection{From: from, To: to, Kind: kind})
}

func (r *HeadlessRenderer) ClearConnections() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections = nil
}

func (r *HeadlessRenderer) Connections() []valueobjects.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]valueobjects.Connection(nil), r.connections...)
}

func (r *HeadlessRenderer) SelectedNodes() map[valueobjects.PersonID]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[valueobjects.PersonID]struct{}, len(r.selected))
	for id := range r.selected {
		out[id] = struct{}{}
	}
	return out
}

// Select replaces the selection with the ids that have a node
func (r *HeadlessRenderer) Select(ids ...valueobjects.PersonID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = make(map[valueobjects.PersonID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := r.nodes[id]; ok {
			r.selected[id] = struct{}{}
		}
	}
}

func (r *HeadlessRenderer) Camera() ports.Camera {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.camera
}

func (r *HeadlessRenderer) SetCamera(x, y, scale float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if scale <= 0 {
		scale = 1
	}
	r.camera = ports.Camera{X: x, Y: y, Scale: scale}
}

func (r *HeadlessRenderer) RequestRedraw() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redraw = true
}

// NeedsRedraw reports and clears the redraw flag
func (r *HeadlessRenderer) NeedsRedraw() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	needs := r.redraw
	r.redraw = false
	return needs
}
