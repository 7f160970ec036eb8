package tree

import (
	"go.uber.org/zap"

	"familytree/application/history"
	"familytree/application/ports"
	"familytree/domain/core/entities"
	"familytree/domain/core/valueobjects"
	"familytree/domain/services"
	"familytree/domain/snapshot"
)

// stateAccessor lets the undo manager capture and restore the tree.
// The tree's lock is held whenever it is called.
type stateAccessor struct {
	t *Tree
}

func (a stateAccessor) CaptureState() history.State {
	t := a.t
	return history.State{
		Nodes:              t.renderer.Nodes(),
		Persons:            t.family.Records(),
		Hidden:             t.hidden.Strings(),
		LineOnly:           t.lineOnly.Strings(),
		DisplayPreferences: t.prefs,
		NodeStyle:          t.nodeStyle,
		Settings:           t.settings,
		Camera:             t.renderer.Camera(),
		NextID:             t.nextID,
	}
}

func (a stateAccessor) RestoreState(s history.State) {
	t := a.t
	t.family.Replace(s.Persons)
	t.family.MarkEventsAsCommitted()
	t.replaceNodesLocked(s.Nodes)
	t.hidden = valueobjects.NewKeySet(s.Hidden...)
	t.lineOnly = valueobjects.NewKeySet(s.LineOnly...)
	t.prefs = s.DisplayPreferences
	t.nodeStyle = s.NodeStyle
	t.settings = s.Settings
	t.renderer.SetCamera(s.Camera.X, s.Camera.Y, s.Camera.Scale)
	t.nextID = s.NextID
	t.regenerateLocked()
}

// replaceNodesLocked makes the renderer hold exactly nodes
func (t *Tree) replaceNodesLocked(nodes map[valueobjects.PersonID]ports.NodeData) {
	for id := range t.renderer.Nodes() {
		if _, keep := nodes[id]; !keep {
			t.renderer.RemoveNode(id)
		}
	}
	for id, data := range nodes {
		t.renderer.SetNode(id, data)
	}
}

// snapshotLocked merges the relationship store and the renderer's nodes
func (t *Tree) snapshotLocked() *snapshot.Snapshot {
	snap := snapshot.New()
	snap.Settings = t.settings
	snap.DisplayPreferences = t.prefs
	snap.NodeStyle = t.nodeStyle
	camera := t.renderer.Camera()
	snap.Camera = snapshot.Camera{X: camera.X, Y: camera.Y, Scale: camera.Scale}
	snap.HiddenConnections = t.hidden.Strings()
	snap.LineOnlyConnections = t.lineOnly.Strings()
	snap.NextID = t.nextID
	snap.UndoDepth, _ = t.history.Depth()

	nodes := t.renderer.Nodes()
	for _, id := range t.family.IDs() {
		p, _ := t.family.GetPerson(id)
		node, ok := nodes[id]
		if !ok {
			node = t.defaultNode(0, 0)
		}
		snap.Persons = append(snap.Persons, snapshot.PersonRecord{
			ID:         id.String(),
			X:          node.X,
			Y:          node.Y,
			Name:       p.Name,
			FatherName: p.FatherName,
			Surname:    p.Surname,
			MaidenName: p.MaidenName,
			DOB:        p.DOB,
			Gender:     p.Gender.String(),
			Color:      node.Color,
			Radius:     node.Radius,
			MotherID:   p.MotherID.String(),
			FatherID:   p.FatherID.String(),
			SpouseID:   p.SpouseID.String(),
		})
	}
	return snap
}

// applySnapshotLocked splits snap back into the relationship store and the
// renderer, then regenerates. It returns the regeneration's connection count.
func (t *Tree) applySnapshotLocked(snap *snapshot.Snapshot) int {
	t.settings = snap.Settings
	t.prefs = snap.DisplayPreferences
	t.applyPersonsLocked(snap.Persons)

	t.hidden = valueobjects.NewKeySet(snap.HiddenConnections...)
	t.lineOnly = valueobjects.NewKeySet(snap.LineOnlyConnections...)
	t.nodeStyle = snapshot.ParseNodeStyle(string(snap.NodeStyle))
	t.renderer.SetCamera(snap.Camera.X, snap.Camera.Y, snap.Camera.Scale)

	t.nextID = snap.NextID
	if next := snap.MaxSequence(t.config.IDPrefix) + 1; next > t.nextID {
		t.nextID = next
	}

	result := t.regenerateLocked()
	if len(result.Connections) > 0 || !t.needsRecoveryLocked(snap) {
		return len(result.Connections)
	}
	return t.recoverRelationsLocked(snap)
}

// needsRecoveryLocked reports whether an empty edge set is suspicious: some
// relational data exists and not every resulting connection is merely hidden.
func (t *Tree) needsRecoveryLocked(snap *snapshot.Snapshot) bool {
	if !t.family.HasRelations() && len(snap.RelationsBackup) == 0 {
		return false
	}
	if len(t.hidden) == 0 {
		return true
	}
	existing := make(services.NodeSet)
	for id := range t.renderer.Nodes() {
		existing[id] = struct{}{}
	}
	unhidden := t.synthesizer.Synthesize(t.family, valueobjects.NewKeySet(), t.lineOnly, existing)
	return len(unhidden) == 0
}

func (t *Tree) applyPersonsLocked(records []snapshot.PersonRecord) {
	persons := make(map[valueobjects.PersonID]entities.Person, len(records))
	nodes := make(map[valueobjects.PersonID]ports.NodeData, len(records))
	for _, r := range records {
		id := valueobjects.PersonID(r.ID)
		p, err := entities.NewPerson(id, entities.PersonFields{
			Name:       r.Name,
			Surname:    r.Surname,
			MaidenName: r.MaidenName,
			FatherName: r.FatherName,
			DOB:        r.DOB,
			Gender:     r.Gender,
			MotherID:   notSelf(r.MotherID, r.ID),
			FatherID:   notSelf(r.FatherID, r.ID),
			SpouseID:   notSelf(r.SpouseID, r.ID),
		}, t.config)
		if err != nil {
			t.logger.Warn("skipping unusable person record", zap.String("id", r.ID), zap.Error(err))
			continue
		}
		persons[id] = p
		node := t.defaultNode(r.X, r.Y)
		if r.Color != "" {
			node.Color = r.Color
		}
		if r.Radius > 0 {
			node.Radius = r.Radius
		}
		nodes[id] = node
	}
	t.family.Replace(persons)
	t.family.MarkEventsAsCommitted()
	t.replaceNodesLocked(nodes)
}

// recoverRelationsLocked is the second reconstruction pass: relational data
// exists yet no connection could be drawn, so relations are re-read from the
// snapshot's redundant backup.
func (t *Tree) recoverRelationsLocked(snap *snapshot.Snapshot) int {
	retry := snap.Clone()
	restored := retry.RestoreRelationsFromBackup()
	if restored == 0 {
		if t.family.HasRelations() {
			t.logger.Warn("no connections could be rebuilt from stored relations",
				zap.Int("persons", t.family.Len()),
				zap.Int("backup_entries", len(snap.RelationsBackup)))
			t.notifier.Warning("Relationships incomplete", "Some relationships point to people who are missing.")
		}
		return 0
	}

	t.applyPersonsLocked(retry.Persons)
	result := t.regenerateLocked()
	t.logger.Warn("relations restored from backup after empty regeneration",
		zap.Int("restored", restored),
		zap.Int("connections", len(result.Connections)))
	t.metrics.RecordRepair("post-regenerate")
	t.notifier.Info("Relationships restored", "Relationships were rebuilt from the backup copy.")
	t.outbox = append(t.outbox, newSnapshotRepaired(t.now(), "post-regenerate", restored))
	return len(result.Connections)
}

func notSelf(target, id string) valueobjects.PersonID {
	if target == id {
		return ""
	}
	return valueobjects.PersonID(target)
}

func (t *Tree) defaultNode(x, y float64) ports.NodeData {
	color := t.settings.DefaultColor
	if color == "" {
		color = t.config.DefaultColor
	}
	radius := t.settings.NodeRadius
	if radius <= 0 {
		radius = t.config.DefaultRadius
	}
	return ports.NodeData{X: x, Y: y, Color: color, Radius: radius}
}
