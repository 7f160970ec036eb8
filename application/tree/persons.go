package tree

import (
	"context"
	"errors"

	"familytree/application/ports"
	"familytree/domain/core/entities"
	"familytree/domain/core/valueobjects"
	pkgerrors "familytree/pkg/errors"
)

// errUnchanged tells mutate that fn found nothing to do
var errUnchanged = errors.New("unchanged")

// AddPerson creates a person from the form and places its node at the form's position
func (t *Tree) AddPerson(ctx context.Context, in PersonInput) (valueobjects.PersonID, error) {
	if err := in.Validate(t.config); err != nil {
		return "", err
	}

	var id valueobjects.PersonID
	err := t.mutate(ctx, "add-person", func() error {
		if err := t.checkTargetsLocked(in.relations()); err != nil {
			return err
		}
		next, seq := t.peekIDLocked()
		fields := in.Fields()
		if err := t.family.SetPerson(next, fields); err != nil {
			return err
		}
		t.nextID = seq + 1
		id = next

		node := t.defaultNode(in.X, in.Y)
		applyStyle(&node, in)
		t.renderer.SetNode(id, node)
		t.linkSpouseLocked(id, "", fields.SpouseID)
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdatePerson replaces a person's fields and relations. The node keeps its position.
func (t *Tree) UpdatePerson(ctx context.Context, id valueobjects.PersonID, in PersonInput) error {
	if err := in.Validate(t.config); err != nil {
		return err
	}
	return t.mutate(ctx, "update-person", func() error {
		current, ok := t.family.GetPerson(id)
		if !ok {
			return notFound(id)
		}
		if err := t.checkTargetsLocked(in.relations()); err != nil {
			return err
		}
		fields := in.Fields()
		if err := t.family.SetPerson(id, fields); err != nil {
			return err
		}

		if node, ok := t.renderer.Nodes()[id]; ok {
			applyStyle(&node, in)
			t.renderer.SetNode(id, node)
		} else {
			t.renderer.SetNode(id, t.defaultNode(in.X, in.Y))
		}
		t.linkSpouseLocked(id, current.SpouseID, fields.SpouseID)
		return nil
	})
}

// DeletePerson removes a person and its node. Relations other persons hold to
// it stay in place and simply stop producing connections.
func (t *Tree) DeletePerson(ctx context.Context, id valueobjects.PersonID) error {
	return t.mutate(ctx, "delete-person", func() error {
		if !t.family.DeletePerson(id) {
			return notFound(id)
		}
		t.renderer.RemoveNode(id)
		t.hidden.RemoveInvolving(id)
		t.lineOnly.RemoveInvolving(id)
		return nil
	})
}

// SetRelation points one relational slot of id at target
func (t *Tree) SetRelation(ctx context.Context, id valueobjects.PersonID, rel valueobjects.RelationType, target valueobjects.PersonID) error {
	if target.IsZero() {
		return pkgerrors.NewValidationError("relation target is required").WithField("target", "is required")
	}
	return ignoreUnchanged(t.mutate(ctx, "set-relation", func() error {
		return t.setRelationLocked(id, rel, target)
	}))
}

// ClearRelation empties one relational slot of id
func (t *Tree) ClearRelation(ctx context.Context, id valueobjects.PersonID, rel valueobjects.RelationType) error {
	return ignoreUnchanged(t.mutate(ctx, "clear-relation", func() error {
		return t.setRelationLocked(id, rel, "")
	}))
}

func (t *Tree) setRelationLocked(id valueobjects.PersonID, rel valueobjects.RelationType, target valueobjects.PersonID) error {
	if !rel.IsValid() {
		return pkgerrors.NewValidationError("unknown relation").WithField("relation", string(rel))
	}
	current, ok := t.family.GetPerson(id)
	if !ok {
		return notFound(id)
	}
	if !target.IsZero() {
		if err := t.checkTargetsLocked(map[valueobjects.RelationType]valueobjects.PersonID{rel: target}); err != nil {
			return err
		}
	}
	if current.Relation(rel) == target {
		return errUnchanged
	}
	if err := t.family.SetRelation(id, rel, target); err != nil {
		return err
	}
	if rel == valueobjects.RelationSpouse {
		t.linkSpouseLocked(id, current.SpouseID, target)
	}
	return nil
}

// Disconnect removes every relation between a and b in both directions, and
// any line-only connection between them. It reports whether anything changed.
func (t *Tree) Disconnect(ctx context.Context, a, b valueobjects.PersonID) (bool, error) {
	err := t.mutate(ctx, "disconnect", func() error {
		changed := false
		for _, pair := range [][2]valueobjects.PersonID{{a, b}, {b, a}} {
			p, ok := t.family.GetPerson(pair[0])
			if !ok {
				continue
			}
			for _, rel := range []valueobjects.RelationType{
				valueobjects.RelationMother,
				valueobjects.RelationFather,
				valueobjects.RelationSpouse,
			} {
				if p.Relation(rel) != pair[1] {
					continue
				}
				if err := t.family.SetRelation(pair[0], rel, ""); err != nil {
					return err
				}
				changed = true
			}
		}

		key := valueobjects.NewConnectionKey(a, b)
		if t.lineOnly.Has(key) {
			t.lineOnly.Remove(key)
			changed = true
		}
		t.hidden.Remove(key)
		if !changed {
			return errUnchanged
		}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return false, nil
	}
	return err == nil, err
}

// Person returns a copy of the record for id
func (t *Tree) Person(id valueobjects.PersonID) (entities.Person, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.family.GetPerson(id)
}

// linkSpouseLocked keeps spouse records symmetric where the other side agrees:
// a former spouse pointing back at id is released, and a new spouse with a free
// slot is pointed at id.
func (t *Tree) linkSpouseLocked(id, former, next valueobjects.PersonID) {
	if !former.IsZero() && former != next {
		if p, ok := t.family.GetPerson(former); ok && p.SpouseID == id {
			_ = t.family.SetRelation(former, valueobjects.RelationSpouse, "")
		}
	}
	if next.IsZero() {
		return
	}
	if p, ok := t.family.GetPerson(next); ok && p.SpouseID.IsZero() {
		_ = t.family.SetRelation(next, valueobjects.RelationSpouse, id)
	}
}

// peekIDLocked returns the next free minted id and its sequence number
func (t *Tree) peekIDLocked() (valueobjects.PersonID, int) {
	seq := t.nextID
	if seq < 1 {
		seq = 1
	}
	for {
		id := valueobjects.NewPersonID(t.config.IDPrefix, seq)
		if !t.family.Has(id) {
			return id, seq
		}
		seq++
	}
}

func (t *Tree) checkTargetsLocked(targets map[valueobjects.RelationType]valueobjects.PersonID) error {
	for rel, target := range targets {
		if !t.family.Has(target) {
			return notFound(target).WithField(string(rel), "unknown person")
		}
	}
	return nil
}

func ignoreUnchanged(err error) error {
	if errors.Is(err, errUnchanged) {
		return nil
	}
	return err
}

func notFound(id valueobjects.PersonID) *pkgerrors.AppError {
	return pkgerrors.NewNotFoundError("person").WithDetail("id", id.String())
}

func applyStyle(node *ports.NodeData, in PersonInput) {
	if in.Color != "" {
		node.Color = in.Color
	}
	if in.Radius > 0 {
		node.Radius = in.Radius
	}
}
