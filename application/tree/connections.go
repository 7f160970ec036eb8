package tree

import (
	"context"

	"familytree/domain/core/valueobjects"
	pkgerrors "familytree/pkg/errors"
)

// HideConnection suppresses the drawn edge between a and b. The relation
// itself stays in the relationship store.
func (t *Tree) HideConnection(ctx context.Context, a, b valueobjects.PersonID) error {
	return t.toggleKey(ctx, "hide-connection", a, b, func(key valueobjects.ConnectionKey) bool {
		if t.hidden.Has(key) {
			return false
		}
		t.hidden.Add(key)
		return true
	})
}

// ShowConnection lifts a suppression set by HideConnection
func (t *Tree) ShowConnection(ctx context.Context, a, b valueobjects.PersonID) error {
	return t.toggleKey(ctx, "show-connection", a, b, func(key valueobjects.ConnectionKey) bool {
		if !t.hidden.Has(key) {
			return false
		}
		t.hidden.Remove(key)
		return true
	})
}

// AddLineOnly draws a purely visual edge between a and b with no family meaning
func (t *Tree) AddLineOnly(ctx context.Context, a, b valueobjects.PersonID) error {
	return t.toggleKey(ctx, "add-line-only", a, b, func(key valueobjects.ConnectionKey) bool {
		if t.lineOnly.Has(key) {
			return false
		}
		t.lineOnly.Add(key)
		return true
	})
}

// RemoveLineOnly drops a line-only edge between a and b
func (t *Tree) RemoveLineOnly(ctx context.Context, a, b valueobjects.PersonID) error {
	return t.toggleKey(ctx, "remove-line-only", a, b, func(key valueobjects.ConnectionKey) bool {
		if !t.lineOnly.Has(key) {
			return false
		}
		t.lineOnly.Remove(key)
		return true
	})
}

// HiddenConnections returns the suppressed keys, sorted
func (t *Tree) HiddenConnections() []valueobjects.ConnectionKey {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hidden.Sorted()
}

// LineOnlyConnections returns the line-only keys, sorted
func (t *Tree) LineOnlyConnections() []valueobjects.ConnectionKey {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lineOnly.Sorted()
}

func (t *Tree) toggleKey(ctx context.Context, action string, a, b valueobjects.PersonID, apply func(valueobjects.ConnectionKey) bool) error {
	if a == b {
		return pkgerrors.NewValidationError("a connection needs two different persons").
			WithDetail("id", a.String())
	}
	return ignoreUnchanged(t.mutate(ctx, action, func() error {
		for _, id := range []valueobjects.PersonID{a, b} {
			if !t.family.Has(id) {
				return notFound(id)
			}
		}
		if !apply(valueobjects.NewConnectionKey(a, b)) {
			return errUnchanged
		}
		return nil
	}))
}
