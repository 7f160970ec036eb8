package tree

import (
	"context"

	"go.uber.org/zap"

	"familytree/domain/core/valueobjects"
	"familytree/domain/services"
	"familytree/domain/snapshot"
	pkgerrors "familytree/pkg/errors"
	"familytree/pkg/validation"
)

// MoveNode places a node at (x, y) and records the move as one undo step
func (t *Tree) MoveNode(ctx context.Context, id valueobjects.PersonID, x, y float64) error {
	pos, err := valueobjects.NewPosition(x, y)
	if err != nil {
		return err
	}
	return ignoreUnchanged(t.mutate(ctx, "move-node", func() error {
		return t.moveLocked(id, pos)
	}))
}

// DragNode moves a node while a drag is in progress. The undo state is pushed
// once the node has been still for the configured debounce.
func (t *Tree) DragNode(id valueobjects.PersonID, x, y float64) error {
	pos, err := valueobjects.NewPosition(x, y)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.moveLocked(id, pos); err != nil {
		return ignoreUnchanged(err)
	}
	t.renderer.RequestRedraw()
	t.history.SchedulePush("drag", t.config.DragDebounce)
	return nil
}

func (t *Tree) moveLocked(id valueobjects.PersonID, pos valueobjects.Position) error {
	node, ok := t.renderer.Nodes()[id]
	if !ok {
		return notFound(id)
	}
	if node.Position().Equals(pos) {
		return errUnchanged
	}
	node.X, node.Y = pos.X, pos.Y
	t.renderer.SetNode(id, node)
	return nil
}

// SetNodeStyle switches every node between circles and rectangles
func (t *Tree) SetNodeStyle(ctx context.Context, style string) error {
	parsed := snapshot.ParseNodeStyle(style)
	if string(parsed) != style {
		return pkgerrors.NewValidationError("unknown node style").WithField("nodeStyle", style)
	}
	return ignoreUnchanged(t.mutate(ctx, "node-style", func() error {
		if t.nodeStyle == parsed {
			return errUnchanged
		}
		t.nodeStyle = parsed
		return nil
	}))
}

// NodeStyle returns the current node style
func (t *Tree) NodeStyle() snapshot.NodeStyle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nodeStyle
}

// UpdateSettings replaces the visual settings after validating them
func (t *Tree) UpdateSettings(ctx context.Context, settings snapshot.Settings) error {
	if err := validation.ValidateStruct(settings); err != nil {
		return err
	}
	return ignoreUnchanged(t.mutate(ctx, "settings", func() error {
		if t.settings == settings {
			return errUnchanged
		}
		t.settings = settings
		return nil
	}))
}

// Settings returns the current visual settings
func (t *Tree) Settings() snapshot.Settings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings
}

// SetDisplayPreferences toggles the optional text drawn on nodes
func (t *Tree) SetDisplayPreferences(ctx context.Context, prefs snapshot.DisplayPreferences) error {
	return ignoreUnchanged(t.mutate(ctx, "display-preferences", func() error {
		if t.prefs == prefs {
			return errUnchanged
		}
		t.prefs = prefs
		return nil
	}))
}

// DisplayPreferences returns the current display preferences
func (t *Tree) DisplayPreferences() snapshot.DisplayPreferences {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prefs
}

// SetCamera moves the viewport. Camera moves are not undoable.
func (t *Tree) SetCamera(x, y, scale float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.renderer.SetCamera(x, y, scale)
	t.renderer.RequestRedraw()
}

// ApplyShape rearranges every node into shape around the current camera
// position. Relations are untouched; the whole rearrangement is one undo step.
func (t *Tree) ApplyShape(ctx context.Context, shape string) error {
	parsed, err := services.ParseShape(shape)
	if err != nil {
		return err
	}
	return ignoreUnchanged(t.mutate(ctx, "apply-shape", func() error {
		if t.family.Len() == 0 {
			return errUnchanged
		}
		camera := t.renderer.Camera()
		layout, err := t.shapes.Arrange(t.family, parsed, valueobjects.Position{X: camera.X, Y: camera.Y})
		if err != nil {
			return err
		}
		nodes := t.renderer.Nodes()
		for id, pos := range layout {
			node, ok := nodes[id]
			if !ok {
				node = t.defaultNode(pos.X, pos.Y)
			}
			node.X, node.Y = pos.X, pos.Y
			t.renderer.SetNode(id, node)
		}
		t.logger.Debug("shape applied", zap.String("shape", string(parsed)), zap.Int("nodes", len(layout)))
		return nil
	}))
}
