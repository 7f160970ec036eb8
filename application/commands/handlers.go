package commands

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"familytree/application/commands/bus"
	"familytree/application/tree"
	"familytree/domain/core/valueobjects"
)

// TreeHandlers executes commands against one tree
type TreeHandlers struct {
	tree   *tree.Tree
	logger *zap.Logger
}

// NewTreeHandlers creates the handlers for t
func NewTreeHandlers(t *tree.Tree, logger *zap.Logger) *TreeHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TreeHandlers{tree: t, logger: logger.Named("commands")}
}

// Register binds every command type to its handler
func (h *TreeHandlers) Register(b *bus.CommandBus) error {
	routes := []struct {
		cmd     bus.Command
		handler bus.CommandHandlerFunc
	}{
		{AddPersonCommand{}, h.addPerson},
		{UpdatePersonCommand{}, h.updatePerson},
		{DeletePersonCommand{}, h.deletePerson},
		{SetRelationCommand{}, h.setRelation},
		{DisconnectCommand{}, h.disconnect},
		{ToggleConnectionCommand{}, h.toggleConnection},
		{MoveNodeCommand{}, h.moveNode},
		{ApplyShapeCommand{}, h.applyShape},
	}
	for _, r := range routes {
		if err := b.Register(r.cmd, r.handler); err != nil {
			return err
		}
	}
	return nil
}

func (h *TreeHandlers) addPerson(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(AddPersonCommand)
	id, err := h.tree.AddPerson(ctx, cmd.Person)
	if err != nil {
		return nil, err
	}
	h.logger.Debug("person added", zap.Stringer("id", id))
	return id, nil
}

func (h *TreeHandlers) updatePerson(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(UpdatePersonCommand)
	return nil, h.tree.UpdatePerson(ctx, valueobjects.PersonID(cmd.PersonID), cmd.Person)
}

func (h *TreeHandlers) deletePerson(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(DeletePersonCommand)
	return nil, h.tree.DeletePerson(ctx, valueobjects.PersonID(cmd.PersonID))
}

func (h *TreeHandlers) setRelation(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(SetRelationCommand)
	id := valueobjects.PersonID(cmd.PersonID)
	rel := valueobjects.RelationType(cmd.Relation)
	if cmd.TargetID == "" {
		return nil, h.tree.ClearRelation(ctx, id, rel)
	}
	return nil, h.tree.SetRelation(ctx, id, rel, valueobjects.PersonID(cmd.TargetID))
}

func (h *TreeHandlers) disconnect(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(DisconnectCommand)
	changed, err := h.tree.Disconnect(ctx, valueobjects.PersonID(cmd.A), valueobjects.PersonID(cmd.B))
	if err != nil {
		return nil, err
	}
	return changed, nil
}

func (h *TreeHandlers) toggleConnection(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(ToggleConnectionCommand)
	a, b := valueobjects.PersonID(cmd.A), valueobjects.PersonID(cmd.B)
	switch cmd.Mode {
	case ToggleHide:
		return nil, h.tree.HideConnection(ctx, a, b)
	case ToggleShow:
		return nil, h.tree.ShowConnection(ctx, a, b)
	case ToggleLineOnly:
		return nil, h.tree.AddLineOnly(ctx, a, b)
	case ToggleRemoveLineOnly:
		return nil, h.tree.RemoveLineOnly(ctx, a, b)
	}
	return nil, fmt.Errorf("unknown toggle mode %q", cmd.Mode)
}

func (h *TreeHandlers) moveNode(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(MoveNodeCommand)
	id := valueobjects.PersonID(cmd.PersonID)
	if cmd.Debounced {
		return nil, h.tree.DragNode(id, cmd.X, cmd.Y)
	}
	return nil, h.tree.MoveNode(ctx, id, cmd.X, cmd.Y)
}

func (h *TreeHandlers) applyShape(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd := c.(ApplyShapeCommand)
	return nil, h.tree.ApplyShape(ctx, cmd.Shape)
}
