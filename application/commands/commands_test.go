package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"familytree/application/commands/bus"
	"familytree/application/tree"
	"familytree/domain/core/valueobjects"
	"familytree/infrastructure/render"
	pkgerrors "familytree/pkg/errors"
)

func newBus(t *testing.T) (*bus.CommandBus, *tree.Tree, *render.HeadlessRenderer) {
	t.Helper()
	renderer := render.NewHeadlessRenderer()
	tr := tree.New(tree.Deps{Renderer: renderer})
	b := bus.NewCommandBus(bus.RecoveryMiddleware(), bus.ValidationMiddleware())
	require.NoError(t, NewTreeHandlers(tr, nil).Register(b))
	return b, tr, renderer
}

func addPerson(t *testing.T, b *bus.CommandBus, in tree.PersonInput) valueobjects.PersonID {
	t.Helper()
	id, err := bus.SendFor[valueobjects.PersonID](context.Background(), b, AddPersonCommand{Person: in})
	require.NoError(t, err)
	return id
}

func TestCommands_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     bus.Command
		wantErr bool
	}{
		{"add ok", AddPersonCommand{Person: tree.PersonInput{Name: "Ada", Gender: "female"}}, false},
		{"add bad gender", AddPersonCommand{Person: tree.PersonInput{Name: "Ada", Gender: "x"}}, true},
		{"update self reference", UpdatePersonCommand{PersonID: "p1", Person: tree.PersonInput{MotherID: "p1"}}, true},
		{"delete missing id", DeletePersonCommand{}, true},
		{"relation unknown", SetRelationCommand{PersonID: "p1", Relation: "cousin", TargetID: "p2"}, true},
		{"relation to self", SetRelationCommand{PersonID: "p1", Relation: "mother", TargetID: "p1"}, true},
		{"relation clear", SetRelationCommand{PersonID: "p1", Relation: "spouse"}, false},
		{"disconnect same", DisconnectCommand{A: "p1", B: "p1"}, true},
		{"toggle bad mode", ToggleConnectionCommand{A: "p1", B: "p2", Mode: "flip"}, true},
		{"toggle ok", ToggleConnectionCommand{A: "p1", B: "p2", Mode: ToggleHide}, false},
		{"move ok", MoveNodeCommand{PersonID: "p1", X: 1, Y: 2}, false},
		{"shape unknown", ApplyShapeCommand{Shape: "spiral"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsValidation(err), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTreeHandlers_EndToEnd(t *testing.T) {
	b, tr, renderer := newBus(t)
	ctx := context.Background()

	a := addPerson(t, b, tree.PersonInput{Name: "Ada", Gender: "female"})
	c := addPerson(t, b, tree.PersonInput{Name: "Byron", Gender: "male"})

	_, err := b.Send(ctx, SetRelationCommand{PersonID: c.String(), Relation: "mother", TargetID: a.String()})
	require.NoError(t, err)
	assert.Len(t, tr.Connections(), 1)

	_, err = b.Send(ctx, ToggleConnectionCommand{A: a.String(), B: c.String(), Mode: ToggleHide})
	require.NoError(t, err)
	assert.Empty(t, tr.Connections())

	_, err = b.Send(ctx, ToggleConnectionCommand{A: a.String(), B: c.String(), Mode: ToggleShow})
	require.NoError(t, err)
	assert.Len(t, tr.Connections(), 1)

	_, err = b.Send(ctx, MoveNodeCommand{PersonID: a.String(), X: 300, Y: 120})
	require.NoError(t, err)
	assert.Equal(t, 300.0, renderer.Nodes()[a].X)

	changed, err := bus.SendFor[bool](ctx, b, DisconnectCommand{A: a.String(), B: c.String()})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, tr.Connections())

	_, err = b.Send(ctx, ApplyShapeCommand{Shape: "grid"})
	require.NoError(t, err)

	_, err = b.Send(ctx, DeletePersonCommand{PersonID: c.String()})
	require.NoError(t, err)
	_, ok := tr.Person(c)
	assert.False(t, ok)
}

func TestTreeHandlers_ErrorsSurface(t *testing.T) {
	b, _, _ := newBus(t)
	ctx := context.Background()

	_, err := b.Send(ctx, DeletePersonCommand{PersonID: "p7"})
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = b.Send(ctx, AddPersonCommand{Person: tree.PersonInput{Gender: "female"}})
	assert.True(t, pkgerrors.IsValidation(err), "name is required by the tree")
}
