package commands

import (
	"familytree/application/tree"
	"familytree/domain/core/valueobjects"
	pkgerrors "familytree/pkg/errors"
	"familytree/pkg/validation"
)

// Connection toggle modes
const (
	ToggleHide           = "hide"
	ToggleShow           = "show"
	ToggleLineOnly       = "line-only"
	ToggleRemoveLineOnly = "remove-line-only"
)

// AddPersonCommand creates a person from the person form
type AddPersonCommand struct {
	Person tree.PersonInput `json:"person"`
}

// Validate checks the form's tags. Required fields are checked by the tree.
func (c AddPersonCommand) Validate() error {
	return validation.ValidateStruct(c)
}

// UpdatePersonCommand replaces a person's fields and relations
type UpdatePersonCommand struct {
	PersonID string           `json:"personId" validate:"required,personid"`
	Person   tree.PersonInput `json:"person"`
}

func (c UpdatePersonCommand) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	if selfReference(c.PersonID, c.Person) {
		return pkgerrors.NewValidationError("a person cannot be related to itself").
			WithField("person", "references itself")
	}
	return nil
}

// DeletePersonCommand removes a person and its node
type DeletePersonCommand struct {
	PersonID string `json:"personId" validate:"required,personid"`
}

func (c DeletePersonCommand) Validate() error {
	return validation.ValidateStruct(c)
}

// SetRelationCommand sets one relational slot. An empty target clears it.
type SetRelationCommand struct {
	PersonID string `json:"personId" validate:"required,personid"`
	Relation string `json:"relation" validate:"required,oneof=mother father spouse"`
	TargetID string `json:"targetId" validate:"omitempty,personid,nefield=PersonID"`
}

func (c SetRelationCommand) Validate() error {
	return validation.ValidateStruct(c)
}

// DisconnectCommand removes every relation and line-only edge between two persons
type DisconnectCommand struct {
	A string `json:"a" validate:"required,personid"`
	B string `json:"b" validate:"required,personid,nefield=A"`
}

func (c DisconnectCommand) Validate() error {
	return validation.ValidateStruct(c)
}

// ToggleConnectionCommand hides, shows, adds or removes a visual edge
type ToggleConnectionCommand struct {
	A    string `json:"a" validate:"required,personid"`
	B    string `json:"b" validate:"required,personid,nefield=A"`
	Mode string `json:"mode" validate:"required,oneof=hide show line-only remove-line-only"`
}

func (c ToggleConnectionCommand) Validate() error {
	return validation.ValidateStruct(c)
}

// MoveNodeCommand places a node. Drag sets Debounced so intermediate
// positions collapse into one undo step.
type MoveNodeCommand struct {
	PersonID  string  `json:"personId" validate:"required,personid"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Debounced bool    `json:"debounced"`
}

func (c MoveNodeCommand) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	_, err := valueobjects.NewPosition(c.X, c.Y)
	return err
}

// ApplyShapeCommand rearranges the whole tree
type ApplyShapeCommand struct {
	Shape string `json:"shape" validate:"required,oneof=tree solar grid grape"`
}

func (c ApplyShapeCommand) Validate() error {
	return validation.ValidateStruct(c)
}

func selfReference(id string, in tree.PersonInput) bool {
	return in.MotherID == id || in.FatherID == id || in.SpouseID == id
}
