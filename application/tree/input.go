package tree

import (
	"strings"

	"familytree/domain/config"
	"familytree/domain/core/entities"
	"familytree/domain/core/valueobjects"
	pkgerrors "familytree/pkg/errors"
	"familytree/pkg/validation"
)

// PersonInput is the person form as submitted by the user
type PersonInput struct {
	Name       string  `json:"name" validate:"max=100"`
	Surname    string  `json:"surname" validate:"max=100"`
	MaidenName string  `json:"maidenName" validate:"max=100"`
	FatherName string  `json:"fatherName" validate:"max=100"`
	DOB        string  `json:"dob" validate:"max=50"`
	Gender     string  `json:"gender" validate:"omitempty,oneof=male female unspecified"`
	MotherID   string  `json:"motherId" validate:"omitempty,personid"`
	FatherID   string  `json:"fatherId" validate:"omitempty,personid,nefield=MotherID"`
	SpouseID   string  `json:"spouseId" validate:"omitempty,personid"`
	Color      string  `json:"color" validate:"color"`
	Radius     float64 `json:"radius" validate:"omitempty,gte=10,lte=200"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

// Validate checks the form against its tags and the configured required fields
func (in PersonInput) Validate(cfg *config.DomainConfig) error {
	err := validation.ValidateStruct(in)
	appErr := pkgerrors.GetAppError(err)
	if err != nil && appErr == nil {
		return err
	}
	if cfg.RequireName && strings.TrimSpace(in.Name) == "" {
		appErr = orInvalid(appErr).WithField("name", "is required")
	}
	if cfg.RequireGender && strings.TrimSpace(in.Gender) == "" {
		appErr = orInvalid(appErr).WithField("gender", "is required")
	}
	if appErr == nil {
		return nil
	}
	return appErr
}

func orInvalid(appErr *pkgerrors.AppError) *pkgerrors.AppError {
	if appErr != nil {
		return appErr
	}
	return pkgerrors.NewValidationError("invalid input")
}

// Fields converts the form into relationship store input
func (in PersonInput) Fields() entities.PersonFields {
	return entities.PersonFields{
		Name:       in.Name,
		Surname:    in.Surname,
		MaidenName: in.MaidenName,
		FatherName: in.FatherName,
		DOB:        in.DOB,
		Gender:     in.Gender,
		MotherID:   valueobjects.PersonID(strings.TrimSpace(in.MotherID)),
		FatherID:   valueobjects.PersonID(strings.TrimSpace(in.FatherID)),
		SpouseID:   valueobjects.PersonID(strings.TrimSpace(in.SpouseID)),
	}
}

// relations lists the relational slots the form sets
func (in PersonInput) relations() map[valueobjects.RelationType]valueobjects.PersonID {
	f := in.Fields()
	out := make(map[valueobjects.RelationType]valueobjects.PersonID, 3)
	if !f.MotherID.IsZero() {
		out[valueobjects.RelationMother] = f.MotherID
	}
	if !f.FatherID.IsZero() {
		out[valueobjects.RelationFather] = f.FatherID
	}
	if !f.SpouseID.IsZero() {
		out[valueobjects.RelationSpouse] = f.SpouseID
	}
	return out
}
