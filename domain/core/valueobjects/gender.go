package valueobjects

import (
	"strings"

	pkgerrors "familytree/pkg/errors"
)

// Gender of a person. The empty value means unspecified.
type Gender string

const (
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderUnspecified Gender = ""
)

// ParseGender normalizes user or stored input. "unspecified" maps to the empty value.
func ParseGender(raw string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "male":
		return GenderMale, nil
	case "female":
		return GenderFemale, nil
	case "", "unspecified":
		return GenderUnspecified, nil
	default:
		return GenderUnspecified, pkgerrors.NewValidationError("gender must be male, female or empty").
			WithField("gender", raw)
	}
}

// String returns the stored representation
func (g Gender) String() string {
	return string(g)
}

// IsSpecified reports whether a gender was chosen
func (g Gender) IsSpecified() bool {
	return g != GenderUnspecified
}
