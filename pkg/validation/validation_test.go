package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "familytree/pkg/errors"
)

type form struct {
	Name   string `json:"name" validate:"required,max=5"`
	Color  string `json:"color" validate:"color"`
	Mother string `json:"motherId" validate:"omitempty,personid"`
	Father string `json:"fatherId" validate:"omitempty,personid,nefield=Mother"`
	Shape  string `json:"shape" validate:"omitempty,oneof=tree grid"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name   string
		in     form
		fields map[string]string
	}{
		{"valid", form{Name: "Ana", Color: "#fff", Mother: "p1", Father: "p2"}, nil},
		{"long hex with alpha", form{Name: "Ana", Color: "#3498dbff"}, nil},
		{"missing name", form{}, map[string]string{"name": "is required"}},
		{"name too long", form{Name: "Alexandra"}, map[string]string{"name": "must be at most 5"}},
		{"bad color", form{Name: "Ana", Color: "blue"}, map[string]string{"color": "must be a hex color"}},
		{"id with separator", form{Name: "Ana", Mother: "p1-p2"}, map[string]string{"motherId": "must not contain '-'"}},
		{"same parents", form{Name: "Ana", Mother: "p1", Father: "p1"}, map[string]string{"fatherId": "must differ from Mother"}},
		{"unknown shape", form{Name: "Ana", Shape: "spiral"}, map[string]string{"shape": "must be one of: tree grid"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.in)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			appErr := pkgerrors.GetAppError(err)
			require.NotNil(t, appErr)
			assert.Equal(t, pkgerrors.ErrorTypeValidation, appErr.Type)
			assert.Equal(t, tt.fields, appErr.Fields)
		})
	}
}

func TestValidateStruct_NotAStruct(t *testing.T) {
	err := ValidateStruct("just a string")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestGet_IsShared(t *testing.T) {
	assert.Same(t, Get(), Get())
}
