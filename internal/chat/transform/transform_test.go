// internal/chat/transform/transform_test.go
package transform

import (
	"testing"

	"chatbot-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Core Functionality Tests
// ==========================

func TestApply(t *testing.T) {
	tests := []struct {
		name            string
		value           interface{}
		transformations []models.Transformation
		expected        interface{}
	}{
		{
			name:            "remove dashes from a document number",
			value:           "123-456-78",
			transformations: []models.Transformation{models.TransformRemoveDashes},
			expected:        "12345678",
		},
		{
			name:            "uppercase a course mention",
			value:           "matematica 1",
			transformations: []models.Transformation{models.TransformToUpperCase},
			expected:        "MATEMATICA 1",
		},
		{
			name:            "lowercase",
			value:           "PeRiOdO",
			transformations: []models.Transformation{models.TransformToLowerCase},
			expected:        "periodo",
		},
		{
			name:            "trim surrounding whitespace",
			value:           "  2026-1  ",
			transformations: []models.Transformation{models.TransformTrim},
			expected:        "2026-1",
		},
		{
			name:            "extract first number from free text",
			value:           "mi dni es 40123456 gracias",
			transformations: []models.Transformation{models.TransformExtractFirstNumber},
			expected:        "40123456",
		},
		{
			name:  "transformations apply in declaration order",
			value: " 123-456 ",
			transformations: []models.Transformation{
				models.TransformTrim,
				models.TransformRemoveDashes,
				models.TransformExtractFirstNumber,
			},
			expected: "123456",
		},
		{
			name:            "extract first number leaves value untouched when no digits",
			value:           "no tengo",
			transformations: []models.Transformation{models.TransformExtractFirstNumber},
			expected:        "no tengo",
		},
		{
			name:            "non-string values pass through untouched",
			value:           42.0,
			transformations: []models.Transformation{models.TransformToUpperCase},
			expected:        42.0,
		},
		{
			name:            "nil passes through",
			value:           nil,
			transformations: []models.Transformation{models.TransformTrim},
			expected:        nil,
		},
		{
			name:            "empty transformation list is a no-op",
			value:           "as-is",
			transformations: nil,
			expected:        "as-is",
		},
		{
			name:            "unknown transformation is ignored",
			value:           "value",
			transformations: []models.Transformation{models.Transformation("REVERSE")},
			expected:        "value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Apply(tt.value, tt.transformations))
		})
	}
}

func TestApply_Idempotent(t *testing.T) {
	transformations := []models.Transformation{
		models.TransformTrim,
		models.TransformRemoveDashes,
		models.TransformToUpperCase,
		models.TransformExtractFirstNumber,
	}

	once := Apply(" 40-123-456 abc ", transformations)
	twice := Apply(once, transformations)

	assert.Equal(t, "40123456", once)
	assert.Equal(t, once, twice, "re-running the list over a stored value must be a no-op")
}
