// internal/chat/extract/extract_test.go
package extract

import (
	"context"
	"errors"
	"testing"

	stderrors "chatbot-backend/internal/common/errors"
	"chatbot-backend/internal/common/logger"
	"chatbot-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type stubGenerator struct {
	response map[string]interface{}
	err      error
	prompts  []string
}

func (s *stubGenerator) GenerateStructured(ctx context.Context, prompt string) (map[string]interface{}, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

func createTestAdapter(t *testing.T, gen *stubGenerator) *Adapter {
	return NewAdapter(gen, logger.NewTestLogger(t))
}

func gradeSpecs() []models.ParamSpec {
	return []models.ParamSpec{
		{Name: "dni", Type: "string", IsRequired: true, DescriptionForLLM: "documento de identidad"},
		{Name: "curso", Type: "string", IsRequired: true, DescriptionForLLM: "nombre del curso"},
	}
}

// ==========================
// Parameter Extraction Tests
// ==========================

func TestAdapter_ExtractParameters(t *testing.T) {
	tests := []struct {
		name     string
		specs    []models.ParamSpec
		response map[string]interface{}
		expected map[string]interface{}
	}{
		{
			name:  "returns only requested fields with canonical names",
			specs: gradeSpecs(),
			response: map[string]interface{}{
				"DNI":     "40123456",
				"curso":   "matematica 1",
				"periodo": "2026-1", // volunteered, never requested
			},
			expected: map[string]interface{}{
				"dni":   "40123456",
				"curso": "matematica 1",
			},
		},
		{
			name:  "drops empty strings and nils",
			specs: gradeSpecs(),
			response: map[string]interface{}{
				"dni":   "   ",
				"curso": nil,
			},
			expected: map[string]interface{}{},
		},
		{
			name:     "empty model answer yields empty map",
			specs:    gradeSpecs(),
			response: map[string]interface{}{},
			expected: map[string]interface{}{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{response: tt.response}
			adapter := createTestAdapter(t, gen)

			out, err := adapter.ExtractParameters(context.Background(), "pregunta", tt.specs)

			require.NoError(t, err)
			require.NotNil(t, out)
			assert.Equal(t, tt.expected, out.Parameters)
		})
	}
}

func TestAdapter_ExtractParameters_NoSpecsSkipsLLM(t *testing.T) {
	gen := &stubGenerator{}
	adapter := createTestAdapter(t, gen)

	out, err := adapter.ExtractParameters(context.Background(), "pregunta", nil)

	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Empty(t, out.Parameters)
	assert.Empty(t, gen.prompts, "no LLM call without requested fields")
}

func TestAdapter_ExtractParameters_PromptListsFieldsAndQuestion(t *testing.T) {
	gen := &stubGenerator{response: map[string]interface{}{}}
	adapter := createTestAdapter(t, gen)

	_, err := adapter.ExtractParameters(context.Background(), "quiero mis notas", gradeSpecs())

	require.NoError(t, err)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "dni")
	assert.Contains(t, gen.prompts[0], "curso")
	assert.Contains(t, gen.prompts[0], "quiero mis notas")
}

func TestAdapter_ExtractParameters_LLMFailure(t *testing.T) {
	gen := &stubGenerator{err: errors.New("timeout")}
	adapter := createTestAdapter(t, gen)

	out, err := adapter.ExtractParameters(context.Background(), "pregunta", gradeSpecs())

	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Equal(t, stderrors.ErrCodeExtractionFailed, stderrors.CodeOf(err))
	assert.Nil(t, out)
}

// ==========================
// Tool Selection Tests
// ==========================

func TestAdapter_SelectTool(t *testing.T) {
	tools := []models.ToolSpec{
		{ToolName: "consultar_notas", Description: "notas del alumno"},
		{ToolName: "consultar_horario", Description: "horario de clases"},
	}

	tests := []struct {
		name        string
		tools       []models.ToolSpec
		response    map[string]interface{}
		genErr      error
		expected    string
		expectErr   bool
		expectCalls int
	}{
		{
			name:        "single declared tool skips the LLM",
			tools:       tools[:1],
			expected:    "consultar_notas",
			expectCalls: 0,
		},
		{
			name:        "valid selection among several tools",
			tools:       tools,
			response:    map[string]interface{}{"tool": "consultar_horario"},
			expected:    "consultar_horario",
			expectCalls: 1,
		},
		{
			name:        "selection is case-insensitive but returns the declared name",
			tools:       tools,
			response:    map[string]interface{}{"tool": "CONSULTAR_NOTAS"},
			expected:    "consultar_notas",
			expectCalls: 1,
		},
		{
			name:        "undeclared tool name is rejected",
			tools:       tools,
			response:    map[string]interface{}{"tool": "borrar_tabla"},
			expectErr:   true,
			expectCalls: 1,
		},
		{
			name:        "missing tool key is rejected",
			tools:       tools,
			response:    map[string]interface{}{"label": "whatever"},
			expectErr:   true,
			expectCalls: 1,
		},
		{
			name:        "LLM failure propagates",
			tools:       tools,
			genErr:      errors.New("unreachable"),
			expectErr:   true,
			expectCalls: 1,
		},
		{
			name:      "no declared tools is an error",
			tools:     nil,
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{response: tt.response, err: tt.genErr}
			adapter := createTestAdapter(t, gen)

			name, err := adapter.SelectTool(context.Background(), "pregunta", tt.tools)

			if tt.expectErr {
				assert.ErrorIs(t, err, ErrExtractionFailed)
				assert.Equal(t, stderrors.ErrCodeExtractionFailed, stderrors.CodeOf(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, name)
			}
			assert.Len(t, gen.prompts, tt.expectCalls)
		})
	}
}
