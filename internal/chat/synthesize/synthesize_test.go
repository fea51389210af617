// internal/chat/synthesize/synthesize_test.go
package synthesize

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
	response string
	err      error
	prompts  []string
}

func (s *stubGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

func createTestSynthesizer(t *testing.T, gen *stubGenerator) *Synthesizer {
	return New(gen, logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestSynthesizer_Synthesize_RowsAppearInPrompt(t *testing.T) {
	gen := &stubGenerator{response: "Tu nota en MAT101 es 17."}
	synth := createTestSynthesizer(t, gen)

	result := &models.QueryResult{Rows: []map[string]interface{}{
		{"curso": "MAT101", "nota": 17},
	}}
	answer, err := synth.Synthesize(context.Background(), "¿cuál es mi nota?", result)

	require.NoError(t, err)
	assert.Equal(t, "Tu nota en MAT101 es 17.", answer)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "MAT101")
	assert.Contains(t, gen.prompts[0], "¿cuál es mi nota?")
}

func TestSynthesizer_Synthesize_EmptyResultInstructsPlainStatement(t *testing.T) {
	gen := &stubGenerator{response: "No se encontraron notas registradas."}
	synth := createTestSynthesizer(t, gen)

	_, err := synth.Synthesize(context.Background(), "mis notas", &models.QueryResult{})

	require.NoError(t, err)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "empty")
}

func TestSynthesizer_Synthesize_FailedResultApologizesWithoutTechnicalDetails(t *testing.T) {
	gen := &stubGenerator{response: "Lo siento, hubo un problema al consultar tus notas."}
	synth := createTestSynthesizer(t, gen)

	result := &models.QueryResult{Error: "procedure sp_consultar_notas failed: deadlock"}
	answer, err := synth.Synthesize(context.Background(), "mis notas", result)

	require.NoError(t, err)
	assert.NotEmpty(t, answer)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "apologize")
}

func TestSynthesizer_Synthesize_LLMFailurePropagates(t *testing.T) {
	gen := &stubGenerator{err: errors.New("genai unreachable")}
	synth := createTestSynthesizer(t, gen)

	answer, err := synth.Synthesize(context.Background(), "mis notas", &models.QueryResult{})

	assert.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeLLMSynthesisFailed, stderrors.CodeOf(err))
	assert.ErrorIs(t, err, gen.err, "underlying transport error stays reachable")
	assert.Empty(t, answer)
}

// ==========================
// Boilerplate Stripping Tests
// ==========================

func TestStripBoilerplate(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		expected string
	}{
		{
			name:     "single spanish lead-in",
			answer:   "Claro, tu nota es 17.",
			expected: "tu nota es 17.",
		},
		{
			name:     "stacked lead-ins are all removed",
			answer:   "Claro, respuesta: tu nota es 17.",
			expected: "tu nota es 17.",
		},
		{
			name:     "english lead-in",
			answer:   "Sure, your grade is 17.",
			expected: "your grade is 17.",
		},
		{
			name:     "surrounding whitespace is trimmed",
			answer:   "   tu nota es 17.   ",
			expected: "tu nota es 17.",
		},
		{
			name:     "clean answer is untouched",
			answer:   "Tu nota es 17.",
			expected: "Tu nota es 17.",
		},
		{
			name:     "lead-in phrase mid-sentence is kept",
			answer:   "Dijo: claro, acepto.",
			expected: "Dijo: claro, acepto.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripBoilerplate(tt.answer))
		})
	}
}
