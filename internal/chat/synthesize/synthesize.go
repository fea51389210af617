// internal/chat/synthesize/synthesize.go
package synthesize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	stderrors "chatbot-backend/internal/common/errors"
	"chatbot-backend/internal/common/logger"
	"chatbot-backend/internal/models"
)

// Boilerplate lead-ins the model tends to prepend; stripped so the caller
// receives only the substantive answer.
var boilerplatePrefixes = []string{
	"claro,",
	"por supuesto,",
	"aquí tienes la respuesta:",
	"aquí está la respuesta:",
	"respuesta:",
	"sure,",
	"of course,",
	"here is the answer:",
	"here's the answer:",
}

// Generator is the free-text half of the LLM adapter.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Synthesizer turns a structured query result plus the original question into
// a final natural-language reply.
type Synthesizer struct {
	llm    Generator
	logger logger.Logger
}

func New(llm Generator, log logger.Logger) *Synthesizer {
	return &Synthesizer{
		llm:    llm,
		logger: log.With(map[string]interface{}{"component": "answer-synthesizer"}),
	}
}

// Synthesize produces the final answer. The model is instructed to summarize
// faithfully, to say plainly when the result set is empty, and never to
// fabricate fields absent from the result.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, result *models.QueryResult) (string, error) {
	prompt := s.buildPrompt(question, result)

	answer, err := s.llm.GenerateText(ctx, prompt)
	if err != nil {
		return "", stderrors.NewLLMSynthesisFailedError(err)
	}

	return StripBoilerplate(answer), nil
}

func (s *Synthesizer) buildPrompt(question string, result *models.QueryResult) string {
	var sb strings.Builder
	sb.WriteString("Answer the user's question using only the query result below, in the user's language.\n")
	sb.WriteString("Do not mention fields that are not in the result. ")

	switch {
	case result.Failed():
		sb.WriteString("The query failed; apologize briefly and suggest trying again later. Do not include technical details.\n")
		fmt.Fprintf(&sb, "\nFailure: %s\n", result.Error)
	case result.Empty():
		sb.WriteString("The result set is empty; state plainly that no records were found.\n")
	default:
		data, err := json.Marshal(result.Rows)
		if err != nil {
			data = []byte("[]")
		}
		fmt.Fprintf(&sb, "\nQuery result: %s\n", data)
	}

	fmt.Fprintf(&sb, "\nUser question: %s\n", question)
	return sb.String()
}

// StripBoilerplate removes known lead-in phrases from the start of an answer.
func StripBoilerplate(answer string) string {
	out := strings.TrimSpace(answer)
	for changed := true; changed; {
		changed = false
		lower := strings.ToLower(out)
		for _, prefix := range boilerplatePrefixes {
			if strings.HasPrefix(lower, prefix) {
				out = strings.TrimSpace(out[len(prefix):])
				changed = true
				break
			}
		}
	}
	return out
}
