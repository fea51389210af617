// internal/chat/clarify/clarify.go
package clarify

import (
	"context"
	"fmt"
	"strings"

	"chatbot-backend/internal/common/logger"
	"chatbot-backend/internal/models"
)

// Generator is the free-text half of the LLM adapter.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Composer turns missing-parameter specs into a single user-facing question.
type Composer struct {
	llm    Generator
	logger logger.Logger
}

func NewComposer(llm Generator, log logger.Logger) *Composer {
	return &Composer{
		llm:    llm,
		logger: log.With(map[string]interface{}{"component": "clarification-composer"}),
	}
}

// Compose builds the clarification question. One missing parameter returns
// its pre-authored question verbatim, no LLM involved. Several missing
// parameters are merged by the model into one fluent question; the merge is a
// language-smoothing step only and falls back to joining the authored
// questions when the model call fails.
func (c *Composer) Compose(ctx context.Context, missing []models.ParamSpec) string {
	if len(missing) == 0 {
		return ""
	}

	if len(missing) == 1 {
		return questionFor(missing[0])
	}

	questions := make([]string, len(missing))
	for i, spec := range missing {
		questions[i] = questionFor(spec)
	}

	prompt := fmt.Sprintf(
		"Merge the following questions into one short, fluent question in the same language. "+
			"Do not add requirements beyond the listed questions.\n\n%s\n",
		"- "+strings.Join(questions, "\n- "),
	)

	merged, err := c.llm.GenerateText(ctx, prompt)
	if err != nil || strings.TrimSpace(merged) == "" {
		if err != nil {
			c.logger.Warn("clarification merge failed, joining authored questions", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return strings.Join(questions, " ")
	}

	return strings.TrimSpace(merged)
}

func questionFor(spec models.ParamSpec) string {
	if spec.ClarificationQuestion != "" {
		return spec.ClarificationQuestion
	}
	return fmt.Sprintf("¿Podrías indicarme el valor de %s?", spec.Name)
}
