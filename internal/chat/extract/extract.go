// internal/chat/extract/extract.go
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stderrors "chatbot-backend/internal/common/errors"
	"chatbot-backend/internal/common/logger"
	"chatbot-backend/internal/models"
)

var ErrExtractionFailed = errors.New("EXTRACTION_FAILED")

// Generator is the structured half of the LLM adapter.
type Generator interface {
	GenerateStructured(ctx context.Context, prompt string) (map[string]interface{}, error)
}

// Adapter turns natural-language questions into candidate parameter values
// and tool selections. Its output is untrusted until filtered against the
// requested spec names, which happens here before anything escapes.
type Adapter struct {
	llm    Generator
	logger logger.Logger
}

func NewAdapter(llm Generator, log logger.Logger) *Adapter {
	return &Adapter{
		llm:    llm,
		logger: log.With(map[string]interface{}{"component": "extraction-adapter"}),
	}
}

// ExtractParameters asks the model for values of the given specs only. The
// result's parameter keys are canonical spec names; values the model
// volunteered for parameters that were not requested are discarded.
func (a *Adapter) ExtractParameters(ctx context.Context, question string, specs []models.ParamSpec) (*models.ExtractionResult, error) {
	if len(specs) == 0 {
		return &models.ExtractionResult{Parameters: map[string]interface{}{}}, nil
	}

	var sb strings.Builder
	sb.WriteString("Extract the following fields from the user message. ")
	sb.WriteString("Answer with a JSON object using exactly these field names; omit any field not present in the message.\n\nFields:\n")
	for _, s := range specs {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", s.Name, s.Type, s.DescriptionForLLM)
	}
	fmt.Fprintf(&sb, "\nUser message: %s\n", question)

	raw, err := a.llm.GenerateStructured(ctx, sb.String())
	if err != nil {
		return nil, stderrors.NewExtractionFailedError(fmt.Errorf("%w: %v", ErrExtractionFailed, err))
	}

	out := make(map[string]interface{})
	for key, val := range raw {
		spec, ok := findSpec(specs, key)
		if !ok {
			a.logger.Debug("dropping unexpected extraction key", map[string]interface{}{"key": key})
			continue
		}
		if str, ok := val.(string); ok && strings.TrimSpace(str) == "" {
			continue
		}
		if val == nil {
			continue
		}
		out[spec.Name] = val
	}

	return &models.ExtractionResult{Parameters: out}, nil
}

// SelectTool asks the model which declared tool answers the question. The
// answer must name a declared tool; anything else is an extraction failure.
func (a *Adapter) SelectTool(ctx context.Context, question string, tools []models.ToolSpec) (string, error) {
	if len(tools) == 0 {
		return "", stderrors.NewExtractionFailedError(fmt.Errorf("%w: no tools declared", ErrExtractionFailed))
	}
	if len(tools) == 1 {
		return tools[0].ToolName, nil
	}

	var sb strings.Builder
	sb.WriteString("Choose the single tool that answers the user question. ")
	sb.WriteString("Answer with a JSON object {\"tool\": \"<name>\"} using one of these names exactly:\n\n")
	for _, t := range tools {
		fmt.Fprintf(&sb, "- %s: %s\n", t.ToolName, t.Description)
	}
	fmt.Fprintf(&sb, "\nUser question: %s\n", question)

	raw, err := a.llm.GenerateStructured(ctx, sb.String())
	if err != nil {
		return "", stderrors.NewExtractionFailedError(fmt.Errorf("%w: %v", ErrExtractionFailed, err))
	}

	name, _ := raw["tool"].(string)
	for _, t := range tools {
		if strings.EqualFold(t.ToolName, name) {
			return t.ToolName, nil
		}
	}

	return "", stderrors.NewExtractionFailedError(fmt.Errorf("%w: model selected unknown tool %q", ErrExtractionFailed, name))
}

func findSpec(specs []models.ParamSpec, name string) (models.ParamSpec, bool) {
	for _, s := range specs {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return models.ParamSpec{}, false
}
