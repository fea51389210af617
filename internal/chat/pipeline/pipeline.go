// internal/chat/pipeline/pipeline.go
package pipeline

import (
	"context"
	"strings"

	"chatbot-backend/internal/chat/transform"
	"chatbot-backend/internal/common/logger"
	"chatbot-backend/internal/models"
)

// Extractor fills parameter gaps from the question text via the LLM.
type Extractor interface {
	ExtractParameters(ctx context.Context, question string, specs []models.ParamSpec) (*models.ExtractionResult, error)
}

// Resolver maps a free-text entity mention to its canonical code. An empty
// code with a nil error is a miss, not a failure.
type Resolver interface {
	Resolve(ctx context.Context, entityType, searchTerm string) (string, error)
}

// Pipeline is the turn engine: it merges new input into carried-over partial
// parameters, fills gaps via extraction, resolves entities, applies
// transformations and classifies parameters as ready or missing. The LLM only
// ever supplies raw natural-language values; canonicalization and the
// injection-safety boundary are deterministic code.
type Pipeline struct {
	extractor Extractor
	resolver  Resolver
	logger    logger.Logger
}

func New(extractor Extractor, resolver Resolver, log logger.Logger) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		resolver:  resolver,
		logger:    log.With(map[string]interface{}{"component": "parameter-pipeline"}),
	}
}

// Process runs one pipeline pass. When required parameters are still missing,
// ReadyParameters carries every resolved/transformed value alongside the
// missing list so progress is never lost between turns. The union of ready
// keys and missing names always equals the required-parameter set.
func (p *Pipeline) Process(ctx context.Context, question string, partial map[string]interface{}, tool models.ToolSpec) *models.PipelineOutcome {
	working := copyDeclaredParams(partial, tool)

	// Step 1: gap detection before any LLM call.
	gaps := missingRequired(working, tool)

	// Step 2: targeted extraction of the gaps only. Never re-request
	// satisfied parameters; the model must not overwrite validated values.
	if len(gaps) > 0 {
		extracted, err := p.extractor.ExtractParameters(ctx, question, gaps)
		if err != nil {
			// Extraction failure means "nothing extracted", never a dead turn.
			p.logger.Warn("extraction failed, continuing with known parameters", map[string]interface{}{
				"tool":  tool.ToolName,
				"error": err.Error(),
			})
		}
		if extracted != nil {
			for name, val := range extracted.Parameters {
				working[name] = val
			}
		}
	}

	// Step 3: deterministic post-processing over every declared parameter,
	// so previously-stored raw values are normalized too.
	ready := make(map[string]interface{})
	var missing []models.ParamSpec

	for _, spec := range tool.Parameters {
		val, ok := lookup(working, spec.Name)
		if ok {
			val = p.resolveEntity(ctx, spec, val)
			val = transform.Apply(val, spec.Transformations)
		}

		if isReady(val, ok) {
			ready[spec.Name] = val
			continue
		}
		if spec.IsRequired {
			missing = append(missing, spec)
		}
	}

	return &models.PipelineOutcome{
		ReadyParameters: ready,
		Missing:         missing,
	}
}

// resolveEntity swaps a value for its canonical code when the parameter declares a
// resolver and the catalog knows the term. A miss or an unavailable catalog
// keeps the raw value for the transformation step.
func (p *Pipeline) resolveEntity(ctx context.Context, spec models.ParamSpec, val interface{}) interface{} {
	if spec.EntityResolver == nil {
		return val
	}
	str, ok := val.(string)
	if !ok || str == "" {
		return val
	}

	code, err := p.resolver.Resolve(ctx, spec.EntityResolver.EntityType, str)
	if err != nil {
		p.logger.Warn("entity resolution unavailable, keeping raw value", map[string]interface{}{
			"entityType": spec.EntityResolver.EntityType,
			"error":      err.Error(),
		})
		return val
	}
	if code == "" {
		return val
	}
	return code
}

// copyDeclaredParams copies entries matching a declared ParamSpec name,
// dropping reserved bookkeeping keys and anything the tool never declared.
func copyDeclaredParams(partial map[string]interface{}, tool models.ToolSpec) map[string]interface{} {
	out := make(map[string]interface{}, len(partial))
	for key, val := range partial {
		if strings.HasPrefix(key, models.ReservedPrefix) {
			continue
		}
		if spec, ok := tool.FindParam(key); ok {
			out[spec.Name] = val
		}
	}
	return out
}

func missingRequired(working map[string]interface{}, tool models.ToolSpec) []models.ParamSpec {
	var gaps []models.ParamSpec
	for _, spec := range tool.RequiredParams() {
		if val, ok := lookup(working, spec.Name); !ok || !isReady(val, ok) {
			gaps = append(gaps, spec)
		}
	}
	return gaps
}

func lookup(params map[string]interface{}, name string) (interface{}, bool) {
	for key, val := range params {
		if strings.EqualFold(key, name) {
			return val, true
		}
	}
	return nil, false
}

func isReady(val interface{}, present bool) bool {
	if !present || val == nil {
		return false
	}
	if str, ok := val.(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return true
}
