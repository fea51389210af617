// internal/chat/router/router.go
package router

import (
	"context"
	"fmt"
	"strings"

	"chatbot-backend/internal/common/logger"
)

// Route is the capability selected for a new question.
type Route string

const (
	RouteDocumentRetriever Route = "DOCUMENT_RETRIEVER"
	RouteDatabaseTool      Route = "DATABASE_TOOL"
	RouteFarewellHandler   Route = "FAREWELL_HANDLER"
	RouteNoCapability      Route = "NO_CAPABILITY"
)

// Farewell phrases short-circuit before any LLM call (cost control).
var farewellKeywords = []string{
	"gracias, eso es todo",
	"eso es todo",
	"eso seria todo",
	"eso sería todo",
	"hasta luego",
	"hasta pronto",
	"nos vemos",
	"adios",
	"adiós",
	"chau",
	"bye",
	"goodbye",
	"that's all",
	"thanks, that is all",
}

// Generator is the structured half of the LLM adapter.
type Generator interface {
	GenerateStructured(ctx context.Context, prompt string) (map[string]interface{}, error)
}

// Router decides, once per new question, which capability handles it. It
// never runs during an open clarification loop; the orchestrator resumes the
// previously selected tool instead.
type Router struct {
	llm    Generator
	logger logger.Logger
}

func New(llm Generator, log logger.Logger) *Router {
	return &Router{
		llm:    llm,
		logger: log.With(map[string]interface{}{"component": "intent-router"}),
	}
}

// Route classifies a question given the context's capabilities.
func (r *Router) Route(ctx context.Context, question string, hasDatabaseTool, hasDocuments bool) Route {
	if !hasDatabaseTool && !hasDocuments {
		return RouteNoCapability
	}

	if isFarewell(question) {
		return RouteFarewellHandler
	}

	// With a single capability there is nothing to decide.
	if hasDatabaseTool && !hasDocuments {
		return RouteDatabaseTool
	}
	if hasDocuments && !hasDatabaseTool {
		return RouteDocumentRetriever
	}

	return r.classify(ctx, question)
}

// classify issues a closed-label structured call. Anything other than a valid
// label, including a failed call, defaults to the document retriever.
func (r *Router) classify(ctx context.Context, question string) Route {
	prompt := fmt.Sprintf(
		"Classify the user question into exactly one label.\n"+
			"Labels:\n"+
			"- DATABASE_TOOL: the question asks for the user's own records, grades, schedules, enrollment or other structured data\n"+
			"- DOCUMENT_RETRIEVER: the question asks about policies, procedures, regulations or general information found in documents\n"+
			"- FAREWELL_HANDLER: the user is ending the conversation\n\n"+
			"Answer with a JSON object {\"label\": \"<label>\"}.\n\nQuestion: %s\n",
		question,
	)

	raw, err := r.llm.GenerateStructured(ctx, prompt)
	if err != nil {
		r.logger.Warn("routing call failed, defaulting to document retriever", map[string]interface{}{
			"error": err.Error(),
		})
		return RouteDocumentRetriever
	}

	label, _ := raw["label"].(string)
	switch Route(strings.ToUpper(strings.TrimSpace(label))) {
	case RouteDatabaseTool:
		return RouteDatabaseTool
	case RouteDocumentRetriever:
		return RouteDocumentRetriever
	case RouteFarewellHandler:
		return RouteFarewellHandler
	}

	r.logger.Warn("unrecognized routing label, defaulting to document retriever", map[string]interface{}{
		"label": label,
	})
	return RouteDocumentRetriever
}

func isFarewell(question string) bool {
	q := strings.ToLower(strings.TrimSpace(question))
	for _, kw := range farewellKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
