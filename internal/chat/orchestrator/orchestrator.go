// internal/chat/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chatbot-backend/internal/chat/retriever"
	"chatbot-backend/internal/chat/router"
	stderrors "chatbot-backend/internal/common/errors"
	"chatbot-backend/internal/common/logger"
	"chatbot-backend/internal/common/metrics"
	"chatbot-backend/internal/models"

	"github.com/google/uuid"
)

// TurnIntent is the disposition of one full turn, a superset of the database
// chain intents.
type TurnIntent string

const (
	IntentClarificationRequired TurnIntent = TurnIntent(models.IntentClarificationRequired)
	IntentToolExecuted          TurnIntent = TurnIntent(models.IntentToolExecuted)
	IntentToolFailed            TurnIntent = TurnIntent(models.IntentToolFailed)
	IntentDocumentAnswered      TurnIntent = "DOCUMENT_ANSWERED"
	IntentGreeting              TurnIntent = "GREETING"
	IntentFarewell              TurnIntent = "FAREWELL"
	IntentNoCapability          TurnIntent = "NO_CAPABILITY"
)

var greetingKeywords = []string{
	"hola",
	"buenos dias",
	"buenos días",
	"buenas tardes",
	"buenas noches",
	"hello",
	"hi there",
	"good morning",
}

// TurnRequest carries one user message plus the tenant context configuration.
type TurnRequest struct {
	SessionID    string
	ContextID    string
	Question     string
	Tools        []models.ToolSpec
	HasDocuments bool
}

// TurnResult is what the HTTP layer returns to the user.
type TurnResult struct {
	Intent   TurnIntent           `json:"intent"`
	Answer   string               `json:"finalAnswer"`
	Metadata models.ChainMetadata `json:"metadata"`
}

// ==========================
// Collaborator interfaces
// ==========================

type StateStore interface {
	Get(ctx context.Context, sessionID string) *models.ConversationState
	Save(ctx context.Context, sessionID string, stateName models.StateName, params map[string]interface{}) error
	Clear(ctx context.Context, sessionID string) error
	GetName(ctx context.Context, sessionID string) string
	SaveName(ctx context.Context, sessionID, name string) error
}

type IntentRouter interface {
	Route(ctx context.Context, question string, hasDatabaseTool, hasDocuments bool) router.Route
}

type ToolSelector interface {
	SelectTool(ctx context.Context, question string, tools []models.ToolSpec) (string, error)
}

type ParameterPipeline interface {
	Process(ctx context.Context, question string, partial map[string]interface{}, tool models.ToolSpec) *models.PipelineOutcome
}

type Clarifier interface {
	Compose(ctx context.Context, missing []models.ParamSpec) string
}

type QueryExecutor interface {
	Execute(ctx context.Context, tool models.ToolSpec, ready map[string]interface{}) *models.QueryResult
}

type AnswerSynthesizer interface {
	Synthesize(ctx context.Context, question string, result *models.QueryResult) (string, error)
}

type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

type Notifier interface {
	NotifyHandoff(ctx context.Context, sessionID, question, reason string)
}

// Config holds the orchestrator's canned answers.
type Config struct {
	FallbackAnswer string
	FarewellAnswer string
}

// Orchestrator is the single entry point invoked once per user message. Each
// turn is a straight-line sequence; all cross-turn state lives in the
// external store, so concurrent turns for different sessions never share
// in-process mutable state.
type Orchestrator struct {
	config      Config
	states      StateStore
	router      IntentRouter
	selector    ToolSelector
	pipeline    ParameterPipeline
	clarifier   Clarifier
	executor    QueryExecutor
	synthesizer AnswerSynthesizer
	retriever   retriever.Retriever
	llm         TextGenerator
	notifier    Notifier
	logger      logger.Logger
}

func New(
	config Config,
	states StateStore,
	intentRouter IntentRouter,
	selector ToolSelector,
	pipeline ParameterPipeline,
	clarifier Clarifier,
	executor QueryExecutor,
	synthesizer AnswerSynthesizer,
	docRetriever retriever.Retriever,
	llm TextGenerator,
	notifier Notifier,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		config:      config,
		states:      states,
		router:      intentRouter,
		selector:    selector,
		pipeline:    pipeline,
		clarifier:   clarifier,
		executor:    executor,
		synthesizer: synthesizer,
		retriever:   docRetriever,
		llm:         llm,
		notifier:    notifier,
		logger:      log.With(map[string]interface{}{"component": "turn-orchestrator"}),
	}
}

// HandleTurn processes one user message end to end. Whatever goes wrong, the
// user always receives a natural-language answer; anything escaping the inner
// layers clears the conversation state so the user is never stuck in a broken
// clarification loop.
func (o *Orchestrator) HandleTurn(ctx context.Context, req *TurnRequest) (result *TurnResult) {
	start := time.Now()
	turnLog := o.logger.With(map[string]interface{}{
		"sessionId": req.SessionID,
		"turnId":    uuid.NewString(),
	})

	defer func() {
		if r := recover(); r != nil {
			turnErr := stderrors.NewOrchestrationFailedError(fmt.Sprintf("%v", r))
			turnLog.WithError(turnErr).Error("turn orchestration panicked", nil)
			metrics.TurnsFailed.WithLabelValues(string(stderrors.CodeOf(turnErr))).Inc()
			_ = o.states.Clear(ctx, req.SessionID)
			o.notifier.NotifyHandoff(ctx, req.SessionID, req.Question, "orchestration failure")
			result = &TurnResult{Intent: IntentToolFailed, Answer: o.config.FallbackAnswer}
		}
		metrics.TurnsCompleted.WithLabelValues(string(result.Intent)).Inc()
		metrics.TurnDuration.WithLabelValues(string(result.Intent)).Observe(time.Since(start).Seconds())
	}()

	turnLog.Info("processing turn", map[string]interface{}{
		"contextId": req.ContextID,
	})

	st := o.states.Get(ctx, req.SessionID)

	// Name capture is its own small flow, orthogonal to the tool loop.
	if st.StateName == models.StateAwaitingName {
		return o.captureName(ctx, req, turnLog)
	}

	// An open clarification loop resumes the previously selected tool; the
	// intent router never runs mid-clarification.
	if st.InClarification() {
		chain := o.RunDBQueryChain(ctx, req)
		return chainToTurn(chain)
	}

	if isGreeting(req.Question) {
		return o.greet(ctx, req)
	}

	route := o.router.Route(ctx, req.Question, len(req.Tools) > 0, req.HasDocuments)
	turnLog.Info("question routed", map[string]interface{}{"route": string(route)})

	switch route {
	case router.RouteFarewellHandler:
		_ = o.states.Clear(ctx, req.SessionID)
		return &TurnResult{Intent: IntentFarewell, Answer: o.config.FarewellAnswer}

	case router.RouteNoCapability:
		o.notifier.NotifyHandoff(ctx, req.SessionID, req.Question, "no capability for question")
		return &TurnResult{Intent: IntentNoCapability, Answer: o.config.FallbackAnswer}

	case router.RouteDocumentRetriever:
		return o.runDocumentChain(ctx, req, turnLog)

	default:
		chain := o.RunDBQueryChain(ctx, req)
		return chainToTurn(chain)
	}
}

// RunDBQueryChain is the caller-facing contract of the stateful tool loop:
// select (or resume) a tool, fill parameters, then either ask for more
// information or execute and answer. Success and terminal failure both clear
// the stored state; only an open clarification persists it.
func (o *Orchestrator) RunDBQueryChain(ctx context.Context, req *TurnRequest) *models.ChainResult {
	st := o.states.Get(ctx, req.SessionID)

	tool, err := o.selectTool(ctx, req, st)
	if err != nil {
		o.logger.WithError(err).Error("tool selection failed", map[string]interface{}{
			"sessionId": req.SessionID,
		})
		_ = o.states.Clear(ctx, req.SessionID)
		code := stderrors.CodeOf(err)
		if code == "" {
			code = stderrors.ErrCodeExtractionFailed
		}
		metrics.TurnsFailed.WithLabelValues(string(code)).Inc()
		return &models.ChainResult{
			Intent:      models.IntentToolFailed,
			FinalAnswer: o.config.FallbackAnswer,
		}
	}

	outcome := o.pipeline.Process(ctx, req.Question, st.PartialParameters, tool)

	if !outcome.Complete() {
		question := o.clarifier.Compose(ctx, outcome.Missing)

		persisted := make(map[string]interface{}, len(outcome.ReadyParameters)+1)
		for k, v := range outcome.ReadyParameters {
			persisted[k] = v
		}
		persisted[models.ReservedToolKey] = tool.ToolName

		if err := o.states.Save(ctx, req.SessionID, models.StateAwaitingToolParams, persisted); err != nil {
			// Degraded mode: the next turn starts over instead of resuming.
			o.logger.WithError(err).Warn("state save failed, clarification will not resume", map[string]interface{}{
				"sessionId": req.SessionID,
			})
		}

		metrics.ClarificationRounds.WithLabelValues(tool.ToolName).Inc()
		return &models.ChainResult{
			Intent:      models.IntentClarificationRequired,
			FinalAnswer: question,
			Metadata: models.ChainMetadata{
				ToolName:          tool.ToolName,
				PartialParameters: outcome.ReadyParameters,
			},
		}
	}

	queryResult := o.executor.Execute(ctx, tool, outcome.ReadyParameters)

	answer, synthErr := o.synthesizer.Synthesize(ctx, req.Question, queryResult)
	if synthErr != nil || strings.TrimSpace(answer) == "" {
		if synthErr != nil {
			o.logger.WithError(synthErr).Warn("answer synthesis failed, using plain summary", map[string]interface{}{
				"tool": tool.ToolName,
			})
		}
		answer = plainSummary(queryResult)
	}

	// The loop ends here either way; there is no automatic retry.
	_ = o.states.Clear(ctx, req.SessionID)

	intent := models.IntentToolExecuted
	if queryResult.Failed() {
		intent = models.IntentToolFailed
		metrics.TurnsFailed.WithLabelValues("TOOL_EXECUTION_FAILED").Inc()
	}

	return &models.ChainResult{
		Intent:      intent,
		FinalAnswer: answer,
		Metadata: models.ChainMetadata{
			ToolName:       tool.ToolName,
			ParametersUsed: outcome.ReadyParameters,
		},
	}
}

// selectTool resumes the stored tool mid-clarification and selects a fresh
// one otherwise. The selection is never re-run while a clarification is open.
func (o *Orchestrator) selectTool(ctx context.Context, req *TurnRequest, st *models.ConversationState) (models.ToolSpec, error) {
	if st.InClarification() {
		if name := st.SelectedTool(); name != "" {
			tool, err := findTool(req.Tools, name)
			if err != nil {
				return models.ToolSpec{}, stderrors.NewToolNotFoundError(name)
			}
			return tool, nil
		}
	}

	name, err := o.selector.SelectTool(ctx, req.Question, req.Tools)
	if err != nil {
		return models.ToolSpec{}, err
	}
	return findTool(req.Tools, name)
}

func (o *Orchestrator) runDocumentChain(ctx context.Context, req *TurnRequest, turnLog logger.Logger) *TurnResult {
	passages, err := o.retriever.Retrieve(ctx, req.ContextID, req.Question)
	if err != nil {
		turnLog.WithError(err).Error("document retrieval failed", nil)
		metrics.TurnsFailed.WithLabelValues("RETRIEVAL_FAILED").Inc()
		return &TurnResult{Intent: IntentToolFailed, Answer: o.config.FallbackAnswer}
	}

	if len(passages) == 0 {
		return &TurnResult{
			Intent: IntentDocumentAnswered,
			Answer: "No encontré información sobre tu consulta en los documentos disponibles.",
		}
	}

	var sb strings.Builder
	sb.WriteString("Answer the user's question using only the passages below, in the user's language. ")
	sb.WriteString("If the passages do not contain the answer, say so plainly.\n\n")
	for i, p := range passages {
		fmt.Fprintf(&sb, "Passage %d (%s):\n%s\n\n", i+1, p.Title, p.Content)
	}
	fmt.Fprintf(&sb, "User question: %s\n", req.Question)

	answer, err := o.llm.GenerateText(ctx, sb.String())
	if err != nil {
		turnLog.WithError(err).Error("document answer synthesis failed", nil)
		metrics.TurnsFailed.WithLabelValues("LLM_SYNTHESIS_FAILED").Inc()
		return &TurnResult{Intent: IntentToolFailed, Answer: o.config.FallbackAnswer}
	}

	return &TurnResult{Intent: IntentDocumentAnswered, Answer: strings.TrimSpace(answer)}
}

// greet answers a greeting; when the user's name is unknown the bot asks for
// it and waits one turn.
func (o *Orchestrator) greet(ctx context.Context, req *TurnRequest) *TurnResult {
	if name := o.states.GetName(ctx, req.SessionID); name != "" {
		return &TurnResult{
			Intent: IntentGreeting,
			Answer: fmt.Sprintf("¡Hola de nuevo, %s! ¿En qué puedo ayudarte?", name),
		}
	}

	if err := o.states.Save(ctx, req.SessionID, models.StateAwaitingName, nil); err != nil {
		// Without state the name can't be captured next turn; greet anyway.
		return &TurnResult{Intent: IntentGreeting, Answer: "¡Hola! ¿En qué puedo ayudarte?"}
	}
	return &TurnResult{Intent: IntentGreeting, Answer: "¡Hola! ¿Cómo te llamas?"}
}

func (o *Orchestrator) captureName(ctx context.Context, req *TurnRequest, turnLog logger.Logger) *TurnResult {
	name := cleanName(req.Question)
	if name != "" {
		if err := o.states.SaveName(ctx, req.SessionID, name); err != nil {
			turnLog.WithError(err).Warn("name save failed", nil)
		}
	}
	_ = o.states.Clear(ctx, req.SessionID)

	if name == "" {
		return &TurnResult{Intent: IntentGreeting, Answer: "¡Hola! ¿En qué puedo ayudarte?"}
	}
	return &TurnResult{
		Intent: IntentGreeting,
		Answer: fmt.Sprintf("¡Mucho gusto, %s! ¿En qué puedo ayudarte?", name),
	}
}

// ==========================
// Helpers
// ==========================

func chainToTurn(chain *models.ChainResult) *TurnResult {
	return &TurnResult{
		Intent:   TurnIntent(chain.Intent),
		Answer:   chain.FinalAnswer,
		Metadata: chain.Metadata,
	}
}

func findTool(tools []models.ToolSpec, name string) (models.ToolSpec, error) {
	for _, t := range tools {
		if strings.EqualFold(t.ToolName, name) {
			return t, nil
		}
	}
	return models.ToolSpec{}, fmt.Errorf("tool %q not declared in context", name)
}

func plainSummary(result *models.QueryResult) string {
	switch {
	case result.Failed():
		return "Lo siento, no pude completar tu consulta en este momento. Por favor intenta de nuevo más tarde."
	case result.Empty():
		return "No se encontraron registros para tu consulta."
	default:
		return fmt.Sprintf("Tu consulta devolvió %d registros.", len(result.Rows))
	}
}

func isGreeting(question string) bool {
	q := strings.ToLower(strings.TrimSpace(question))
	for _, kw := range greetingKeywords {
		if strings.HasPrefix(q, kw) {
			return true
		}
	}
	return false
}

func cleanName(raw string) string {
	name := strings.TrimSpace(raw)
	name = strings.TrimSuffix(name, ".")
	for _, prefix := range []string{"me llamo ", "mi nombre es ", "soy ", "my name is ", "i am "} {
		if strings.HasPrefix(strings.ToLower(name), prefix) {
			name = strings.TrimSpace(name[len(prefix):])
			break
		}
	}
	if len(name) > 60 {
		return ""
	}
	return name
}
