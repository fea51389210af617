package models

// ExtractionResult is the output of one LLM extraction call, filtered to the
// requested parameter names. Its values are still untrusted and must pass
// through the parameter pipeline before they reach a query.
type ExtractionResult struct {
	Parameters map[string]interface{} `json:"parameters"`
}

// PipelineOutcome is the result of one parameter-pipeline pass. When Missing
// is non-empty, ReadyParameters still carries every resolved/transformed
// value so it can be persisted for the next turn.
type PipelineOutcome struct {
	ReadyParameters map[string]interface{} `json:"readyParameters"`
	Missing         []ParamSpec            `json:"missing,omitempty"`
}

// Complete reports whether every required parameter is ready.
func (o *PipelineOutcome) Complete() bool {
	return len(o.Missing) == 0
}

// QueryResult carries structured rows from a stored procedure call, or an
// explicit error marker. It never contains query text.
type QueryResult struct {
	Rows  []map[string]interface{} `json:"rows"`
	Error string                   `json:"error,omitempty"`
}

// Failed reports whether the execution ended in a database error.
func (r *QueryResult) Failed() bool {
	return r.Error != ""
}

// Empty reports whether the procedure returned no rows.
func (r *QueryResult) Empty() bool {
	return len(r.Rows) == 0
}

// ChainIntent is the final disposition of one turn of the database chain.
type ChainIntent string

const (
	IntentClarificationRequired ChainIntent = "CLARIFICATION_REQUIRED"
	IntentToolExecuted          ChainIntent = "TOOL_EXECUTED"
	IntentToolFailed            ChainIntent = "TOOL_FAILED"
)

// ChainMetadata accompanies a ChainResult with machine-readable turn details.
type ChainMetadata struct {
	ToolName          string                 `json:"toolName,omitempty"`
	PartialParameters map[string]interface{} `json:"partialParameters,omitempty"`
	ParametersUsed    map[string]interface{} `json:"parametersUsed,omitempty"`
}

// ChainResult is the caller-facing contract of the database query chain.
type ChainResult struct {
	Intent      ChainIntent   `json:"intent"`
	FinalAnswer string        `json:"finalAnswer"`
	Metadata    ChainMetadata `json:"metadata"`
}
