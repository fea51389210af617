package models

// StateName identifies the conversation state machine position for a session.
type StateName string

const (
	StateNone               StateName = "NONE"
	StateAwaitingName       StateName = "AWAITING_NAME"
	StateAwaitingToolParams StateName = "AWAITING_TOOL_PARAMS"
)

// ConversationState is the cross-turn memory of one session. It lives in the
// external cache under a sliding TTL; an expired or missing entry reads back
// as the zero state.
type ConversationState struct {
	SessionID         string                 `json:"sessionId"`
	StateName         StateName              `json:"stateName"`
	PartialParameters map[string]interface{} `json:"partialParameters"`
}

// NewConversationState returns the default state for a session.
func NewConversationState(sessionID string) *ConversationState {
	return &ConversationState{
		SessionID:         sessionID,
		StateName:         StateNone,
		PartialParameters: map[string]interface{}{},
	}
}

// InClarification reports whether the session is mid tool-parameter fill.
func (s *ConversationState) InClarification() bool {
	return s.StateName == StateAwaitingToolParams
}

// SelectedTool returns the tool carried across clarification turns, if any.
// The tool name travels inside the parameter map under a reserved key so the
// state write stays a single pair of cache entries.
func (s *ConversationState) SelectedTool() string {
	if v, ok := s.PartialParameters[ReservedToolKey].(string); ok {
		return v
	}
	return ""
}

// ReservedToolKey carries the selected tool name inside partial parameters.
// Keys with the reserved prefix are never matched against ParamSpec names.
const (
	ReservedPrefix  = "_"
	ReservedToolKey = "_tool"
)
