// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_completed_total",
			Help: "Total number of conversation turns by final intent",
		},
		[]string{"intent"},
	)

	TurnsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_failed_total",
			Help: "Total number of turns ended by an error code",
		},
		[]string{"error_code"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "chat_turn_duration_seconds",
			Help: "Duration of turn processing in seconds",
		},
		[]string{"intent"},
	)

	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_llm_calls_total",
			Help: "Total number of GenAI API calls by operation and status",
		},
		[]string{"operation", "status"},
	)

	ClarificationRounds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_clarification_rounds_total",
			Help: "Total number of clarification questions asked per tool",
		},
		[]string{"tool"},
	)

	ToolExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_tool_executions_total",
			Help: "Total number of stored procedure executions by tool and status",
		},
		[]string{"tool", "status"},
	)
)
