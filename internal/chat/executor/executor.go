// internal/chat/executor/executor.go
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	stderrors "chatbot-backend/internal/common/errors"
	"chatbot-backend/internal/common/logger"
	"chatbot-backend/internal/common/metrics"
	"chatbot-backend/internal/models"
)

// Executor runs a tool's stored procedure with bound arguments. The procedure
// name and parameter order come exclusively from trusted configuration; only
// parameter values are user-influenced and those are always bound, never
// interpolated into the query text.
type Executor struct {
	db     *sql.DB
	logger logger.Logger
}

func New(db *sql.DB, log logger.Logger) *Executor {
	return &Executor{
		db:     db,
		logger: log.With(map[string]interface{}{"component": "query-executor"}),
	}
}

// Execute calls the tool's procedure with the ready parameters bound in
// declaration order. Database errors are converted into a structured error
// result instead of propagating, so the answer synthesizer can still produce
// a user-facing message.
func (e *Executor) Execute(ctx context.Context, tool models.ToolSpec, ready map[string]interface{}) *models.QueryResult {
	query, args := buildCall(tool, ready)

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		e.logger.WithError(stderrors.NewToolExecutionFailedError(tool.ProcedureName, err)).Error(
			"procedure execution failed", map[string]interface{}{
				"procedure": tool.ProcedureName,
			})
		metrics.ToolExecutions.WithLabelValues(tool.ToolName, "error").Inc()
		return &models.QueryResult{Error: fmt.Sprintf("procedure %s failed: %v", tool.ProcedureName, err)}
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		e.logger.WithError(stderrors.NewToolExecutionFailedError(tool.ProcedureName, err)).Error(
			"result scan failed", map[string]interface{}{
				"procedure": tool.ProcedureName,
			})
		metrics.ToolExecutions.WithLabelValues(tool.ToolName, "error").Inc()
		return &models.QueryResult{Error: fmt.Sprintf("procedure %s result unreadable: %v", tool.ProcedureName, err)}
	}

	metrics.ToolExecutions.WithLabelValues(tool.ToolName, "ok").Inc()
	e.logger.Info("procedure executed", map[string]interface{}{
		"procedure": tool.ProcedureName,
		"rowCount":  len(result),
	})

	return &models.QueryResult{Rows: result}
}

// buildCall assembles `CALL <procedure>($1,…)` from the ToolSpec alone.
func buildCall(tool models.ToolSpec, ready map[string]interface{}) (string, []interface{}) {
	placeholders := make([]string, len(tool.Parameters))
	args := make([]interface{}, len(tool.Parameters))
	for i, spec := range tool.Parameters {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = ready[spec.Name] // optional parameters without a value bind as NULL
	}
	query := fmt.Sprintf("CALL %s(%s)", tool.ProcedureName, strings.Join(placeholders, ", "))
	return query, args
}

// scanRows reads a generic result set into key/value records.
func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		record := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			val := values[i]
			if b, ok := val.([]byte); ok {
				val = string(b)
			}
			record[col] = val
		}
		out = append(out, record)
	}

	return out, rows.Err()
}
