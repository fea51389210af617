// internal/chat/registry/registry.go
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	stderrors "chatbot-backend/internal/common/errors"
	"chatbot-backend/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrToolConfigInvalid = errors.New("TOOL_CONFIG_INVALID")
	ErrToolNotFound      = errors.New("TOOL_NOT_FOUND")
)

// toolConfigSchema bounds what a per-context tool configuration document may
// declare. Procedure and parameter names are restricted to identifiers so
// nothing that reaches the query builder can carry SQL fragments.
const toolConfigSchema = `{
	"type": "object",
	"required": ["tools"],
	"properties": {
		"tools": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["toolName", "description", "procedureName", "parameters"],
				"properties": {
					"toolName": {"type": "string", "minLength": 1},
					"description": {"type": "string", "minLength": 1},
					"procedureName": {"type": "string", "pattern": "^[a-zA-Z_][a-zA-Z0-9_]*$"},
					"parameters": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["name", "type"],
							"properties": {
								"name": {"type": "string", "pattern": "^[a-zA-Z_][a-zA-Z0-9_]*$"},
								"type": {"type": "string", "enum": ["string", "number", "integer", "boolean"]},
								"isRequired": {"type": "boolean"},
								"descriptionForLLM": {"type": "string"},
								"clarificationQuestion": {"type": "string"},
								"entityResolver": {
									"type": "object",
									"required": ["entityType"],
									"properties": {
										"entityType": {"type": "string", "minLength": 1}
									}
								},
								"transformations": {
									"type": "array",
									"items": {
										"type": "string",
										"enum": ["REMOVE_DASHES", "TO_UPPER_CASE", "TO_LOWER_CASE", "TRIM", "EXTRACT_FIRST_NUMBER"]
									}
								}
							}
						}
					}
				}
			}
		}
	}
}`

// Registry holds the tools declared by one knowledge context.
type Registry struct {
	tools []models.ToolSpec
}

// Load parses and validates a per-context tool configuration document.
func Load(document []byte) (*Registry, error) {
	schemaLoader := gojsonschema.NewStringLoader(toolConfigSchema)
	documentLoader := gojsonschema.NewBytesLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, stderrors.NewToolConfigInvalidError(fmt.Errorf("%w: %v", ErrToolConfigInvalid, err))
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return nil, stderrors.NewToolConfigInvalidError(fmt.Errorf("%w: %s", ErrToolConfigInvalid, strings.Join(details, "; ")))
	}

	var doc struct {
		Tools []models.ToolSpec `json:"tools"`
	}
	if err := json.Unmarshal(document, &doc); err != nil {
		return nil, stderrors.NewToolConfigInvalidError(fmt.Errorf("%w: %v", ErrToolConfigInvalid, err))
	}

	seen := make(map[string]bool, len(doc.Tools))
	for _, t := range doc.Tools {
		key := strings.ToLower(t.ToolName)
		if seen[key] {
			return nil, stderrors.NewToolConfigInvalidError(fmt.Errorf("%w: duplicate tool %q", ErrToolConfigInvalid, t.ToolName))
		}
		seen[key] = true
	}

	return &Registry{tools: doc.Tools}, nil
}

// Tools returns the declared tools in declaration order.
func (r *Registry) Tools() []models.ToolSpec {
	return r.tools
}

// HasTools reports whether this context declares any structured-data tool.
func (r *Registry) HasTools() bool {
	return len(r.tools) > 0
}

// Find returns the tool with the given name, case-insensitively.
func (r *Registry) Find(name string) (models.ToolSpec, error) {
	for _, t := range r.tools {
		if strings.EqualFold(t.ToolName, name) {
			return t, nil
		}
	}
	return models.ToolSpec{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
}
