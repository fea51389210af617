package models

import "strings"

// Transformation is a declarative post-processing step applied to extracted
// string values, in the order listed on the ParamSpec.
type Transformation string

const (
	TransformRemoveDashes       Transformation = "REMOVE_DASHES"
	TransformToUpperCase        Transformation = "TO_UPPER_CASE"
	TransformToLowerCase        Transformation = "TO_LOWER_CASE"
	TransformTrim               Transformation = "TRIM"
	TransformExtractFirstNumber Transformation = "EXTRACT_FIRST_NUMBER"
)

// EntityResolverSpec declares that a parameter value must be resolved against
// the entity catalog before use.
type EntityResolverSpec struct {
	EntityType string `json:"entityType"`
}

// ParamSpec declares one parameter of a tool. It drives both the extraction
// prompt and the deterministic post-processing.
type ParamSpec struct {
	Name                  string              `json:"name"`
	Type                  string              `json:"type"`
	IsRequired            bool                `json:"isRequired"`
	DescriptionForLLM     string              `json:"descriptionForLLM"`
	ClarificationQuestion string              `json:"clarificationQuestion,omitempty"`
	EntityResolver        *EntityResolverSpec `json:"entityResolver,omitempty"`
	Transformations       []Transformation    `json:"transformations,omitempty"`
}

// ToolSpec declares one structured-data operation backed by a stored
// procedure. Immutable once loaded from context configuration.
type ToolSpec struct {
	ToolName      string      `json:"toolName"`
	Description   string      `json:"description"`
	ProcedureName string      `json:"procedureName"`
	Parameters    []ParamSpec `json:"parameters"`
}

// RequiredParams returns the required ParamSpecs in declaration order.
func (t *ToolSpec) RequiredParams() []ParamSpec {
	out := make([]ParamSpec, 0, len(t.Parameters))
	for _, p := range t.Parameters {
		if p.IsRequired {
			out = append(out, p)
		}
	}
	return out
}

// FindParam returns the ParamSpec with the given name, case-insensitively.
func (t *ToolSpec) FindParam(name string) (ParamSpec, bool) {
	for _, p := range t.Parameters {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return ParamSpec{}, false
}
