// internal/chat/transform/transform.go
package transform

import (
	"regexp"
	"strings"

	"chatbot-backend/internal/models"
)

var firstNumberPattern = regexp.MustCompile(`\d+`)

// Apply runs the declared transformation list, in order, over a value.
// Transformations act on strings only; any other type passes through
// untouched. Every transformation is idempotent, so re-running the list over
// an already-transformed stored value is a no-op.
func Apply(value interface{}, transformations []models.Transformation) interface{} {
	str, ok := value.(string)
	if !ok {
		return value
	}

	for _, t := range transformations {
		switch t {
		case models.TransformRemoveDashes:
			str = strings.ReplaceAll(str, "-", "")
		case models.TransformToUpperCase:
			str = strings.ToUpper(str)
		case models.TransformToLowerCase:
			str = strings.ToLower(str)
		case models.TransformTrim:
			str = strings.TrimSpace(str)
		case models.TransformExtractFirstNumber:
			if m := firstNumberPattern.FindString(str); m != "" {
				str = m
			}
		}
	}

	return str
}
