package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AnonymizeRequestSchema validates the POST /anonymize body. The text is
// carried under "data"; "text" is accepted as a legacy alias.
var AnonymizeRequestSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"data": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		},
		"text": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		},
	},
	"oneOf": []interface{}{
		map[string]interface{}{"required": []interface{}{"data"}},
		map[string]interface{}{"required": []interface{}{"text"}},
	},
	"additionalProperties": false,
}

// VisitHistoryResponseSchema validates the envelope of the Simplex
// patient-visit-history response before any record is handed to extraction.
// Record fields themselves stay open: the record is an opaque document and
// only the allow-listed text fields are touched downstream.
var VisitHistoryResponseSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"status":  map[string]interface{}{"type": "boolean"},
		"message": map[string]interface{}{"type": "string"},
		"data": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
			},
		},
	},
	"required": []interface{}{"status", "message"},
}

// Validate checks a decoded JSON document against a schema map and returns
// field-level errors.
func Validate(document interface{}, schema map[string]interface{}) (*ValidationResult, error) {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	if result.Valid() {
		return &ValidationResult{Valid: true}, nil
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
		})
	}

	return &ValidationResult{Valid: false, Errors: errs}, nil
}

// FirstError renders the first validation failure for error details.
func (r *ValidationResult) FirstError() string {
	if r.Valid || len(r.Errors) == 0 {
		return ""
	}
	return fmt.Sprintf("%s: %s", r.Errors[0].Field, r.Errors[0].Message)
}
