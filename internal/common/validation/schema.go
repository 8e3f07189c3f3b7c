package validation

import (
	"github.com/xeipuuv/gojsonschema"
)

// signupSchema is deliberately lenient: the workflow prefers degraded-but-valid
// input over strict rejection, so only customerEmail is enforced. Everything
// else is coerced to safe defaults downstream.
const signupSchema = `{
	"type": "object",
	"required": ["customerEmail"],
	"properties": {
		"customerEmail":     {"type": "string", "minLength": 1},
		"firstName":         {"type": ["string", "null"]},
		"lastName":          {"type": ["string", "null"]},
		"phoneNumber":       {"type": ["string", "null"]},
		"state":             {"type": ["string", "null"]},
		"insurance":         {"type": ["string", "null"]},
		"insuranceMemberId": {"type": ["string", "null"]},
		"groupNumber":       {"type": ["string", "null"]},
		"dateOfBirth":       {"type": ["string", "null"]},
		"consent":           {"type": ["boolean", "null"]},
		"testMode":          {"type": ["boolean", "null"]},
		"mainReasons":       {"type": ["array", "null"]},
		"medicalConditions": {"type": ["array", "null"]},
		"statusTrackingId":  {"type": ["string", "null"]}
	},
	"additionalProperties": true
}`

var signupSchemaLoader = gojsonschema.NewStringLoader(signupSchema)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// GetErrorMessages flattens errors for logging.
func (r *ValidationResult) GetErrorMessages() []string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Field+": "+e.Message)
	}
	return msgs
}

// MissingFields returns the required fields that were absent or empty.
func (r *ValidationResult) MissingFields() []string {
	fields := []string{}
	for _, e := range r.Errors {
		if e.Field == "customerEmail" || e.Field == "(root)" {
			fields = append(fields, "customerEmail")
		}
	}
	return dedupe(fields)
}

// ValidateSignup validates a raw signup payload against the signup schema.
func ValidateSignup(input map[string]interface{}) *ValidationResult {
	doc := gojsonschema.NewGoLoader(input)

	result, err := gojsonschema.Validate(signupSchemaLoader, doc)
	if err != nil {
		return &ValidationResult{
			Valid:  false,
			Errors: []ValidationError{{Field: "(root)", Message: err.Error()}},
		}
	}

	if result.Valid() {
		return &ValidationResult{Valid: true}
	}

	out := &ValidationResult{Valid: false}
	for _, resErr := range result.Errors() {
		field := resErr.Field()
		if details, ok := resErr.Details()["property"].(string); ok && field == "(root)" {
			field = details
		}
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Message: resErr.Description(),
		})
	}
	return out
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
