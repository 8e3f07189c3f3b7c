// internal/orchestrator/models.go
package orchestrator

import (
	"fmt"
	"strconv"
)

// Workflow path names, surfaced in status snapshots and metrics.
const (
	PathFullWorkflow   = "full_workflow_with_insurance"
	PathSimpleWorkflow = "simple_workflow_no_insurance"
)

// CleanPayload is the coerced signup payload the workflow operates on.
// Every field except CustomerEmail may be empty; coercion never fails.
type CleanPayload struct {
	CustomerEmail     string   `json:"customerEmail"`
	FirstName         string   `json:"firstName"`
	LastName          string   `json:"lastName"`
	PhoneNumber       string   `json:"phoneNumber"`
	State             string   `json:"state"`
	Insurance         string   `json:"insurance"`
	InsuranceMemberID string   `json:"insuranceMemberId"`
	GroupNumber       string   `json:"groupNumber"`
	DateOfBirth       string   `json:"dateOfBirth"`
	Consent           bool     `json:"consent"`
	TestMode          bool     `json:"testMode"`
	MainReasons       []string `json:"mainReasons"`
	MedicalConditions []string `json:"medicalConditions"`
}

// CleanRequest coerces a raw signup document into a CleanPayload. Absent,
// null, false and zero values all collapse to the field's empty value, the
// same way the storefront treats them.
func CleanRequest(raw map[string]interface{}) *CleanPayload {
	return &CleanPayload{
		CustomerEmail:     stringField(raw, "customerEmail"),
		FirstName:         stringField(raw, "firstName"),
		LastName:          stringField(raw, "lastName"),
		PhoneNumber:       stringField(raw, "phoneNumber"),
		State:             stringField(raw, "state"),
		Insurance:         stringField(raw, "insurance"),
		InsuranceMemberID: stringField(raw, "insuranceMemberId"),
		GroupNumber:       stringField(raw, "groupNumber"),
		DateOfBirth:       stringField(raw, "dateOfBirth"),
		Consent:           boolField(raw, "consent"),
		TestMode:          boolField(raw, "testMode"),
		MainReasons:       stringSliceField(raw, "mainReasons"),
		MedicalConditions: stringSliceField(raw, "medicalConditions"),
	}
}

// DeterminePath selects the workflow path. The full path needs every field
// required to run an eligibility check; anything less skips straight to
// account creation.
func (p *CleanPayload) DeterminePath() string {
	if p.Insurance != "" && p.InsuranceMemberID != "" && p.FirstName != "" && p.LastName != "" {
		return PathFullWorkflow
	}
	return PathSimpleWorkflow
}

// Response is the HTTP outcome of a workflow run.
type Response struct {
	StatusCode int
	Body       ResponseBody
}

type ResponseBody struct {
	Success          bool                   `json:"success"`
	StatusTrackingID string                 `json:"statusTrackingId"`
	Message          string                 `json:"message,omitempty"`
	Data             map[string]interface{} `json:"data,omitempty"`
	Error            string                 `json:"error,omitempty"`
}

func stringField(raw map[string]interface{}, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if !val {
			return ""
		}
		return "true"
	case float64:
		if val == 0 {
			return ""
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func boolField(raw map[string]interface{}, key string) bool {
	v, ok := raw[key].(bool)
	return ok && v
}

func stringSliceField(raw map[string]interface{}, key string) []string {
	out := []string{}
	items, ok := raw[key].([]interface{})
	if !ok {
		return out
	}
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, fmt.Sprintf("%v", item))
	}
	return out
}
