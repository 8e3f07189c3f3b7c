// internal/services/insuranceplan/client.go
package insuranceplan

import (
	"context"
	"fmt"
	"time"

	"signup-orchestrator/internal/common/config"
	"signup-orchestrator/internal/common/errors"
	commonhttp "signup-orchestrator/internal/common/http"
	"signup-orchestrator/internal/common/logger"
)

// Request is the assembled payload for the insurance plan service. It joins
// the cleaned signup data with the results of the earlier steps.
type Request struct {
	CustomerEmail     string      `json:"customerEmail"`
	FirstName         string      `json:"firstName"`
	LastName          string      `json:"lastName"`
	PhoneNumber       string      `json:"phoneNumber"`
	State             string      `json:"state"`
	Insurance         string      `json:"insurance"`
	InsuranceMemberID string      `json:"insuranceMemberId"`
	GroupNumber       string      `json:"groupNumber"`
	DateOfBirth       interface{} `json:"dateOfBirth"` // epoch millis, or "" when unparseable
	HubspotContactID  string      `json:"hubspotContactId,omitempty"`
	EligibilityData   interface{} `json:"eligibilityData"`
	StediResponse     interface{} `json:"stediResponse"`
	MainReasons       []string    `json:"mainReasons"`
	MedicalConditions []string    `json:"medicalConditions"`
}

type Client struct {
	url     string
	timeout time.Duration
	http    *commonhttp.Client
	logger  logger.Logger
}

func NewClient(endpoint config.ServiceEndpoint, log logger.Logger) *Client {
	timeout := config.GetDuration(endpoint.Timeout)
	return &Client{
		url:     endpoint.URL,
		timeout: timeout,
		http:    commonhttp.NewClient(timeout),
		logger:  log,
	}
}

// CreatePlan records the insurance plan details against the created user.
// Runs after user creation only; any failure is critical.
func (c *Client) CreatePlan(ctx context.Context, req *Request) (map[string]interface{}, error) {
	res := c.http.PostJSON(ctx, c.url, req, c.timeout)

	if res.Success && res.Data != nil {
		return res.Data, nil
	}

	c.logger.Error("Insurance plan creation failed", map[string]interface{}{
		"success":   res.Success,
		"status":    res.Status,
		"error":     res.Err,
		"isTimeout": res.IsTimeout,
		"data":      res.Data,
	})

	return nil, errors.NewCriticalServiceError(
		fmt.Sprintf("Insurance plan creation failed - %s", res.ErrorMessage()),
		"insurance_plan",
	)
}
