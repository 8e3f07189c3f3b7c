// internal/services/eligibility/client.go
package eligibility

import (
	"context"
	"net/http"
	"time"

	"signup-orchestrator/internal/common/config"
	"signup-orchestrator/internal/common/errors"
	commonhttp "signup-orchestrator/internal/common/http"
	"signup-orchestrator/internal/common/logger"
)

// Request is the payload sent to the eligibility checker service.
type Request struct {
	CustomerEmail           string `json:"customerEmail"`
	FirstName               string `json:"firstName"`
	LastName                string `json:"lastName"`
	Insurance               string `json:"insurance"`
	InsuranceMemberID       string `json:"insuranceMemberId"`
	GroupNumber             string `json:"groupNumber"`
	DateOfBirth             string `json:"dateOfBirth"`
	TestMode                bool   `json:"testMode"`
	TradingPartnerServiceID string `json:"tradingPartnerServiceId"`
}

// Result is the outcome of an eligibility check. Document always holds a
// usable eligibility payload: the service's own response when the check
// succeeded, or a synthetic ERROR document when the check failed but the
// workflow may continue. Degraded marks the synthetic case.
type Result struct {
	Document map[string]interface{}
	Degraded bool
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

// Check verifies insurance eligibility. An upstream HTTP 500 means the
// checker itself is broken (bad API key, bad deploy) and aborts the run;
// every other failure degrades to a synthetic not-eligible document so
// account creation can proceed.
func (c *Client) Check(ctx context.Context, req *Request) (*Result, error) {
	if req.TradingPartnerServiceID == "" {
		req.TradingPartnerServiceID = ResolveTradingPartner(req.Insurance)
	}

	res := c.http.PostJSON(ctx, c.url, req, c.timeout)

	if res.Success && res.Data != nil && res.Data["success"] == true {
		return &Result{Document: res.Data}, nil
	}

	if res.Status == http.StatusInternalServerError {
		c.logger.Error("Eligibility checker returned 500, aborting run", map[string]interface{}{
			"error": res.ErrorMessage(),
		})
		return nil, errors.NewCriticalServiceError("API configuration error", res.ErrorMessage())
	}

	c.logger.Warn("Eligibility check failed, continuing without eligibility", map[string]interface{}{
		"status":    res.Status,
		"error":     res.ErrorMessage(),
		"isTimeout": res.IsTimeout,
	})

	return &Result{
		Document: map[string]interface{}{
			"eligibilityData": map[string]interface{}{
				"eligibilityStatus": "ERROR",
				"isEligible":        false,
				"userMessage":       "Unable to verify insurance eligibility at this time. You may proceed with account creation.",
				"isProcessing":      false,
			},
			"debug": map[string]interface{}{
				"eligibilityCheckFailed": true,
				"error":                  callDebug(res),
			},
		},
		Degraded: true,
	}, nil
}

// callDebug preserves the raw call outcome inside the degraded document.
func callDebug(res commonhttp.ServiceResult) map[string]interface{} {
	debug := map[string]interface{}{
		"success": res.Success,
	}
	if res.Status != 0 {
		debug["status"] = res.Status
	}
	if res.Err != "" {
		debug["error"] = res.Err
	}
	if res.IsTimeout {
		debug["isTimeout"] = true
	}
	if res.Data != nil {
		debug["data"] = res.Data
	}
	return debug
}
