// internal/services/usercreation/client.go
package usercreation

import (
	"context"
	"fmt"
	"time"

	"signup-orchestrator/internal/common/config"
	"signup-orchestrator/internal/common/errors"
	commonhttp "signup-orchestrator/internal/common/http"
	"signup-orchestrator/internal/common/logger"
)

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

// Create provisions the user accounts (store account plus CRM contact) for
// the cleaned signup payload. Any failure is critical: without a user there
// is nothing for later steps to attach to.
func (c *Client) Create(ctx context.Context, payload interface{}) (map[string]interface{}, error) {
	res := c.http.PostJSON(ctx, c.url, payload, c.timeout)

	if res.Success && res.Data != nil {
		return res.Data, nil
	}

	c.logger.Error("User creation failed", map[string]interface{}{
		"success":   res.Success,
		"status":    res.Status,
		"error":     res.Err,
		"isTimeout": res.IsTimeout,
		"data":      res.Data,
	})

	return nil, errors.NewCriticalServiceError(
		fmt.Sprintf("User account creation failed - %s", res.ErrorMessage()),
		"user_creation",
	)
}

// HubspotContactID extracts the CRM contact id from a creation result.
// Returns "" when the service did not report one.
func HubspotContactID(result map[string]interface{}) string {
	if result == nil {
		return ""
	}
	if id, ok := result["hubspotContactId"].(string); ok {
		return id
	}
	return ""
}
