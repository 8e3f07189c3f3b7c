// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.httpClient.Do(req)
}

// ServiceResult is the uniform outcome of a downstream workflow service call.
// Status is only populated when an HTTP response with a decodable JSON body
// was received; transport errors, timeouts and malformed bodies leave it zero.
type ServiceResult struct {
	Success   bool
	Status    int
	Data      map[string]interface{}
	Err       string
	IsTimeout bool
}

// PostJSON posts a JSON payload to url and decodes the JSON response, bounded
// by the given timeout. It never returns an error: every failure mode is
// folded into the ServiceResult so callers can apply workflow failure rules.
func (c *Client) PostJSON(ctx context.Context, url string, payload interface{}, timeout time.Duration) ServiceResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return ServiceResult{Success: false, Err: "failed to marshal request payload: " + err.Error()}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ServiceResult{Success: false, Err: "failed to create request: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		isTimeout := errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded
		return ServiceResult{Success: false, Err: err.Error(), IsTimeout: isTimeout}
	}
	defer resp.Body.Close()

	var data map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return ServiceResult{Success: false, Err: "failed to decode response body: " + err.Error()}
	}

	return ServiceResult{
		Success: resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status:  resp.StatusCode,
		Data:    data,
	}
}

// ErrorMessage extracts the most useful error description from a failed call,
// preferring the transport error, then a service-provided "error" field, then
// the bare HTTP status.
func (r ServiceResult) ErrorMessage() string {
	if r.Err != "" {
		return r.Err
	}
	if r.Data != nil {
		if msg, ok := r.Data["error"].(string); ok && msg != "" {
			return msg
		}
	}
	if r.Status != 0 {
		return fmt.Sprintf("HTTP %d", r.Status)
	}
	return "unknown error"
}
