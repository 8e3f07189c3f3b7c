package eligibility

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signup-orchestrator/internal/common/config"
	"signup-orchestrator/internal/common/errors"
	"signup-orchestrator/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.ServiceEndpoint{URL: srv.URL, Timeout: 2000}, logger.NewTestLogger(t))
}

func createTestRequest() *Request {
	return &Request{
		CustomerEmail:     "jane@example.com",
		FirstName:         "Jane",
		LastName:          "Doe",
		Insurance:         "Humana",
		InsuranceMemberID: "H12345678",
		GroupNumber:       "G-100",
		DateOfBirth:       "1975-05-05",
	}
}

// ==========================
// Trading Partner Tests
// ==========================

func TestResolveTradingPartner(t *testing.T) {
	tests := []struct {
		name      string
		insurance string
		want      string
	}{
		{"humana lowercase", "humana", "61101"},
		{"humana with plan suffix", "Humana Gold Plus", "61101"},
		{"humana padded", "  HUMANA  ", "61101"},
		{"unknown insurer falls back", "Acme Health", DefaultTradingPartnerID},
		{"empty insurer falls back", "", DefaultTradingPartnerID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveTradingPartner(tt.insurance))
		})
	}
}

// ==========================
// Eligibility Check Tests
// ==========================

func TestCheck_Success(t *testing.T) {
	var received map[string]interface{}

	client := createTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"eligibilityData": map[string]interface{}{
				"isEligible":        true,
				"eligibilityStatus": "ELIGIBLE",
			},
		})
	})

	result, err := client.Check(context.Background(), createTestRequest())
	require.NoError(t, err)

	assert.False(t, result.Degraded)
	assert.Equal(t, true, result.Document["success"])
	assert.Contains(t, result.Document, "eligibilityData")

	// The trading partner id is resolved from the insurer name before the call.
	assert.Equal(t, "61101", received["tradingPartnerServiceId"])
}

func TestCheck_Upstream500IsCritical(t *testing.T) {
	client := createTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": "missing API key"})
	})

	_, err := client.Check(context.Background(), createTestRequest())
	require.Error(t, err)

	assert.True(t, errors.IsCritical(err))
	assert.Contains(t, err.Error(), "Critical failure: API configuration error")
}

func TestCheck_NonCriticalFailureDegrades(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "service reports success false",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": "payer unreachable"})
			},
		},
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]interface{}{"error": "invalid member id"})
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := createTestClient(t, tt.handler)

			result, err := client.Check(context.Background(), createTestRequest())
			require.NoError(t, err)

			assert.True(t, result.Degraded)

			eligibilityData := result.Document["eligibilityData"].(map[string]interface{})
			assert.Equal(t, "ERROR", eligibilityData["eligibilityStatus"])
			assert.Equal(t, false, eligibilityData["isEligible"])
			assert.Equal(t, false, eligibilityData["isProcessing"])
			assert.Contains(t, eligibilityData["userMessage"], "You may proceed with account creation")

			debug := result.Document["debug"].(map[string]interface{})
			assert.Equal(t, true, debug["eligibilityCheckFailed"])
			assert.Contains(t, debug, "error")
		})
	}
}

func TestCheck_PresetTradingPartnerIsKept(t *testing.T) {
	var received map[string]interface{}

	client := createTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	})

	req := createTestRequest()
	req.TradingPartnerServiceID = "99999"

	_, err := client.Check(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "99999", received["tradingPartnerServiceId"])
}
