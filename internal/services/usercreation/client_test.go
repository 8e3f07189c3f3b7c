package usercreation

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

// ==========================
// User Creation Tests
// ==========================

func TestCreate_Success(t *testing.T) {
	client := createTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":          true,
			"hubspotContactId": "hs-42",
			"shopifyCustomerId": "shop-7",
		})
	})

	result, err := client.Create(context.Background(), map[string]interface{}{
		"customerEmail": "jane@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "hs-42", HubspotContactID(result))
	assert.Equal(t, "shop-7", result["shopifyCustomerId"])
}

func TestCreate_FailureIsCritical(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantMessage string
	}{
		{
			name: "server error with message",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]interface{}{"error": "shopify account exists"})
			},
			wantMessage: "shopify account exists",
		},
		{
			name: "bad gateway without body detail",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				json.NewEncoder(w).Encode(map[string]interface{}{})
			},
			wantMessage: "HTTP 502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := createTestClient(t, tt.handler)

			_, err := client.Create(context.Background(), map[string]interface{}{})
			require.Error(t, err)

			assert.True(t, errors.IsCritical(err))
			assert.Contains(t, err.Error(), "User account creation failed")
			assert.Contains(t, err.Error(), tt.wantMessage)
		})
	}
}

func TestHubspotContactID_MissingOrWrongType(t *testing.T) {
	assert.Equal(t, "", HubspotContactID(nil))
	assert.Equal(t, "", HubspotContactID(map[string]interface{}{}))
	assert.Equal(t, "", HubspotContactID(map[string]interface{}{"hubspotContactId": 42}))
}
