// internal/orchestrator/handler.go
package orchestrator

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"signup-orchestrator/internal/common/logger"
	"signup-orchestrator/internal/status"
)

// corsHeaders are sent on every workflow and status response. The storefront
// calls these endpoints cross-origin from the browser.
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":      "*",
	"Access-Control-Allow-Methods":     "POST, GET, OPTIONS",
	"Access-Control-Allow-Headers":     "Content-Type, Authorization, X-Requested-With",
	"Access-Control-Allow-Credentials": "true",
	"Access-Control-Max-Age":           "3600",
	"Content-Type":                     "application/json",
}

// Handler exposes the workflow over HTTP.
type Handler struct {
	orch   *Orchestrator
	store  status.Store
	logger logger.Logger
}

func NewHandler(orch *Orchestrator, store status.Store, log logger.Logger) *Handler {
	return &Handler{
		orch:   orch,
		store:  store,
		logger: log,
	}
}

// Routes registers the workflow endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/workflow", h.ServeWorkflow)
	mux.HandleFunc("/workflow/status", h.ServeStatus)
	mux.HandleFunc("/healthz", h.ServeHealth)
}

// ServeWorkflow runs the signup workflow for a POSTed signup document.
func (h *Handler) ServeWorkflow(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
			"success": false,
			"error":   "Only POST and OPTIONS methods are allowed",
		})
		return
	}

	requestID := uuid.NewString()
	log := h.logger.WithFields(map[string]interface{}{"requestId": requestID})

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Orchestrator panicked", map[string]interface{}{"panic": rec})
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"success": false,
				"error":   "Internal server error",
			})
		}
	}()

	var raw map[string]interface{}
	if r.Body != nil {
		// A missing or malformed body behaves like an empty document and
		// fails validation, not decoding.
		_ = json.NewDecoder(r.Body).Decode(&raw)
	}

	resp := h.orch.Run(r.Context(), raw)

	log.Info("Workflow request finished", map[string]interface{}{
		"statusTrackingId": resp.Body.StatusTrackingID,
		"statusCode":       resp.StatusCode,
		"success":          resp.Body.Success,
	})

	writeJSON(w, resp.StatusCode, resp.Body)
}

// ServeStatus returns the latest snapshot for a tracking id, for the
// storefront's progress polling. Accepts GET with a query parameter or POST
// with a JSON body.
func (h *Handler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var trackingID string
	switch r.Method {
	case http.MethodGet:
		trackingID = r.URL.Query().Get("statusTrackingId")
	case http.MethodPost:
		var body map[string]interface{}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		if id, ok := body["statusTrackingId"].(string); ok {
			trackingID = id
		}
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
			"success": false,
			"error":   "Only POST and GET methods are allowed",
		})
		return
	}

	if trackingID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "statusTrackingId is required",
		})
		return
	}

	snapshot, err := h.store.Get(r.Context(), trackingID)
	if err != nil {
		if err == status.ErrNotFound {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"success":          false,
				"statusTrackingId": trackingID,
				"error":            "No status found for statusTrackingId",
			})
			return
		}
		h.logger.WithError(err).Error("Status lookup failed", map[string]interface{}{
			"statusTrackingId": trackingID,
		})
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "Failed to read workflow status",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"statusTrackingId": trackingID,
		"statusData":       snapshot,
	})
}

// ServeHealth is the liveness endpoint.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func setCORS(w http.ResponseWriter) {
	for k, v := range corsHeaders {
		w.Header().Set(k, v)
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
