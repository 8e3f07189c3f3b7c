// internal/status/status.go
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"signup-orchestrator/internal/common/config"
	"signup-orchestrator/internal/common/logger"
)

// Workflow steps as they appear in persisted snapshots.
const (
	StepInitializing  = "initializing"
	StepValidating    = "validating"
	StepEligibility   = "eligibility"
	StepUserCreation  = "user_creation"
	StepInsurancePlan = "insurance_plan"
	StepCompleted     = "completed"
	StepError         = "error"
)

// ErrNotFound is returned when no snapshot exists for a tracking id.
var ErrNotFound = errors.New("status snapshot not found")

// Snapshot is the full status document for one workflow run. Each write
// replaces the previous snapshot; readers always see the latest state only.
type Snapshot struct {
	StatusTrackingID string `json:"statusTrackingId"`
	CurrentStep      string `json:"currentStep"`
	Progress         int    `json:"progress"`
	Message          string `json:"message"`
	Timestamp        int64  `json:"timestamp"`
	Completed        bool   `json:"completed"`
	Error            bool   `json:"error"`

	// Extra holds step-specific fields (debug, finalData, errorDetails).
	// It is flattened into the top level of the JSON document.
	Extra map[string]interface{} `json:"-"`
}

// New builds a snapshot for the given step. Completed and Error are derived
// from the step name so callers cannot produce an inconsistent document.
func New(trackingID, step string, progress int, message string, extra map[string]interface{}) *Snapshot {
	return &Snapshot{
		StatusTrackingID: trackingID,
		CurrentStep:      step,
		Progress:         progress,
		Message:          message,
		Timestamp:        time.Now().UnixMilli(),
		Completed:        step == StepCompleted || step == StepError,
		Error:            step == StepError,
		Extra:            extra,
	}
}

// Key returns the storage key for a tracking id, shared by all backends.
func Key(trackingID string) string {
	return fmt.Sprintf("status/%s.json", trackingID)
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	doc := map[string]interface{}{
		"statusTrackingId": s.StatusTrackingID,
		"currentStep":      s.CurrentStep,
		"progress":         s.Progress,
		"message":          s.Message,
		"timestamp":        s.Timestamp,
		"completed":        s.Completed,
		"error":            s.Error,
	}
	for k, v := range s.Extra {
		if _, reserved := doc[k]; !reserved {
			doc[k] = v
		}
	}
	return json.Marshal(doc)
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	type alias Snapshot
	var core alias
	if err := json.Unmarshal(data, &core); err != nil {
		return err
	}
	*s = Snapshot(core)

	for _, k := range []string{"statusTrackingId", "currentStep", "progress", "message", "timestamp", "completed", "error"} {
		delete(doc, k)
	}
	if len(doc) > 0 {
		s.Extra = doc
	}
	return nil
}

// Store persists status snapshots keyed by tracking id. Writes replace any
// existing snapshot for the same id.
type Store interface {
	Put(ctx context.Context, snapshot *Snapshot) error
	Get(ctx context.Context, trackingID string) (*Snapshot, error)
	Close() error
}

// NewStore builds the configured backend.
func NewStore(ctx context.Context, cfg config.StatusStoreConfig, log logger.Logger) (Store, error) {
	switch cfg.Backend {
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	case "redis":
		return NewRedisStore(cfg.Redis)
	case "postgres":
		return NewPostgresStore(cfg.Postgres)
	case "memory":
		log.Warn("Using in-memory status store; snapshots will not survive restarts", nil)
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown status store backend %q", cfg.Backend)
	}
}
