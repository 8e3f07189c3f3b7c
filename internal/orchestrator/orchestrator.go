// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"signup-orchestrator/internal/common/config"
	"signup-orchestrator/internal/common/errors"
	"signup-orchestrator/internal/common/logger"
	"signup-orchestrator/internal/common/metrics"
	"signup-orchestrator/internal/common/observability"
	"signup-orchestrator/internal/common/validation"
	"signup-orchestrator/internal/services/eligibility"
	"signup-orchestrator/internal/services/insuranceplan"
	"signup-orchestrator/internal/services/usercreation"
	"signup-orchestrator/internal/status"
)

// eligibilityChecker, userCreator and planCreator are the downstream calls
// the workflow makes, narrowed to what the orchestrator needs.
type eligibilityChecker interface {
	Check(ctx context.Context, req *eligibility.Request) (*eligibility.Result, error)
}

type userCreator interface {
	Create(ctx context.Context, payload interface{}) (map[string]interface{}, error)
}

type planCreator interface {
	CreatePlan(ctx context.Context, req *insuranceplan.Request) (map[string]interface{}, error)
}

// RunArchiver receives terminal snapshots for long-term search. Best-effort.
type RunArchiver interface {
	ArchiveRun(ctx context.Context, snapshot *status.Snapshot)
}

// Alerter is notified when a run ends in error. Best-effort.
type Alerter interface {
	AlertWorkflowError(ctx context.Context, trackingID, workflowPath, errorMessage string)
}

// Orchestrator drives the signup workflow: eligibility check, user creation,
// insurance plan creation, with a status snapshot written at every
// transition. Steps run strictly in sequence; later steps consume earlier
// results.
type Orchestrator struct {
	cfg         *config.Config
	logger      logger.Logger
	store       status.Store
	eligibility eligibilityChecker
	users       userCreator
	plans       planCreator
	archiver    RunArchiver
	alerter     Alerter
	obs         *observability.Observability
}

type Option func(*Orchestrator)

// WithArchiver attaches a terminal-snapshot archiver.
func WithArchiver(a RunArchiver) Option {
	return func(o *Orchestrator) { o.archiver = a }
}

// WithAlerter attaches an error alerter.
func WithAlerter(a Alerter) Option {
	return func(o *Orchestrator) { o.alerter = a }
}

// WithObservability attaches tracing and OTel metrics.
func WithObservability(obs *observability.Observability) Option {
	return func(o *Orchestrator) { o.obs = obs }
}

func New(cfg *config.Config, log logger.Logger, store status.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:         cfg,
		logger:      log,
		store:       store,
		eligibility: eligibility.NewClient(cfg.Services.Eligibility, log),
		users:       usercreation.NewClient(cfg.Services.UserCreation, log),
		plans:       insuranceplan.NewClient(cfg.Services.InsurancePlan, log),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// newWithClients wires explicit clients, used by tests.
func newWithClients(cfg *config.Config, log logger.Logger, store status.Store,
	ec eligibilityChecker, uc userCreator, pc planCreator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:         cfg,
		logger:      log,
		store:       store,
		eligibility: ec,
		users:       uc,
		plans:       pc,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run is the per-request workflow state.
type run struct {
	trackingID string
	startedAt  time.Time
	raw        map[string]interface{}
	clean      *CleanPayload
	path       string

	eligibilityDoc      map[string]interface{}
	eligibilityDegraded bool
	userData            map[string]interface{}
	planData            map[string]interface{}

	lastSnapshot *status.Snapshot
}

// Run executes the workflow for one raw signup document and returns the
// HTTP outcome. It never returns an error: failures become 4xx/5xx response
// bodies and error snapshots.
func (o *Orchestrator) Run(ctx context.Context, raw map[string]interface{}) *Response {
	if raw == nil {
		raw = map[string]interface{}{}
	}

	r := &run{
		trackingID: trackingIDFrom(raw),
		startedAt:  time.Now(),
		raw:        raw,
	}

	log := o.logger.WithFields(map[string]interface{}{"statusTrackingId": r.trackingID})
	ctx, endSpan := o.startSpan(ctx, "workflow.run")
	defer endSpan()

	metrics.WorkflowRunsActive.Inc()
	defer metrics.WorkflowRunsActive.Dec()

	o.updateStatus(ctx, r, status.StepInitializing, 0, "🚀 Starting user creation process...", map[string]interface{}{
		"debug": map[string]interface{}{
			"workflowStartTime": r.startedAt.UnixMilli(),
			"customerEmail":     stringOr(raw["customerEmail"], "unknown"),
			"hasInsurance":      truthy(raw["insurance"]),
			"hasMemberId":       truthy(raw["insuranceMemberId"]),
		},
	})

	o.updateStatus(ctx, r, status.StepValidating, 10, "📋 Validating information...", nil)

	if result := validation.ValidateSignup(raw); !result.Valid {
		valErr := errors.NewValidationError(result.MissingFields())
		log.Warn("Signup payload rejected", map[string]interface{}{
			"errors": result.GetErrorMessages(),
		})
		return &Response{
			StatusCode: valErr.HTTPStatus(),
			Body: ResponseBody{
				Success:          false,
				StatusTrackingID: r.trackingID,
				Error:            valErr.Message,
			},
		}
	}

	r.clean = CleanRequest(raw)
	r.path = r.clean.DeterminePath()

	metrics.WorkflowRunsStarted.WithLabelValues(r.path).Inc()
	log.Info("Workflow path selected", map[string]interface{}{
		"path":          r.path,
		"customerEmail": r.clean.CustomerEmail,
		"testMode":      r.clean.TestMode,
	})

	var resp *Response
	if r.path == PathFullWorkflow {
		resp = o.executeFullWorkflow(ctx, r)
	} else {
		resp = o.executeSimpleWorkflow(ctx, r)
	}

	outcome := "success"
	if !resp.Body.Success {
		outcome = "error"
	}
	metrics.WorkflowRunsCompleted.WithLabelValues(r.path, outcome).Inc()
	if o.obs != nil {
		o.obs.RecordRunProcessed(ctx, r.path, outcome)
		o.obs.RecordRunDuration(ctx, time.Since(r.startedAt), outcome)
	}

	return resp
}

func (o *Orchestrator) executeFullWorkflow(ctx context.Context, r *run) *Response {
	if err := o.checkEligibility(ctx, r); err != nil {
		return o.handleError(ctx, r, err)
	}

	// User creation proceeds regardless of the eligibility outcome.
	if err := o.createUser(ctx, r); err != nil {
		return o.handleError(ctx, r, err)
	}

	if err := o.createInsurancePlan(ctx, r); err != nil {
		return o.handleError(ctx, r, err)
	}

	o.updateStatus(ctx, r, status.StepCompleted, 100, "✅ Account creation completed successfully!", map[string]interface{}{
		"finalData": map[string]interface{}{
			"userCreation":  r.userData,
			"eligibility":   r.eligibilityDoc,
			"insurancePlan": r.planData,
		},
		"debug": map[string]interface{}{
			"workflowPath":     PathFullWorkflow,
			"totalElapsedTime": time.Since(r.startedAt).Milliseconds(),
			"completionSummary": map[string]interface{}{
				"eligibilitySuccess":   !r.eligibilityDegraded,
				"userCreationSuccess":  true,
				"insurancePlanSuccess": true,
			},
		},
	})
	o.archiveTerminal(ctx, r)

	return &Response{
		StatusCode: http.StatusOK,
		Body: ResponseBody{
			Success:          true,
			StatusTrackingID: r.trackingID,
			Message:          "Account creation completed successfully",
			Data: map[string]interface{}{
				"userCreation":  r.userData,
				"eligibility":   r.eligibilityDoc,
				"insurancePlan": r.planData,
			},
		},
	}
}

func (o *Orchestrator) executeSimpleWorkflow(ctx context.Context, r *run) *Response {
	if err := o.createUser(ctx, r); err != nil {
		return o.handleError(ctx, r, err)
	}

	o.updateStatus(ctx, r, status.StepCompleted, 100, "✅ Account creation completed (no insurance coverage)", map[string]interface{}{
		"finalData": map[string]interface{}{
			"userCreation": r.userData,
		},
		"debug": map[string]interface{}{
			"workflowPath":     PathSimpleWorkflow,
			"totalElapsedTime": time.Since(r.startedAt).Milliseconds(),
		},
	})
	o.archiveTerminal(ctx, r)

	return &Response{
		StatusCode: http.StatusOK,
		Body: ResponseBody{
			Success:          true,
			StatusTrackingID: r.trackingID,
			Message:          "Account creation completed (no insurance coverage)",
			Data: map[string]interface{}{
				"userCreation": r.userData,
			},
		},
	}
}

func (o *Orchestrator) checkEligibility(ctx context.Context, r *run) error {
	o.updateStatus(ctx, r, status.StepEligibility, 25, "🔍 Checking insurance eligibility...", map[string]interface{}{
		"debug": map[string]interface{}{
			"workflowPath": PathFullWorkflow,
			"insuranceInfo": map[string]interface{}{
				"provider":       r.clean.Insurance,
				"hasMemberId":    r.clean.InsuranceMemberID != "",
				"hasGroupNumber": r.clean.GroupNumber != "",
			},
		},
	})

	ctx, endSpan := o.startSpan(ctx, "workflow.eligibility")
	defer endSpan()
	timer := time.Now()

	result, err := o.eligibility.Check(ctx, &eligibility.Request{
		CustomerEmail:     r.clean.CustomerEmail,
		FirstName:         r.clean.FirstName,
		LastName:          r.clean.LastName,
		Insurance:         r.clean.Insurance,
		InsuranceMemberID: r.clean.InsuranceMemberID,
		GroupNumber:       r.clean.GroupNumber,
		DateOfBirth:       r.clean.DateOfBirth,
		TestMode:          r.clean.TestMode,
	})
	metrics.WorkflowStepDuration.WithLabelValues("eligibility").Observe(time.Since(timer).Seconds())

	if err != nil {
		metrics.WorkflowStepFailures.WithLabelValues("eligibility", string(errors.Convert(err).Code)).Inc()
		return err
	}

	r.eligibilityDoc = result.Document
	r.eligibilityDegraded = result.Degraded
	if result.Degraded {
		metrics.WorkflowStepFailures.WithLabelValues("eligibility", string(errors.ErrCodeDegradedServiceFailure)).Inc()
	}
	return nil
}

func (o *Orchestrator) createUser(ctx context.Context, r *run) error {
	o.updateStatus(ctx, r, status.StepUserCreation, 50, "🛍️ Creating user accounts...", map[string]interface{}{
		"debug": map[string]interface{}{
			"userCreationWorkflowUrl": o.cfg.Services.UserCreation.URL,
			"eligibilityCompleted":    r.eligibilityDoc != nil,
		},
	})

	ctx, endSpan := o.startSpan(ctx, "workflow.user_creation")
	defer endSpan()
	timer := time.Now()

	data, err := o.users.Create(ctx, r.clean)
	metrics.WorkflowStepDuration.WithLabelValues("user_creation").Observe(time.Since(timer).Seconds())

	if err != nil {
		metrics.WorkflowStepFailures.WithLabelValues("user_creation", string(errors.Convert(err).Code)).Inc()
		return err
	}

	r.userData = data
	return nil
}

func (o *Orchestrator) createInsurancePlan(ctx context.Context, r *run) error {
	contactID := usercreation.HubspotContactID(r.userData)

	o.updateStatus(ctx, r, status.StepInsurancePlan, 75, "🏥 Processing insurance plan details...", map[string]interface{}{
		"debug": map[string]interface{}{
			"insurancePlanWorkflowUrl": o.cfg.Services.InsurancePlan.URL,
			"userCreationCompleted":    true,
			"hubspotContactId":         stringOr(contactID, "unknown"),
		},
	})

	ctx, endSpan := o.startSpan(ctx, "workflow.insurance_plan")
	defer endSpan()
	timer := time.Now()

	data, err := o.plans.CreatePlan(ctx, &insuranceplan.Request{
		CustomerEmail:     r.clean.CustomerEmail,
		FirstName:         r.clean.FirstName,
		LastName:          r.clean.LastName,
		PhoneNumber:       r.clean.PhoneNumber,
		State:             r.clean.State,
		Insurance:         r.clean.Insurance,
		InsuranceMemberID: r.clean.InsuranceMemberID,
		GroupNumber:       r.clean.GroupNumber,
		DateOfBirth:       FormatDateOfBirth(r.clean.DateOfBirth),
		HubspotContactID:  contactID,
		EligibilityData:   docField(r.eligibilityDoc, "eligibilityData"),
		StediResponse:     docField(r.eligibilityDoc, "debug"),
		MainReasons:       r.clean.MainReasons,
		MedicalConditions: r.clean.MedicalConditions,
	})
	metrics.WorkflowStepDuration.WithLabelValues("insurance_plan").Observe(time.Since(timer).Seconds())

	if err != nil {
		metrics.WorkflowStepFailures.WithLabelValues("insurance_plan", string(errors.Convert(err).Code)).Inc()
		return err
	}

	r.planData = data
	return nil
}

// handleError writes the terminal error snapshot and maps the failure to a
// 500 response. Progress resets to 0: the run is over, not partially done.
func (o *Orchestrator) handleError(ctx context.Context, r *run, err error) *Response {
	stdErr := errors.Convert(err)

	o.logger.WithError(err).Error("Workflow run failed", map[string]interface{}{
		"statusTrackingId": r.trackingID,
		"path":             r.path,
		"code":             string(stdErr.Code),
	})

	o.updateStatus(ctx, r, status.StepError, 0, "❌ "+stdErr.Message, map[string]interface{}{
		"errorDetails": stdErr.Message,
		"debug": map[string]interface{}{
			"error":     stdErr.Details,
			"timestamp": time.Now().UnixMilli(),
		},
	})
	o.archiveTerminal(ctx, r)

	if o.alerter != nil {
		o.alerter.AlertWorkflowError(ctx, r.trackingID, r.path, stdErr.Message)
	}

	return &Response{
		StatusCode: stdErr.HTTPStatus(),
		Body: ResponseBody{
			Success:          false,
			StatusTrackingID: r.trackingID,
			Error:            stdErr.Message,
		},
	}
}

// updateStatus writes a snapshot for the step. Failures are logged and
// swallowed: status reporting must never break the workflow itself.
func (o *Orchestrator) updateStatus(ctx context.Context, r *run, step string, progress int, message string, extra map[string]interface{}) {
	snapshot := status.New(r.trackingID, step, progress, message, extra)
	r.lastSnapshot = snapshot

	if err := o.store.Put(ctx, snapshot); err != nil {
		metrics.StatusWriteFailures.Inc()
		persistErr := errors.NewStatusPersistenceError(err)
		o.logger.WithError(persistErr).Warn("Failed to update status", map[string]interface{}{
			"statusTrackingId": r.trackingID,
			"step":             step,
		})
	}
}

func (o *Orchestrator) archiveTerminal(ctx context.Context, r *run) {
	if o.archiver != nil && r.lastSnapshot != nil {
		o.archiver.ArchiveRun(ctx, r.lastSnapshot)
	}
}

func (o *Orchestrator) startSpan(ctx context.Context, name string) (context.Context, func()) {
	if o.obs == nil {
		return ctx, func() {}
	}
	return o.obs.StartSpan(ctx, name)
}

// trackingIDFrom reuses the caller-provided tracking id so the storefront
// can start polling before the workflow request returns, falling back to a
// freshly generated id.
func trackingIDFrom(raw map[string]interface{}) string {
	if id, ok := raw["statusTrackingId"].(string); ok && id != "" {
		return id
	}
	return generateTrackingID()
}

// generateTrackingID yields a numeric string: epoch millis scaled by 1000
// plus a random suffix to keep concurrent runs distinct.
func generateTrackingID() string {
	id := time.Now().UnixMilli()*1000 + int64(rand.Intn(1000))
	return strconv.FormatInt(id, 10)
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	case float64:
		return val != 0
	default:
		return true
	}
}

func stringOr(v interface{}, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

func docField(doc map[string]interface{}, key string) interface{} {
	if doc == nil {
		return nil
	}
	if v, ok := doc[key]; ok {
		return v
	}
	return nil
}
