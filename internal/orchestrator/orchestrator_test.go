package orchestrator

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signup-orchestrator/internal/common/config"
	"signup-orchestrator/internal/common/errors"
	"signup-orchestrator/internal/common/logger"
	"signup-orchestrator/internal/services/eligibility"
	"signup-orchestrator/internal/services/insuranceplan"
	"signup-orchestrator/internal/status"
)

// ==========================
// Test Helper Functions
// ==========================

// recordingStore captures every snapshot write in order.
type recordingStore struct {
	mu        sync.Mutex
	snapshots []*status.Snapshot
}

func (s *recordingStore) Put(ctx context.Context, snapshot *status.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snapshot)
	return nil
}

func (s *recordingStore) Get(ctx context.Context, trackingID string) (*status.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.snapshots) - 1; i >= 0; i-- {
		if s.snapshots[i].StatusTrackingID == trackingID {
			return s.snapshots[i], nil
		}
	}
	return nil, status.ErrNotFound
}

func (s *recordingStore) Close() error { return nil }

func (s *recordingStore) progressSequence() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap.Progress)
	}
	return out
}

func (s *recordingStore) stepSequence() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap.CurrentStep)
	}
	return out
}

type stubEligibility struct {
	result *eligibility.Result
	err    error
	called bool
	gotReq *eligibility.Request
}

func (s *stubEligibility) Check(ctx context.Context, req *eligibility.Request) (*eligibility.Result, error) {
	s.called = true
	s.gotReq = req
	return s.result, s.err
}

type stubUsers struct {
	data       map[string]interface{}
	err        error
	called     bool
	gotPayload interface{}
}

func (s *stubUsers) Create(ctx context.Context, payload interface{}) (map[string]interface{}, error) {
	s.called = true
	s.gotPayload = payload
	return s.data, s.err
}

type stubPlans struct {
	data   map[string]interface{}
	err    error
	called bool
	gotReq *insuranceplan.Request
}

func (s *stubPlans) CreatePlan(ctx context.Context, req *insuranceplan.Request) (map[string]interface{}, error) {
	s.called = true
	s.gotReq = req
	return s.data, s.err
}

func createTestConfig() *config.Config {
	return &config.Config{
		Services: config.ServicesConfig{
			Eligibility:   config.ServiceEndpoint{URL: "http://eligibility.test", Timeout: 90000},
			UserCreation:  config.ServiceEndpoint{URL: "http://users.test", Timeout: 90000},
			InsurancePlan: config.ServiceEndpoint{URL: "http://plans.test", Timeout: 180000},
		},
	}
}

func healthyEligibilityResult() *eligibility.Result {
	return &eligibility.Result{
		Document: map[string]interface{}{
			"success": true,
			"eligibilityData": map[string]interface{}{
				"isEligible":        true,
				"eligibilityStatus": "ELIGIBLE",
			},
			"debug": map[string]interface{}{"stediTrace": "t-1"},
		},
	}
}

func fullWorkflowRequest() map[string]interface{} {
	return map[string]interface{}{
		"customerEmail":     "jane@example.com",
		"firstName":         "Jane",
		"lastName":          "Doe",
		"insurance":         "Humana",
		"insuranceMemberId": "H12345678",
		"groupNumber":       "G-100",
		"dateOfBirth":       "1975-05-05",
	}
}

func simpleWorkflowRequest() map[string]interface{} {
	return map[string]interface{}{
		"customerEmail": "john@example.com",
		"firstName":     "John",
	}
}

type testDeps struct {
	store       *recordingStore
	eligibility *stubEligibility
	users       *stubUsers
	plans       *stubPlans
	orch        *Orchestrator
}

func createTestOrchestrator(t *testing.T, opts ...Option) *testDeps {
	d := &testDeps{
		store: &recordingStore{},
		eligibility: &stubEligibility{
			result: healthyEligibilityResult(),
		},
		users: &stubUsers{
			data: map[string]interface{}{"success": true, "hubspotContactId": "hs-42"},
		},
		plans: &stubPlans{
			data: map[string]interface{}{"success": true, "planId": "plan-1"},
		},
	}
	d.orch = newWithClients(createTestConfig(), logger.NewTestLogger(t), d.store,
		d.eligibility, d.users, d.plans, opts...)
	return d
}

// ==========================
// Full Workflow Tests
// ==========================

func TestRun_FullWorkflow_Success(t *testing.T) {
	d := createTestOrchestrator(t)

	resp := d.orch.Run(context.Background(), fullWorkflowRequest())

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.Body.Success)
	assert.Equal(t, "Account creation completed successfully", resp.Body.Message)
	assert.NotEmpty(t, resp.Body.StatusTrackingID)
	assert.Contains(t, resp.Body.Data, "userCreation")
	assert.Contains(t, resp.Body.Data, "eligibility")
	assert.Contains(t, resp.Body.Data, "insurancePlan")

	assert.Equal(t, []int{0, 10, 25, 50, 75, 100}, d.store.progressSequence())
	assert.Equal(t, []string{
		status.StepInitializing,
		status.StepValidating,
		status.StepEligibility,
		status.StepUserCreation,
		status.StepInsurancePlan,
		status.StepCompleted,
	}, d.store.stepSequence())

	assert.True(t, d.eligibility.called)
	assert.True(t, d.users.called)
	assert.True(t, d.plans.called)
}

func TestRun_FullWorkflow_PlanReceivesEarlierResults(t *testing.T) {
	d := createTestOrchestrator(t)

	resp := d.orch.Run(context.Background(), fullWorkflowRequest())
	require.True(t, resp.Body.Success)

	req := d.plans.gotReq
	require.NotNil(t, req)
	assert.Equal(t, "hs-42", req.HubspotContactID)
	assert.Equal(t, int64(168480000000), req.DateOfBirth)
	assert.NotNil(t, req.EligibilityData)
	assert.Equal(t, map[string]interface{}{"stediTrace": "t-1"}, req.StediResponse)
	assert.Equal(t, "jane@example.com", req.CustomerEmail)
}

func TestRun_FullWorkflow_DegradedEligibilityContinues(t *testing.T) {
	d := createTestOrchestrator(t)
	d.eligibility.result = &eligibility.Result{
		Document: map[string]interface{}{
			"eligibilityData": map[string]interface{}{
				"eligibilityStatus": "ERROR",
				"isEligible":        false,
			},
			"debug": map[string]interface{}{"eligibilityCheckFailed": true},
		},
		Degraded: true,
	}

	resp := d.orch.Run(context.Background(), fullWorkflowRequest())

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.Body.Success)
	assert.True(t, d.users.called)
	assert.True(t, d.plans.called)

	// The synthetic eligibility document flows into the plan payload.
	planEligibility := d.plans.gotReq.EligibilityData.(map[string]interface{})
	assert.Equal(t, "ERROR", planEligibility["eligibilityStatus"])

	// The completion summary records the degraded eligibility outcome.
	final := d.store.snapshots[len(d.store.snapshots)-1]
	debug := final.Extra["debug"].(map[string]interface{})
	summary := debug["completionSummary"].(map[string]interface{})
	assert.Equal(t, false, summary["eligibilitySuccess"])
}

func TestRun_FullWorkflow_CriticalEligibilityAborts(t *testing.T) {
	d := createTestOrchestrator(t)
	d.eligibility.err = errors.NewCriticalServiceError("API configuration error", "500 from checker")
	d.eligibility.result = nil

	resp := d.orch.Run(context.Background(), fullWorkflowRequest())

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.False(t, resp.Body.Success)
	assert.Contains(t, resp.Body.Error, "Critical failure: API configuration error")

	assert.False(t, d.users.called)
	assert.False(t, d.plans.called)

	final := d.store.snapshots[len(d.store.snapshots)-1]
	assert.Equal(t, status.StepError, final.CurrentStep)
	assert.Equal(t, 0, final.Progress)
	assert.True(t, final.Completed)
	assert.True(t, final.Error)
}

func TestRun_FullWorkflow_UserCreationFailureAborts(t *testing.T) {
	d := createTestOrchestrator(t)
	d.users.err = errors.NewCriticalServiceError("User account creation failed - shopify account exists", "user_creation")
	d.users.data = nil

	resp := d.orch.Run(context.Background(), fullWorkflowRequest())

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, resp.Body.Error, "User account creation failed")
	assert.False(t, d.plans.called)

	assert.Equal(t, []int{0, 10, 25, 50, 0}, d.store.progressSequence())
}

func TestRun_FullWorkflow_PlanFailureAborts(t *testing.T) {
	d := createTestOrchestrator(t)
	d.plans.err = errors.NewCriticalServiceError("Insurance plan creation failed - hubspot rate limited", "insurance_plan")
	d.plans.data = nil

	resp := d.orch.Run(context.Background(), fullWorkflowRequest())

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, resp.Body.Error, "Insurance plan creation failed")

	final := d.store.snapshots[len(d.store.snapshots)-1]
	assert.Equal(t, status.StepError, final.CurrentStep)
	assert.Contains(t, final.Extra["errorDetails"], "hubspot rate limited")
}

// ==========================
// Simple Workflow Tests
// ==========================

func TestRun_SimpleWorkflow_SkipsInsuranceSteps(t *testing.T) {
	d := createTestOrchestrator(t)

	resp := d.orch.Run(context.Background(), simpleWorkflowRequest())

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.Body.Success)
	assert.Equal(t, "Account creation completed (no insurance coverage)", resp.Body.Message)
	assert.Contains(t, resp.Body.Data, "userCreation")
	assert.NotContains(t, resp.Body.Data, "eligibility")
	assert.NotContains(t, resp.Body.Data, "insurancePlan")

	assert.False(t, d.eligibility.called)
	assert.False(t, d.plans.called)

	assert.Equal(t, []int{0, 10, 50, 100}, d.store.progressSequence())
	assert.Equal(t, []string{
		status.StepInitializing,
		status.StepValidating,
		status.StepUserCreation,
		status.StepCompleted,
	}, d.store.stepSequence())
}

func TestRun_SimpleWorkflow_UserCreationFailure(t *testing.T) {
	d := createTestOrchestrator(t)
	d.users.err = errors.NewCriticalServiceError("User account creation failed - timeout", "user_creation")
	d.users.data = nil

	resp := d.orch.Run(context.Background(), simpleWorkflowRequest())

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.False(t, resp.Body.Success)
}

// ==========================
// Validation Tests
// ==========================

func TestRun_MissingEmailRejectedWithoutErrorSnapshot(t *testing.T) {
	d := createTestOrchestrator(t)

	resp := d.orch.Run(context.Background(), map[string]interface{}{
		"firstName": "Jane",
	})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, resp.Body.Success)
	assert.Contains(t, resp.Body.Error, "Missing required fields")
	assert.Contains(t, resp.Body.Error, "customerEmail")
	assert.NotEmpty(t, resp.Body.StatusTrackingID)

	// Validation failures return 400 directly; no error snapshot is written.
	assert.Equal(t, []string{status.StepInitializing, status.StepValidating}, d.store.stepSequence())
	assert.False(t, d.users.called)
}

func TestRun_NilBodyBehavesLikeEmptyDocument(t *testing.T) {
	d := createTestOrchestrator(t)

	resp := d.orch.Run(context.Background(), nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ==========================
// Tracking ID Tests
// ==========================

func TestRun_ReusesProvidedTrackingID(t *testing.T) {
	d := createTestOrchestrator(t)

	raw := simpleWorkflowRequest()
	raw["statusTrackingId"] = "1755000000000123"

	resp := d.orch.Run(context.Background(), raw)

	assert.Equal(t, "1755000000000123", resp.Body.StatusTrackingID)
	for _, snap := range d.store.snapshots {
		assert.Equal(t, "1755000000000123", snap.StatusTrackingID)
	}
}

func TestGenerateTrackingID_NumericString(t *testing.T) {
	id := generateTrackingID()

	parsed, err := strconv.ParseInt(id, 10, 64)
	require.NoError(t, err)
	assert.Greater(t, parsed, int64(0))
}

// ==========================
// Status Persistence Tests
// ==========================

type failingStore struct{}

func (failingStore) Put(ctx context.Context, snapshot *status.Snapshot) error {
	return assert.AnError
}
func (failingStore) Get(ctx context.Context, trackingID string) (*status.Snapshot, error) {
	return nil, status.ErrNotFound
}
func (failingStore) Close() error { return nil }

func TestRun_StatusWriteFailuresAreSwallowed(t *testing.T) {
	d := createTestOrchestrator(t)
	orch := newWithClients(createTestConfig(), logger.NewTestLogger(t), failingStore{},
		d.eligibility, d.users, d.plans)

	resp := orch.Run(context.Background(), fullWorkflowRequest())

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.Body.Success)
}

// ==========================
// Archive and Alert Tests
// ==========================

type stubArchiver struct {
	archived []*status.Snapshot
}

func (s *stubArchiver) ArchiveRun(ctx context.Context, snapshot *status.Snapshot) {
	s.archived = append(s.archived, snapshot)
}

type stubAlerter struct {
	alerts []string
}

func (s *stubAlerter) AlertWorkflowError(ctx context.Context, trackingID, workflowPath, errorMessage string) {
	s.alerts = append(s.alerts, errorMessage)
}

func TestRun_ArchivesTerminalSnapshotOnly(t *testing.T) {
	archiver := &stubArchiver{}
	d := createTestOrchestrator(t, WithArchiver(archiver))

	d.orch.Run(context.Background(), fullWorkflowRequest())

	require.Len(t, archiver.archived, 1)
	assert.Equal(t, status.StepCompleted, archiver.archived[0].CurrentStep)
}

func TestRun_AlertsOnTerminalError(t *testing.T) {
	archiver := &stubArchiver{}
	alerter := &stubAlerter{}
	d := createTestOrchestrator(t, WithArchiver(archiver), WithAlerter(alerter))
	d.users.err = errors.NewCriticalServiceError("User account creation failed - boom", "user_creation")
	d.users.data = nil

	d.orch.Run(context.Background(), fullWorkflowRequest())

	require.Len(t, alerter.alerts, 1)
	assert.Contains(t, alerter.alerts[0], "User account creation failed")

	require.Len(t, archiver.archived, 1)
	assert.Equal(t, status.StepError, archiver.archived[0].CurrentStep)
}

func TestRun_NoAlertOnSuccess(t *testing.T) {
	alerter := &stubAlerter{}
	d := createTestOrchestrator(t, WithAlerter(alerter))

	d.orch.Run(context.Background(), simpleWorkflowRequest())

	assert.Empty(t, alerter.alerts)
}
