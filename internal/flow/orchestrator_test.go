package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockTests struct{ mock.Mock }

func (m *mockTests) RunSuite(ctx context.Context, cfg Config) (*TestRunResult, error) {
	args := m.Called(ctx, cfg)
	if r := args.Get(0); r != nil {
		return r.(*TestRunResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockAcceptance struct{ mock.Mock }

func (m *mockAcceptance) PrepareChecklist(ctx context.Context, cfg Config) (*Checklist, error) {
	args := m.Called(ctx, cfg)
	if r := args.Get(0); r != nil {
		return r.(*Checklist), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAcceptance) CollectDecision(ctx context.Context, cfg Config, checklist *Checklist) (*AcceptanceResult, error) {
	args := m.Called(ctx, cfg, checklist)
	if r := args.Get(0); r != nil {
		return r.(*AcceptanceResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockReports struct{ mock.Mock }

func (m *mockReports) Generate(ctx context.Context, f *Flow) (*ReportResult, error) {
	args := m.Called(ctx, f)
	if r := args.Get(0); r != nil {
		return r.(*ReportResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSignatures struct{ mock.Mock }

func (m *mockSignatures) Collect(ctx context.Context, cfg Config, report *ReportResult) (*SignatureResult, error) {
	args := m.Called(ctx, cfg, report)
	if r := args.Get(0); r != nil {
		return r.(*SignatureResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockDeployer struct {
	mock.Mock
	block chan struct{} // when non-nil, Deploy waits here
}

func (m *mockDeployer) Deploy(ctx context.Context, cfg Config) (*DeployResult, error) {
	if m.block != nil {
		<-m.block
	}
	args := m.Called(ctx, cfg)
	if r := args.Get(0); r != nil {
		return r.(*DeployResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Notify(ctx context.Context, channel string, cfg Config, deploy *DeployResult) NotifyAck {
	args := m.Called(ctx, channel, cfg, deploy)
	return args.Get(0).(NotifyAck)
}

type mockMonitoring struct{ mock.Mock }

func (m *mockMonitoring) Provision(ctx context.Context, cfg Config) (*MonitoringResult, error) {
	args := m.Called(ctx, cfg)
	if r := args.Get(0); r != nil {
		return r.(*MonitoringResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type testCollabs struct {
	tests      *mockTests
	acceptance *mockAcceptance
	reports    *mockReports
	signatures *mockSignatures
	deployer   *mockDeployer
	notifier   *mockNotifier
	monitoring *mockMonitoring
}

func newTestCollabs() *testCollabs {
	return &testCollabs{
		tests:      &mockTests{},
		acceptance: &mockAcceptance{},
		reports:    &mockReports{},
		signatures: &mockSignatures{},
		deployer:   &mockDeployer{},
		notifier:   &mockNotifier{},
		monitoring: &mockMonitoring{},
	}
}

func (c *testCollabs) set() Collaborators {
	return Collaborators{
		Tests:      c.tests,
		Acceptance: c.acceptance,
		Reports:    c.reports,
		Signatures: c.signatures,
		Deployer:   c.deployer,
		Notifier:   c.notifier,
		Monitoring: c.monitoring,
	}
}

// happyPath wires every mock for a fully successful delivery.
func (c *testCollabs) happyPath() {
	c.tests.On("RunSuite", mock.Anything, mock.Anything).
		Return(&TestRunResult{TotalTests: 40, PassedTests: 38, FailedTests: 2, PassRate: 95}, nil)
	checklist := &Checklist{Items: []ChecklistItem{{ID: "c1", Description: "login works", Required: true}}}
	c.acceptance.On("PrepareChecklist", mock.Anything, mock.Anything).Return(checklist, nil)
	c.acceptance.On("CollectDecision", mock.Anything, mock.Anything, checklist).
		Return(&AcceptanceResult{TotalChecks: 1, PassedChecks: 1, AcceptanceRate: 100, Outcome: AcceptanceAccepted}, nil)
	c.reports.On("Generate", mock.Anything, mock.Anything).
		Return(&ReportResult{ReportID: "rep-1", ReportURL: "https://reports.example.com/rep-1"}, nil)
	c.signatures.On("Collect", mock.Anything, mock.Anything, mock.Anything).
		Return(&SignatureResult{SignedAt: time.Now(), SignedBy: "Dana Client"}, nil)
	c.deployer.On("Deploy", mock.Anything, mock.Anything).
		Return(&DeployResult{ProductURL: "https://shop.example.com", Version: "1.4.0", DeployedAt: time.Now()}, nil)
	c.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(NotifyAck{Channel: "email", Sent: true})
	c.monitoring.On("Provision", mock.Anything, mock.Anything).
		Return(&MonitoringResult{StatusPageURL: "https://status.example.com", MonitoringURL: "https://mon.example.com"}, nil)
}

func testConfig() Config {
	return Config{
		ProjectID:   "proj-42",
		ProjectName: "Example Shop",
		ProductType: "web",
		ClientName:  "Dana Client",
		ClientEmail: "dana@example.com",
		ProductURL:  "https://shop.example.com",
		Options: Options{
			NotifyChannels:   []string{"email"},
			EnableMonitoring: true,
		},
	}
}

func newTestOrchestrator(t *testing.T, collabs Collaborators) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(NewMemoryStore(), collabs, nil, OrchestratorOptions{Logger: zap.NewNop()})
	require.NoError(t, err)
	return o
}

func TestCreateFlowValidation(t *testing.T) {
	c := newTestCollabs()
	o := newTestOrchestrator(t, c.set())

	_, err := o.CreateFlow(context.Background(), Config{ProjectName: "x", ProductURL: "y"})
	assert.ErrorContains(t, err, "project_id")
}

func TestCreateFlowInitialState(t *testing.T) {
	c := newTestCollabs()
	o := newTestOrchestrator(t, c.set())

	f, err := o.CreateFlow(context.Background(), testConfig())
	require.NoError(t, err)
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, FlowRunning, f.Status)
	assert.Equal(t, PhaseInit, f.CurrentPhase)
	require.Len(t, f.Phases, len(AllPhases()))
	for _, p := range f.Phases {
		assert.Equal(t, PhasePending, p.Status)
		assert.Zero(t, p.Progress)
	}
	assert.NotEmpty(t, f.Timeline, "creation is recorded on the timeline")
}

func TestExecuteFlowHappyPath(t *testing.T) {
	c := newTestCollabs()
	c.happyPath()
	o := newTestOrchestrator(t, c.set())

	created, err := o.CreateFlow(context.Background(), testConfig())
	require.NoError(t, err)

	f, err := o.ExecuteFlow(context.Background(), created.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, FlowCompleted, f.Status)
	require.NotNil(t, f.CompletedAt)
	for _, p := range f.Phases {
		assert.Equal(t, PhaseDone, p.Status, "phase %s", p.Name)
		assert.Equal(t, 100, p.Progress, "phase %s", p.Name)
	}

	require.NotNil(t, f.Outputs.TestRun)
	require.NotNil(t, f.Outputs.Checklist)
	require.NotNil(t, f.Outputs.Acceptance)
	require.NotNil(t, f.Outputs.Report)
	require.NotNil(t, f.Outputs.Signature)
	require.NotNil(t, f.Outputs.Deployment)
	require.Len(t, f.Outputs.Notifications, 1)
	assert.True(t, f.Outputs.Notifications[0].Sent)
	require.NotNil(t, f.Outputs.Monitoring)

	// The stored copy matches what ExecuteFlow returned.
	stored, err := o.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, FlowCompleted, stored.Status)

	c.tests.AssertExpectations(t)
	c.deployer.AssertExpectations(t)
}

func TestExecuteFlowSkipFlags(t *testing.T) {
	c := newTestCollabs()
	c.acceptance.On("PrepareChecklist", mock.Anything, mock.Anything).
		Return(&Checklist{Items: []ChecklistItem{{ID: "c1", Description: "login works", Required: true}}}, nil)
	c.reports.On("Generate", mock.Anything, mock.Anything).
		Return(&ReportResult{ReportID: "rep-2", ReportURL: "u"}, nil)
	c.deployer.On("Deploy", mock.Anything, mock.Anything).
		Return(&DeployResult{ProductURL: "u", Version: "1.0.0", DeployedAt: time.Now()}, nil)
	o := newTestOrchestrator(t, c.set())

	cfg := testConfig()
	cfg.Options = Options{
		SkipE2ETests:       true,
		SkipUserAcceptance: true,
		AutoSign:           true,
		NotifyChannels:     nil,
		EnableMonitoring:   false,
	}
	created, err := o.CreateFlow(context.Background(), cfg)
	require.NoError(t, err)

	f, err := o.ExecuteFlow(context.Background(), created.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, FlowCompleted, f.Status)

	// Only the three optional phases are skippable.
	skippedPhases := []Phase{PhaseE2ETesting, PhaseUserAcceptance, PhaseMonitoringSetup}
	for _, name := range skippedPhases {
		info := f.Phase(name)
		assert.Equal(t, PhaseSkipped, info.Status, "phase %s", name)
		assert.Equal(t, 100, info.Progress, "phase %s", name)
	}

	// The checklist is still prepared when the acceptance round is skipped.
	assert.Equal(t, PhaseDone, f.Phase(PhaseAcceptancePrep).Status)
	require.NotNil(t, f.Outputs.Checklist)

	// No channels configured: the phase completes with nothing to send.
	assert.Equal(t, PhaseDone, f.Phase(PhaseNotification).Status)
	assert.Empty(t, f.Outputs.Notifications)

	// Auto-sign completes the phase without the collaborator.
	assert.Equal(t, PhaseDone, f.Phase(PhaseSignatureCollection).Status)
	require.NotNil(t, f.Outputs.Signature)
	assert.Equal(t, "auto-sign", f.Outputs.Signature.SignedBy)

	c.tests.AssertNotCalled(t, "RunSuite", mock.Anything, mock.Anything)
	c.acceptance.AssertCalled(t, "PrepareChecklist", mock.Anything, mock.Anything)
	c.acceptance.AssertNotCalled(t, "CollectDecision", mock.Anything, mock.Anything, mock.Anything)
	c.signatures.AssertNotCalled(t, "Collect", mock.Anything, mock.Anything, mock.Anything)
	c.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	c.monitoring.AssertNotCalled(t, "Provision", mock.Anything, mock.Anything)
}

func TestExecuteFlowFailsBelowPassRate(t *testing.T) {
	c := newTestCollabs()
	c.happyPath()
	c.tests.ExpectedCalls = nil
	c.tests.On("RunSuite", mock.Anything, mock.Anything).
		Return(&TestRunResult{TotalTests: 10, PassedTests: 6, FailedTests: 4, PassRate: 60, Issues: []string{"checkout broken"}}, nil)
	o := newTestOrchestrator(t, c.set())

	created, err := o.CreateFlow(context.Background(), testConfig())
	require.NoError(t, err)

	f, err := o.ExecuteFlow(context.Background(), created.ID, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "pass rate")

	assert.Equal(t, FlowFailed, f.Status)
	assert.Equal(t, PhaseFailed, f.Phase(PhaseE2ETesting).Status)
	require.NotNil(t, f.Outputs.TestRun, "the failing run is still recorded")

	// Everything after the fatal phase never ran.
	for _, name := range []Phase{PhaseAcceptancePrep, PhaseDeployment, PhaseCompleted} {
		assert.Equal(t, PhasePending, f.Phase(name).Status, "phase %s", name)
	}
	c.deployer.AssertNotCalled(t, "Deploy", mock.Anything, mock.Anything)
}

func TestExecuteFlowFailsOnRejectedAcceptance(t *testing.T) {
	c := newTestCollabs()
	c.happyPath()
	c.acceptance.ExpectedCalls = nil
	checklist := &Checklist{Items: []ChecklistItem{{ID: "c1", Description: "login works", Required: true}}}
	c.acceptance.On("PrepareChecklist", mock.Anything, mock.Anything).Return(checklist, nil)
	c.acceptance.On("CollectDecision", mock.Anything, mock.Anything, mock.Anything).
		Return(&AcceptanceResult{TotalChecks: 1, PassedChecks: 0, AcceptanceRate: 0, Issues: []string{"login broken"}, Outcome: AcceptanceRejected}, nil)
	o := newTestOrchestrator(t, c.set())

	created, err := o.CreateFlow(context.Background(), testConfig())
	require.NoError(t, err)

	f, err := o.ExecuteFlow(context.Background(), created.ID, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "rejected")
	assert.Equal(t, FlowFailed, f.Status)
	assert.Equal(t, PhaseFailed, f.Phase(PhaseUserAcceptance).Status)
}

func TestPhaseFailureIsClassifiedOnTimeline(t *testing.T) {
	c := newTestCollabs()
	c.happyPath()
	c.deployer.ExpectedCalls = nil
	c.deployer.On("Deploy", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused by deploy target"))
	o := newTestOrchestrator(t, c.set())

	created, err := o.CreateFlow(context.Background(), testConfig())
	require.NoError(t, err)

	f, err := o.ExecuteFlow(context.Background(), created.ID, nil)
	require.Error(t, err)
	assert.Equal(t, FlowFailed, f.Status)

	var failureEvent *TimelineEvent
	for i := range f.Timeline {
		if f.Timeline[i].Severity == EventError {
			failureEvent = &f.Timeline[i]
		}
	}
	require.NotNil(t, failureEvent)
	assert.Equal(t, PhaseDeployment, failureEvent.Phase)
	assert.Equal(t, "network", failureEvent.Details["kind"])
	assert.Equal(t, true, failureEvent.Details["recoverable"])
}

func TestNotificationPartialFailureContinues(t *testing.T) {
	c := newTestCollabs()
	c.happyPath()
	c.notifier.ExpectedCalls = nil
	c.notifier.On("Notify", mock.Anything, "email", mock.Anything, mock.Anything).
		Return(NotifyAck{Channel: "email", Sent: false, Error: "smtp unavailable"})
	c.notifier.On("Notify", mock.Anything, "slack", mock.Anything, mock.Anything).
		Return(NotifyAck{Channel: "slack", Sent: true})
	o := newTestOrchestrator(t, c.set())

	cfg := testConfig()
	cfg.Options.NotifyChannels = []string{"email", "slack"}
	created, err := o.CreateFlow(context.Background(), cfg)
	require.NoError(t, err)

	f, err := o.ExecuteFlow(context.Background(), created.ID, nil)
	require.NoError(t, err, "one surviving channel keeps the phase green")
	assert.Equal(t, FlowCompleted, f.Status)
	assert.Equal(t, PhaseDone, f.Phase(PhaseNotification).Status)
	require.Len(t, f.Outputs.Notifications, 2)

	warned := false
	for _, ev := range f.Timeline {
		if ev.Severity == EventWarning && ev.Phase == PhaseNotification {
			warned = true
		}
	}
	assert.True(t, warned, "failed channel leaves a warning on the timeline")
}

func TestNotificationTotalFailureFailsPhase(t *testing.T) {
	c := newTestCollabs()
	c.happyPath()
	c.notifier.ExpectedCalls = nil
	c.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(NotifyAck{Channel: "email", Sent: false, Error: "smtp unavailable"})
	o := newTestOrchestrator(t, c.set())

	created, err := o.CreateFlow(context.Background(), testConfig())
	require.NoError(t, err)

	f, err := o.ExecuteFlow(context.Background(), created.ID, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "notification channels failed")
	assert.Equal(t, FlowFailed, f.Status)
}

func TestOnProgressReceivesSnapshots(t *testing.T) {
	c := newTestCollabs()
	c.happyPath()
	o := newTestOrchestrator(t, c.set())

	created, err := o.CreateFlow(context.Background(), testConfig())
	require.NoError(t, err)

	var mu sync.Mutex
	var snapshots []*Flow
	onProgress := func(f *Flow) {
		mu.Lock()
		snapshots = append(snapshots, f)
		mu.Unlock()
	}

	_, err = o.ExecuteFlow(context.Background(), created.ID, onProgress)
	require.NoError(t, err)

	// Dispatch is fire-and-continue, so wait for the final snapshot.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, s := range snapshots {
			if s.Status == FlowCompleted {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	// Two snapshots per phase plus the final one.
	assert.GreaterOrEqual(t, len(snapshots), len(AllPhases()))

	// Snapshots are deep copies: mutating one cannot reach the store.
	snapshots[0].Config.ProjectID = "mutated"
	stored, err := o.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "proj-42", stored.Config.ProjectID)
}

func TestSlowProgressCallbackDoesNotBlockFlow(t *testing.T) {
	c := newTestCollabs()
	c.happyPath()
	o := newTestOrchestrator(t, c.set())

	created, err := o.CreateFlow(context.Background(), testConfig())
	require.NoError(t, err)

	stall := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_, err := o.ExecuteFlow(context.Background(), created.ID, func(*Flow) { <-stall })
		assert.NoError(t, err)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("flow blocked on a stalled progress callback")
	}
	close(stall)
}

func TestPauseGatesNextPhase(t *testing.T) {
	c := newTestCollabs()
	c.happyPath()
	o := newTestOrchestrator(t, c.set())

	created, err := o.CreateFlow(context.Background(), testConfig())
	require.NoError(t, err)

	// Pause before execution begins: the flow must wait at the first gate.
	paused, err := o.Pause(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, FlowPaused, paused.Status)

	done := make(chan *Flow, 1)
	go func() {
		f, err := o.ExecuteFlow(context.Background(), created.ID, nil)
		assert.NoError(t, err)
		done <- f
	}()

	// While paused no phase starts.
	require.Eventually(t, func() bool {
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.running[created.ID] != nil
	}, time.Second, 5*time.Millisecond)

	select {
	case <-done:
		t.Fatal("flow ran while paused")
	case <-time.After(50 * time.Millisecond):
	}
	c.tests.AssertNotCalled(t, "RunSuite", mock.Anything, mock.Anything)

	_, err = o.Resume(context.Background(), created.ID)
	require.NoError(t, err)

	select {
	case f := <-done:
		assert.Equal(t, FlowCompleted, f.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("flow did not resume")
	}
}

func TestPauseDuringPhaseSurvivesPhaseSave(t *testing.T) {
	c := newTestCollabs()
	c.happyPath()
	c.deployer.block = make(chan struct{})
	o := newTestOrchestrator(t, c.set())

	created, err := o.CreateFlow(context.Background(), testConfig())
	require.NoError(t, err)

	done := make(chan *Flow, 1)
	go func() {
		f, err := o.ExecuteFlow(context.Background(), created.ID, nil)
		assert.NoError(t, err)
		done <- f
	}()

	require.Eventually(t, func() bool {
		f, err := o.Get(context.Background(), created.ID)
		return err == nil && f.CurrentPhase == PhaseDeployment
	}, time.Second, 5*time.Millisecond)

	paused, err := o.Pause(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, FlowPaused, paused.Status)

	// Let the in-flight phase finish; its save must not revert the pause.
	close(c.deployer.block)
	require.Eventually(t, func() bool {
		f, err := o.Get(context.Background(), created.ID)
		return err == nil && f.Status == FlowPaused && f.Phase(PhaseDeployment).Status == PhaseDone
	}, time.Second, 5*time.Millisecond)

	stored, err := o.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, PhasePending, stored.Phase(PhaseNotification).Status, "no phase starts past the gate")
	pauseRecorded := false
	for _, ev := range stored.Timeline {
		if ev.Message == "flow paused" {
			pauseRecorded = true
		}
	}
	assert.True(t, pauseRecorded, "the pause stays on the timeline")

	_, err = o.Resume(context.Background(), created.ID)
	require.NoError(t, err)
	select {
	case f := <-done:
		assert.Equal(t, FlowCompleted, f.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("flow did not resume")
	}
}

func TestCanceledExecuteLeavesFlowResumable(t *testing.T) {
	c := newTestCollabs()
	c.happyPath()
	o := newTestOrchestrator(t, c.set())

	created, err := o.CreateFlow(context.Background(), testConfig())
	require.NoError(t, err)
	_, err = o.Pause(context.Background(), created.ID)
	require.NoError(t, err)

	execCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := o.ExecuteFlow(execCtx, created.ID, nil)
		done <- err
	}()

	require.Eventually(t, func() bool {
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.running[created.ID] != nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	// Killing the executor's context is not a delivery failure.
	stored, err := o.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, FlowPaused, stored.Status)

	_, err = o.Resume(context.Background(), created.ID)
	require.NoError(t, err)
	f, err := o.ExecuteFlow(context.Background(), created.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, FlowCompleted, f.Status)
}

func TestPauseOnTerminalFlow(t *testing.T) {
	c := newTestCollabs()
	c.happyPath()
	o := newTestOrchestrator(t, c.set())

	created, err := o.CreateFlow(context.Background(), testConfig())
	require.NoError(t, err)
	_, err = o.ExecuteFlow(context.Background(), created.ID, nil)
	require.NoError(t, err)

	_, err = o.Pause(context.Background(), created.ID)
	assert.ErrorIs(t, err, ErrFlowTerminal)
	_, err = o.ExecuteFlow(context.Background(), created.ID, nil)
	assert.ErrorIs(t, err, ErrFlowTerminal)
}

func TestExecuteFlowRejectsConcurrentExecution(t *testing.T) {
	c := newTestCollabs()
	c.happyPath()
	c.deployer.block = make(chan struct{})
	o := newTestOrchestrator(t, c.set())

	created, err := o.CreateFlow(context.Background(), testConfig())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_, err := o.ExecuteFlow(context.Background(), created.ID, nil)
		assert.NoError(t, err)
		close(done)
	}()

	require.Eventually(t, func() bool {
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.running[created.ID] != nil
	}, time.Second, 5*time.Millisecond)

	_, err = o.ExecuteFlow(context.Background(), created.ID, nil)
	assert.ErrorIs(t, err, ErrFlowExecuting)

	close(c.deployer.block)
	<-done
}

func TestTimelineIsAppendOnlyAndOrdered(t *testing.T) {
	c := newTestCollabs()
	c.happyPath()
	o := newTestOrchestrator(t, c.set())

	created, err := o.CreateFlow(context.Background(), testConfig())
	require.NoError(t, err)
	f, err := o.ExecuteFlow(context.Background(), created.ID, nil)
	require.NoError(t, err)

	require.Greater(t, len(f.Timeline), len(AllPhases()), "every phase leaves at least one event")
	for i := 1; i < len(f.Timeline); i++ {
		assert.False(t, f.Timeline[i].Timestamp.Before(f.Timeline[i-1].Timestamp),
			"timeline timestamps are monotonic")
	}
}
