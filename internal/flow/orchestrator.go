package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deliverd/internal/errclass"
)

const (
	// minPassRate is the e2e gate. A suite below this fails the phase.
	minPassRate = 70.0

	defaultPhaseTimeout = 5 * time.Minute
)

var (
	// ErrFlowTerminal is returned for operations on completed or failed flows.
	ErrFlowTerminal = errors.New("flow is terminal")
	// ErrFlowExecuting is returned when ExecuteFlow is called twice for one id.
	ErrFlowExecuting = errors.New("flow is already executing")
)

// EventPublisher fans timeline events out to external consumers. Publishing
// is best effort; a failing publisher never fails the flow.
type EventPublisher interface {
	PublishTimeline(ctx context.Context, flowID string, ev TimelineEvent) error
}

// Observer receives phase and flow completions, for metrics.
type Observer interface {
	ObserveFlowPhase(phase Phase, status PhaseStatus, elapsed time.Duration)
	ObserveFlowFinished(status FlowStatus)
}

// OrchestratorOptions tunes optional orchestrator behavior.
type OrchestratorOptions struct {
	Logger       *zap.Logger
	Publisher    EventPublisher
	Observer     Observer
	PhaseTimeout time.Duration
}

// Orchestrator drives delivery flows through the fixed phase sequence.
type Orchestrator struct {
	store      Store
	collab     Collaborators
	classifier *errclass.Classifier
	breakers   *breakerSet
	logger     *zap.Logger
	publisher  EventPublisher
	observer   Observer
	timeout    time.Duration

	mu      sync.Mutex
	running map[string]*pauseGate

	now func() time.Time
}

// NewOrchestrator validates the collaborator set and returns a ready
// orchestrator.
func NewOrchestrator(store Store, collab Collaborators, classifier *errclass.Classifier, opts OrchestratorOptions) (*Orchestrator, error) {
	if store == nil {
		return nil, fmt.Errorf("orchestrator: store is required")
	}
	if err := collab.Validate(); err != nil {
		return nil, err
	}
	if classifier == nil {
		classifier = errclass.NewDefault()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.PhaseTimeout
	if timeout <= 0 {
		timeout = defaultPhaseTimeout
	}
	return &Orchestrator{
		store:      store,
		collab:     collab,
		classifier: classifier,
		breakers:   newBreakerSet(logger),
		logger:     logger,
		publisher:  opts.Publisher,
		observer:   opts.Observer,
		timeout:    timeout,
		running:    make(map[string]*pauseGate),
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateFlow validates the config and persists a new flow with every phase
// pending.
func (o *Orchestrator) CreateFlow(ctx context.Context, cfg Config) (*Flow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	now := o.now()
	phases := make([]PhaseInfo, 0, len(AllPhases()))
	for _, p := range AllPhases() {
		phases = append(phases, PhaseInfo{Name: p, Status: PhasePending})
	}
	f := &Flow{
		ID:           uuid.NewString(),
		Config:       cfg,
		CurrentPhase: PhaseInit,
		Phases:       phases,
		Status:       FlowRunning,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	o.recordEvent(ctx, f, PhaseInit, EventInfo, "delivery flow created", map[string]any{
		"project_id":   cfg.ProjectID,
		"project_name": cfg.ProjectName,
	})
	if err := o.store.Save(ctx, f); err != nil {
		return nil, fmt.Errorf("save flow: %w", err)
	}
	o.logger.Info("flow created",
		zap.String("flow_id", f.ID),
		zap.String("project_id", cfg.ProjectID))
	return f.Clone(), nil
}

// Get returns the stored flow.
func (o *Orchestrator) Get(ctx context.Context, id string) (*Flow, error) {
	return o.store.Get(ctx, id)
}

// List returns all stored flows.
func (o *Orchestrator) List(ctx context.Context) ([]*Flow, error) {
	return o.store.List(ctx)
}

// ExecuteFlow runs a created flow through every remaining phase. It blocks
// until the flow completes, fails, or ctx is canceled; callers wanting
// async execution run it in a goroutine. onProgress, when non-nil, receives
// a snapshot after every phase transition and is dispatched on its own
// goroutine so it can never stall the flow.
func (o *Orchestrator) ExecuteFlow(ctx context.Context, id string, onProgress ProgressFunc) (*Flow, error) {
	gate := newPauseGate(false)
	o.mu.Lock()
	if _, busy := o.running[id]; busy {
		o.mu.Unlock()
		f, err := o.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return f, ErrFlowExecuting
	}
	o.running[id] = gate
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.running, id)
		o.mu.Unlock()
	}()

	// The gate is registered before the load, so a concurrent Pause either
	// landed in the store already or routes through the gate; it can never
	// fall between the two and be lost.
	f, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Status.IsTerminal() {
		return f, ErrFlowTerminal
	}
	if f.Status == FlowPaused {
		gate.set(true)
	}

	phases := AllPhases()
	start := indexOf(phases, f.CurrentPhase)
	if start < 0 {
		start = 0
	}

	for _, phase := range phases[start:] {
		if info := f.Phase(phase); info.Status == PhaseDone || info.Status == PhaseSkipped {
			continue
		}
		o.applyGate(ctx, f, gate)
		if err := gate.wait(ctx); err != nil {
			// Canceled while paused: the flow stays paused in the store
			// and a later ExecuteFlow picks it back up.
			return f, err
		}
		o.applyGate(ctx, f, gate)
		if err := o.runPhase(ctx, f, phase, onProgress); err != nil {
			if ctx.Err() != nil {
				// Interrupted, not failed; the phase reruns later.
				return f, err
			}
			o.finishFlow(ctx, f, FlowFailed, onProgress)
			return f, err
		}
	}

	o.applyGate(ctx, f, gate)
	o.finishFlow(ctx, f, FlowCompleted, onProgress)
	return f, nil
}

// applyGate persists pause state changes requested while this executor owned
// the flow's persistence.
func (o *Orchestrator) applyGate(ctx context.Context, f *Flow, gate *pauseGate) {
	msgs, paused, dirty := gate.drain()
	if !dirty {
		return
	}
	for _, msg := range msgs {
		o.recordEvent(ctx, f, f.CurrentPhase, EventInfo, msg, nil)
	}
	f.Status = FlowRunning
	if paused {
		f.Status = FlowPaused
	}
	f.UpdatedAt = o.now()
	o.save(ctx, f)
}

// Pause stops the flow before its next phase starts. The phase currently
// running always finishes.
func (o *Orchestrator) Pause(ctx context.Context, id string) (*Flow, error) {
	return o.setPaused(ctx, id, true)
}

// Resume lets a paused flow continue with its next phase.
func (o *Orchestrator) Resume(ctx context.Context, id string) (*Flow, error) {
	return o.setPaused(ctx, id, false)
}

func (o *Orchestrator) setPaused(ctx context.Context, id string, paused bool) (*Flow, error) {
	msg, status := "flow paused", FlowPaused
	if !paused {
		msg, status = "flow resumed", FlowRunning
	}

	o.mu.Lock()
	if gate := o.running[id]; gate != nil {
		// An executor owns this flow's persistence. Hand it the change so
		// its next save cannot revert the status or drop the event.
		gate.request(paused, msg)
		o.mu.Unlock()
		f, err := o.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		f.Status = status
		o.logger.Info(msg, zap.String("flow_id", id))
		return f, nil
	}
	// No executor: write the store directly. Holding the lock keeps a
	// starting executor from loading a pre-pause snapshot mid-save.
	defer o.mu.Unlock()

	f, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Status.IsTerminal() {
		return f, ErrFlowTerminal
	}
	f.Status = status
	f.UpdatedAt = o.now()
	o.recordEvent(ctx, f, f.CurrentPhase, EventInfo, msg, nil)
	if err := o.store.Save(ctx, f); err != nil {
		return nil, fmt.Errorf("save flow: %w", err)
	}
	o.logger.Info(msg, zap.String("flow_id", id))
	return f.Clone(), nil
}

// runPhase executes one phase end to end: mark running, invoke the phase
// body under the per-phase timeout, then record the outcome. A returned
// error means the flow must stop.
func (o *Orchestrator) runPhase(ctx context.Context, f *Flow, phase Phase, onProgress ProgressFunc) error {
	info := f.Phase(phase)
	startedAt := o.now()
	info.Status = PhaseRunning
	info.StartedAt = &startedAt
	f.CurrentPhase = phase
	f.UpdatedAt = startedAt
	o.recordEvent(ctx, f, phase, EventInfo, fmt.Sprintf("phase %s started", phase), nil)
	o.save(ctx, f)
	o.dispatch(onProgress, f)

	phaseCtx, cancel := context.WithTimeout(ctx, o.timeout)
	skipped, err := o.executePhase(phaseCtx, f, phase)
	cancel()

	completedAt := o.now()
	info.CompletedAt = &completedAt
	f.UpdatedAt = completedAt
	elapsed := completedAt.Sub(startedAt)

	switch {
	case err != nil && ctx.Err() != nil:
		// The caller went away mid-phase. Not a failure: reset the phase
		// so the next ExecuteFlow reruns it, and persist past the dead ctx.
		saveCtx := context.WithoutCancel(ctx)
		info.Status = PhasePending
		info.StartedAt = nil
		info.CompletedAt = nil
		o.recordEvent(saveCtx, f, phase, EventWarning, fmt.Sprintf("phase %s interrupted", phase), nil)
		o.save(saveCtx, f)
		o.dispatch(onProgress, f)
		return err
	case err != nil:
		classified := o.classifier.Classify(errclass.RawError{Message: err.Error()})
		info.Status = PhaseFailed
		info.Error = err.Error()
		o.recordEvent(ctx, f, phase, EventError, fmt.Sprintf("phase %s failed: %v", phase, err), map[string]any{
			"kind":        string(classified.Kind),
			"severity":    string(classified.Severity),
			"recoverable": classified.Recoverable,
		})
		o.logger.Error("phase failed",
			zap.String("flow_id", f.ID),
			zap.String("phase", string(phase)),
			zap.String("kind", string(classified.Kind)),
			zap.Error(err))
	case skipped:
		info.Status = PhaseSkipped
		info.Progress = 100
		o.recordEvent(ctx, f, phase, EventInfo, fmt.Sprintf("phase %s skipped", phase), nil)
	default:
		info.Status = PhaseDone
		info.Progress = 100
		o.recordEvent(ctx, f, phase, EventSuccess, fmt.Sprintf("phase %s completed", phase), nil)
	}

	if o.observer != nil {
		o.observer.ObserveFlowPhase(phase, info.Status, elapsed)
	}
	o.save(ctx, f)
	o.dispatch(onProgress, f)
	return err
}

// executePhase is the phase body dispatch. It returns skipped=true when an
// option disabled the phase.
func (o *Orchestrator) executePhase(ctx context.Context, f *Flow, phase Phase) (skipped bool, err error) {
	cfg := f.Config
	switch phase {
	case PhaseInit:
		return false, nil

	case PhaseE2ETesting:
		if cfg.Options.SkipE2ETests {
			return true, nil
		}
		run, err := callWith(o.breakers, "tests", func() (*TestRunResult, error) {
			return o.collab.Tests.RunSuite(ctx, cfg)
		})
		if err != nil {
			return false, fmt.Errorf("run e2e suite: %w", err)
		}
		f.Outputs.TestRun = run
		if run.PassRate < minPassRate {
			return false, fmt.Errorf("e2e pass rate %.1f%% below %.0f%% threshold: %s",
				run.PassRate, minPassRate, strings.Join(run.Issues, "; "))
		}
		return false, nil

	case PhaseAcceptancePrep:
		// Always runs: the checklist documents the delivery even when the
		// client's acceptance round itself is skipped.
		checklist, err := callWith(o.breakers, "acceptance", func() (*Checklist, error) {
			return o.collab.Acceptance.PrepareChecklist(ctx, cfg)
		})
		if err != nil {
			return false, fmt.Errorf("prepare acceptance checklist: %w", err)
		}
		f.Outputs.Checklist = checklist
		return false, nil

	case PhaseUserAcceptance:
		if cfg.Options.SkipUserAcceptance {
			return true, nil
		}
		result, err := callWith(o.breakers, "acceptance", func() (*AcceptanceResult, error) {
			return o.collab.Acceptance.CollectDecision(ctx, cfg, f.Outputs.Checklist)
		})
		if err != nil {
			return false, fmt.Errorf("collect acceptance decision: %w", err)
		}
		f.Outputs.Acceptance = result
		if result.Outcome != AcceptanceAccepted {
			return false, fmt.Errorf("client rejected acceptance (%d/%d checks passed): %s",
				result.PassedChecks, result.TotalChecks, strings.Join(result.Issues, "; "))
		}
		return false, nil

	case PhaseReportGeneration:
		report, err := callWith(o.breakers, "reports", func() (*ReportResult, error) {
			return o.collab.Reports.Generate(ctx, f)
		})
		if err != nil {
			return false, fmt.Errorf("generate delivery report: %w", err)
		}
		f.Outputs.Report = report
		return false, nil

	case PhaseSignatureCollection:
		if cfg.Options.AutoSign {
			f.Outputs.Signature = &SignatureResult{SignedAt: o.now(), SignedBy: "auto-sign"}
			o.recordEvent(ctx, f, phase, EventInfo, "report auto-signed", nil)
			return false, nil
		}
		sig, err := callWith(o.breakers, "signatures", func() (*SignatureResult, error) {
			return o.collab.Signatures.Collect(ctx, cfg, f.Outputs.Report)
		})
		if err != nil {
			return false, fmt.Errorf("collect signature: %w", err)
		}
		f.Outputs.Signature = sig
		return false, nil

	case PhaseDeployment:
		deploy, err := callWith(o.breakers, "deployer", func() (*DeployResult, error) {
			return o.collab.Deployer.Deploy(ctx, cfg)
		})
		if err != nil {
			return false, fmt.Errorf("deploy to production: %w", err)
		}
		f.Outputs.Deployment = deploy
		return false, nil

	case PhaseNotification:
		return o.notifyAll(ctx, f)

	case PhaseMonitoringSetup:
		if !cfg.Options.EnableMonitoring {
			return true, nil
		}
		mon, err := callWith(o.breakers, "monitoring", func() (*MonitoringResult, error) {
			return o.collab.Monitoring.Provision(ctx, cfg)
		})
		if err != nil {
			return false, fmt.Errorf("provision monitoring: %w", err)
		}
		f.Outputs.Monitoring = mon
		return false, nil

	case PhaseCompleted:
		o.recordEvent(ctx, f, phase, EventSuccess, "delivery completed", map[string]any{
			"project_id": cfg.ProjectID,
		})
		return false, nil
	}
	return false, fmt.Errorf("unknown phase %q", phase)
}

// notifyAll fans out to every configured channel. Partial failure is a
// warning; the phase fails only when every channel fails.
func (o *Orchestrator) notifyAll(ctx context.Context, f *Flow) (bool, error) {
	channels := f.Config.Options.NotifyChannels
	if len(channels) == 0 {
		o.recordEvent(ctx, f, PhaseNotification, EventInfo, "no notification channels configured", nil)
		return false, nil
	}
	failed := 0
	for _, ch := range channels {
		ack, err := callWith(o.breakers, "notifier", func() (NotifyAck, error) {
			a := o.collab.Notifier.Notify(ctx, ch, f.Config, f.Outputs.Deployment)
			return a, nil
		})
		if err != nil {
			ack = NotifyAck{Channel: ch, Sent: false, Error: err.Error()}
		}
		f.Outputs.Notifications = append(f.Outputs.Notifications, ack)
		if !ack.Sent {
			failed++
			o.recordEvent(ctx, f, PhaseNotification, EventWarning,
				fmt.Sprintf("notification to %s failed: %s", ch, ack.Error), nil)
		}
	}
	if failed == len(channels) {
		return false, fmt.Errorf("all %d notification channels failed", failed)
	}
	return false, nil
}

// finishFlow sets the terminal status and persists the final state.
func (o *Orchestrator) finishFlow(ctx context.Context, f *Flow, status FlowStatus, onProgress ProgressFunc) {
	now := o.now()
	f.Status = status
	f.UpdatedAt = now
	f.CompletedAt = &now
	if o.observer != nil {
		o.observer.ObserveFlowFinished(status)
	}
	o.save(ctx, f)
	o.dispatch(onProgress, f)
	o.logger.Info("flow finished",
		zap.String("flow_id", f.ID),
		zap.String("status", string(status)))
}

// recordEvent appends to the timeline and publishes to external consumers.
func (o *Orchestrator) recordEvent(ctx context.Context, f *Flow, phase Phase, sev EventSeverity, msg string, details map[string]any) {
	f.AppendEvent(phase, sev, msg, details)
	if o.publisher == nil {
		return
	}
	ev := f.Timeline[len(f.Timeline)-1]
	if err := o.publisher.PublishTimeline(ctx, f.ID, ev); err != nil {
		o.logger.Warn("publish timeline event",
			zap.String("flow_id", f.ID),
			zap.Error(err))
	}
}

func (o *Orchestrator) save(ctx context.Context, f *Flow) {
	if err := o.store.Save(ctx, f); err != nil {
		o.logger.Warn("save flow", zap.String("flow_id", f.ID), zap.Error(err))
	}
}

func (o *Orchestrator) dispatch(fn ProgressFunc, f *Flow) {
	if fn == nil {
		return
	}
	go fn(f.Clone())
}

func indexOf(phases []Phase, p Phase) int {
	for i, ph := range phases {
		if ph == p {
			return i
		}
	}
	return -1
}

// pauseGate blocks flow progression between phases while paused. While a
// flow executes, pause and resume requests queue here instead of writing the
// store, and the executor drains them at its next save point.
type pauseGate struct {
	mu      sync.Mutex
	paused  bool
	resume  chan struct{}
	pending []string
}

func newPauseGate(paused bool) *pauseGate {
	return &pauseGate{paused: paused, resume: make(chan struct{})}
}

// set flips the gate. Resuming wakes every waiter.
func (g *pauseGate) set(paused bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setLocked(paused)
}

func (g *pauseGate) setLocked(paused bool) {
	if g.paused == paused {
		return
	}
	g.paused = paused
	if !paused {
		close(g.resume)
		g.resume = make(chan struct{})
	}
}

// request flips the gate and queues the timeline message for the executor
// to persist. Requests that don't change the state are dropped.
func (g *pauseGate) request(paused bool, msg string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused == paused {
		return
	}
	g.pending = append(g.pending, msg)
	g.setLocked(paused)
}

// drain hands the queued messages and the current pause state to the
// executor. dirty is false when nothing was requested since the last drain.
func (g *pauseGate) drain() (msgs []string, paused, dirty bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.pending) == 0 {
		return nil, g.paused, false
	}
	msgs = g.pending
	g.pending = nil
	return msgs, g.paused, true
}

// wait blocks until the gate is open or ctx is done.
func (g *pauseGate) wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		if !g.paused {
			g.mu.Unlock()
			return nil
		}
		ch := g.resume
		g.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
