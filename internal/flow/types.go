package flow

import (
	"fmt"
	"time"
)

// Phase names one discrete stage of the delivery workflow. The order is
// fixed; see AllPhases.
type Phase string

const (
	PhaseInit                Phase = "init"
	PhaseE2ETesting          Phase = "e2e_testing"
	PhaseAcceptancePrep      Phase = "acceptance_prep"
	PhaseUserAcceptance      Phase = "user_acceptance"
	PhaseReportGeneration    Phase = "report_generation"
	PhaseSignatureCollection Phase = "signature_collection"
	PhaseDeployment          Phase = "deployment"
	PhaseNotification        Phase = "notification"
	PhaseMonitoringSetup     Phase = "monitoring_setup"
	PhaseCompleted           Phase = "completed"
)

// AllPhases returns the fixed execution order. Progression is monotonic
// along this order; a failure halts the flow and never reorders or repeats
// phases.
func AllPhases() []Phase {
	return []Phase{
		PhaseInit,
		PhaseE2ETesting,
		PhaseAcceptancePrep,
		PhaseUserAcceptance,
		PhaseReportGeneration,
		PhaseSignatureCollection,
		PhaseDeployment,
		PhaseNotification,
		PhaseMonitoringSetup,
		PhaseCompleted,
	}
}

// PhaseStatus is the completion status of a single phase. Phases are
// atomic: progress is 0 until a phase finishes (completed or skipped), then
// 100.
type PhaseStatus string

const (
	PhasePending PhaseStatus = "pending"
	PhaseRunning PhaseStatus = "running"
	PhaseDone    PhaseStatus = "completed"
	PhaseFailed  PhaseStatus = "failed"
	PhaseSkipped PhaseStatus = "skipped"
)

// FlowStatus is the overall state of a delivery flow. running and paused
// are live; completed and failed are terminal.
type FlowStatus string

const (
	FlowRunning   FlowStatus = "running"
	FlowPaused    FlowStatus = "paused"
	FlowCompleted FlowStatus = "completed"
	FlowFailed    FlowStatus = "failed"
)

// IsTerminal reports whether the flow can no longer progress.
func (s FlowStatus) IsTerminal() bool {
	return s == FlowCompleted || s == FlowFailed
}

// EventSeverity tags timeline events for consumers.
type EventSeverity string

const (
	EventInfo    EventSeverity = "info"
	EventSuccess EventSeverity = "success"
	EventWarning EventSeverity = "warning"
	EventError   EventSeverity = "error"
)

// TimelineEvent is one append-only audit record. Events are never mutated
// or removed; the timeline is the durable record of what the flow did.
type TimelineEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Phase     Phase          `json:"phase"`
	Message   string         `json:"message"`
	Severity  EventSeverity  `json:"severity"`
	Details   map[string]any `json:"details,omitempty"`
}

// PhaseInfo tracks one phase inside a flow.
type PhaseInfo struct {
	Name        Phase       `json:"name"`
	Status      PhaseStatus `json:"status"`
	Progress    int         `json:"progress"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// Options toggles optional behavior for one delivery.
type Options struct {
	SkipE2ETests       bool     `json:"skip_e2e_tests" koanf:"skip_e2e_tests"`
	SkipUserAcceptance bool     `json:"skip_user_acceptance" koanf:"skip_user_acceptance"`
	AutoSign           bool     `json:"auto_sign" koanf:"auto_sign"`
	NotifyChannels     []string `json:"notify_channels" koanf:"notify_channels"`
	EnableMonitoring   bool     `json:"enable_monitoring" koanf:"enable_monitoring"`
}

// Config is the immutable input that starts a flow.
type Config struct {
	ProjectID   string            `json:"project_id"`
	ProjectName string            `json:"project_name"`
	ProductType string            `json:"product_type"`
	ClientName  string            `json:"client_name"`
	ClientEmail string            `json:"client_email"`
	ProductURL  string            `json:"product_url"`
	AdminURL    string            `json:"admin_url,omitempty"`
	Credentials map[string]string `json:"credentials,omitempty"`
	Options     Options           `json:"options"`
}

// Validate checks the fields a flow cannot start without.
func (c Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("flow config: project_id is required")
	}
	if c.ProjectName == "" {
		return fmt.Errorf("flow config: project_name is required")
	}
	if c.ProductURL == "" {
		return fmt.Errorf("flow config: product_url is required")
	}
	return nil
}

// Outputs aggregates the typed results of every collaborator call.
type Outputs struct {
	TestRun       *TestRunResult     `json:"test_run,omitempty"`
	Checklist     *Checklist         `json:"checklist,omitempty"`
	Acceptance    *AcceptanceResult  `json:"acceptance,omitempty"`
	Report        *ReportResult      `json:"report,omitempty"`
	Signature     *SignatureResult   `json:"signature,omitempty"`
	Deployment    *DeployResult      `json:"deployment,omitempty"`
	Notifications []NotifyAck        `json:"notifications,omitempty"`
	Monitoring    *MonitoringResult  `json:"monitoring,omitempty"`
}

// Flow is one delivery execution. Mutated only by the Orchestrator; once
// the status leaves running/paused the flow is terminal.
type Flow struct {
	ID           string          `json:"id"`
	Config       Config          `json:"config"`
	CurrentPhase Phase           `json:"current_phase"`
	Phases       []PhaseInfo     `json:"phases"`
	Status       FlowStatus      `json:"status"`
	Outputs      Outputs         `json:"outputs"`
	Timeline     []TimelineEvent `json:"timeline"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// Phase returns the tracked info for a phase name, or nil.
func (f *Flow) Phase(name Phase) *PhaseInfo {
	for i := range f.Phases {
		if f.Phases[i].Name == name {
			return &f.Phases[i]
		}
	}
	return nil
}

// AppendEvent adds an audit record to the timeline.
func (f *Flow) AppendEvent(phase Phase, severity EventSeverity, message string, details map[string]any) {
	f.Timeline = append(f.Timeline, TimelineEvent{
		Timestamp: time.Now().UTC(),
		Phase:     phase,
		Message:   message,
		Severity:  severity,
		Details:   details,
	})
}

// Clone returns a deep copy safe to hand to observers and callbacks.
func (f *Flow) Clone() *Flow {
	if f == nil {
		return nil
	}
	out := *f
	out.Phases = append([]PhaseInfo(nil), f.Phases...)
	for i := range out.Phases {
		out.Phases[i].StartedAt = copyTime(f.Phases[i].StartedAt)
		out.Phases[i].CompletedAt = copyTime(f.Phases[i].CompletedAt)
	}
	out.Timeline = append([]TimelineEvent(nil), f.Timeline...)
	out.CompletedAt = copyTime(f.CompletedAt)
	if f.Config.Credentials != nil {
		out.Config.Credentials = make(map[string]string, len(f.Config.Credentials))
		for k, v := range f.Config.Credentials {
			out.Config.Credentials[k] = v
		}
	}
	out.Config.Options.NotifyChannels = append([]string(nil), f.Config.Options.NotifyChannels...)
	out.Outputs.Notifications = append([]NotifyAck(nil), f.Outputs.Notifications...)
	return &out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	ts := *t
	return &ts
}

// ProgressFunc receives a full flow snapshot after every phase transition.
// The orchestrator dispatches callbacks fire-and-continue; a slow observer
// never blocks the flow.
type ProgressFunc func(*Flow)
