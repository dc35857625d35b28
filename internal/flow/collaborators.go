package flow

import (
	"context"
	"fmt"
	"time"
)

// TestRunResult summarizes one end-to-end suite run.
type TestRunResult struct {
	TotalTests  int      `json:"total_tests"`
	PassedTests int      `json:"passed_tests"`
	FailedTests int      `json:"failed_tests"`
	PassRate    float64  `json:"pass_rate"`
	Issues      []string `json:"issues,omitempty"`
}

// ChecklistItem is one verification the client walks through.
type ChecklistItem struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Checklist is the acceptance checklist prepared before user acceptance.
type Checklist struct {
	Items []ChecklistItem `json:"items"`
}

// AcceptanceOutcome is the client's verdict on the checklist.
type AcceptanceOutcome string

const (
	AcceptanceAccepted AcceptanceOutcome = "accepted"
	AcceptanceRejected AcceptanceOutcome = "rejected"
)

// AcceptanceResult is the outcome of the user acceptance phase.
type AcceptanceResult struct {
	TotalChecks    int               `json:"total_checks"`
	PassedChecks   int               `json:"passed_checks"`
	AcceptanceRate float64           `json:"acceptance_rate"`
	Issues         []string          `json:"issues,omitempty"`
	Outcome        AcceptanceOutcome `json:"outcome"`
}

// ReportResult points at the generated delivery report.
type ReportResult struct {
	ReportID  string `json:"report_id"`
	ReportURL string `json:"report_url"`
}

// SignatureResult records the client's sign-off.
type SignatureResult struct {
	SignedAt time.Time `json:"signed_at"`
	SignedBy string    `json:"signed_by"`
}

// DeployResult records the production deployment.
type DeployResult struct {
	ProductURL string    `json:"product_url"`
	Version    string    `json:"version"`
	DeployedAt time.Time `json:"deployed_at"`
}

// NotifyAck is one channel's delivery acknowledgement.
type NotifyAck struct {
	Channel string `json:"channel"`
	Sent    bool   `json:"sent"`
	Error   string `json:"error,omitempty"`
}

// MonitoringResult records the provisioned monitoring endpoints.
type MonitoringResult struct {
	StatusPageURL string `json:"status_page_url"`
	MonitoringURL string `json:"monitoring_url"`
}

// TestRunner executes the end-to-end suite against the deployed product.
type TestRunner interface {
	RunSuite(ctx context.Context, cfg Config) (*TestRunResult, error)
}

// AcceptanceCollector prepares the checklist and gathers the client's
// decision.
type AcceptanceCollector interface {
	PrepareChecklist(ctx context.Context, cfg Config) (*Checklist, error)
	CollectDecision(ctx context.Context, cfg Config, checklist *Checklist) (*AcceptanceResult, error)
}

// ReportGenerator renders the delivery report.
type ReportGenerator interface {
	Generate(ctx context.Context, f *Flow) (*ReportResult, error)
}

// SignatureCollector obtains the client signature on the report.
type SignatureCollector interface {
	Collect(ctx context.Context, cfg Config, report *ReportResult) (*SignatureResult, error)
}

// Deployer promotes the build to production.
type Deployer interface {
	Deploy(ctx context.Context, cfg Config) (*DeployResult, error)
}

// Notifier sends a delivery notification over one named channel.
type Notifier interface {
	Notify(ctx context.Context, channel string, cfg Config, deploy *DeployResult) NotifyAck
}

// MonitorProvisioner stands up post-delivery monitoring.
type MonitorProvisioner interface {
	Provision(ctx context.Context, cfg Config) (*MonitoringResult, error)
}

// Collaborators bundles every external system the orchestrator drives.
type Collaborators struct {
	Tests      TestRunner
	Acceptance AcceptanceCollector
	Reports    ReportGenerator
	Signatures SignatureCollector
	Deployer   Deployer
	Notifier   Notifier
	Monitoring MonitorProvisioner
}

// Validate ensures no collaborator is missing before a flow starts.
func (c Collaborators) Validate() error {
	switch {
	case c.Tests == nil:
		return fmt.Errorf("collaborators: test runner is required")
	case c.Acceptance == nil:
		return fmt.Errorf("collaborators: acceptance collector is required")
	case c.Reports == nil:
		return fmt.Errorf("collaborators: report generator is required")
	case c.Signatures == nil:
		return fmt.Errorf("collaborators: signature collector is required")
	case c.Deployer == nil:
		return fmt.Errorf("collaborators: deployer is required")
	case c.Notifier == nil:
		return fmt.Errorf("collaborators: notifier is required")
	case c.Monitoring == nil:
		return fmt.Errorf("collaborators: monitor provisioner is required")
	}
	return nil
}
