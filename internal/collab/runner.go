package collab

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deliverd/internal/errclass"
	"github.com/fyrsmithlabs/deliverd/internal/fixtree"
)

// ProbeRunner is the built-in fix strategy runner. Retry-shaped strategies
// re-probe a health URL to decide whether the failure cleared; strategies
// with no local equivalent report skipped so the chain advances; terminal
// strategies log the handoff.
type ProbeRunner struct {
	probeURL string
	client   *http.Client
	logger   *zap.Logger
}

var _ fixtree.Runner = (*ProbeRunner)(nil)

// NewProbeRunner builds a runner probing probeURL. An empty URL disables
// probing; every probe-backed strategy then reports skipped.
func NewProbeRunner(probeURL string, logger *zap.Logger) *ProbeRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProbeRunner{
		probeURL: probeURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

// Apply implements fixtree.Runner.
func (r *ProbeRunner) Apply(ctx context.Context, strategy fixtree.Strategy, attempt int, original errclass.ClassifiedError) (fixtree.AttemptResult, error) {
	log := r.logger.With(
		zap.String("strategy", string(strategy.Type)),
		zap.Int("attempt", attempt),
		zap.String("error_kind", string(original.Kind)),
	)

	switch strategy.Type {
	case fixtree.StrategyEscalate:
		log.Warn("escalating to a human operator",
			zap.String("error", original.Message))
		return fixtree.AttemptEscalated, nil

	case fixtree.StrategyManual:
		log.Info("handing off for manual resolution",
			zap.String("error", original.Message))
		return fixtree.AttemptEscalated, nil

	case fixtree.StrategyRetry, fixtree.StrategyReconnect, fixtree.StrategyReduceLoad:
		if r.probeURL == "" {
			return fixtree.AttemptSkipped, nil
		}
		if err := r.probe(ctx); err != nil {
			return fixtree.AttemptFailed, fmt.Errorf("probe %s: %w", r.probeURL, err)
		}
		log.Info("probe healthy, treating failure as cleared")
		return fixtree.AttemptSuccess, nil

	default:
		// refresh_auth, clear_cache, restart_service, rollback need a
		// real integration; report skipped so the chain moves on.
		log.Debug("strategy has no local implementation")
		return fixtree.AttemptSkipped, nil
	}
}

func (r *ProbeRunner) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.probeURL, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
