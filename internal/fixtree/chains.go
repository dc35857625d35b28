package fixtree

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/deliverd/internal/errclass"
)

// Chains maps an error kind to its ordered strategy chain. Every chain must
// end in a terminal strategy so a session always reaches a terminal status
// within the sum of the chain's attempt budgets.
type Chains map[errclass.Kind][]Strategy

// DefaultChains is the built-in strategy configuration.
func DefaultChains() Chains {
	return Chains{
		errclass.KindNetwork: {
			{Type: StrategyReconnect, MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second, BackoffMultiplier: 2},
			{Type: StrategyRetry, MaxAttempts: 2, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second, BackoffMultiplier: 2},
			{Type: StrategyEscalate, MaxAttempts: 1},
		},
		errclass.KindTimeout: {
			{Type: StrategyRetry, MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffMultiplier: 2},
			{Type: StrategyReduceLoad, MaxAttempts: 2, BaseDelay: 5 * time.Second, MaxDelay: time.Minute, BackoffMultiplier: 2},
			{Type: StrategyEscalate, MaxAttempts: 1},
		},
		errclass.KindRateLimit: {
			{Type: StrategyReduceLoad, MaxAttempts: 4, BaseDelay: 5 * time.Second, MaxDelay: 2 * time.Minute, BackoffMultiplier: 2},
			{Type: StrategyEscalate, MaxAttempts: 1},
		},
		errclass.KindAuth: {
			{Type: StrategyRefreshAuth, MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: 10 * time.Second, BackoffMultiplier: 2},
			{Type: StrategyEscalate, MaxAttempts: 1},
		},
		// Authorization denials are never retried automatically.
		errclass.KindPermission: {
			{Type: StrategyEscalate, MaxAttempts: 1},
		},
		// Rejected input needs a human change, not a retry.
		errclass.KindValidation: {
			{Type: StrategyManual, MaxAttempts: 1},
		},
		errclass.KindResource: {
			{Type: StrategyClearCache, MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: 10 * time.Second, BackoffMultiplier: 2},
			{Type: StrategyRestartService, MaxAttempts: 1, BaseDelay: 5 * time.Second, MaxDelay: 5 * time.Second, BackoffMultiplier: 1},
			{Type: StrategyEscalate, MaxAttempts: 1},
		},
		errclass.KindDependency: {
			{Type: StrategyRetry, MaxAttempts: 3, BaseDelay: 3 * time.Second, MaxDelay: time.Minute, BackoffMultiplier: 2},
			{Type: StrategyEscalate, MaxAttempts: 1},
		},
		errclass.KindData: {
			{Type: StrategyRollback, MaxAttempts: 1, BaseDelay: time.Second, MaxDelay: time.Second, BackoffMultiplier: 1},
			{Type: StrategyManual, MaxAttempts: 1},
		},
		errclass.KindUnknown: {
			{Type: StrategyRetry, MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: 15 * time.Second, BackoffMultiplier: 2},
			{Type: StrategyEscalate, MaxAttempts: 1},
		},
	}
}

// For returns the chain for a kind, falling back to the unknown chain so a
// session can always be built.
func (c Chains) For(kind errclass.Kind) []Strategy {
	if chain, ok := c[kind]; ok {
		return chain
	}
	return c[errclass.KindUnknown]
}

// Validate checks every chain is non-empty, ends in a terminal strategy,
// and has sane attempt budgets.
func (c Chains) Validate() error {
	if _, ok := c[errclass.KindUnknown]; !ok {
		return fmt.Errorf("chains: missing fallback chain for kind %q", errclass.KindUnknown)
	}
	for kind, chain := range c {
		if len(chain) == 0 {
			return fmt.Errorf("chains: empty chain for kind %q", kind)
		}
		for i, s := range chain {
			if s.MaxAttempts < 1 {
				return fmt.Errorf("chains: %q strategy %d (%s): max_attempts must be >= 1", kind, i, s.Type)
			}
			if s.Type.IsTerminal() && s.MaxAttempts != 1 {
				return fmt.Errorf("chains: %q strategy %d (%s): terminal strategies take exactly one attempt", kind, i, s.Type)
			}
			if s.BackoffMultiplier < 0 {
				return fmt.Errorf("chains: %q strategy %d (%s): backoff_multiplier must be >= 0", kind, i, s.Type)
			}
			if s.MaxDelay > 0 && s.BaseDelay > s.MaxDelay {
				return fmt.Errorf("chains: %q strategy %d (%s): base_delay exceeds max_delay", kind, i, s.Type)
			}
		}
		if last := chain[len(chain)-1]; !last.Type.IsTerminal() {
			return fmt.Errorf("chains: %q chain must end in escalate or manual, ends in %q", kind, last.Type)
		}
	}
	return nil
}
