package fixtree

import (
	"time"

	"github.com/fyrsmithlabs/deliverd/internal/errclass"
)

// StrategyType identifies one automated remediation technique.
type StrategyType string

const (
	// StrategyRetry re-invokes the failed operation unchanged.
	StrategyRetry StrategyType = "retry"
	// StrategyReconnect tears down and re-establishes a connection first.
	StrategyReconnect StrategyType = "reconnect"
	// StrategyRefreshAuth refreshes credentials before retrying.
	StrategyRefreshAuth StrategyType = "refresh_auth"
	// StrategyReduceLoad waits out throttling with longer pauses.
	StrategyReduceLoad StrategyType = "reduce_load"
	// StrategyClearCache evicts local caches that may hold bad state.
	StrategyClearCache StrategyType = "clear_cache"
	// StrategyRestartService restarts the affected worker or service.
	StrategyRestartService StrategyType = "restart_service"
	// StrategyRollback reverts to the last known-good state.
	StrategyRollback StrategyType = "rollback"
	// StrategyEscalate hands the error to a human operator and pages.
	StrategyEscalate StrategyType = "escalate"
	// StrategyManual hands the error to a human without paging.
	StrategyManual StrategyType = "manual"
)

// IsTerminal reports whether the strategy ends automated remediation.
func (t StrategyType) IsTerminal() bool {
	return t == StrategyEscalate || t == StrategyManual
}

// Strategy is static configuration for one remediation technique within a
// chain. BaseDelay/MaxDelay/BackoffMultiplier shape the inter-attempt wait:
// min(base * multiplier^(attempt-1), max), then +-20% jitter.
type Strategy struct {
	Type              StrategyType  `json:"type" koanf:"type"`
	MaxAttempts       int           `json:"max_attempts" koanf:"max_attempts"`
	BaseDelay         time.Duration `json:"base_delay" koanf:"base_delay"`
	MaxDelay          time.Duration `json:"max_delay" koanf:"max_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier" koanf:"backoff_multiplier"`
}

// AttemptResult is the outcome of one strategy attempt.
type AttemptResult string

const (
	// AttemptSuccess terminates the whole session successfully.
	AttemptSuccess AttemptResult = "success"
	// AttemptPartial means the strategy did its job; the session advances
	// to the next strategy without exhausting remaining attempts.
	AttemptPartial AttemptResult = "partial"
	// AttemptFailed retries the same strategy until attempts run out.
	AttemptFailed AttemptResult = "failed"
	// AttemptSkipped counts as handled and advances to the next strategy.
	AttemptSkipped AttemptResult = "skipped"
	// AttemptEscalated terminates the whole session immediately.
	AttemptEscalated AttemptResult = "escalated"
)

// Attempt is one append-only entry in a session's attempt log.
type Attempt struct {
	Strategy    StrategyType  `json:"strategy"`
	Attempt     int           `json:"attempt"`
	MaxAttempts int           `json:"max_attempts"`
	Result      AttemptResult `json:"result"`
	Duration    time.Duration `json:"duration_ms"`
	Timestamp   time.Time     `json:"timestamp"`
	Error       string        `json:"error,omitempty"`
}

// SessionStatus is the lifecycle state of a fix session. Exactly one
// terminal status is reachable per run; once set it never changes.
type SessionStatus string

const (
	StatusFixing    SessionStatus = "fixing"
	StatusSuccess   SessionStatus = "success"
	StatusFailed    SessionStatus = "failed"
	StatusEscalated SessionStatus = "escalated"
	StatusManual    SessionStatus = "manual"
)

// IsTerminal reports whether the session has finished.
func (s SessionStatus) IsTerminal() bool {
	return s != StatusFixing
}

// Session is one remediation run against a classified error. Strategies are
// copied from configuration at creation so later rule reloads cannot change
// a session in flight.
type Session struct {
	ID            string                   `json:"id"`
	OriginalError errclass.ClassifiedError `json:"original_error"`
	Strategies    []Strategy               `json:"strategies"`
	StrategyIndex int                      `json:"strategy_index"`
	Attempts      []Attempt                `json:"attempts"`
	Status        SessionStatus            `json:"status"`
	StartedAt     time.Time                `json:"started_at"`
	CompletedAt   *time.Time               `json:"completed_at,omitempty"`

	// HumanSummary is a non-technical account of the run, rendered once a
	// terminal status is reached. Kept apart from code/message fields.
	HumanSummary string `json:"human_summary,omitempty"`
}

// MaxTotalAttempts is the hard ceiling on the attempt log: the sum of
// MaxAttempts across the session's strategies.
func (s *Session) MaxTotalAttempts() int {
	total := 0
	for _, st := range s.Strategies {
		total += st.MaxAttempts
	}
	return total
}

// Clone returns a deep copy safe to hand to observers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Strategies = append([]Strategy(nil), s.Strategies...)
	out.Attempts = append([]Attempt(nil), s.Attempts...)
	if s.CompletedAt != nil {
		ts := *s.CompletedAt
		out.CompletedAt = &ts
	}
	return &out
}
