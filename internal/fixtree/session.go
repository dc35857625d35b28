// Package fixtree executes bounded, ordered remediation strategy chains
// against classified errors.
//
// A Session walks the chain configured for the error's kind. Each strategy
// is attempted up to its budget with capped exponential backoff and +-20%
// jitter between attempts. A success or escalated attempt ends the whole
// session; partial and skipped attempts advance to the next strategy. Every
// chain ends in a terminal strategy (escalate or manual), so every session
// reaches a terminal status within the sum of its attempt budgets.
package fixtree

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deliverd/internal/errclass"
)

// ErrSessionTerminal is returned when escalating a session that already
// reached a terminal status.
var ErrSessionTerminal = errors.New("fixtree: session already terminal")

// Runner executes the body of one strategy attempt. Implementations perform
// the real remediation side effect (reconnect, refresh credentials, page an
// operator) and report how the attempt went. Errors and panics inside Apply
// are converted into failed attempts; they never abort the session loop.
type Runner interface {
	Apply(ctx context.Context, strategy Strategy, attempt int, original errclass.ClassifiedError) (AttemptResult, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, strategy Strategy, attempt int, original errclass.ClassifiedError) (AttemptResult, error)

// Apply implements Runner.
func (f RunnerFunc) Apply(ctx context.Context, strategy Strategy, attempt int, original errclass.ClassifiedError) (AttemptResult, error) {
	return f(ctx, strategy, attempt, original)
}

// Observer receives attempt and session outcomes, typically for metrics.
type Observer interface {
	ObserveFixAttempt(strategy StrategyType, result AttemptResult)
	ObserveFixSession(status SessionStatus)
}

// SessionPublisher announces terminal session states to external consumers.
// Publishing is best effort; failures are logged and never fail the session.
type SessionPublisher interface {
	PublishFixSession(ctx context.Context, s *Session) error
}

// Options configures a Service.
type Options struct {
	// Chains overrides DefaultChains.
	Chains Chains
	// Logger defaults to zap.NewNop().
	Logger *zap.Logger
	// Observer may be nil.
	Observer Observer
	// Publisher may be nil.
	Publisher SessionPublisher
}

// Service creates and drives fix sessions. Sessions for distinct errors run
// independently; each carries its own jitter source and cancellable wait, so
// one session's backoff never blocks another.
type Service struct {
	store     SessionStore
	runner    Runner
	chains    Chains
	logger    *zap.Logger
	observer  Observer
	publisher SessionPublisher

	mu      sync.Mutex
	running map[string]*runningSession

	// test seams
	sleep   func(ctx context.Context, d time.Duration) error
	newRand func() *rand.Rand
}

type runningSession struct {
	cancel    context.CancelFunc
	escalated bool
}

// NewService builds a Service. The chain configuration is validated up
// front so a malformed chain can never strand a session.
func NewService(store SessionStore, runner Runner, opts Options) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("fixtree: store is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("fixtree: runner is required")
	}
	chains := opts.Chains
	if chains == nil {
		chains = DefaultChains()
	}
	if err := chains.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		runner:    runner,
		chains:    chains,
		logger:    logger,
		observer:  opts.Observer,
		publisher: opts.Publisher,
		running:   map[string]*runningSession{},
		sleep:     sleepCtx,
		newRand:   func() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) },
	}, nil
}

// SetChains swaps the chain configuration for future sessions. Sessions in
// flight keep their copied strategies.
func (s *Service) SetChains(chains Chains) error {
	if err := chains.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.chains = chains
	s.mu.Unlock()
	return nil
}

// Get loads a session by id.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.store.Get(ctx, id)
}

// StartFix creates a session for the classified error and runs its chain to
// a terminal status. The call is synchronous; use StartFixAsync when the
// caller must not block.
func (s *Service) StartFix(ctx context.Context, ce errclass.ClassifiedError) (*Session, error) {
	sess, rs, runCtx, cancel, err := s.begin(ctx, ce)
	if err != nil {
		return nil, err
	}
	defer s.end(sess.ID, cancel)
	return s.run(runCtx, sess, rs)
}

// StartFixAsync creates and persists the session, then runs the chain on
// its own goroutine. It returns immediately with the session still in
// fixing status; callers follow up via Get or Escalate. The run is detached
// from ctx so an HTTP request ending does not abort the remediation.
func (s *Service) StartFixAsync(ctx context.Context, ce errclass.ClassifiedError) (*Session, error) {
	sess, rs, runCtx, cancel, err := s.begin(context.WithoutCancel(ctx), ce)
	if err != nil {
		return nil, err
	}
	snapshot := sess.Clone()
	go func() {
		defer s.end(sess.ID, cancel)
		_, _ = s.run(runCtx, sess, rs)
	}()
	return snapshot, nil
}

// begin builds and persists a fresh session and registers it as running so
// Escalate can reach it before the first attempt.
func (s *Service) begin(ctx context.Context, ce errclass.ClassifiedError) (*Session, *runningSession, context.Context, context.CancelFunc, error) {
	s.mu.Lock()
	chain := s.chains.For(ce.Kind)
	s.mu.Unlock()

	sess := &Session{
		ID:            uuid.NewString(),
		OriginalError: ce,
		Strategies:    append([]Strategy(nil), chain...),
		Status:        StatusFixing,
		StartedAt:     time.Now().UTC(),
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("fixtree: save session: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	rs := &runningSession{cancel: cancel}
	s.mu.Lock()
	s.running[sess.ID] = rs
	s.mu.Unlock()
	return sess, rs, runCtx, cancel, nil
}

func (s *Service) end(id string, cancel context.CancelFunc) {
	cancel()
	s.mu.Lock()
	delete(s.running, id)
	s.mu.Unlock()
}

// Escalate stops a session immediately: no further attempts are scheduled
// and the session terminates as escalated. Safe to call from any goroutine.
func (s *Service) Escalate(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	rs, inFlight := s.running[id]
	if inFlight {
		rs.escalated = true
		rs.cancel()
	}
	s.mu.Unlock()

	if inFlight {
		// The running loop finalizes the session; report current state.
		return s.store.Get(ctx, id)
	}

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status.IsTerminal() {
		return sess, ErrSessionTerminal
	}
	s.finalize(ctx, sess, StatusEscalated)
	return sess, nil
}

func (s *Service) run(ctx context.Context, sess *Session, rs *runningSession) (*Session, error) {
	rnd := s.newRand()
	log := s.logger.With(
		zap.String("session_id", sess.ID),
		zap.String("error_kind", string(sess.OriginalError.Kind)),
	)

	for i := sess.StrategyIndex; i < len(sess.Strategies); i++ {
		// Escalation and cancellation stop scheduling immediately, even
		// when the previous attempt ended without a backoff wait.
		if err := ctx.Err(); err != nil {
			return s.handleCancel(ctx, sess, rs, err)
		}
		sess.StrategyIndex = i
		strat := sess.Strategies[i]

		if strat.Type.IsTerminal() {
			// The runner still fires so the handoff side effect (paging,
			// ticket creation) happens, but the terminal status is decided
			// by the strategy type, not the runner's answer.
			_, applyErr := s.apply(ctx, strat, 1, sess)
			s.recordAttempt(ctx, sess, strat, 1, AttemptEscalated, 0, applyErr)
			if strat.Type == StrategyManual {
				s.finalize(ctx, sess, StatusManual)
			} else {
				s.finalize(ctx, sess, StatusEscalated)
			}
			return sess, nil
		}

	attempts:
		for attempt := 1; attempt <= strat.MaxAttempts; attempt++ {
			if err := ctx.Err(); err != nil {
				return s.handleCancel(ctx, sess, rs, err)
			}
			start := time.Now()
			result, applyErr := s.apply(ctx, strat, attempt, sess)
			dur := time.Since(start)
			s.recordAttempt(ctx, sess, strat, attempt, result, dur, applyErr)

			switch result {
			case AttemptSuccess:
				s.finalize(ctx, sess, StatusSuccess)
				return sess, nil
			case AttemptEscalated:
				s.finalize(ctx, sess, StatusEscalated)
				return sess, nil
			case AttemptPartial, AttemptSkipped:
				// Strategy did its job (or was not applicable); move on
				// without burning the remaining attempts.
				break attempts
			case AttemptFailed:
				if attempt == strat.MaxAttempts {
					break attempts
				}
				delay := delayForAttempt(strat, attempt, rnd)
				log.Debug("fix attempt failed, backing off",
					zap.String("strategy", string(strat.Type)),
					zap.Int("attempt", attempt),
					zap.Duration("delay", delay),
				)
				if err := s.sleep(ctx, delay); err != nil {
					return s.handleCancel(ctx, sess, rs, err)
				}
			}
		}
	}

	// Chain validation guarantees a terminal strategy, so reaching here
	// means the configuration was bypassed; fail closed.
	s.finalize(ctx, sess, StatusFailed)
	return sess, nil
}

// apply invokes the runner, converting errors and panics into attempt
// results so the loop always makes forward progress.
func (s *Service) apply(ctx context.Context, strat Strategy, attempt int, sess *Session) (result AttemptResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = AttemptFailed
			err = fmt.Errorf("strategy %s panicked: %v", strat.Type, r)
		}
	}()
	result, err = s.runner.Apply(ctx, strat, attempt, sess.OriginalError)
	if err != nil && result != AttemptEscalated {
		result = AttemptFailed
	}
	if result == "" {
		result = AttemptFailed
	}
	return result, err
}

func (s *Service) recordAttempt(ctx context.Context, sess *Session, strat Strategy, attempt int, result AttemptResult, dur time.Duration, applyErr error) {
	rec := Attempt{
		Strategy:    strat.Type,
		Attempt:     attempt,
		MaxAttempts: strat.MaxAttempts,
		Result:      result,
		Duration:    dur,
		Timestamp:   time.Now().UTC(),
	}
	if applyErr != nil {
		rec.Error = applyErr.Error()
	}
	sess.Attempts = append(sess.Attempts, rec)
	if s.observer != nil {
		s.observer.ObserveFixAttempt(strat.Type, result)
	}
	if err := s.store.Save(ctx, sess); err != nil {
		s.logger.Warn("failed to persist fix attempt",
			zap.String("session_id", sess.ID), zap.Error(err))
	}
}

func (s *Service) handleCancel(ctx context.Context, sess *Session, rs *runningSession, cause error) (*Session, error) {
	s.mu.Lock()
	escalated := rs != nil && rs.escalated
	s.mu.Unlock()
	if escalated {
		s.finalize(context.WithoutCancel(ctx), sess, StatusEscalated)
		return sess, nil
	}
	return sess, cause
}

func (s *Service) finalize(ctx context.Context, sess *Session, status SessionStatus) {
	now := time.Now().UTC()
	sess.Status = status
	sess.CompletedAt = &now
	sess.HumanSummary = humanSummary(sess)
	if s.observer != nil {
		s.observer.ObserveFixSession(status)
	}
	if err := s.store.Save(ctx, sess); err != nil {
		s.logger.Warn("failed to persist terminal session",
			zap.String("session_id", sess.ID), zap.Error(err))
	}
	if s.publisher != nil {
		if err := s.publisher.PublishFixSession(ctx, sess); err != nil {
			s.logger.Warn("failed to publish terminal session",
				zap.String("session_id", sess.ID), zap.Error(err))
		}
	}
	s.logger.Info("fix session finished",
		zap.String("session_id", sess.ID),
		zap.String("status", string(status)),
		zap.Int("attempts", len(sess.Attempts)),
	)
}

// sleepCtx waits for d or until ctx is done. The wait is a real timer, not
// a busy loop, and cancellation interrupts it immediately.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
