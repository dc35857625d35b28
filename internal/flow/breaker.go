package flow

import (
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	breakerFailureThreshold = 3
	breakerOpenTimeout      = 30 * time.Second
)

// breakerSet holds one circuit breaker per external collaborator so a
// flapping deployer cannot poison calls to the notifier.
type breakerSet struct {
	breakers map[string]*gobreaker.CircuitBreaker
}

func newBreakerSet(logger *zap.Logger) *breakerSet {
	names := []string{"tests", "acceptance", "reports", "signatures", "deployer", "notifier", "monitoring"}
	set := &breakerSet{breakers: make(map[string]*gobreaker.CircuitBreaker, len(names))}
	for _, name := range names {
		set.breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: breakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailureThreshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("collaborator breaker state change",
					zap.String("collaborator", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
	}
	return set
}

// call runs fn through the named collaborator's breaker.
func (s *breakerSet) call(name string, fn func() (any, error)) (any, error) {
	cb, ok := s.breakers[name]
	if !ok {
		return fn()
	}
	return cb.Execute(fn)
}

// callWith is a typed convenience over call.
func callWith[T any](s *breakerSet, name string, fn func() (T, error)) (T, error) {
	res, err := s.call(name, func() (any, error) { return fn() })
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}
