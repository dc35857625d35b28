package fixtree

import (
	"fmt"
	"strings"
)

// strategyLabels render strategy types for a non-technical reader.
var strategyLabels = map[StrategyType]string{
	StrategyRetry:          "retrying the operation",
	StrategyReconnect:      "re-establishing the connection",
	StrategyRefreshAuth:    "refreshing credentials",
	StrategyReduceLoad:     "waiting for the service to recover",
	StrategyClearCache:     "clearing cached state",
	StrategyRestartService: "restarting the affected service",
	StrategyRollback:       "reverting to the last good state",
	StrategyEscalate:       "handing off to an operator",
	StrategyManual:         "requesting a manual fix",
}

// humanSummary renders a plain-language account of a finished session. It is
// intentionally free of codes, stack traces, and internal identifiers; the
// technical detail stays on the attempt log and the original error.
func humanSummary(sess *Session) string {
	attempts := len(sess.Attempts)
	plural := "attempts"
	if attempts == 1 {
		plural = "attempt"
	}

	var b strings.Builder
	switch sess.Status {
	case StatusSuccess:
		last := lastStrategy(sess)
		fmt.Fprintf(&b, "The issue was resolved automatically after %d %s", attempts, plural)
		if label, ok := strategyLabels[last]; ok {
			fmt.Fprintf(&b, " by %s", label)
		}
		b.WriteString(".")
	case StatusEscalated:
		fmt.Fprintf(&b, "Automatic recovery did not resolve the issue after %d %s; an operator has been notified and is taking over.", attempts, plural)
	case StatusManual:
		fmt.Fprintf(&b, "This issue needs a manual change and was not retried automatically. It has been queued for review after %d %s.", attempts, plural)
	case StatusFailed:
		fmt.Fprintf(&b, "Automatic recovery was exhausted after %d %s without resolving the issue.", attempts, plural)
	default:
		fmt.Fprintf(&b, "Recovery is still in progress (%d %s so far).", attempts, plural)
	}

	if tried := triedLabels(sess); len(tried) > 0 && sess.Status != StatusSuccess {
		fmt.Fprintf(&b, " Steps tried: %s.", strings.Join(tried, ", "))
	}
	return b.String()
}

func lastStrategy(sess *Session) StrategyType {
	if len(sess.Attempts) == 0 {
		return ""
	}
	return sess.Attempts[len(sess.Attempts)-1].Strategy
}

func triedLabels(sess *Session) []string {
	seen := map[StrategyType]bool{}
	var out []string
	for _, a := range sess.Attempts {
		if a.Strategy.IsTerminal() || seen[a.Strategy] {
			continue
		}
		seen[a.Strategy] = true
		if label, ok := strategyLabels[a.Strategy]; ok {
			out = append(out, label)
		}
	}
	return out
}
