// Package errclass maps raw operational errors to typed, severity-ranked
// error kinds using an ordered first-match-wins pattern list.
//
// Classification is total: any input, including an empty message, yields a
// ClassifiedError. When nothing matches, the error is KindUnknown with
// medium severity and is treated as recoverable so the generic retry chain
// gets a chance before escalation.
package errclass

import (
	"strings"
	"time"
)

// Classifier evaluates an ordered pattern list. The zero value is unusable;
// construct with New or NewDefault.
type Classifier struct {
	rules []PatternRule
	now   func() time.Time
}

// New builds a classifier over the given rules. Rule order is part of the
// contract: overlapping patterns resolve to the earliest declared rule.
func New(rules []PatternRule) *Classifier {
	copied := make([]PatternRule, len(rules))
	copy(copied, rules)
	return &Classifier{rules: copied, now: time.Now}
}

// NewDefault builds a classifier over DefaultRules.
func NewDefault() *Classifier {
	return New(DefaultRules())
}

// WithClock overrides the timestamp source. Tests use this for determinism.
func (c *Classifier) WithClock(now func() time.Time) *Classifier {
	c.now = now
	return c
}

// Rules returns a copy of the active rule list in evaluation order.
func (c *Classifier) Rules() []PatternRule {
	out := make([]PatternRule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify maps a raw error to a ClassifiedError. It never fails.
func (c *Classifier) Classify(raw RawError) ClassifiedError {
	code := strings.ToLower(strings.TrimSpace(raw.Code))
	msg := strings.ToLower(raw.Message)

	for _, rule := range c.rules {
		if rule.matches(code, msg) {
			return ClassifiedError{
				Kind:        rule.Kind,
				Code:        raw.Code,
				Message:     raw.Message,
				Severity:    rule.Severity,
				Recoverable: rule.Recoverable,
				Timestamp:   c.now(),
			}
		}
	}

	return ClassifiedError{
		Kind:        KindUnknown,
		Code:        raw.Code,
		Message:     raw.Message,
		Severity:    SeverityMedium,
		Recoverable: true,
		Timestamp:   c.now(),
	}
}

func (r PatternRule) matches(code, msg string) bool {
	if code != "" {
		for _, c := range r.Codes {
			if code == strings.ToLower(c) {
				return true
			}
		}
	}
	if msg != "" {
		for _, s := range r.Substrings {
			if strings.Contains(msg, strings.ToLower(s)) {
				return true
			}
		}
	}
	return false
}

// DefaultRules is the built-in decision list. Declaration order matters:
// timeout precedes network so "connection timeout" classifies as timeout,
// and auth precedes permission so "invalid token" never reads as a denial.
func DefaultRules() []PatternRule {
	return []PatternRule{
		{
			Kind: KindTimeout, Severity: SeverityMedium, Recoverable: true,
			Codes:      []string{"ETIMEDOUT", "ESOCKETTIMEDOUT", "DEADLINE_EXCEEDED", "408"},
			Substrings: []string{"timeout", "timed out", "deadline exceeded"},
		},
		{
			Kind: KindNetwork, Severity: SeverityMedium, Recoverable: true,
			Codes:      []string{"ECONNREFUSED", "ECONNRESET", "ENOTFOUND", "EHOSTUNREACH", "EAI_AGAIN", "EPIPE"},
			Substrings: []string{"econnrefused", "connection refused", "connection reset", "socket hang up", "network", "dns"},
		},
		{
			Kind: KindRateLimit, Severity: SeverityLow, Recoverable: true,
			Codes:      []string{"429", "RATE_LIMITED"},
			Substrings: []string{"rate limit", "too many requests", "quota exceeded", "throttl"},
		},
		{
			Kind: KindAuth, Severity: SeverityHigh, Recoverable: true,
			Codes:      []string{"401", "UNAUTHENTICATED"},
			Substrings: []string{"unauthorized", "authentication failed", "token expired", "invalid credentials", "invalid token"},
		},
		{
			Kind: KindPermission, Severity: SeverityHigh, Recoverable: false,
			Codes:      []string{"403", "EACCES", "EPERM", "PERMISSION_DENIED"},
			Substrings: []string{"permission denied", "forbidden", "access denied", "not allowed"},
		},
		{
			Kind: KindValidation, Severity: SeverityMedium, Recoverable: false,
			Codes:      []string{"400", "422", "INVALID_ARGUMENT"},
			Substrings: []string{"validation", "invalid input", "schema", "bad request", "missing required"},
		},
		{
			Kind: KindResource, Severity: SeverityCritical, Recoverable: true,
			Codes:      []string{"ENOMEM", "ENOSPC", "EMFILE"},
			Substrings: []string{"out of memory", "no space left", "disk full", "resource exhausted", "too many open files"},
		},
		{
			Kind: KindDependency, Severity: SeverityHigh, Recoverable: true,
			Codes:      []string{"502", "503", "504"},
			Substrings: []string{"bad gateway", "service unavailable", "upstream", "dependency failed"},
		},
		{
			Kind: KindData, Severity: SeverityMedium, Recoverable: false,
			Codes:      []string{"PARSE_ERROR"},
			Substrings: []string{"unexpected token", "parse error", "malformed", "corrupt", "unmarshal", "serialization"},
		},
	}
}
