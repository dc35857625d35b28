package errclass

import "time"

// Kind identifies the operational category of an error. Classification
// drives remediation: each Kind maps to an ordered fix-strategy chain in
// the fixtree package.
type Kind string

const (
	// KindTimeout covers deadline and socket timeouts.
	KindTimeout Kind = "timeout"
	// KindNetwork covers connectivity failures (refused, reset, DNS).
	KindNetwork Kind = "network"
	// KindRateLimit covers throttling by an upstream service.
	KindRateLimit Kind = "rate_limit"
	// KindAuth covers expired or invalid credentials.
	KindAuth Kind = "auth"
	// KindPermission covers authorization denials. These are never fixed
	// automatically; the chain escalates immediately.
	KindPermission Kind = "permission"
	// KindValidation covers rejected input (schema, bad request).
	KindValidation Kind = "validation"
	// KindResource covers exhausted local resources (memory, disk, fds).
	KindResource Kind = "resource"
	// KindDependency covers upstream service failures (502/503/504).
	KindDependency Kind = "dependency"
	// KindData covers malformed or corrupt payloads.
	KindData Kind = "data"
	// KindUnknown is the fallback when no pattern matches.
	KindUnknown Kind = "unknown"
)

// Severity ranks how serious a classified error is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for comparison. Higher is worse.
func severityRank(s Severity) int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 1
	}
}

// MoreSevere reports whether a outranks b.
func MoreSevere(a, b Severity) bool {
	return severityRank(a) > severityRank(b)
}

// RawError is the classifier input: whatever code, message, and stack the
// failing call surfaced.
type RawError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// ClassifiedError is the classifier output. It is derived state: it only
// lives as the input of a fix session and is never persisted on its own.
type ClassifiedError struct {
	Kind        Kind      `json:"kind"`
	Code        string    `json:"code,omitempty"`
	Message     string    `json:"message"`
	Severity    Severity  `json:"severity"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`
}

// PatternRule matches a raw error by code or message content. Rules are
// evaluated in declaration order and the first match wins, so overlapping
// rules are resolved by position, not specificity.
type PatternRule struct {
	Kind        Kind     `json:"kind" koanf:"kind"`
	Severity    Severity `json:"severity" koanf:"severity"`
	Recoverable bool     `json:"recoverable" koanf:"recoverable"`

	// Codes match RawError.Code exactly, case-insensitive.
	Codes []string `json:"codes,omitempty" koanf:"codes"`
	// Substrings match anywhere in RawError.Message, case-insensitive.
	Substrings []string `json:"substrings,omitempty" koanf:"substrings"`
}
