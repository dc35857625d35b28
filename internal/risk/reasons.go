package risk

import "strings"

// reasonPattern maps keywords to a reason type. Patterns are evaluated in
// order and the first category with a matching keyword wins, so the list
// below is a decision list, not a lookup table. Client sits first: a blocker
// like "waiting on client API approval" is client-caused even though it also
// mentions an API.
type reasonPattern struct {
	Type     ReasonType
	Keywords []string
}

var reasonPatterns = []reasonPattern{
	{ReasonClient, []string{"client", "customer", "approval", "sign-off", "waiting on feedback", "stakeholder"}},
	{ReasonDependency, []string{"dependency", "third party", "third-party", "vendor", "upstream", "api", "integration", "library"}},
	{ReasonResource, []string{"resource", "staff", "capacity", "availability", "developer left", "sick", "vacation", "hiring"}},
	{ReasonScope, []string{"scope", "requirement", "change request", "new feature", "spec change", "redesign"}},
	{ReasonTechnical, []string{"bug", "technical", "architecture", "refactor", "performance", "debt", "complexity", "crash"}},
	{ReasonQuality, []string{"test", "qa", "regression", "rework", "defect", "flaky"}},
	{ReasonInfrastructure, []string{"infra", "server", "deploy", "environment", "pipeline", "ci", "hosting", "dns"}},
	{ReasonExternal, []string{"outage", "holiday", "legal", "compliance", "weather", "force majeure", "strike"}},
}

// CategorizeBlocker maps a free-text blocker to exactly one reason type.
// Unmatched blockers fall through to ReasonOther.
func CategorizeBlocker(blocker string) ReasonType {
	lower := strings.ToLower(blocker)
	for _, p := range reasonPatterns {
		for _, kw := range p.Keywords {
			if strings.Contains(lower, kw) {
				return p.Type
			}
		}
	}
	return ReasonOther
}

// delayReasons categorizes every blocker. When there are no blockers but
// the progress gap is past syntheticReasonGap, a synthetic technical reason
// is injected so non-trivial risk never reports an empty cause list.
func delayReasons(blockers []string, progressGap float64) []Reason {
	reasons := make([]Reason, 0, len(blockers))
	for _, b := range blockers {
		reasons = append(reasons, Reason{
			Type:        CategorizeBlocker(b),
			Description: b,
			IsResolved:  false,
		})
	}
	if len(reasons) == 0 && progressGap > syntheticReasonGap {
		reasons = append(reasons, Reason{
			Type:        ReasonTechnical,
			Description: "progress is behind schedule with no reported blockers",
			IsResolved:  false,
		})
	}
	return reasons
}
