package risk

import "sort"

// actionRule matches a Detection by status, reason types, and thresholds.
// Empty/zero fields are wildcards; all set fields must hold for the rule's
// action to be recommended.
type actionRule struct {
	Statuses    []Status
	Reasons     []ReasonType
	MinGap      float64
	MinBlockers int
	Action      Action
}

// defaultActionRules is the declarative recommendation table. Rules stack:
// several may match one detection; the results are de-duplicated by action
// ID, sorted by priority, and truncated to maxRecommendedActions.
var defaultActionRules = []actionRule{
	{
		Statuses: []Status{StatusCritical},
		Action:   Action{ID: "notify_stakeholders", Priority: PriorityCritical, Description: "Inform the client and account owner about the overdue delivery today"},
	},
	{
		Statuses: []Status{StatusCritical},
		Action:   Action{ID: "prepare_compensation", Priority: PriorityCritical, Description: "Prepare a compensation offer before the client asks for one"},
	},
	{
		Statuses: []Status{StatusDelayed, StatusCritical},
		Action:   Action{ID: "replan_milestones", Priority: PriorityHigh, Description: "Re-baseline the remaining milestones against a realistic completion date"},
	},
	{
		Statuses: []Status{StatusAtRisk},
		Action:   Action{ID: "daily_checkin", Priority: PriorityMedium, Description: "Switch to daily progress check-ins until the gap closes"},
	},
	{
		MinGap: 30,
		Action: Action{ID: "add_capacity", Priority: PriorityHigh, Description: "Add delivery capacity or descope to close a 30+ point schedule gap"},
	},
	{
		MinGap: 20,
		Action: Action{ID: "reprioritize_scope", Priority: PriorityMedium, Description: "Re-prioritize remaining work so the most valuable scope lands first"},
	},
	{
		MinBlockers: 1,
		Action:      Action{ID: "clear_blockers", Priority: PriorityHigh, Description: "Assign an owner to each open blocker and track them to resolution"},
	},
	{
		Reasons: []ReasonType{ReasonClient},
		Action:  Action{ID: "follow_up_client", Priority: PriorityHigh, Description: "Chase the pending client input and record the wait in the audit trail"},
	},
	{
		Reasons: []ReasonType{ReasonDependency, ReasonExternal},
		Action:  Action{ID: "escalate_vendor", Priority: PriorityMedium, Description: "Escalate the blocking third party and line up an alternative"},
	},
	{
		Reasons: []ReasonType{ReasonQuality},
		Action:  Action{ID: "stabilize_quality", Priority: PriorityHigh, Description: "Freeze new work until the failing checks are green again"},
	},
	{
		Reasons: []ReasonType{ReasonResource},
		Action:  Action{ID: "rebalance_staffing", Priority: PriorityMedium, Description: "Rebalance staffing or bring in cover for the capacity shortfall"},
	},
	{
		Statuses: []Status{StatusOnTrack},
		Action:   Action{ID: "keep_cadence", Priority: PriorityLow, Description: "Keep the current cadence and re-assess at the next milestone"},
	},
}

// recommendActions evaluates the rule table against a detection.
func recommendActions(d Detection, blockerCount int) []Action {
	seen := map[string]bool{}
	var out []Action
	for _, rule := range defaultActionRules {
		if !rule.matches(d, blockerCount) || seen[rule.Action.ID] {
			continue
		}
		seen[rule.Action.ID] = true
		out = append(out, rule.Action)
	}

	// Stable order: by priority, then by ID so equal-priority actions are
	// deterministic.
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := priorityRank(out[i].Priority), priorityRank(out[j].Priority)
		if ri != rj {
			return ri < rj
		}
		return out[i].ID < out[j].ID
	})

	if len(out) > maxRecommendedActions {
		out = out[:maxRecommendedActions]
	}
	return out
}

func (r actionRule) matches(d Detection, blockerCount int) bool {
	if len(r.Statuses) > 0 && !containsStatus(r.Statuses, d.Status) {
		return false
	}
	if r.MinGap > 0 && d.ProgressGap < r.MinGap {
		return false
	}
	if r.MinBlockers > 0 && blockerCount < r.MinBlockers {
		return false
	}
	if len(r.Reasons) > 0 && !anyReason(d.DelayReasons, r.Reasons) {
		return false
	}
	return true
}

func containsStatus(set []Status, s Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func anyReason(reasons []Reason, wanted []ReasonType) bool {
	for _, r := range reasons {
		for _, w := range wanted {
			if r.Type == w {
				return true
			}
		}
	}
	return false
}
