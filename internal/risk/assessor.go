// Package risk assesses schedule risk for a delivery in flight and plans
// client compensation for non-client-caused delays.
//
// DetectDelay and CalculateCompensation are pure functions of their inputs
// and an explicit "now"; they hold no shared state and are safe to call
// concurrently. The assessor never fails: degenerate inputs (no milestones,
// no blockers) produce a best-effort Detection with conservative defaults.
package risk

import (
	"fmt"
	"math"
	"time"
)

const (
	// gapDayFactor converts progress-gap points into estimated extra days:
	// two points of gap cost one day.
	gapDayFactor = 0.5

	// syntheticReasonGap is the progress gap above which a technical reason
	// is injected when no blockers are reported, so causes are never
	// silently empty while risk is non-trivial.
	syntheticReasonGap = 10

	maxRecommendedActions = 5
)

// DetectDelay computes the schedule-risk picture for a project. It is
// deterministic for fixed inputs and a fixed now.
func DetectDelay(cfg Config, now time.Time) Detection {
	d := Detection{
		ProjectID:       cfg.ProjectID,
		PromisedDate:    cfg.PromisedDate,
		CurrentProgress: clamp(cfg.CurrentProgress, 0, 100),
	}

	d.ExpectedProgress = expectedProgress(cfg.Milestones, now)
	d.ProgressGap = d.ExpectedProgress - d.CurrentProgress

	d.DaysOverdue = daysPast(cfg.PromisedDate, now)
	d.DaysRemaining = daysUntil(cfg.PromisedDate, now)

	d.EstimatedDate = cfg.PromisedDate
	if d.ProgressGap > 0 {
		extra := int(math.Ceil(d.ProgressGap * gapDayFactor))
		d.EstimatedDate = cfg.PromisedDate.AddDate(0, 0, extra)
	}

	d.Status = resolveStatus(d)
	d.RiskScore, d.RiskFactors = riskScore(d, len(cfg.Blockers))
	d.DelayReasons = delayReasons(cfg.Blockers, d.ProgressGap)
	d.Recommended = recommendActions(d, len(cfg.Blockers))
	return d
}

// expectedProgress derives the schedule baseline from the first and last
// milestone target dates: elapsed/total, clamped to [0,100]. With fewer
// than two milestones there is no window to measure against, so the
// baseline stays at zero (conservative: never inflates the gap).
func expectedProgress(milestones []Milestone, now time.Time) float64 {
	if len(milestones) < 2 {
		return 0
	}
	first, last := milestones[0].TargetDate, milestones[0].TargetDate
	for _, m := range milestones[1:] {
		if m.TargetDate.Before(first) {
			first = m.TargetDate
		}
		if m.TargetDate.After(last) {
			last = m.TargetDate
		}
	}
	total := last.Sub(first)
	if total <= 0 {
		return 0
	}
	elapsed := now.Sub(first)
	return clamp(float64(elapsed)/float64(total)*100, 0, 100)
}

// resolveStatus applies the strict status precedence; the first matching
// rule wins.
func resolveStatus(d Detection) Status {
	switch {
	case d.DaysOverdue >= 7:
		return StatusCritical
	case d.DaysOverdue > 0:
		return StatusDelayed
	case (d.DaysRemaining <= 2 && d.ProgressGap > 20) || d.ProgressGap > 30:
		return StatusAtRisk
	default:
		return StatusOnTrack
	}
}

// riskScore composes the 0-100 score: positive progress gap (uncapped
// before the final clamp), deadline proximity, and blocker pressure.
func riskScore(d Detection, blockerCount int) (float64, []string) {
	score := 0.0
	var factors []string

	if d.ProgressGap > 0 {
		score += d.ProgressGap
		factors = append(factors, fmt.Sprintf("progress is %.0f points behind schedule", d.ProgressGap))
	}
	if d.DaysRemaining <= 3 {
		score += float64(4-d.DaysRemaining) * 10
		if d.DaysOverdue > 0 {
			factors = append(factors, fmt.Sprintf("promised date passed %d days ago", d.DaysOverdue))
		} else {
			factors = append(factors, fmt.Sprintf("only %d days remain before the promised date", d.DaysRemaining))
		}
	}
	if blockerCount > 0 {
		score += float64(blockerCount) * 10
		factors = append(factors, fmt.Sprintf("%d active blockers", blockerCount))
	}

	return clamp(score, 0, 100), factors
}

// daysPast returns whole days now is past t, zero when not past.
func daysPast(t, now time.Time) int {
	if !now.After(t) {
		return 0
	}
	return int(now.Sub(t).Hours() / 24)
}

// daysUntil returns whole days until t, rounded up, zero when t has passed.
func daysUntil(t, now time.Time) int {
	if !t.After(now) {
		return 0
	}
	return int(math.Ceil(t.Sub(now).Hours() / 24))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
